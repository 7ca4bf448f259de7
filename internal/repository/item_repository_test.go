package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lostfound-api/internal/models"
)

var itemRowColumns = []string{"id", "nome_item", "descricao", "local_encontrado", "data_encontrado", "turno_encontrado", "categoria", "foto_item_url", "status", "id_usuario_encontrou", "nome_usuario_encontrou", "data_cadastro_item", "data_entrega", "nome_pessoa_retirou", "matricula_recebedor", "updated_at"}

func itemRow(id string, status models.ItemStatus) []driver.Value {
	now := time.Now()
	return []driver.Value{id, "Guarda-chuva", "Preto", "Bloco A", now, "manha", "Acessórios", nil, string(status), "owner", "Ana", now, nil, nil, nil, now}
}

func TestItemListDefaultQuery(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewItemRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM itens i LEFT JOIN usuarios u ON u.id = i.id_usuario_encontrou WHERE 1=1 ORDER BY i.data_cadastro_item DESC LIMIT 20 OFFSET 0")).
		WillReturnRows(sqlmock.NewRows(itemRowColumns).AddRow(itemRow("i1", models.StatusFound)...))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM itens i WHERE 1=1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	items, total, err := repo.List(context.Background(), models.ItemFilter{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, models.StatusFound, items[0].Status)
	require.NotNil(t, items[0].Shift)
	assert.Equal(t, models.ShiftMorning, *items[0].Shift)
	require.NotNil(t, items[0].OwnerName)
	assert.Equal(t, "Ana", *items[0].OwnerName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestItemListCombinesFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewItemRepository(db)

	status := models.StatusLost
	where := "WHERE 1=1 AND i.status = $1 AND i.categoria = $2 AND i.id_usuario_encontrou = $3 AND (i.nome_item ILIKE $4 OR i.descricao ILIKE $4 OR i.local_encontrado ILIKE $4)"
	mock.ExpectQuery(regexp.QuoteMeta(where + " ORDER BY i.data_cadastro_item DESC LIMIT 10 OFFSET 20")).
		WithArgs(models.StatusLost, "Chaves", "owner", "%chave%").
		WillReturnRows(sqlmock.NewRows(itemRowColumns))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM itens i " + where)).
		WithArgs(models.StatusLost, "Chaves", "owner", "%chave%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(21))

	items, total, err := repo.List(context.Background(), models.ItemFilter{
		Status:   &status,
		Category: "Chaves",
		OwnerID:  "owner",
		Search:   "chave",
		Page:     3,
		PageSize: 10,
	})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, 21, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestItemListExportLimit(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewItemRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY i.data_cadastro_item DESC LIMIT 5000 OFFSET 0")).
		WillReturnRows(sqlmock.NewRows(itemRowColumns))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM itens i WHERE 1=1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, _, err := repo.List(context.Background(), models.ItemFilter{Limit: 5000, Page: 4})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestItemDeliverIsConditional(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewItemRepository(db)

	at := time.Now().UTC()
	matricula := "2020999"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE itens SET status = $2, nome_pessoa_retirou = $3, matricula_recebedor = $4, data_entrega = $5, updated_at = $5")+`\s+`+regexp.QuoteMeta("WHERE id = $1 AND status IN ('achado', 'perdido')")).
		WithArgs("i1", models.StatusDelivered, "Bruno", &matricula, at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE itens SET status").
		WithArgs("i1", models.StatusDelivered, "Bruno", &matricula, at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Deliver(context.Background(), "i1", "Bruno", &matricula, at))
	err := repo.Deliver(context.Background(), "i1", "Bruno", &matricula, at)
	assert.Equal(t, sql.ErrNoRows, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestItemDeleteOnlyOpenItems(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewItemRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM itens WHERE id = $1 AND status IN ('achado', 'perdido')")).
		WithArgs("i1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.Equal(t, sql.ErrNoRows, repo.Delete(context.Background(), "i1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestItemExpireOverdue(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewItemRepository(db)

	today := time.Date(2025, 6, 1, 15, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("data_encontrado + make_interval(months => $2) < $3::date")).
		WithArgs(models.StatusExpired, 3, "2025-06-01").
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow("i1", "achado").AddRow("i2", "perdido"))

	changes, err := repo.ExpireOverdue(context.Background(), 3, today)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, "i1", changes[0].ID)
	assert.Equal(t, models.StatusLost, changes[1].From)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	mock.ExpectExec("INSERT INTO audit_logs").WillReturnResult(sqlmock.NewResult(1, 1))

	entry := &models.AuditLog{Action: models.AuditActionItemDeliver, Resource: models.AuditResourceItem}
	require.NoError(t, repo.CreateAuditLog(context.Background(), entry))
	assert.NotEmpty(t, entry.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
