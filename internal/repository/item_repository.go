package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lostfound-api/internal/models"
)

const itemSelect = `SELECT i.id, i.nome_item, i.descricao, i.local_encontrado, i.data_encontrado, i.turno_encontrado, i.categoria, i.foto_item_url, i.status, i.id_usuario_encontrou, u.nome AS nome_usuario_encontrou, i.data_cadastro_item, i.data_entrega, i.nome_pessoa_retirou, i.matricula_recebedor, i.updated_at
        FROM itens i LEFT JOIN usuarios u ON u.id = i.id_usuario_encontrou`

// openStatuses guards every write that is only legal before an item reaches a terminal state.
const openStatuses = `status IN ('achado', 'perdido')`

// ItemRepository provides database access for catalogued items.
type ItemRepository struct {
	db *sqlx.DB
}

// NewItemRepository creates a new instance of ItemRepository.
func NewItemRepository(db *sqlx.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

// List returns items matching the filter, newest first, with the total match count.
func (r *ItemRepository) List(ctx context.Context, filter models.ItemFilter) ([]models.Item, int, error) {
	baseQuery := ` WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("i.status = $%d", len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = append(conditions, fmt.Sprintf("i.categoria = $%d", len(args)))
	}
	if filter.OwnerID != "" {
		args = append(args, filter.OwnerID)
		conditions = append(conditions, fmt.Sprintf("i.id_usuario_encontrou = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, containsPattern(filter.Search))
		n := len(args)
		conditions = append(conditions, fmt.Sprintf("(i.nome_item ILIKE $%d OR i.descricao ILIKE $%d OR i.local_encontrado ILIKE $%d)", n, n, n))
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	var limit, offset int
	if filter.Limit > 0 {
		limit = filter.Limit
	} else {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		limit = filter.PageSize
		if limit <= 0 || limit > 100 {
			limit = 20
		}
		offset = (page - 1) * limit
	}

	listQuery := fmt.Sprintf("%s%s ORDER BY i.data_cadastro_item DESC LIMIT %d OFFSET %d", itemSelect, baseQuery, limit, offset)
	items := make([]models.Item, 0)
	if err := r.db.SelectContext(ctx, &items, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list items: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM itens i" + baseQuery
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count items: %w", err)
	}

	return items, total, nil
}

// FindByID returns an item by identifier.
func (r *ItemRepository) FindByID(ctx context.Context, id string) (*models.Item, error) {
	query := itemSelect + ` WHERE i.id = $1 LIMIT 1`
	var item models.Item
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find item by id: %w", err)
	}
	return &item, nil
}

// Create inserts a new item.
func (r *ItemRepository) Create(ctx context.Context, item *models.Item) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	const query = `INSERT INTO itens (id, nome_item, descricao, local_encontrado, data_encontrado, turno_encontrado, categoria, foto_item_url, status, id_usuario_encontrou, data_cadastro_item, updated_at)
        VALUES (:id, :nome_item, :descricao, :local_encontrado, :data_encontrado, :turno_encontrado, :categoria, :foto_item_url, :status, :id_usuario_encontrou, :data_cadastro_item, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, item); err != nil {
		return fmt.Errorf("create item: %w", err)
	}
	return nil
}

// Update writes an edit. It returns sql.ErrNoRows when the item is gone or already terminal.
func (r *ItemRepository) Update(ctx context.Context, id string, changes models.ItemChanges) error {
	query := `UPDATE itens SET nome_item = $2, descricao = $3, local_encontrado = $4, data_encontrado = $5, turno_encontrado = $6, categoria = $7, foto_item_url = $8, status = $9, updated_at = $10
        WHERE id = $1 AND ` + openStatuses
	res, err := r.db.ExecContext(ctx, query, id, changes.Name, changes.Description, changes.Location, changes.OccurredOn,
		changes.Shift, changes.Category, changes.PhotoURL, changes.Status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	return expectRow(res)
}

// Delete removes a non-terminal item. It returns sql.ErrNoRows when nothing was deleted.
func (r *ItemRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM itens WHERE id = $1 AND `+openStatuses, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return expectRow(res)
}

// Deliver moves an open item to entregue. Only one of two concurrent calls can succeed;
// the loser gets sql.ErrNoRows.
func (r *ItemRepository) Deliver(ctx context.Context, id, recipientName string, recipientMatricula *string, at time.Time) error {
	query := `UPDATE itens SET status = $2, nome_pessoa_retirou = $3, matricula_recebedor = $4, data_entrega = $5, updated_at = $5
        WHERE id = $1 AND ` + openStatuses
	res, err := r.db.ExecContext(ctx, query, id, models.StatusDelivered, recipientName, recipientMatricula, at)
	if err != nil {
		return fmt.Errorf("deliver item: %w", err)
	}
	return expectRow(res)
}

// Expire moves an open item to expirado. It returns sql.ErrNoRows when the item is not open.
func (r *ItemRepository) Expire(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE itens SET status = $2, updated_at = $3 WHERE id = $1 AND ` + openStatuses
	res, err := r.db.ExecContext(ctx, query, id, models.StatusExpired, at)
	if err != nil {
		return fmt.Errorf("expire item: %w", err)
	}
	return expectRow(res)
}

// ExpireOverdue expires every open item whose pickup deadline (data_encontrado plus months)
// is before today and returns the moved items with their previous status.
func (r *ItemRepository) ExpireOverdue(ctx context.Context, months int, today time.Time) ([]models.StatusChange, error) {
	query := `WITH due AS (
            SELECT id, status FROM itens
            WHERE ` + openStatuses + ` AND data_encontrado + make_interval(months => $2) < $3::date
            FOR UPDATE
        )
        UPDATE itens i SET status = $1, updated_at = NOW() FROM due WHERE i.id = due.id
        RETURNING i.id, due.status`
	changes := make([]models.StatusChange, 0)
	if err := r.db.SelectContext(ctx, &changes, query, models.StatusExpired, months, today.Format(models.DateLayout)); err != nil {
		return nil, fmt.Errorf("expire overdue items: %w", err)
	}
	return changes, nil
}
