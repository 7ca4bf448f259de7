package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lostfound-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

var userRowColumns = []string{"id", "nome", "email", "senha", "matricula", "tipo_usuario", "foto_perfil_url", "created_at", "updated_at"}

func TestFindByEmailLowercases(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(userRowColumns).
		AddRow("u1", "Ana", "ana@ifc.edu.br", "hash", "2021001", string(models.RoleRegular), nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM usuarios WHERE email = $1 LIMIT 1")).
		WithArgs("ana@ifc.edu.br").
		WillReturnRows(rows)

	user, err := repo.FindByEmail(context.Background(), "Ana@IFC.edu.br")
	require.NoError(t, err)
	assert.Equal(t, "Ana", user.Name)
	require.NotNil(t, user.Matricula)
	assert.Equal(t, "2021001", *user.Matricula)
	assert.Nil(t, user.PhotoURL)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM usuarios WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.Equal(t, sql.ErrNoRows, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUserMapsUniqueViolations(t *testing.T) {
	cases := map[string]error{
		"usuarios_email_key":     models.ErrDuplicateEmail,
		"usuarios_matricula_key": models.ErrDuplicateMatricula,
	}
	for constraint, want := range cases {
		t.Run(constraint, func(t *testing.T) {
			db, mock, cleanup := newMock(t)
			defer cleanup()
			repo := NewUserRepository(db)

			mock.ExpectExec("INSERT INTO usuarios").
				WillReturnError(&pq.Error{Code: "23505", Constraint: constraint})

			matricula := "2021001"
			err := repo.Create(context.Background(), &models.User{Name: "Ana", Email: "a@b.co", PasswordHash: "x", Matricula: &matricula, Role: models.RoleRegular})
			assert.ErrorIs(t, err, want)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCreateUserAssignsIDAndLowercasesEmail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO usuarios").WillReturnResult(sqlmock.NewResult(1, 1))

	user := &models.User{Name: "Ana", Email: "ANA@B.CO", PasswordHash: "x", Role: models.RoleRegular}
	require.NoError(t, repo.Create(context.Background(), user))
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "ana@b.co", user.Email)
	assert.False(t, user.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmailTakenExcludesSelf(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM usuarios WHERE email = $1")).
		WithArgs("a@b.co", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	taken, err := repo.EmailTaken(context.Background(), "A@b.co", "u1")
	require.NoError(t, err)
	assert.True(t, taken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchUsersEscapesWildcards(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, nome, matricula FROM usuarios WHERE nome ILIKE $1 OR matricula ILIKE $1 ORDER BY nome ASC LIMIT 20")).
		WithArgs(`%50\%%`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "nome", "matricula"}).AddRow("u1", "Ana 50%", "2021001"))

	users, err := repo.Search(context.Background(), "50%", 0)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "Ana 50%", users[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdatePasswordMissingUser(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE usuarios SET senha = $2")).
		WithArgs("u1", "hash", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdatePassword(context.Background(), "u1", "hash")
	assert.Equal(t, sql.ErrNoRows, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
