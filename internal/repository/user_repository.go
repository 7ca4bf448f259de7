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

const userColumns = `id, nome, email, senha, matricula, tipo_usuario, foto_perfil_url, created_at, updated_at`

// UserRepository provides database access for accounts.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail returns a user by email address. Emails are stored lower-cased.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM usuarios WHERE email = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, strings.ToLower(email)); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM usuarios WHERE id = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// EmailTaken reports whether another account (not excludeID) already uses email.
func (r *UserRepository) EmailTaken(ctx context.Context, email, excludeID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM usuarios WHERE email = $1 AND ($2 = '' OR id::text <> $2))`
	var taken bool
	if err := r.db.GetContext(ctx, &taken, query, strings.ToLower(email), excludeID); err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return taken, nil
}

// MatriculaTaken reports whether another account (not excludeID) already uses matricula.
func (r *UserRepository) MatriculaTaken(ctx context.Context, matricula, excludeID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM usuarios WHERE matricula = $1 AND ($2 = '' OR id::text <> $2))`
	var taken bool
	if err := r.db.GetContext(ctx, &taken, query, matricula, excludeID); err != nil {
		return false, fmt.Errorf("check matricula: %w", err)
	}
	return taken, nil
}

// Search matches name or matricula case-insensitively.
func (r *UserRepository) Search(ctx context.Context, term string, limit int) ([]models.UserSummary, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query := fmt.Sprintf(`SELECT id, nome, matricula FROM usuarios WHERE nome ILIKE $1 OR matricula ILIKE $1 ORDER BY nome ASC LIMIT %d`, limit)
	users := make([]models.UserSummary, 0)
	if err := r.db.SelectContext(ctx, &users, query, containsPattern(term)); err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return users, nil
}

// Create inserts a new user. Unique violations surface as models.ErrDuplicateEmail or models.ErrDuplicateMatricula.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	user.Email = strings.ToLower(user.Email)

	const query = `INSERT INTO usuarios (id, nome, email, senha, matricula, tipo_usuario, foto_perfil_url, created_at, updated_at) VALUES (:id, :nome, :email, :senha, :matricula, :tipo_usuario, :foto_perfil_url, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		if mapped := mapUniqueViolation(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// UpdateProfile writes name, email and matricula.
func (r *UserRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	user.Email = strings.ToLower(user.Email)
	const query = `UPDATE usuarios SET nome = :nome, email = :email, matricula = :matricula, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, user)
	if err != nil {
		if mapped := mapUniqueViolation(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("update user: %w", err)
	}
	return expectRow(res)
}

// UpdatePassword updates the stored password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	const query = `UPDATE usuarios SET senha = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, passwordHash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return expectRow(res)
}

// UpdatePhoto replaces the profile photo reference.
func (r *UserRepository) UpdatePhoto(ctx context.Context, id string, photoURL *string) error {
	const query = `UPDATE usuarios SET foto_perfil_url = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, photoURL, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update photo: %w", err)
	}
	return expectRow(res)
}

// expectRow turns a zero-row write into sql.ErrNoRows.
func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
