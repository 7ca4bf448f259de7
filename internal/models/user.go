package models

import (
	"errors"
	"time"
)

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleRegular UserRole = "usuario"
	RoleAdmin   UserRole = "admin"
)

// Valid reports whether the role is one of the known values.
func (r UserRole) Valid() bool {
	return r == RoleRegular || r == RoleAdmin
}

var (
	// ErrDuplicateEmail is returned by the store when the email unique constraint fires.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrDuplicateMatricula is returned by the store when the matricula unique constraint fires.
	ErrDuplicateMatricula = errors.New("matricula already registered")
)

// User represents an account stored in the usuarios table.
type User struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"nome" json:"nome"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"senha" json:"-"`
	Matricula    *string   `db:"matricula" json:"matricula,omitempty"`
	Role         UserRole  `db:"tipo_usuario" json:"tipo_usuario"`
	PhotoURL     *string   `db:"foto_perfil_url" json:"foto_perfil_url,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Info returns the public view of the user.
func (u *User) Info() UserInfo {
	return UserInfo{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Matricula: u.Matricula,
		Role:      u.Role,
		PhotoURL:  u.PhotoURL,
		IsAdmin:   u.Role == RoleAdmin,
	}
}

// UserSummary is the reduced projection returned by the admin user search.
type UserSummary struct {
	ID        string  `db:"id" json:"id"`
	Name      string  `db:"nome" json:"nome"`
	Matricula *string `db:"matricula" json:"matricula,omitempty"`
}

// UpdateProfileRequest payload for PUT /users/me.
type UpdateProfileRequest struct {
	Name      string `json:"nome" validate:"required,max=255"`
	Email     string `json:"email" validate:"required,email,max=255"`
	Matricula string `json:"matricula" validate:"omitempty,max=50"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
	TotalPages int `json:"total_pages"`
}
