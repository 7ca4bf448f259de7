package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RequestMeta carries caller details recorded on sessions and audit entries.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest creates a regular account.
type RegisterRequest struct {
	Name            string `json:"nome" validate:"required,max=255"`
	Email           string `json:"email" validate:"required,email,max=255"`
	Password        string `json:"senha" validate:"required,min=6"`
	ConfirmPassword string `json:"confirmar_senha" validate:"required,eqfield=Password"`
	Matricula       string `json:"matricula" validate:"required,max=50"`
}

// LoginResponse returns the issued token and user info.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        UserInfo  `json:"user"`
}

// ChangePasswordRequest payload for updating password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID        string   `json:"id"`
	Name      string   `json:"nome"`
	Email     string   `json:"email"`
	Matricula *string  `json:"matricula,omitempty"`
	Role      UserRole `json:"tipo_usuario"`
	PhotoURL  *string  `json:"foto_perfil_url,omitempty"`
	IsAdmin   bool     `json:"is_admin"`
}

// JWTClaims represents the JWT payload for access tokens. The registered ID (jti)
// names the server-side session.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	Role     UserRole `json:"role"`
	PhotoURL string   `json:"photo_url,omitempty"`
	jwt.RegisteredClaims
}

// Actor returns the identity used by authorization checks.
func (c *JWTClaims) Actor() Actor {
	return Actor{ID: c.UserID, Role: c.Role}
}

// Actor is the authenticated caller as seen by policy decisions.
type Actor struct {
	ID   string
	Role UserRole
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
