package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/lostfound-api/internal/models"
	"github.com/noah-isme/lostfound-api/internal/repository"
	appErrors "github.com/noah-isme/lostfound-api/pkg/errors"
)

type mockAuthRepo struct {
	users     map[string]*models.User
	createErr error
}

func newMockAuthRepo(users ...*models.User) *mockAuthRepo {
	repo := &mockAuthRepo{users: make(map[string]*models.User)}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			copy := *u
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		copy := *u
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) EmailTaken(ctx context.Context, email, excludeID string) (bool, error) {
	for _, u := range m.users {
		if u.Email == email && u.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockAuthRepo) MatriculaTaken(ctx context.Context, matricula, excludeID string) (bool, error) {
	for _, u := range m.users {
		if u.Matricula != nil && *u.Matricula == matricula && u.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	user.ID = "generated-" + user.Email
	copy := *user
	m.users[user.ID] = &copy
	return nil
}

func hashed(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func newAuthFixture(t *testing.T, users ...*models.User) (*AuthService, *repository.MemorySessionStore, *mockAuditRepo, *mockMetrics) {
	t.Helper()
	sessions := repository.NewMemorySessionStore()
	audit := &mockAuditRepo{}
	metrics := &mockMetrics{}
	svc := NewAuthService(newMockAuthRepo(users...), sessions, audit, metrics, nil, zap.NewNop(), AuthConfig{
		AccessTokenSecret: "test-secret",
		AccessTokenExpiry: time.Hour,
		Issuer:            "lostfound-test",
	})
	return svc, sessions, audit, metrics
}

func TestAuthServiceRegister(t *testing.T) {
	svc, _, audit, _ := newAuthFixture(t)

	info, err := svc.Register(context.Background(), models.RegisterRequest{
		Name:            " Maria ",
		Email:           "Maria@Escola.com",
		Password:        "secret1",
		ConfirmPassword: "secret1",
		Matricula:       "2024001",
	}, models.RequestMeta{IP: "127.0.0.1"})
	require.NoError(t, err)

	assert.Equal(t, "Maria", info.Name)
	assert.Equal(t, "maria@escola.com", info.Email)
	assert.Equal(t, models.RoleRegular, info.Role)
	assert.False(t, info.IsAdmin)
	assert.Equal(t, []string{models.AuditActionUserRegister}, audit.actions())
}

func TestAuthServiceRegisterValidation(t *testing.T) {
	svc, _, _, _ := newAuthFixture(t)

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Name:            "Maria",
		Email:           "not-an-email",
		Password:        "123",
		ConfirmPassword: "456",
	}, models.RequestMeta{})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Fields, "email")
	assert.Contains(t, appErr.Fields, "senha")
	assert.Equal(t, "does not match", appErr.Fields["confirmar_senha"])
	assert.Contains(t, appErr.Fields, "matricula")
}

func TestAuthServiceRegisterConflicts(t *testing.T) {
	matricula := "2024001"
	existing := &models.User{ID: "u1", Email: "ana@escola.com", Matricula: &matricula}
	svc, _, _, _ := newAuthFixture(t, existing)

	req := models.RegisterRequest{Name: "Ana", Email: "ANA@escola.com", Password: "secret1", ConfirmPassword: "secret1", Matricula: "2024999"}
	_, err := svc.Register(context.Background(), req, models.RequestMeta{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
	assert.Contains(t, appErrors.FromError(err).Fields, "email")

	req.Email = "other@escola.com"
	req.Matricula = matricula
	_, err = svc.Register(context.Background(), req, models.RequestMeta{})
	require.Error(t, err)
	assert.Contains(t, appErrors.FromError(err).Fields, "matricula")
}

func TestAuthServiceRegisterStoreRace(t *testing.T) {
	repo := newMockAuthRepo()
	repo.createErr = models.ErrDuplicateEmail
	svc := NewAuthService(repo, repository.NewMemorySessionStore(), nil, nil, nil, nil, AuthConfig{AccessTokenSecret: "s"})

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Name: "Ana", Email: "ana@escola.com", Password: "secret1", ConfirmPassword: "secret1", Matricula: "1",
	}, models.RequestMeta{})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
}

func TestAuthServiceLoginAndValidate(t *testing.T) {
	user := &models.User{ID: "u1", Name: "Ana", Email: "ana@escola.com", PasswordHash: hashed(t, "secret1"), Role: models.RoleAdmin}
	svc, _, audit, metrics := newAuthFixture(t, user)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "ana@escola.com", Password: "secret1"}, models.RequestMeta{IP: "10.1.1.1", UserAgent: "test"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.True(t, resp.User.IsAdmin)
	assert.Equal(t, []bool{true}, metrics.logins)
	assert.Equal(t, []string{models.AuditActionLogin}, audit.actions())

	claims, err := svc.ValidateToken(context.Background(), resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.Equal(t, "lostfound-test", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

func TestAuthServiceLoginInvalidCredentials(t *testing.T) {
	user := &models.User{ID: "u1", Email: "ana@escola.com", PasswordHash: hashed(t, "secret1")}
	svc, _, _, metrics := newAuthFixture(t, user)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ana@escola.com", Password: "wrong"}, models.RequestMeta{})
	assert.True(t, errors.Is(err, appErrors.ErrInvalidCredentials))

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "nobody@escola.com", Password: "secret1"}, models.RequestMeta{})
	assert.True(t, errors.Is(err, appErrors.ErrInvalidCredentials), "unknown email and wrong password are indistinguishable")
	assert.Equal(t, []bool{false, false}, metrics.logins)
}

func TestAuthServiceLogoutRevokesSession(t *testing.T) {
	user := &models.User{ID: "u1", Email: "ana@escola.com", PasswordHash: hashed(t, "secret1")}
	svc, _, audit, _ := newAuthFixture(t, user)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "ana@escola.com", Password: "secret1"}, models.RequestMeta{})
	require.NoError(t, err)
	claims, err := svc.ValidateToken(context.Background(), resp.AccessToken)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), claims, models.RequestMeta{}))
	_, err = svc.ValidateToken(context.Background(), resp.AccessToken)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
	assert.Equal(t, []string{models.AuditActionLogin, models.AuditActionLogout}, audit.actions())

	assert.True(t, errors.Is(svc.Logout(context.Background(), nil, models.RequestMeta{}), appErrors.ErrUnauthorized))
}

func TestAuthServiceValidateTokenRejects(t *testing.T) {
	user := &models.User{ID: "u1", Email: "ana@escola.com", PasswordHash: hashed(t, "secret1")}
	svc, _, _, _ := newAuthFixture(t, user)

	_, err := svc.ValidateToken(context.Background(), "garbage")
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, &models.JWTClaims{
		UserID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "jti-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := foreign.SignedString([]byte("other-secret"))
	require.NoError(t, err)
	_, err = svc.ValidateToken(context.Background(), signed)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	unknownSession := jwt.NewWithClaims(jwt.SigningMethodHS256, &models.JWTClaims{
		UserID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "never-issued",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err = unknownSession.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = svc.ValidateToken(context.Background(), signed)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &models.JWTClaims{
		UserID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "jti-2",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	signed, err = expired.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = svc.ValidateToken(context.Background(), signed)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}

func TestAuthServiceCurrentUser(t *testing.T) {
	user := &models.User{ID: "u1", Name: "Ana", Email: "ana@escola.com"}
	svc, _, _, _ := newAuthFixture(t, user)

	info, err := svc.CurrentUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", info.Name)

	_, err = svc.CurrentUser(context.Background(), "gone")
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}
