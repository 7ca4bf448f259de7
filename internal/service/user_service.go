package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"mime/multipart"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/lostfound-api/internal/models"
	appErrors "github.com/noah-isme/lostfound-api/pkg/errors"
)

// minSearchTerm is the shortest term accepted by the user search.
const minSearchTerm = 2

type userRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	EmailTaken(ctx context.Context, email, excludeID string) (bool, error)
	MatriculaTaken(ctx context.Context, matricula, excludeID string) (bool, error)
	Search(ctx context.Context, term string, limit int) ([]models.UserSummary, error)
	UpdateProfile(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdatePhoto(ctx context.Context, id string, photoURL *string) error
}

type photoManager interface {
	Save(kind PhotoKind, field string, header *multipart.FileHeader) (string, error)
	Remove(ctx context.Context, ref *string)
}

// UserService handles profile workflows of the signed-in user and the admin user search.
type UserService struct {
	repo      userRepository
	photos    photoManager
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, photos photoManager, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	return &UserService{repo: repo, photos: photos, audit: audit, validator: validate, logger: logger}
}

// Search finds accounts by name or matricula. Admin only.
func (s *UserService) Search(ctx context.Context, actor models.Actor, term string) ([]models.UserSummary, error) {
	if err := RequireAdmin(actor, "search users"); err != nil {
		return nil, err
	}
	term = strings.TrimSpace(term)
	if len([]rune(term)) < minSearchTerm {
		return nil, appErrors.Field("searchTerm", "must be at least 2 characters")
	}
	users, err := s.repo.Search(ctx, term, 20)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to search users")
	}
	return users, nil
}

// UpdateProfile changes name, email and matricula of the caller.
func (s *UserService) UpdateProfile(ctx context.Context, actor models.Actor, req models.UpdateProfileRequest, meta models.RequestMeta) (*models.UserInfo, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Matricula = strings.TrimSpace(req.Matricula)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid profile payload")
	}

	user, err := s.load(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	if req.Email != user.Email {
		taken, err := s.repo.EmailTaken(ctx, req.Email, user.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
		}
		if taken {
			return nil, duplicateConflict(models.ErrDuplicateEmail)
		}
	}
	if req.Matricula != "" {
		taken, err := s.repo.MatriculaTaken(ctx, req.Matricula, user.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check matricula")
		}
		if taken {
			return nil, duplicateConflict(models.ErrDuplicateMatricula)
		}
	}

	oldPayload, _ := json.Marshal(map[string]interface{}{"nome": user.Name, "email": user.Email, "matricula": user.Matricula})

	user.Name = req.Name
	user.Email = req.Email
	user.Matricula = optional(req.Matricula)
	if err := s.repo.UpdateProfile(ctx, user); err != nil {
		if conflict := duplicateConflict(err); conflict != nil {
			return nil, conflict
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "user no longer exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update profile")
	}

	newPayload, _ := json.Marshal(map[string]interface{}{"nome": user.Name, "email": user.Email, "matricula": user.Matricula})
	recordAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:     &user.ID,
		Action:     models.AuditActionUserUpdate,
		Resource:   models.AuditResourceUser,
		ResourceID: &user.ID,
		OldValues:  oldPayload,
		NewValues:  newPayload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	})

	info := user.Info()
	return &info, nil
}

// ChangePassword replaces the caller's password after checking the current one.
func (s *UserService) ChangePassword(ctx context.Context, actor models.Actor, req models.ChangePasswordRequest, meta models.RequestMeta) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Validation(err, "invalid password payload")
	}

	user, err := s.load(ctx, actor.ID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return appErrors.Field("currentPassword", "current password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	if err := s.repo.UpdatePassword(ctx, user.ID, string(hash)); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update password")
	}

	recordAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:     &user.ID,
		Action:     models.AuditActionPasswordChange,
		Resource:   models.AuditResourceUser,
		ResourceID: &user.ID,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	})
	return nil
}

// UpdatePhoto stores a new profile photo and discards the previous one.
func (s *UserService) UpdatePhoto(ctx context.Context, actor models.Actor, header *multipart.FileHeader, meta models.RequestMeta) (*models.UserInfo, error) {
	user, err := s.load(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	ref, err := s.photos.Save(PhotoKindProfile, "profileImage", header)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdatePhoto(ctx, user.ID, &ref); err != nil {
		s.photos.Remove(ctx, &ref)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update photo")
	}

	previous := user.PhotoURL
	user.PhotoURL = &ref
	s.photos.Remove(ctx, previous)

	newPayload, _ := json.Marshal(map[string]interface{}{"foto_perfil_url": ref})
	recordAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:     &user.ID,
		Action:     models.AuditActionUserUpdate,
		Resource:   models.AuditResourceUser,
		ResourceID: &user.ID,
		NewValues:  newPayload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	})

	info := user.Info()
	return &info, nil
}

func (s *UserService) load(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "user no longer exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}
