package handler

import (
	"context"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lostfound-api/internal/models"
	appErrors "github.com/noah-isme/lostfound-api/pkg/errors"
	"github.com/noah-isme/lostfound-api/pkg/response"
)

const profilePhotoField = "profileImage"

type userService interface {
	Search(ctx context.Context, actor models.Actor, term string) ([]models.UserSummary, error)
	UpdateProfile(ctx context.Context, actor models.Actor, req models.UpdateProfileRequest, meta models.RequestMeta) (*models.UserInfo, error)
	ChangePassword(ctx context.Context, actor models.Actor, req models.ChangePasswordRequest, meta models.RequestMeta) error
	UpdatePhoto(ctx context.Context, actor models.Actor, header *multipart.FileHeader, meta models.RequestMeta) (*models.UserInfo, error)
}

// UserHandler manages the profile of the signed-in user and the admin user search.
type UserHandler struct {
	service userService
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(svc userService) *UserHandler {
	return &UserHandler{service: svc}
}

// Search godoc
// @Summary Search users
// @Description Admin lookup by name or matricula
// @Tags Users
// @Produce json
// @Param searchTerm query string true "At least 2 characters"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /users/search [get]
func (h *UserHandler) Search(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	users, err := h.service.Search(c.Request.Context(), actor, c.Query("searchTerm"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, users, nil)
}

// UpdateProfile godoc
// @Summary Update profile
// @Tags Users
// @Accept json
// @Produce json
// @Param payload body models.UpdateProfileRequest true "Profile"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /users/me [put]
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid profile payload"))
		return
	}
	info, err := h.service.UpdateProfile(c.Request.Context(), actor, req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, info, nil)
}

// ChangePassword godoc
// @Summary Change password
// @Tags Users
// @Accept json
// @Produce json
// @Param payload body models.ChangePasswordRequest true "Passwords"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /users/me/password [put]
func (h *UserHandler) ChangePassword(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req models.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid password payload"))
		return
	}
	if err := h.service.ChangePassword(c.Request.Context(), actor, req, requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "password updated")
}

// UpdatePhoto godoc
// @Summary Upload profile photo
// @Tags Users
// @Accept multipart/form-data
// @Produce json
// @Param profileImage formData file true "Image"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /users/me/photo [post]
func (h *UserHandler) UpdatePhoto(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	header, err := uploadedFile(c, profilePhotoField)
	if err != nil {
		response.Error(c, err)
		return
	}
	info, err := h.service.UpdatePhoto(c.Request.Context(), actor, header, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, info, nil)
}
