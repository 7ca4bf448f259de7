package handler

import (
	"context"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lostfound-api/internal/models"
	"github.com/noah-isme/lostfound-api/internal/service"
	appErrors "github.com/noah-isme/lostfound-api/pkg/errors"
	"github.com/noah-isme/lostfound-api/pkg/response"
)

const itemPhotoField = "foto_item"

type itemService interface {
	List(ctx context.Context, query models.ItemQuery) ([]models.Item, *models.Pagination, error)
	Mine(ctx context.Context, actor models.Actor, query models.ItemQuery) ([]models.Item, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Item, error)
	Create(ctx context.Context, actor models.Actor, req models.CreateItemRequest, photo *multipart.FileHeader, meta models.RequestMeta) (*models.Item, error)
	Update(ctx context.Context, actor models.Actor, id string, req models.UpdateItemRequest, photo *multipart.FileHeader, meta models.RequestMeta) (*models.Item, error)
	Delete(ctx context.Context, actor models.Actor, id string, meta models.RequestMeta) error
	Deliver(ctx context.Context, actor models.Actor, id string, req models.DeliverItemRequest, meta models.RequestMeta) (*models.Item, error)
	Expire(ctx context.Context, actor models.Actor, id string, meta models.RequestMeta) (*models.Item, error)
	ExpireOverdue(ctx context.Context, actor models.Actor, meta models.RequestMeta) (*models.ExpireResult, error)
	History(ctx context.Context, actor models.Actor, id string) ([]models.AuditLog, error)
}

type reportService interface {
	Export(ctx context.Context, actor models.Actor, query models.ItemQuery, format string) (*service.Report, error)
}

// ItemHandler exposes the catalog and item lifecycle endpoints.
type ItemHandler struct {
	items   itemService
	reports reportService
}

// NewItemHandler constructs an ItemHandler.
func NewItemHandler(items itemService, reports reportService) *ItemHandler {
	return &ItemHandler{items: items, reports: reports}
}

// List godoc
// @Summary List items
// @Description Public catalog with status, category and text filters
// @Tags Items
// @Produce json
// @Param status query string false "achado|perdido|entregue|expirado|todos"
// @Param category query string false "Category or todos"
// @Param search query string false "Matches name, description or location"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size (max 100)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /items [get]
func (h *ItemHandler) List(c *gin.Context) {
	query, ok := bindItemQuery(c)
	if !ok {
		return
	}
	items, pagination, err := h.items.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Mine godoc
// @Summary List my items
// @Description Items registered by the authenticated user
// @Tags Items
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /items/mine [get]
func (h *ItemHandler) Mine(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	query, ok := bindItemQuery(c)
	if !ok {
		return
	}
	items, pagination, err := h.items.Mine(c.Request.Context(), actor, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get item
// @Description Public. With a token, meta.actions lists what the caller may do with the item.
// @Tags Items
// @Produce json
// @Param id path string true "Item ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /items/{id} [get]
func (h *ItemHandler) Get(c *gin.Context) {
	item, err := h.items.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if actor, ok := actorFromContext(c); ok {
		response.JSON(c, http.StatusOK, item, nil, map[string]interface{}{"actions": service.AllowedActions(actor, item)})
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Options godoc
// @Summary Item form options
// @Description Statuses, suggested categories and shifts
// @Tags Items
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /items/options [get]
func (h *ItemHandler) Options(c *gin.Context) {
	response.JSON(c, http.StatusOK, models.ItemOptions{
		Statuses:   models.ItemStatuses,
		Categories: models.ItemCategories,
		Shifts:     models.ItemShifts,
	}, nil)
}

// Create godoc
// @Summary Register item
// @Description Multipart form (optional foto_item file) or JSON body
// @Tags Items
// @Accept multipart/form-data,json
// @Produce json
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /items [post]
func (h *ItemHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req models.CreateItemRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, bindError(err, "invalid item payload"))
		return
	}
	photo, err := uploadedFile(c, itemPhotoField)
	if err != nil {
		response.Error(c, err)
		return
	}

	item, err := h.items.Create(c.Request.Context(), actor, req, photo, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Update godoc
// @Summary Edit item
// @Description Partial update by the owner or an admin while the item is open
// @Tags Items
// @Accept multipart/form-data,json
// @Produce json
// @Param id path string true "Item ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /items/{id} [put]
func (h *ItemHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req models.UpdateItemRequest
	if err := c.ShouldBind(&req); err != nil && !emptyBody(err) {
		response.Error(c, bindError(err, "invalid item payload"))
		return
	}
	photo, err := uploadedFile(c, itemPhotoField)
	if err != nil {
		response.Error(c, err)
		return
	}

	item, err := h.items.Update(c.Request.Context(), actor, c.Param("id"), req, photo, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Delete godoc
// @Summary Delete item
// @Tags Items
// @Produce json
// @Param id path string true "Item ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /items/{id} [delete]
func (h *ItemHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.items.Delete(c.Request.Context(), actor, c.Param("id"), requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "item deleted")
}

// Deliver godoc
// @Summary Deliver item
// @Description Admin hands the item over to whoever picks it up
// @Tags Items
// @Accept json
// @Produce json
// @Param id path string true "Item ID"
// @Param payload body models.DeliverItemRequest true "Recipient"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /items/{id}/deliver [put]
func (h *ItemHandler) Deliver(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req models.DeliverItemRequest
	if err := c.ShouldBindJSON(&req); err != nil && !emptyBody(err) {
		response.Error(c, bindError(err, "invalid delivery payload"))
		return
	}

	item, err := h.items.Deliver(c.Request.Context(), actor, c.Param("id"), req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Expire godoc
// @Summary Expire item
// @Tags Items
// @Produce json
// @Param id path string true "Item ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /items/{id}/expire [put]
func (h *ItemHandler) Expire(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	item, err := h.items.Expire(c.Request.Context(), actor, c.Param("id"), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// ExpireOverdue godoc
// @Summary Expire overdue items
// @Description Expires every open item past its pickup deadline
// @Tags Items
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /items/expire-overdue [post]
func (h *ItemHandler) ExpireOverdue(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.items.ExpireOverdue(c.Request.Context(), actor, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// History godoc
// @Summary Item audit trail
// @Tags Items
// @Produce json
// @Param id path string true "Item ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /items/{id}/history [get]
func (h *ItemHandler) History(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	logs, err := h.items.History(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, nil)
}

// Export godoc
// @Summary Export items report
// @Description CSV or PDF of the filtered catalog
// @Tags Items
// @Produce text/csv,application/pdf
// @Param format query string false "csv|pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /items/export [get]
func (h *ItemHandler) Export(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	query, ok := bindItemQuery(c)
	if !ok {
		return
	}
	report, err := h.reports.Export(c.Request.Context(), actor, query, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, report.Filename, report.ContentType, report.Data)
}

func bindItemQuery(c *gin.Context) (models.ItemQuery, bool) {
	var query models.ItemQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err, "invalid query parameters"))
		return query, false
	}
	return query, true
}
