package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"mime/multipart"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/lostfound-api/internal/models"
	appErrors "github.com/noah-isme/lostfound-api/pkg/errors"
)

// SystemActor performs scheduled maintenance such as the expiry sweep.
var SystemActor = models.Actor{Role: models.RoleAdmin}

const (
	defaultPage     = 1
	defaultPageSize = 20
)

type itemRepository interface {
	List(ctx context.Context, filter models.ItemFilter) ([]models.Item, int, error)
	FindByID(ctx context.Context, id string) (*models.Item, error)
	Create(ctx context.Context, item *models.Item) error
	Update(ctx context.Context, id string, changes models.ItemChanges) error
	Delete(ctx context.Context, id string) error
	Deliver(ctx context.Context, id, recipientName string, recipientMatricula *string, at time.Time) error
	Expire(ctx context.Context, id string, at time.Time) error
	ExpireOverdue(ctx context.Context, months int, today time.Time) ([]models.StatusChange, error)
}

type auditTrail interface {
	auditRecorder
	ListByResource(ctx context.Context, resource, resourceID string) ([]models.AuditLog, error)
}

type itemObserver interface {
	ObserveItemCreated(status models.ItemStatus)
	ObserveItemTransition(from, to models.ItemStatus)
}

// ItemConfig tunes the item lifecycle.
type ItemConfig struct {
	ExpiryMonths int
}

// ItemService implements the catalog and the item lifecycle.
type ItemService struct {
	repo      itemRepository
	photos    photoManager
	audit     auditTrail
	metrics   itemObserver
	validator *validator.Validate
	logger    *zap.Logger
	config    ItemConfig
	now       func() time.Time
}

// NewItemService constructs an ItemService.
func NewItemService(repo itemRepository, photos photoManager, audit auditTrail, metrics itemObserver, validate *validator.Validate, logger *zap.Logger, config ItemConfig) *ItemService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if config.ExpiryMonths <= 0 {
		config.ExpiryMonths = 3
	}
	return &ItemService{
		repo:      repo,
		photos:    photos,
		audit:     audit,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		config:    config,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// List returns the public catalog page matching query.
func (s *ItemService) List(ctx context.Context, query models.ItemQuery) ([]models.Item, *models.Pagination, error) {
	filter, err := s.filterFromQuery(query)
	if err != nil {
		return nil, nil, err
	}
	return s.list(ctx, filter)
}

// Mine returns the items registered by the caller.
func (s *ItemService) Mine(ctx context.Context, actor models.Actor, query models.ItemQuery) ([]models.Item, *models.Pagination, error) {
	filter, err := s.filterFromQuery(query)
	if err != nil {
		return nil, nil, err
	}
	filter.OwnerID = actor.ID
	return s.list(ctx, filter)
}

func (s *ItemService) list(ctx context.Context, filter models.ItemFilter) ([]models.Item, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list items")
	}
	for i := range items {
		s.decorate(&items[i])
	}
	return items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// filterFromQuery validates raw catalog parameters and applies defaults.
func (s *ItemService) filterFromQuery(query models.ItemQuery) (models.ItemFilter, error) {
	if err := s.validator.Struct(query); err != nil {
		return models.ItemFilter{}, appErrors.Validation(err, "invalid query parameters")
	}
	filter := models.ItemFilter{
		Search:   strings.TrimSpace(query.Search),
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	if filter.Page == 0 {
		filter.Page = defaultPage
	}
	if filter.PageSize == 0 {
		filter.PageSize = defaultPageSize
	}
	if raw := strings.TrimSpace(query.Status); raw != "" && !strings.EqualFold(raw, "todos") {
		status, err := models.ParseItemStatus(raw)
		if err != nil {
			return models.ItemFilter{}, appErrors.Field("status", "must be one of achado, perdido, entregue, expirado")
		}
		filter.Status = &status
	}
	if category := strings.TrimSpace(query.Category); category != "" && !strings.EqualFold(category, "todos") {
		filter.Category = category
	}
	return filter, nil
}

// Get returns a single item. Reading is public.
func (s *ItemService) Get(ctx context.Context, id string) (*models.Item, error) {
	item, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.decorate(item)
	return item, nil
}

// Create registers an item owned by the caller, with an optional photo.
func (s *ItemService) Create(ctx context.Context, actor models.Actor, req models.CreateItemRequest, photo *multipart.FileHeader, meta models.RequestMeta) (*models.Item, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	req.Location = strings.TrimSpace(req.Location)
	req.OccurredOn = strings.TrimSpace(req.OccurredOn)
	req.Shift = strings.ToLower(strings.TrimSpace(req.Shift))
	req.Category = strings.TrimSpace(req.Category)
	req.Status = strings.ToLower(strings.TrimSpace(req.Status))
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid item payload")
	}
	occurredOn, err := time.Parse(models.DateLayout, req.OccurredOn)
	if err != nil {
		return nil, appErrors.Field("data_encontrado", "must be a date formatted as 2006-01-02")
	}

	item := &models.Item{
		Name:        req.Name,
		Description: req.Description,
		Location:    req.Location,
		OccurredOn:  occurredOn,
		Shift:       shiftPtr(req.Shift),
		Category:    optional(req.Category),
		Status:      models.ItemStatus(req.Status),
		OwnerID:     actor.ID,
	}

	if photo != nil {
		ref, err := s.photos.Save(PhotoKindItem, "foto_item", photo)
		if err != nil {
			return nil, err
		}
		item.PhotoURL = &ref
	}

	if err := s.repo.Create(ctx, item); err != nil {
		s.photos.Remove(ctx, item.PhotoURL)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create item")
	}

	s.metrics.ObserveItemCreated(item.Status)
	s.recordItem(ctx, actor, item.ID, models.AuditActionItemCreate, nil, snapshot(item), meta)

	created, err := s.repo.FindByID(ctx, item.ID)
	if err != nil {
		s.logger.Warn("failed to reload created item", zap.String("item_id", item.ID), zap.Error(err))
		created = item
	}
	s.decorate(created)
	return created, nil
}

// Update applies a partial edit. Only the owner or an admin may edit, and only while the item is open.
// The status field may only toggle between achado and perdido; terminal states have dedicated operations.
func (s *ItemService) Update(ctx context.Context, actor models.Actor, id string, req models.UpdateItemRequest, photo *multipart.FileHeader, meta models.RequestMeta) (*models.Item, error) {
	item, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := AuthorizeItem(actor, item, ItemActionEdit); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid item payload")
	}

	changes, err := applyItemChanges(item, req)
	if err != nil {
		return nil, err
	}

	var newPhoto *string
	if photo != nil {
		ref, err := s.photos.Save(PhotoKindItem, "foto_item", photo)
		if err != nil {
			return nil, err
		}
		newPhoto = &ref
		changes.PhotoURL = newPhoto
	}

	if err := s.repo.Update(ctx, item.ID, changes); err != nil {
		s.photos.Remove(ctx, newPhoto)
		return nil, s.writeError(err, "failed to update item")
	}

	if newPhoto != nil {
		s.photos.Remove(ctx, item.PhotoURL)
	}
	if changes.Status != item.Status {
		s.metrics.ObserveItemTransition(item.Status, changes.Status)
	}
	s.recordItem(ctx, actor, item.ID, models.AuditActionItemUpdate, snapshot(item), changesSnapshot(changes), meta)

	return s.Get(ctx, item.ID)
}

// Delete removes an open item and its photo.
func (s *ItemService) Delete(ctx context.Context, actor models.Actor, id string, meta models.RequestMeta) error {
	item, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := AuthorizeItem(actor, item, ItemActionDelete); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, item.ID); err != nil {
		return s.writeError(err, "failed to delete item")
	}

	s.photos.Remove(ctx, item.PhotoURL)
	s.recordItem(ctx, actor, item.ID, models.AuditActionItemDelete, snapshot(item), nil, meta)
	return nil
}

// Deliver hands an open item over to the person picking it up. Admin only.
func (s *ItemService) Deliver(ctx context.Context, actor models.Actor, id string, req models.DeliverItemRequest, meta models.RequestMeta) (*models.Item, error) {
	item, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := AuthorizeItem(actor, item, ItemActionDeliver); err != nil {
		return nil, err
	}
	req.RecipientName = strings.TrimSpace(req.RecipientName)
	req.RecipientMatricula = strings.TrimSpace(req.RecipientMatricula)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid delivery payload")
	}

	at := s.now()
	if err := s.repo.Deliver(ctx, item.ID, req.RecipientName, optional(req.RecipientMatricula), at); err != nil {
		return nil, s.writeError(err, "failed to deliver item")
	}

	s.metrics.ObserveItemTransition(item.Status, models.StatusDelivered)
	s.recordItem(ctx, actor, item.ID, models.AuditActionItemDeliver,
		map[string]interface{}{"status": item.Status},
		map[string]interface{}{
			"status":              models.StatusDelivered,
			"nome_pessoa_retirou": req.RecipientName,
			"matricula_recebedor": optional(req.RecipientMatricula),
			"data_entrega":        at,
		}, meta)

	return s.Get(ctx, item.ID)
}

// Expire closes an open item that was never claimed. Admin only.
func (s *ItemService) Expire(ctx context.Context, actor models.Actor, id string, meta models.RequestMeta) (*models.Item, error) {
	item, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := AuthorizeItem(actor, item, ItemActionExpire); err != nil {
		return nil, err
	}
	if err := s.repo.Expire(ctx, item.ID, s.now()); err != nil {
		return nil, s.writeError(err, "failed to expire item")
	}

	s.metrics.ObserveItemTransition(item.Status, models.StatusExpired)
	s.recordItem(ctx, actor, item.ID, models.AuditActionItemExpire,
		map[string]interface{}{"status": item.Status},
		map[string]interface{}{"status": models.StatusExpired}, meta)

	return s.Get(ctx, item.ID)
}

// ExpireOverdue expires every open item past its pickup deadline. Admin or system only.
func (s *ItemService) ExpireOverdue(ctx context.Context, actor models.Actor, meta models.RequestMeta) (*models.ExpireResult, error) {
	if err := RequireAdmin(actor, "expire overdue items"); err != nil {
		return nil, err
	}
	today := s.now()
	changes, err := s.repo.ExpireOverdue(ctx, s.config.ExpiryMonths, today)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to expire overdue items")
	}

	result := &models.ExpireResult{
		Today:   today.Format(models.DateLayout),
		Months:  s.config.ExpiryMonths,
		Expired: make([]string, 0, len(changes)),
	}
	for _, change := range changes {
		result.Expired = append(result.Expired, change.ID)
		s.metrics.ObserveItemTransition(change.From, models.StatusExpired)
		s.recordItem(ctx, actor, change.ID, models.AuditActionItemExpire,
			map[string]interface{}{"status": change.From},
			map[string]interface{}{"status": models.StatusExpired, "reason": "overdue"}, meta)
	}
	s.logger.Info("expiry sweep finished", zap.Int("expired", len(result.Expired)), zap.Int("months", s.config.ExpiryMonths))
	return result, nil
}

// History returns the audit trail of an item to its owner or an admin.
func (s *ItemService) History(ctx context.Context, actor models.Actor, id string) ([]models.AuditLog, error) {
	item, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := AuthorizeItem(actor, item, ItemActionHistory); err != nil {
		return nil, err
	}
	logs, err := s.audit.ListByResource(ctx, models.AuditResourceItem, item.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load item history")
	}
	return logs, nil
}

func (s *ItemService) load(ctx context.Context, id string) (*models.Item, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "item not found")
	}
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "item not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load item")
	}
	return item, nil
}

// writeError maps a conditional write that matched no row. The item was loaded as open a moment
// earlier, so a concurrent transition closed it.
func (s *ItemService) writeError(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrInvalidStateTransition, "item status changed concurrently")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func (s *ItemService) decorate(item *models.Item) {
	item.PickupDeadline = item.DeadlineAfter(s.config.ExpiryMonths)
}

func (s *ItemService) recordItem(ctx context.Context, actor models.Actor, itemID, action string, oldValues, newValues interface{}, meta models.RequestMeta) {
	entry := &models.AuditLog{
		Action:     action,
		Resource:   models.AuditResourceItem,
		ResourceID: &itemID,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}
	if actor.ID != "" {
		entry.UserID = strPtr(actor.ID)
	}
	if oldValues != nil {
		entry.OldValues, _ = json.Marshal(oldValues)
	}
	if newValues != nil {
		entry.NewValues, _ = json.Marshal(newValues)
	}
	recordAudit(ctx, s.audit, s.logger, entry)
}

// applyItemChanges merges a partial edit onto the current item.
func applyItemChanges(item *models.Item, req models.UpdateItemRequest) (models.ItemChanges, error) {
	changes := models.ItemChanges{
		Name:        item.Name,
		Description: item.Description,
		Location:    item.Location,
		OccurredOn:  item.OccurredOn,
		Shift:       item.Shift,
		Category:    item.Category,
		PhotoURL:    item.PhotoURL,
		Status:      item.Status,
	}

	required := []struct {
		field string
		value *string
		dst   *string
	}{
		{"nome_item", req.Name, &changes.Name},
		{"descricao", req.Description, &changes.Description},
		{"local_encontrado", req.Location, &changes.Location},
	}
	for _, r := range required {
		if r.value == nil {
			continue
		}
		v := strings.TrimSpace(*r.value)
		if v == "" {
			return changes, appErrors.Field(r.field, "cannot be empty")
		}
		*r.dst = v
	}

	if req.OccurredOn != nil {
		occurredOn, err := time.Parse(models.DateLayout, strings.TrimSpace(*req.OccurredOn))
		if err != nil {
			return changes, appErrors.Field("data_encontrado", "must be a date formatted as 2006-01-02")
		}
		changes.OccurredOn = occurredOn
	}
	if req.Shift != nil {
		changes.Shift = shiftPtr(strings.ToLower(strings.TrimSpace(*req.Shift)))
	}
	if req.Category != nil {
		changes.Category = optional(*req.Category)
	}
	if req.Status != nil {
		status, err := models.ParseItemStatus(*req.Status)
		if err != nil || !status.IsInitial() {
			return changes, appErrors.Field("status", "can only be changed between achado and perdido")
		}
		if status != item.Status && !item.Status.CanTransition(status) {
			return changes, appErrors.Clone(appErrors.ErrInvalidStateTransition, "item status does not allow this change")
		}
		changes.Status = status
	}
	return changes, nil
}

func shiftPtr(raw string) *models.ItemShift {
	if raw == "" {
		return nil
	}
	shift := models.ItemShift(raw)
	return &shift
}

func snapshot(item *models.Item) map[string]interface{} {
	return map[string]interface{}{
		"nome_item":        item.Name,
		"descricao":        item.Description,
		"local_encontrado": item.Location,
		"data_encontrado":  item.OccurredOn.Format(models.DateLayout),
		"turno_encontrado": item.Shift,
		"categoria":        item.Category,
		"foto_item_url":    item.PhotoURL,
		"status":           item.Status,
	}
}

func changesSnapshot(changes models.ItemChanges) map[string]interface{} {
	return map[string]interface{}{
		"nome_item":        changes.Name,
		"descricao":        changes.Description,
		"local_encontrado": changes.Location,
		"data_encontrado":  changes.OccurredOn.Format(models.DateLayout),
		"turno_encontrado": changes.Shift,
		"categoria":        changes.Category,
		"foto_item_url":    changes.PhotoURL,
		"status":           changes.Status,
	}
}
