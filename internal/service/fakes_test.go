package service

import (
	"context"
	"database/sql"
	"mime/multipart"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/lostfound-api/internal/models"
)

type mockAuditRepo struct {
	mu      sync.Mutex
	logs    []*models.AuditLog
	err     error
	listErr error
}

func (m *mockAuditRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.logs = append(m.logs, log)
	return nil
}

func (m *mockAuditRepo) ListByResource(ctx context.Context, resource, resourceID string) ([]models.AuditLog, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]models.AuditLog, 0)
	for _, l := range m.logs {
		if l.Resource == resource && l.ResourceID != nil && *l.ResourceID == resourceID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (m *mockAuditRepo) actions() []string {
	out := make([]string, 0, len(m.logs))
	for _, l := range m.logs {
		out = append(out, l.Action)
	}
	return out
}

type mockPhotos struct {
	saveErr error
	saved   []string
	removed []string
}

func (m *mockPhotos) Save(kind PhotoKind, field string, header *multipart.FileHeader) (string, error) {
	if m.saveErr != nil {
		return "", m.saveErr
	}
	ref := "/uploads/" + string(kind) + "/" + uuid.NewString() + ".jpg"
	m.saved = append(m.saved, ref)
	return ref, nil
}

func (m *mockPhotos) Remove(ctx context.Context, ref *string) {
	if ref == nil || *ref == "" {
		return
	}
	m.removed = append(m.removed, *ref)
}

type transition struct {
	from, to models.ItemStatus
}

type mockMetrics struct {
	logins      []bool
	created     []models.ItemStatus
	transitions []transition
	cleanups    []bool
}

func (m *mockMetrics) ObserveLogin(success bool) { m.logins = append(m.logins, success) }
func (m *mockMetrics) ObserveItemCreated(status models.ItemStatus) {
	m.created = append(m.created, status)
}
func (m *mockMetrics) ObserveItemTransition(from, to models.ItemStatus) {
	m.transitions = append(m.transitions, transition{from: from, to: to})
}
func (m *mockMetrics) ObservePhotoCleanup(success bool) { m.cleanups = append(m.cleanups, success) }

// mockItemRepo mimics the conditional writes of the SQL repository.
type mockItemRepo struct {
	items     map[string]*models.Item
	lastList  models.ItemFilter
	listErr   error
	createErr error
	overdue   []models.StatusChange

	// closeBeforeWrite simulates a concurrent transition landing between load and write.
	closeBeforeWrite bool
}

func newMockItemRepo(items ...*models.Item) *mockItemRepo {
	repo := &mockItemRepo{items: make(map[string]*models.Item)}
	for _, item := range items {
		repo.items[item.ID] = item
	}
	return repo
}

func (m *mockItemRepo) List(ctx context.Context, filter models.ItemFilter) ([]models.Item, int, error) {
	m.lastList = filter
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	out := make([]models.Item, 0, len(m.items))
	for _, item := range m.items {
		if filter.OwnerID != "" && item.OwnerID != filter.OwnerID {
			continue
		}
		if filter.Status != nil && item.Status != *filter.Status {
			continue
		}
		out = append(out, *item)
	}
	return out, len(out), nil
}

func (m *mockItemRepo) FindByID(ctx context.Context, id string) (*models.Item, error) {
	item, ok := m.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *item
	return &copy, nil
}

func (m *mockItemRepo) Create(ctx context.Context, item *models.Item) error {
	if m.createErr != nil {
		return m.createErr
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item.CreatedAt = time.Now().UTC()
	copy := *item
	m.items[item.ID] = &copy
	return nil
}

func (m *mockItemRepo) open(id string) (*models.Item, error) {
	if m.closeBeforeWrite {
		if item, ok := m.items[id]; ok {
			item.Status = models.StatusDelivered
		}
	}
	item, ok := m.items[id]
	if !ok || item.Status.IsTerminal() {
		return nil, sql.ErrNoRows
	}
	return item, nil
}

func (m *mockItemRepo) Update(ctx context.Context, id string, changes models.ItemChanges) error {
	item, err := m.open(id)
	if err != nil {
		return err
	}
	item.Name = changes.Name
	item.Description = changes.Description
	item.Location = changes.Location
	item.OccurredOn = changes.OccurredOn
	item.Shift = changes.Shift
	item.Category = changes.Category
	item.PhotoURL = changes.PhotoURL
	item.Status = changes.Status
	return nil
}

func (m *mockItemRepo) Delete(ctx context.Context, id string) error {
	if _, err := m.open(id); err != nil {
		return err
	}
	delete(m.items, id)
	return nil
}

func (m *mockItemRepo) Deliver(ctx context.Context, id, recipientName string, recipientMatricula *string, at time.Time) error {
	item, err := m.open(id)
	if err != nil {
		return err
	}
	item.Status = models.StatusDelivered
	item.RecipientName = &recipientName
	item.RecipientMatricula = recipientMatricula
	item.DeliveredAt = &at
	return nil
}

func (m *mockItemRepo) Expire(ctx context.Context, id string, at time.Time) error {
	item, err := m.open(id)
	if err != nil {
		return err
	}
	item.Status = models.StatusExpired
	return nil
}

func (m *mockItemRepo) ExpireOverdue(ctx context.Context, months int, today time.Time) ([]models.StatusChange, error) {
	for _, change := range m.overdue {
		if item, ok := m.items[change.ID]; ok {
			item.Status = models.StatusExpired
		}
	}
	return m.overdue, nil
}

func openItem(owner string, status models.ItemStatus) *models.Item {
	return &models.Item{
		ID:          uuid.NewString(),
		Name:        "Guarda-chuva",
		Description: "Preto com cabo de madeira",
		Location:    "Biblioteca",
		OccurredOn:  time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		Status:      status,
		OwnerID:     owner,
	}
}
