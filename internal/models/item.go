package models

import (
	"fmt"
	"strings"
	"time"
)

// ItemStatus is the closed set of lifecycle states of a catalogued item.
type ItemStatus string

const (
	StatusFound     ItemStatus = "achado"
	StatusLost      ItemStatus = "perdido"
	StatusDelivered ItemStatus = "entregue"
	StatusExpired   ItemStatus = "expirado"
)

// ItemStatuses lists every status in display order.
var ItemStatuses = []ItemStatus{StatusFound, StatusLost, StatusDelivered, StatusExpired}

// ParseItemStatus converts raw input into an ItemStatus. Matching is case-insensitive.
func ParseItemStatus(raw string) (ItemStatus, error) {
	s := ItemStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown item status %q", raw)
	}
	return s, nil
}

// Valid reports whether s is a known status.
func (s ItemStatus) Valid() bool {
	switch s {
	case StatusFound, StatusLost, StatusDelivered, StatusExpired:
		return true
	}
	return false
}

// IsInitial reports whether an item may be created in status s.
func (s ItemStatus) IsInitial() bool {
	return s == StatusFound || s == StatusLost
}

// IsTerminal reports whether s admits no further transitions.
func (s ItemStatus) IsTerminal() bool {
	return s == StatusDelivered || s == StatusExpired
}

// CanTransition reports whether an item may move from s to next.
// Initial states toggle between each other and may end in either terminal state.
func (s ItemStatus) CanTransition(next ItemStatus) bool {
	if !s.IsInitial() || !next.Valid() {
		return false
	}
	return next != s
}

// ItemShift is the period of the day an item was found.
type ItemShift string

const (
	ShiftMorning   ItemShift = "manha"
	ShiftAfternoon ItemShift = "tarde"
	ShiftNight     ItemShift = "noite"
)

// ItemShifts lists every shift in day order.
var ItemShifts = []ItemShift{ShiftMorning, ShiftAfternoon, ShiftNight}

// ItemCategories are the suggested categories offered to clients. Free text is accepted.
var ItemCategories = []string{
	"Eletrônicos",
	"Vestuário",
	"Documentos",
	"Acessórios",
	"Livros/Material Escolar",
	"Chaves",
	"Outros",
}

// DateLayout is the wire format of data_encontrado.
const DateLayout = "2006-01-02"

// Item is a catalogued found or lost object stored in the itens table.
type Item struct {
	ID                 string     `db:"id" json:"id"`
	Name               string     `db:"nome_item" json:"nome_item"`
	Description        string     `db:"descricao" json:"descricao"`
	Location           string     `db:"local_encontrado" json:"local_encontrado"`
	OccurredOn         time.Time  `db:"data_encontrado" json:"data_encontrado"`
	Shift              *ItemShift `db:"turno_encontrado" json:"turno_encontrado,omitempty"`
	Category           *string    `db:"categoria" json:"categoria,omitempty"`
	PhotoURL           *string    `db:"foto_item_url" json:"foto_item_url,omitempty"`
	Status             ItemStatus `db:"status" json:"status"`
	OwnerID            string     `db:"id_usuario_encontrou" json:"id_usuario_encontrou"`
	OwnerName          *string    `db:"nome_usuario_encontrou" json:"nome_usuario_encontrou,omitempty"`
	CreatedAt          time.Time  `db:"data_cadastro_item" json:"data_cadastro_item"`
	DeliveredAt        *time.Time `db:"data_entrega" json:"data_entrega,omitempty"`
	RecipientName      *string    `db:"nome_pessoa_retirou" json:"nome_pessoa_retirou,omitempty"`
	RecipientMatricula *string    `db:"matricula_recebedor" json:"matricula_recebedor,omitempty"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
	PickupDeadline     time.Time  `db:"-" json:"prazo_retirada"`
}

// DeadlineAfter returns the last day the item may be claimed given an expiry window in months.
func (i *Item) DeadlineAfter(months int) time.Time {
	return i.OccurredOn.AddDate(0, months, 0)
}

// ItemFilter captures list/search criteria.
type ItemFilter struct {
	Status   *ItemStatus
	Category string
	Search   string
	OwnerID  string
	Page     int
	PageSize int
	// Limit replaces pagination when positive, used by exports.
	Limit int
}

// ItemQuery is the raw query string of the catalog endpoints. "todos" means no filter.
type ItemQuery struct {
	Status   string `form:"status" json:"status"`
	Category string `form:"category" json:"category"`
	Search   string `form:"search" json:"search"`
	Page     int    `form:"page" json:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"page_size" json:"page_size" validate:"omitempty,min=1,max=100"`
}

// StatusChange reports one item moved by a bulk transition together with its previous status.
type StatusChange struct {
	ID   string     `db:"id" json:"id"`
	From ItemStatus `db:"status" json:"from"`
}

// CreateItemRequest is the multipart or JSON body of POST /items.
type CreateItemRequest struct {
	Name        string `form:"nome_item" json:"nome_item" validate:"required,max=255"`
	Description string `form:"descricao" json:"descricao" validate:"required"`
	Location    string `form:"local_encontrado" json:"local_encontrado" validate:"required,max=255"`
	OccurredOn  string `form:"data_encontrado" json:"data_encontrado" validate:"required,datetime=2006-01-02"`
	Shift       string `form:"turno_encontrado" json:"turno_encontrado" validate:"omitempty,oneof=manha tarde noite"`
	Category    string `form:"categoria" json:"categoria" validate:"omitempty,max=100"`
	Status      string `form:"status" json:"status" validate:"required,oneof=achado perdido"`
}

// UpdateItemRequest is the partial body of PUT /items/:id. Nil fields are left untouched.
type UpdateItemRequest struct {
	Name        *string `form:"nome_item" json:"nome_item" validate:"omitempty,max=255"`
	Description *string `form:"descricao" json:"descricao"`
	Location    *string `form:"local_encontrado" json:"local_encontrado" validate:"omitempty,max=255"`
	OccurredOn  *string `form:"data_encontrado" json:"data_encontrado" validate:"omitempty,datetime=2006-01-02"`
	Shift       *string `form:"turno_encontrado" json:"turno_encontrado" validate:"omitempty,oneof=manha tarde noite"`
	Category    *string `form:"categoria" json:"categoria" validate:"omitempty,max=100"`
	Status      *string `form:"status" json:"status"`
}

// DeliverItemRequest records who picked an item up.
type DeliverItemRequest struct {
	RecipientName      string `json:"nome_pessoa_retirou" validate:"required,max=255"`
	RecipientMatricula string `json:"matricula_recebedor" validate:"omitempty,max=50"`
}

// ItemChanges is the column set written by an edit.
type ItemChanges struct {
	Name        string
	Description string
	Location    string
	OccurredOn  time.Time
	Shift       *ItemShift
	Category    *string
	PhotoURL    *string
	Status      ItemStatus
}

// ItemOptions are the choice lists of the item form.
type ItemOptions struct {
	Statuses   []ItemStatus `json:"statuses"`
	Categories []string     `json:"categories"`
	Shifts     []ItemShift  `json:"shifts"`
}

// ExpireResult reports the outcome of an expiry sweep.
type ExpireResult struct {
	Today   string   `json:"today"`
	Months  int      `json:"months"`
	Expired []string `json:"expired_ids"`
}
