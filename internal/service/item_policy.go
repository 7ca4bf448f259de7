package service

import (
	"fmt"

	"github.com/noah-isme/lostfound-api/internal/models"
	appErrors "github.com/noah-isme/lostfound-api/pkg/errors"
)

// ItemAction names an operation subject to the item policy.
type ItemAction string

const (
	ItemActionRead    ItemAction = "read"
	ItemActionEdit    ItemAction = "edit"
	ItemActionDelete  ItemAction = "delete"
	ItemActionDeliver ItemAction = "deliver"
	ItemActionExpire  ItemAction = "expire"
	ItemActionHistory ItemAction = "history"
)

// AuthorizeItem decides whether actor may perform action on item.
// Permission is checked before state: a caller without rights always gets FORBIDDEN,
// a permitted caller acting on a terminal item gets INVALID_STATE_TRANSITION.
func AuthorizeItem(actor models.Actor, item *models.Item, action ItemAction) error {
	if !permitted(actor, item, action) {
		return appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("not allowed to %s this item", action))
	}
	if mutates(action) && item.Status.IsTerminal() {
		return appErrors.Clone(appErrors.ErrInvalidStateTransition, fmt.Sprintf("item is already %s", item.Status))
	}
	return nil
}

// AllowedActions lists the state-changing actions actor may currently perform on item.
func AllowedActions(actor models.Actor, item *models.Item) []ItemAction {
	out := make([]ItemAction, 0, 4)
	for _, action := range []ItemAction{ItemActionEdit, ItemActionDelete, ItemActionDeliver, ItemActionExpire} {
		if AuthorizeItem(actor, item, action) == nil {
			out = append(out, action)
		}
	}
	return out
}

// RequireAdmin guards admin-only operations that are not tied to a single item.
func RequireAdmin(actor models.Actor, operation string) error {
	if actor.IsAdmin() {
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("only administrators can %s", operation))
}

func permitted(actor models.Actor, item *models.Item, action ItemAction) bool {
	switch action {
	case ItemActionRead:
		return true
	case ItemActionEdit, ItemActionDelete, ItemActionHistory:
		return actor.IsAdmin() || (actor.ID != "" && actor.ID == item.OwnerID)
	case ItemActionDeliver, ItemActionExpire:
		return actor.IsAdmin()
	}
	return false
}

func mutates(action ItemAction) bool {
	switch action {
	case ItemActionEdit, ItemActionDelete, ItemActionDeliver, ItemActionExpire:
		return true
	}
	return false
}
