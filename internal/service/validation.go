package service

import (
	"context"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lostfound-api/internal/models"
)

// NewValidator returns a validator that reports fields by their wire (json, then form) name.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})
	return v
}

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// recordAudit writes an audit entry. Failures are logged and never fail the caller.
func recordAudit(ctx context.Context, recorder auditRecorder, logger *zap.Logger, entry *models.AuditLog) {
	if recorder == nil {
		return
	}
	if err := recorder.CreateAuditLog(ctx, entry); err != nil {
		logger.Warn("failed to record audit log",
			zap.String("action", entry.Action),
			zap.String("resource", entry.Resource),
			zap.Error(err),
		)
	}
}

// noopMetrics stands in when no metrics sink is wired.
type noopMetrics struct{}

func (noopMetrics) ObserveLogin(bool) {}
func (noopMetrics) ObserveItemCreated(models.ItemStatus) {}
func (noopMetrics) ObserveItemTransition(from, to models.ItemStatus) {}
func (noopMetrics) ObservePhotoCleanup(bool) {}

func strPtr(s string) *string {
	return &s
}

// optional maps blank input to nil.
func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
