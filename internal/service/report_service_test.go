package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/lostfound-api/internal/models"
	appErrors "github.com/noah-isme/lostfound-api/pkg/errors"
)

func TestReportServiceExportCSV(t *testing.T) {
	delivered := openItem(owner.ID, models.StatusDelivered)
	recipient := "Ana Souza"
	at := time.Date(2025, 4, 2, 9, 30, 0, 0, time.UTC)
	delivered.RecipientName = &recipient
	delivered.DeliveredAt = &at
	f := newItemFixture(delivered, openItem(owner.ID, models.StatusFound))
	svc := NewReportService(f.repo, f.svc, zap.NewNop(), nil, nil)
	svc.now = func() time.Time { return time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC) }

	report, err := svc.Export(context.Background(), admin, models.ItemQuery{Status: "entregue", Page: 3}, "")
	require.NoError(t, err)

	assert.Equal(t, "relatorio_itens_20250601_080000.csv", report.Filename)
	assert.Equal(t, "text/csv; charset=utf-8", report.ContentType)
	assert.Equal(t, 1, report.Rows)
	assert.Equal(t, MaxExportRows, f.repo.lastList.Limit)
	assert.Contains(t, string(report.Data), "Ana Souza")
	assert.Contains(t, string(report.Data), "02/04/2025 09:30")
	assert.Contains(t, string(report.Data), "10/06/2025", "pickup deadline is three months after the found date")
}

func TestReportServiceExportPDF(t *testing.T) {
	f := newItemFixture(openItem(owner.ID, models.StatusFound))
	svc := NewReportService(f.repo, f.svc, zap.NewNop(), nil, nil)

	report, err := svc.Export(context.Background(), admin, models.ItemQuery{}, "PDF")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", report.ContentType)
	assert.True(t, bytes.HasPrefix(report.Data, []byte("%PDF")))
}

func TestReportServiceExportRejects(t *testing.T) {
	f := newItemFixture()
	svc := NewReportService(f.repo, f.svc, zap.NewNop(), nil, nil)

	_, err := svc.Export(context.Background(), owner, models.ItemQuery{}, "csv")
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = svc.Export(context.Background(), admin, models.ItemQuery{}, "xlsx")
	require.Error(t, err)
	assert.Contains(t, appErrors.FromError(err).Fields, "format")

	f.repo.listErr = errors.New("db down")
	_, err = svc.Export(context.Background(), admin, models.ItemQuery{}, "csv")
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
}
