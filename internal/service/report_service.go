package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lostfound-api/internal/models"
	appErrors "github.com/noah-isme/lostfound-api/pkg/errors"
	"github.com/noah-isme/lostfound-api/pkg/export"
)

// MaxExportRows caps the number of items written to a single report.
const MaxExportRows = 5000

// ReportFormat enumerates supported export formats.
type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

type itemLister interface {
	List(ctx context.Context, filter models.ItemFilter) ([]models.Item, int, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// Report is a rendered export ready to be streamed.
type Report struct {
	Filename    string
	ContentType string
	Data        []byte
	Rows        int
}

var reportHeaders = []string{
	"ID", "Nome", "Status", "Categoria", "Local", "Data", "Turno",
	"Registrado por", "Recebedor", "Matrícula recebedor", "Entregue em", "Prazo retirada",
}

// ReportService renders the catalog into downloadable reports for administrators.
type ReportService struct {
	items   itemLister
	filters *ItemService
	csv     csvRenderer
	pdf     pdfRenderer
	logger  *zap.Logger
	now     func() time.Time
}

// NewReportService constructs a ReportService. filters supplies query parsing and deadline rules.
func NewReportService(items itemLister, filters *ItemService, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ReportService{
		items:   items,
		filters: filters,
		csv:     csv,
		pdf:     pdf,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Export renders every item matching query, up to MaxExportRows, as CSV or PDF.
func (s *ReportService) Export(ctx context.Context, actor models.Actor, query models.ItemQuery, format string) (*Report, error) {
	if err := RequireAdmin(actor, "export reports"); err != nil {
		return nil, err
	}
	reportFormat := ReportFormat(strings.ToLower(strings.TrimSpace(format)))
	if reportFormat == "" {
		reportFormat = ReportFormatCSV
	}
	if reportFormat != ReportFormatCSV && reportFormat != ReportFormatPDF {
		return nil, appErrors.Field("format", "must be one of csv, pdf")
	}

	query.Page, query.PageSize = 0, 0
	filter, err := s.filters.filterFromQuery(query)
	if err != nil {
		return nil, err
	}
	filter.Limit = MaxExportRows

	items, total, err := s.items.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load items")
	}
	if total > len(items) {
		s.logger.Warn("report truncated", zap.Int("total", total), zap.Int("rows", len(items)))
	}

	dataset := s.dataset(items)
	var (
		payload     []byte
		contentType string
	)
	switch reportFormat {
	case ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, "Relatório de Itens Achados e Perdidos")
		contentType = "application/pdf"
	default:
		payload, err = s.csv.Render(dataset)
		contentType = "text/csv; charset=utf-8"
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}

	return &Report{
		Filename:    fmt.Sprintf("relatorio_itens_%s.%s", s.now().Format("20060102_150405"), reportFormat),
		ContentType: contentType,
		Data:        payload,
		Rows:        len(items),
	}, nil
}

func (s *ReportService) dataset(items []models.Item) export.Dataset {
	rows := make([]map[string]string, 0, len(items))
	for i := range items {
		item := &items[i]
		s.filters.decorate(item)
		row := map[string]string{
			"ID":                  item.ID,
			"Nome":                item.Name,
			"Status":              string(item.Status),
			"Categoria":           deref(item.Category),
			"Local":               item.Location,
			"Data":                item.OccurredOn.Format("02/01/2006"),
			"Turno":               "",
			"Registrado por":      deref(item.OwnerName),
			"Recebedor":           deref(item.RecipientName),
			"Matrícula recebedor": deref(item.RecipientMatricula),
			"Entregue em":         "",
			"Prazo retirada":      item.PickupDeadline.Format("02/01/2006"),
		}
		if item.Shift != nil {
			row["Turno"] = string(*item.Shift)
		}
		if item.DeliveredAt != nil {
			row["Entregue em"] = item.DeliveredAt.Format("02/01/2006 15:04")
		}
		rows = append(rows, row)
	}
	return export.Dataset{Headers: reportHeaders, Rows: rows}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
