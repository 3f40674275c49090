package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/xamle/civic-api/internal/models"
	appErrors "github.com/xamle/civic-api/pkg/errors"
	"github.com/xamle/civic-api/pkg/export"
)

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type exportPolicyStore interface {
	ListPublished(ctx context.Context, limit int) ([]models.Policy, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	Enabled bool
	MaxRows int
	Title   string
}

// ExportFormat selects the rendered file type.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportService renders the published policy register as CSV or PDF.
type ExportService struct {
	policies exportPolicyStore
	csv      csvRenderer
	pdf      pdfRenderer
	logger   *zap.Logger
	cfg      ExportConfig
}

// NewExportService constructs the service.
func NewExportService(policies exportPolicyStore, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger, cfg ExportConfig) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 5000
	}
	if cfg.Title == "" {
		cfg.Title = "Policy Register"
	}
	return &ExportService{policies: policies, csv: csv, pdf: pdf, logger: logger, cfg: cfg}
}

// ExportResult carries the rendered bytes and their content type.
type ExportResult struct {
	Data        []byte
	ContentType string
	Filename    string
}

// PolicyRegister renders the published register in the requested format.
func (s *ExportService) PolicyRegister(ctx context.Context, format ExportFormat) (*ExportResult, error) {
	if !s.cfg.Enabled {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "exports are disabled")
	}

	policies, err := s.policies.ListPublished(ctx, s.cfg.MaxRows)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load policy register")
	}

	dataset := buildRegisterDataset(policies)
	stamp := time.Now().UTC().Format("2006-01-02")

	switch format {
	case ExportFormatCSV:
		data, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportResult{
			Data:        data,
			ContentType: "text/csv",
			Filename:    fmt.Sprintf("policy-register-%s.csv", stamp),
		}, nil
	case ExportFormatPDF:
		data, err := s.pdf.Render(dataset, s.cfg.Title)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportResult{
			Data:        data,
			ContentType: "application/pdf",
			Filename:    fmt.Sprintf("policy-register-%s.pdf", stamp),
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
}

func buildRegisterDataset(policies []models.Policy) export.Dataset {
	headers := []string{"Slug", "Title", "Theme", "Status", "Budget", "Budget Spent", "Region", "Published At"}
	rows := make([]map[string]string, 0, len(policies))
	for i := range policies {
		p := &policies[i]
		row := map[string]string{
			"Slug":         p.Slug,
			"Title":        p.Title,
			"Theme":        string(p.Theme),
			"Status":       string(p.Status),
			"Budget":       formatAmount(p.Budget),
			"Budget Spent": formatAmount(p.BudgetSpent),
			"Region":       "",
			"Published At": "",
		}
		if p.Region != nil {
			row["Region"] = *p.Region
		}
		if p.PublishedAt != nil {
			row["Published At"] = p.PublishedAt.UTC().Format("2006-01-02")
		}
		rows = append(rows, row)
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func formatAmount(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}
