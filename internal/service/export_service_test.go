package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xamle/civic-api/internal/models"
	appErrors "github.com/xamle/civic-api/pkg/errors"
	"github.com/xamle/civic-api/pkg/export"
)

type mockExportStore struct {
	policies  []models.Policy
	lastLimit int
}

func (m *mockExportStore) ListPublished(ctx context.Context, limit int) ([]models.Policy, error) {
	m.lastLimit = limit
	return m.policies, nil
}

type recordingRenderer struct {
	dataset export.Dataset
	title   string
}

func (r *recordingRenderer) Render(data export.Dataset) ([]byte, error) {
	r.dataset = data
	return []byte("csv"), nil
}

func (r *recordingRenderer) RenderPDF(data export.Dataset, title string) ([]byte, error) {
	r.dataset = data
	r.title = title
	return []byte("pdf"), nil
}

type pdfAdapter struct{ r *recordingRenderer }

func (a pdfAdapter) Render(data export.Dataset, title string) ([]byte, error) {
	return a.r.RenderPDF(data, title)
}

func exportFixturePolicies() []models.Policy {
	budget := 1500.0
	region := "North"
	published := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	return []models.Policy{{
		ID:          "pol-1",
		Slug:        "water-program",
		Title:       "Water Program",
		Theme:       models.ThemeEnvironment,
		Status:      models.PolicyStatusInProgress,
		Budget:      &budget,
		Region:      &region,
		PublishedAt: &published,
	}}
}

func TestExportServiceCSV(t *testing.T) {
	store := &mockExportStore{policies: exportFixturePolicies()}
	renderer := &recordingRenderer{}
	svc := NewExportService(store, renderer, pdfAdapter{renderer}, zap.NewNop(), ExportConfig{Enabled: true, MaxRows: 100})

	result, err := svc.PolicyRegister(context.Background(), ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", result.ContentType)
	assert.Equal(t, 100, store.lastLimit)

	require.Len(t, renderer.dataset.Rows, 1)
	row := renderer.dataset.Rows[0]
	assert.Equal(t, "water-program", row["Slug"])
	assert.Equal(t, "1500.00", row["Budget"])
	assert.Equal(t, "North", row["Region"])
	assert.Equal(t, "2026-03-01", row["Published At"])
	assert.Equal(t, "", row["Budget Spent"])
}

func TestExportServicePDF(t *testing.T) {
	store := &mockExportStore{policies: exportFixturePolicies()}
	renderer := &recordingRenderer{}
	svc := NewExportService(store, renderer, pdfAdapter{renderer}, zap.NewNop(), ExportConfig{Enabled: true, Title: "Register 2026"})

	result, err := svc.PolicyRegister(context.Background(), ExportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.Equal(t, "Register 2026", renderer.title)
}

func TestExportServiceDisabled(t *testing.T) {
	svc := NewExportService(&mockExportStore{}, &recordingRenderer{}, pdfAdapter{&recordingRenderer{}}, zap.NewNop(), ExportConfig{Enabled: false})

	_, err := svc.PolicyRegister(context.Background(), ExportFormatCSV)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestExportServiceUnknownFormat(t *testing.T) {
	svc := NewExportService(&mockExportStore{}, &recordingRenderer{}, pdfAdapter{&recordingRenderer{}}, zap.NewNop(), ExportConfig{Enabled: true})

	_, err := svc.PolicyRegister(context.Background(), ExportFormat("xlsx"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
