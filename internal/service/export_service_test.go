package service

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acadplan/timetable-api/internal/engine"
	"github.com/acadplan/timetable-api/internal/models"
	appErrors "github.com/acadplan/timetable-api/pkg/errors"
	"github.com/acadplan/timetable-api/pkg/storage"
)

func exportFixture(t *testing.T) (*ExportService, models.TimetableMeta, *models.TimetableView, *models.ValidationSummary) {
	catalog, err := NewCatalog()
	require.NoError(t, err)

	c := engine.Chromosome{
		{Topic: "A", SessionType: engine.SessionTheory}: {
			{Day: 0, Slot: 0, Room: "Amphitheater", Teacher: "A1"},
		},
		{Topic: "A", SessionType: engine.SessionPractical}: {
			{Day: 1, Slot: 1, Room: "Classroom3", Teacher: "A2"},
		},
	}
	view, diagnostics := NewFormatter(catalog).Format(c)
	meta := models.TimetableMeta{ID: "tt-1", Label: "Fall 2026", Version: 2, Score: 12.5}

	return NewExportService(catalog, nil, nil, "University Timetable"), meta, view, diagnostics
}

func TestExportServiceRendersCSV(t *testing.T) {
	svc, meta, view, diagnostics := exportFixture(t)

	result, err := svc.Export(meta, view, diagnostics, "csv")
	require.NoError(t, err)

	assert.Equal(t, "fall_2026_v2.csv", result.Filename)
	assert.Equal(t, "text/csv", result.ContentType)
	body := string(result.Data)
	assert.Contains(t, body, "Day,Time Slot,Session,Topic,Type,Room,Teacher,Capacity")
	assert.Contains(t, body, "A_Theory")
	assert.Contains(t, body, "Mathematics")
	assert.Contains(t, body, "No sessions scheduled")
}

func TestExportServiceDefaultsToCSV(t *testing.T) {
	svc, meta, view, diagnostics := exportFixture(t)

	result, err := svc.Export(meta, view, diagnostics, "")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", result.ContentType)
}

func TestExportServiceRendersPDF(t *testing.T) {
	svc, meta, view, diagnostics := exportFixture(t)

	result, err := svc.Export(meta, view, diagnostics, "pdf")
	require.NoError(t, err)

	assert.Equal(t, "application/pdf", result.ContentType)
	require.Greater(t, len(result.Data), 4)
	assert.Equal(t, "%PDF", string(result.Data[:4]))
}

func TestExportServiceRendersJSONAndSummary(t *testing.T) {
	svc, meta, view, diagnostics := exportFixture(t)

	jsonResult, err := svc.Export(meta, view, diagnostics, "json")
	require.NoError(t, err)
	assert.Contains(t, string(jsonResult.Data), `"total_sessions"`)

	summary, err := svc.Export(meta, view, diagnostics, "summary")
	require.NoError(t, err)
	body := string(summary.Data)
	assert.Contains(t, body, "University Timetable")
	assert.Contains(t, body, "Label: Fall 2026 (version 2)")
	assert.Contains(t, body, "Total sessions: 2")
	assert.Contains(t, body, "Completeness issues:")
}

func TestExportServiceRejectsUnknownFormat(t *testing.T) {
	svc, meta, view, diagnostics := exportFixture(t)

	_, err := svc.Export(meta, view, diagnostics, "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrExportFormat.Code, appErrors.FromError(err).Code)
}

func TestExportServiceArchivesRenderedFiles(t *testing.T) {
	catalog, err := NewCatalog()
	require.NoError(t, err)
	dir := t.TempDir()
	local, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)

	_, meta, view, diagnostics := exportFixture(t)
	svc := NewExportService(catalog, local, nil, "")

	result, err := svc.Export(meta, view, diagnostics, "csv")
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, result.Filename))
}
