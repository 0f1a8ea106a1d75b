package service

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/acadplan/timetable-api/internal/models"
	appErrors "github.com/acadplan/timetable-api/pkg/errors"
	"github.com/acadplan/timetable-api/pkg/export"
)

// Export formats accepted by the export endpoint.
const (
	ExportFormatCSV     = "csv"
	ExportFormatPDF     = "pdf"
	ExportFormatJSON    = "json"
	ExportFormatSummary = "summary"
)

var exportHeaders = []string{"Day", "Time Slot", "Session", "Topic", "Type", "Room", "Teacher", "Capacity"}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportResult is a rendered export ready to stream to the client.
type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders timetable views into downloadable documents.
// When archive storage is configured, every rendered export is also
// written to disk for later retrieval.
type ExportService struct {
	csv     csvRenderer
	pdf     pdfRenderer
	catalog *Catalog
	archive fileStorage
	logger  *zap.Logger
	title   string
}

// NewExportService constructs an export service. archive may be nil.
func NewExportService(catalog *Catalog, archive fileStorage, logger *zap.Logger, title string) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if title == "" {
		title = "University Timetable"
	}
	return &ExportService{
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		catalog: catalog,
		archive: archive,
		logger:  logger,
		title:   title,
	}
}

// Export renders the view in the requested format.
func (s *ExportService) Export(meta models.TimetableMeta, view *models.TimetableView, diagnostics *models.ValidationSummary, format string) (*ExportResult, error) {
	if view == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "nothing to export")
	}

	base := s.baseFilename(meta)
	var result *ExportResult

	switch strings.ToLower(format) {
	case ExportFormatCSV, "":
		data, err := s.csv.Render(s.dataset(view))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		result = &ExportResult{Filename: base + ".csv", ContentType: "text/csv", Data: data}

	case ExportFormatPDF:
		data, err := s.pdf.Render(s.dataset(view), s.title)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		result = &ExportResult{Filename: base + ".pdf", ContentType: "application/pdf", Data: data}

	case ExportFormatJSON:
		data, err := json.MarshalIndent(view, "", "  ")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render json")
		}
		result = &ExportResult{Filename: base + ".json", ContentType: "application/json", Data: data}

	case ExportFormatSummary:
		result = &ExportResult{
			Filename:    base + ".txt",
			ContentType: "text/plain; charset=utf-8",
			Data:        []byte(s.summary(meta, view, diagnostics)),
		}

	default:
		return nil, appErrors.Clone(appErrors.ErrExportFormat, fmt.Sprintf("unsupported export format %q", format))
	}

	if s.archive != nil {
		if _, err := s.archive.Save(result.Filename, result.Data); err != nil {
			s.logger.Warn("failed to archive export", zap.String("filename", result.Filename), zap.Error(err))
		}
	}
	return result, nil
}

// CleanupArchive removes archived exports older than the TTL.
func (s *ExportService) CleanupArchive(ttl time.Duration) {
	if s.archive == nil || ttl <= 0 {
		return
	}
	deleted, err := s.archive.CleanupOlderThan(ttl)
	if err != nil {
		s.logger.Warn("export archive cleanup failed", zap.Error(err))
		return
	}
	if len(deleted) > 0 {
		s.logger.Info("export archive cleaned", zap.Int("deleted", len(deleted)))
	}
}

func (s *ExportService) dataset(view *models.TimetableView) export.Dataset {
	dataset := export.Dataset{Headers: exportHeaders}
	for _, day := range view.Days {
		for _, slot := range day.Slots {
			if len(slot.Sessions) == 0 {
				dataset.Rows = append(dataset.Rows, map[string]string{
					"Day":       day.Day,
					"Time Slot": slot.Slot,
					"Session":   "No sessions scheduled",
				})
				continue
			}
			for _, session := range slot.Sessions {
				dataset.Rows = append(dataset.Rows, map[string]string{
					"Day":       day.Day,
					"Time Slot": slot.Slot,
					"Session":   session.Session,
					"Topic":     s.catalog.TopicName(session.Topic),
					"Type":      session.Type,
					"Room":      session.Room,
					"Teacher":   session.Teacher,
					"Capacity":  fmt.Sprintf("%d", session.Capacity),
				})
			}
		}
	}
	return dataset
}

func (s *ExportService) summary(meta models.TimetableMeta, view *models.TimetableView, diagnostics *models.ValidationSummary) string {
	var b strings.Builder
	stats := view.Statistics

	fmt.Fprintf(&b, "%s\n", s.title)
	fmt.Fprintf(&b, "Generated: %s\n", view.GeneratedAt.Format(time.RFC3339))
	if meta.Label != "" {
		fmt.Fprintf(&b, "Label: %s (version %d)\n", meta.Label, meta.Version)
	}
	fmt.Fprintf(&b, "Penalty score: %.2f\n\n", meta.Score)

	fmt.Fprintf(&b, "Total sessions: %d\n", stats.TotalSessions)
	fmt.Fprintf(&b, "Unique time slots used: %d\n", stats.UniqueSlotsUsed)
	fmt.Fprintf(&b, "Unique days used: %d\n\n", stats.UniqueDaysUsed)

	b.WriteString("Sessions by type:\n")
	for _, name := range s.catalog.Config().SessionTypes {
		if count, ok := stats.SessionsByType[name]; ok {
			fmt.Fprintf(&b, "  %s: %d\n", name, count)
		}
	}
	b.WriteString("\nSessions by topic:\n")
	for _, topic := range s.catalog.Config().Topics {
		if count, ok := stats.SessionsByTopic[topic]; ok {
			fmt.Fprintf(&b, "  %s: %d\n", s.catalog.TopicName(topic), count)
		}
	}
	b.WriteString("\nRoom utilization:\n")
	for _, room := range s.catalog.Config().Rooms {
		fmt.Fprintf(&b, "  %s: %d sessions\n", room.Name, stats.RoomUtilization[room.Name])
	}

	if diagnostics != nil {
		b.WriteString("\nValidation:\n")
		if diagnostics.Valid {
			b.WriteString("  No room or teacher conflicts.\n")
		} else {
			fmt.Fprintf(&b, "  Room conflicts: %d\n", len(diagnostics.RoomConflicts))
			fmt.Fprintf(&b, "  Teacher conflicts: %d\n", len(diagnostics.TeacherConflicts))
		}
		if len(diagnostics.OrderingIssues) > 0 {
			fmt.Fprintf(&b, "  Ordering issues: %d\n", len(diagnostics.OrderingIssues))
		}
		if len(diagnostics.Completeness) > 0 {
			fmt.Fprintf(&b, "  Completeness issues: %d\n", len(diagnostics.Completeness))
		}
	}
	return b.String()
}

func (s *ExportService) baseFilename(meta models.TimetableMeta) string {
	label := meta.Label
	if label == "" {
		label = "timetable"
	}
	label = strings.ReplaceAll(strings.ToLower(label), " ", "_")
	if meta.Version > 0 {
		return fmt.Sprintf("%s_v%d", label, meta.Version)
	}
	return label
}
