package service

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/akademik-fk/curriculum-api/internal/models"
	"github.com/akademik-fk/curriculum-api/internal/scheduling"
	appErrors "github.com/akademik-fk/curriculum-api/pkg/errors"
	"github.com/akademik-fk/curriculum-api/pkg/export"
)

type termReader interface {
	FindByID(ctx context.Context, id string) (*models.Term, error)
}

// TermScheduleService reads the unified cross-kind schedule of one
// academic term, for display and for CSV/PDF export. It reuses the
// detector's entry projection so the export shows exactly the universe
// conflict checking sees.
type TermScheduleService struct {
	terms   termReader
	entries scheduling.EntrySource
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
	logger  *zap.Logger
}

// NewTermScheduleService builds a TermScheduleService.
func NewTermScheduleService(terms termReader, entries scheduling.EntrySource, logger *zap.Logger) *TermScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TermScheduleService{
		terms:   terms,
		entries: entries,
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		logger:  logger,
	}
}

// List returns every entry of every kind in the term, ordered by date,
// start time, then kind declaration order for stable output.
func (s *TermScheduleService) List(ctx context.Context, termID string) ([]models.Entry, error) {
	if _, err := s.terms.FindByID(ctx, termID); err != nil {
		return nil, err
	}

	entries, err := s.entries.EntriesInTerm(ctx, termID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term schedule")
	}

	kindRank := make(map[models.Kind]int, len(models.Kinds()))
	for i, k := range models.Kinds() {
		kindRank[k] = i
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.Window.Date.Equal(b.Window.Date) {
			return a.Window.Date.Before(b.Window.Date)
		}
		if a.Window.Start != b.Window.Start {
			return a.Window.Start < b.Window.Start
		}
		return kindRank[a.Kind] < kindRank[b.Kind]
	})
	return entries, nil
}

// ExportCSV renders the term schedule as CSV bytes.
func (s *TermScheduleService) ExportCSV(ctx context.Context, termID string) ([]byte, error) {
	dataset, _, err := s.dataset(ctx, termID)
	if err != nil {
		return nil, err
	}
	out, err := s.csv.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render CSV export")
	}
	return out, nil
}

// ExportPDF renders the term schedule as PDF bytes.
func (s *TermScheduleService) ExportPDF(ctx context.Context, termID string) ([]byte, error) {
	dataset, term, err := s.dataset(ctx, termID)
	if err != nil {
		return nil, err
	}
	out, err := s.pdf.Render(dataset, "Jadwal "+term.Name)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render PDF export")
	}
	return out, nil
}

var exportHeaders = []string{"Date", "Start", "End", "Kind", "Title", "Room", "Group", "Lecturers"}

// exportWeights widens the free-text columns in the PDF layout.
var exportWeights = []float64{1.1, 0.7, 0.7, 1.4, 2.2, 1.4, 1.4, 2.5}

func (s *TermScheduleService) dataset(ctx context.Context, termID string) (export.Dataset, *models.Term, error) {
	term, err := s.terms.FindByID(ctx, termID)
	if err != nil {
		return export.Dataset{}, nil, err
	}
	entries, err := s.List(ctx, termID)
	if err != nil {
		return export.Dataset{}, nil, err
	}

	rows := make([]map[string]string, 0, len(entries))
	for _, e := range entries {
		names := make([]string, 0, len(e.Resources.LecturerIDs))
		for _, lid := range e.Resources.LecturerIDs {
			if name := e.Resources.LecturerNames[lid]; name != "" {
				names = append(names, name)
			} else {
				names = append(names, lid)
			}
		}
		rows = append(rows, map[string]string{
			"Date":      e.Window.Date.Format("2006-01-02"),
			"Start":     e.Window.Start.String(),
			"End":       e.Window.End.String(),
			"Kind":      e.Kind.Label(),
			"Title":     e.Title,
			"Room":      e.Resources.RoomName,
			"Group":     e.Resources.GroupName,
			"Lecturers": strings.Join(names, "; "),
		})
	}
	return export.Dataset{Headers: exportHeaders, Rows: rows, Weights: exportWeights}, term, nil
}
