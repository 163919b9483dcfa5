package service

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/akademik-fk/curriculum-api/internal/models"
	"github.com/akademik-fk/curriculum-api/internal/scheduling"
	appErrors "github.com/akademik-fk/curriculum-api/pkg/errors"
)

// importColumns maps spreadsheet headers (case-insensitive) to fields.
// lecturer_ids holds semicolon-separated ids.
var importColumns = []string{
	"kind", "course_code", "title", "date", "start_time", "end_time",
	"session_count", "room_id", "lecturer_ids", "coordinator_id",
	"small_group_id", "large_group_id",
}

// ImportResult summarises a successful batch import.
type ImportResult struct {
	Created int `json:"created"`
}

// ImportService ingests an XLSX workbook of schedule rows with
// all-or-nothing semantics: every row is validated against the store
// and against every earlier row of the same file, all failures are
// reported together with their row numbers, and a single failure means
// nothing is persisted.
type importObserver interface {
	ObserveImport(rows int)
}

type ImportService struct {
	schedules *ScheduleService
	sessions  sessionStore
	capacity  *scheduling.CapacityValidator
	notifier  Notifier
	metrics   importObserver
	maxRows   int
	logger    *zap.Logger
}

// NewImportService builds an ImportService. metrics may be nil.
func NewImportService(schedules *ScheduleService, sessions sessionStore, capacity *scheduling.CapacityValidator, notifier Notifier, metrics importObserver, maxRows int, logger *zap.Logger) *ImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = NewLogNotifier(logger)
	}
	if maxRows <= 0 {
		maxRows = 500
	}
	return &ImportService{
		schedules: schedules,
		sessions:  sessions,
		capacity:  capacity,
		notifier:  notifier,
		metrics:   metrics,
		maxRows:   maxRows,
		logger:    logger,
	}
}

// ImportWorkbook parses, validates and persists every row of the first
// sheet. Row numbers in errors are 1-based data rows (the header row is
// row 0 and never counted).
func (s *ImportService) ImportWorkbook(ctx context.Context, r io.Reader) (*ImportResult, error) {
	rows, err := s.readRows(r)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "workbook contains no data rows")
	}
	if len(rows) > s.maxRows {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("workbook has %d rows; the limit is %d", len(rows), s.maxRows))
	}

	// Resolve every row first so malformed rows are reported together
	// with scheduling failures, all in one response.
	var (
		rowErrors   []models.BatchRowError
		candidates  []*candidate
		sessions    []*models.Session
		assignments [][]models.LecturerAssignment
		entries     []models.Entry
		lockKeys    []string
	)
	for i, row := range rows {
		cand, err := s.buildRow(ctx, row)
		if err != nil {
			rowErrors = append(rowErrors, models.BatchRowError{Row: i + 1, Message: appErrors.FromError(err).Message})
			continue
		}
		candidates = append(candidates, cand)
	}
	if len(rowErrors) > 0 {
		batchErr := &models.BatchValidationError{Rows: rowErrors}
		return nil, appErrors.Wrap(batchErr, appErrors.ErrBatchValidation.Code, appErrors.ErrBatchValidation.Status, batchErr.Error())
	}

	for _, cand := range candidates {
		sessions = append(sessions, cand.session)
		assignments = append(assignments, cand.assignments)
		entries = append(entries, cand.entry)
		lockKeys = append(lockKeys, cand.lockKeys...)
	}

	err = s.sessions.BulkCreateValidated(ctx, sessions, assignments, dedupeSorted(lockKeys), func(ctx context.Context, src scheduling.EntrySource) error {
		batch := scheduling.NewBatchValidator(scheduling.NewDetector(src, s.logger), s.capacity)
		verdict, err := batch.Validate(ctx, entries)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "batch validation failed")
		}
		if verdict != nil {
			return appErrors.Wrap(verdict, appErrors.ErrBatchValidation.Code, appErrors.ErrBatchValidation.Status, verdict.Error())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i, session := range sessions {
		for _, a := range assignments[i] {
			s.notifier.AssignmentCreated(ctx, a, session)
		}
	}
	if s.metrics != nil {
		s.metrics.ObserveImport(len(sessions))
	}
	s.logger.Info("batch import persisted", zap.Int("rows", len(sessions)))
	return &ImportResult{Created: len(sessions)}, nil
}

type importRow map[string]string

// readRows loads the first sheet and maps each data row by header name.
func (s *ImportService) readRows(r io.Reader) ([]importRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "file is not a readable XLSX workbook")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "workbook has no sheets")
	}
	raw, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read workbook rows")
	}
	if len(raw) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "workbook is empty")
	}

	index := make(map[string]int, len(raw[0]))
	for col, header := range raw[0] {
		index[strings.ToLower(strings.TrimSpace(header))] = col
	}
	for _, required := range []string{"kind", "course_code", "title", "date", "start_time", "end_time"} {
		if _, ok := index[required]; !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("workbook is missing the %q column", required))
		}
	}

	var rows []importRow
	for _, cells := range raw[1:] {
		row := make(importRow, len(importColumns))
		empty := true
		for _, name := range importColumns {
			col, ok := index[name]
			if !ok || col >= len(cells) {
				continue
			}
			value := strings.TrimSpace(cells[col])
			if value != "" {
				empty = false
			}
			row[name] = value
		}
		if !empty {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// buildRow turns one mapped spreadsheet row into a validated candidate.
func (s *ImportService) buildRow(ctx context.Context, row importRow) (*candidate, error) {
	kind, ok := models.ParseKind(row["kind"])
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown schedule kind %q", row["kind"]))
	}

	sessionCount := 0
	if raw := row["session_count"]; raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid session_count %q", raw))
		}
		sessionCount = n
	}

	var lecturerIDs []string
	for _, lid := range strings.Split(row["lecturer_ids"], ";") {
		if lid = strings.TrimSpace(lid); lid != "" {
			lecturerIDs = append(lecturerIDs, lid)
		}
	}

	req := SessionRequest{
		CourseCode:    row["course_code"],
		Title:         row["title"],
		Date:          row["date"],
		StartTime:     row["start_time"],
		EndTime:       row["end_time"],
		SessionCount:  sessionCount,
		RoomID:        row["room_id"],
		LecturerIDs:   lecturerIDs,
		CoordinatorID: row["coordinator_id"],
		SmallGroupID:  row["small_group_id"],
		LargeGroupID:  row["large_group_id"],
	}
	if err := s.schedules.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "missing required columns")
	}
	return s.schedules.buildCandidate(ctx, kind, newSessionID(), req)
}

// newSessionID is a seam for deterministic ids in tests.
var newSessionID = uuid.NewString
