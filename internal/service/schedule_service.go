package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/akademik-fk/curriculum-api/internal/models"
	"github.com/akademik-fk/curriculum-api/internal/scheduling"
	appErrors "github.com/akademik-fk/curriculum-api/pkg/errors"
)

type sessionStore interface {
	FindByID(ctx context.Context, kind models.Kind, id string) (*models.Session, error)
	List(ctx context.Context, kind models.Kind, filter models.SessionFilter) ([]models.Session, int, error)
	Delete(ctx context.Context, kind models.Kind, id string) error
	CreateValidated(ctx context.Context, session *models.Session, assignments []models.LecturerAssignment, lockKeys []string, check func(ctx context.Context, src scheduling.EntrySource) error) error
	UpdateValidated(ctx context.Context, session *models.Session, lockKeys []string, resetConfirmations bool, check func(ctx context.Context, src scheduling.EntrySource) error) error
	BulkCreateValidated(ctx context.Context, sessions []*models.Session, assignments [][]models.LecturerAssignment, lockKeys []string, check func(ctx context.Context, src scheduling.EntrySource) error) error
}

type assignmentLister interface {
	ListByEntry(ctx context.Context, kind models.Kind, entryID string) ([]models.LecturerAssignment, error)
}

type termResolver interface {
	TermIDForCourse(ctx context.Context, courseCode string) (string, error)
}

type resourceResolver interface {
	Room(ctx context.Context, id string) (*models.Room, error)
	Lecturer(ctx context.Context, id string) (*models.Lecturer, error)
	SmallGroup(ctx context.Context, id string) (*models.SmallGroup, error)
	LargeGroup(ctx context.Context, id string) (*models.LargeGroup, error)
}

type checkObserver interface {
	ObserveValidation(kind models.Kind, outcome string)
	ObserveConflict(kind models.Kind, dimension models.Dimension)
}

// SessionRequest is the payload for creating a schedule session of any
// kind. Times come as HH:MM strings and are converted to minutes since
// midnight before anything compares them. Which resource fields are
// accepted depends on the kind.
type SessionRequest struct {
	CourseCode    string   `json:"course_code" validate:"required"`
	Title         string   `json:"title" validate:"required"`
	Date          string   `json:"date" validate:"required"`
	StartTime     string   `json:"start_time" validate:"required"`
	EndTime       string   `json:"end_time" validate:"required"`
	SessionCount  int      `json:"session_count" validate:"omitempty,min=1"`
	UsesRoom      *bool    `json:"uses_room"`
	RoomID        string   `json:"room_id"`
	LecturerIDs   []string `json:"lecturer_ids"`
	CoordinatorID string   `json:"coordinator_id"`
	SmallGroupID  string   `json:"small_group_id"`
	LargeGroupID  string   `json:"large_group_id"`
}

// UpdateSessionRequest edits a session's schedule and resources. The
// lecturer roster is managed through the confirmation endpoints and is
// not replaceable here.
type UpdateSessionRequest struct {
	Title        string `json:"title" validate:"required"`
	Date         string `json:"date" validate:"required"`
	StartTime    string `json:"start_time" validate:"required"`
	EndTime      string `json:"end_time" validate:"required"`
	SessionCount int    `json:"session_count" validate:"omitempty,min=1"`
	UsesRoom     *bool  `json:"uses_room"`
	RoomID       string `json:"room_id"`
	SmallGroupID string `json:"small_group_id"`
	LargeGroupID string `json:"large_group_id"`
}

// ValidationResult is the outcome of a dry-run validation.
type ValidationResult struct {
	Valid    bool                  `json:"valid"`
	Conflict *models.Conflict      `json:"conflict,omitempty"`
	Message  string                `json:"message,omitempty"`
	Capacity *models.CapacityCheck `json:"capacity,omitempty"`
}

// ScheduleService owns session CRUD for all nine kinds. Every write
// runs the conflict detector and capacity validator inside the storing
// transaction, under advisory locks on the slot's resources, so two
// concurrent requests for the same slot serialize and the loser sees
// the winner's row.
type ScheduleService struct {
	sessions    sessionStore
	assignments assignmentLister
	terms       termResolver
	directory   resourceResolver
	entries     scheduling.EntrySource
	capacity    *scheduling.CapacityValidator
	notifier    Notifier
	metrics     checkObserver
	validate    *validator.Validate
	logger      *zap.Logger
}

// NewScheduleService builds a ScheduleService. metrics may be nil.
func NewScheduleService(
	sessions sessionStore,
	assignments assignmentLister,
	terms termResolver,
	directory resourceResolver,
	entries scheduling.EntrySource,
	capacity *scheduling.CapacityValidator,
	notifier Notifier,
	metrics checkObserver,
	logger *zap.Logger,
) *ScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = NewLogNotifier(logger)
	}
	return &ScheduleService{
		sessions:    sessions,
		assignments: assignments,
		terms:       terms,
		directory:   directory,
		entries:     entries,
		capacity:    capacity,
		notifier:    notifier,
		metrics:     metrics,
		validate:    validator.New(),
		logger:      logger,
	}
}

// candidate bundles everything a write needs: the row to persist, its
// detector projection, the roster, and the advisory lock keys.
type candidate struct {
	session     *models.Session
	entry       models.Entry
	assignments []models.LecturerAssignment
	lockKeys    []string
}

// Create validates and persists a new session atomically. On success
// every assigned lecturer is notified.
func (s *ScheduleService) Create(ctx context.Context, kind models.Kind, req SessionRequest) (*models.Session, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}

	cand, err := s.buildCandidate(ctx, kind, uuid.NewString(), req)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.CreateValidated(ctx, cand.session, cand.assignments, cand.lockKeys, s.guard(cand.entry, "")); err != nil {
		s.observe(kind, err)
		return nil, err
	}
	s.observe(kind, nil)

	for _, a := range cand.assignments {
		s.notifier.AssignmentCreated(ctx, a, cand.session)
	}
	s.logger.Info("session created",
		zap.String("kind", string(kind)),
		zap.String("id", cand.session.ID),
		zap.String("course", cand.session.CourseCode),
	)
	return cand.session, nil
}

// Update edits an existing session, re-running the full validation with
// the session's own stored row excluded. Changing the date, time, room
// or group reopens every lecturer confirmation on the entry.
func (s *ScheduleService) Update(ctx context.Context, kind models.Kind, id string, req UpdateSessionRequest) (*models.Session, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}

	existing, err := s.sessions.FindByID(ctx, kind, id)
	if err != nil {
		return nil, err
	}

	cand, err := s.buildCandidate(ctx, kind, id, SessionRequest{
		CourseCode:   existing.CourseCode,
		Title:        req.Title,
		Date:         req.Date,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		SessionCount: req.SessionCount,
		UsesRoom:     req.UsesRoom,
		RoomID:       req.RoomID,
		SmallGroupID: req.SmallGroupID,
		LargeGroupID: req.LargeGroupID,
	})
	if err != nil {
		return nil, err
	}
	cand.session.CreatedAt = existing.CreatedAt

	// The roster is whatever is already assigned; updates never touch it.
	roster, err := s.assignments.ListByEntry(ctx, kind, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lecturer roster")
	}
	cand.entry = s.project(ctx, kind, cand.session, roster)
	for _, a := range roster {
		cand.lockKeys = append(cand.lockKeys, "lecturer:"+a.LecturerID)
	}
	cand.lockKeys = dedupeSorted(cand.lockKeys)

	reset := slotChanged(existing, cand.session)
	if err := s.sessions.UpdateValidated(ctx, cand.session, cand.lockKeys, reset, s.guard(cand.entry, id)); err != nil {
		s.observe(kind, err)
		return nil, err
	}
	s.observe(kind, nil)

	if reset {
		s.logger.Info("session rescheduled, confirmations reopened",
			zap.String("kind", string(kind)),
			zap.String("id", id),
		)
	}
	return cand.session, nil
}

// DryRun validates a payload without persisting anything. The result
// reports the first conflict found and the capacity verdict; unlike the
// write path it is not race-safe, which is fine for a preview.
func (s *ScheduleService) DryRun(ctx context.Context, kind models.Kind, req SessionRequest) (*ValidationResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}

	cand, err := s.buildCandidate(ctx, kind, uuid.NewString(), req)
	if err != nil {
		return nil, err
	}

	detector := scheduling.NewDetector(s.entries, s.logger)
	conflict, err := detector.Detect(ctx, cand.entry, scheduling.DetectOptions{})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "conflict check failed")
	}
	if conflict != nil {
		return &ValidationResult{Valid: false, Conflict: conflict, Message: conflict.Message()}, nil
	}

	check, err := s.capacity.Validate(ctx, cand.entry)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "capacity check failed")
	}
	if !check.OK {
		return &ValidationResult{Valid: false, Capacity: &check, Message: check.Message()}, nil
	}
	return &ValidationResult{Valid: true}, nil
}

// Get returns one session.
func (s *ScheduleService) Get(ctx context.Context, kind models.Kind, id string) (*models.Session, error) {
	return s.sessions.FindByID(ctx, kind, id)
}

// List returns sessions of one kind matching the filter.
func (s *ScheduleService) List(ctx context.Context, kind models.Kind, filter models.SessionFilter) ([]models.Session, int, error) {
	return s.sessions.List(ctx, kind, filter)
}

// Delete removes a session. Deleting frees every slot it occupied; no
// validation is needed.
func (s *ScheduleService) Delete(ctx context.Context, kind models.Kind, id string) error {
	return s.sessions.Delete(ctx, kind, id)
}

// guard is the validation closure run inside the storing transaction,
// against a transaction-bound entry source, after the advisory locks
// are held. Anything it returns aborts the write.
func (s *ScheduleService) guard(entry models.Entry, excludeID string) func(ctx context.Context, src scheduling.EntrySource) error {
	return func(ctx context.Context, src scheduling.EntrySource) error {
		detector := scheduling.NewDetector(src, s.logger)
		conflict, err := detector.Detect(ctx, entry, scheduling.DetectOptions{ExcludeID: excludeID})
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "conflict check failed")
		}
		if conflict != nil {
			return appErrors.Wrap(&models.ConflictError{Conflict: *conflict},
				appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, conflict.Message())
		}

		check, err := s.capacity.Validate(ctx, entry)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "capacity check failed")
		}
		if !check.OK {
			return appErrors.Wrap(&models.CapacityError{Check: check},
				appErrors.ErrCapacity.Code, appErrors.ErrCapacity.Status, check.Message())
		}
		return nil
	}
}

// buildCandidate parses and resolves a request into a persistable
// session plus its detector projection. Resource fields a kind does not
// use are rejected rather than silently dropped.
func (s *ScheduleService) buildCandidate(ctx context.Context, kind models.Kind, id string, req SessionRequest) (*candidate, error) {
	if !kind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown schedule kind %q", kind))
	}
	dims := scheduling.DimensionsFor(kind)

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid date %q: expected YYYY-MM-DD", req.Date))
	}
	start, err := models.ParseTimeOfDay(req.StartTime)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	end, err := models.ParseTimeOfDay(req.EndTime)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	if _, err := models.NewTimeWindow(date, start, end); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	if req.SmallGroupID != "" && req.LargeGroupID != "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "small_group_id and large_group_id are mutually exclusive")
	}
	if req.SmallGroupID != "" && !dims.SmallGroup {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s sessions do not take a small group", kind.Label()))
	}
	if req.LargeGroupID != "" && !dims.LargeGroup {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s sessions do not take a cohort", kind.Label()))
	}
	if len(req.LecturerIDs) > 0 && !dims.Lecturer && !dims.SeatsLecturers {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s sessions do not take lecturers", kind.Label()))
	}

	usesRoom := req.RoomID != ""
	if req.UsesRoom != nil {
		usesRoom = *req.UsesRoom
	}
	if usesRoom && req.RoomID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "room_id is required when the session uses a room")
	}
	if usesRoom && !dims.Room {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s sessions do not book a room", kind.Label()))
	}

	// Term resolution fails open: a course outside any known term is
	// validated against every term rather than skipped.
	termID, err := s.terms.TermIDForCourse(ctx, req.CourseCode)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve term")
	}
	if termID == "" {
		s.logger.Warn("course outside any term, validating across all terms",
			zap.String("course", req.CourseCode))
	}

	sessionCount := req.SessionCount
	if sessionCount == 0 {
		sessionCount = 1
	}

	now := time.Now().UTC()
	session := &models.Session{
		ID:           id,
		Kind:         kind,
		TermID:       termID,
		CourseCode:   req.CourseCode,
		Title:        req.Title,
		Date:         date,
		StartMinutes: int(start),
		EndMinutes:   int(end),
		SessionCount: sessionCount,
		UsesRoom:     usesRoom,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var keys []string
	if usesRoom {
		if _, err := s.directory.Room(ctx, req.RoomID); err != nil {
			return nil, err
		}
		roomID := req.RoomID
		session.RoomID = &roomID
		keys = append(keys, "room:"+roomID)
	}
	if req.SmallGroupID != "" {
		group, err := s.directory.SmallGroup(ctx, req.SmallGroupID)
		if err != nil {
			return nil, err
		}
		groupID := req.SmallGroupID
		session.SmallGroupID = &groupID
		keys = append(keys, "group:small:"+group.ID)
		// Lock the parent cohort too: a cohort-wide booking contends
		// with every one of its small groups.
		if group.LargeGroupID != "" {
			keys = append(keys, "group:large:"+group.LargeGroupID)
		}
	}
	if req.LargeGroupID != "" {
		if _, err := s.directory.LargeGroup(ctx, req.LargeGroupID); err != nil {
			return nil, err
		}
		groupID := req.LargeGroupID
		session.LargeGroupID = &groupID
		keys = append(keys, "group:large:"+groupID)
	}

	roster, err := s.buildRoster(ctx, kind, id, req.LecturerIDs, req.CoordinatorID, now)
	if err != nil {
		return nil, err
	}
	for _, a := range roster {
		keys = append(keys, "lecturer:"+a.LecturerID)
	}

	return &candidate{
		session:     session,
		entry:       s.project(ctx, kind, session, roster),
		assignments: roster,
		lockKeys:    dedupeSorted(keys),
	}, nil
}

// buildRoster resolves lecturer ids into fresh NotConfirmed assignments.
// The coordinator is the requested id, or the first lecturer when none
// is named.
func (s *ScheduleService) buildRoster(ctx context.Context, kind models.Kind, entryID string, lecturerIDs []string, coordinatorID string, now time.Time) ([]models.LecturerAssignment, error) {
	if coordinatorID != "" {
		found := false
		for _, lid := range lecturerIDs {
			if lid == coordinatorID {
				found = true
				break
			}
		}
		if !found {
			return nil, appErrors.Clone(appErrors.ErrValidation, "coordinator_id must be one of lecturer_ids")
		}
	}

	seen := make(map[string]bool, len(lecturerIDs))
	roster := make([]models.LecturerAssignment, 0, len(lecturerIDs))
	for i, lid := range lecturerIDs {
		if seen[lid] {
			continue
		}
		seen[lid] = true

		lecturer, err := s.directory.Lecturer(ctx, lid)
		if err != nil {
			return nil, err
		}
		role := models.RoleAssistant
		if lid == coordinatorID || (coordinatorID == "" && i == 0) {
			role = models.RoleCoordinator
		}
		roster = append(roster, models.LecturerAssignment{
			ID:           uuid.NewString(),
			EntryKind:    kind,
			EntryID:      entryID,
			LecturerID:   lid,
			LecturerName: lecturer.Name,
			Role:         role,
			Status:       models.StatusNotConfirmed,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}
	return roster, nil
}

// project builds the detector entry for a session plus roster, joining
// in the display names the detector reports.
func (s *ScheduleService) project(ctx context.Context, kind models.Kind, session *models.Session, roster []models.LecturerAssignment) models.Entry {
	row := models.SessionRow{Session: *session}
	if session.RoomID != nil {
		if room, err := s.directory.Room(ctx, *session.RoomID); err == nil {
			row.RoomName = &room.Name
		}
	}
	if session.SmallGroupID != nil {
		if group, err := s.directory.SmallGroup(ctx, *session.SmallGroupID); err == nil {
			row.SmallGroupName = &group.Name
			if group.LargeGroupID != "" {
				parent := group.LargeGroupID
				row.SmallGroupParentID = &parent
			}
		}
	}
	if session.LargeGroupID != nil {
		if group, err := s.directory.LargeGroup(ctx, *session.LargeGroupID); err == nil {
			row.LargeGroupName = &group.Name
		}
	}
	return scheduling.Adapt(kind, row, roster)
}

func (s *ScheduleService) observe(kind models.Kind, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		switch appErrors.FromError(err).Code {
		case appErrors.ErrConflict.Code:
			outcome = "conflict"
			var conflictErr *models.ConflictError
			if errors.As(err, &conflictErr) {
				s.metrics.ObserveConflict(kind, conflictErr.Conflict.Dimension)
			}
		case appErrors.ErrCapacity.Code:
			outcome = "capacity"
		default:
			outcome = "error"
		}
	}
	s.metrics.ObserveValidation(kind, outcome)
}

// slotChanged reports whether the edit moved the session to a different
// slot (date, time, room or student group), which reopens confirmations.
func slotChanged(old, next *models.Session) bool {
	return !old.Date.Equal(next.Date) ||
		old.StartMinutes != next.StartMinutes ||
		old.EndMinutes != next.EndMinutes ||
		old.UsesRoom != next.UsesRoom ||
		!strPtrEqual(old.RoomID, next.RoomID) ||
		!strPtrEqual(old.SmallGroupID, next.SmallGroupID) ||
		!strPtrEqual(old.LargeGroupID, next.LargeGroupID)
}

func strPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func dedupeSorted(keys []string) []string {
	sort.Strings(keys)
	out := keys[:0]
	var prev string
	for i, k := range keys {
		if i == 0 || k != prev {
			out = append(out, k)
		}
		prev = k
	}
	return out
}
