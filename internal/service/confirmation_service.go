package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/akademik-fk/curriculum-api/internal/models"
	"github.com/akademik-fk/curriculum-api/internal/scheduling"
	appErrors "github.com/akademik-fk/curriculum-api/pkg/errors"
)

type assignmentStore interface {
	Find(ctx context.Context, kind models.Kind, entryID, lecturerID string) (*models.LecturerAssignment, error)
	ListByEntry(ctx context.Context, kind models.Kind, entryID string) ([]models.LecturerAssignment, error)
	RecordTransition(ctx context.Context, assignmentID string, from, to models.ConfirmationStatus, reason *string) error
	History(ctx context.Context, assignmentID string) ([]models.ConfirmationTransition, error)
}

type sessionReader interface {
	FindByID(ctx context.Context, kind models.Kind, id string) (*models.Session, error)
}

// ConfirmationRequest is the payload for a lecturer acting on an
// assignment.
type ConfirmationRequest struct {
	Action string  `json:"action" validate:"required"`
	Reason *string `json:"reason"`
}

// ConfirmationService applies confirmation actions to lecturer
// assignments. The state machine itself is pure; this service loads the
// current state, records the transition atomically, and performs the
// transition's side effects (notifications). Roster membership is
// derived from the stored status at read time, so no roster mutation is
// needed when a lecturer declines.
type ConfirmationService struct {
	assignments assignmentStore
	sessions    sessionReader
	notifier    Notifier
	logger      *zap.Logger
}

// NewConfirmationService builds a ConfirmationService.
func NewConfirmationService(assignments assignmentStore, sessions sessionReader, notifier Notifier, logger *zap.Logger) *ConfirmationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = NewLogNotifier(logger)
	}
	return &ConfirmationService{assignments: assignments, sessions: sessions, notifier: notifier, logger: logger}
}

// ParseAction validates a raw action string.
func ParseAction(raw string) (scheduling.Action, error) {
	action := scheduling.Action(raw)
	switch action {
	case scheduling.ActionConfirmAvailable,
		scheduling.ActionConfirmUnavailable,
		scheduling.ActionRequestReschedule,
		scheduling.ActionRejectReschedule,
		scheduling.ActionReset:
		return action, nil
	}
	return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown confirmation action %q", raw))
}

// Apply runs one confirmation action for a lecturer on an entry.
// Illegal transitions (acting on an already-settled confirmation)
// surface as precondition failures, not internal errors.
func (s *ConfirmationService) Apply(ctx context.Context, kind models.Kind, entryID, lecturerID string, req ConfirmationRequest) (*models.LecturerAssignment, error) {
	action, err := ParseAction(req.Action)
	if err != nil {
		return nil, err
	}
	if action == scheduling.ActionConfirmUnavailable && (req.Reason == nil || *req.Reason == "") {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a reason is required when declining an assignment")
	}

	assignment, err := s.assignments.Find(ctx, kind, entryID, lecturerID)
	if err != nil {
		return nil, err
	}

	next, effects, err := scheduling.Transition(assignment.Status, action)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPreconditionFailed.Code, appErrors.ErrPreconditionFailed.Status, err.Error())
	}

	if err := s.assignments.RecordTransition(ctx, assignment.ID, assignment.Status, next, req.Reason); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record confirmation")
	}

	from := assignment.Status
	assignment.Status = next
	assignment.Reason = req.Reason

	s.logger.Info("confirmation transition",
		zap.String("assignment_id", assignment.ID),
		zap.String("lecturer_id", lecturerID),
		zap.String("from", string(from)),
		zap.String("to", string(next)),
		zap.String("action", string(action)),
	)

	session, sessErr := s.sessions.FindByID(ctx, kind, entryID)
	if sessErr != nil {
		// The transition is committed; notification context is best effort.
		s.logger.Warn("confirmation applied but session lookup failed",
			zap.String("entry_id", entryID), zap.Error(sessErr))
		session = &models.Session{ID: entryID, Kind: kind}
	}
	if effects.ReplacementNeeded {
		s.notifier.ReplacementNeeded(ctx, *assignment, session)
	}
	if effects.RescheduleRaised {
		s.notifier.RescheduleRequested(ctx, *assignment, session)
	}

	return assignment, nil
}

// Roster lists every assignment on an entry, including declined ones.
func (s *ConfirmationService) Roster(ctx context.Context, kind models.Kind, entryID string) ([]models.LecturerAssignment, error) {
	return s.assignments.ListByEntry(ctx, kind, entryID)
}

// History returns the append-only transition log for an assignment.
func (s *ConfirmationService) History(ctx context.Context, kind models.Kind, entryID, lecturerID string) ([]models.ConfirmationTransition, error) {
	assignment, err := s.assignments.Find(ctx, kind, entryID, lecturerID)
	if err != nil {
		return nil, err
	}
	return s.assignments.History(ctx, assignment.ID)
}
