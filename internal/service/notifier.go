package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/akademik-fk/curriculum-api/internal/models"
)

// Notifier receives scheduling events that should reach people: a
// lecturer assigned to a new session, a declined assignment needing a
// replacement, a reschedule request waiting on an administrator.
// Delivery transport (email, in-app) plugs in behind this interface.
type Notifier interface {
	AssignmentCreated(ctx context.Context, assignment models.LecturerAssignment, session *models.Session)
	ReplacementNeeded(ctx context.Context, assignment models.LecturerAssignment, session *models.Session)
	RescheduleRequested(ctx context.Context, assignment models.LecturerAssignment, session *models.Session)
}

// LogNotifier logs events instead of delivering them. Used until a real
// delivery channel is wired and in tests.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier builds a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) AssignmentCreated(_ context.Context, assignment models.LecturerAssignment, session *models.Session) {
	n.logger.Info("lecturer assigned",
		zap.String("lecturer_id", assignment.LecturerID),
		zap.String("role", string(assignment.Role)),
		zap.String("entry_kind", string(assignment.EntryKind)),
		zap.String("entry_id", assignment.EntryID),
		zap.String("title", session.Title),
	)
}

func (n *LogNotifier) ReplacementNeeded(_ context.Context, assignment models.LecturerAssignment, session *models.Session) {
	n.logger.Warn("replacement lecturer needed",
		zap.String("lecturer_id", assignment.LecturerID),
		zap.String("entry_kind", string(assignment.EntryKind)),
		zap.String("entry_id", assignment.EntryID),
		zap.String("title", session.Title),
	)
}

func (n *LogNotifier) RescheduleRequested(_ context.Context, assignment models.LecturerAssignment, session *models.Session) {
	n.logger.Info("reschedule requested",
		zap.String("lecturer_id", assignment.LecturerID),
		zap.String("entry_kind", string(assignment.EntryKind)),
		zap.String("entry_id", assignment.EntryID),
		zap.String("title", session.Title),
	)
}
