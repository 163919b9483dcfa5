package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/akademik-fk/curriculum-api/internal/models"
	"github.com/akademik-fk/curriculum-api/pkg/jobs"
)

const (
	eventAssignmentCreated   = "assignment.created"
	eventReplacementNeeded   = "assignment.replacement_needed"
	eventRescheduleRequested = "assignment.reschedule_requested"
)

type notificationPayload struct {
	Assignment models.LecturerAssignment
	Session    models.Session
}

// QueueNotifier moves notification delivery off the request path onto
// an in-memory worker queue with retries, delegating actual delivery to
// the wrapped Notifier. Enqueue failures degrade to synchronous
// delivery rather than dropping the event.
type QueueNotifier struct {
	queue  *jobs.Queue
	next   Notifier
	logger *zap.Logger
}

// NewQueueNotifier builds a QueueNotifier around next. Call Start
// before use and Stop on shutdown.
func NewQueueNotifier(next Notifier, workers int, logger *zap.Logger) *QueueNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if next == nil {
		next = NewLogNotifier(logger)
	}
	n := &QueueNotifier{next: next, logger: logger}
	n.queue = jobs.NewQueue("notifications", n.deliver, jobs.QueueConfig{
		Workers: workers,
		Logger:  logger,
	})
	return n
}

// Start launches the delivery workers.
func (n *QueueNotifier) Start(ctx context.Context) {
	n.queue.Start(ctx)
}

// Stop drains the workers.
func (n *QueueNotifier) Stop() {
	n.queue.Stop()
}

// Depth reports the number of queued, undelivered notifications.
func (n *QueueNotifier) Depth() int {
	return n.queue.Depth()
}

func (n *QueueNotifier) AssignmentCreated(ctx context.Context, assignment models.LecturerAssignment, session *models.Session) {
	n.enqueue(ctx, eventAssignmentCreated, assignment, session)
}

func (n *QueueNotifier) ReplacementNeeded(ctx context.Context, assignment models.LecturerAssignment, session *models.Session) {
	n.enqueue(ctx, eventReplacementNeeded, assignment, session)
}

func (n *QueueNotifier) RescheduleRequested(ctx context.Context, assignment models.LecturerAssignment, session *models.Session) {
	n.enqueue(ctx, eventRescheduleRequested, assignment, session)
}

func (n *QueueNotifier) enqueue(ctx context.Context, event string, assignment models.LecturerAssignment, session *models.Session) {
	if session == nil {
		session = &models.Session{}
	}
	err := n.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    event,
		Payload: notificationPayload{Assignment: assignment, Session: *session},
	})
	if err == nil {
		return
	}
	n.logger.Warn("notification queue unavailable, delivering inline",
		zap.String("event", event), zap.Error(err))
	n.deliverEvent(ctx, event, assignment, session)
}

func (n *QueueNotifier) deliver(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(notificationPayload)
	if !ok {
		return fmt.Errorf("unexpected payload type %T for job %s", job.Payload, job.ID)
	}
	n.deliverEvent(ctx, job.Type, payload.Assignment, &payload.Session)
	return nil
}

func (n *QueueNotifier) deliverEvent(ctx context.Context, event string, assignment models.LecturerAssignment, session *models.Session) {
	switch event {
	case eventAssignmentCreated:
		n.next.AssignmentCreated(ctx, assignment, session)
	case eventReplacementNeeded:
		n.next.ReplacementNeeded(ctx, assignment, session)
	case eventRescheduleRequested:
		n.next.RescheduleRequested(ctx, assignment, session)
	default:
		n.logger.Warn("unknown notification event", zap.String("event", event))
	}
}
