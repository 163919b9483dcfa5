package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/akademik-fk/curriculum-api/internal/models"
	appErrors "github.com/akademik-fk/curriculum-api/pkg/errors"
)

type stubAssignmentStore struct {
	assignments map[string]*models.LecturerAssignment
	transitions []models.ConfirmationTransition
	recordErr   error
}

func assignmentKey(kind models.Kind, entryID, lecturerID string) string {
	return string(kind) + "/" + entryID + "/" + lecturerID
}

func newStubAssignmentStore(assignments ...*models.LecturerAssignment) *stubAssignmentStore {
	store := &stubAssignmentStore{assignments: make(map[string]*models.LecturerAssignment)}
	for _, a := range assignments {
		store.assignments[assignmentKey(a.EntryKind, a.EntryID, a.LecturerID)] = a
	}
	return store
}

func (st *stubAssignmentStore) Find(_ context.Context, kind models.Kind, entryID, lecturerID string) (*models.LecturerAssignment, error) {
	if a, ok := st.assignments[assignmentKey(kind, entryID, lecturerID)]; ok {
		copy := *a
		return &copy, nil
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
}

func (st *stubAssignmentStore) ListByEntry(_ context.Context, kind models.Kind, entryID string) ([]models.LecturerAssignment, error) {
	var out []models.LecturerAssignment
	for _, a := range st.assignments {
		if a.EntryKind == kind && a.EntryID == entryID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (st *stubAssignmentStore) RecordTransition(_ context.Context, assignmentID string, from, to models.ConfirmationStatus, reason *string) error {
	if st.recordErr != nil {
		return st.recordErr
	}
	st.transitions = append(st.transitions, models.ConfirmationTransition{
		AssignmentID: assignmentID,
		FromStatus:   from,
		ToStatus:     to,
		Reason:       reason,
	})
	for _, a := range st.assignments {
		if a.ID == assignmentID {
			a.Status = to
			a.Reason = reason
		}
	}
	return nil
}

func (st *stubAssignmentStore) History(_ context.Context, assignmentID string) ([]models.ConfirmationTransition, error) {
	var out []models.ConfirmationTransition
	for _, tr := range st.transitions {
		if tr.AssignmentID == assignmentID {
			out = append(out, tr)
		}
	}
	return out, nil
}

type stubSessionReader struct {
	session *models.Session
}

func (s stubSessionReader) FindByID(_ context.Context, _ models.Kind, _ string) (*models.Session, error) {
	if s.session == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
	}
	return s.session, nil
}

func freshAssignment() *models.LecturerAssignment {
	return &models.LecturerAssignment{
		ID:         "A1",
		EntryKind:  models.KindCSR,
		EntryID:    "S1",
		LecturerID: "L1",
		Role:       models.RoleCoordinator,
		Status:     models.StatusNotConfirmed,
	}
}

func newConfirmationFixture(assignments ...*models.LecturerAssignment) (*ConfirmationService, *stubAssignmentStore, *recordingNotifier) {
	store := newStubAssignmentStore(assignments...)
	notifier := &recordingNotifier{}
	sessions := stubSessionReader{session: &models.Session{ID: "S1", Kind: models.KindCSR, Title: "Anatomi Dasar"}}
	return NewConfirmationService(store, sessions, notifier, zap.NewNop()), store, notifier
}

func TestConfirmationApplyAvailable(t *testing.T) {
	svc, store, notifier := newConfirmationFixture(freshAssignment())

	updated, err := svc.Apply(context.Background(), models.KindCSR, "S1", "L1", ConfirmationRequest{Action: "CONFIRM_AVAILABLE"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusAvailable, updated.Status)
	require.Len(t, store.transitions, 1)
	assert.Equal(t, models.StatusNotConfirmed, store.transitions[0].FromStatus)
	assert.Equal(t, models.StatusAvailable, store.transitions[0].ToStatus)
	assert.Empty(t, notifier.replacements)
}

func TestConfirmationDeclineRequiresReason(t *testing.T) {
	svc, _, _ := newConfirmationFixture(freshAssignment())

	_, err := svc.Apply(context.Background(), models.KindCSR, "S1", "L1", ConfirmationRequest{Action: "CONFIRM_UNAVAILABLE"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestConfirmationDeclineRaisesReplacement(t *testing.T) {
	svc, store, notifier := newConfirmationFixture(freshAssignment())
	reason := "bertugas di RS"

	updated, err := svc.Apply(context.Background(), models.KindCSR, "S1", "L1", ConfirmationRequest{Action: "CONFIRM_UNAVAILABLE", Reason: &reason})
	require.NoError(t, err)
	assert.Equal(t, models.StatusUnavailable, updated.Status)
	assert.False(t, updated.Active())
	require.Len(t, notifier.replacements, 1)
	require.NotNil(t, store.transitions[0].Reason)
	assert.Equal(t, reason, *store.transitions[0].Reason)
}

func TestConfirmationRescheduleRoundTrip(t *testing.T) {
	svc, _, notifier := newConfirmationFixture(freshAssignment())
	ctx := context.Background()

	updated, err := svc.Apply(ctx, models.KindCSR, "S1", "L1", ConfirmationRequest{Action: "REQUEST_RESCHEDULE"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusRescheduleWaiting, updated.Status)
	assert.Len(t, notifier.reschedules, 1)

	// Administrator rejects; the confirmation reopens.
	updated, err = svc.Apply(ctx, models.KindCSR, "S1", "L1", ConfirmationRequest{Action: "REJECT_RESCHEDULE"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusNotConfirmed, updated.Status)
}

func TestConfirmationSettledStateIsTerminal(t *testing.T) {
	a := freshAssignment()
	a.Status = models.StatusAvailable
	svc, store, _ := newConfirmationFixture(a)

	_, err := svc.Apply(context.Background(), models.KindCSR, "S1", "L1", ConfirmationRequest{Action: "CONFIRM_AVAILABLE"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
	assert.Empty(t, store.transitions)
}

func TestConfirmationUnknownAction(t *testing.T) {
	svc, _, _ := newConfirmationFixture(freshAssignment())

	_, err := svc.Apply(context.Background(), models.KindCSR, "S1", "L1", ConfirmationRequest{Action: "MAYBE"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestConfirmationHistory(t *testing.T) {
	svc, _, _ := newConfirmationFixture(freshAssignment())
	ctx := context.Background()

	_, err := svc.Apply(ctx, models.KindCSR, "S1", "L1", ConfirmationRequest{Action: "REQUEST_RESCHEDULE"})
	require.NoError(t, err)
	_, err = svc.Apply(ctx, models.KindCSR, "S1", "L1", ConfirmationRequest{Action: "REJECT_RESCHEDULE"})
	require.NoError(t, err)

	history, err := svc.History(ctx, models.KindCSR, "S1", "L1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.StatusRescheduleWaiting, history[0].ToStatus)
	assert.Equal(t, models.StatusNotConfirmed, history[1].ToStatus)
}
