package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/akademik-fk/curriculum-api/internal/models"
	"github.com/akademik-fk/curriculum-api/internal/scheduling"
	appErrors "github.com/akademik-fk/curriculum-api/pkg/errors"
)

type stubDirectory struct {
	rooms     map[string]*models.Room
	lecturers map[string]*models.Lecturer
	smalls    map[string]*models.SmallGroup
	larges    map[string]*models.LargeGroup
}

func newStubDirectory() *stubDirectory {
	return &stubDirectory{
		rooms: map[string]*models.Room{
			"R1": {ID: "R1", Name: "Ruang Kuliah A", Capacity: 30},
			"R2": {ID: "R2", Name: "Ruang Tutorial 3", Capacity: 12},
		},
		lecturers: map[string]*models.Lecturer{
			"L1": {ID: "L1", Name: "dr. Sari"},
			"L2": {ID: "L2", Name: "dr. Budi"},
			"L3": {ID: "L3", Name: "dr. Ratna"},
		},
		smalls: map[string]*models.SmallGroup{
			"SG1": {ID: "SG1", Name: "Kelompok 1", MemberCount: 10, LargeGroupID: "LG1"},
			"SG2": {ID: "SG2", Name: "Kelompok 2", MemberCount: 10, LargeGroupID: "LG1"},
		},
		larges: map[string]*models.LargeGroup{
			"LG1": {ID: "LG1", Name: "Angkatan 2024", MemberCount: 120},
		},
	}
}

func (d *stubDirectory) Room(_ context.Context, id string) (*models.Room, error) {
	if room, ok := d.rooms[id]; ok {
		return room, nil
	}
	return nil, appErrors.Clone(appErrors.ErrValidation, "unknown room "+id)
}

func (d *stubDirectory) Lecturer(_ context.Context, id string) (*models.Lecturer, error) {
	if lecturer, ok := d.lecturers[id]; ok {
		return lecturer, nil
	}
	return nil, appErrors.Clone(appErrors.ErrValidation, "unknown lecturer "+id)
}

func (d *stubDirectory) SmallGroup(_ context.Context, id string) (*models.SmallGroup, error) {
	if group, ok := d.smalls[id]; ok {
		return group, nil
	}
	return nil, appErrors.Clone(appErrors.ErrValidation, "unknown group "+id)
}

func (d *stubDirectory) LargeGroup(_ context.Context, id string) (*models.LargeGroup, error) {
	if group, ok := d.larges[id]; ok {
		return group, nil
	}
	return nil, appErrors.Clone(appErrors.ErrValidation, "unknown cohort "+id)
}

func (d *stubDirectory) SmallGroupSize(ctx context.Context, id string) (int, error) {
	group, err := d.SmallGroup(ctx, id)
	if err != nil {
		return 0, err
	}
	return group.MemberCount, nil
}

func (d *stubDirectory) LargeGroupSize(ctx context.Context, id string) (int, error) {
	group, err := d.LargeGroup(ctx, id)
	if err != nil {
		return 0, err
	}
	return group.MemberCount, nil
}

// stubSessionStore mimics the repository: the check closure runs
// against the current contents, and the row is persisted only when the
// check passes.
type stubSessionStore struct {
	dir        *stubDirectory
	sessions   map[string]*models.Session
	rosters    map[string][]models.LecturerAssignment
	lastReset  bool
	lastLocks  []string
	resetCount int
}

func newStubSessionStore(dir *stubDirectory) *stubSessionStore {
	return &stubSessionStore{
		dir:      dir,
		sessions: make(map[string]*models.Session),
		rosters:  make(map[string][]models.LecturerAssignment),
	}
}

func storeKey(kind models.Kind, id string) string {
	return string(kind) + "/" + id
}

func (st *stubSessionStore) FindByID(_ context.Context, kind models.Kind, id string) (*models.Session, error) {
	if session, ok := st.sessions[storeKey(kind, id)]; ok {
		copy := *session
		return &copy, nil
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
}

func (st *stubSessionStore) List(_ context.Context, kind models.Kind, _ models.SessionFilter) ([]models.Session, int, error) {
	var out []models.Session
	for _, session := range st.sessions {
		if session.Kind == kind {
			out = append(out, *session)
		}
	}
	return out, len(out), nil
}

func (st *stubSessionStore) Delete(_ context.Context, kind models.Kind, id string) error {
	key := storeKey(kind, id)
	if _, ok := st.sessions[key]; !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "session not found")
	}
	delete(st.sessions, key)
	delete(st.rosters, key)
	return nil
}

func (st *stubSessionStore) CreateValidated(ctx context.Context, session *models.Session, assignments []models.LecturerAssignment, lockKeys []string, check func(ctx context.Context, src scheduling.EntrySource) error) error {
	st.lastLocks = lockKeys
	if err := check(ctx, stubEntries{st}); err != nil {
		return err
	}
	st.sessions[storeKey(session.Kind, session.ID)] = session
	st.rosters[storeKey(session.Kind, session.ID)] = assignments
	return nil
}

func (st *stubSessionStore) UpdateValidated(ctx context.Context, session *models.Session, lockKeys []string, resetConfirmations bool, check func(ctx context.Context, src scheduling.EntrySource) error) error {
	st.lastLocks = lockKeys
	if err := check(ctx, stubEntries{st}); err != nil {
		return err
	}
	st.sessions[storeKey(session.Kind, session.ID)] = session
	st.lastReset = resetConfirmations
	if resetConfirmations {
		st.resetCount++
	}
	return nil
}

func (st *stubSessionStore) BulkCreateValidated(ctx context.Context, sessions []*models.Session, assignments [][]models.LecturerAssignment, lockKeys []string, check func(ctx context.Context, src scheduling.EntrySource) error) error {
	st.lastLocks = lockKeys
	if err := check(ctx, stubEntries{st}); err != nil {
		return err
	}
	for i, session := range sessions {
		st.sessions[storeKey(session.Kind, session.ID)] = session
		st.rosters[storeKey(session.Kind, session.ID)] = assignments[i]
	}
	return nil
}

func (st *stubSessionStore) ListByEntry(_ context.Context, kind models.Kind, entryID string) ([]models.LecturerAssignment, error) {
	return st.rosters[storeKey(kind, entryID)], nil
}

// stubEntries adapts the store contents the way the repository entry
// source does, names joined in and declined lecturers dropped.
type stubEntries struct {
	store *stubSessionStore
}

func (s stubEntries) EntriesInTerm(_ context.Context, termID string) ([]models.Entry, error) {
	var out []models.Entry
	for key, session := range s.store.sessions {
		if termID != "" && session.TermID != termID {
			continue
		}
		row := models.SessionRow{Session: *session}
		if session.RoomID != nil {
			if room, ok := s.store.dir.rooms[*session.RoomID]; ok {
				name := room.Name
				row.RoomName = &name
			}
		}
		if session.SmallGroupID != nil {
			if group, ok := s.store.dir.smalls[*session.SmallGroupID]; ok {
				name, parent := group.Name, group.LargeGroupID
				row.SmallGroupName = &name
				row.SmallGroupParentID = &parent
			}
		}
		if session.LargeGroupID != nil {
			if group, ok := s.store.dir.larges[*session.LargeGroupID]; ok {
				name := group.Name
				row.LargeGroupName = &name
			}
		}
		var roster []models.LecturerAssignment
		for _, a := range s.store.rosters[key] {
			if a.Active() {
				roster = append(roster, a)
			}
		}
		out = append(out, scheduling.Adapt(session.Kind, row, roster))
	}
	return out, nil
}

type stubTerms struct {
	courses map[string]string
}

func (t stubTerms) TermIDForCourse(_ context.Context, courseCode string) (string, error) {
	return t.courses[courseCode], nil
}

type recordingNotifier struct {
	created      []models.LecturerAssignment
	replacements []models.LecturerAssignment
	reschedules  []models.LecturerAssignment
}

func (n *recordingNotifier) AssignmentCreated(_ context.Context, a models.LecturerAssignment, _ *models.Session) {
	n.created = append(n.created, a)
}

func (n *recordingNotifier) ReplacementNeeded(_ context.Context, a models.LecturerAssignment, _ *models.Session) {
	n.replacements = append(n.replacements, a)
}

func (n *recordingNotifier) RescheduleRequested(_ context.Context, a models.LecturerAssignment, _ *models.Session) {
	n.reschedules = append(n.reschedules, a)
}

type recordingMetrics struct {
	validations  []string
	conflicts    []string
	importedRows int
}

func (m *recordingMetrics) ObserveValidation(kind models.Kind, outcome string) {
	m.validations = append(m.validations, string(kind)+"/"+outcome)
}

func (m *recordingMetrics) ObserveConflict(kind models.Kind, dimension models.Dimension) {
	m.conflicts = append(m.conflicts, string(kind)+"/"+string(dimension))
}

func (m *recordingMetrics) ObserveImport(rows int) {
	m.importedRows += rows
}

func newScheduleFixture() (*ScheduleService, *stubSessionStore, *recordingNotifier) {
	dir := newStubDirectory()
	store := newStubSessionStore(dir)
	terms := stubTerms{courses: map[string]string{"MED101": "TERM1", "MED202": "TERM1"}}
	notifier := &recordingNotifier{}
	svc := NewScheduleService(
		store, store, terms, dir,
		stubEntries{store},
		scheduling.NewCapacityValidator(dir, dir),
		notifier, nil,
		zap.NewNop(),
	)
	return svc, store, notifier
}

func baseRequest() SessionRequest {
	return SessionRequest{
		CourseCode:  "MED101",
		Title:       "Anatomi Dasar",
		Date:        "2026-09-07",
		StartTime:   "09:00",
		EndTime:     "11:00",
		RoomID:      "R1",
		LecturerIDs: []string{"L1"},
		SmallGroupID: "SG1",
	}
}

func TestScheduleServiceCreateThenRoomConflictThenBackToBack(t *testing.T) {
	svc, store, notifier := newScheduleFixture()
	ctx := context.Background()

	first, err := svc.Create(ctx, models.KindCSR, baseRequest())
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "TERM1", first.TermID)
	assert.Len(t, notifier.created, 1)

	// Same room, overlapping window, everything else different.
	second := baseRequest()
	second.Title = "Tutorial PBL"
	second.StartTime = "10:00"
	second.EndTime = "12:00"
	second.LecturerIDs = []string{"L2"}
	second.SmallGroupID = "SG2"

	_, err = svc.Create(ctx, models.KindPBL, second)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "Ruang Kuliah A")
	assert.Len(t, store.sessions, 1, "conflicting session must not be persisted")

	// Back-to-back with the first session is legal.
	third := second
	third.StartTime = "11:00"
	third.EndTime = "13:00"
	_, err = svc.Create(ctx, models.KindPBL, third)
	require.NoError(t, err)
	assert.Len(t, store.sessions, 2)
}

func TestScheduleServiceConflictCountedByDimension(t *testing.T) {
	svc, _, _ := newScheduleFixture()
	metrics := &recordingMetrics{}
	svc.metrics = metrics
	ctx := context.Background()

	_, err := svc.Create(ctx, models.KindCSR, baseRequest())
	require.NoError(t, err)

	second := baseRequest()
	second.StartTime = "10:00"
	second.EndTime = "12:00"
	second.LecturerIDs = []string{"L2"}
	second.SmallGroupID = "SG2"
	_, err = svc.Create(ctx, models.KindPBL, second)
	require.Error(t, err)

	assert.Contains(t, metrics.validations, "CSR/ok")
	assert.Contains(t, metrics.validations, "PBL/conflict")
	assert.Equal(t, []string{"PBL/" + string(models.DimensionRoom)}, metrics.conflicts)
}

func TestScheduleServiceCreateLecturerConflictAcrossKinds(t *testing.T) {
	svc, _, _ := newScheduleFixture()
	ctx := context.Background()

	_, err := svc.Create(ctx, models.KindCSR, baseRequest())
	require.NoError(t, err)

	other := SessionRequest{
		CourseCode:  "MED101",
		Title:       "Kuliah Pakar",
		Date:        "2026-09-07",
		StartTime:   "10:30",
		EndTime:     "12:00",
		RoomID:      "R2",
		LecturerIDs: []string{"L1"},
		LargeGroupID: "LG1",
	}
	_, err = svc.Create(ctx, models.KindKuliahBesar, other)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "dr. Sari")
}

func TestScheduleServiceCreateNestedCohortConflict(t *testing.T) {
	svc, _, _ := newScheduleFixture()
	ctx := context.Background()

	// Cohort-wide lecture first.
	lecture := SessionRequest{
		CourseCode:   "MED101",
		Title:        "Kuliah Pakar",
		Date:         "2026-09-07",
		StartTime:    "09:00",
		EndTime:      "11:00",
		RoomID:       "R1",
		LecturerIDs:  []string{"L2"},
		LargeGroupID: "LG1",
	}
	_, err := svc.Create(ctx, models.KindKuliahBesar, lecture)
	require.NoError(t, err)

	// A small group inside that cohort cannot meet at the same time,
	// even in another room with another lecturer.
	tutorial := baseRequest()
	tutorial.RoomID = "R2"
	tutorial.LecturerIDs = []string{"L3"}
	_, err = svc.Create(ctx, models.KindCSR, tutorial)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestScheduleServiceCreateCapacityRejected(t *testing.T) {
	svc, store, _ := newScheduleFixture()

	req := baseRequest()
	req.RoomID = "R2" // capacity 12
	req.LecturerIDs = []string{"L1", "L2", "L3"} // 10 students + 3 lecturers = 13

	_, err := svc.Create(context.Background(), models.KindCSR, req)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrCapacity.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "Ruang Tutorial 3")
	assert.Contains(t, appErr.Message, "13")
	assert.Empty(t, store.sessions)
}

func TestScheduleServiceCreateRejectsResourcesForeignToKind(t *testing.T) {
	svc, _, _ := newScheduleFixture()
	ctx := context.Background()

	req := baseRequest()
	_, err := svc.Create(ctx, models.KindAgendaKhusus, req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	req = baseRequest()
	req.SmallGroupID = ""
	req.LargeGroupID = "LG1"
	_, err = svc.Create(ctx, models.KindCSR, req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestScheduleServiceCreateUnknownRoom(t *testing.T) {
	svc, _, _ := newScheduleFixture()

	req := baseRequest()
	req.RoomID = "R99"
	_, err := svc.Create(context.Background(), models.KindCSR, req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestScheduleServiceCreateInvalidWindow(t *testing.T) {
	svc, _, _ := newScheduleFixture()

	req := baseRequest()
	req.StartTime = "11:00"
	req.EndTime = "09:00"
	_, err := svc.Create(context.Background(), models.KindCSR, req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestScheduleServiceCoordinatorDefaultsToFirstLecturer(t *testing.T) {
	svc, store, _ := newScheduleFixture()

	req := baseRequest()
	req.LecturerIDs = []string{"L1", "L2"}
	session, err := svc.Create(context.Background(), models.KindCSR, req)
	require.NoError(t, err)

	roster := store.rosters[storeKey(models.KindCSR, session.ID)]
	require.Len(t, roster, 2)
	assert.Equal(t, models.RoleCoordinator, roster[0].Role)
	assert.Equal(t, models.RoleAssistant, roster[1].Role)
	assert.Equal(t, models.StatusNotConfirmed, roster[0].Status)
}

func TestScheduleServiceCoordinatorMustBeOnRoster(t *testing.T) {
	svc, _, _ := newScheduleFixture()

	req := baseRequest()
	req.CoordinatorID = "L3"
	_, err := svc.Create(context.Background(), models.KindCSR, req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestScheduleServiceUpdateMoveReopensConfirmations(t *testing.T) {
	svc, store, _ := newScheduleFixture()
	ctx := context.Background()

	session, err := svc.Create(ctx, models.KindCSR, baseRequest())
	require.NoError(t, err)

	update := UpdateSessionRequest{
		Title:        session.Title,
		Date:         "2026-09-08",
		StartTime:    "09:00",
		EndTime:      "11:00",
		RoomID:       "R1",
		SmallGroupID: "SG1",
	}
	_, err = svc.Update(ctx, models.KindCSR, session.ID, update)
	require.NoError(t, err)
	assert.True(t, store.lastReset, "moving the session must reopen confirmations")

	// Editing only the title keeps confirmations.
	update.Date = "2026-09-08"
	update.Title = "Anatomi Dasar (revisi)"
	_, err = svc.Update(ctx, models.KindCSR, session.ID, update)
	require.NoError(t, err)
	assert.False(t, store.lastReset)
}

func TestScheduleServiceUpdateExcludesOwnRow(t *testing.T) {
	svc, _, _ := newScheduleFixture()
	ctx := context.Background()

	session, err := svc.Create(ctx, models.KindCSR, baseRequest())
	require.NoError(t, err)

	// Re-saving the same slot must not conflict with itself.
	update := UpdateSessionRequest{
		Title:        "Anatomi Dasar",
		Date:         "2026-09-07",
		StartTime:    "09:00",
		EndTime:      "11:00",
		RoomID:       "R1",
		SmallGroupID: "SG1",
	}
	_, err = svc.Update(ctx, models.KindCSR, session.ID, update)
	require.NoError(t, err)
}

func TestScheduleServiceDryRunReportsWithoutPersisting(t *testing.T) {
	svc, store, _ := newScheduleFixture()
	ctx := context.Background()

	_, err := svc.Create(ctx, models.KindCSR, baseRequest())
	require.NoError(t, err)

	conflicting := baseRequest()
	conflicting.StartTime = "10:00"
	conflicting.EndTime = "12:00"
	conflicting.LecturerIDs = []string{"L2"}
	conflicting.SmallGroupID = "SG2"

	result, err := svc.DryRun(ctx, models.KindPBL, conflicting)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	require.NotNil(t, result.Conflict)
	assert.Equal(t, models.DimensionRoom, result.Conflict.Dimension)
	assert.Len(t, store.sessions, 1)

	clean := conflicting
	clean.RoomID = "R2"
	result, err = svc.DryRun(ctx, models.KindPBL, clean)
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestScheduleServiceUnavailableLecturerFreesTheSlot(t *testing.T) {
	svc, store, _ := newScheduleFixture()
	ctx := context.Background()

	session, err := svc.Create(ctx, models.KindCSR, baseRequest())
	require.NoError(t, err)

	// The lecturer declines; the stored status releases the dimension.
	key := storeKey(models.KindCSR, session.ID)
	store.rosters[key][0].Status = models.StatusUnavailable

	other := SessionRequest{
		CourseCode:   "MED101",
		Title:        "Kuliah Pakar",
		Date:         "2026-09-07",
		StartTime:    "09:00",
		EndTime:      "11:00",
		RoomID:       "R2",
		LecturerIDs:  []string{"L1"},
		SmallGroupID: "SG2",
	}
	_, err = svc.Create(ctx, models.KindPBL, other)
	require.NoError(t, err)
}
