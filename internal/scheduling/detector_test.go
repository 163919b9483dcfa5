package scheduling

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akademik-fk/curriculum-api/internal/models"
)

func TestDetectLecturerConflict(t *testing.T) {
	w := window(t, "2024-01-10", "08:00", "10:00")
	existing := entry(t, "e1", models.KindPBL, "term-1", w,
		withLecturers("L1"), withRoom("R1", "Tutorial 1"), withSmallGroup("G1", "A1"))
	src := &sourceStub{entries: []models.Entry{existing}}
	det := NewDetector(src, nil)

	candidate := entry(t, "", models.KindCSR, "term-1", window(t, "2024-01-10", "09:00", "11:00"),
		withLecturers("L1"), withRoom("R2", "Skills Lab"), withSmallGroup("G2", "A2"))

	conflict, err := det.Detect(context.Background(), candidate, DetectOptions{})
	require.NoError(t, err)
	require.NotNil(t, conflict)
	assert.Equal(t, "e1", conflict.EntryID)
	assert.Equal(t, models.KindPBL, conflict.Kind)
	assert.Equal(t, models.DimensionLecturer, conflict.Dimension)
	assert.Equal(t, "Dr. L1", conflict.ResourceName)
	assert.Contains(t, conflict.Message(), "PBL")
	assert.Contains(t, conflict.Message(), "2024-01-10")
}

func TestDetectRoomConflict(t *testing.T) {
	w := window(t, "2024-01-10", "08:00", "10:00")
	existing := entry(t, "e1", models.KindKuliahBesar, "term-1", w,
		withLecturers("L1"), withRoom("R1", "Aula"), withLargeGroup("A1"))
	src := &sourceStub{entries: []models.Entry{existing}}
	det := NewDetector(src, nil)

	candidate := entry(t, "", models.KindAgendaKhusus, "term-1", window(t, "2024-01-10", "09:30", "10:30"),
		withRoom("R1", "Aula"))

	conflict, err := det.Detect(context.Background(), candidate, DetectOptions{})
	require.NoError(t, err)
	require.NotNil(t, conflict)
	assert.Equal(t, models.DimensionRoom, conflict.Dimension)
	assert.Equal(t, "Aula", conflict.ResourceName)
}

func TestDetectDisjointResourcesNeverConflict(t *testing.T) {
	w := window(t, "2024-01-10", "08:00", "10:00")
	existing := entry(t, "e1", models.KindPBL, "term-1", w,
		withLecturers("L1"), withRoom("R1", "Tutorial 1"), withSmallGroup("G1", "A1"))
	src := &sourceStub{entries: []models.Entry{existing}}
	det := NewDetector(src, nil)

	// Same window, all resources disjoint (including parent cohorts).
	candidate := entry(t, "", models.KindPBL, "term-1", w,
		withLecturers("L2"), withRoom("R2", "Tutorial 2"), withSmallGroup("G2", "A2"))

	conflict, err := det.Detect(context.Background(), candidate, DetectOptions{})
	require.NoError(t, err)
	assert.Nil(t, conflict)
}

func TestDetectExcludesOwnRecordOnUpdate(t *testing.T) {
	w := window(t, "2024-01-10", "08:00", "10:00")
	existing := entry(t, "e1", models.KindCSR, "term-1", w,
		withLecturers("L1"), withRoom("R1", "Skills Lab"), withSmallGroup("G1", "A1"))
	src := &sourceStub{entries: []models.Entry{existing}}
	det := NewDetector(src, nil)

	// Updating e1 in place must not conflict with its stored state.
	conflict, err := det.Detect(context.Background(), existing, DetectOptions{ExcludeID: "e1"})
	require.NoError(t, err)
	assert.Nil(t, conflict)

	// A different entry with the same resources still conflicts.
	other := existing
	other.ID = ""
	conflict, err = det.Detect(context.Background(), other, DetectOptions{})
	require.NoError(t, err)
	require.NotNil(t, conflict)
}

func TestDetectBackToBackIsLegal(t *testing.T) {
	existing := entry(t, "e1", models.KindPBL, "term-1", window(t, "2024-01-10", "08:00", "10:00"),
		withLecturers("L1"), withRoom("R1", "Tutorial 1"), withSmallGroup("G1", "A1"))
	src := &sourceStub{entries: []models.Entry{existing}}
	det := NewDetector(src, nil)

	candidate := entry(t, "", models.KindPBL, "term-1", window(t, "2024-01-10", "10:00", "11:00"),
		withLecturers("L1"), withRoom("R1", "Tutorial 1"), withSmallGroup("G1", "A1"))

	conflict, err := det.Detect(context.Background(), candidate, DetectOptions{})
	require.NoError(t, err)
	assert.Nil(t, conflict)
}

func TestDetectTermScoping(t *testing.T) {
	w := window(t, "2024-01-10", "08:00", "10:00")
	otherTerm := entry(t, "e1", models.KindPBL, "term-2", w,
		withLecturers("L1"), withRoom("R1", "Tutorial 1"), withSmallGroup("G1", "A1"))
	src := &sourceStub{entries: []models.Entry{otherTerm}}
	det := NewDetector(src, nil)

	candidate := entry(t, "", models.KindPBL, "term-1", w,
		withLecturers("L1"), withRoom("R1", "Tutorial 1"), withSmallGroup("G1", "A1"))

	conflict, err := det.Detect(context.Background(), candidate, DetectOptions{})
	require.NoError(t, err)
	assert.Nil(t, conflict)
	assert.Equal(t, "term-1", src.lastTermID)
}

func TestDetectUnknownTermFailsOpen(t *testing.T) {
	w := window(t, "2024-01-10", "08:00", "10:00")
	otherTerm := entry(t, "e1", models.KindPBL, "term-2", w,
		withLecturers("L1"), withRoom("R1", "Tutorial 1"), withSmallGroup("G1", "A1"))
	src := &sourceStub{entries: []models.Entry{otherTerm}}
	det := NewDetector(src, nil)

	// Unresolvable term: compare against all terms.
	candidate := entry(t, "", models.KindPBL, "", w,
		withLecturers("L1"), withRoom("R9", "Elsewhere"), withSmallGroup("G9", "A9"))

	conflict, err := det.Detect(context.Background(), candidate, DetectOptions{})
	require.NoError(t, err)
	require.NotNil(t, conflict)
	assert.Equal(t, models.DimensionLecturer, conflict.Dimension)
}

func TestDetectNestedMembership(t *testing.T) {
	// A whole-cohort seminar blocks a small-group tutorial whose group
	// belongs to that cohort, and vice versa.
	pleno := entry(t, "e1", models.KindSeminarPleno, "term-1", window(t, "2024-01-10", "08:00", "10:00"),
		withRoom("AULA", "Aula"), withLargeGroup("A1"))
	src := &sourceStub{entries: []models.Entry{pleno}}
	det := NewDetector(src, nil)

	tutorial := entry(t, "", models.KindPBL, "term-1", window(t, "2024-01-10", "09:00", "11:00"),
		withLecturers("L5"), withRoom("R2", "Tutorial 2"), withSmallGroup("G1", "A1"))

	conflict, err := det.Detect(context.Background(), tutorial, DetectOptions{})
	require.NoError(t, err)
	require.NotNil(t, conflict)
	assert.Equal(t, models.DimensionLargeGroup, conflict.Dimension)

	// Disjoint cohort does not collide.
	tutorial = entry(t, "", models.KindPBL, "term-1", window(t, "2024-01-10", "09:00", "11:00"),
		withLecturers("L5"), withRoom("R2", "Tutorial 2"), withSmallGroup("G7", "A2"))
	conflict, err = det.Detect(context.Background(), tutorial, DetectOptions{})
	require.NoError(t, err)
	assert.Nil(t, conflict)
}

func TestDetectOwnKindScannedFirst(t *testing.T) {
	w := window(t, "2024-01-10", "08:00", "10:00")
	lecture := entry(t, "lecture", models.KindKuliahBesar, "term-1", w,
		withLecturers("L1"), withRoom("R1", "Aula"), withLargeGroup("A1"))
	tutorial := entry(t, "tutorial", models.KindPBL, "term-1", w,
		withLecturers("L1"), withRoom("R2", "Tutorial 2"), withSmallGroup("G1", "A9"))
	// Source returns the foreign kind first; detector must still report
	// the candidate's own kind.
	src := &sourceStub{entries: []models.Entry{lecture, tutorial}}
	det := NewDetector(src, nil)

	candidate := entry(t, "", models.KindPBL, "term-1", w,
		withLecturers("L1"), withRoom("R3", "Tutorial 3"), withSmallGroup("G2", "A8"))

	conflict, err := det.Detect(context.Background(), candidate, DetectOptions{})
	require.NoError(t, err)
	require.NotNil(t, conflict)
	assert.Equal(t, "tutorial", conflict.EntryID)
}

func TestDetectIntraBatchRows(t *testing.T) {
	src := &sourceStub{}
	det := NewDetector(src, nil)

	w := window(t, "2024-01-10", "08:00", "10:00")
	earlier := entry(t, "", models.KindCSR, "term-1", w,
		withLecturers("L1"), withRoom("R1", "Skills Lab"), withSmallGroup("G1", "A1"))
	candidate := entry(t, "", models.KindCSR, "term-1", window(t, "2024-01-10", "09:00", "11:00"),
		withLecturers("L2"), withRoom("R1", "Skills Lab"), withSmallGroup("G2", "A2"))

	conflict, err := det.Detect(context.Background(), candidate, DetectOptions{Extra: []models.Entry{earlier}})
	require.NoError(t, err)
	require.NotNil(t, conflict)
	assert.Equal(t, models.DimensionRoom, conflict.Dimension)
	assert.Equal(t, 1, conflict.BatchRow)
	assert.Contains(t, conflict.Message(), "row 1 of this batch")
}

func TestDetectStoredEntryReportedBeforeBatchRow(t *testing.T) {
	// A candidate clashing with both a persisted session and an earlier
	// batch row names the persisted one: the store-backed check runs
	// before the pairwise pass.
	w := window(t, "2024-01-10", "08:00", "10:00")
	stored := entry(t, "stored", models.KindCSR, "term-1", w,
		withLecturers("L1"), withRoom("R1", "Skills Lab"), withSmallGroup("G1", "A1"))
	src := &sourceStub{entries: []models.Entry{stored}}
	det := NewDetector(src, nil)

	batchRow := entry(t, "", models.KindCSR, "term-1", w,
		withLecturers("L2"), withRoom("R1", "Skills Lab"), withSmallGroup("G2", "A2"))
	candidate := entry(t, "", models.KindCSR, "term-1", window(t, "2024-01-10", "09:00", "11:00"),
		withLecturers("L3"), withRoom("R1", "Skills Lab"), withSmallGroup("G3", "A3"))

	conflict, err := det.Detect(context.Background(), candidate, DetectOptions{Extra: []models.Entry{batchRow}})
	require.NoError(t, err)
	require.NotNil(t, conflict)
	assert.Equal(t, "stored", conflict.EntryID)
	assert.Zero(t, conflict.BatchRow)
}

func TestDetectPropagatesStoreFailure(t *testing.T) {
	src := &sourceStub{err: errors.New("connection refused")}
	det := NewDetector(src, nil)

	candidate := entry(t, "", models.KindPBL, "term-1", window(t, "2024-01-10", "08:00", "10:00"))
	_, err := det.Detect(context.Background(), candidate, DetectOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestComparePraktikumLecturerNotACompareDimension(t *testing.T) {
	// A Praktikum entry carries its roster for seat counting, yet a
	// shared lecturer alone must not collide: the kind compares on room
	// and group only. Sharing the room still does.
	w := window(t, "2024-01-10", "08:00", "10:00")
	praktikum := entry(t, "p1", models.KindPraktikum, "term-1", w,
		withLecturers("L1", "L2"), withRoom("LAB1", "Lab Histologi"), withSmallGroup("G1", "A1"))

	sameLecturer := entry(t, "", models.KindCSR, "term-1", w,
		withLecturers("L1"), withRoom("R2", "Skills Lab"), withSmallGroup("G2", "A2"))
	assert.Nil(t, Compare(sameLecturer, praktikum))

	sameRoom := entry(t, "", models.KindCSR, "term-1", w,
		withLecturers("L3"), withRoom("LAB1", "Lab Histologi"), withSmallGroup("G2", "A2"))
	conflict := Compare(sameRoom, praktikum)
	require.NotNil(t, conflict)
	assert.Equal(t, models.DimensionRoom, conflict.Dimension)
}

func TestCompareUnavailableLecturerUnblocks(t *testing.T) {
	// The entry source already omits Unavailable lecturers from the
	// roster, so the existing entry only carries L2; a candidate for L1
	// at the exact same time no longer collides on the lecturer
	// dimension, while the room dimension still applies.
	w := window(t, "2024-01-10", "08:00", "10:00")
	existing := entry(t, "e1", models.KindKuliahBesar, "term-1", w,
		withLecturers("L2"), withRoom("R1", "Aula"), withLargeGroup("A1"))

	sameRoom := entry(t, "", models.KindKuliahBesar, "term-1", w,
		withLecturers("L1"), withRoom("R1", "Aula"), withLargeGroup("A2"))
	conflict := Compare(sameRoom, existing)
	require.NotNil(t, conflict)
	assert.Equal(t, models.DimensionRoom, conflict.Dimension)

	otherRoom := entry(t, "", models.KindKuliahBesar, "term-1", w,
		withLecturers("L1"), withRoom("R2", "Gedung B"), withLargeGroup("A2"))
	assert.Nil(t, Compare(otherRoom, existing))
}
