package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/akademik-fk/curriculum-api/internal/models"
)

type sourceStub struct {
	entries []models.Entry
	err     error
	// lastTermID records the scope the detector asked for.
	lastTermID string
}

func (s *sourceStub) EntriesInTerm(ctx context.Context, termID string) ([]models.Entry, error) {
	s.lastTermID = termID
	if s.err != nil {
		return nil, s.err
	}
	if termID == "" {
		return s.entries, nil
	}
	var scoped []models.Entry
	for _, e := range s.entries {
		if e.TermID == termID {
			scoped = append(scoped, e)
		}
	}
	return scoped, nil
}

type roomStub struct {
	rooms map[string]*models.Room
}

func (s *roomStub) Room(ctx context.Context, id string) (*models.Room, error) {
	if r, ok := s.rooms[id]; ok {
		return r, nil
	}
	return nil, context.Canceled
}

type groupStub struct {
	small map[string]int
	large map[string]int
}

func (s *groupStub) SmallGroupSize(ctx context.Context, id string) (int, error) {
	return s.small[id], nil
}

func (s *groupStub) LargeGroupSize(ctx context.Context, id string) (int, error) {
	return s.large[id], nil
}

func window(t *testing.T, date, start, end string) models.TimeWindow {
	t.Helper()
	d, err := time.Parse("2006-01-02", date)
	require.NoError(t, err)
	s, err := models.ParseTimeOfDay(start)
	require.NoError(t, err)
	e, err := models.ParseTimeOfDay(end)
	require.NoError(t, err)
	w, err := models.NewTimeWindow(d, s, e)
	require.NoError(t, err)
	return w
}

type entryOpt func(*models.Entry)

func withLecturers(ids ...string) entryOpt {
	return func(e *models.Entry) {
		e.Resources.LecturerIDs = ids
		e.Resources.LecturerNames = make(map[string]string, len(ids))
		for _, id := range ids {
			e.Resources.LecturerNames[id] = "Dr. " + id
		}
	}
}

func withRoom(id, name string) entryOpt {
	return func(e *models.Entry) {
		e.UsesRoom = true
		e.Resources.RoomID = id
		e.Resources.RoomName = name
	}
}

func withSmallGroup(id, parentID string) entryOpt {
	return func(e *models.Entry) {
		e.Resources.SmallGroupID = id
		e.Resources.SmallGroupParentID = parentID
		e.Resources.GroupName = "Kelompok " + id
	}
}

func withLargeGroup(id string) entryOpt {
	return func(e *models.Entry) {
		e.Resources.LargeGroupID = id
		e.Resources.GroupName = "Angkatan " + id
	}
}

func entry(t *testing.T, id string, kind models.Kind, termID string, w models.TimeWindow, opts ...entryOpt) models.Entry {
	t.Helper()
	e := models.Entry{ID: id, Kind: kind, TermID: termID, Window: w}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}
