package scheduling

import (
	"context"
	"fmt"

	"github.com/akademik-fk/curriculum-api/internal/models"
)

// RoomLookup resolves a room's name and capacity.
type RoomLookup interface {
	Room(ctx context.Context, id string) (*models.Room, error)
}

// GroupSizeLookup resolves member counts for student groups.
type GroupSizeLookup interface {
	SmallGroupSize(ctx context.Context, id string) (int, error)
	LargeGroupSize(ctx context.Context, id string) (int, error)
}

// CapacityValidator checks that an entry's room can seat its attendees.
type CapacityValidator struct {
	rooms  RoomLookup
	groups GroupSizeLookup
}

// NewCapacityValidator builds a CapacityValidator.
func NewCapacityValidator(rooms RoomLookup, groups GroupSizeLookup) *CapacityValidator {
	return &CapacityValidator{rooms: rooms, groups: groups}
}

// Validate computes required seats for the entry and compares against
// the room capacity. Required = group size plus one seat per lecturer
// for kinds whose lecturers sit in the room; lecturer-only sessions need
// only the lecturer count. Entries without a room pass trivially:
// online sessions have nothing to validate.
func (v *CapacityValidator) Validate(ctx context.Context, entry models.Entry) (models.CapacityCheck, error) {
	if !entry.UsesRoom {
		return models.CapacityCheck{OK: true}, nil
	}

	room, err := v.rooms.Room(ctx, entry.Resources.RoomID)
	if err != nil {
		return models.CapacityCheck{}, fmt.Errorf("resolve room %q: %w", entry.Resources.RoomID, err)
	}

	groupSize := 0
	switch {
	case entry.Resources.SmallGroupID != "":
		groupSize, err = v.groups.SmallGroupSize(ctx, entry.Resources.SmallGroupID)
	case entry.Resources.LargeGroupID != "":
		groupSize, err = v.groups.LargeGroupSize(ctx, entry.Resources.LargeGroupID)
	}
	if err != nil {
		return models.CapacityCheck{}, fmt.Errorf("resolve group size: %w", err)
	}

	lecturerSeats := 0
	if DimensionsFor(entry.Kind).SeatsLecturers {
		lecturerSeats = len(entry.Resources.LecturerIDs)
	}

	required := groupSize + lecturerSeats
	check := models.CapacityCheck{
		OK:            required <= room.Capacity,
		RoomName:      room.Name,
		RoomCapacity:  room.Capacity,
		RequiredSeats: required,
		Breakdown:     fmt.Sprintf("%d students + %d lecturers", groupSize, lecturerSeats),
	}
	return check, nil
}
