package models

import (
	"fmt"
	"strings"
)

// ResourceSet is the typed bag of resources a schedule entry occupies.
// SmallGroupID and LargeGroupID are mutually exclusive; an empty RoomID
// means the session has no room (online sessions).
type ResourceSet struct {
	RoomID       string   `json:"room_id,omitempty"`
	LecturerIDs  []string `json:"lecturer_ids,omitempty"`
	SmallGroupID string   `json:"small_group_id,omitempty"`
	LargeGroupID string   `json:"large_group_id,omitempty"`

	// SmallGroupParentID is the cohort (large group) the small group
	// belongs to, resolved by the adapter so nested-membership
	// comparison stays a pure equality check.
	SmallGroupParentID string `json:"-"`

	// Display names resolved alongside ids for conflict reporting.
	RoomName      string            `json:"room_name,omitempty"`
	LecturerNames map[string]string `json:"-"`
	GroupName     string            `json:"group_name,omitempty"`
}

// HasLecturer reports whether id is on the (active) roster.
func (r ResourceSet) HasLecturer(id string) bool {
	for _, l := range r.LecturerIDs {
		if l == id {
			return true
		}
	}
	return false
}

// Entry is the kind-tagged read-only projection of a stored session used
// by the conflict detector. It is built on demand by a per-kind adapter
// and never persisted.
type Entry struct {
	ID        string      `json:"id"`
	Kind      Kind        `json:"kind"`
	TermID    string      `json:"term_id"`
	Window    TimeWindow  `json:"window"`
	Resources ResourceSet `json:"resources"`
	UsesRoom  bool        `json:"uses_room"`
	Title     string      `json:"title,omitempty"`
}

// Dimension identifies which resource two entries collide on.
type Dimension string

const (
	DimensionLecturer   Dimension = "LECTURER"
	DimensionRoom       Dimension = "ROOM"
	DimensionSmallGroup Dimension = "SMALL_GROUP"
	DimensionLargeGroup Dimension = "LARGE_GROUP"
)

// Conflict describes a collision between a candidate and an existing entry.
type Conflict struct {
	EntryID      string     `json:"entry_id"`
	Kind         Kind       `json:"kind"`
	Window       TimeWindow `json:"window"`
	Dimension    Dimension  `json:"dimension"`
	ResourceName string     `json:"resource_name"`

	// BatchRow is set when the conflicting entry is an earlier,
	// not-yet-persisted row of the same import batch (1-based).
	BatchRow int `json:"batch_row,omitempty"`
}

func (c *Conflict) describeResource() string {
	switch c.Dimension {
	case DimensionLecturer:
		return fmt.Sprintf("lecturer %s", c.ResourceName)
	case DimensionRoom:
		return fmt.Sprintf("room %s", c.ResourceName)
	case DimensionSmallGroup:
		return fmt.Sprintf("group %s", c.ResourceName)
	case DimensionLargeGroup:
		return fmt.Sprintf("cohort %s", c.ResourceName)
	default:
		return c.ResourceName
	}
}

// Message renders the user-facing conflict description.
func (c *Conflict) Message() string {
	base := fmt.Sprintf("Schedule conflicts with %s on %s at %s-%s (%s)",
		c.Kind.Label(),
		c.Window.Date.Format("2006-01-02"),
		c.Window.Start, c.Window.End,
		c.describeResource(),
	)
	if c.BatchRow > 0 {
		base += fmt.Sprintf(" from row %d of this batch", c.BatchRow)
	}
	return base
}

// ConflictError carries the structured conflict through the error chain.
type ConflictError struct {
	Conflict Conflict `json:"conflict"`
}

func (e *ConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Conflict.Message()
}

// CapacityCheck is the outcome of a room capacity validation.
type CapacityCheck struct {
	OK            bool   `json:"ok"`
	RoomName      string `json:"room_name,omitempty"`
	RoomCapacity  int    `json:"room_capacity"`
	RequiredSeats int    `json:"required_seats"`
	Breakdown     string `json:"breakdown,omitempty"`
}

// Message renders the user-facing capacity failure description.
func (c CapacityCheck) Message() string {
	msg := fmt.Sprintf("Room capacity insufficient. Room %s holds %d, but %d are needed",
		c.RoomName, c.RoomCapacity, c.RequiredSeats)
	if c.Breakdown != "" {
		msg += fmt.Sprintf(" (%s)", c.Breakdown)
	}
	return msg
}

// CapacityError carries a failed capacity check through the error chain.
type CapacityError struct {
	Check CapacityCheck `json:"check"`
}

func (e *CapacityError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Check.Message()
}

// BatchRowError records a single failed row of an import batch.
type BatchRowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

func (e BatchRowError) String() string {
	return fmt.Sprintf("Row %d: %s", e.Row, e.Message)
}

// BatchValidationError aggregates every row failure of a batch. The
// batch is all-or-nothing: any row error means nothing was persisted.
type BatchValidationError struct {
	Rows []BatchRowError `json:"rows"`
}

func (e *BatchValidationError) Error() string {
	if e == nil || len(e.Rows) == 0 {
		return "batch validation failed"
	}
	parts := make([]string, len(e.Rows))
	for i, r := range e.Rows {
		parts[i] = r.String()
	}
	return strings.Join(parts, "; ")
}
