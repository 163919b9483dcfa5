package models

import "time"

// ConfirmationStatus tracks a lecturer's availability acknowledgment for
// one schedule entry.
type ConfirmationStatus string

const (
	StatusNotConfirmed      ConfirmationStatus = "NOT_CONFIRMED"
	StatusAvailable         ConfirmationStatus = "AVAILABLE"
	StatusUnavailable       ConfirmationStatus = "UNAVAILABLE"
	StatusRescheduleWaiting ConfirmationStatus = "RESCHEDULE_WAITING"
)

// AssignmentRole distinguishes the coordinator of a multi-lecturer
// session from assistant lecturers. The state machine treats both
// uniformly; the role only selects notification copy.
type AssignmentRole string

const (
	RoleCoordinator AssignmentRole = "COORDINATOR"
	RoleAssistant   AssignmentRole = "ASSISTANT"
)

// LecturerAssignment binds a lecturer to a schedule entry together with
// the latest confirmation state. A lecturer whose latest status is
// Unavailable is off the active roster but the row is kept for history.
type LecturerAssignment struct {
	ID           string             `db:"id" json:"id"`
	EntryKind    Kind               `db:"entry_kind" json:"entry_kind"`
	EntryID      string             `db:"entry_id" json:"entry_id"`
	LecturerID   string             `db:"lecturer_id" json:"lecturer_id"`
	LecturerName string             `db:"lecturer_name" json:"lecturer_name,omitempty"`
	Role         AssignmentRole     `db:"role" json:"role"`
	Status       ConfirmationStatus `db:"status" json:"status"`
	Reason       *string            `db:"reason" json:"reason,omitempty"`
	CreatedAt    time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `db:"updated_at" json:"updated_at"`
}

// Active reports whether the assignment still blocks other bookings on
// the lecturer dimension. Tentative (not yet confirmed) assignments
// count; only a declined one is released.
func (a LecturerAssignment) Active() bool {
	return a.Status != StatusUnavailable
}

// ConfirmationTransition is one append-only log record of a state change.
type ConfirmationTransition struct {
	ID           string             `db:"id" json:"id"`
	AssignmentID string             `db:"assignment_id" json:"assignment_id"`
	FromStatus   ConfirmationStatus `db:"from_status" json:"from_status"`
	ToStatus     ConfirmationStatus `db:"to_status" json:"to_status"`
	Reason       *string            `db:"reason" json:"reason,omitempty"`
	CreatedAt    time.Time          `db:"created_at" json:"created_at"`
}
