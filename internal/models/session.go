package models

import "time"

// Session is the normalized stored record shared by every schedule kind.
// Each kind persists into its own table but over the same column set;
// which optional columns a kind uses is declared by its adapter, never
// inferred from which columns are null.
type Session struct {
	ID           string    `db:"id" json:"id"`
	Kind         Kind      `db:"-" json:"kind"`
	TermID       string    `db:"term_id" json:"term_id"`
	CourseCode   string    `db:"course_code" json:"course_code"`
	Title        string    `db:"title" json:"title"`
	Date         time.Time `db:"date" json:"date"`
	StartMinutes int       `db:"start_minutes" json:"-"`
	EndMinutes   int       `db:"end_minutes" json:"-"`
	SessionCount int       `db:"session_count" json:"session_count"`
	UsesRoom     bool      `db:"uses_room" json:"uses_room"`
	RoomID       *string   `db:"room_id" json:"room_id,omitempty"`
	SmallGroupID *string   `db:"small_group_id" json:"small_group_id,omitempty"`
	LargeGroupID *string   `db:"large_group_id" json:"large_group_id,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Window projects the stored date/minutes into a TimeWindow.
func (s Session) Window() TimeWindow {
	return TimeWindow{
		Date:  s.Date,
		Start: TimeOfDay(s.StartMinutes),
		End:   TimeOfDay(s.EndMinutes),
	}
}

// SessionRow is a Session joined with the display names the conflict
// detector reports and the small group's parent cohort.
type SessionRow struct {
	Session
	RoomName           *string `db:"room_name" json:"room_name,omitempty"`
	SmallGroupName     *string `db:"small_group_name" json:"small_group_name,omitempty"`
	LargeGroupName     *string `db:"large_group_name" json:"large_group_name,omitempty"`
	SmallGroupParentID *string `db:"small_group_parent_id" json:"-"`
}

// SessionFilter describes query params for listing sessions of one kind.
type SessionFilter struct {
	TermID     string
	CourseCode string
	RoomID     string
	Page       int
	PageSize   int
}
