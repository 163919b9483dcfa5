package models

import (
	"fmt"
	"time"
)

// TimeOfDay is a wall-clock time expressed as minutes since midnight.
// Requests carry times as "HH:MM"; this is the only representation the
// engine compares on.
type TimeOfDay int

// ParseTimeOfDay parses an "HH:MM" string.
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	var h, m int
	if _, err := fmt.Sscanf(raw, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", raw)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid time %q: out of range", raw)
	}
	return TimeOfDay(h*60 + m), nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// TimeWindow is a half-open interval [Start, End) on a calendar date.
type TimeWindow struct {
	Date  time.Time `json:"date"`
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

// NewTimeWindow builds a window, enforcing Start < End.
func NewTimeWindow(date time.Time, start, end TimeOfDay) (TimeWindow, error) {
	if start >= end {
		return TimeWindow{}, fmt.Errorf("invalid time window: start %s must be before end %s", start, end)
	}
	return TimeWindow{Date: truncateToDate(date), Start: start, End: end}, nil
}

// Overlaps reports whether two windows collide. Half-open semantics: a
// window ending exactly when another begins does not overlap, so
// back-to-back scheduling is legal.
func (w TimeWindow) Overlaps(o TimeWindow) bool {
	if !sameDate(w.Date, o.Date) {
		return false
	}
	return w.Start < o.End && o.Start < w.End
}

func (w TimeWindow) String() string {
	return fmt.Sprintf("%s %s-%s", w.Date.Format("2006-01-02"), w.Start, w.End)
}

func truncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
