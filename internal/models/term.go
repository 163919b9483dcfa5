package models

import "time"

// TermType distinguishes regular semesters from the short inter-semester
// period ("semester antara") that runs its own course offerings.
type TermType string

const (
	TermTypeRegular TermType = "REGULAR"
	TermTypeAntara  TermType = "ANTARA"
)

// Term is an academic period. Cross-kind conflict comparisons are scoped
// to one term so unrelated course offerings never collide.
type Term struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Type         TermType  `db:"type" json:"type"`
	AcademicYear string    `db:"academic_year" json:"academic_year"`
	StartDate    time.Time `db:"start_date" json:"start_date"`
	EndDate      time.Time `db:"end_date" json:"end_date"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Course ties a course code to the term it runs in; the detector uses it
// to resolve a candidate's term scope from its course code.
type Course struct {
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	TermID    string    `db:"term_id" json:"term_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
