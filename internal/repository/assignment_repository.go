package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/akademik-fk/curriculum-api/internal/models"
	appErrors "github.com/akademik-fk/curriculum-api/pkg/errors"
)

// AssignmentRepository persists lecturer assignments and their
// confirmation transition log.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository creates a new assignment repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

const assignmentColumns = `a.id, a.entry_kind, a.entry_id, a.lecturer_id, l.name AS lecturer_name, a.role, a.status, a.reason, a.created_at, a.updated_at`

// Find loads the assignment binding one lecturer to one entry.
func (r *AssignmentRepository) Find(ctx context.Context, kind models.Kind, entryID, lecturerID string) (*models.LecturerAssignment, error) {
	query := fmt.Sprintf(`SELECT %s FROM lecturer_assignments a JOIN lecturers l ON l.id = a.lecturer_id WHERE a.entry_kind = $1 AND a.entry_id = $2 AND a.lecturer_id = $3`, assignmentColumns)
	var assignment models.LecturerAssignment
	if err := r.db.GetContext(ctx, &assignment, query, kind, entryID, lecturerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("lecturer %q is not assigned to this session", lecturerID))
		}
		return nil, err
	}
	return &assignment, nil
}

// ListByEntry returns every assignment for an entry, active or not.
func (r *AssignmentRepository) ListByEntry(ctx context.Context, kind models.Kind, entryID string) ([]models.LecturerAssignment, error) {
	query := fmt.Sprintf(`SELECT %s FROM lecturer_assignments a JOIN lecturers l ON l.id = a.lecturer_id WHERE a.entry_kind = $1 AND a.entry_id = $2 ORDER BY a.role ASC, l.name ASC`, assignmentColumns)
	var assignments []models.LecturerAssignment
	if err := r.db.SelectContext(ctx, &assignments, query, kind, entryID); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return assignments, nil
}

// RecordTransition applies a confirmed state change: the assignment row
// is updated and an append-only transition record is written in the same
// transaction.
func (r *AssignmentRepository) RecordTransition(ctx context.Context, assignmentID string, from, to models.ConfirmationStatus, reason *string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transition: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	if _, err = tx.ExecContext(ctx, `UPDATE lecturer_assignments SET status = $1, reason = $2, updated_at = $3 WHERE id = $4`, to, reason, now, assignmentID); err != nil {
		return fmt.Errorf("update assignment status: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `INSERT INTO confirmation_transitions (id, assignment_id, from_status, to_status, reason, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.NewString(), assignmentID, from, to, reason, now); err != nil {
		return fmt.Errorf("insert transition: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transition: %w", err)
	}
	return nil
}

// History returns the transition log for an assignment, oldest first.
func (r *AssignmentRepository) History(ctx context.Context, assignmentID string) ([]models.ConfirmationTransition, error) {
	const query = `SELECT id, assignment_id, from_status, to_status, reason, created_at FROM confirmation_transitions WHERE assignment_id = $1 ORDER BY created_at ASC`
	var transitions []models.ConfirmationTransition
	if err := r.db.SelectContext(ctx, &transitions, query, assignmentID); err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	return transitions, nil
}
