package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/akademik-fk/curriculum-api/internal/models"
	appErrors "github.com/akademik-fk/curriculum-api/pkg/errors"
)

// TermRepository provides term and course lookups.
type TermRepository struct {
	db *sqlx.DB
}

// NewTermRepository creates a new term repository.
func NewTermRepository(db *sqlx.DB) *TermRepository {
	return &TermRepository{db: db}
}

// FindByID loads a term by id.
func (r *TermRepository) FindByID(ctx context.Context, id string) (*models.Term, error) {
	const query = `SELECT id, name, type, academic_year, start_date, end_date, is_active, created_at, updated_at FROM terms WHERE id = $1`
	var term models.Term
	if err := r.db.GetContext(ctx, &term, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("term %q not found", id))
		}
		return nil, err
	}
	return &term, nil
}

// TermIDForCourse resolves the term a course code runs in. An unknown
// course returns an empty id with no error; the detector then falls open
// to an all-term comparison.
func (r *TermRepository) TermIDForCourse(ctx context.Context, courseCode string) (string, error) {
	const query = `SELECT term_id FROM courses WHERE code = $1`
	var termID string
	if err := r.db.GetContext(ctx, &termID, query, courseCode); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("resolve term for course %q: %w", courseCode, err)
	}
	return termID, nil
}
