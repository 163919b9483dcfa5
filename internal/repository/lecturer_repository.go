package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/akademik-fk/curriculum-api/internal/models"
)

// LecturerRepository provides lecturer lookups.
type LecturerRepository struct {
	db *sqlx.DB
}

// NewLecturerRepository creates a new lecturer repository.
func NewLecturerRepository(db *sqlx.DB) *LecturerRepository {
	return &LecturerRepository{db: db}
}

// FindByID loads a lecturer by id.
func (r *LecturerRepository) FindByID(ctx context.Context, id string) (*models.Lecturer, error) {
	const query = `SELECT id, name, email, nip, created_at, updated_at FROM lecturers WHERE id = $1`
	var lecturer models.Lecturer
	if err := r.db.GetContext(ctx, &lecturer, query, id); err != nil {
		return nil, err
	}
	return &lecturer, nil
}

// FindByIDs loads several lecturers at once, keyed by id.
func (r *LecturerRepository) FindByIDs(ctx context.Context, ids []string) (map[string]models.Lecturer, error) {
	if len(ids) == 0 {
		return map[string]models.Lecturer{}, nil
	}
	const query = `SELECT id, name, email, nip, created_at, updated_at FROM lecturers WHERE id = ANY($1)`
	var lecturers []models.Lecturer
	if err := r.db.SelectContext(ctx, &lecturers, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list lecturers by ids: %w", err)
	}
	result := make(map[string]models.Lecturer, len(lecturers))
	for _, l := range lecturers {
		result[l.ID] = l
	}
	return result, nil
}
