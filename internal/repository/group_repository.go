package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/akademik-fk/curriculum-api/internal/models"
)

// GroupRepository provides small and large group lookups.
type GroupRepository struct {
	db *sqlx.DB
}

// NewGroupRepository creates a new group repository.
func NewGroupRepository(db *sqlx.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// FindSmallGroup loads a small group by id.
func (r *GroupRepository) FindSmallGroup(ctx context.Context, id string) (*models.SmallGroup, error) {
	const query = `SELECT id, name, member_count, large_group_id, created_at, updated_at FROM small_groups WHERE id = $1`
	var group models.SmallGroup
	if err := r.db.GetContext(ctx, &group, query, id); err != nil {
		return nil, err
	}
	return &group, nil
}

// FindLargeGroup loads a large group by id.
func (r *GroupRepository) FindLargeGroup(ctx context.Context, id string) (*models.LargeGroup, error) {
	const query = `SELECT id, name, member_count, created_at, updated_at FROM large_groups WHERE id = $1`
	var group models.LargeGroup
	if err := r.db.GetContext(ctx, &group, query, id); err != nil {
		return nil, err
	}
	return &group, nil
}
