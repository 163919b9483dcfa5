package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/akademik-fk/curriculum-api/internal/models"
	appErrors "github.com/akademik-fk/curriculum-api/pkg/errors"
)

type roomReader interface {
	FindByID(ctx context.Context, id string) (*models.Room, error)
}

type lecturerReader interface {
	FindByID(ctx context.Context, id string) (*models.Lecturer, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]models.Lecturer, error)
}

type groupReader interface {
	FindSmallGroup(ctx context.Context, id string) (*models.SmallGroup, error)
	FindLargeGroup(ctx context.Context, id string) (*models.LargeGroup, error)
}

// ResourceDirectory resolves rooms, lecturers and student groups with a
// redis read-through cache in front of Postgres. These lookups sit on
// the validation hot path and the underlying rows change rarely.
// A nil redis client disables caching.
type ResourceDirectory struct {
	rooms     roomReader
	lecturers lecturerReader
	groups    groupReader
	cache     *redis.Client
	ttl       time.Duration
	logger    *zap.Logger
}

// NewResourceDirectory builds a ResourceDirectory.
func NewResourceDirectory(rooms roomReader, lecturers lecturerReader, groups groupReader, cache *redis.Client, ttl time.Duration, logger *zap.Logger) *ResourceDirectory {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ResourceDirectory{rooms: rooms, lecturers: lecturers, groups: groups, cache: cache, ttl: ttl, logger: logger}
}

// Room resolves a room; unknown ids surface as validation errors so a
// bad payload never reaches conflict checking.
func (d *ResourceDirectory) Room(ctx context.Context, id string) (*models.Room, error) {
	var room models.Room
	if d.cachedGet(ctx, "room:"+id, &room) {
		return &room, nil
	}
	found, err := d.rooms.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown room %q", id))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}
	d.cachedSet(ctx, "room:"+id, found)
	return found, nil
}

// Lecturer resolves a lecturer by id.
func (d *ResourceDirectory) Lecturer(ctx context.Context, id string) (*models.Lecturer, error) {
	var lecturer models.Lecturer
	if d.cachedGet(ctx, "lecturer:"+id, &lecturer) {
		return &lecturer, nil
	}
	found, err := d.lecturers.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown lecturer %q", id))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lecturer")
	}
	d.cachedSet(ctx, "lecturer:"+id, found)
	return found, nil
}

// SmallGroup resolves a small group by id.
func (d *ResourceDirectory) SmallGroup(ctx context.Context, id string) (*models.SmallGroup, error) {
	var group models.SmallGroup
	if d.cachedGet(ctx, "smallgroup:"+id, &group) {
		return &group, nil
	}
	found, err := d.groups.FindSmallGroup(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown group %q", id))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}
	d.cachedSet(ctx, "smallgroup:"+id, found)
	return found, nil
}

// LargeGroup resolves a large group by id.
func (d *ResourceDirectory) LargeGroup(ctx context.Context, id string) (*models.LargeGroup, error) {
	var group models.LargeGroup
	if d.cachedGet(ctx, "largegroup:"+id, &group) {
		return &group, nil
	}
	found, err := d.groups.FindLargeGroup(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown cohort %q", id))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cohort")
	}
	d.cachedSet(ctx, "largegroup:"+id, found)
	return found, nil
}

// SmallGroupSize satisfies the capacity validator's group lookup.
func (d *ResourceDirectory) SmallGroupSize(ctx context.Context, id string) (int, error) {
	group, err := d.SmallGroup(ctx, id)
	if err != nil {
		return 0, err
	}
	return group.MemberCount, nil
}

// LargeGroupSize satisfies the capacity validator's group lookup.
func (d *ResourceDirectory) LargeGroupSize(ctx context.Context, id string) (int, error) {
	group, err := d.LargeGroup(ctx, id)
	if err != nil {
		return 0, err
	}
	return group.MemberCount, nil
}

func (d *ResourceDirectory) cachedGet(ctx context.Context, key string, dest interface{}) bool {
	if d.cache == nil {
		return false
	}
	raw, err := d.cache.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, dest) == nil
}

func (d *ResourceDirectory) cachedSet(ctx context.Context, key string, value interface{}) {
	if d.cache == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := d.cache.Set(ctx, key, raw, d.ttl).Err(); err != nil {
		d.logger.Debug("lookup cache set failed", zap.String("key", key), zap.Error(err))
	}
}
