package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/akademik-fk/curriculum-api/internal/models"
	"github.com/akademik-fk/curriculum-api/internal/scheduling"
)

// EntrySource adapts the stored records of every schedule kind into the
// unified entries the conflict detector compares on. It runs on either
// the pool or a transaction, so the session repository can re-validate
// inside the same transaction as the write.
type EntrySource struct {
	q sqlx.ExtContext
}

// NewEntrySource builds an EntrySource over a pool or transaction.
func NewEntrySource(q sqlx.ExtContext) *EntrySource {
	return &EntrySource{q: q}
}

var _ scheduling.EntrySource = (*EntrySource)(nil)

// EntriesInTerm loads and adapts every kind's sessions for a term. An
// empty termID returns entries across all terms (used when a candidate's
// term cannot be resolved and detection fails open). Lecturer rosters
// include only active assignments, so declined lecturers no longer block
// on the lecturer dimension.
func (s *EntrySource) EntriesInTerm(ctx context.Context, termID string) ([]models.Entry, error) {
	var entries []models.Entry
	for _, kind := range models.Kinds() {
		rows, err := s.sessionRows(ctx, kind, termID)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			continue
		}

		rosters := map[string][]models.LecturerAssignment{}
		if dims := scheduling.DimensionsFor(kind); dims.Lecturer || dims.SeatsLecturers {
			ids := make([]string, len(rows))
			for i, row := range rows {
				ids[i] = row.ID
			}
			rosters, err = s.activeRosters(ctx, kind, ids)
			if err != nil {
				return nil, err
			}
		}

		for _, row := range rows {
			entries = append(entries, scheduling.Adapt(kind, row, rosters[row.ID]))
		}
	}
	return entries, nil
}

func (s *EntrySource) sessionRows(ctx context.Context, kind models.Kind, termID string) ([]models.SessionRow, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT s.id, s.term_id, s.course_code, s.title, s.date, s.start_minutes, s.end_minutes, s.session_count, s.uses_room, s.room_id, s.small_group_id, s.large_group_id, s.created_at, s.updated_at,
		r.name AS room_name,
		sg.name AS small_group_name,
		sg.large_group_id AS small_group_parent_id,
		lg.name AS large_group_name
	FROM %s s
	LEFT JOIN rooms r ON r.id = s.room_id
	LEFT JOIN small_groups sg ON sg.id = s.small_group_id
	LEFT JOIN large_groups lg ON lg.id = s.large_group_id
	WHERE ($1 = '' OR s.term_id = $1)`, table)

	var rows []models.SessionRow
	if err := sqlx.SelectContext(ctx, s.q, &rows, query, termID); err != nil {
		return nil, fmt.Errorf("load %s entries: %w", table, err)
	}
	for i := range rows {
		rows[i].Kind = kind
	}
	return rows, nil
}

func (s *EntrySource) activeRosters(ctx context.Context, kind models.Kind, entryIDs []string) (map[string][]models.LecturerAssignment, error) {
	const query = `SELECT a.id, a.entry_kind, a.entry_id, a.lecturer_id, l.name AS lecturer_name, a.role, a.status, a.reason, a.created_at, a.updated_at
	FROM lecturer_assignments a
	JOIN lecturers l ON l.id = a.lecturer_id
	WHERE a.entry_kind = $1 AND a.entry_id = ANY($2) AND a.status <> $3`

	var assignments []models.LecturerAssignment
	if err := sqlx.SelectContext(ctx, s.q, &assignments, query, kind, pq.Array(entryIDs), models.StatusUnavailable); err != nil {
		return nil, fmt.Errorf("load %s rosters: %w", kind, err)
	}

	rosters := make(map[string][]models.LecturerAssignment, len(entryIDs))
	for _, a := range assignments {
		rosters[a.EntryID] = append(rosters[a.EntryID], a)
	}
	return rosters, nil
}
