package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/akademik-fk/curriculum-api/internal/models"
	"github.com/akademik-fk/curriculum-api/internal/scheduling"
	appErrors "github.com/akademik-fk/curriculum-api/pkg/errors"
)

// sessionTables maps each schedule kind to its table. Every table shares
// the same normalized column set; the kind is carried by the table, not
// by which foreign keys happen to be null.
var sessionTables = map[models.Kind]string{
	models.KindCSR:               "csr_sessions",
	models.KindPBL:               "pbl_sessions",
	models.KindKuliahBesar:       "kuliah_besar_sessions",
	models.KindPraktikum:         "praktikum_sessions",
	models.KindJurnalReading:     "jurnal_reading_sessions",
	models.KindAgendaKhusus:      "agenda_khusus_sessions",
	models.KindNonBlokNonCSR:     "non_blok_non_csr_sessions",
	models.KindPersamaanPersepsi: "persamaan_persepsi_sessions",
	models.KindSeminarPleno:      "seminar_pleno_sessions",
}

const sessionColumns = "id, term_id, course_code, title, date, start_minutes, end_minutes, session_count, uses_room, room_id, small_group_id, large_group_id, created_at, updated_at"

// SessionRepository provides persistence for schedule sessions of every
// kind and hosts the transactional validate-and-persist flow.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new session repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func tableFor(kind models.Kind) (string, error) {
	table, ok := sessionTables[kind]
	if !ok {
		return "", fmt.Errorf("unknown schedule kind %q", kind)
	}
	return table, nil
}

// FindByID loads one session of a kind.
func (r *SessionRepository) FindByID(ctx context.Context, kind models.Kind, id string) (*models.Session, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", sessionColumns, table)
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("%s session %q not found", kind.Slug(), id))
		}
		return nil, err
	}
	session.Kind = kind
	return &session, nil
}

// List returns sessions of one kind with filtering and pagination.
func (r *SessionRepository) List(ctx context.Context, kind models.Kind, filter models.SessionFilter) ([]models.Session, int, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, 0, err
	}

	base := fmt.Sprintf("FROM %s WHERE 1=1", table)
	var conditions []string
	var args []interface{}

	if filter.TermID != "" {
		conditions = append(conditions, fmt.Sprintf("term_id = $%d", len(args)+1))
		args = append(args, filter.TermID)
	}
	if filter.CourseCode != "" {
		conditions = append(conditions, fmt.Sprintf("course_code = $%d", len(args)+1))
		args = append(args, filter.CourseCode)
	}
	if filter.RoomID != "" {
		conditions = append(conditions, fmt.Sprintf("room_id = $%d", len(args)+1))
		args = append(args, filter.RoomID)
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY date ASC, start_minutes ASC LIMIT %d OFFSET %d", sessionColumns, base, size, offset)
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list %s: %w", table, err)
	}
	for i := range sessions {
		sessions[i].Kind = kind
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count %s: %w", table, err)
	}

	return sessions, total, nil
}

// Delete removes a session and its lecturer assignments.
func (r *SessionRepository) Delete(ctx context.Context, kind models.Kind, id string) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete session: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM lecturer_assignments WHERE entry_kind = $1 AND entry_id = $2", kind, id); err != nil {
		return fmt.Errorf("delete assignments: %w", err)
	}
	if _, err = tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", table), id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete session: %w", err)
	}
	return nil
}

// CreateValidated inserts a session and its lecturer assignments after
// re-running the caller's validation inside the same transaction, with
// advisory locks held on every contested resource. Two concurrent
// requests competing for a room or lecturer serialize on the lock, so
// the second sees the first's row and fails validation instead of
// double-booking.
func (r *SessionRepository) CreateValidated(ctx context.Context, session *models.Session, assignments []models.LecturerAssignment, lockKeys []string, check func(ctx context.Context, src scheduling.EntrySource) error) error {
	table, err := tableFor(session.Kind)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create session: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = acquireSlotLocks(ctx, tx, lockKeys); err != nil {
		return err
	}
	if err = check(ctx, NewEntrySource(tx)); err != nil {
		return err
	}
	if err = insertSession(ctx, tx, table, session); err != nil {
		return err
	}
	if err = insertAssignments(ctx, tx, session, assignments); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create session: %w", err)
	}
	return nil
}

// UpdateValidated rewrites a session inside the same lock-and-revalidate
// flow as CreateValidated. When resetConfirmations is set every
// assignment for the entry is forced back to NOT_CONFIRMED with a
// transition log record.
func (r *SessionRepository) UpdateValidated(ctx context.Context, session *models.Session, lockKeys []string, resetConfirmations bool, check func(ctx context.Context, src scheduling.EntrySource) error) error {
	table, err := tableFor(session.Kind)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update session: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = acquireSlotLocks(ctx, tx, lockKeys); err != nil {
		return err
	}
	if err = check(ctx, NewEntrySource(tx)); err != nil {
		return err
	}

	session.UpdatedAt = time.Now().UTC()
	query := fmt.Sprintf(`UPDATE %s SET term_id = :term_id, course_code = :course_code, title = :title, date = :date, start_minutes = :start_minutes, end_minutes = :end_minutes, session_count = :session_count, uses_room = :uses_room, room_id = :room_id, small_group_id = :small_group_id, large_group_id = :large_group_id, updated_at = :updated_at WHERE id = :id`, table)
	if _, err = sqlx.NamedExecContext(ctx, tx, query, session); err != nil {
		return fmt.Errorf("update session: %w", err)
	}

	if resetConfirmations {
		if err = resetEntryConfirmations(ctx, tx, session.Kind, session.ID); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit update session: %w", err)
	}
	return nil
}

// BulkCreateValidated persists a whole import batch atomically: locks,
// re-validates through the caller's check, and writes every row or none.
func (r *SessionRepository) BulkCreateValidated(ctx context.Context, sessions []*models.Session, assignments [][]models.LecturerAssignment, lockKeys []string, check func(ctx context.Context, src scheduling.EntrySource) error) error {
	if len(sessions) != len(assignments) {
		return fmt.Errorf("sessions and assignments length mismatch")
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bulk create: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = acquireSlotLocks(ctx, tx, lockKeys); err != nil {
		return err
	}
	if err = check(ctx, NewEntrySource(tx)); err != nil {
		return err
	}

	for i, session := range sessions {
		table, terr := tableFor(session.Kind)
		if terr != nil {
			err = terr
			return err
		}
		if err = insertSession(ctx, tx, table, session); err != nil {
			return err
		}
		if err = insertAssignments(ctx, tx, session, assignments[i]); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit bulk create: %w", err)
	}
	return nil
}

func insertSession(ctx context.Context, tx *sqlx.Tx, table string, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (:id, :term_id, :course_code, :title, :date, :start_minutes, :end_minutes, :session_count, :uses_room, :room_id, :small_group_id, :large_group_id, :created_at, :updated_at)`, table, sessionColumns)
	if _, err := sqlx.NamedExecContext(ctx, tx, query, session); err != nil {
		return fmt.Errorf("insert session into %s: %w", table, err)
	}
	return nil
}

func insertAssignments(ctx context.Context, tx *sqlx.Tx, session *models.Session, assignments []models.LecturerAssignment) error {
	now := time.Now().UTC()
	for i := range assignments {
		a := assignments[i]
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		a.EntryKind = session.Kind
		a.EntryID = session.ID
		if a.Status == "" {
			a.Status = models.StatusNotConfirmed
		}
		a.CreatedAt = now
		a.UpdatedAt = now

		const query = `INSERT INTO lecturer_assignments (id, entry_kind, entry_id, lecturer_id, role, status, reason, created_at, updated_at) VALUES (:id, :entry_kind, :entry_id, :lecturer_id, :role, :status, :reason, :created_at, :updated_at)`
		if _, err := sqlx.NamedExecContext(ctx, tx, query, &a); err != nil {
			return fmt.Errorf("insert lecturer assignment: %w", err)
		}
		assignments[i] = a
	}
	return nil
}

// acquireSlotLocks takes per-resource advisory locks for the lifetime of
// the transaction. Keys are sorted so concurrent writers always lock in
// the same order.
func acquireSlotLocks(ctx context.Context, tx *sqlx.Tx, keys []string) error {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	for _, key := range sorted {
		if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", key); err != nil {
			return fmt.Errorf("acquire slot lock %q: %w", key, err)
		}
	}
	return nil
}

func resetEntryConfirmations(ctx context.Context, tx *sqlx.Tx, kind models.Kind, entryID string) error {
	var assignments []models.LecturerAssignment
	const sel = `SELECT id, entry_kind, entry_id, lecturer_id, role, status, reason, created_at, updated_at FROM lecturer_assignments WHERE entry_kind = $1 AND entry_id = $2`
	if err := sqlx.SelectContext(ctx, tx, &assignments, sel, kind, entryID); err != nil {
		return fmt.Errorf("load assignments for reset: %w", err)
	}

	now := time.Now().UTC()
	for _, a := range assignments {
		if a.Status == models.StatusNotConfirmed {
			continue
		}
		if _, err := tx.ExecContext(ctx, `UPDATE lecturer_assignments SET status = $1, reason = NULL, updated_at = $2 WHERE id = $3`, models.StatusNotConfirmed, now, a.ID); err != nil {
			return fmt.Errorf("reset assignment %s: %w", a.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO confirmation_transitions (id, assignment_id, from_status, to_status, reason, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.NewString(), a.ID, a.Status, models.StatusNotConfirmed, "entry rescheduled", now); err != nil {
			return fmt.Errorf("log reset transition: %w", err)
		}
	}
	return nil
}
