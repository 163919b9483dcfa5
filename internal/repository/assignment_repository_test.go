package repository

import (
	"context"
	"database/sql"
	"net/http"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akademik-fk/curriculum-api/internal/models"
	appErrors "github.com/akademik-fk/curriculum-api/pkg/errors"
)

func TestAssignmentRepositoryFind(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "entry_kind", "entry_id", "lecturer_id", "lecturer_name", "role", "status", "reason", "created_at", "updated_at"}).
		AddRow("a1", models.KindPBL, "s1", "L1", "Dr. Sari", models.RoleCoordinator, models.StatusNotConfirmed, nil, now, now)
	mock.ExpectQuery("FROM lecturer_assignments a JOIN lecturers l").
		WithArgs(models.KindPBL, "s1", "L1").
		WillReturnRows(rows)

	assignment, err := repo.Find(context.Background(), models.KindPBL, "s1", "L1")
	require.NoError(t, err)
	assert.Equal(t, "Dr. Sari", assignment.LecturerName)
	assert.True(t, assignment.Active())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryFindUnassignedLecturerIsNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectQuery("FROM lecturer_assignments a JOIN lecturers l").
		WithArgs(models.KindPBL, "s1", "L9").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Find(context.Background(), models.KindPBL, "s1", "L9")
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
	assert.Contains(t, err.Error(), "L9")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryRecordTransition(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	reason := "sedang tugas luar"
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE lecturer_assignments SET status = $1, reason = $2, updated_at = $3 WHERE id = $4")).
		WithArgs(models.StatusUnavailable, reason, sqlmock.AnyArg(), "a1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO confirmation_transitions")).
		WithArgs(sqlmock.AnyArg(), "a1", models.StatusNotConfirmed, models.StatusUnavailable, reason, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.RecordTransition(context.Background(), "a1", models.StatusNotConfirmed, models.StatusUnavailable, &reason)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryHistory(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "assignment_id", "from_status", "to_status", "reason", "created_at"}).
		AddRow("t1", "a1", models.StatusNotConfirmed, models.StatusRescheduleWaiting, nil, now).
		AddRow("t2", "a1", models.StatusRescheduleWaiting, models.StatusNotConfirmed, nil, now)
	mock.ExpectQuery("FROM confirmation_transitions WHERE assignment_id").
		WithArgs("a1").
		WillReturnRows(rows)

	history, err := repo.History(context.Background(), "a1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.StatusRescheduleWaiting, history[0].ToStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}
