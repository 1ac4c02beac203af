package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/jobcoach-api/pkg/errors"
)

func TestEnqueueInsertsOnce(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssignmentQueueRepository(db)

	enqueueSQL := regexp.QuoteMeta("INSERT INTO user_assignment_queue (id, user_id, created_at)") + ".*" + regexp.QuoteMeta("ON CONFLICT (user_id) DO NOTHING")
	mock.ExpectExec(enqueueSQL).WithArgs(sqlmock.AnyArg(), "u1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(enqueueSQL).WithArgs(sqlmock.AnyArg(), "u1").WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := repo.Enqueue(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = repo.Enqueue(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDequeueNextReturnsOldest(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssignmentQueueRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE SKIP LOCKED")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "created_at"}).AddRow("q1", "u1", now))

	entry, err := repo.DequeueNext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u1", entry.UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDequeueNextEmpty(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssignmentQueueRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM user_assignment_queue")).WillReturnError(sql.ErrNoRows)

	_, err := repo.DequeueNext(context.Background())
	assert.ErrorIs(t, err, appErrors.ErrQueueEmpty)
}

func TestRemoveIsNoopWhenAbsent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssignmentQueueRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM user_assignment_queue WHERE user_id = $1")).
		WithArgs("u9").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Remove(context.Background(), "u9"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListOrderedAndCount(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssignmentQueueRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "email", "name", "created_at"}).
		AddRow("q1", "u1", "u1@example.com", "First", now.Add(-time.Minute)).
		AddRow("q2", "u2", "u2@example.com", "Second", now)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY q.created_at ASC, q.id ASC")).WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM user_assignment_queue")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	entries, err := repo.ListOrdered(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "u1", entries[0].UserID)

	total, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
