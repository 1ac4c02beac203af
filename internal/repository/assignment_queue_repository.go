package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/jobcoach-api/internal/models"
	appErrors "github.com/noah-isme/jobcoach-api/pkg/errors"
)

// AssignmentQueueRepository persists the FIFO overflow queue of users awaiting an admin.
type AssignmentQueueRepository struct {
	db *sqlx.DB
}

// NewAssignmentQueueRepository constructs the repository.
func NewAssignmentQueueRepository(db *sqlx.DB) *AssignmentQueueRepository {
	return &AssignmentQueueRepository{db: db}
}

// Enqueue adds the user to the tail of the queue. The user row is locked and must
// still be ACTIVE, unassigned and free of applications; otherwise nothing is inserted.
// It reports whether a new entry was created, so repeated calls are harmless.
func (r *AssignmentQueueRepository) Enqueue(ctx context.Context, userID string) (bool, error) {
	const query = `WITH target AS (
	SELECT u.id FROM users u
	WHERE u.id = $2 AND u.status = 'ACTIVE' AND u.assigned_admin_id IS NULL
	  AND NOT EXISTS (SELECT 1 FROM applications a WHERE a.user_id = u.id)
	FOR UPDATE
)
INSERT INTO user_assignment_queue (id, user_id, created_at)
SELECT $1, target.id, clock_timestamp() FROM target
ON CONFLICT (user_id) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query, uuid.NewString(), userID)
	if err != nil {
		return false, fmt.Errorf("enqueue user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("enqueue user rows: %w", err)
	}
	return affected > 0, nil
}

// DequeueNext removes and returns the oldest entry. Rows locked by a concurrent
// dequeue are skipped.
func (r *AssignmentQueueRepository) DequeueNext(ctx context.Context) (*models.QueueEntry, error) {
	const query = `DELETE FROM user_assignment_queue
WHERE id = (
	SELECT id FROM user_assignment_queue
	ORDER BY created_at ASC, id ASC
	LIMIT 1
	FOR UPDATE SKIP LOCKED
)
RETURNING id, user_id, created_at`
	var entry models.QueueEntry
	if err := r.db.GetContext(ctx, &entry, query); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.ErrQueueEmpty
		}
		return nil, fmt.Errorf("dequeue next: %w", err)
	}
	return &entry, nil
}

// Remove deletes the user's entry if present.
func (r *AssignmentQueueRepository) Remove(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM user_assignment_queue WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("remove queue entry: %w", err)
	}
	return nil
}

// ListOrdered returns the queue oldest first with the waiting user's contact details.
func (r *AssignmentQueueRepository) ListOrdered(ctx context.Context) ([]models.QueueEntryDetail, error) {
	const query = `SELECT q.id, q.user_id, u.email, u.name, q.created_at
FROM user_assignment_queue q
JOIN users u ON u.id = q.user_id
ORDER BY q.created_at ASC, q.id ASC`
	var entries []models.QueueEntryDetail
	if err := r.db.SelectContext(ctx, &entries, query); err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}
	return entries, nil
}

// Count returns the queue depth.
func (r *AssignmentQueueRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM user_assignment_queue`); err != nil {
		return 0, fmt.Errorf("count queue: %w", err)
	}
	return total, nil
}
