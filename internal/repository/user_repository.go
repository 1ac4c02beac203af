package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/jobcoach-api/internal/models"
)

// UserRepository provides database access for coached users.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	const query = `SELECT id, email, name, status, assigned_admin_id, created_at, updated_at FROM users WHERE id = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// ErrUserChanged reports that the user's status or admin moved between the read and
// the write of a reactivation.
var ErrUserChanged = errors.New("user changed concurrently")

type activationRow struct {
	Status          models.UserStatus `db:"status"`
	AssignedAdminID *string           `db:"assigned_admin_id"`
	Permanent       bool              `db:"permanently_assigned"`
}

// Disable marks the user DISABLED and drops any queue entry in the same transaction.
// The admin link is kept; a disabled user no longer counts toward the admin's load.
func (r *UserRepository) Disable(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin disable tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `UPDATE users SET status = 'DISABLED', updated_at = $2 WHERE id = $1`
	res, err := tx.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("disable user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("disable user rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_assignment_queue WHERE user_id = $1`, id); err != nil {
		return fmt.Errorf("dequeue disabled user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit disable tx: %w", err)
	}
	return nil
}

// Activate sets the user ACTIVE without pushing their admin past ceiling. The admin
// row is locked before the user is written, the same order AssignIfCapacity uses.
// If the admin is full (or gone) a regular user comes back unassigned; a permanently
// assigned user is left untouched and ActivationBlocked is returned.
func (r *UserRepository) Activate(ctx context.Context, id string, ceiling int) (models.ActivationOutcome, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin activate tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const lookup = `SELECT u.status, u.assigned_admin_id,
	EXISTS (SELECT 1 FROM applications a WHERE a.user_id = u.id) AS permanently_assigned
FROM users u WHERE u.id = $1`
	var row activationRow
	if err := tx.GetContext(ctx, &row, lookup, id); err != nil {
		if err == sql.ErrNoRows {
			return "", err
		}
		return "", fmt.Errorf("load user for activation: %w", err)
	}
	if row.Status == models.UserStatusActive {
		return models.ActivationKept, nil
	}

	outcome := models.ActivationUnassigned
	release := false
	if row.AssignedAdminID != nil {
		outcome = models.ActivationKept
		capacity, err := lockAdminCapacity(ctx, tx, *row.AssignedAdminID, ceiling)
		if err != nil {
			return "", err
		}
		switch {
		case capacity == models.AssignAdminFull && row.Permanent:
			return models.ActivationBlocked, nil
		case capacity == models.AssignAdminMissing && row.Permanent:
			// nothing left to overload
		case capacity != "":
			outcome = models.ActivationReleased
			release = true
		}
	}

	const update = `UPDATE users SET status = 'ACTIVE',
	assigned_admin_id = CASE WHEN $3 THEN NULL ELSE assigned_admin_id END,
	updated_at = $4
WHERE id = $1 AND status = 'DISABLED' AND assigned_admin_id IS NOT DISTINCT FROM $2`
	res, err := tx.ExecContext(ctx, update, id, row.AssignedAdminID, release, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("activate user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("activate user rows: %w", err)
	}
	if affected == 0 {
		return "", ErrUserChanged
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit activate tx: %w", err)
	}
	return outcome, nil
}
