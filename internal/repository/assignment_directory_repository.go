package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/jobcoach-api/internal/models"
)

// profileCompleteExpr evaluates to true when user u has every required profile field.
const profileCompleteExpr = `EXISTS (
	SELECT 1 FROM personal_details pd
	WHERE pd.user_id = u.id
	  AND btrim(pd.full_name) <> ''
	  AND btrim(pd.personal_email) <> ''
	  AND btrim(pd.country_resident) <> ''
	  AND btrim(pd.work_authorization) <> ''
	  AND EXISTS (SELECT 1 FROM personal_detail_values v WHERE v.user_id = u.id AND v.kind = 'TARGET_JOB_LOCATION' AND btrim(v.value) <> '')
	  AND EXISTS (SELECT 1 FROM personal_detail_values v WHERE v.user_id = u.id AND v.kind = 'INTERESTED_ROLE' AND btrim(v.value) <> '')
	  AND EXISTS (SELECT 1 FROM personal_detail_values v WHERE v.user_id = u.id AND v.kind = 'INTERESTED_INDUSTRY' AND btrim(v.value) <> '')
)`

const permanentExpr = `EXISTS (SELECT 1 FROM applications a WHERE a.user_id = u.id)`

const candidateColumns = `u.id, u.status, u.assigned_admin_id, ` + profileCompleteExpr + ` AS has_completed_profile, ` +
	permanentExpr + ` AS permanently_assigned, u.created_at`

// AssignRequest is a conditional write of one user onto one admin.
type AssignRequest struct {
	UserID  string
	AdminID string
	Ceiling int
	// AllowPermanent lets a super-admin restore a user who already has applications.
	AllowPermanent bool
}

// MoveRequest is a conditional move of one user between admins.
type MoveRequest struct {
	UserID      string
	FromAdminID string
	ToAdminID   string
	Ceiling     int
}

// AssignmentDirectoryRepository reads the user/admin directory and performs the
// capacity-checked writes used by the assignment engine.
type AssignmentDirectoryRepository struct {
	db *sqlx.DB
}

// NewAssignmentDirectoryRepository constructs the repository.
func NewAssignmentDirectoryRepository(db *sqlx.DB) *AssignmentDirectoryRepository {
	return &AssignmentDirectoryRepository{db: db}
}

// ListUnassignedEligibleUsers returns ACTIVE unassigned users with a completed profile,
// oldest first.
func (r *AssignmentDirectoryRepository) ListUnassignedEligibleUsers(ctx context.Context) ([]models.AssignmentCandidate, error) {
	const query = `SELECT ` + candidateColumns + `
FROM users u
WHERE u.status = 'ACTIVE' AND u.assigned_admin_id IS NULL AND ` + profileCompleteExpr + `
ORDER BY u.created_at ASC, u.id ASC`
	var users []models.AssignmentCandidate
	if err := r.db.SelectContext(ctx, &users, query); err != nil {
		return nil, fmt.Errorf("list unassigned eligible users: %w", err)
	}
	return users, nil
}

// FindCandidate loads the assignment view of a single user.
func (r *AssignmentDirectoryRepository) FindCandidate(ctx context.Context, userID string) (*models.AssignmentCandidate, error) {
	const query = `SELECT ` + candidateColumns + ` FROM users u WHERE u.id = $1`
	var user models.AssignmentCandidate
	if err := r.db.GetContext(ctx, &user, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find assignment candidate: %w", err)
	}
	return &user, nil
}

// ListAdminsWithLoad returns every admin with its ACTIVE assigned count in stable order.
func (r *AssignmentDirectoryRepository) ListAdminsWithLoad(ctx context.Context) ([]models.AdminLoad, error) {
	const query = `SELECT a.id, a.email, a.name, a.created_at, COUNT(u.id) AS active_assigned_count
FROM admins a
LEFT JOIN users u ON u.assigned_admin_id = a.id AND u.status = 'ACTIVE'
GROUP BY a.id, a.email, a.name, a.created_at
ORDER BY a.created_at ASC, a.id ASC`
	var admins []models.AdminLoad
	if err := r.db.SelectContext(ctx, &admins, query); err != nil {
		return nil, fmt.Errorf("list admins with load: %w", err)
	}
	return admins, nil
}

// ListActiveAssignedUsers returns the ACTIVE users of an admin, newest first.
func (r *AssignmentDirectoryRepository) ListActiveAssignedUsers(ctx context.Context, adminID string) ([]models.AssignmentCandidate, error) {
	const query = `SELECT ` + candidateColumns + `
FROM users u
WHERE u.assigned_admin_id = $1 AND u.status = 'ACTIVE'
ORDER BY u.created_at DESC, u.id DESC`
	var users []models.AssignmentCandidate
	if err := r.db.SelectContext(ctx, &users, query, adminID); err != nil {
		return nil, fmt.Errorf("list active assigned users: %w", err)
	}
	return users, nil
}

// SetUserAdmin overwrites the user's admin. A nil adminID unassigns the user.
func (r *AssignmentDirectoryRepository) SetUserAdmin(ctx context.Context, userID string, adminID *string) error {
	const query = `UPDATE users SET assigned_admin_id = $2, updated_at = NOW() WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, userID, adminID)
	if err != nil {
		return fmt.Errorf("set user admin: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set user admin rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AssignIfCapacity assigns the user to the admin only while the admin is below the
// ceiling and the user is still ACTIVE and unassigned. The admin row stays locked
// for the whole check so concurrent writers serialise per admin. On success the
// user's queue entry is removed in the same transaction.
func (r *AssignmentDirectoryRepository) AssignIfCapacity(ctx context.Context, req AssignRequest) (models.AssignOutcome, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin assign tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	outcome, err := lockAdminCapacity(ctx, tx, req.AdminID, req.Ceiling)
	if err != nil || outcome != "" {
		return outcome, err
	}

	query := `UPDATE users SET assigned_admin_id = $2, updated_at = NOW()
WHERE id = $1 AND assigned_admin_id IS NULL AND status = 'ACTIVE'`
	if !req.AllowPermanent {
		query += ` AND NOT EXISTS (SELECT 1 FROM applications a WHERE a.user_id = users.id)`
	}
	res, err := tx.ExecContext(ctx, query, req.UserID, req.AdminID)
	if err != nil {
		return "", fmt.Errorf("assign user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("assign user rows: %w", err)
	}
	if affected == 0 {
		var exists bool
		if err := tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, req.UserID); err != nil {
			return "", fmt.Errorf("check user exists: %w", err)
		}
		if !exists {
			return "", sql.ErrNoRows
		}
		return models.AssignUserIneligible, nil
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_assignment_queue WHERE user_id = $1`, req.UserID); err != nil {
		return "", fmt.Errorf("dequeue assigned user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit assign tx: %w", err)
	}
	return models.AssignApplied, nil
}

// MoveIfCapacity moves a non-permanent ACTIVE user from one admin to another while
// the target admin is below the ceiling.
func (r *AssignmentDirectoryRepository) MoveIfCapacity(ctx context.Context, req MoveRequest) (models.AssignOutcome, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin move tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	outcome, err := lockAdminCapacity(ctx, tx, req.ToAdminID, req.Ceiling)
	if err != nil || outcome != "" {
		return outcome, err
	}

	const query = `UPDATE users SET assigned_admin_id = $3, updated_at = NOW()
WHERE id = $1 AND assigned_admin_id = $2 AND status = 'ACTIVE'
  AND NOT EXISTS (SELECT 1 FROM applications a WHERE a.user_id = users.id)`
	res, err := tx.ExecContext(ctx, query, req.UserID, req.FromAdminID, req.ToAdminID)
	if err != nil {
		return "", fmt.Errorf("move user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("move user rows: %w", err)
	}
	if affected == 0 {
		return models.AssignUserIneligible, nil
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit move tx: %w", err)
	}
	return models.AssignApplied, nil
}

// CountUsers aggregates the directory totals.
func (r *AssignmentDirectoryRepository) CountUsers(ctx context.Context) (*models.UserCounts, error) {
	const query = `SELECT
	COUNT(*) AS total_users,
	COUNT(*) FILTER (WHERE status = 'ACTIVE') AS active_users,
	COUNT(*) FILTER (WHERE assigned_admin_id IS NOT NULL) AS assigned_users,
	COUNT(*) FILTER (WHERE status = 'ACTIVE' AND assigned_admin_id IS NULL) AS unassigned_active_users,
	(SELECT COUNT(*) FROM user_assignment_queue) AS queued_users,
	(SELECT COUNT(*) FROM admins) AS total_admins
FROM users`
	var counts models.UserCounts
	if err := r.db.GetContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	return &counts, nil
}

// lockAdminCapacity locks the admin row and reports AdminMissing or AdminFull. An
// empty outcome means the caller may write.
func lockAdminCapacity(ctx context.Context, tx *sqlx.Tx, adminID string, ceiling int) (models.AssignOutcome, error) {
	var lockedID string
	if err := tx.GetContext(ctx, &lockedID, `SELECT id FROM admins WHERE id = $1 FOR UPDATE`, adminID); err != nil {
		if err == sql.ErrNoRows {
			return models.AssignAdminMissing, nil
		}
		return "", fmt.Errorf("lock admin: %w", err)
	}

	var active int
	if err := tx.GetContext(ctx, &active, `SELECT COUNT(*) FROM users WHERE assigned_admin_id = $1 AND status = 'ACTIVE'`, adminID); err != nil {
		return "", fmt.Errorf("count admin load: %w", err)
	}
	if active >= ceiling {
		return models.AssignAdminFull, nil
	}
	return "", nil
}
