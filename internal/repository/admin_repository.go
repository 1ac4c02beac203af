package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// AdminRepository manages admin rows.
type AdminRepository struct {
	db *sqlx.DB
}

// NewAdminRepository constructs the repository.
func NewAdminRepository(db *sqlx.DB) *AdminRepository {
	return &AdminRepository{db: db}
}

// Delete unassigns every user owned by the admin and removes the admin in one
// transaction. It returns the number of users released.
func (r *AdminRepository) Delete(ctx context.Context, id string) (int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin delete admin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `UPDATE users SET assigned_admin_id = NULL, updated_at = NOW() WHERE assigned_admin_id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("release admin users: %w", err)
	}
	released, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("release admin users rows: %w", err)
	}

	res, err = tx.ExecContext(ctx, `DELETE FROM admins WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("delete admin: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete admin rows: %w", err)
	}
	if deleted == 0 {
		return 0, sql.ErrNoRows
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit delete admin tx: %w", err)
	}
	return int(released), nil
}
