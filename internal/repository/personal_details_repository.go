package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/jobcoach-api/internal/models"
)

// PersonalDetailsRepository stores user profiles and their preference lists.
type PersonalDetailsRepository struct {
	db *sqlx.DB
}

// NewPersonalDetailsRepository constructs the repository.
func NewPersonalDetailsRepository(db *sqlx.DB) *PersonalDetailsRepository {
	return &PersonalDetailsRepository{db: db}
}

// Upsert replaces the profile and its preference values atomically.
func (r *PersonalDetailsRepository) Upsert(ctx context.Context, details *models.PersonalDetails) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin personal details tx: %w", err)
	}

	var exists bool
	if err := tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, details.UserID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("check user exists: %w", err)
	}
	if !exists {
		_ = tx.Rollback()
		return sql.ErrNoRows
	}

	const upsert = `INSERT INTO personal_details (user_id, full_name, personal_email, country_resident, work_authorization, salary_expectation, visa_sponsor, updated_at)
VALUES (:user_id, :full_name, :personal_email, :country_resident, :work_authorization, :salary_expectation, :visa_sponsor, :updated_at)
ON CONFLICT (user_id)
DO UPDATE SET full_name = EXCLUDED.full_name, personal_email = EXCLUDED.personal_email,
              country_resident = EXCLUDED.country_resident, work_authorization = EXCLUDED.work_authorization,
              salary_expectation = EXCLUDED.salary_expectation, visa_sponsor = EXCLUDED.visa_sponsor,
              updated_at = EXCLUDED.updated_at`
	details.UpdatedAt = time.Now().UTC()
	if _, err := tx.NamedExecContext(ctx, upsert, details); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("upsert personal details: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM personal_detail_values WHERE user_id = $1`, details.UserID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear personal detail values: %w", err)
	}

	const insertValue = `INSERT INTO personal_detail_values (user_id, kind, value) VALUES (:user_id, :kind, :value) ON CONFLICT DO NOTHING`
	for _, value := range details.Values() {
		if _, err := tx.NamedExecContext(ctx, insertValue, value); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert personal detail value: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit personal details tx: %w", err)
	}
	return nil
}
