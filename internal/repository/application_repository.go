package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/jobcoach-api/internal/models"
)

// ApplicationRepository records job applications.
type ApplicationRepository struct {
	db *sqlx.DB
}

// NewApplicationRepository constructs the repository.
func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// Create inserts the application and drops the user's queue entry, since a user
// with applications is permanently assigned.
func (r *ApplicationRepository) Create(ctx context.Context, app *models.Application) error {
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	if app.CreatedAt.IsZero() {
		app.CreatedAt = time.Now().UTC()
	}
	if app.ApplicationDate.IsZero() {
		app.ApplicationDate = app.CreatedAt
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin application tx: %w", err)
	}
	const query = `INSERT INTO applications (id, user_id, admin_id, company_name, role, application_date, status, job_link, notes, created_at)
VALUES (:id, :user_id, :admin_id, :company_name, :role, :application_date, :status, :job_link, :notes, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, app); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("insert application: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM user_assignment_queue WHERE user_id = $1`, app.UserID); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("dequeue applied user: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit application tx: %w", err)
	}
	return nil
}
