package models

import "time"

// ApplicationStatus tracks the progress of a job application.
type ApplicationStatus string

const (
	ApplicationStatusApplied      ApplicationStatus = "APPLIED"
	ApplicationStatusInterviewing ApplicationStatus = "INTERVIEWING"
	ApplicationStatusOffered      ApplicationStatus = "OFFERED"
	ApplicationStatusRejected     ApplicationStatus = "REJECTED"
)

// Application is a job application recorded by an admin on behalf of a user.
// The first application makes the user's current assignment permanent.
type Application struct {
	ID              string            `db:"id" json:"id"`
	UserID          string            `db:"user_id" json:"user_id"`
	AdminID         string            `db:"admin_id" json:"admin_id"`
	CompanyName     string            `db:"company_name" json:"company_name"`
	Role            string            `db:"role" json:"role"`
	ApplicationDate time.Time         `db:"application_date" json:"application_date"`
	Status          ApplicationStatus `db:"status" json:"status"`
	JobLink         *string           `db:"job_link" json:"job_link,omitempty"`
	Notes           *string           `db:"notes" json:"notes,omitempty"`
	CreatedAt       time.Time         `db:"created_at" json:"created_at"`
}
