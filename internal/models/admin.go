package models

import "time"

// AdminLoad is a coach together with the number of ACTIVE users currently assigned.
type AdminLoad struct {
	ID                  string    `db:"id" json:"id"`
	Email               string    `db:"email" json:"email"`
	Name                string    `db:"name" json:"name"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
	ActiveAssignedCount int       `db:"active_assigned_count" json:"active_assigned_count"`
}
