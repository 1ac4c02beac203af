package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPERADMIN"
	RoleAdmin      UserRole = "ADMIN"
	RoleUser       UserRole = "USER"
)

// Valid reports whether the role is known.
func (r UserRole) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleUser:
		return true
	}
	return false
}

// UserStatus is the lifecycle state of a coached user.
type UserStatus string

const (
	UserStatusActive   UserStatus = "ACTIVE"
	UserStatusDisabled UserStatus = "DISABLED"
)

// Valid reports whether the status is one the platform understands.
func (s UserStatus) Valid() bool {
	return s == UserStatusActive || s == UserStatusDisabled
}

// ActivationOutcome reports what a capacity-checked reactivation did to the user.
type ActivationOutcome string

const (
	// ActivationKept means the user is ACTIVE with the admin they had before.
	ActivationKept       ActivationOutcome = "KEPT"
	// ActivationUnassigned means the user had no admin and is now ACTIVE.
	ActivationUnassigned ActivationOutcome = "UNASSIGNED"
	// ActivationReleased means the admin was full so the user came back ACTIVE
	// without an admin and waits for placement.
	ActivationReleased   ActivationOutcome = "RELEASED"
	// ActivationBlocked means the admin was full and the user is permanently
	// assigned, so nothing changed.
	ActivationBlocked    ActivationOutcome = "BLOCKED"
)

// User represents a coached user stored in the users table.
type User struct {
	ID              string     `db:"id" json:"id"`
	Email           string     `db:"email" json:"email"`
	Name            string     `db:"name" json:"name"`
	Status          UserStatus `db:"status" json:"status"`
	AssignedAdminID *string    `db:"assigned_admin_id" json:"assigned_admin_id,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
