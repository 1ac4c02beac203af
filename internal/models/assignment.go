package models

import "time"

// SelectionPolicy decides how the engine picks among admins with free capacity.
type SelectionPolicy string

const (
	SelectionLoadBalancing SelectionPolicy = "LOAD_BALANCING"
	SelectionRoundRobin    SelectionPolicy = "ROUND_ROBIN"
)

// Valid reports whether the policy is supported by the selector.
func (p SelectionPolicy) Valid() bool {
	return p == SelectionLoadBalancing || p == SelectionRoundRobin
}

// AssignmentConfig is the process-wide tunable assignment state.
type AssignmentConfig struct {
	MaxUsersPerAdmin       int             `json:"max_users_per_admin"`
	SelectionPolicy        SelectionPolicy `json:"selection_policy"`
	QueueProcessingEnabled bool            `json:"queue_processing_enabled"`
}

// TriggerSource names the event that started an auto-assign run.
type TriggerSource string

const (
	TriggerManual           TriggerSource = "manual"
	TriggerProfileSubmitted TriggerSource = "profile_submitted"
	TriggerStatusChange     TriggerSource = "status_change"
	TriggerAdminRemoved     TriggerSource = "admin_removed"
	TriggerScheduled        TriggerSource = "scheduled"
)

// AssignmentCandidate is the directory's view of a user for assignment decisions.
type AssignmentCandidate struct {
	ID                  string     `db:"id" json:"id"`
	Status              UserStatus `db:"status" json:"status"`
	AssignedAdminID     *string    `db:"assigned_admin_id" json:"assigned_admin_id,omitempty"`
	HasCompletedProfile bool       `db:"has_completed_profile" json:"has_completed_profile"`
	PermanentlyAssigned bool       `db:"permanently_assigned" json:"permanently_assigned"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
}

// Unassigned reports whether the user currently has no admin.
func (c AssignmentCandidate) Unassigned() bool {
	return c.AssignedAdminID == nil || *c.AssignedAdminID == ""
}

// Queueable reports whether the user may hold a queue entry.
func (c AssignmentCandidate) Queueable() bool {
	return c.Status == UserStatusActive && c.Unassigned() && !c.PermanentlyAssigned
}

// QueueEntry is one row of the durable overflow queue.
type QueueEntry struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// QueueEntryDetail is a queue entry joined with the waiting user.
type QueueEntryDetail struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Email     string    `db:"email" json:"email"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// AssignOutcome describes the result of a conditional assignment write.
type AssignOutcome string

const (
	AssignApplied        AssignOutcome = "APPLIED"
	AssignAdminFull      AssignOutcome = "ADMIN_FULL"
	AssignAdminMissing   AssignOutcome = "ADMIN_MISSING"
	AssignUserIneligible AssignOutcome = "USER_INELIGIBLE"
)

// UserCounts aggregates directory totals for the stats view.
type UserCounts struct {
	TotalUsers            int `db:"total_users"`
	ActiveUsers           int `db:"active_users"`
	AssignedUsers         int `db:"assigned_users"`
	UnassignedActiveUsers int `db:"unassigned_active_users"`
	QueuedUsers           int `db:"queued_users"`
	TotalAdmins           int `db:"total_admins"`
}
