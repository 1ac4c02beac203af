package dto

import "github.com/noah-isme/jobcoach-api/internal/models"

// AutoAssignRequest starts a manual auto-assign run.
type AutoAssignRequest struct {
	Source string `json:"source" validate:"omitempty,oneof=manual profile_submitted status_change admin_removed scheduled"`
}

// AutoAssignResult summarises one auto-assign run.
type AutoAssignResult struct {
	Source          models.TriggerSource `json:"source"`
	Assigned        int                  `json:"assigned"`
	Queued          int                  `json:"queued"`
	Skipped         int                  `json:"skipped"`
	AssignedUserIDs []string             `json:"assigned_user_ids"`
	QueuedUserIDs   []string             `json:"queued_user_ids"`
	Queue           *ProcessQueueResult  `json:"queue,omitempty"`
}

// ProcessQueueResult reports how many queue entries were assigned.
type ProcessQueueResult struct {
	Processed        int      `json:"processed"`
	ProcessedUserIDs []string `json:"processed_user_ids"`
	Discarded        int      `json:"discarded"`
}

// RebalanceResult reports how many users moved between admins.
type RebalanceResult struct {
	Rebalanced int             `json:"rebalanced"`
	TargetLoad int             `json:"target_load"`
	Moves      []RebalanceMove `json:"moves"`
}

// RebalanceMove records one user moving from an over-target admin.
type RebalanceMove struct {
	UserID      string `json:"user_id"`
	FromAdminID string `json:"from_admin_id"`
	ToAdminID   string `json:"to_admin_id"`
}

// AdminWorkload is the per-admin row of the stats view.
type AdminWorkload struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	Email              string  `json:"email"`
	ActiveUserCount    int     `json:"active_user_count"`
	AvailableSlots     int     `json:"available_slots"`
	WorkloadPercentage float64 `json:"workload_percentage"`
}

// AssignmentStats is the read-only assignment dashboard payload.
type AssignmentStats struct {
	TotalUsers      int                     `json:"total_users"`
	ActiveUsers     int                     `json:"active_users"`
	AssignedUsers   int                     `json:"assigned_users"`
	UnassignedUsers int                     `json:"unassigned_users"`
	QueuedUsers     int                     `json:"queued_users"`
	TotalAdmins     int                     `json:"total_admins"`
	AdminWorkloads  []AdminWorkload         `json:"admin_workloads"`
	Config          models.AssignmentConfig `json:"config"`
}

// QueueItem is one position in the ordered queue view.
type QueueItem struct {
	Position int                     `json:"position"`
	Entry    models.QueueEntryDetail `json:"entry"`
}

// UpdateAssignmentConfigRequest is a partial patch of the assignment config.
type UpdateAssignmentConfigRequest struct {
	MaxUsersPerAdmin       *int    `json:"max_users_per_admin" validate:"omitempty,min=1,max=1000"`
	SelectionPolicy        *string `json:"selection_policy" validate:"omitempty,oneof=LOAD_BALANCING ROUND_ROBIN"`
	QueueProcessingEnabled *bool   `json:"queue_processing_enabled"`
}

// AssignUsersRequest assigns a set of users to a specific admin.
type AssignUsersRequest struct {
	AdminID string   `json:"admin_id" validate:"required"`
	UserIDs []string `json:"user_ids" validate:"required,min=1,dive,required"`
}

// Rejection reasons reported by manual assignment.
const (
	RejectAdminFull   = "admin_full"
	RejectNotEligible = "not_eligible"
	RejectNotFound    = "not_found"
)

// RejectedAssignment explains why one user was not assigned.
type RejectedAssignment struct {
	UserID string `json:"user_id"`
	Reason string `json:"reason"`
}

// AssignUsersResult reports the outcome of a manual assignment.
type AssignUsersResult struct {
	AdminID  string               `json:"admin_id"`
	Assigned []string             `json:"assigned"`
	Rejected []RejectedAssignment `json:"rejected"`
}
