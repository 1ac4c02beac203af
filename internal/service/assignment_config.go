package service

import (
	"fmt"
	"strings"
	"sync"

	"github.com/noah-isme/jobcoach-api/internal/dto"
	"github.com/noah-isme/jobcoach-api/internal/models"
	appErrors "github.com/noah-isme/jobcoach-api/pkg/errors"
)

const maxUsersPerAdminLimit = 1000

// DefaultAssignmentConfig is used when no environment overrides are present.
func DefaultAssignmentConfig() models.AssignmentConfig {
	return models.AssignmentConfig{
		MaxUsersPerAdmin:       10,
		SelectionPolicy:        models.SelectionLoadBalancing,
		QueueProcessingEnabled: true,
	}
}

// AssignmentConfigStore holds the live assignment config. Engine runs read one
// Snapshot at start so updates only affect later runs.
type AssignmentConfigStore struct {
	mu  sync.RWMutex
	cfg models.AssignmentConfig
}

// NewAssignmentConfigStore validates the initial config, falling back to defaults
// for invalid fields.
func NewAssignmentConfigStore(initial models.AssignmentConfig) *AssignmentConfigStore {
	defaults := DefaultAssignmentConfig()
	if initial.MaxUsersPerAdmin < 1 || initial.MaxUsersPerAdmin > maxUsersPerAdminLimit {
		initial.MaxUsersPerAdmin = defaults.MaxUsersPerAdmin
	}
	if !initial.SelectionPolicy.Valid() {
		initial.SelectionPolicy = defaults.SelectionPolicy
	}
	return &AssignmentConfigStore{cfg: initial}
}

// Snapshot returns a copy of the current config.
func (s *AssignmentConfigStore) Snapshot() models.AssignmentConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Update applies a partial patch. Invalid patches leave the config untouched.
func (s *AssignmentConfigStore) Update(patch dto.UpdateAssignmentConfigRequest) (models.AssignmentConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cfg
	if patch.MaxUsersPerAdmin != nil {
		value := *patch.MaxUsersPerAdmin
		if value < 1 || value > maxUsersPerAdminLimit {
			return s.cfg, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("max_users_per_admin must be between 1 and %d", maxUsersPerAdminLimit))
		}
		next.MaxUsersPerAdmin = value
	}
	if patch.SelectionPolicy != nil {
		policy := models.SelectionPolicy(strings.ToUpper(strings.TrimSpace(*patch.SelectionPolicy)))
		if !policy.Valid() {
			return s.cfg, appErrors.Clone(appErrors.ErrValidation, "selection_policy must be LOAD_BALANCING or ROUND_ROBIN")
		}
		next.SelectionPolicy = policy
	}
	if patch.QueueProcessingEnabled != nil {
		next.QueueProcessingEnabled = *patch.QueueProcessingEnabled
	}

	s.cfg = next
	return next, nil
}
