package service

import (
	"fmt"

	appErrors "github.com/noah-isme/jobcoach-api/pkg/errors"
)

// FreeSlots returns how many more ACTIVE users an admin may take. The result is
// negative when a lowered ceiling leaves the admin over capacity.
func FreeSlots(maxUsersPerAdmin, activeAssigned int) (int, error) {
	if maxUsersPerAdmin < 0 || activeAssigned < 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid capacity input: max=%d active=%d", maxUsersPerAdmin, activeAssigned))
	}
	return maxUsersPerAdmin - activeAssigned, nil
}

// HasCapacity reports whether the admin can take at least one more user.
func HasCapacity(maxUsersPerAdmin, activeAssigned int) bool {
	free, err := FreeSlots(maxUsersPerAdmin, activeAssigned)
	return err == nil && free > 0
}
