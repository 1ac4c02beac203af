package service

import (
	"github.com/noah-isme/jobcoach-api/internal/models"
)

// adminSlot is the run-local view of one admin's load.
type adminSlot struct {
	admin     models.AdminLoad
	load      int
	ceiling   int
	exhausted bool
}

// loadSnapshot holds admin loads for the duration of one engine run. Admins stay
// in directory order (created_at, id) which is the selector's tie-break order.
type loadSnapshot struct {
	ceiling int
	slots   []adminSlot
}

func newLoadSnapshot(admins []models.AdminLoad, ceiling int) *loadSnapshot {
	slots := make([]adminSlot, len(admins))
	for i, admin := range admins {
		slots[i] = adminSlot{admin: admin, load: admin.ActiveAssignedCount, ceiling: ceiling}
	}
	return &loadSnapshot{ceiling: ceiling, slots: slots}
}

func (s *loadSnapshot) available(i int) bool {
	slot := s.slots[i]
	return !slot.exhausted && HasCapacity(slot.ceiling, slot.load)
}

// anyAvailable reports whether some admin still has room.
func (s *loadSnapshot) anyAvailable() bool {
	for i := range s.slots {
		if s.available(i) {
			return true
		}
	}
	return false
}

func (s *loadSnapshot) assigned(i int) {
	s.slots[i].load++
}

func (s *loadSnapshot) released(i int) {
	if s.slots[i].load > 0 {
		s.slots[i].load--
	}
}

// markExhausted stops the selector from choosing an admin that a conditional
// write found full or deleted.
func (s *loadSnapshot) markExhausted(i int) {
	s.slots[i].exhausted = true
}

func (s *loadSnapshot) total() int {
	total := 0
	for _, slot := range s.slots {
		total += slot.load
	}
	return total
}

// selectAdmin returns the index of the best admin under the policy, skipping
// excluded and full admins. ok is false when nobody has capacity.
func (s *loadSnapshot) selectAdmin(policy models.SelectionPolicy, exclude map[string]struct{}) (int, bool) {
	best := -1
	for i := range s.slots {
		if !s.available(i) {
			continue
		}
		if _, skip := exclude[s.slots[i].admin.ID]; skip {
			continue
		}
		if best < 0 || s.better(policy, i, best) {
			best = i
		}
	}
	return best, best >= 0
}

// better reports whether slot i beats slot j. Equal scores keep the earlier slot.
func (s *loadSnapshot) better(policy models.SelectionPolicy, i, j int) bool {
	li, lj := s.slots[i].load, s.slots[j].load
	if policy == models.SelectionRoundRobin {
		return li < lj
	}
	// load/ceiling compared without floating point.
	ratioI, ratioJ := li*s.slots[j].ceiling, lj*s.slots[i].ceiling
	if ratioI != ratioJ {
		return ratioI < ratioJ
	}
	return li < lj
}
