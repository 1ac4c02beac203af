package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/jobcoach-api/internal/dto"
	"github.com/noah-isme/jobcoach-api/internal/models"
	"github.com/noah-isme/jobcoach-api/internal/repository"
)

type fakeUser struct {
	id        string
	status    models.UserStatus
	adminID   *string
	profile   bool
	permanent bool
	createdAt time.Time
}

type fakeQueued struct {
	id        string
	userID    string
	createdAt time.Time
}

// fakeAssignmentStore is an in-memory directory and queue. One mutex stands in
// for the per-admin row lock so every conditional write is atomic.
type fakeAssignmentStore struct {
	mu     sync.Mutex
	clock  time.Time
	users  map[string]*fakeUser
	admins []models.AdminLoad
	queue  []fakeQueued

	listErr    error
	assignErr  error
	enqueueErr error
	countCalls int
}

func newFakeAssignmentStore() *fakeAssignmentStore {
	return &fakeAssignmentStore{
		clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		users: map[string]*fakeUser{},
	}
}

func (f *fakeAssignmentStore) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeAssignmentStore) addAdmin(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.admins = append(f.admins, models.AdminLoad{ID: id, Name: id, Email: id + "@coach.test", CreatedAt: f.tick()})
}

func (f *fakeAssignmentStore) addUser(id string) *fakeUser {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := &fakeUser{id: id, status: models.UserStatusActive, profile: true, createdAt: f.tick()}
	f.users[id] = u
	return u
}

func (f *fakeAssignmentStore) addAssignedUser(id, adminID string) *fakeUser {
	u := f.addUser(id)
	f.mu.Lock()
	defer f.mu.Unlock()
	admin := adminID
	u.adminID = &admin
	return u
}

func (f *fakeAssignmentStore) setStatus(id string, status models.UserStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[id].status = status
	if status == models.UserStatusDisabled {
		f.removeLocked(id)
	}
}

func (f *fakeAssignmentStore) adminOf(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u := f.users[id]; u != nil && u.adminID != nil {
		return *u.adminID
	}
	return ""
}

func (f *fakeAssignmentStore) loadOf(adminID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.activeCountLocked(adminID)
}

func (f *fakeAssignmentStore) queuedUserIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, len(f.queue))
	for i, q := range f.queue {
		ids[i] = q.userID
	}
	return ids
}

func (f *fakeAssignmentStore) activeCountLocked(adminID string) int {
	n := 0
	for _, u := range f.users {
		if u.adminID != nil && *u.adminID == adminID && u.status == models.UserStatusActive {
			n++
		}
	}
	return n
}

func (f *fakeAssignmentStore) adminExistsLocked(adminID string) bool {
	for _, a := range f.admins {
		if a.ID == adminID {
			return true
		}
	}
	return false
}

func (f *fakeAssignmentStore) removeLocked(userID string) {
	for i, q := range f.queue {
		if q.userID == userID {
			f.queue = append(f.queue[:i], f.queue[i+1:]...)
			return
		}
	}
}

func (f *fakeAssignmentStore) candidateLocked(u *fakeUser) models.AssignmentCandidate {
	var admin *string
	if u.adminID != nil {
		id := *u.adminID
		admin = &id
	}
	return models.AssignmentCandidate{
		ID:                  u.id,
		Status:              u.status,
		AssignedAdminID:     admin,
		HasCompletedProfile: u.profile,
		PermanentlyAssigned: u.permanent,
		CreatedAt:           u.createdAt,
	}
}

func (f *fakeAssignmentStore) sortedUsersLocked() []*fakeUser {
	users := make([]*fakeUser, 0, len(f.users))
	for _, u := range f.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		if !users[i].createdAt.Equal(users[j].createdAt) {
			return users[i].createdAt.Before(users[j].createdAt)
		}
		return users[i].id < users[j].id
	})
	return users
}

func (f *fakeAssignmentStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	c := f.candidateLocked(u)
	return &models.User{ID: u.id, Email: u.id + "@user.test", Name: u.id, Status: u.status, AssignedAdminID: c.AssignedAdminID, CreatedAt: u.createdAt}, nil
}

func (f *fakeAssignmentStore) Disable(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.status = models.UserStatusDisabled
	f.removeLocked(id)
	return nil
}

func (f *fakeAssignmentStore) Activate(ctx context.Context, id string, ceiling int) (models.ActivationOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return "", sql.ErrNoRows
	}
	if u.status == models.UserStatusActive {
		return models.ActivationKept, nil
	}
	if u.adminID == nil {
		u.status = models.UserStatusActive
		return models.ActivationUnassigned, nil
	}
	missing := !f.adminExistsLocked(*u.adminID)
	full := !missing && f.activeCountLocked(*u.adminID) >= ceiling
	switch {
	case full && u.permanent:
		return models.ActivationBlocked, nil
	case (full || missing) && !u.permanent:
		u.status = models.UserStatusActive
		u.adminID = nil
		return models.ActivationReleased, nil
	}
	u.status = models.UserStatusActive
	return models.ActivationKept, nil
}

func (f *fakeAssignmentStore) ListUnassignedEligibleUsers(ctx context.Context) ([]models.AssignmentCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []models.AssignmentCandidate
	for _, u := range f.sortedUsersLocked() {
		if u.status == models.UserStatusActive && u.adminID == nil && u.profile {
			out = append(out, f.candidateLocked(u))
		}
	}
	return out, nil
}

func (f *fakeAssignmentStore) FindCandidate(ctx context.Context, userID string) (*models.AssignmentCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	c := f.candidateLocked(u)
	return &c, nil
}

func (f *fakeAssignmentStore) ListAdminsWithLoad(ctx context.Context) ([]models.AdminLoad, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.AdminLoad, len(f.admins))
	for i, a := range f.admins {
		a.ActiveAssignedCount = f.activeCountLocked(a.ID)
		out[i] = a
	}
	return out, nil
}

func (f *fakeAssignmentStore) ListActiveAssignedUsers(ctx context.Context, adminID string) ([]models.AssignmentCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	users := f.sortedUsersLocked()
	var out []models.AssignmentCandidate
	for i := len(users) - 1; i >= 0; i-- {
		u := users[i]
		if u.adminID != nil && *u.adminID == adminID && u.status == models.UserStatusActive {
			out = append(out, f.candidateLocked(u))
		}
	}
	return out, nil
}

func (f *fakeAssignmentStore) SetUserAdmin(ctx context.Context, userID string, adminID *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return sql.ErrNoRows
	}
	if adminID == nil {
		u.adminID = nil
		return nil
	}
	id := *adminID
	u.adminID = &id
	return nil
}

func (f *fakeAssignmentStore) AssignIfCapacity(ctx context.Context, req repository.AssignRequest) (models.AssignOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.assignErr != nil {
		return "", f.assignErr
	}
	if !f.adminExistsLocked(req.AdminID) {
		return models.AssignAdminMissing, nil
	}
	if f.activeCountLocked(req.AdminID) >= req.Ceiling {
		return models.AssignAdminFull, nil
	}
	u, ok := f.users[req.UserID]
	if !ok {
		return "", sql.ErrNoRows
	}
	if u.adminID != nil || u.status != models.UserStatusActive || (u.permanent && !req.AllowPermanent) {
		return models.AssignUserIneligible, nil
	}
	admin := req.AdminID
	u.adminID = &admin
	f.removeLocked(req.UserID)
	return models.AssignApplied, nil
}

func (f *fakeAssignmentStore) MoveIfCapacity(ctx context.Context, req repository.MoveRequest) (models.AssignOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.adminExistsLocked(req.ToAdminID) {
		return models.AssignAdminMissing, nil
	}
	if f.activeCountLocked(req.ToAdminID) >= req.Ceiling {
		return models.AssignAdminFull, nil
	}
	u, ok := f.users[req.UserID]
	if !ok || u.adminID == nil || *u.adminID != req.FromAdminID || u.status != models.UserStatusActive || u.permanent {
		return models.AssignUserIneligible, nil
	}
	to := req.ToAdminID
	u.adminID = &to
	return models.AssignApplied, nil
}

func (f *fakeAssignmentStore) CountUsers(ctx context.Context) (*models.UserCounts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.countCalls++
	counts := &models.UserCounts{TotalUsers: len(f.users), QueuedUsers: len(f.queue), TotalAdmins: len(f.admins)}
	for _, u := range f.users {
		if u.status == models.UserStatusActive {
			counts.ActiveUsers++
			if u.adminID == nil {
				counts.UnassignedActiveUsers++
			}
		}
		if u.adminID != nil {
			counts.AssignedUsers++
		}
	}
	return counts, nil
}

func (f *fakeAssignmentStore) Enqueue(ctx context.Context, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.enqueueErr != nil {
		return false, f.enqueueErr
	}
	u, ok := f.users[userID]
	if !ok || u.status != models.UserStatusActive || u.adminID != nil || u.permanent {
		return false, nil
	}
	for _, q := range f.queue {
		if q.userID == userID {
			return false, nil
		}
	}
	f.queue = append(f.queue, fakeQueued{id: "q-" + userID, userID: userID, createdAt: f.tick()})
	return true, nil
}

func (f *fakeAssignmentStore) Remove(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeLocked(userID)
	return nil
}

func (f *fakeAssignmentStore) ListOrdered(ctx context.Context) ([]models.QueueEntryDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.QueueEntryDetail, 0, len(f.queue))
	for _, q := range f.queue {
		out = append(out, models.QueueEntryDetail{ID: q.id, UserID: q.userID, Email: q.userID + "@user.test", Name: q.userID, CreatedAt: q.createdAt})
	}
	return out, nil
}

func (f *fakeAssignmentStore) Count(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue), nil
}

type memoryStatsCache struct {
	mu          sync.Mutex
	entries     map[string]dto.AssignmentStats
	invalidated int
}

func newMemoryStatsCache() *memoryStatsCache {
	return &memoryStatsCache{entries: map[string]dto.AssignmentStats{}}
}

func (c *memoryStatsCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	out, ok := dest.(*dto.AssignmentStats)
	if !ok {
		return false, errors.New("unsupported cache destination")
	}
	*out = value
	return true, nil
}

func (c *memoryStatsCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats, ok := value.(*dto.AssignmentStats)
	if !ok {
		return errors.New("unsupported cache value")
	}
	c.entries[key] = *stats
	return nil
}

func (c *memoryStatsCache) Invalidate(ctx context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[string]dto.AssignmentStats{}
	c.invalidated++
	return nil
}
