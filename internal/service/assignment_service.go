package service

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/jobcoach-api/internal/dto"
	"github.com/noah-isme/jobcoach-api/internal/models"
	"github.com/noah-isme/jobcoach-api/internal/repository"
	appErrors "github.com/noah-isme/jobcoach-api/pkg/errors"
)

const (
	statsCacheKey     = "assignment:stats"
	statsCachePattern = "assignment:*"

	opAutoAssign   = "auto_assign"
	opProcessQueue = "process_queue"
	opRebalance    = "rebalance"
	opManualAssign = "manual_assign"
	opRelease      = "release"
)

type assignmentDirectory interface {
	ListUnassignedEligibleUsers(ctx context.Context) ([]models.AssignmentCandidate, error)
	FindCandidate(ctx context.Context, userID string) (*models.AssignmentCandidate, error)
	ListAdminsWithLoad(ctx context.Context) ([]models.AdminLoad, error)
	ListActiveAssignedUsers(ctx context.Context, adminID string) ([]models.AssignmentCandidate, error)
	SetUserAdmin(ctx context.Context, userID string, adminID *string) error
	AssignIfCapacity(ctx context.Context, req repository.AssignRequest) (models.AssignOutcome, error)
	MoveIfCapacity(ctx context.Context, req repository.MoveRequest) (models.AssignOutcome, error)
	CountUsers(ctx context.Context) (*models.UserCounts, error)
}

type assignmentQueue interface {
	Enqueue(ctx context.Context, userID string) (bool, error)
	Remove(ctx context.Context, userID string) error
	ListOrdered(ctx context.Context) ([]models.QueueEntryDetail, error)
	Count(ctx context.Context) (int, error)
}

type statsCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, pattern string) error
}

// AssignmentServiceParams wires the engine dependencies. Cache and Metrics are optional.
type AssignmentServiceParams struct {
	Directory     assignmentDirectory
	Queue         assignmentQueue
	Config        *AssignmentConfigStore
	Cache         statsCache
	Metrics       *MetricsService
	Validator     *validator.Validate
	Logger        *zap.Logger
	StatsCacheTTL time.Duration
}

// AssignmentService is the capacity-bounded user to admin allocator.
type AssignmentService struct {
	directory assignmentDirectory
	queue     assignmentQueue
	config    *AssignmentConfigStore
	cache     statsCache
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	statsTTL  time.Duration
}

// NewAssignmentService constructs the assignment engine.
func NewAssignmentService(p AssignmentServiceParams) *AssignmentService {
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	if p.Validator == nil {
		p.Validator = validator.New()
	}
	if p.Config == nil {
		p.Config = NewAssignmentConfigStore(DefaultAssignmentConfig())
	}
	if p.StatsCacheTTL <= 0 {
		p.StatsCacheTTL = time.Minute
	}
	return &AssignmentService{
		directory: p.Directory,
		queue:     p.Queue,
		config:    p.Config,
		cache:     p.Cache,
		metrics:   p.Metrics,
		validator: p.Validator,
		logger:    p.Logger,
		statsTTL:  p.StatsCacheTTL,
	}
}

// RunAutoAssign places every eligible unassigned user on the best admin with free
// capacity, queueing the rest, then drains the queue when enabled.
func (s *AssignmentService) RunAutoAssign(ctx context.Context, source string) (*dto.AutoAssignResult, error) {
	trigger, err := s.parseSource(source)
	if err != nil {
		return nil, err
	}
	cfg := s.config.Snapshot()
	start := time.Now()

	users, err := s.directory.ListUnassignedEligibleUsers(ctx)
	if err != nil {
		return nil, persistenceError(err, "failed to list unassigned users")
	}
	sort.SliceStable(users, func(i, j int) bool {
		if !users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].CreatedAt.Before(users[j].CreatedAt)
		}
		return users[i].ID < users[j].ID
	})

	admins, err := s.directory.ListAdminsWithLoad(ctx)
	if err != nil {
		return nil, persistenceError(err, "failed to load admin workloads")
	}
	snap := newLoadSnapshot(admins, cfg.MaxUsersPerAdmin)

	result := &dto.AutoAssignResult{
		Source:          trigger,
		AssignedUserIDs: []string{},
		QueuedUserIDs:   []string{},
	}
	for _, user := range users {
		if user.PermanentlyAssigned {
			result.Skipped++
			continue
		}

		outcome, err := s.place(ctx, snap, cfg, user.ID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				s.logger.Info("user vanished during auto-assign", zap.String("user_id", user.ID))
				continue
			}
			s.finishRun(ctx, opAutoAssign, start)
			return nil, persistenceError(err, "failed to assign user")
		}

		switch outcome {
		case models.AssignApplied:
			result.Assigned++
			result.AssignedUserIDs = append(result.AssignedUserIDs, user.ID)
		case models.AssignAdminFull:
			inserted, err := s.queue.Enqueue(ctx, user.ID)
			if err != nil {
				s.finishRun(ctx, opAutoAssign, start)
				return nil, persistenceError(err, "failed to enqueue user")
			}
			if inserted {
				result.Queued++
				result.QueuedUserIDs = append(result.QueuedUserIDs, user.ID)
			}
		default:
			s.logger.Debug("user no longer eligible", zap.String("user_id", user.ID))
		}
	}

	if cfg.QueueProcessingEnabled {
		queueResult, err := s.processQueue(ctx, cfg)
		if err != nil {
			s.finishRun(ctx, opAutoAssign, start)
			return nil, err
		}
		result.Queue = queueResult
	}

	s.metrics.RecordAssignmentDecisions(opAutoAssign, "assigned", result.Assigned)
	s.metrics.RecordAssignmentDecisions(opAutoAssign, "queued", result.Queued)
	s.metrics.RecordAssignmentDecisions(opAutoAssign, "skipped", result.Skipped)
	s.finishRun(ctx, opAutoAssign, start)

	s.logger.Info("auto-assign completed",
		zap.String("source", string(trigger)),
		zap.Int("assigned", result.Assigned),
		zap.Int("queued", result.Queued),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

// ProcessQueue assigns queued users, oldest first, to admins with free capacity.
func (s *AssignmentService) ProcessQueue(ctx context.Context) (*dto.ProcessQueueResult, error) {
	start := time.Now()
	result, err := s.processQueue(ctx, s.config.Snapshot())
	s.finishRun(ctx, opProcessQueue, start)
	if err != nil {
		return nil, err
	}
	s.logger.Info("assignment queue processed", zap.Int("processed", result.Processed), zap.Int("discarded", result.Discarded))
	return result, nil
}

func (s *AssignmentService) processQueue(ctx context.Context, cfg models.AssignmentConfig) (*dto.ProcessQueueResult, error) {
	result := &dto.ProcessQueueResult{ProcessedUserIDs: []string{}}

	entries, err := s.queue.ListOrdered(ctx)
	if err != nil {
		return nil, persistenceError(err, "failed to load assignment queue")
	}
	if len(entries) == 0 {
		return result, nil
	}

	admins, err := s.directory.ListAdminsWithLoad(ctx)
	if err != nil {
		return nil, persistenceError(err, "failed to load admin workloads")
	}
	snap := newLoadSnapshot(admins, cfg.MaxUsersPerAdmin)
	if !snap.anyAvailable() {
		s.logger.Debug("assignment queue waiting for capacity", zap.Int("queued", len(entries)))
		return result, nil
	}

	next := 0
	for i := range snap.slots {
		for next < len(entries) && snap.available(i) {
			entry := entries[next]

			candidate, err := s.directory.FindCandidate(ctx, entry.UserID)
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				return nil, persistenceError(err, "failed to load queued user")
			}
			if candidate == nil || !candidate.Queueable() {
				if err := s.queue.Remove(ctx, entry.UserID); err != nil {
					return nil, persistenceError(err, "failed to discard queue entry")
				}
				result.Discarded++
				next++
				continue
			}

			outcome, err := s.directory.AssignIfCapacity(ctx, repository.AssignRequest{
				UserID:  entry.UserID,
				AdminID: snap.slots[i].admin.ID,
				Ceiling: cfg.MaxUsersPerAdmin,
			})
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				return nil, persistenceError(err, "failed to assign queued user")
			}

			switch {
			case err != nil || outcome == models.AssignUserIneligible:
				if err := s.queue.Remove(ctx, entry.UserID); err != nil {
					return nil, persistenceError(err, "failed to discard queue entry")
				}
				result.Discarded++
				next++
			case outcome == models.AssignApplied:
				snap.assigned(i)
				result.Processed++
				result.ProcessedUserIDs = append(result.ProcessedUserIDs, entry.UserID)
				next++
			default:
				// Filled or deleted concurrently; the entry keeps its place for the next admin.
				snap.markExhausted(i)
			}
		}
		if next >= len(entries) {
			break
		}
	}

	s.metrics.RecordAssignmentDecisions(opProcessQueue, "assigned", result.Processed)
	s.metrics.RecordAssignmentDecisions(opProcessQueue, "discarded", result.Discarded)
	return result, nil
}

// Rebalance moves non-permanent users off admins above the even-split target
// onto admins below it. Users with nowhere to go stay put.
func (s *AssignmentService) Rebalance(ctx context.Context) (*dto.RebalanceResult, error) {
	cfg := s.config.Snapshot()
	start := time.Now()
	defer s.finishRun(ctx, opRebalance, start)

	admins, err := s.directory.ListAdminsWithLoad(ctx)
	if err != nil {
		return nil, persistenceError(err, "failed to load admin workloads")
	}
	result := &dto.RebalanceResult{Moves: []dto.RebalanceMove{}}
	if len(admins) == 0 {
		return result, nil
	}

	snap := newLoadSnapshot(admins, cfg.MaxUsersPerAdmin)
	target := int(math.Ceil(float64(snap.total()) / float64(len(admins))))
	result.TargetLoad = target

	for i := range snap.slots {
		source := snap.slots[i].admin.ID
		if snap.slots[i].load <= target {
			continue
		}

		users, err := s.directory.ListActiveAssignedUsers(ctx, source)
		if err != nil {
			return nil, persistenceError(err, "failed to list admin users")
		}
		exclude := map[string]struct{}{source: {}}

		for _, user := range users {
			if snap.slots[i].load <= target {
				break
			}
			if user.PermanentlyAssigned {
				continue
			}
			moved, stop, err := s.moveUser(ctx, snap, cfg, i, user.ID, target, exclude)
			if err != nil {
				return nil, err
			}
			if moved != nil {
				result.Moves = append(result.Moves, *moved)
			}
			if stop {
				break
			}
		}
	}

	result.Rebalanced = len(result.Moves)
	s.metrics.RecordAssignmentDecisions(opRebalance, "moved", result.Rebalanced)
	s.logger.Info("assignment rebalance completed", zap.Int("moved", result.Rebalanced), zap.Int("target", target))
	return result, nil
}

// moveUser tries admins below target until one accepts the user. stop reports that
// no admin below target remains.
func (s *AssignmentService) moveUser(ctx context.Context, snap *loadSnapshot, cfg models.AssignmentConfig, from int, userID string, target int, exclude map[string]struct{}) (*dto.RebalanceMove, bool, error) {
	for {
		to, ok := snap.selectAdmin(cfg.SelectionPolicy, exclude)
		if !ok || snap.slots[to].load >= target {
			return nil, true, nil
		}
		outcome, err := s.directory.MoveIfCapacity(ctx, repository.MoveRequest{
			UserID:      userID,
			FromAdminID: snap.slots[from].admin.ID,
			ToAdminID:   snap.slots[to].admin.ID,
			Ceiling:     cfg.MaxUsersPerAdmin,
		})
		if err != nil {
			return nil, false, persistenceError(err, "failed to move user")
		}
		switch outcome {
		case models.AssignApplied:
			snap.assigned(to)
			snap.released(from)
			return &dto.RebalanceMove{UserID: userID, FromAdminID: snap.slots[from].admin.ID, ToAdminID: snap.slots[to].admin.ID}, false, nil
		case models.AssignAdminFull, models.AssignAdminMissing:
			snap.markExhausted(to)
		default:
			return nil, false, nil
		}
	}
}

// Stats returns assignment totals and per-admin workloads. The bool reports a cache hit.
func (s *AssignmentService) Stats(ctx context.Context) (*dto.AssignmentStats, bool, error) {
	if s.cache != nil {
		var cached dto.AssignmentStats
		if hit, err := s.cache.Get(ctx, statsCacheKey, &cached); err == nil && hit {
			return &cached, true, nil
		}
	}

	cfg := s.config.Snapshot()
	counts, err := s.directory.CountUsers(ctx)
	if err != nil {
		return nil, false, persistenceError(err, "failed to count users")
	}
	admins, err := s.directory.ListAdminsWithLoad(ctx)
	if err != nil {
		return nil, false, persistenceError(err, "failed to load admin workloads")
	}

	stats := &dto.AssignmentStats{
		TotalUsers:      counts.TotalUsers,
		ActiveUsers:     counts.ActiveUsers,
		AssignedUsers:   counts.AssignedUsers,
		UnassignedUsers: counts.UnassignedActiveUsers,
		QueuedUsers:     counts.QueuedUsers,
		TotalAdmins:     counts.TotalAdmins,
		AdminWorkloads:  make([]dto.AdminWorkload, 0, len(admins)),
		Config:          cfg,
	}
	for _, admin := range admins {
		stats.AdminWorkloads = append(stats.AdminWorkloads, workloadFor(admin, cfg.MaxUsersPerAdmin))
	}
	s.metrics.SetQueueDepth(counts.QueuedUsers)

	if s.cache != nil {
		_ = s.cache.Set(ctx, statsCacheKey, stats, s.statsTTL)
	}
	return stats, false, nil
}

// Queue returns the overflow queue in assignment order.
func (s *AssignmentService) Queue(ctx context.Context) ([]dto.QueueItem, error) {
	entries, err := s.queue.ListOrdered(ctx)
	if err != nil {
		return nil, persistenceError(err, "failed to load assignment queue")
	}
	items := make([]dto.QueueItem, len(entries))
	for i, entry := range entries {
		items[i] = dto.QueueItem{Position: i + 1, Entry: entry}
	}
	s.metrics.SetQueueDepth(len(entries))
	return items, nil
}

// Config returns the live assignment config.
func (s *AssignmentService) Config() models.AssignmentConfig {
	return s.config.Snapshot()
}

// UpdateConfig applies a partial config patch. Running engine passes keep their snapshot.
func (s *AssignmentService) UpdateConfig(ctx context.Context, req dto.UpdateAssignmentConfigRequest) (models.AssignmentConfig, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.AssignmentConfig{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment config payload")
	}
	cfg, err := s.config.Update(req)
	if err != nil {
		return models.AssignmentConfig{}, err
	}
	s.InvalidateStats(ctx)
	s.logger.Info("assignment config updated",
		zap.Int("max_users_per_admin", cfg.MaxUsersPerAdmin),
		zap.String("selection_policy", string(cfg.SelectionPolicy)),
		zap.Bool("queue_processing_enabled", cfg.QueueProcessingEnabled),
	)
	return cfg, nil
}

// AssignUsersToAdmin places the given users on one admin, bypassing the selector
// but not the capacity ceiling. Permanently assigned users may be restored.
func (s *AssignmentService) AssignUsersToAdmin(ctx context.Context, req dto.AssignUsersRequest) (*dto.AssignUsersResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assign users payload")
	}
	cfg := s.config.Snapshot()
	start := time.Now()
	defer s.finishRun(ctx, opManualAssign, start)

	result := &dto.AssignUsersResult{AdminID: req.AdminID, Assigned: []string{}, Rejected: []dto.RejectedAssignment{}}
	seen := make(map[string]struct{}, len(req.UserIDs))
	for _, userID := range req.UserIDs {
		if _, dup := seen[userID]; dup {
			continue
		}
		seen[userID] = struct{}{}

		outcome, err := s.directory.AssignIfCapacity(ctx, repository.AssignRequest{
			UserID:         userID,
			AdminID:        req.AdminID,
			Ceiling:        cfg.MaxUsersPerAdmin,
			AllowPermanent: true,
		})
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				result.Rejected = append(result.Rejected, dto.RejectedAssignment{UserID: userID, Reason: dto.RejectNotFound})
				continue
			}
			return nil, persistenceError(err, "failed to assign user")
		}

		switch outcome {
		case models.AssignApplied:
			result.Assigned = append(result.Assigned, userID)
		case models.AssignAdminMissing:
			return nil, appErrors.Clone(appErrors.ErrNotFound, "admin not found")
		case models.AssignAdminFull:
			result.Rejected = append(result.Rejected, dto.RejectedAssignment{UserID: userID, Reason: dto.RejectAdminFull})
		default:
			result.Rejected = append(result.Rejected, dto.RejectedAssignment{UserID: userID, Reason: dto.RejectNotEligible})
		}
	}

	s.metrics.RecordAssignmentDecisions(opManualAssign, "assigned", len(result.Assigned))
	s.metrics.RecordAssignmentDecisions(opManualAssign, "rejected", len(result.Rejected))
	s.logger.Info("manual assignment completed", zap.String("admin_id", req.AdminID), zap.Int("assigned", len(result.Assigned)), zap.Int("rejected", len(result.Rejected)))
	return result, nil
}

// ReleaseUser unassigns a non-permanent user and backfills the freed slot from the queue.
func (s *AssignmentService) ReleaseUser(ctx context.Context, userID string) (*dto.ProcessQueueResult, error) {
	cfg := s.config.Snapshot()
	start := time.Now()

	candidate, err := s.directory.FindCandidate(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, persistenceError(err, "failed to load user")
	}
	if candidate.Status != models.UserStatusActive {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "user is not active")
	}
	if candidate.PermanentlyAssigned {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "user is permanently assigned")
	}
	if candidate.Unassigned() {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "user is not assigned")
	}

	if err := s.directory.SetUserAdmin(ctx, userID, nil); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, persistenceError(err, "failed to release user")
	}
	s.logger.Info("user released from admin", zap.String("user_id", userID), zap.String("admin_id", *candidate.AssignedAdminID))

	result := &dto.ProcessQueueResult{ProcessedUserIDs: []string{}}
	if cfg.QueueProcessingEnabled {
		result, err = s.processQueue(ctx, cfg)
		if err != nil {
			s.finishRun(ctx, opRelease, start)
			return nil, err
		}
	}
	s.finishRun(ctx, opRelease, start)
	return result, nil
}

func (s *AssignmentService) parseSource(source string) (models.TriggerSource, error) {
	if source == "" {
		return models.TriggerManual, nil
	}
	if err := s.validator.Var(source, "oneof=manual profile_submitted status_change admin_removed scheduled"); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unknown trigger source")
	}
	return models.TriggerSource(source), nil
}

// finishRun records run metrics and drops cached stats after a mutating pass.
func (s *AssignmentService) finishRun(ctx context.Context, operation string, start time.Time) {
	s.metrics.ObserveAssignmentRun(operation, time.Since(start))
	s.InvalidateStats(ctx)
	if s.metrics == nil {
		return
	}
	if depth, err := s.queue.Count(ctx); err == nil {
		s.metrics.SetQueueDepth(depth)
	} else {
		s.logger.Warn("failed to refresh queue depth", zap.Error(err))
	}
}

// InvalidateStats drops cached stats after a directory change that did not go
// through an engine run.
func (s *AssignmentService) InvalidateStats(ctx context.Context) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Invalidate(ctx, statsCachePattern)
}

// place assigns a user to the best admin, retrying past admins that a conditional
// write reports as full or deleted. AssignAdminFull is returned when no admin in the
// snapshot can take the user.
func (s *AssignmentService) place(ctx context.Context, snap *loadSnapshot, cfg models.AssignmentConfig, userID string) (models.AssignOutcome, error) {
	for {
		idx, ok := snap.selectAdmin(cfg.SelectionPolicy, nil)
		if !ok {
			return models.AssignAdminFull, nil
		}
		outcome, err := s.directory.AssignIfCapacity(ctx, repository.AssignRequest{
			UserID:  userID,
			AdminID: snap.slots[idx].admin.ID,
			Ceiling: cfg.MaxUsersPerAdmin,
		})
		if err != nil {
			return "", err
		}
		switch outcome {
		case models.AssignApplied:
			snap.assigned(idx)
			return outcome, nil
		case models.AssignAdminFull, models.AssignAdminMissing:
			snap.markExhausted(idx)
		default:
			return outcome, nil
		}
	}
}

func workloadFor(admin models.AdminLoad, ceiling int) dto.AdminWorkload {
	free, err := FreeSlots(ceiling, admin.ActiveAssignedCount)
	if err != nil || free < 0 {
		free = 0
	}
	var pct float64
	if ceiling > 0 {
		pct = math.Round(float64(admin.ActiveAssignedCount)/float64(ceiling)*10000) / 100
	}
	return dto.AdminWorkload{
		ID:                 admin.ID,
		Name:               admin.Name,
		Email:              admin.Email,
		ActiveUserCount:    admin.ActiveAssignedCount,
		AvailableSlots:     free,
		WorkloadPercentage: pct,
	}
}

func persistenceError(err error, message string) error {
	if appErr := new(appErrors.Error); errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, message)
}
