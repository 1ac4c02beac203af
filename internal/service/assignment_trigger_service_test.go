package service

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/jobcoach-api/internal/dto"
	"github.com/noah-isme/jobcoach-api/internal/models"
	"github.com/noah-isme/jobcoach-api/pkg/jobs"
)

type stubEngine struct {
	cfg           models.AssignmentConfig
	sources       []string
	queueRuns     int
	invalidations int
	autoErr       error
	processErr    error
}

func (s *stubEngine) RunAutoAssign(ctx context.Context, source string) (*dto.AutoAssignResult, error) {
	s.sources = append(s.sources, source)
	if s.autoErr != nil {
		return nil, s.autoErr
	}
	return &dto.AutoAssignResult{Source: models.TriggerSource(source)}, nil
}

func (s *stubEngine) ProcessQueue(ctx context.Context) (*dto.ProcessQueueResult, error) {
	s.queueRuns++
	if s.processErr != nil {
		return nil, s.processErr
	}
	return &dto.ProcessQueueResult{}, nil
}

func (s *stubEngine) Config() models.AssignmentConfig {
	return s.cfg
}

func (s *stubEngine) InvalidateStats(ctx context.Context) {
	s.invalidations++
}

type stubDispatcher struct {
	jobs []jobs.Job
	err  error
}

func (d *stubDispatcher) Enqueue(job jobs.Job) error {
	if d.err != nil {
		return d.err
	}
	d.jobs = append(d.jobs, job)
	return nil
}

func newTriggerFixture() (*AssignmentTriggerService, *stubEngine, *fakeAssignmentStore) {
	engine := &stubEngine{cfg: engineConfig(10)}
	store := newFakeAssignmentStore()
	return NewAssignmentTriggerService(engine, store, store, nil, nil), engine, store
}

func TestTriggerProfileSubmittedRunsAutoAssign(t *testing.T) {
	svc, engine, _ := newTriggerFixture()

	svc.OnProfileSubmitted(context.Background(), "u1")
	assert.Equal(t, []string{"profile_submitted"}, engine.sources)
}

func TestTriggerActivationOnlyRunsForEligibleUsers(t *testing.T) {
	svc, engine, store := newTriggerFixture()
	store.addAdmin("a1")
	store.addUser("ready")
	store.addUser("incomplete").profile = false
	store.addAssignedUser("assigned", "a1")
	ctx := context.Background()

	svc.OnUserStatusChanged(ctx, "incomplete", models.UserStatusActive)
	svc.OnUserStatusChanged(ctx, "assigned", models.UserStatusActive)
	svc.OnUserStatusChanged(ctx, "ghost", models.UserStatusActive)
	assert.Empty(t, engine.sources)
	assert.Equal(t, 2, engine.invalidations)

	svc.OnUserStatusChanged(ctx, "ready", models.UserStatusActive)
	assert.Equal(t, []string{"status_change"}, engine.sources)
}

func TestTriggerDisableRemovesQueueEntryAndProcessesQueue(t *testing.T) {
	svc, engine, store := newTriggerFixture()
	store.addUser("u1")
	ctx := context.Background()
	_, err := store.Enqueue(ctx, "u1")
	require.NoError(t, err)

	svc.OnUserStatusChanged(ctx, "u1", models.UserStatusDisabled)
	assert.Empty(t, store.queuedUserIDs())
	assert.Equal(t, 1, engine.queueRuns)

	assert.Zero(t, engine.invalidations)

	engine.cfg.QueueProcessingEnabled = false
	svc.OnUserCompleted(ctx, "u1")
	assert.Equal(t, 1, engine.queueRuns)
	assert.Equal(t, 1, engine.invalidations)
}

func TestTriggerApplicationAndAdminRemoval(t *testing.T) {
	svc, engine, store := newTriggerFixture()
	store.addUser("u1")
	ctx := context.Background()
	_, err := store.Enqueue(ctx, "u1")
	require.NoError(t, err)

	svc.OnApplicationRecorded(ctx, "u1")
	assert.Empty(t, store.queuedUserIDs())
	assert.Equal(t, 1, engine.invalidations)

	svc.OnAdminRemoved(ctx, "a1")
	assert.Equal(t, []string{"admin_removed"}, engine.sources)
}

func TestTriggerFailuresAreSwallowed(t *testing.T) {
	svc, engine, _ := newTriggerFixture()
	engine.autoErr = errors.New("db down")

	assert.NotPanics(t, func() {
		svc.OnAdminRemoved(context.Background(), "a1")
	})
	assert.Len(t, engine.sources, 1)
}

func TestTriggerDispatchesThroughJobQueue(t *testing.T) {
	svc, engine, _ := newTriggerFixture()
	dispatcher := &stubDispatcher{}
	svc.UseDispatcher(dispatcher)

	svc.OnProfileSubmitted(context.Background(), "u1")
	assert.Empty(t, engine.sources)
	require.Len(t, dispatcher.jobs, 1)
	assert.Equal(t, EventProfileSubmitted, dispatcher.jobs[0].Type)

	require.NoError(t, svc.HandleJob(context.Background(), dispatcher.jobs[0]))
	assert.Equal(t, []string{"profile_submitted"}, engine.sources)
}

func TestTriggerFallsBackInlineWhenDispatcherFails(t *testing.T) {
	svc, engine, _ := newTriggerFixture()
	svc.UseDispatcher(&stubDispatcher{err: errors.New("queue stopped")})

	svc.OnAdminRemoved(context.Background(), "a1")
	assert.Equal(t, []string{"admin_removed"}, engine.sources)
}

func TestHandleJobRejectsUnknownEvent(t *testing.T) {
	svc, _, _ := newTriggerFixture()

	err := svc.HandleJob(context.Background(), jobs.Job{Type: "unknown"})
	assert.Error(t, err)
}

func TestTriggerExhaustedJobsAreCounted(t *testing.T) {
	engine := &stubEngine{cfg: engineConfig(10)}
	store := newFakeAssignmentStore()
	metrics := NewMetricsService()
	svc := NewAssignmentTriggerService(engine, store, store, metrics, nil)

	svc.HandleExhausted(jobs.Job{Type: EventUserDisabled, Payload: "u1", Attempt: 4}, errors.New("db down"))
	svc.HandleExhausted(jobs.Job{Type: EventUserDisabled, Payload: "u2", Attempt: 4}, errors.New("db down"))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.triggerFailures.WithLabelValues(EventUserDisabled)))

	assert.NotPanics(t, func() {
		NewAssignmentTriggerService(engine, store, store, nil, nil).HandleExhausted(jobs.Job{Type: EventAdminRemoved}, errors.New("boom"))
	})
}

func TestStatsCacheDroppedWhenApplicationSkipsEngineRun(t *testing.T) {
	store := newFakeAssignmentStore()
	store.addAdmin("a1")
	store.addAssignedUser("u1", "a1")
	cache := newMemoryStatsCache()
	engine := NewAssignmentService(AssignmentServiceParams{
		Directory: store,
		Queue:     store,
		Config:    NewAssignmentConfigStore(engineConfig(5)),
		Cache:     cache,
	})
	svc := NewAssignmentTriggerService(engine, store, store, nil, nil)
	ctx := context.Background()

	_, cached, err := engine.Stats(ctx)
	require.NoError(t, err)
	require.False(t, cached)
	_, cached, err = engine.Stats(ctx)
	require.NoError(t, err)
	require.True(t, cached)

	store.users["u1"].permanent = true
	svc.OnApplicationRecorded(ctx, "u1")

	_, cached, err = engine.Stats(ctx)
	require.NoError(t, err)
	assert.False(t, cached)
}
