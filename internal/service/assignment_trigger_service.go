package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/jobcoach-api/internal/dto"
	"github.com/noah-isme/jobcoach-api/internal/models"
	"github.com/noah-isme/jobcoach-api/pkg/jobs"
)

// Trigger events dispatched to the assignment engine.
const (
	EventProfileSubmitted    = "profile_submitted"
	EventUserActivated       = "user_activated"
	EventUserDisabled        = "user_disabled"
	EventApplicationRecorded = "application_recorded"
	EventAdminRemoved        = "admin_removed"
)

type assignmentEngine interface {
	RunAutoAssign(ctx context.Context, source string) (*dto.AutoAssignResult, error)
	ProcessQueue(ctx context.Context) (*dto.ProcessQueueResult, error)
	Config() models.AssignmentConfig
	InvalidateStats(ctx context.Context)
}

type triggerDirectory interface {
	FindCandidate(ctx context.Context, userID string) (*models.AssignmentCandidate, error)
}

type triggerQueue interface {
	Remove(ctx context.Context, userID string) error
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

// AssignmentTriggerService turns domain events into engine runs. Failures are
// logged and counted, never returned to the caller that raised the event.
type AssignmentTriggerService struct {
	engine     assignmentEngine
	directory  triggerDirectory
	queue      triggerQueue
	metrics    *MetricsService
	logger     *zap.Logger
	dispatcher jobDispatcher
}

// NewAssignmentTriggerService constructs a synchronous trigger service.
func NewAssignmentTriggerService(engine assignmentEngine, directory triggerDirectory, queue triggerQueue, metrics *MetricsService, logger *zap.Logger) *AssignmentTriggerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentTriggerService{engine: engine, directory: directory, queue: queue, metrics: metrics, logger: logger}
}

// UseDispatcher routes events through a background job queue instead of running
// them inside the triggering request.
func (s *AssignmentTriggerService) UseDispatcher(dispatcher jobDispatcher) {
	s.dispatcher = dispatcher
}

// HandleJob is the jobs.Handler for asynchronously dispatched events. Returned
// errors are retried by the queue.
func (s *AssignmentTriggerService) HandleJob(ctx context.Context, job jobs.Job) error {
	subject, _ := job.Payload.(string)
	return s.handle(ctx, job.Type, subject)
}

// HandleExhausted is the jobs.FailureHook for dispatched events that failed on
// every retry. It counts them the same way inline failures are counted.
func (s *AssignmentTriggerService) HandleExhausted(job jobs.Job, err error) {
	subject, _ := job.Payload.(string)
	s.metrics.RecordTriggerFailure(job.Type)
	s.logger.Error("assignment trigger failed after retries", zap.String("event", job.Type), zap.String("subject", subject), zap.Int("attempts", job.Attempt), zap.Error(err))
}

// OnProfileSubmitted runs auto-assign after a user completes their profile.
func (s *AssignmentTriggerService) OnProfileSubmitted(ctx context.Context, userID string) {
	s.dispatch(ctx, EventProfileSubmitted, userID)
}

// OnUserStatusChanged reacts to a user becoming ACTIVE or DISABLED.
func (s *AssignmentTriggerService) OnUserStatusChanged(ctx context.Context, userID string, status models.UserStatus) {
	switch status {
	case models.UserStatusActive:
		s.dispatch(ctx, EventUserActivated, userID)
	case models.UserStatusDisabled:
		s.dispatch(ctx, EventUserDisabled, userID)
	}
}

// OnUserCompleted frees the completed user's slot for the queue.
func (s *AssignmentTriggerService) OnUserCompleted(ctx context.Context, userID string) {
	s.dispatch(ctx, EventUserDisabled, userID)
}

// OnApplicationRecorded drops any queue entry of a now permanently assigned user.
func (s *AssignmentTriggerService) OnApplicationRecorded(ctx context.Context, userID string) {
	s.dispatch(ctx, EventApplicationRecorded, userID)
}

// OnAdminRemoved re-places the users orphaned by an admin deletion.
func (s *AssignmentTriggerService) OnAdminRemoved(ctx context.Context, adminID string) {
	s.dispatch(ctx, EventAdminRemoved, adminID)
}

func (s *AssignmentTriggerService) dispatch(ctx context.Context, event, subject string) {
	if s.dispatcher != nil {
		err := s.dispatcher.Enqueue(jobs.Job{Type: event, Payload: subject})
		if err == nil {
			return
		}
		s.logger.Warn("assignment trigger dispatch failed, running inline", zap.String("event", event), zap.Error(err))
	}
	if err := s.handle(ctx, event, subject); err != nil {
		s.metrics.RecordTriggerFailure(event)
		s.logger.Error("assignment trigger failed", zap.String("event", event), zap.String("subject", subject), zap.Error(err))
	}
}

// handle runs the engine for one event. Paths that change the directory without an
// engine run drop the cached stats themselves.
func (s *AssignmentTriggerService) handle(ctx context.Context, event, subject string) error {
	switch event {
	case EventProfileSubmitted:
		_, err := s.engine.RunAutoAssign(ctx, string(models.TriggerProfileSubmitted))
		return err
	case EventUserActivated:
		candidate, err := s.directory.FindCandidate(ctx, subject)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return err
		}
		if candidate.Status != models.UserStatusActive || !candidate.HasCompletedProfile || !candidate.Unassigned() {
			s.engine.InvalidateStats(ctx)
			return nil
		}
		_, err = s.engine.RunAutoAssign(ctx, string(models.TriggerStatusChange))
		return err
	case EventUserDisabled:
		if err := s.queue.Remove(ctx, subject); err != nil {
			return err
		}
		if !s.engine.Config().QueueProcessingEnabled {
			s.engine.InvalidateStats(ctx)
			return nil
		}
		_, err := s.engine.ProcessQueue(ctx)
		return err
	case EventApplicationRecorded:
		if err := s.queue.Remove(ctx, subject); err != nil {
			return err
		}
		s.engine.InvalidateStats(ctx)
		return nil
	case EventAdminRemoved:
		_, err := s.engine.RunAutoAssign(ctx, string(models.TriggerAdminRemoved))
		return err
	default:
		return fmt.Errorf("unknown assignment trigger %q", event)
	}
}
