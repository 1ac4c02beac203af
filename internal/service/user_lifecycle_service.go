package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/jobcoach-api/internal/dto"
	"github.com/noah-isme/jobcoach-api/internal/models"
	"github.com/noah-isme/jobcoach-api/internal/repository"
	appErrors "github.com/noah-isme/jobcoach-api/pkg/errors"
)

type lifecycleUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	Disable(ctx context.Context, id string) error
	Activate(ctx context.Context, id string, ceiling int) (models.ActivationOutcome, error)
}

type assignmentConfigSource interface {
	Config() models.AssignmentConfig
}

type personalDetailsRepository interface {
	Upsert(ctx context.Context, details *models.PersonalDetails) error
}

type applicationRepository interface {
	Create(ctx context.Context, app *models.Application) error
}

type adminRepository interface {
	Delete(ctx context.Context, id string) (int, error)
}

type lifecycleTriggers interface {
	OnProfileSubmitted(ctx context.Context, userID string)
	OnUserStatusChanged(ctx context.Context, userID string, status models.UserStatus)
	OnUserCompleted(ctx context.Context, userID string)
	OnApplicationRecorded(ctx context.Context, userID string)
	OnAdminRemoved(ctx context.Context, adminID string)
}

// UserLifecycleService owns the user and admin mutations that feed the assignment engine.
type UserLifecycleService struct {
	users        lifecycleUserRepository
	details      personalDetailsRepository
	applications applicationRepository
	admins       adminRepository
	triggers     lifecycleTriggers
	config       assignmentConfigSource
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewUserLifecycleService constructs the service.
func NewUserLifecycleService(users lifecycleUserRepository, details personalDetailsRepository, applications applicationRepository, admins adminRepository, triggers lifecycleTriggers, config assignmentConfigSource, validate *validator.Validate, logger *zap.Logger) *UserLifecycleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserLifecycleService{
		users:        users,
		details:      details,
		applications: applications,
		admins:       admins,
		triggers:     triggers,
		config:       config,
		validator:    validate,
		logger:       logger,
	}
}

// SubmitPersonalDetails stores the caller's profile and triggers auto-assignment.
func (s *UserLifecycleService) SubmitPersonalDetails(ctx context.Context, userID string, req dto.PersonalDetailsRequest) (*models.PersonalDetails, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid personal details payload")
	}

	details := &models.PersonalDetails{
		UserID:               userID,
		FullName:             strings.TrimSpace(req.FullName),
		PersonalEmail:        strings.TrimSpace(req.PersonalEmail),
		CountryResident:      strings.TrimSpace(req.CountryResident),
		WorkAuthorization:    strings.TrimSpace(req.WorkAuthorization),
		SalaryExpectation:    *req.SalaryExpectation,
		VisaSponsor:          *req.VisaSponsor,
		TargetJobLocations:   req.TargetJobLocations,
		InterestedRoles:      req.InterestedRoles,
		InterestedIndustries: req.InterestedIndustries,
	}
	if !details.IsComplete() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "personal details contain blank required fields")
	}

	if err := s.details.Upsert(ctx, details); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save personal details")
	}

	s.triggers.OnProfileSubmitted(ctx, userID)
	return details, nil
}

// UpdateStatus changes a user's status and notifies the engine. Reactivation goes
// through the capacity check so a returning user never overloads their admin.
func (s *UserLifecycleService) UpdateStatus(ctx context.Context, userID string, req dto.UpdateUserStatusRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	status := models.UserStatus(req.Status)

	if status == models.UserStatusActive {
		if err := s.activate(ctx, userID); err != nil {
			return nil, err
		}
	} else if err := s.users.Disable(ctx, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user status")
	}
	s.logger.Info("user status updated", zap.String("user_id", userID), zap.String("status", string(status)))

	s.triggers.OnUserStatusChanged(ctx, userID, status)
	return s.reload(ctx, userID)
}

// MarkCompleted disables a user once coaching is finished. Admins may only complete
// their own users.
func (s *UserLifecycleService) MarkCompleted(ctx context.Context, actor *models.JWTClaims, userID string) (*models.User, error) {
	user, err := s.ownedUser(ctx, actor, userID)
	if err != nil {
		return nil, err
	}
	if user.Status == models.UserStatusDisabled {
		return user, nil
	}

	if err := s.users.Disable(ctx, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete user")
	}
	s.logger.Info("user marked completed", zap.String("user_id", userID), zap.String("actor_id", actor.UserID))

	s.triggers.OnUserCompleted(ctx, userID)
	return s.reload(ctx, userID)
}

// RecordApplication stores a job application. The user's assignment becomes permanent.
func (s *UserLifecycleService) RecordApplication(ctx context.Context, actor *models.JWTClaims, userID string, req dto.CreateApplicationRequest) (*models.Application, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid application payload")
	}
	user, err := s.ownedUser(ctx, actor, userID)
	if err != nil {
		return nil, err
	}
	if user.AssignedAdminID == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "user has no assigned admin")
	}

	app := &models.Application{
		UserID:      userID,
		AdminID:     *user.AssignedAdminID,
		CompanyName: strings.TrimSpace(req.CompanyName),
		Role:        strings.TrimSpace(req.Role),
		Status:      models.ApplicationStatus(req.Status),
		JobLink:     req.JobLink,
		Notes:       req.Notes,
	}
	if app.Status == "" {
		app.Status = models.ApplicationStatusApplied
	}
	if req.ApplicationDate != nil {
		app.ApplicationDate = req.ApplicationDate.UTC()
	} else {
		app.ApplicationDate = time.Now().UTC()
	}

	if err := s.applications.Create(ctx, app); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record application")
	}

	s.triggers.OnApplicationRecorded(ctx, userID)
	return app, nil
}

// DeleteAdmin removes an admin, releasing their users back to the pool.
func (s *UserLifecycleService) DeleteAdmin(ctx context.Context, adminID string) (int, error) {
	released, err := s.admins.Delete(ctx, adminID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, appErrors.Clone(appErrors.ErrNotFound, "admin not found")
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete admin")
	}
	s.logger.Info("admin deleted", zap.String("admin_id", adminID), zap.Int("released_users", released))

	s.triggers.OnAdminRemoved(ctx, adminID)
	return released, nil
}

func (s *UserLifecycleService) activate(ctx context.Context, userID string) error {
	ceiling := DefaultAssignmentConfig().MaxUsersPerAdmin
	if s.config != nil {
		ceiling = s.config.Config().MaxUsersPerAdmin
	}

	outcome, err := s.users.Activate(ctx, userID, ceiling)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "user not found")
	case errors.Is(err, repository.ErrUserChanged):
		return appErrors.Clone(appErrors.ErrConflict, "user changed while reactivating, retry")
	case err != nil:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user status")
	}

	switch outcome {
	case models.ActivationBlocked:
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "assigned admin is at capacity and the user is permanently assigned")
	case models.ActivationReleased:
		s.logger.Info("reactivated user released from full admin", zap.String("user_id", userID), zap.Int("ceiling", ceiling))
	}
	return nil
}

func (s *UserLifecycleService) ownedUser(ctx context.Context, actor *models.JWTClaims, userID string) (*models.User, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if actor.Role == models.RoleSuperAdmin {
		return user, nil
	}
	if user.AssignedAdminID == nil || *user.AssignedAdminID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "user is not assigned to you")
	}
	return user, nil
}

func (s *UserLifecycleService) reload(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}
