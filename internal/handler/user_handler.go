package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/jobcoach-api/internal/dto"
	"github.com/noah-isme/jobcoach-api/internal/models"
	appErrors "github.com/noah-isme/jobcoach-api/pkg/errors"
	"github.com/noah-isme/jobcoach-api/pkg/response"
)

type userLifecycleService interface {
	SubmitPersonalDetails(ctx context.Context, userID string, req dto.PersonalDetailsRequest) (*models.PersonalDetails, error)
	UpdateStatus(ctx context.Context, userID string, req dto.UpdateUserStatusRequest) (*models.User, error)
	MarkCompleted(ctx context.Context, actor *models.JWTClaims, userID string) (*models.User, error)
	RecordApplication(ctx context.Context, actor *models.JWTClaims, userID string, req dto.CreateApplicationRequest) (*models.Application, error)
	DeleteAdmin(ctx context.Context, adminID string) (int, error)
}

// UserHandler handles the user and admin lifecycle endpoints that feed assignment.
type UserHandler struct {
	service userLifecycleService
}

// NewUserHandler creates a new user handler.
func NewUserHandler(svc userLifecycleService) *UserHandler {
	return &UserHandler{service: svc}
}

// SubmitPersonalDetails godoc
// @Summary Submit own personal details
// @Tags Users
// @Accept json
// @Produce json
// @Param payload body dto.PersonalDetailsRequest true "Personal details"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /me/personal-details [put]
func (h *UserHandler) SubmitPersonalDetails(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.PersonalDetailsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid personal details payload"))
		return
	}
	details, err := h.service.SubmitPersonalDetails(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, details, nil)
}

// UpdateStatus godoc
// @Summary Change a user's status
// @Tags Users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param payload body dto.UpdateUserStatusRequest true "Status"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /super-admin/users/{id}/status [put]
func (h *UserHandler) UpdateStatus(c *gin.Context) {
	var req dto.UpdateUserStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}
	user, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// MarkCompleted godoc
// @Summary Mark a coached user as completed
// @Tags Users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/users/{id}/complete [post]
func (h *UserHandler) MarkCompleted(c *gin.Context) {
	user, err := h.service.MarkCompleted(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// RecordApplication godoc
// @Summary Record a job application for a user
// @Tags Users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param payload body dto.CreateApplicationRequest true "Application"
// @Success 201 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /admin/users/{id}/applications [post]
func (h *UserHandler) RecordApplication(c *gin.Context) {
	var req dto.CreateApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid application payload"))
		return
	}
	app, err := h.service.RecordApplication(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, app)
}

// DeleteAdmin godoc
// @Summary Delete an admin and re-place their users
// @Tags Admins
// @Produce json
// @Param id path string true "Admin ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /super-admin/admins/{id} [delete]
func (h *UserHandler) DeleteAdmin(c *gin.Context) {
	released, err := h.service.DeleteAdmin(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"admin_id": c.Param("id"), "released_users": released}, nil)
}
