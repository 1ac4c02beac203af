package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/jobcoach-api/internal/dto"
	"github.com/noah-isme/jobcoach-api/internal/middleware"
	"github.com/noah-isme/jobcoach-api/internal/models"
	"github.com/noah-isme/jobcoach-api/internal/service"
	appErrors "github.com/noah-isme/jobcoach-api/pkg/errors"
	"github.com/noah-isme/jobcoach-api/pkg/response"
)

type assignmentService interface {
	RunAutoAssign(ctx context.Context, source string) (*dto.AutoAssignResult, error)
	ProcessQueue(ctx context.Context) (*dto.ProcessQueueResult, error)
	Rebalance(ctx context.Context) (*dto.RebalanceResult, error)
	Stats(ctx context.Context) (*dto.AssignmentStats, bool, error)
	Queue(ctx context.Context) ([]dto.QueueItem, error)
	Config() models.AssignmentConfig
	UpdateConfig(ctx context.Context, req dto.UpdateAssignmentConfigRequest) (models.AssignmentConfig, error)
	AssignUsersToAdmin(ctx context.Context, req dto.AssignUsersRequest) (*dto.AssignUsersResult, error)
	ReleaseUser(ctx context.Context, userID string) (*dto.ProcessQueueResult, error)
}

type workloadExporter interface {
	ExportWorkload(ctx context.Context, format string) (*service.ExportFile, error)
}

// AssignmentHandler exposes the super-admin assignment endpoints.
type AssignmentHandler struct {
	service  assignmentService
	exporter workloadExporter
}

// NewAssignmentHandler builds a new handler.
func NewAssignmentHandler(service assignmentService, exporter workloadExporter) *AssignmentHandler {
	return &AssignmentHandler{service: service, exporter: exporter}
}

// AutoAssign godoc
// @Summary Run auto-assignment
// @Tags Assignment
// @Accept json
// @Produce json
// @Param payload body dto.AutoAssignRequest false "Trigger source"
// @Success 200 {object} response.Envelope
// @Router /super-admin/assignment/auto-assign [post]
func (h *AssignmentHandler) AutoAssign(c *gin.Context) {
	var req dto.AutoAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid auto-assign payload"))
		return
	}
	result, err := h.service.RunAutoAssign(c.Request.Context(), req.Source)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ProcessQueue godoc
// @Summary Drain the assignment queue
// @Tags Assignment
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /super-admin/assignment/process-queue [post]
func (h *AssignmentHandler) ProcessQueue(c *gin.Context) {
	result, err := h.service.ProcessQueue(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Rebalance godoc
// @Summary Even out admin workloads
// @Tags Assignment
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /super-admin/assignment/rebalance [post]
func (h *AssignmentHandler) Rebalance(c *gin.Context) {
	result, err := h.service.Rebalance(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Stats godoc
// @Summary Assignment statistics
// @Tags Assignment
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /super-admin/assignment/stats [get]
func (h *AssignmentHandler) Stats(c *gin.Context) {
	stats, hit, err := h.service.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, stats, nil, middleware.ExtractMeta(c))
}

// Queue godoc
// @Summary List the assignment queue
// @Tags Assignment
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /super-admin/assignment/queue [get]
func (h *AssignmentHandler) Queue(c *gin.Context) {
	items, err := h.service.Queue(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, &models.Pagination{Page: 1, PageSize: len(items), TotalCount: len(items)})
}

// GetConfig godoc
// @Summary Current assignment config
// @Tags Assignment
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /super-admin/assignment/config [get]
func (h *AssignmentHandler) GetConfig(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.service.Config(), nil)
}

// UpdateConfig godoc
// @Summary Update assignment config
// @Tags Assignment
// @Accept json
// @Produce json
// @Param payload body dto.UpdateAssignmentConfigRequest true "Config patch"
// @Success 200 {object} response.Envelope
// @Router /super-admin/assignment/config [put]
func (h *AssignmentHandler) UpdateConfig(c *gin.Context) {
	var req dto.UpdateAssignmentConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment config payload"))
		return
	}
	cfg, err := h.service.UpdateConfig(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cfg, nil)
}

// AssignUsers godoc
// @Summary Assign users to an admin
// @Tags Assignment
// @Accept json
// @Produce json
// @Param payload body dto.AssignUsersRequest true "Admin and users"
// @Success 200 {object} response.Envelope
// @Router /super-admin/assignment/assign-users [post]
func (h *AssignmentHandler) AssignUsers(c *gin.Context) {
	var req dto.AssignUsersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assign users payload"))
		return
	}
	result, err := h.service.AssignUsersToAdmin(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ReleaseUser godoc
// @Summary Unassign a user from their admin
// @Tags Assignment
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Router /super-admin/users/{id}/admin [delete]
func (h *AssignmentHandler) ReleaseUser(c *gin.Context) {
	result, err := h.service.ReleaseUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ExportWorkload godoc
// @Summary Download admin workloads
// @Tags Assignment
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /super-admin/assignment/workload/export [get]
func (h *AssignmentHandler) ExportWorkload(c *gin.Context) {
	file, err := h.exporter.ExportWorkload(c.Request.Context(), c.DefaultQuery("format", service.ExportFormatCSV))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Payload)
}
