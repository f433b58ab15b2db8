package handler

import (
	"context"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appsync "github.com/resell/backend/internal/application/sync"
	"github.com/resell/backend/internal/domain/marketplace"
	"github.com/resell/backend/internal/domain/sync"
	"github.com/resell/backend/internal/infrastructure/dispatcher"
	"github.com/resell/backend/internal/interfaces/http/dto"
)

// StatsProvider exposes dispatcher counters for the stats endpoint
type StatsProvider interface {
	Stats() dispatcher.Stats
}

// SyncHandler handles job, batch and task API endpoints
type SyncHandler struct {
	BaseHandler
	service *appsync.SyncService
	stats   StatsProvider
}

// NewSyncHandler creates a new SyncHandler. stats may be nil when no
// dispatcher runs in this process.
func NewSyncHandler(service *appsync.SyncService, stats StatsProvider) *SyncHandler {
	return &SyncHandler{service: service, stats: stats}
}

// SubmitJob enqueues a single synchronization job
func (h *SyncHandler) SubmitJob(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identification required")
		return
	}

	var req appsync.SubmitJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	resp, err := h.service.SubmitJob(c.Request.Context(), tenantID, req)
	if err != nil {
		h.handleSyncError(c, err)
		return
	}

	if resp.Created {
		h.Created(c, resp)
		return
	}
	h.Success(c, resp)
}

// SubmitBatch fans a batch action out over many products
func (h *SyncHandler) SubmitBatch(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identification required")
		return
	}

	var req appsync.SubmitBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if req.CreatedBy == uuid.Nil {
		if actor := getActorID(c); actor != nil {
			req.CreatedBy = *actor
		}
	}

	resp, err := h.service.SubmitBatch(c.Request.Context(), tenantID, req)
	if err != nil {
		h.handleSyncError(c, err)
		return
	}

	h.Created(c, resp)
}

// GetJob returns a single job by ID
func (h *SyncHandler) GetJob(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identification required")
		return
	}

	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid job ID")
		return
	}

	resp, err := h.service.GetJob(c.Request.Context(), tenantID, jobID)
	if err != nil {
		h.handleSyncError(c, err)
		return
	}

	h.Success(c, resp)
}

// ListJobs returns jobs matching the query filters
func (h *SyncHandler) ListJobs(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identification required")
		return
	}

	req, err := parseListJobsQuery(c)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	resp, err := h.service.ListJobs(c.Request.Context(), tenantID, req)
	if err != nil {
		h.handleSyncError(c, err)
		return
	}

	h.SuccessWithMeta(c, resp.Jobs, resp.Total, resp.Page, resp.PageSize)
}

// CancelJob cancels a pending, paused or running job
func (h *SyncHandler) CancelJob(c *gin.Context) {
	h.transition(c, h.service.CancelJob)
}

// PauseJob holds a pending job back from dispatch
func (h *SyncHandler) PauseJob(c *gin.Context) {
	h.transition(c, h.service.PauseJob)
}

// ResumeJob returns a paused job to the queue
func (h *SyncHandler) ResumeJob(c *gin.Context) {
	h.transition(c, h.service.ResumeJob)
}

// ListJobTasks returns the execution attempts recorded for a job
func (h *SyncHandler) ListJobTasks(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identification required")
		return
	}

	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid job ID")
		return
	}

	tasks, err := h.service.ListJobTasks(c.Request.Context(), tenantID, jobID)
	if err != nil {
		h.handleSyncError(c, err)
		return
	}

	h.Success(c, tasks)
}

// GetBatch returns a batch by its public batch ID
func (h *SyncHandler) GetBatch(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identification required")
		return
	}

	resp, err := h.service.GetBatch(c.Request.Context(), tenantID, c.Param("batch_id"))
	if err != nil {
		h.handleSyncError(c, err)
		return
	}

	h.Success(c, resp)
}

// CancelBatch cancels every pending child of a batch
func (h *SyncHandler) CancelBatch(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identification required")
		return
	}

	resp, err := h.service.CancelBatch(c.Request.Context(), tenantID, c.Param("batch_id"))
	if err != nil {
		h.handleSyncError(c, err)
		return
	}

	h.Success(c, resp)
}

// ListActionTypes returns the action catalog
func (h *SyncHandler) ListActionTypes(c *gin.Context) {
	actions, err := h.service.ListActionTypes(c.Request.Context())
	if err != nil {
		h.handleSyncError(c, err)
		return
	}

	h.Success(c, actions)
}

// GetStats returns dispatcher counters for this instance
func (h *SyncHandler) GetStats(c *gin.Context) {
	if h.stats == nil {
		h.NotFound(c, "No dispatcher running in this instance")
		return
	}
	h.Success(c, h.stats.Stats())
}

// transition runs a job state change shared by cancel, pause and resume
func (h *SyncHandler) transition(c *gin.Context, fn func(ctx context.Context, tenantID, jobID uuid.UUID) (*appsync.JobResponse, error)) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identification required")
		return
	}

	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid job ID")
		return
	}

	resp, err := fn(c.Request.Context(), tenantID, jobID)
	if err != nil {
		h.handleSyncError(c, err)
		return
	}

	h.Success(c, resp)
}

// handleSyncError maps domain errors onto HTTP status codes
func (h *SyncHandler) handleSyncError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, sync.ErrJobNotFound):
		h.NotFound(c, "Job not found")
	case errors.Is(err, sync.ErrBatchNotFound):
		h.NotFound(c, "Batch not found")
	case errors.Is(err, sync.ErrActionTypeNotFound):
		h.NotFound(c, "Unknown action code")
	case errors.Is(err, sync.ErrJobTerminal):
		h.ErrorWithCode(c, dto.ErrCodeJobTerminal, "Job is already in a terminal state")
	case errors.Is(err, sync.ErrBatchTerminal):
		h.ErrorWithCode(c, dto.ErrCodeBatchTerminal, "Batch is already settled")
	case errors.Is(err, sync.ErrJobNotPending), errors.Is(err, sync.ErrJobNotPaused):
		h.ErrorWithCode(c, dto.ErrCodeInvalidState, err.Error())
	case errors.Is(err, sync.ErrInvalidPriority),
		errors.Is(err, sync.ErrInvalidActionConfig),
		errors.Is(err, sync.ErrBatchEmpty),
		errors.Is(err, sync.ErrInvalidMarketplace):
		h.BadRequest(c, err.Error())
	default:
		h.HandleError(c, err)
	}
}

// parseListJobsQuery parses list filters from query parameters
func parseListJobsQuery(c *gin.Context) (appsync.ListJobsRequest, error) {
	var req appsync.ListJobsRequest

	if raw := c.Query("batch_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return req, errors.New("invalid batch_id filter")
		}
		req.BatchID = &id
	}
	if raw := c.Query("status"); raw != "" {
		status := sync.JobStatus(raw)
		req.Status = &status
	}
	if raw := c.Query("marketplace"); raw != "" {
		code := marketplace.Code(raw)
		req.Marketplace = &code
	}
	if raw := c.Query("action_code"); raw != "" {
		code := sync.ActionCode(raw)
		req.ActionCode = &code
	}
	if raw := c.Query("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return req, errors.New("invalid page parameter")
		}
		req.Page = page
	}
	if raw := c.Query("page_size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 1 || size > 100 {
			return req, errors.New("invalid page_size parameter")
		}
		req.PageSize = size
	}

	return req, nil
}
