package sync

import (
	"time"

	"github.com/google/uuid"

	"github.com/resell/backend/internal/domain/marketplace"
	"github.com/resell/backend/internal/domain/sync"
)

// ---------------------------------------------------------------------------
// Request DTOs
// ---------------------------------------------------------------------------

// SubmitJobRequest represents a request to enqueue a single job
type SubmitJobRequest struct {
	ActionCode  sync.ActionCode  `json:"action_code" validate:"required"`
	Marketplace marketplace.Code `json:"marketplace" validate:"required"`
	ProductID   *uuid.UUID       `json:"product_id,omitempty"`
	// Priority overrides the action's default priority class when set (1..4)
	Priority *int `json:"priority,omitempty" validate:"omitempty,min=1,max=4"`
	// IdempotencyKey deduplicates submissions; generated for publish jobs
	// when omitted
	IdempotencyKey string `json:"idempotency_key,omitempty"`
	// ExpiresAt bounds how long the job may wait unclaimed
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// SubmitBatchRequest represents a request to fan a batch action out over
// many products
type SubmitBatchRequest struct {
	ActionCode  sync.ActionCode  `json:"action_code" validate:"required"`
	Marketplace marketplace.Code `json:"marketplace" validate:"required"`
	ProductIDs  []uuid.UUID      `json:"product_ids" validate:"required,min=1"`
	CreatedBy   uuid.UUID        `json:"created_by" validate:"required"`
	// ExpiresAt applies to every child job
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// ListJobsRequest represents job list filters
type ListJobsRequest struct {
	BatchID     *uuid.UUID        `form:"batch_id"`
	Status      *sync.JobStatus   `form:"status"`
	Marketplace *marketplace.Code `form:"marketplace"`
	ActionCode  *sync.ActionCode  `form:"action_code"`
	Page        int               `form:"page"`
	PageSize    int               `form:"page_size"`
}

// ---------------------------------------------------------------------------
// Response DTOs
// ---------------------------------------------------------------------------

// JobResponse represents a job in API responses
type JobResponse struct {
	ID             uuid.UUID        `json:"id"`
	BatchID        *uuid.UUID       `json:"batch_id,omitempty"`
	ActionCode     sync.ActionCode  `json:"action_code"`
	ProductID      *uuid.UUID       `json:"product_id,omitempty"`
	Marketplace    marketplace.Code `json:"marketplace"`
	Status         sync.JobStatus   `json:"status"`
	Priority       int              `json:"priority"`
	RetryCount     int              `json:"retry_count"`
	MaxRetries     int              `json:"max_retries"`
	ErrorMessage   string           `json:"error_message,omitempty"`
	IdempotencyKey string           `json:"idempotency_key,omitempty"`
	ExpiresAt      *time.Time       `json:"expires_at,omitempty"`
	StartedAt      *time.Time       `json:"started_at,omitempty"`
	CompletedAt    *time.Time       `json:"completed_at,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

// SubmitJobResponse wraps a submitted job with the dedup outcome
type SubmitJobResponse struct {
	Job JobResponse `json:"job"`
	// Created is false when the idempotency key matched an existing job
	Created bool `json:"created"`
}

// BatchResponse represents a batch in API responses
type BatchResponse struct {
	ID             uuid.UUID        `json:"id"`
	BatchID        string           `json:"batch_id"`
	ActionCode     sync.ActionCode  `json:"action_code"`
	Marketplace    marketplace.Code `json:"marketplace"`
	Status         sync.BatchStatus `json:"status"`
	TotalCount     int              `json:"total_count"`
	CompletedCount int              `json:"completed_count"`
	FailedCount    int              `json:"failed_count"`
	CancelledCount int              `json:"cancelled_count"`
	CreatedBy      uuid.UUID        `json:"created_by"`
	StartedAt      *time.Time       `json:"started_at,omitempty"`
	CompletedAt    *time.Time       `json:"completed_at,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

// TaskResponse represents one execution attempt in API responses
type TaskResponse struct {
	ID           uuid.UUID       `json:"id"`
	JobID        *uuid.UUID      `json:"job_id,omitempty"`
	TaskType     sync.TaskType   `json:"task_type"`
	Status       sync.TaskStatus `json:"status"`
	ErrorMessage string          `json:"error_message,omitempty"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// JobListResponse represents a paginated job list
type JobListResponse struct {
	Jobs     []JobResponse `json:"jobs"`
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
}

// ---------------------------------------------------------------------------
// Converters
// ---------------------------------------------------------------------------

// ToJobResponse converts a domain job to its response representation
func ToJobResponse(job *sync.Job) JobResponse {
	return JobResponse{
		ID:             job.ID,
		BatchID:        job.BatchID,
		ActionCode:     job.ActionCode,
		ProductID:      job.ProductID,
		Marketplace:    job.Marketplace,
		Status:         job.Status,
		Priority:       job.Priority,
		RetryCount:     job.RetryCount,
		MaxRetries:     job.MaxRetries,
		ErrorMessage:   job.ErrorMessage,
		IdempotencyKey: job.IdempotencyKey,
		ExpiresAt:      job.ExpiresAt,
		StartedAt:      job.StartedAt,
		CompletedAt:    job.CompletedAt,
		CreatedAt:      job.CreatedAt,
	}
}

// ToBatchResponse converts a domain batch to its response representation
func ToBatchResponse(batch *sync.Batch) BatchResponse {
	return BatchResponse{
		ID:             batch.ID,
		BatchID:        batch.BatchID,
		ActionCode:     batch.ActionCode,
		Marketplace:    batch.Marketplace,
		Status:         batch.Status,
		TotalCount:     batch.TotalCount,
		CompletedCount: batch.CompletedCount,
		FailedCount:    batch.FailedCount,
		CancelledCount: batch.CancelledCount,
		CreatedBy:      batch.CreatedBy,
		StartedAt:      batch.StartedAt,
		CompletedAt:    batch.CompletedAt,
		CreatedAt:      batch.CreatedAt,
	}
}

// ToTaskResponse converts a domain task to its response representation
func ToTaskResponse(task *sync.Task) TaskResponse {
	return TaskResponse{
		ID:           task.ID,
		JobID:        task.JobID,
		TaskType:     task.TaskType,
		Status:       task.Status,
		ErrorMessage: task.ErrorMessage,
		StartedAt:    task.StartedAt,
		CompletedAt:  task.CompletedAt,
		CreatedAt:    task.CreatedAt,
	}
}
