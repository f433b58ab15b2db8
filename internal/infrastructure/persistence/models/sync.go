package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/resell/backend/internal/domain/marketplace"
	"github.com/resell/backend/internal/domain/sync"
)

// ActionTypeModel is the persistence model for the action catalog.
type ActionTypeModel struct {
	ID             uuid.UUID       `gorm:"type:uuid;primary_key"`
	Code           sync.ActionCode `gorm:"type:varchar(20);not null;uniqueIndex"`
	Priority       int             `gorm:"not null"`
	IsBatch        bool            `gorm:"not null;default:false"`
	RateLimitMs    int             `gorm:"not null;default:0"`
	MaxRetries     int             `gorm:"not null;default:3"`
	TimeoutSeconds int             `gorm:"not null;default:60"`
}

// TableName returns the table name for GORM
func (ActionTypeModel) TableName() string {
	return "action_types"
}

// ToDomain converts the persistence model to a domain ActionType.
func (m *ActionTypeModel) ToDomain() *sync.ActionType {
	return &sync.ActionType{
		ID:             m.ID,
		Code:           m.Code,
		Priority:       m.Priority,
		IsBatch:        m.IsBatch,
		RateLimitMs:    m.RateLimitMs,
		MaxRetries:     m.MaxRetries,
		TimeoutSeconds: m.TimeoutSeconds,
	}
}

// FromDomain populates the persistence model from a domain ActionType.
func (m *ActionTypeModel) FromDomain(a *sync.ActionType) {
	m.ID = a.ID
	m.Code = a.Code
	m.Priority = a.Priority
	m.IsBatch = a.IsBatch
	m.RateLimitMs = a.RateLimitMs
	m.MaxRetries = a.MaxRetries
	m.TimeoutSeconds = a.TimeoutSeconds
}

// JobModel is the persistence model for marketplace jobs.
type JobModel struct {
	ID             uuid.UUID        `gorm:"type:uuid;primary_key"`
	TenantID       uuid.UUID        `gorm:"type:uuid;not null;index:idx_job_tenant,priority:1;uniqueIndex:idx_job_idempotency,priority:1"`
	BatchID        *uuid.UUID       `gorm:"type:uuid;index:idx_job_batch"`
	ActionTypeID   uuid.UUID        `gorm:"type:uuid;not null"`
	ActionCode     sync.ActionCode  `gorm:"type:varchar(20);not null;index:idx_job_claim,priority:3"`
	ProductID      *uuid.UUID       `gorm:"type:uuid;index"`
	Marketplace    marketplace.Code `gorm:"type:varchar(20);not null"`
	Status         sync.JobStatus   `gorm:"type:varchar(20);not null;index:idx_job_claim,priority:1"`
	Priority       int              `gorm:"not null;index:idx_job_claim,priority:2"`
	RetryCount     int              `gorm:"not null;default:0"`
	MaxRetries     int              `gorm:"not null;default:3"`
	ErrorMessage   string           `gorm:"type:text"`
	ResultData     []byte           `gorm:"type:jsonb"`
	IdempotencyKey *string          `gorm:"type:varchar(120);uniqueIndex:idx_job_idempotency,priority:2,where:idempotency_key IS NOT NULL"`
	// RetryNotBefore delays re-claim after a failed attempt's backoff
	RetryNotBefore *time.Time `gorm:"index"`
	ExpiresAt      *time.Time `gorm:"index"`
	StartedAt      *time.Time
	CompletedAt    *time.Time
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (JobModel) TableName() string {
	return "marketplace_jobs"
}

// ToDomain converts the persistence model to a domain Job.
func (m *JobModel) ToDomain() *sync.Job {
	job := &sync.Job{
		ID:             m.ID,
		TenantID:       m.TenantID,
		BatchID:        m.BatchID,
		ActionTypeID:   m.ActionTypeID,
		ActionCode:     m.ActionCode,
		ProductID:      m.ProductID,
		Marketplace:    m.Marketplace,
		Status:         m.Status,
		Priority:       m.Priority,
		RetryCount:     m.RetryCount,
		MaxRetries:     m.MaxRetries,
		ErrorMessage:   m.ErrorMessage,
		ResultData:     m.ResultData,
		RetryNotBefore: m.RetryNotBefore,
		ExpiresAt:      m.ExpiresAt,
		StartedAt:      m.StartedAt,
		CompletedAt:    m.CompletedAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
	if m.IdempotencyKey != nil {
		job.IdempotencyKey = *m.IdempotencyKey
	}
	return job
}

// FromDomain populates the persistence model from a domain Job.
func (m *JobModel) FromDomain(j *sync.Job) {
	m.ID = j.ID
	m.TenantID = j.TenantID
	m.BatchID = j.BatchID
	m.ActionTypeID = j.ActionTypeID
	m.ActionCode = j.ActionCode
	m.ProductID = j.ProductID
	m.Marketplace = j.Marketplace
	m.Status = j.Status
	m.Priority = j.Priority
	m.RetryCount = j.RetryCount
	m.MaxRetries = j.MaxRetries
	m.ErrorMessage = j.ErrorMessage
	m.ResultData = j.ResultData
	if j.IdempotencyKey != "" {
		key := j.IdempotencyKey
		m.IdempotencyKey = &key
	} else {
		m.IdempotencyKey = nil
	}
	m.RetryNotBefore = j.RetryNotBefore
	m.ExpiresAt = j.ExpiresAt
	m.StartedAt = j.StartedAt
	m.CompletedAt = j.CompletedAt
	m.CreatedAt = j.CreatedAt
	m.UpdatedAt = j.UpdatedAt
}

// TaskModel is the persistence model for execution tasks.
type TaskModel struct {
	ID           uuid.UUID       `gorm:"type:uuid;primary_key"`
	TenantID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	JobID        *uuid.UUID      `gorm:"type:uuid;index:idx_task_job"`
	ProductID    *uuid.UUID      `gorm:"type:uuid"`
	TaskType     sync.TaskType   `gorm:"type:varchar(20);not null"`
	Status       sync.TaskStatus `gorm:"type:varchar(20);not null"`
	Payload      []byte          `gorm:"type:jsonb"`
	Result       []byte          `gorm:"type:jsonb"`
	ErrorMessage string          `gorm:"type:text"`
	RetryCount   int             `gorm:"not null;default:0"`
	MaxRetries   int             `gorm:"not null;default:0"`
	StartedAt    *time.Time
	CompletedAt  *time.Time
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (TaskModel) TableName() string {
	return "marketplace_tasks"
}

// ToDomain converts the persistence model to a domain Task.
func (m *TaskModel) ToDomain() *sync.Task {
	return &sync.Task{
		ID:           m.ID,
		TenantID:     m.TenantID,
		JobID:        m.JobID,
		ProductID:    m.ProductID,
		TaskType:     m.TaskType,
		Status:       m.Status,
		Payload:      m.Payload,
		Result:       m.Result,
		ErrorMessage: m.ErrorMessage,
		RetryCount:   m.RetryCount,
		MaxRetries:   m.MaxRetries,
		StartedAt:    m.StartedAt,
		CompletedAt:  m.CompletedAt,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain Task.
func (m *TaskModel) FromDomain(t *sync.Task) {
	m.ID = t.ID
	m.TenantID = t.TenantID
	m.JobID = t.JobID
	m.ProductID = t.ProductID
	m.TaskType = t.TaskType
	m.Status = t.Status
	m.Payload = t.Payload
	m.Result = t.Result
	m.ErrorMessage = t.ErrorMessage
	m.RetryCount = t.RetryCount
	m.MaxRetries = t.MaxRetries
	m.StartedAt = t.StartedAt
	m.CompletedAt = t.CompletedAt
	m.CreatedAt = t.CreatedAt
	m.UpdatedAt = t.UpdatedAt
}

// BatchModel is the persistence model for batches.
type BatchModel struct {
	ID             uuid.UUID        `gorm:"type:uuid;primary_key"`
	TenantID       uuid.UUID        `gorm:"type:uuid;not null;index"`
	BatchID        string           `gorm:"type:varchar(60);not null;uniqueIndex"`
	Marketplace    marketplace.Code `gorm:"type:varchar(20);not null"`
	ActionCode     sync.ActionCode  `gorm:"type:varchar(20);not null"`
	TotalCount     int              `gorm:"not null"`
	CompletedCount int              `gorm:"not null;default:0"`
	FailedCount    int              `gorm:"not null;default:0"`
	CancelledCount int              `gorm:"not null;default:0"`
	Status         sync.BatchStatus `gorm:"type:varchar(20);not null"`
	Priority       int              `gorm:"not null"`
	CreatedBy      uuid.UUID        `gorm:"type:uuid;not null"`
	StartedAt      *time.Time
	CompletedAt    *time.Time
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (BatchModel) TableName() string {
	return "marketplace_batches"
}

// ToDomain converts the persistence model to a domain Batch.
func (m *BatchModel) ToDomain() *sync.Batch {
	return &sync.Batch{
		ID:             m.ID,
		TenantID:       m.TenantID,
		BatchID:        m.BatchID,
		Marketplace:    m.Marketplace,
		ActionCode:     m.ActionCode,
		TotalCount:     m.TotalCount,
		CompletedCount: m.CompletedCount,
		FailedCount:    m.FailedCount,
		CancelledCount: m.CancelledCount,
		Status:         m.Status,
		Priority:       m.Priority,
		CreatedBy:      m.CreatedBy,
		StartedAt:      m.StartedAt,
		CompletedAt:    m.CompletedAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain Batch.
func (m *BatchModel) FromDomain(b *sync.Batch) {
	m.ID = b.ID
	m.TenantID = b.TenantID
	m.BatchID = b.BatchID
	m.Marketplace = b.Marketplace
	m.ActionCode = b.ActionCode
	m.TotalCount = b.TotalCount
	m.CompletedCount = b.CompletedCount
	m.FailedCount = b.FailedCount
	m.CancelledCount = b.CancelledCount
	m.Status = b.Status
	m.Priority = b.Priority
	m.CreatedBy = b.CreatedBy
	m.StartedAt = b.StartedAt
	m.CompletedAt = b.CompletedAt
	m.CreatedAt = b.CreatedAt
	m.UpdatedAt = b.UpdatedAt
}
