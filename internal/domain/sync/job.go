package sync

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/resell/backend/internal/domain/marketplace"
)

// ---------------------------------------------------------------------------
// JobStatus
// ---------------------------------------------------------------------------

// JobStatus represents the lifecycle state of a marketplace job.
// The enumeration is closed; no other value is permitted.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusPaused    JobStatus = "paused"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
	JobStatusExpired   JobStatus = "expired"
)

// IsValid returns true if the status is valid
func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusPending, JobStatusRunning, JobStatusPaused, JobStatusCompleted,
		JobStatusFailed, JobStatusCancelled, JobStatusExpired:
		return true
	default:
		return false
	}
}

// String returns the string representation of JobStatus
func (s JobStatus) String() string {
	return string(s)
}

// IsTerminal returns true if the status is terminal. A job never transitions
// out of a terminal state.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled, JobStatusExpired:
		return true
	default:
		return false
	}
}

// ---------------------------------------------------------------------------
// FailureKind
// ---------------------------------------------------------------------------

// FailureKind classifies a job failure for retry accounting.
type FailureKind string

const (
	// FailureAdapter indicates the marketplace rejected the request
	FailureAdapter FailureKind = "adapter_error"
	// FailureTimeout indicates the adapter call exceeded its bound
	FailureTimeout FailureKind = "timeout"
	// FailureMapping indicates the category resolver found no mapping
	FailureMapping FailureKind = "mapping_error"
	// FailureValidation indicates malformed product data
	FailureValidation FailureKind = "validation_error"
)

// IsPermanent returns true for failures that must not be retried.
func (k FailureKind) IsPermanent() bool {
	return k == FailureMapping || k == FailureValidation
}

// String returns the string representation of FailureKind
func (k FailureKind) String() string {
	return string(k)
}

// ---------------------------------------------------------------------------
// Job
// ---------------------------------------------------------------------------

// Job is one marketplace intent for one product, the unit the dispatcher
// schedules. Status is the record of outcome; jobs are never physically
// deleted.
type Job struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	// BatchID links the job to its owning batch, if any
	BatchID *uuid.UUID
	// ActionTypeID references the action catalog entry
	ActionTypeID uuid.UUID
	ActionCode   ActionCode
	// ProductID may be nil: a job can outlive or be independent of a product
	ProductID   *uuid.UUID
	Marketplace marketplace.Code
	Status      JobStatus
	// Priority is copied from the action type at creation but independently
	// overridable per job
	Priority     int
	RetryCount   int
	MaxRetries   int
	ErrorMessage string
	// ResultData is the opaque success payload written by the dispatcher
	ResultData []byte
	// IdempotencyKey is globally unique when present
	IdempotencyKey string
	// RetryNotBefore delays the next claim until the retry backoff has
	// passed. Stamped by the dispatcher when a transient failure returns the
	// job to pending.
	RetryNotBefore *time.Time
	// ExpiresAt bounds how long the job may wait unclaimed. A job not
	// started by this time transitions to expired rather than running.
	ExpiresAt   *time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewJob creates a pending job for the given action.
func NewJob(tenantID uuid.UUID, action *ActionType, mp marketplace.Code, productID *uuid.UUID) (*Job, error) {
	if tenantID == uuid.Nil {
		return nil, ErrInvalidTenantID
	}
	if action == nil {
		return nil, ErrActionTypeNotFound
	}
	if !mp.IsValid() {
		return nil, ErrInvalidMarketplace
	}
	now := time.Now()
	return &Job{
		ID:           uuid.New(),
		TenantID:     tenantID,
		ActionTypeID: action.ID,
		ActionCode:   action.Code,
		ProductID:    productID,
		Marketplace:  mp,
		Status:       JobStatusPending,
		Priority:     action.Priority,
		MaxRetries:   action.MaxRetries,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// NewIdempotencyKey builds a publish idempotency key in the canonical
// pub_<product_id>_<uuid> format.
func NewIdempotencyKey(productID uuid.UUID) string {
	return fmt.Sprintf("pub_%s_%s", productID, uuid.New())
}

// IsTerminal returns true once the job reached a terminal state.
func (j *Job) IsTerminal() bool {
	return j.Status.IsTerminal()
}

// IsExpired returns true if the job carries a deadline that has passed.
func (j *Job) IsExpired(now time.Time) bool {
	return j.ExpiresAt != nil && now.After(*j.ExpiresAt)
}

// Start marks the job as claimed by a dispatcher worker. The exclusive claim
// itself is enforced by the repository's conditional update; this records the
// in-memory effect.
func (j *Job) Start() error {
	if j.Status != JobStatusPending {
		return ErrJobNotPending
	}
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.UpdatedAt = now
	return nil
}

// Complete marks the job as successful with an opaque result payload.
func (j *Job) Complete(resultData []byte) error {
	if j.Status != JobStatusRunning {
		return ErrInvalidJobTransition
	}
	now := time.Now()
	j.Status = JobStatusCompleted
	j.ResultData = resultData
	j.ErrorMessage = ""
	j.RetryNotBefore = nil
	j.CompletedAt = &now
	j.UpdatedAt = now
	return nil
}

// Fail records a failure. Transient failures below the retry ceiling return
// the job to pending with an incremented retry count; permanent failures and
// exhausted budgets move it to failed. Returns true if the job will retry.
func (j *Job) Fail(kind FailureKind, message string) (bool, error) {
	if j.Status != JobStatusRunning {
		return false, ErrInvalidJobTransition
	}
	now := time.Now()
	j.ErrorMessage = message
	j.RetryNotBefore = nil
	j.UpdatedAt = now

	if kind.IsPermanent() {
		// Burn the remaining budget so the job fails fast.
		j.RetryCount = j.MaxRetries
		j.Status = JobStatusFailed
		j.CompletedAt = &now
		return false, nil
	}

	if j.RetryCount >= j.MaxRetries {
		j.Status = JobStatusFailed
		j.CompletedAt = &now
		return false, nil
	}

	j.RetryCount++
	j.Status = JobStatusPending
	return true, nil
}

// Cancel marks the job as cancelled. Only pending, paused and running jobs
// can be cancelled; a running job finishes its current task but is not
// retried once cancellation is observed.
func (j *Job) Cancel() error {
	switch j.Status {
	case JobStatusPending, JobStatusPaused, JobStatusRunning:
		now := time.Now()
		j.Status = JobStatusCancelled
		j.CompletedAt = &now
		j.UpdatedAt = now
		return nil
	default:
		return ErrJobTerminal
	}
}

// Expire marks a pending job whose deadline passed as expired, never claimed.
func (j *Job) Expire() error {
	if j.Status != JobStatusPending {
		return ErrJobNotPending
	}
	now := time.Now()
	j.Status = JobStatusExpired
	j.CompletedAt = &now
	j.UpdatedAt = now
	return nil
}

// Pause moves a pending job aside so the dispatcher skips it.
func (j *Job) Pause() error {
	if j.Status != JobStatusPending {
		return ErrJobNotPending
	}
	j.Status = JobStatusPaused
	j.UpdatedAt = time.Now()
	return nil
}

// Resume returns a paused job to the pending queue.
func (j *Job) Resume() error {
	if j.Status != JobStatusPaused {
		return ErrJobNotPaused
	}
	j.Status = JobStatusPending
	j.UpdatedAt = time.Now()
	return nil
}

// Backoff returns the delay before the next claim attempt after a failure:
// rateLimit × 2^retry_count, capped.
func (j *Job) Backoff(rateLimit, cap time.Duration) time.Duration {
	if rateLimit <= 0 {
		rateLimit = time.Second
	}
	delay := rateLimit
	for i := 0; i < j.RetryCount; i++ {
		delay *= 2
		if delay >= cap {
			return cap
		}
	}
	if delay > cap {
		delay = cap
	}
	return delay
}
