package sync

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/resell/backend/internal/domain/marketplace"
)

// JobFilter defines filter criteria for listing jobs.
type JobFilter struct {
	// BatchID filters by owning batch (optional)
	BatchID *uuid.UUID
	// Status filters by job status (optional)
	Status *JobStatus
	// Marketplace filters by marketplace (optional)
	Marketplace *marketplace.Code
	// ActionCode filters by action (optional)
	ActionCode *ActionCode
	// Page number (1-indexed)
	Page int
	// Page size
	PageSize int
}

// ClaimCandidate describes a pending job eligible for dispatch, joined with
// the catalog fields the dispatcher needs for throttling.
type ClaimCandidate struct {
	JobID       uuid.UUID
	ActionCode  ActionCode
	Marketplace marketplace.Code
	Priority    int
}

// JobRepository persists marketplace jobs.
type JobRepository interface {
	// Save creates or updates a job. Returns ErrDuplicateIdempotencyKey when
	// another job of the tenant already carries the idempotency key.
	Save(ctx context.Context, job *Job) error

	// FindByID finds a job by ID within a tenant
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Job, error)

	// FindByIdempotencyKey finds a job carrying the given idempotency key,
	// regardless of status. Returns ErrJobNotFound when absent.
	FindByIdempotencyKey(ctx context.Context, tenantID uuid.UUID, key string) (*Job, error)

	// FindAll lists jobs for a tenant with optional filters
	FindAll(ctx context.Context, tenantID uuid.UUID, filter JobFilter) ([]Job, int64, error)

	// FindClaimCandidates returns pending, unexpired jobs that are due for
	// dispatch (past any retry backoff), ordered by priority ascending then
	// creation time ascending, limited to limit rows.
	FindClaimCandidates(ctx context.Context, now time.Time, limit int) ([]ClaimCandidate, error)

	// Claim atomically transitions a job from pending to running. Exactly one
	// of any number of concurrent callers succeeds; the rest receive
	// ErrJobAlreadyClaimed. The returned job reflects the claimed state.
	Claim(ctx context.Context, jobID uuid.UUID, now time.Time) (*Job, error)

	// MarkExpired atomically transitions a pending job past its deadline to
	// expired. Returns ErrJobNotPending if the job was claimed in the
	// meantime.
	MarkExpired(ctx context.Context, jobID uuid.UUID) (*Job, error)

	// FindExpiredPending returns pending jobs whose expires_at has passed.
	FindExpiredPending(ctx context.Context, now time.Time, limit int) ([]Job, error)

	// CancelPendingByBatch cancels every still-pending job of a batch and
	// returns the cancelled jobs.
	CancelPendingByBatch(ctx context.Context, tenantID, batchID uuid.UUID) ([]Job, error)

	// FinishAttempt persists the outcome of a running attempt only while the
	// stored row is still running, including the retry schedule when the job
	// returns to pending. Returns false without writing when the job was
	// cancelled underneath the worker.
	FinishAttempt(ctx context.Context, job *Job) (bool, error)

	// TransitionStatus persists a pause, resume or cancel with a write
	// guarded on the status the caller loaded. Returns false without writing
	// when a concurrent writer moved the job first.
	TransitionStatus(ctx context.Context, job *Job, from JobStatus) (bool, error)
}

// TaskRepository persists execution tasks.
type TaskRepository interface {
	// Save creates or updates a task
	Save(ctx context.Context, task *Task) error

	// FindByID finds a task by ID within a tenant
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Task, error)

	// FindByJob lists all tasks created for a job, newest first
	FindByJob(ctx context.Context, tenantID, jobID uuid.UUID) ([]Task, error)
}

// BatchRepository persists batches.
type BatchRepository interface {
	// Save creates or updates a batch
	Save(ctx context.Context, batch *Batch) error

	// FindByID finds a batch by ID within a tenant
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Batch, error)

	// FindByBatchID finds a batch by its external-facing identifier
	FindByBatchID(ctx context.Context, tenantID uuid.UUID, batchID string) (*Batch, error)

	// RecordChildOutcome atomically rolls one terminal child status into the
	// batch counters and settles the aggregate status when all children have
	// resolved. Safe to call from concurrent dispatcher workers.
	RecordChildOutcome(ctx context.Context, batchID uuid.UUID, childStatus JobStatus) (*Batch, error)

	// MarkStarted marks a pending batch running when its first child is
	// claimed. A no-op once the batch left pending.
	MarkStarted(ctx context.Context, batchID uuid.UUID) error
}

// ActionTypeRepository persists the action catalog.
type ActionTypeRepository interface {
	// FindAll returns every catalog entry
	FindAll(ctx context.Context) ([]ActionType, error)

	// FindByCode finds a catalog entry by its unique code
	FindByCode(ctx context.Context, code ActionCode) (*ActionType, error)

	// Seed inserts the given entries if the catalog is empty
	Seed(ctx context.Context, entries []*ActionType) error
}
