package sync

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/resell/backend/internal/domain/marketplace"
)

// ---------------------------------------------------------------------------
// BatchStatus
// ---------------------------------------------------------------------------

// BatchStatus represents the aggregate state of a batch.
type BatchStatus string

const (
	BatchStatusPending         BatchStatus = "pending"
	BatchStatusRunning         BatchStatus = "running"
	BatchStatusCompleted       BatchStatus = "completed"
	BatchStatusPartiallyFailed BatchStatus = "partially_failed"
	BatchStatusFailed          BatchStatus = "failed"
	BatchStatusCancelled       BatchStatus = "cancelled"
)

// IsValid returns true if the status is valid
func (s BatchStatus) IsValid() bool {
	switch s {
	case BatchStatusPending, BatchStatusRunning, BatchStatusCompleted,
		BatchStatusPartiallyFailed, BatchStatusFailed, BatchStatusCancelled:
		return true
	default:
		return false
	}
}

// String returns the string representation of BatchStatus
func (s BatchStatus) String() string {
	return string(s)
}

// IsTerminal returns true if the status is terminal. A batch never regresses
// from a terminal state.
func (s BatchStatus) IsTerminal() bool {
	switch s {
	case BatchStatusCompleted, BatchStatusPartiallyFailed, BatchStatusFailed, BatchStatusCancelled:
		return true
	default:
		return false
	}
}

// ---------------------------------------------------------------------------
// Batch
// ---------------------------------------------------------------------------

// Batch is a caller-initiated group of jobs created together and tracked as
// one aggregate unit. Counters are mutated only by the dispatcher's rollup
// step, with the invariant completed+failed+cancelled <= total at all times
// and equality exactly when the batch is terminal.
type Batch struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	// BatchID is the external-facing identifier shown to callers
	BatchID        string
	Marketplace    marketplace.Code
	ActionCode     ActionCode
	TotalCount     int
	CompletedCount int
	FailedCount    int
	CancelledCount int
	Status         BatchStatus
	Priority       int
	CreatedBy      uuid.UUID
	StartedAt      *time.Time
	CompletedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewBatch creates a pending batch for a multi-product operation.
func NewBatch(tenantID uuid.UUID, mp marketplace.Code, action *ActionType, totalCount int, createdBy uuid.UUID) (*Batch, error) {
	if tenantID == uuid.Nil {
		return nil, ErrInvalidTenantID
	}
	if !mp.IsValid() {
		return nil, ErrInvalidMarketplace
	}
	if action == nil {
		return nil, ErrActionTypeNotFound
	}
	if totalCount <= 0 {
		return nil, ErrBatchEmpty
	}
	now := time.Now()
	id := uuid.New()
	return &Batch{
		ID:          id,
		TenantID:    tenantID,
		BatchID:     fmt.Sprintf("batch_%s", id),
		Marketplace: mp,
		ActionCode:  action.Code,
		TotalCount:  totalCount,
		Status:      BatchStatusPending,
		Priority:    action.Priority,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// IsTerminal returns true once the batch reached a terminal state.
func (b *Batch) IsTerminal() bool {
	return b.Status.IsTerminal()
}

// ResolvedCount returns the number of children that reached a terminal state.
func (b *Batch) ResolvedCount() int {
	return b.CompletedCount + b.FailedCount + b.CancelledCount
}

// Start marks the batch as running when its first child is claimed.
func (b *Batch) Start() {
	if b.Status != BatchStatusPending {
		return
	}
	now := time.Now()
	b.Status = BatchStatusRunning
	b.StartedAt = &now
	b.UpdatedAt = now
}

// RecordChildOutcome rolls the terminal status of one child job into the
// batch counters and, once every child has resolved, settles the aggregate
// status and stamps completion.
func (b *Batch) RecordChildOutcome(childStatus JobStatus) error {
	if b.IsTerminal() {
		return ErrBatchTerminal
	}
	if !childStatus.IsTerminal() {
		return ErrInvalidJobTransition
	}
	if b.ResolvedCount() >= b.TotalCount {
		return ErrCounterOverflow
	}

	switch childStatus {
	case JobStatusCompleted:
		b.CompletedCount++
	case JobStatusFailed, JobStatusExpired:
		// An expired child never ran; from the aggregate's point of view the
		// work was not done.
		b.FailedCount++
	case JobStatusCancelled:
		b.CancelledCount++
	}
	b.UpdatedAt = time.Now()

	if b.ResolvedCount() == b.TotalCount {
		b.settle()
	}
	return nil
}

// settle computes the terminal aggregate status once all children resolved.
func (b *Batch) settle() {
	now := time.Now()
	switch {
	case b.CompletedCount == b.TotalCount:
		b.Status = BatchStatusCompleted
	case b.CancelledCount == b.TotalCount:
		b.Status = BatchStatusCancelled
	case b.CompletedCount == 0 && b.CancelledCount == 0:
		b.Status = BatchStatusFailed
	default:
		b.Status = BatchStatusPartiallyFailed
	}
	b.CompletedAt = &now
	b.UpdatedAt = now
}
