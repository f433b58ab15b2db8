package sync

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resell/backend/internal/domain/marketplace"
)

func newTestBatch(t *testing.T, total int) *Batch {
	t.Helper()
	batch, err := NewBatch(uuid.New(), marketplace.CodeVinted, newTestAction(t, ActionCodePublish), total, uuid.New())
	require.NoError(t, err)
	return batch
}

func TestNewBatch(t *testing.T) {
	tenantID := uuid.New()
	creator := uuid.New()
	action := newTestAction(t, ActionCodePublish)

	batch, err := NewBatch(tenantID, marketplace.CodeEbay, action, 200, creator)

	require.NoError(t, err)
	assert.Equal(t, BatchStatusPending, batch.Status)
	assert.Equal(t, 200, batch.TotalCount)
	assert.Equal(t, 0, batch.ResolvedCount())
	assert.Equal(t, action.Priority, batch.Priority)
	assert.Equal(t, creator, batch.CreatedBy)
	assert.Contains(t, batch.BatchID, "batch_")
	assert.Nil(t, batch.CompletedAt)
}

func TestNewBatch_Invalid(t *testing.T) {
	action := newTestAction(t, ActionCodePublish)

	_, err := NewBatch(uuid.Nil, marketplace.CodeVinted, action, 3, uuid.New())
	assert.ErrorIs(t, err, ErrInvalidTenantID)

	_, err = NewBatch(uuid.New(), marketplace.CodeVinted, action, 0, uuid.New())
	assert.ErrorIs(t, err, ErrBatchEmpty)
}

func TestBatch_AllChildrenCompleted(t *testing.T) {
	batch := newTestBatch(t, 3)
	batch.Start()
	assert.Equal(t, BatchStatusRunning, batch.Status)

	for i := 0; i < 3; i++ {
		require.NoError(t, batch.RecordChildOutcome(JobStatusCompleted))
	}

	assert.Equal(t, BatchStatusCompleted, batch.Status)
	assert.Equal(t, 3, batch.CompletedCount)
	assert.NotNil(t, batch.CompletedAt)
}

func TestBatch_MixedOutcomes(t *testing.T) {
	batch := newTestBatch(t, 3)
	batch.Start()

	require.NoError(t, batch.RecordChildOutcome(JobStatusCompleted))
	require.NoError(t, batch.RecordChildOutcome(JobStatusCompleted))
	require.NoError(t, batch.RecordChildOutcome(JobStatusFailed))

	assert.Equal(t, BatchStatusPartiallyFailed, batch.Status)
	assert.Equal(t, 2, batch.CompletedCount)
	assert.Equal(t, 1, batch.FailedCount)
}

func TestBatch_AllFailed(t *testing.T) {
	batch := newTestBatch(t, 2)
	batch.Start()

	require.NoError(t, batch.RecordChildOutcome(JobStatusFailed))
	require.NoError(t, batch.RecordChildOutcome(JobStatusFailed))

	assert.Equal(t, BatchStatusFailed, batch.Status)
}

func TestBatch_AllCancelled(t *testing.T) {
	batch := newTestBatch(t, 2)
	batch.Start()

	require.NoError(t, batch.RecordChildOutcome(JobStatusCancelled))
	require.NoError(t, batch.RecordChildOutcome(JobStatusCancelled))

	assert.Equal(t, BatchStatusCancelled, batch.Status)
}

func TestBatch_ExpiredChildCountsAsFailed(t *testing.T) {
	batch := newTestBatch(t, 2)
	batch.Start()

	require.NoError(t, batch.RecordChildOutcome(JobStatusCompleted))
	require.NoError(t, batch.RecordChildOutcome(JobStatusExpired))

	assert.Equal(t, BatchStatusPartiallyFailed, batch.Status)
	assert.Equal(t, 1, batch.FailedCount)
}

func TestBatch_CounterInvariant(t *testing.T) {
	batch := newTestBatch(t, 3)
	batch.Start()

	for i := 0; i < 3; i++ {
		assert.LessOrEqual(t, batch.ResolvedCount(), batch.TotalCount)
		assert.False(t, batch.IsTerminal())
		require.NoError(t, batch.RecordChildOutcome(JobStatusCompleted))
	}

	// Equality holds exactly when the batch is terminal
	assert.Equal(t, batch.TotalCount, batch.ResolvedCount())
	assert.True(t, batch.IsTerminal())
}

func TestBatch_NeverRegressesFromTerminal(t *testing.T) {
	batch := newTestBatch(t, 1)
	batch.Start()
	require.NoError(t, batch.RecordChildOutcome(JobStatusCompleted))
	require.True(t, batch.IsTerminal())

	err := batch.RecordChildOutcome(JobStatusFailed)
	assert.ErrorIs(t, err, ErrBatchTerminal)
	assert.Equal(t, BatchStatusCompleted, batch.Status)
}

func TestBatch_RejectsNonTerminalChildStatus(t *testing.T) {
	batch := newTestBatch(t, 2)
	batch.Start()

	err := batch.RecordChildOutcome(JobStatusRunning)
	assert.ErrorIs(t, err, ErrInvalidJobTransition)
	assert.Equal(t, 0, batch.ResolvedCount())
}
