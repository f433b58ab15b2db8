package persistence

import (
	"context"
	gosync "sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resell/backend/internal/domain/marketplace"
	"github.com/resell/backend/internal/domain/sync"
)

func makeBatch(t *testing.T, tenantID uuid.UUID, total int) *sync.Batch {
	t.Helper()
	batch, err := sync.NewBatch(tenantID, marketplace.CodeVinted, publishAction(t), total, uuid.New())
	require.NoError(t, err)
	return batch
}

func TestGormBatchRepository_SaveAndFind(t *testing.T) {
	db := setupSyncTestDB(t)
	repo := NewGormBatchRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	batch := makeBatch(t, tenantID, 3)
	require.NoError(t, repo.Save(ctx, batch))

	found, err := repo.FindByID(ctx, tenantID, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, batch.BatchID, found.BatchID)

	byExternal, err := repo.FindByBatchID(ctx, tenantID, batch.BatchID)
	require.NoError(t, err)
	assert.Equal(t, batch.ID, byExternal.ID)

	_, err = repo.FindByID(ctx, uuid.New(), batch.ID)
	assert.ErrorIs(t, err, sync.ErrBatchNotFound)
}

func TestGormBatchRepository_MarkStarted(t *testing.T) {
	db := setupSyncTestDB(t)
	repo := NewGormBatchRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	batch := makeBatch(t, tenantID, 2)
	require.NoError(t, repo.Save(ctx, batch))
	require.NoError(t, repo.MarkStarted(ctx, batch.ID))

	found, err := repo.FindByID(ctx, tenantID, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, sync.BatchStatusRunning, found.Status)
	assert.NotNil(t, found.StartedAt)

	// Idempotent once running
	require.NoError(t, repo.MarkStarted(ctx, batch.ID))
}

func TestGormBatchRepository_Rollup_AllCompleted(t *testing.T) {
	db := setupSyncTestDB(t)
	repo := NewGormBatchRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	batch := makeBatch(t, tenantID, 3)
	require.NoError(t, repo.Save(ctx, batch))
	require.NoError(t, repo.MarkStarted(ctx, batch.ID))

	for i := 0; i < 2; i++ {
		updated, err := repo.RecordChildOutcome(ctx, batch.ID, sync.JobStatusCompleted)
		require.NoError(t, err)
		assert.False(t, updated.IsTerminal())
	}

	final, err := repo.RecordChildOutcome(ctx, batch.ID, sync.JobStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, sync.BatchStatusCompleted, final.Status)
	assert.Equal(t, 3, final.CompletedCount)
	assert.NotNil(t, final.CompletedAt)
}

func TestGormBatchRepository_Rollup_PartiallyFailed(t *testing.T) {
	db := setupSyncTestDB(t)
	repo := NewGormBatchRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	batch := makeBatch(t, tenantID, 3)
	require.NoError(t, repo.Save(ctx, batch))

	_, err := repo.RecordChildOutcome(ctx, batch.ID, sync.JobStatusCompleted)
	require.NoError(t, err)
	_, err = repo.RecordChildOutcome(ctx, batch.ID, sync.JobStatusCompleted)
	require.NoError(t, err)

	final, err := repo.RecordChildOutcome(ctx, batch.ID, sync.JobStatusFailed)
	require.NoError(t, err)
	assert.Equal(t, sync.BatchStatusPartiallyFailed, final.Status)
	assert.Equal(t, 2, final.CompletedCount)
	assert.Equal(t, 1, final.FailedCount)
}

func TestGormBatchRepository_Rollup_TerminalIsAbsorbing(t *testing.T) {
	db := setupSyncTestDB(t)
	repo := NewGormBatchRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	batch := makeBatch(t, tenantID, 1)
	require.NoError(t, repo.Save(ctx, batch))

	final, err := repo.RecordChildOutcome(ctx, batch.ID, sync.JobStatusCompleted)
	require.NoError(t, err)
	require.True(t, final.IsTerminal())

	_, err = repo.RecordChildOutcome(ctx, batch.ID, sync.JobStatusFailed)
	assert.ErrorIs(t, err, sync.ErrBatchTerminal)

	// Status and counters unchanged
	found, err := repo.FindByID(ctx, tenantID, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, sync.BatchStatusCompleted, found.Status)
	assert.Equal(t, 1, found.ResolvedCount())
}

func TestGormBatchRepository_Rollup_Concurrent(t *testing.T) {
	db := setupSyncTestDB(t)
	repo := NewGormBatchRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	const total = 10
	batch := makeBatch(t, tenantID, total)
	require.NoError(t, repo.Save(ctx, batch))

	var wg gosync.WaitGroup
	for i := 0; i < total; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			status := sync.JobStatusCompleted
			if i%2 == 1 {
				status = sync.JobStatusFailed
			}
			_, err := repo.RecordChildOutcome(ctx, batch.ID, status)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	final, err := repo.FindByID(ctx, tenantID, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, total, final.ResolvedCount())
	assert.Equal(t, 5, final.CompletedCount)
	assert.Equal(t, 5, final.FailedCount)
	assert.Equal(t, sync.BatchStatusPartiallyFailed, final.Status)
}
