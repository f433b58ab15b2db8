package dispatcher

import (
	"context"
	stdsync "sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/resell/backend/internal/domain/catalog"
	"github.com/resell/backend/internal/domain/marketplace"
	"github.com/resell/backend/internal/domain/sync"
	"github.com/resell/backend/internal/infrastructure/cache"
	"github.com/resell/backend/internal/infrastructure/persistence"
	"github.com/resell/backend/internal/infrastructure/persistence/models"
)

// ---------------------------------------------------------------------------
// Test Helpers
// ---------------------------------------------------------------------------

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

func setupDispatcherDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	// A single connection keeps every query on the same in-memory database
	// and serializes concurrent writers.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.ActionTypeModel{},
		&models.JobModel{},
		&models.TaskModel{},
		&models.BatchModel{},
	)
	require.NoError(t, err)
	return db
}

// mockAdapter implements marketplace.Adapter for testing
type mockAdapter struct {
	code        marketplace.Code
	executeFunc func(ctx context.Context, req marketplace.Request) (*marketplace.Response, error)
	execCount   int32
}

func (m *mockAdapter) Code() marketplace.Code {
	return m.code
}

func (m *mockAdapter) Execute(ctx context.Context, req marketplace.Request) (*marketplace.Response, error) {
	atomic.AddInt32(&m.execCount, 1)
	if m.executeFunc != nil {
		return m.executeFunc(ctx, req)
	}
	return &marketplace.Response{StatusCode: 200, Body: []byte(`{"ok":true}`), ExternalID: "ext-1"}, nil
}

type mockRegistry struct {
	adapters map[marketplace.Code]marketplace.Adapter
}

func (r *mockRegistry) Adapter(code marketplace.Code) (marketplace.Adapter, error) {
	a, ok := r.adapters[code]
	if !ok {
		return nil, marketplace.ErrAdapterNotConfigured
	}
	return a, nil
}

type testHarness struct {
	dispatcher *Dispatcher
	jobs       sync.JobRepository
	tasks      sync.TaskRepository
	batches    sync.BatchRepository
	actions    sync.ActionTypeRepository
	adapter    *mockAdapter
	store      *cache.InMemoryIdempotencyStore
	tenantID   uuid.UUID
}

// fastActionTypes uses tiny rate limits so retries become due immediately.
func fastActionTypes(t *testing.T) []*sync.ActionType {
	t.Helper()
	mk := func(code sync.ActionCode, priority int, maxRetries int) *sync.ActionType {
		a, err := sync.NewActionType(code, priority, true, 1, maxRetries, 5)
		require.NoError(t, err)
		return a
	}
	return []*sync.ActionType{
		mk(sync.ActionCodePublish, sync.PriorityHigh, 3),
		mk(sync.ActionCodeUpdate, sync.PriorityNormal, 3),
		mk(sync.ActionCodeDelete, sync.PriorityHigh, 3),
	}
}

func setupHarness(t *testing.T, payloads PayloadBuilder) *testHarness {
	t.Helper()
	db := setupDispatcherDB(t)

	jobs := persistence.NewGormJobRepository(db)
	tasks := persistence.NewGormTaskRepository(db)
	batches := persistence.NewGormBatchRepository(db)
	actions := persistence.NewGormActionTypeRepository(db)

	ctx := context.Background()
	require.NoError(t, actions.Seed(ctx, fastActionTypes(t)))

	adapter := &mockAdapter{code: marketplace.CodeVinted}
	registry := &mockRegistry{adapters: map[marketplace.Code]marketplace.Adapter{
		marketplace.CodeVinted: adapter,
	}}
	executors, err := NewExecutorSet(NewAdapterExecutor(registry))
	require.NoError(t, err)

	store := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = store.Close() })

	config := DefaultConfig()
	config.PollInterval = 10 * time.Millisecond
	config.BackoffCap = 50 * time.Millisecond

	d, err := NewDispatcher(config, jobs, tasks, batches, actions, executors, payloads, nil, store, newTestLogger())
	require.NoError(t, err)

	return &testHarness{
		dispatcher: d,
		jobs:       jobs,
		tasks:      tasks,
		batches:    batches,
		actions:    actions,
		adapter:    adapter,
		store:      store,
		tenantID:   uuid.New(),
	}
}

func (h *testHarness) newPendingJob(t *testing.T, code sync.ActionCode) *sync.Job {
	t.Helper()
	ctx := context.Background()
	action, err := h.actions.FindByCode(ctx, code)
	require.NoError(t, err)

	productID := uuid.New()
	job, err := sync.NewJob(h.tenantID, action, marketplace.CodeVinted, &productID)
	require.NoError(t, err)
	require.NoError(t, h.jobs.Save(ctx, job))
	return job
}

// waitUntil polls cond until it holds or the deadline passes.
func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.True(t, cond(), "condition not met within %s", timeout)
}

func runDispatcher(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, d.Start(ctx))
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, d.Stop(stopCtx))
	})
}

// ---------------------------------------------------------------------------
// Config Tests
// ---------------------------------------------------------------------------

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid default config", func(c *Config) {}, false},
		{"zero workers", func(c *Config) { c.Workers = 0 }, true},
		{"zero queue size", func(c *Config) { c.QueueSize = 0 }, true},
		{"zero poll interval", func(c *Config) { c.PollInterval = 0 }, true},
		{"zero claim batch size", func(c *Config) { c.ClaimBatchSize = 0 }, true},
		{"zero backoff cap", func(c *Config) { c.BackoffCap = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(&config)
			err := config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Dispatcher Tests
// ---------------------------------------------------------------------------

func TestDispatcher_StartStop(t *testing.T) {
	h := setupHarness(t, nil)
	ctx := context.Background()

	require.NoError(t, h.dispatcher.Start(ctx))
	// Start again should be idempotent
	require.NoError(t, h.dispatcher.Start(ctx))

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, h.dispatcher.Stop(stopCtx))
	// Stop again should be idempotent
	require.NoError(t, h.dispatcher.Stop(stopCtx))
}

func TestDispatcher_CompletesJob(t *testing.T) {
	h := setupHarness(t, nil)
	job := h.newPendingJob(t, sync.ActionCodePublish)

	runDispatcher(t, h.dispatcher)
	h.dispatcher.Notify()

	ctx := context.Background()
	waitUntil(t, 2*time.Second, func() bool {
		got, err := h.jobs.FindByID(ctx, h.tenantID, job.ID)
		return err == nil && got.Status == sync.JobStatusCompleted
	})

	got, err := h.jobs.FindByID(ctx, h.tenantID, job.ID)
	require.NoError(t, err)
	assert.Equal(t, sync.JobStatusCompleted, got.Status)
	assert.JSONEq(t, `{"ok":true}`, string(got.ResultData))
	assert.NotNil(t, got.StartedAt)
	assert.NotNil(t, got.CompletedAt)
	assert.Equal(t, int32(1), atomic.LoadInt32(&h.adapter.execCount))

	// One successful task recorded for the attempt
	attempts, err := h.tasks.FindByJob(ctx, h.tenantID, job.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, sync.TaskStatusSuccess, attempts[0].Status)
	assert.Equal(t, sync.TaskTypeDirectHTTP, attempts[0].TaskType)

	stats := h.dispatcher.Stats()
	assert.Equal(t, uint64(1), stats.Claimed)
	assert.Equal(t, uint64(1), stats.Completed)
}

func TestDispatcher_RetriesTransientFailure(t *testing.T) {
	h := setupHarness(t, nil)

	var calls int32
	h.adapter.executeFunc = func(ctx context.Context, req marketplace.Request) (*marketplace.Response, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return nil, marketplace.ErrAdapterUnavailable
		}
		return &marketplace.Response{StatusCode: 200, Body: []byte(`{"ok":true}`)}, nil
	}

	job := h.newPendingJob(t, sync.ActionCodePublish)
	runDispatcher(t, h.dispatcher)
	h.dispatcher.Notify()

	ctx := context.Background()
	waitUntil(t, 5*time.Second, func() bool {
		got, err := h.jobs.FindByID(ctx, h.tenantID, job.ID)
		return err == nil && got.Status == sync.JobStatusCompleted
	})

	got, err := h.jobs.FindByID(ctx, h.tenantID, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.RetryCount)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))

	// Each attempt left its own task behind
	attempts, err := h.tasks.FindByJob(ctx, h.tenantID, job.ID)
	require.NoError(t, err)
	assert.Len(t, attempts, 3)
}

func TestDispatcher_ExhaustsRetryBudget(t *testing.T) {
	h := setupHarness(t, nil)
	h.adapter.executeFunc = func(ctx context.Context, req marketplace.Request) (*marketplace.Response, error) {
		return nil, marketplace.ErrAdapterUnavailable
	}

	job := h.newPendingJob(t, sync.ActionCodePublish)
	runDispatcher(t, h.dispatcher)
	h.dispatcher.Notify()

	ctx := context.Background()
	waitUntil(t, 5*time.Second, func() bool {
		got, err := h.jobs.FindByID(ctx, h.tenantID, job.ID)
		return err == nil && got.Status == sync.JobStatusFailed
	})

	got, err := h.jobs.FindByID(ctx, h.tenantID, job.ID)
	require.NoError(t, err)
	assert.Equal(t, got.MaxRetries, got.RetryCount)
	assert.NotEmpty(t, got.ErrorMessage)
	// Initial attempt plus one per retry
	assert.Equal(t, int32(got.MaxRetries+1), atomic.LoadInt32(&h.adapter.execCount))
}

func TestDispatcher_PermanentFailureFailsFast(t *testing.T) {
	builder := PayloadBuilderFunc(func(ctx context.Context, job *sync.Job) ([]byte, error) {
		return nil, catalog.ErrNoCategoryMapping
	})
	h := setupHarness(t, builder)

	job := h.newPendingJob(t, sync.ActionCodePublish)
	runDispatcher(t, h.dispatcher)
	h.dispatcher.Notify()

	ctx := context.Background()
	waitUntil(t, 2*time.Second, func() bool {
		got, err := h.jobs.FindByID(ctx, h.tenantID, job.ID)
		return err == nil && got.Status == sync.JobStatusFailed
	})

	got, err := h.jobs.FindByID(ctx, h.tenantID, job.ID)
	require.NoError(t, err)
	assert.Equal(t, got.MaxRetries, got.RetryCount, "budget burned, no retries")
	assert.Equal(t, int32(0), atomic.LoadInt32(&h.adapter.execCount), "marketplace never called")
}

func TestDispatcher_IdempotencyShortCircuit(t *testing.T) {
	h := setupHarness(t, nil)

	job := h.newPendingJob(t, sync.ActionCodePublish)
	job.IdempotencyKey = sync.NewIdempotencyKey(uuid.New())
	ctx := context.Background()
	require.NoError(t, h.jobs.Save(ctx, job))

	// Key already reserved by an earlier successful attempt
	fresh, err := h.store.MarkProcessed(ctx, job.IdempotencyKey, time.Minute)
	require.NoError(t, err)
	require.True(t, fresh)

	runDispatcher(t, h.dispatcher)
	h.dispatcher.Notify()

	waitUntil(t, 2*time.Second, func() bool {
		got, err := h.jobs.FindByID(ctx, h.tenantID, job.ID)
		return err == nil && got.Status == sync.JobStatusCompleted
	})

	assert.Equal(t, int32(0), atomic.LoadInt32(&h.adapter.execCount), "no second marketplace call")
	stats := h.dispatcher.Stats()
	assert.Equal(t, uint64(1), stats.Deduplicated)
}

func TestDispatcher_ReservesKeyAfterSuccess(t *testing.T) {
	h := setupHarness(t, nil)

	job := h.newPendingJob(t, sync.ActionCodePublish)
	job.IdempotencyKey = sync.NewIdempotencyKey(uuid.New())
	ctx := context.Background()
	require.NoError(t, h.jobs.Save(ctx, job))

	runDispatcher(t, h.dispatcher)
	h.dispatcher.Notify()

	waitUntil(t, 2*time.Second, func() bool {
		got, err := h.jobs.FindByID(ctx, h.tenantID, job.ID)
		return err == nil && got.Status == sync.JobStatusCompleted
	})

	seen, err := h.store.IsProcessed(ctx, job.IdempotencyKey)
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestDispatcher_BatchRollup(t *testing.T) {
	h := setupHarness(t, nil)
	ctx := context.Background()

	action, err := h.actions.FindByCode(ctx, sync.ActionCodePublish)
	require.NoError(t, err)

	batch, err := sync.NewBatch(h.tenantID, marketplace.CodeVinted, action, 2, uuid.New())
	require.NoError(t, err)
	require.NoError(t, h.batches.Save(ctx, batch))

	goodProduct := uuid.New()
	badProduct := uuid.New()
	h.adapter.executeFunc = func(ctx context.Context, req marketplace.Request) (*marketplace.Response, error) {
		if req.ProductID != nil && *req.ProductID == badProduct {
			return nil, marketplace.ErrAdapterRejected
		}
		return &marketplace.Response{StatusCode: 200, Body: []byte(`{}`)}, nil
	}

	for _, productID := range []uuid.UUID{goodProduct, badProduct} {
		pid := productID
		job, err := sync.NewJob(h.tenantID, action, marketplace.CodeVinted, &pid)
		require.NoError(t, err)
		job.BatchID = &batch.ID
		require.NoError(t, h.jobs.Save(ctx, job))
	}

	runDispatcher(t, h.dispatcher)
	h.dispatcher.Notify()

	waitUntil(t, 5*time.Second, func() bool {
		got, err := h.batches.FindByID(ctx, h.tenantID, batch.ID)
		return err == nil && got.IsTerminal()
	})

	got, err := h.batches.FindByID(ctx, h.tenantID, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, sync.BatchStatusPartiallyFailed, got.Status)
	assert.Equal(t, 1, got.CompletedCount)
	assert.Equal(t, 1, got.FailedCount)
}

func TestDispatcher_ThrottledByDispatchClock(t *testing.T) {
	h := setupHarness(t, nil)

	// Pre-book the slot with a wide window so every attempt is deferred.
	clock := cache.NewInMemoryDispatchClock()
	ctx := context.Background()
	ok, err := clock.Reserve(ctx, marketplace.CodeVinted.String(), sync.ActionCodePublish.String(), time.Hour)
	require.NoError(t, err)
	require.True(t, ok)
	h.dispatcher.clock = clock

	job := h.newPendingJob(t, sync.ActionCodePublish)
	runDispatcher(t, h.dispatcher)
	h.dispatcher.Notify()

	waitUntil(t, 2*time.Second, func() bool {
		return h.dispatcher.Stats().Throttled > 0
	})

	got, err := h.jobs.FindByID(ctx, h.tenantID, job.ID)
	require.NoError(t, err)
	assert.Equal(t, sync.JobStatusPending, got.Status, "job stays queued until the slot opens")
	assert.Equal(t, int32(0), atomic.LoadInt32(&h.adapter.execCount))
}

func TestDispatcher_PriorityOrdering(t *testing.T) {
	h := setupHarness(t, nil)
	ctx := context.Background()

	var mu stdsync.Mutex
	var order []sync.ActionCode
	h.adapter.executeFunc = func(ctx context.Context, req marketplace.Request) (*marketplace.Response, error) {
		mu.Lock()
		order = append(order, sync.ActionCode(req.Action))
		mu.Unlock()
		return &marketplace.Response{StatusCode: 200, Body: []byte(`{}`)}, nil
	}

	// Lower priority submitted first; the scan must still pick the more
	// urgent action first.
	low := h.newPendingJob(t, sync.ActionCodeUpdate)
	high := h.newPendingJob(t, sync.ActionCodeDelete)

	// Single worker so execution order mirrors claim order.
	config := DefaultConfig()
	config.Workers = 1
	config.PollInterval = 10 * time.Millisecond
	executors, err := NewExecutorSet(NewAdapterExecutor(&mockRegistry{adapters: map[marketplace.Code]marketplace.Adapter{
		marketplace.CodeVinted: h.adapter,
	}}))
	require.NoError(t, err)
	d, err := NewDispatcher(config, h.jobs, h.tasks, h.batches, h.actions, executors, nil, nil, nil, newTestLogger())
	require.NoError(t, err)

	runDispatcher(t, d)
	d.Notify()

	waitUntil(t, 2*time.Second, func() bool {
		a, errA := h.jobs.FindByID(ctx, h.tenantID, low.ID)
		b, errB := h.jobs.FindByID(ctx, h.tenantID, high.ID)
		return errA == nil && errB == nil && a.IsTerminal() && b.IsTerminal()
	})

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 2)
	assert.Equal(t, sync.ActionCodeDelete, order[0], "high priority dispatched first")
	assert.Equal(t, sync.ActionCodeUpdate, order[1])
}

func TestClassifyFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want sync.FailureKind
	}{
		{"missing category mapping", catalog.ErrNoCategoryMapping, sync.FailureMapping},
		{"invalid mapping", catalog.ErrInvalidMapping, sync.FailureMapping},
		{"invalid product", marketplace.ErrProductInvalid, sync.FailureValidation},
		{"rejected", marketplace.ErrAdapterRejected, sync.FailureValidation},
		{"unavailable", marketplace.ErrAdapterUnavailable, sync.FailureAdapter},
		{"rate limited", marketplace.ErrAdapterRateLimited, sync.FailureAdapter},
		{"auth failed", marketplace.ErrAdapterAuthFailed, sync.FailureAdapter},
		{"missing credentials", marketplace.ErrCredentialsNotFound, sync.FailureAdapter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyFailure(tt.err))
		})
	}

	// For adapter errors the failure kind's permanence mirrors Retryable,
	// so the domain predicate and the dispatcher agree on what retries.
	adapterErrs := []error{
		marketplace.ErrAdapterUnavailable,
		marketplace.ErrAdapterRateLimited,
		marketplace.ErrAdapterAuthFailed,
		marketplace.ErrAdapterRejected,
		marketplace.ErrCredentialsNotFound,
	}
	for _, err := range adapterErrs {
		assert.Equal(t, !marketplace.Retryable(err), classifyFailure(err).IsPermanent(), err)
	}
}

func TestDispatcher_RetriesAuthFailure(t *testing.T) {
	h := setupHarness(t, nil)

	var calls int32
	h.adapter.executeFunc = func(ctx context.Context, req marketplace.Request) (*marketplace.Response, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return nil, marketplace.ErrAdapterAuthFailed
		}
		return &marketplace.Response{StatusCode: 200, Body: []byte(`{"ok":true}`)}, nil
	}

	job := h.newPendingJob(t, sync.ActionCodePublish)
	runDispatcher(t, h.dispatcher)
	h.dispatcher.Notify()

	ctx := context.Background()
	waitUntil(t, 5*time.Second, func() bool {
		got, err := h.jobs.FindByID(ctx, h.tenantID, job.ID)
		return err == nil && got.Status == sync.JobStatusCompleted
	})

	got, err := h.jobs.FindByID(ctx, h.tenantID, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.RetryCount, "auth failure retried, not failed fast")
}

// ---------------------------------------------------------------------------
// Sweeper Tests
// ---------------------------------------------------------------------------

func TestSweeperConfig_Validate(t *testing.T) {
	valid := DefaultSweeperConfig()
	assert.NoError(t, valid.Validate())

	invalid := SweeperConfig{Interval: 0, BatchSize: 10}
	assert.Error(t, invalid.Validate())

	invalid = SweeperConfig{Interval: time.Second, BatchSize: 0}
	assert.Error(t, invalid.Validate())
}

func TestSweeper_ExpiresOverduePendingJobs(t *testing.T) {
	h := setupHarness(t, nil)
	ctx := context.Background()

	action, err := h.actions.FindByCode(ctx, sync.ActionCodePublish)
	require.NoError(t, err)

	batch, err := sync.NewBatch(h.tenantID, marketplace.CodeVinted, action, 1, uuid.New())
	require.NoError(t, err)
	require.NoError(t, h.batches.Save(ctx, batch))

	productID := uuid.New()
	overdue, err := sync.NewJob(h.tenantID, action, marketplace.CodeVinted, &productID)
	require.NoError(t, err)
	past := time.Now().Add(-time.Minute)
	overdue.ExpiresAt = &past
	overdue.BatchID = &batch.ID
	require.NoError(t, h.jobs.Save(ctx, overdue))

	fresh := h.newPendingJob(t, sync.ActionCodePublish)

	sweeper, err := NewSweeper(DefaultSweeperConfig(), h.jobs, h.batches, newTestLogger())
	require.NoError(t, err)
	sweeper.Sweep(ctx)

	got, err := h.jobs.FindByID(ctx, h.tenantID, overdue.ID)
	require.NoError(t, err)
	assert.Equal(t, sync.JobStatusExpired, got.Status)
	assert.NotNil(t, got.CompletedAt)

	// The expired child counts against the batch as work not done
	gotBatch, err := h.batches.FindByID(ctx, h.tenantID, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, gotBatch.FailedCount)
	assert.Equal(t, sync.BatchStatusFailed, gotBatch.Status)

	// Jobs without a deadline are untouched
	gotFresh, err := h.jobs.FindByID(ctx, h.tenantID, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, sync.JobStatusPending, gotFresh.Status)

	assert.Equal(t, uint64(1), sweeper.Stats().Expired)
}

func TestSweeper_StartStop(t *testing.T) {
	h := setupHarness(t, nil)

	sweeper, err := NewSweeper(DefaultSweeperConfig(), h.jobs, h.batches, newTestLogger())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, sweeper.Start(ctx))
	require.NoError(t, sweeper.Start(ctx))

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, sweeper.Stop(stopCtx))
	require.NoError(t, sweeper.Stop(stopCtx))
}
