package dispatcher

import (
	"context"
	"errors"
	stdsync "sync"
	"time"

	"go.uber.org/zap"

	"github.com/resell/backend/internal/domain/catalog"
	"github.com/resell/backend/internal/domain/marketplace"
	"github.com/resell/backend/internal/domain/shared"
	"github.com/resell/backend/internal/domain/sync"
	"github.com/resell/backend/internal/infrastructure/cache"
)

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

// Config holds dispatcher configuration
type Config struct {
	// Workers is the number of concurrent dispatch workers
	Workers int
	// QueueSize is the capacity of the in-flight candidate queue
	QueueSize int
	// PollInterval is how often the queue is scanned for claimable jobs
	PollInterval time.Duration
	// ClaimBatchSize is the maximum candidates fetched per scan
	ClaimBatchSize int
	// BackoffCap bounds the exponential retry delay
	BackoffCap time.Duration
	// IdempotencyTTL is how long completed idempotency keys stay reserved
	IdempotencyTTL time.Duration
}

// DefaultConfig returns default dispatcher configuration
func DefaultConfig() Config {
	return Config{
		Workers:        5,
		QueueSize:      100,
		PollInterval:   time.Second,
		ClaimBatchSize: 50,
		BackoffCap:     5 * time.Minute,
		IdempotencyTTL: 24 * time.Hour,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Workers <= 0 {
		return ErrInvalidConfig
	}
	if c.QueueSize <= 0 {
		return ErrInvalidConfig
	}
	if c.PollInterval <= 0 {
		return ErrInvalidConfig
	}
	if c.ClaimBatchSize <= 0 {
		return ErrInvalidConfig
	}
	if c.BackoffCap <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// ---------------------------------------------------------------------------
// Dispatcher
// ---------------------------------------------------------------------------

// Dispatcher drives pending jobs through execution. It scans the queue in
// priority order, claims jobs with a conditional update so concurrent
// instances never double-dispatch, paces calls per marketplace and action,
// and applies the retry and batch rollup rules after every attempt.
type Dispatcher struct {
	config Config

	jobs    sync.JobRepository
	tasks   sync.TaskRepository
	batches sync.BatchRepository
	actions sync.ActionTypeRepository

	executors   *ExecutorSet
	payloads    PayloadBuilder
	clock       cache.DispatchClock
	idempotency shared.IdempotencyStore
	logger      *zap.Logger

	// catalog is loaded once at Start; action types change rarely and only
	// through migrations
	catalog map[sync.ActionCode]*sync.ActionType

	candidates chan sync.ClaimCandidate
	wake       chan struct{}
	cancel     context.CancelFunc
	wg         stdsync.WaitGroup
	mu         stdsync.Mutex
	isRunning  bool

	stats *statsCollector
}

// NewDispatcher creates a dispatcher. The idempotency store may be nil when
// deduplication is handled upstream only.
func NewDispatcher(
	config Config,
	jobs sync.JobRepository,
	tasks sync.TaskRepository,
	batches sync.BatchRepository,
	actions sync.ActionTypeRepository,
	executors *ExecutorSet,
	payloads PayloadBuilder,
	clock cache.DispatchClock,
	idempotency shared.IdempotencyStore,
	logger *zap.Logger,
) (*Dispatcher, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if payloads == nil {
		payloads = NopPayloadBuilder()
	}

	return &Dispatcher{
		config:      config,
		jobs:        jobs,
		tasks:       tasks,
		batches:     batches,
		actions:     actions,
		executors:   executors,
		payloads:    payloads,
		clock:       clock,
		idempotency: idempotency,
		logger:      logger,
		candidates:  make(chan sync.ClaimCandidate, config.QueueSize),
		wake:        make(chan struct{}, 1),
		stats:       newStatsCollector(),
	}, nil
}

// Start loads the action catalog and starts the poll loop and worker pool.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.isRunning {
		d.mu.Unlock()
		return nil
	}
	d.isRunning = true
	d.mu.Unlock()

	entries, err := d.actions.FindAll(ctx)
	if err != nil {
		d.mu.Lock()
		d.isRunning = false
		d.mu.Unlock()
		return err
	}
	d.catalog = make(map[sync.ActionCode]*sync.ActionType, len(entries))
	for i := range entries {
		entry := entries[i]
		d.catalog[entry.Code] = &entry
	}

	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	for i := 0; i < d.config.Workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx, i)
	}

	d.wg.Add(1)
	go d.pollLoop(ctx)

	d.logger.Info("Dispatcher started",
		zap.Int("workers", d.config.Workers),
		zap.Duration("poll_interval", d.config.PollInterval),
		zap.Int("action_types", len(d.catalog)),
	)

	return nil
}

// Stop gracefully stops the dispatcher
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.isRunning {
		d.mu.Unlock()
		return nil
	}
	d.isRunning = false
	d.mu.Unlock()

	if d.cancel != nil {
		d.cancel()
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("Dispatcher stopped gracefully")
		return nil
	case <-ctx.Done():
		d.logger.Warn("Dispatcher stop timed out")
		return ctx.Err()
	}
}

// Notify nudges the poll loop to scan immediately. Called after job
// submission so fresh work does not wait out the poll interval.
func (d *Dispatcher) Notify() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Stats returns a snapshot of cumulative dispatch counters.
func (d *Dispatcher) Stats() Stats {
	return d.stats.Snapshot()
}

// pollLoop scans for claimable jobs on a ticker and on demand.
func (d *Dispatcher) pollLoop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.scan(ctx)
		case <-d.wake:
			d.scan(ctx)
		}
	}
}

// scan fetches due candidates and feeds the worker queue. Candidates that
// do not fit are dropped; the next scan picks them up again.
func (d *Dispatcher) scan(ctx context.Context) {
	candidates, err := d.jobs.FindClaimCandidates(ctx, time.Now(), d.config.ClaimBatchSize)
	if err != nil {
		d.logger.Error("Failed to scan for claimable jobs", zap.Error(err))
		return
	}

	for _, cand := range candidates {
		select {
		case d.candidates <- cand:
		case <-ctx.Done():
			return
		default:
			return
		}
	}
}

// worker consumes candidates from the queue
func (d *Dispatcher) worker(ctx context.Context, workerID int) {
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case cand := <-d.candidates:
			d.dispatch(ctx, cand, workerID)
		}
	}
}

// ---------------------------------------------------------------------------
// Dispatch pipeline
// ---------------------------------------------------------------------------

// dispatch runs one candidate through pacing, claim, execution and outcome
// accounting.
func (d *Dispatcher) dispatch(ctx context.Context, cand sync.ClaimCandidate, workerID int) {
	action, ok := d.catalog[cand.ActionCode]
	if !ok {
		d.logger.Error("Claim candidate references unknown action",
			zap.String("job_id", cand.JobID.String()),
			zap.String("action_code", cand.ActionCode.String()),
		)
		return
	}

	// Pacing first: keep the job pending rather than claim it and sit on
	// the slot.
	if d.clock != nil {
		ok, err := d.clock.Reserve(ctx, cand.Marketplace.String(), cand.ActionCode.String(), action.RateLimit())
		if err != nil {
			d.logger.Warn("Dispatch clock unavailable, proceeding unpaced",
				zap.String("job_id", cand.JobID.String()),
				zap.Error(err),
			)
		} else if !ok {
			d.stats.record(func(s *Stats) { s.Throttled++ })
			return
		}
	}

	job, err := d.jobs.Claim(ctx, cand.JobID, time.Now())
	if err != nil {
		// Lost the race or the job expired underneath us. Both are routine.
		if errors.Is(err, sync.ErrJobAlreadyClaimed) || errors.Is(err, sync.ErrJobNotFound) {
			d.stats.record(func(s *Stats) { s.LostClaims++ })
			return
		}
		d.logger.Error("Failed to claim job",
			zap.String("job_id", cand.JobID.String()),
			zap.Error(err),
		)
		return
	}
	d.stats.record(func(s *Stats) { s.Claimed++ })

	if job.BatchID != nil {
		if err := d.batches.MarkStarted(ctx, *job.BatchID); err != nil {
			d.logger.Warn("Failed to mark batch started",
				zap.String("batch_id", job.BatchID.String()),
				zap.Error(err),
			)
		}
	}

	d.logger.Info("Dispatching job",
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("tenant_id", job.TenantID.String()),
		zap.String("action_code", job.ActionCode.String()),
		zap.String("marketplace", job.Marketplace.String()),
		zap.Int("retry_count", job.RetryCount),
	)

	// A key already reserved means a previous attempt succeeded after the
	// adapter call but before its bookkeeping landed. Complete without a
	// second marketplace call.
	if job.IdempotencyKey != "" && d.idempotency != nil {
		seen, err := d.idempotency.IsProcessed(ctx, job.IdempotencyKey)
		if err != nil {
			d.logger.Warn("Idempotency store unavailable, proceeding without dedup",
				zap.String("job_id", job.ID.String()),
				zap.Error(err),
			)
		} else if seen {
			d.completeWithoutCall(ctx, job)
			return
		}
	}

	payload, err := d.payloads.Build(ctx, job)
	if err != nil {
		d.failJob(ctx, job, action, classifyFailure(err), err)
		return
	}

	task, err := sync.NewTask(job.TenantID, &job.ID, job.ProductID, sync.TaskTypeDirectHTTP, payload, 0)
	if err != nil {
		d.failJob(ctx, job, action, sync.FailureValidation, err)
		return
	}
	if err := task.Start(); err != nil {
		d.logger.Error("Failed to start task", zap.String("task_id", task.ID.String()), zap.Error(err))
		return
	}
	if err := d.tasks.Save(ctx, task); err != nil {
		d.logger.Error("Failed to persist task",
			zap.String("task_id", task.ID.String()),
			zap.Error(err),
		)
	}

	executor, err := d.executors.For(task.TaskType)
	if err != nil {
		d.finishTask(ctx, task, sync.TaskStatusFailed, err.Error())
		d.failJob(ctx, job, action, sync.FailureAdapter, err)
		return
	}

	execCtx, cancel := context.WithTimeout(ctx, action.Timeout())
	result, execErr := executor.Execute(execCtx, job, task)
	cancel()

	if execErr != nil {
		if errors.Is(execErr, context.DeadlineExceeded) {
			d.finishTask(ctx, task, sync.TaskStatusTimeout, execErr.Error())
			d.failJob(ctx, job, action, sync.FailureTimeout, execErr)
			return
		}
		d.finishTask(ctx, task, sync.TaskStatusFailed, execErr.Error())
		d.failJob(ctx, job, action, classifyFailure(execErr), execErr)
		return
	}

	if err := task.Succeed(result); err == nil {
		if err := d.tasks.Save(ctx, task); err != nil {
			d.logger.Error("Failed to persist task result",
				zap.String("task_id", task.ID.String()),
				zap.Error(err),
			)
		}
	}

	if err := job.Complete(result); err != nil {
		d.logger.Error("Failed to complete job", zap.String("job_id", job.ID.String()), zap.Error(err))
		return
	}
	finished, err := d.jobs.FinishAttempt(ctx, job)
	if err != nil {
		d.logger.Error("Failed to persist completed job",
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
		return
	}
	if !finished {
		// Cancelled while the adapter call was in flight. The cancelling
		// side already settled the row and the batch.
		d.logger.Info("Job cancelled during execution, result dropped",
			zap.String("job_id", job.ID.String()),
		)
		return
	}

	if job.IdempotencyKey != "" && d.idempotency != nil {
		if _, err := d.idempotency.MarkProcessed(ctx, job.IdempotencyKey, d.config.IdempotencyTTL); err != nil {
			d.logger.Warn("Failed to reserve idempotency key",
				zap.String("job_id", job.ID.String()),
				zap.Error(err),
			)
		}
	}

	d.stats.record(func(s *Stats) { s.Completed++ })
	d.rollup(ctx, job)

	d.logger.Info("Job completed",
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("action_code", job.ActionCode.String()),
		zap.String("marketplace", job.Marketplace.String()),
	)
}

// completeWithoutCall finishes a job whose idempotency key was already
// reserved by a successful earlier attempt.
func (d *Dispatcher) completeWithoutCall(ctx context.Context, job *sync.Job) {
	if err := job.Complete(nil); err != nil {
		d.logger.Error("Failed to complete deduplicated job",
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
		return
	}
	finished, err := d.jobs.FinishAttempt(ctx, job)
	if err != nil {
		d.logger.Error("Failed to persist deduplicated job",
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
		return
	}
	if !finished {
		return
	}
	d.stats.record(func(s *Stats) { s.Deduplicated++ })
	d.rollup(ctx, job)

	d.logger.Info("Job deduplicated by idempotency key",
		zap.String("job_id", job.ID.String()),
		zap.String("idempotency_key", job.IdempotencyKey),
	)
}

// failJob applies the failure to the job, schedules the retry backoff when
// the job returns to pending, and rolls terminal outcomes into the batch.
// The backoff is stamped before the write so it lands atomically with the
// status flip; a concurrent scan never re-claims the job early.
func (d *Dispatcher) failJob(ctx context.Context, job *sync.Job, action *sync.ActionType, kind sync.FailureKind, cause error) {
	retry, err := job.Fail(kind, cause.Error())
	if err != nil {
		d.logger.Error("Failed to record job failure",
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
		return
	}
	var delay time.Duration
	if retry {
		delay = job.Backoff(action.RateLimit(), d.config.BackoffCap)
		notBefore := time.Now().Add(delay)
		job.RetryNotBefore = &notBefore
	}
	finished, err := d.jobs.FinishAttempt(ctx, job)
	if err != nil {
		d.logger.Error("Failed to persist failed job",
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
		return
	}
	if !finished {
		// Cancellation observed; the job is not retried.
		d.logger.Info("Job cancelled during execution, retry dropped",
			zap.String("job_id", job.ID.String()),
		)
		return
	}

	if retry {
		d.stats.record(func(s *Stats) { s.Retried++ })
		d.logger.Info("Job scheduled for retry",
			zap.String("job_id", job.ID.String()),
			zap.String("failure_kind", kind.String()),
			zap.Int("retry_count", job.RetryCount),
			zap.Int("max_retries", job.MaxRetries),
			zap.Duration("backoff", delay),
		)
		return
	}

	d.stats.record(func(s *Stats) { s.Failed++ })
	d.rollup(ctx, job)

	d.logger.Warn("Job failed",
		zap.String("job_id", job.ID.String()),
		zap.String("failure_kind", kind.String()),
		zap.String("error", job.ErrorMessage),
	)
}

// finishTask records a terminal task outcome.
func (d *Dispatcher) finishTask(ctx context.Context, task *sync.Task, status sync.TaskStatus, message string) {
	var err error
	switch status {
	case sync.TaskStatusTimeout:
		err = task.Timeout(message)
	default:
		err = task.Fail(message)
	}
	if err != nil {
		return
	}
	if err := d.tasks.Save(ctx, task); err != nil {
		d.logger.Error("Failed to persist task outcome",
			zap.String("task_id", task.ID.String()),
			zap.Error(err),
		)
	}
}

// rollup folds a terminal job into its owning batch, if any.
func (d *Dispatcher) rollup(ctx context.Context, job *sync.Job) {
	if job.BatchID == nil || !job.IsTerminal() {
		return
	}
	if _, err := d.batches.RecordChildOutcome(ctx, *job.BatchID, job.Status); err != nil {
		if errors.Is(err, sync.ErrBatchTerminal) {
			return
		}
		d.logger.Error("Failed to roll job outcome into batch",
			zap.String("job_id", job.ID.String()),
			zap.String("batch_id", job.BatchID.String()),
			zap.Error(err),
		)
	}
}

// classifyFailure maps an execution error to a failure kind. Category
// mapping gaps and bad product data are permanent. Adapter errors take
// their transience from marketplace.Retryable: a final verdict burns the
// retry budget, anything transient keeps the adapter_error kind and backs
// off.
func classifyFailure(err error) sync.FailureKind {
	switch {
	case errors.Is(err, catalog.ErrNoCategoryMapping), errors.Is(err, catalog.ErrInvalidMapping):
		return sync.FailureMapping
	case errors.Is(err, marketplace.ErrProductInvalid):
		return sync.FailureValidation
	case marketplace.Retryable(err):
		return sync.FailureAdapter
	case errors.Is(err, marketplace.ErrAdapterRejected):
		return sync.FailureValidation
	default:
		return sync.FailureAdapter
	}
}
