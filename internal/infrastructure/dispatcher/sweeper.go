package dispatcher

import (
	"context"
	"errors"
	stdsync "sync"
	"time"

	"go.uber.org/zap"

	"github.com/resell/backend/internal/domain/sync"
)

// SweeperConfig holds expiry sweeper configuration
type SweeperConfig struct {
	// Interval is how often pending jobs are checked against their deadline
	Interval time.Duration
	// BatchSize is the maximum jobs expired per sweep
	BatchSize int
}

// DefaultSweeperConfig returns default sweeper configuration
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Interval:  30 * time.Second,
		BatchSize: 100,
	}
}

// Validate validates the configuration
func (c *SweeperConfig) Validate() error {
	if c.Interval <= 0 {
		return ErrInvalidConfig
	}
	if c.BatchSize <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// Sweeper expires pending jobs whose deadline passed before any worker
// claimed them. Expiry races against claims; the conditional update in
// MarkExpired makes the loser of that race a no-op.
type Sweeper struct {
	config  SweeperConfig
	jobs    sync.JobRepository
	batches sync.BatchRepository
	logger  *zap.Logger

	cancel    context.CancelFunc
	wg        stdsync.WaitGroup
	mu        stdsync.Mutex
	isRunning bool

	stats *statsCollector
}

// NewSweeper creates an expiry sweeper.
func NewSweeper(config SweeperConfig, jobs sync.JobRepository, batches sync.BatchRepository, logger *zap.Logger) (*Sweeper, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Sweeper{
		config:  config,
		jobs:    jobs,
		batches: batches,
		logger:  logger,
		stats:   newStatsCollector(),
	}, nil
}

// Start starts the sweep loop
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.loop(ctx)

	s.logger.Info("Expiry sweeper started", zap.Duration("interval", s.config.Interval))
	return nil
}

// Stop gracefully stops the sweeper
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Expiry sweeper stopped gracefully")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot of cumulative sweep counters.
func (s *Sweeper) Stats() Stats {
	return s.stats.Snapshot()
}

func (s *Sweeper) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep expires every overdue pending job it finds and rolls expired batch
// children into their batches. Exported so tests and operators can trigger
// a pass directly.
func (s *Sweeper) Sweep(ctx context.Context) {
	overdue, err := s.jobs.FindExpiredPending(ctx, time.Now(), s.config.BatchSize)
	if err != nil {
		s.logger.Error("Failed to scan for expired jobs", zap.Error(err))
		return
	}

	for i := range overdue {
		job, err := s.jobs.MarkExpired(ctx, overdue[i].ID)
		if err != nil {
			// Claimed between scan and expiry. The worker owns it now.
			if errors.Is(err, sync.ErrJobNotPending) || errors.Is(err, sync.ErrJobNotFound) {
				continue
			}
			s.logger.Error("Failed to expire job",
				zap.String("job_id", overdue[i].ID.String()),
				zap.Error(err),
			)
			continue
		}

		s.stats.record(func(st *Stats) { st.Expired++ })
		s.logger.Info("Job expired before claim",
			zap.String("job_id", job.ID.String()),
			zap.String("action_code", job.ActionCode.String()),
			zap.String("marketplace", job.Marketplace.String()),
		)

		if job.BatchID != nil {
			if _, err := s.batches.RecordChildOutcome(ctx, *job.BatchID, job.Status); err != nil {
				if errors.Is(err, sync.ErrBatchTerminal) {
					continue
				}
				s.logger.Error("Failed to roll expired job into batch",
					zap.String("job_id", job.ID.String()),
					zap.String("batch_id", job.BatchID.String()),
					zap.Error(err),
				)
			}
		}
	}
}
