package sync

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/resell/backend/internal/domain/shared"
	"github.com/resell/backend/internal/domain/sync"
)

// DispatchNotifier nudges the dispatcher after submissions so fresh jobs do
// not wait out a full poll interval. Satisfied by the dispatcher; a nil
// notifier is a no-op.
type DispatchNotifier interface {
	Notify()
}

// SyncService drives job and batch submission, lifecycle commands and
// status queries.
type SyncService struct {
	jobs     sync.JobRepository
	tasks    sync.TaskRepository
	batches  sync.BatchRepository
	actions  sync.ActionTypeRepository
	notifier DispatchNotifier
	logger   *zap.Logger
}

// NewSyncService creates a new SyncService
func NewSyncService(
	jobs sync.JobRepository,
	tasks sync.TaskRepository,
	batches sync.BatchRepository,
	actions sync.ActionTypeRepository,
	notifier DispatchNotifier,
	logger *zap.Logger,
) *SyncService {
	return &SyncService{
		jobs:     jobs,
		tasks:    tasks,
		batches:  batches,
		actions:  actions,
		notifier: notifier,
		logger:   logger,
	}
}

func (s *SyncService) notify() {
	if s.notifier != nil {
		s.notifier.Notify()
	}
}

// ---------------------------------------------------------------------------
// Submission
// ---------------------------------------------------------------------------

// SubmitJob enqueues a single job. Submitting again with the same
// idempotency key returns the existing job instead of creating a second one.
func (s *SyncService) SubmitJob(ctx context.Context, tenantID uuid.UUID, req SubmitJobRequest) (*SubmitJobResponse, error) {
	action, err := s.actions.FindByCode(ctx, req.ActionCode)
	if err != nil {
		return nil, err
	}

	key := req.IdempotencyKey
	if key == "" && req.ActionCode == sync.ActionCodePublish && req.ProductID != nil {
		key = sync.NewIdempotencyKey(*req.ProductID)
	}

	if key != "" {
		existing, err := s.jobs.FindByIdempotencyKey(ctx, tenantID, key)
		if err == nil {
			resp := ToJobResponse(existing)
			return &SubmitJobResponse{Job: resp, Created: false}, nil
		}
		if !errors.Is(err, sync.ErrJobNotFound) {
			return nil, err
		}
	}

	job, err := sync.NewJob(tenantID, action, req.Marketplace, req.ProductID)
	if err != nil {
		return nil, err
	}
	if req.Priority != nil {
		if *req.Priority < sync.PriorityCritical || *req.Priority > sync.PriorityLow {
			return nil, sync.ErrInvalidPriority
		}
		job.Priority = *req.Priority
	}
	job.IdempotencyKey = key
	job.ExpiresAt = req.ExpiresAt

	if err := s.jobs.Save(ctx, job); err != nil {
		// A concurrent submission with the same key wins the unique index
		// race; surface the job it created.
		if key != "" && errors.Is(err, sync.ErrDuplicateIdempotencyKey) {
			existing, findErr := s.jobs.FindByIdempotencyKey(ctx, tenantID, key)
			if findErr == nil {
				resp := ToJobResponse(existing)
				return &SubmitJobResponse{Job: resp, Created: false}, nil
			}
		}
		return nil, err
	}

	s.logger.Info("Job submitted",
		zap.String("job_id", job.ID.String()),
		zap.String("tenant_id", tenantID.String()),
		zap.String("action_code", job.ActionCode.String()),
		zap.String("marketplace", job.Marketplace.String()),
	)
	s.notify()

	resp := ToJobResponse(job)
	return &SubmitJobResponse{Job: resp, Created: true}, nil
}

// SubmitBatch creates a batch and fans one child job out per product.
func (s *SyncService) SubmitBatch(ctx context.Context, tenantID uuid.UUID, req SubmitBatchRequest) (*BatchResponse, error) {
	action, err := s.actions.FindByCode(ctx, req.ActionCode)
	if err != nil {
		return nil, err
	}
	if !action.IsBatch {
		return nil, sync.ErrInvalidActionConfig
	}

	batch, err := sync.NewBatch(tenantID, req.Marketplace, action, len(req.ProductIDs), req.CreatedBy)
	if err != nil {
		return nil, err
	}
	if err := s.batches.Save(ctx, batch); err != nil {
		return nil, err
	}

	for i := range req.ProductIDs {
		productID := req.ProductIDs[i]
		job, err := sync.NewJob(tenantID, action, req.Marketplace, &productID)
		if err != nil {
			return nil, err
		}
		job.BatchID = &batch.ID
		job.ExpiresAt = req.ExpiresAt
		if req.ActionCode == sync.ActionCodePublish {
			job.IdempotencyKey = sync.NewIdempotencyKey(productID)
		}
		if err := s.jobs.Save(ctx, job); err != nil {
			return nil, err
		}
	}

	s.logger.Info("Batch submitted",
		zap.String("batch_id", batch.BatchID),
		zap.String("tenant_id", tenantID.String()),
		zap.String("action_code", batch.ActionCode.String()),
		zap.Int("total_count", batch.TotalCount),
	)
	s.notify()

	resp := ToBatchResponse(batch)
	return &resp, nil
}

// ---------------------------------------------------------------------------
// Lifecycle commands
// ---------------------------------------------------------------------------

// CancelJob cancels a job. Pending and paused jobs are cancelled in place; a
// running job keeps its current attempt but is not retried afterwards.
func (s *SyncService) CancelJob(ctx context.Context, tenantID, jobID uuid.UUID) (*JobResponse, error) {
	job, err := s.transitionJob(ctx, tenantID, jobID, (*sync.Job).Cancel)
	if err != nil {
		return nil, err
	}
	if job.BatchID != nil {
		if _, err := s.batches.RecordChildOutcome(ctx, *job.BatchID, job.Status); err != nil &&
			!errors.Is(err, sync.ErrBatchTerminal) {
			s.logger.Warn("Failed to roll cancelled job into batch",
				zap.String("job_id", job.ID.String()),
				zap.Error(err),
			)
		}
	}

	resp := ToJobResponse(job)
	return &resp, nil
}

// CancelBatch cancels every still-pending child of a batch. Running children
// finish their current attempt; their outcomes settle the batch as usual.
func (s *SyncService) CancelBatch(ctx context.Context, tenantID uuid.UUID, batchID string) (*BatchResponse, error) {
	batch, err := s.batches.FindByBatchID(ctx, tenantID, batchID)
	if err != nil {
		return nil, err
	}
	if batch.IsTerminal() {
		return nil, sync.ErrBatchTerminal
	}

	cancelled, err := s.jobs.CancelPendingByBatch(ctx, tenantID, batch.ID)
	if err != nil {
		return nil, err
	}
	for range cancelled {
		if _, err := s.batches.RecordChildOutcome(ctx, batch.ID, sync.JobStatusCancelled); err != nil {
			if errors.Is(err, sync.ErrBatchTerminal) {
				break
			}
			return nil, err
		}
	}

	s.logger.Info("Batch cancellation requested",
		zap.String("batch_id", batch.BatchID),
		zap.Int("cancelled_children", len(cancelled)),
	)

	updated, err := s.batches.FindByID(ctx, tenantID, batch.ID)
	if err != nil {
		return nil, err
	}
	resp := ToBatchResponse(updated)
	return &resp, nil
}

// PauseJob moves a pending job aside so the dispatcher skips it.
func (s *SyncService) PauseJob(ctx context.Context, tenantID, jobID uuid.UUID) (*JobResponse, error) {
	job, err := s.transitionJob(ctx, tenantID, jobID, (*sync.Job).Pause)
	if err != nil {
		return nil, err
	}
	resp := ToJobResponse(job)
	return &resp, nil
}

// ResumeJob returns a paused job to the queue.
func (s *SyncService) ResumeJob(ctx context.Context, tenantID, jobID uuid.UUID) (*JobResponse, error) {
	job, err := s.transitionJob(ctx, tenantID, jobID, (*sync.Job).Resume)
	if err != nil {
		return nil, err
	}
	s.notify()
	resp := ToJobResponse(job)
	return &resp, nil
}

// transitionRetries bounds how often a lifecycle command re-reads after
// losing a write race to a dispatcher worker.
const transitionRetries = 3

// transitionJob loads the job, applies the command and persists it guarded
// on the status it loaded. Losing the race to a concurrent writer re-reads
// and re-applies, so a job that settled in the meantime surfaces its
// transition error instead of having the terminal row overwritten.
func (s *SyncService) transitionJob(ctx context.Context, tenantID, jobID uuid.UUID, transition func(*sync.Job) error) (*sync.Job, error) {
	for attempt := 0; attempt < transitionRetries; attempt++ {
		job, err := s.jobs.FindByID(ctx, tenantID, jobID)
		if err != nil {
			return nil, err
		}
		from := job.Status
		if err := transition(job); err != nil {
			return nil, err
		}
		applied, err := s.jobs.TransitionStatus(ctx, job, from)
		if err != nil {
			return nil, err
		}
		if applied {
			return job, nil
		}
	}
	return nil, shared.ErrConcurrencyConflict
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// GetJob retrieves a job by ID
func (s *SyncService) GetJob(ctx context.Context, tenantID, jobID uuid.UUID) (*JobResponse, error) {
	job, err := s.jobs.FindByID(ctx, tenantID, jobID)
	if err != nil {
		return nil, err
	}
	resp := ToJobResponse(job)
	return &resp, nil
}

// ListJobs lists jobs with filtering and pagination
func (s *SyncService) ListJobs(ctx context.Context, tenantID uuid.UUID, req ListJobsRequest) (*JobListResponse, error) {
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 {
		req.PageSize = 20
	}

	jobs, total, err := s.jobs.FindAll(ctx, tenantID, sync.JobFilter{
		BatchID:     req.BatchID,
		Status:      req.Status,
		Marketplace: req.Marketplace,
		ActionCode:  req.ActionCode,
		Page:        req.Page,
		PageSize:    req.PageSize,
	})
	if err != nil {
		return nil, err
	}

	resp := &JobListResponse{
		Jobs:     make([]JobResponse, 0, len(jobs)),
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
	}
	for i := range jobs {
		resp.Jobs = append(resp.Jobs, ToJobResponse(&jobs[i]))
	}
	return resp, nil
}

// GetBatch retrieves a batch by its external identifier
func (s *SyncService) GetBatch(ctx context.Context, tenantID uuid.UUID, batchID string) (*BatchResponse, error) {
	batch, err := s.batches.FindByBatchID(ctx, tenantID, batchID)
	if err != nil {
		return nil, err
	}
	resp := ToBatchResponse(batch)
	return &resp, nil
}

// ListJobTasks lists the execution attempts of a job, newest first
func (s *SyncService) ListJobTasks(ctx context.Context, tenantID, jobID uuid.UUID) ([]TaskResponse, error) {
	if _, err := s.jobs.FindByID(ctx, tenantID, jobID); err != nil {
		return nil, err
	}
	tasks, err := s.tasks.FindByJob(ctx, tenantID, jobID)
	if err != nil {
		return nil, err
	}
	resp := make([]TaskResponse, 0, len(tasks))
	for i := range tasks {
		resp = append(resp, ToTaskResponse(&tasks[i]))
	}
	return resp, nil
}

// ListActionTypes returns the action catalog
func (s *SyncService) ListActionTypes(ctx context.Context) ([]sync.ActionType, error) {
	return s.actions.FindAll(ctx)
}
