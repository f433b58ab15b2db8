package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/resell/backend/internal/domain/sync"
	"github.com/resell/backend/internal/infrastructure/persistence/models"
)

// GormJobRepository implements sync.JobRepository using GORM.
type GormJobRepository struct {
	db *gorm.DB
}

// NewGormJobRepository creates a new GormJobRepository
func NewGormJobRepository(db *gorm.DB) *GormJobRepository {
	return &GormJobRepository{db: db}
}

// Save creates or updates a job. A unique index violation on the tenant's
// idempotency key surfaces as ErrDuplicateIdempotencyKey so submission can
// return the job that won the race.
func (r *GormJobRepository) Save(ctx context.Context, job *sync.Job) error {
	var model models.JobModel
	model.FromDomain(job)
	if err := r.db.WithContext(ctx).Save(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return sync.ErrDuplicateIdempotencyKey
		}
		return err
	}
	return nil
}

// FindByID finds a job by ID within a tenant
func (r *GormJobRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*sync.Job, error) {
	var model models.JobModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ? AND tenant_id = ?", id, tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sync.ErrJobNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIdempotencyKey finds a job carrying the given idempotency key
func (r *GormJobRepository) FindByIdempotencyKey(ctx context.Context, tenantID uuid.UUID, key string) (*sync.Job, error) {
	var model models.JobModel
	if err := r.db.WithContext(ctx).
		First(&model, "tenant_id = ? AND idempotency_key = ?", tenantID, key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sync.ErrJobNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll lists jobs for a tenant with optional filters
func (r *GormJobRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter sync.JobFilter) ([]sync.Job, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.JobModel{}).Where("tenant_id = ?", tenantID)

	if filter.BatchID != nil {
		query = query.Where("batch_id = ?", *filter.BatchID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Marketplace != nil {
		query = query.Where("marketplace = ?", *filter.Marketplace)
	}
	if filter.ActionCode != nil {
		query = query.Where("action_code = ?", *filter.ActionCode)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	var jobModels []models.JobModel
	if err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&jobModels).Error; err != nil {
		return nil, 0, err
	}

	jobs := make([]sync.Job, len(jobModels))
	for i, model := range jobModels {
		jobs[i] = *model.ToDomain()
	}
	return jobs, total, nil
}

// FindClaimCandidates returns pending, unexpired jobs due for dispatch,
// ordered by priority ascending then creation time ascending.
func (r *GormJobRepository) FindClaimCandidates(ctx context.Context, now time.Time, limit int) ([]sync.ClaimCandidate, error) {
	var jobModels []models.JobModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", sync.JobStatusPending).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Where("retry_not_before IS NULL OR retry_not_before <= ?", now).
		Order("priority ASC, created_at ASC").
		Limit(limit).
		Find(&jobModels).Error; err != nil {
		return nil, err
	}

	candidates := make([]sync.ClaimCandidate, len(jobModels))
	for i, model := range jobModels {
		candidates[i] = sync.ClaimCandidate{
			JobID:       model.ID,
			ActionCode:  model.ActionCode,
			Marketplace: model.Marketplace,
			Priority:    model.Priority,
		}
	}
	return candidates, nil
}

// Claim atomically transitions a job from pending to running. The
// conditional UPDATE is the compare-and-swap that guarantees exactly one
// worker wins; losers observe zero affected rows.
func (r *GormJobRepository) Claim(ctx context.Context, jobID uuid.UUID, now time.Time) (*sync.Job, error) {
	result := r.db.WithContext(ctx).
		Model(&models.JobModel{}).
		Where("id = ? AND status = ?", jobID, sync.JobStatusPending).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Updates(map[string]any{
			"status":     sync.JobStatusRunning,
			"started_at": now,
			"updated_at": now,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, sync.ErrJobAlreadyClaimed
	}

	var model models.JobModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", jobID).Error; err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// MarkExpired atomically transitions a pending job past its deadline to
// expired
func (r *GormJobRepository) MarkExpired(ctx context.Context, jobID uuid.UUID) (*sync.Job, error) {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&models.JobModel{}).
		Where("id = ? AND status = ?", jobID, sync.JobStatusPending).
		Updates(map[string]any{
			"status":       sync.JobStatusExpired,
			"completed_at": now,
			"updated_at":   now,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, sync.ErrJobNotPending
	}

	var model models.JobModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", jobID).Error; err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindExpiredPending returns pending jobs whose expires_at has passed
func (r *GormJobRepository) FindExpiredPending(ctx context.Context, now time.Time, limit int) ([]sync.Job, error) {
	var jobModels []models.JobModel
	if err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?", sync.JobStatusPending, now).
		Limit(limit).
		Find(&jobModels).Error; err != nil {
		return nil, err
	}

	jobs := make([]sync.Job, len(jobModels))
	for i, model := range jobModels {
		jobs[i] = *model.ToDomain()
	}
	return jobs, nil
}

// CancelPendingByBatch cancels every still-pending or paused job of a batch.
// Running jobs are left to finish their current task.
func (r *GormJobRepository) CancelPendingByBatch(ctx context.Context, tenantID, batchID uuid.UUID) ([]sync.Job, error) {
	var cancelled []sync.Job
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var jobModels []models.JobModel
		if err := tx.
			Where("tenant_id = ? AND batch_id = ? AND status IN ?",
				tenantID, batchID, []sync.JobStatus{sync.JobStatusPending, sync.JobStatusPaused}).
			Find(&jobModels).Error; err != nil {
			return err
		}
		if len(jobModels) == 0 {
			return nil
		}

		now := time.Now()
		ids := make([]uuid.UUID, len(jobModels))
		for i, model := range jobModels {
			ids[i] = model.ID
		}

		result := tx.Model(&models.JobModel{}).
			Where("id IN ? AND status IN ?", ids, []sync.JobStatus{sync.JobStatusPending, sync.JobStatusPaused}).
			Updates(map[string]any{
				"status":       sync.JobStatusCancelled,
				"completed_at": now,
				"updated_at":   now,
			})
		if result.Error != nil {
			return result.Error
		}

		cancelled = make([]sync.Job, 0, len(jobModels))
		for _, model := range jobModels {
			job := model.ToDomain()
			job.Status = sync.JobStatusCancelled
			job.CompletedAt = &now
			job.UpdatedAt = now
			cancelled = append(cancelled, *job)
		}
		return nil
	})
	return cancelled, err
}

// FinishAttempt persists the outcome of a running attempt with a conditional
// UPDATE guarded on the stored row still being running. The retry backoff
// lands in the same write as the status flip, so a concurrent scan never
// sees a retrying job without its schedule. A cancellation that landed while
// the worker was executing wins; the worker observes false and drops the
// outcome.
func (r *GormJobRepository) FinishAttempt(ctx context.Context, job *sync.Job) (bool, error) {
	var model models.JobModel
	model.FromDomain(job)
	result := r.db.WithContext(ctx).
		Model(&models.JobModel{}).
		Where("id = ? AND status = ?", job.ID, sync.JobStatusRunning).
		Updates(map[string]any{
			"status":           model.Status,
			"retry_count":      model.RetryCount,
			"error_message":    model.ErrorMessage,
			"result_data":      model.ResultData,
			"retry_not_before": model.RetryNotBefore,
			"completed_at":     model.CompletedAt,
			"updated_at":       model.UpdatedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// TransitionStatus persists a lifecycle command with a conditional UPDATE
// guarded on the status the caller loaded. A worker settling the attempt in
// between wins; the command observes false and re-reads the fresh row.
func (r *GormJobRepository) TransitionStatus(ctx context.Context, job *sync.Job, from sync.JobStatus) (bool, error) {
	var model models.JobModel
	model.FromDomain(job)
	result := r.db.WithContext(ctx).
		Model(&models.JobModel{}).
		Where("id = ? AND tenant_id = ? AND status = ?", job.ID, job.TenantID, from).
		Updates(map[string]any{
			"status":       model.Status,
			"completed_at": model.CompletedAt,
			"updated_at":   model.UpdatedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Ensure GormJobRepository implements sync.JobRepository
var _ sync.JobRepository = (*GormJobRepository)(nil)
