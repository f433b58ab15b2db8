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

// GormBatchRepository implements sync.BatchRepository using GORM.
type GormBatchRepository struct {
	db *gorm.DB
}

// NewGormBatchRepository creates a new GormBatchRepository
func NewGormBatchRepository(db *gorm.DB) *GormBatchRepository {
	return &GormBatchRepository{db: db}
}

// Save creates or updates a batch
func (r *GormBatchRepository) Save(ctx context.Context, batch *sync.Batch) error {
	var model models.BatchModel
	model.FromDomain(batch)
	return r.db.WithContext(ctx).Save(&model).Error
}

// FindByID finds a batch by ID within a tenant
func (r *GormBatchRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*sync.Batch, error) {
	var model models.BatchModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ? AND tenant_id = ?", id, tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sync.ErrBatchNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByBatchID finds a batch by its external-facing identifier
func (r *GormBatchRepository) FindByBatchID(ctx context.Context, tenantID uuid.UUID, batchID string) (*sync.Batch, error) {
	var model models.BatchModel
	if err := r.db.WithContext(ctx).
		First(&model, "tenant_id = ? AND batch_id = ?", tenantID, batchID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sync.ErrBatchNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// RecordChildOutcome rolls one terminal child status into the batch counters
// as a single guarded UPDATE, so concurrent dispatcher workers never lose an
// increment. Settles the aggregate status when all children have resolved.
func (r *GormBatchRepository) RecordChildOutcome(ctx context.Context, batchID uuid.UUID, childStatus sync.JobStatus) (*sync.Batch, error) {
	var column string
	switch childStatus {
	case sync.JobStatusCompleted:
		column = "completed_count"
	case sync.JobStatusFailed, sync.JobStatusExpired:
		// An expired child never ran; the aggregate counts it as failed.
		column = "failed_count"
	case sync.JobStatusCancelled:
		column = "cancelled_count"
	default:
		return nil, sync.ErrInvalidJobTransition
	}

	openStatuses := []sync.BatchStatus{sync.BatchStatusPending, sync.BatchStatusRunning}

	// The guard keeps the invariant completed+failed+cancelled <= total even
	// under concurrent increments.
	result := r.db.WithContext(ctx).
		Model(&models.BatchModel{}).
		Where("id = ? AND status IN ?", batchID, openStatuses).
		Where("completed_count + failed_count + cancelled_count < total_count").
		Updates(map[string]any{
			column:       gorm.Expr(column+" + 1"),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		batch, err := r.findByPrimaryID(ctx, batchID)
		if err != nil {
			return nil, err
		}
		if batch.IsTerminal() {
			return nil, sync.ErrBatchTerminal
		}
		return nil, sync.ErrCounterOverflow
	}

	batch, err := r.findByPrimaryID(ctx, batchID)
	if err != nil {
		return nil, err
	}

	if batch.ResolvedCount() == batch.TotalCount && !batch.IsTerminal() {
		if err := r.settle(ctx, batch, openStatuses); err != nil {
			return nil, err
		}
		return r.findByPrimaryID(ctx, batchID)
	}
	return batch, nil
}

// settle stamps the terminal aggregate status once all children resolved.
// The status guard makes the transition idempotent under concurrency.
func (r *GormBatchRepository) settle(ctx context.Context, batch *sync.Batch, openStatuses []sync.BatchStatus) error {
	var status sync.BatchStatus
	switch {
	case batch.CompletedCount == batch.TotalCount:
		status = sync.BatchStatusCompleted
	case batch.CancelledCount == batch.TotalCount:
		status = sync.BatchStatusCancelled
	case batch.CompletedCount == 0 && batch.CancelledCount == 0:
		status = sync.BatchStatusFailed
	default:
		status = sync.BatchStatusPartiallyFailed
	}

	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&models.BatchModel{}).
		Where("id = ? AND status IN ?", batch.ID, openStatuses).
		Updates(map[string]any{
			"status":       status,
			"completed_at": now,
			"updated_at":   now,
		}).Error
}

func (r *GormBatchRepository) findByPrimaryID(ctx context.Context, id uuid.UUID) (*sync.Batch, error) {
	var model models.BatchModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sync.ErrBatchNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// MarkStarted marks a pending batch running when its first child is claimed
func (r *GormBatchRepository) MarkStarted(ctx context.Context, batchID uuid.UUID) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&models.BatchModel{}).
		Where("id = ? AND status = ?", batchID, sync.BatchStatusPending).
		Updates(map[string]any{
			"status":     sync.BatchStatusRunning,
			"started_at": now,
			"updated_at": now,
		}).Error
}

// Ensure GormBatchRepository implements sync.BatchRepository
var _ sync.BatchRepository = (*GormBatchRepository)(nil)
