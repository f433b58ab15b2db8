package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/resell/backend/internal/domain/sync"
	"github.com/resell/backend/internal/infrastructure/persistence/models"
)

// GormTaskRepository implements sync.TaskRepository using GORM.
type GormTaskRepository struct {
	db *gorm.DB
}

// NewGormTaskRepository creates a new GormTaskRepository
func NewGormTaskRepository(db *gorm.DB) *GormTaskRepository {
	return &GormTaskRepository{db: db}
}

// Save creates or updates a task
func (r *GormTaskRepository) Save(ctx context.Context, task *sync.Task) error {
	var model models.TaskModel
	model.FromDomain(task)
	return r.db.WithContext(ctx).Save(&model).Error
}

// FindByID finds a task by ID within a tenant
func (r *GormTaskRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*sync.Task, error) {
	var model models.TaskModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ? AND tenant_id = ?", id, tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sync.ErrTaskNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByJob lists all tasks created for a job, newest first
func (r *GormTaskRepository) FindByJob(ctx context.Context, tenantID, jobID uuid.UUID) ([]sync.Task, error) {
	var taskModels []models.TaskModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND job_id = ?", tenantID, jobID).
		Order("created_at DESC").
		Find(&taskModels).Error; err != nil {
		return nil, err
	}

	tasks := make([]sync.Task, len(taskModels))
	for i, model := range taskModels {
		tasks[i] = *model.ToDomain()
	}
	return tasks, nil
}

// Ensure GormTaskRepository implements sync.TaskRepository
var _ sync.TaskRepository = (*GormTaskRepository)(nil)
