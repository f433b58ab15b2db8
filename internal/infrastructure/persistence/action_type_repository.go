package persistence

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/resell/backend/internal/domain/sync"
	"github.com/resell/backend/internal/infrastructure/persistence/models"
)

// GormActionTypeRepository implements sync.ActionTypeRepository using GORM.
type GormActionTypeRepository struct {
	db *gorm.DB
}

// NewGormActionTypeRepository creates a new GormActionTypeRepository
func NewGormActionTypeRepository(db *gorm.DB) *GormActionTypeRepository {
	return &GormActionTypeRepository{db: db}
}

// FindAll returns every catalog entry
func (r *GormActionTypeRepository) FindAll(ctx context.Context) ([]sync.ActionType, error) {
	var actionModels []models.ActionTypeModel
	if err := r.db.WithContext(ctx).
		Order("priority ASC, code ASC").
		Find(&actionModels).Error; err != nil {
		return nil, err
	}

	actions := make([]sync.ActionType, len(actionModels))
	for i, model := range actionModels {
		actions[i] = *model.ToDomain()
	}
	return actions, nil
}

// FindByCode finds a catalog entry by its unique code
func (r *GormActionTypeRepository) FindByCode(ctx context.Context, code sync.ActionCode) (*sync.ActionType, error) {
	var model models.ActionTypeModel
	if err := r.db.WithContext(ctx).First(&model, "code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sync.ErrActionTypeNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Seed inserts the given entries if the catalog is empty
func (r *GormActionTypeRepository) Seed(ctx context.Context, entries []*sync.ActionType) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.ActionTypeModel{}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		for _, entry := range entries {
			var model models.ActionTypeModel
			model.FromDomain(entry)
			if err := tx.Create(&model).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Ensure GormActionTypeRepository implements sync.ActionTypeRepository
var _ sync.ActionTypeRepository = (*GormActionTypeRepository)(nil)
