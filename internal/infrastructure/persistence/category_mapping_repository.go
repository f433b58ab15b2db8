package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/resell/backend/internal/domain/catalog"
	"github.com/resell/backend/internal/infrastructure/persistence/models"
)

// GormCategoryMappingRepository implements catalog.CategoryMappingRepository
// using GORM.
type GormCategoryMappingRepository struct {
	db *gorm.DB
}

// NewGormCategoryMappingRepository creates a new GormCategoryMappingRepository
func NewGormCategoryMappingRepository(db *gorm.DB) *GormCategoryMappingRepository {
	return &GormCategoryMappingRepository{db: db}
}

// FindAllForTenant returns every mapping row for a tenant
func (r *GormCategoryMappingRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID) ([]catalog.CategoryMapping, error) {
	var mappingModels []models.CategoryMappingModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("category ASC, gender ASC").
		Find(&mappingModels).Error; err != nil {
		return nil, err
	}

	mappings := make([]catalog.CategoryMapping, len(mappingModels))
	for i, model := range mappingModels {
		mappings[i] = model.ToDomain()
	}
	return mappings, nil
}

// Seed inserts mapping rows if none exist for the tenant
func (r *GormCategoryMappingRepository) Seed(ctx context.Context, mappings []catalog.CategoryMapping) error {
	if len(mappings) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.CategoryMappingModel{}).
			Where("tenant_id = ?", mappings[0].TenantID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		for _, mapping := range mappings {
			if err := mapping.Validate(); err != nil {
				return err
			}
			var model models.CategoryMappingModel
			model.FromDomain(mapping)
			if err := tx.Create(&model).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Ensure GormCategoryMappingRepository implements the repository port
var _ catalog.CategoryMappingRepository = (*GormCategoryMappingRepository)(nil)
