package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/resell/backend/internal/domain/marketplace"
	"github.com/resell/backend/internal/infrastructure/persistence/models"
)

// GormProductRecordRepository implements marketplace.ProductRecordRepository
// using GORM.
type GormProductRecordRepository struct {
	db *gorm.DB
}

// NewGormProductRecordRepository creates a new GormProductRecordRepository
func NewGormProductRecordRepository(db *gorm.DB) *GormProductRecordRepository {
	return &GormProductRecordRepository{db: db}
}

// FindByID finds a product record by ID within a tenant
func (r *GormProductRecordRepository) FindByID(ctx context.Context, tenantID, productID uuid.UUID) (*marketplace.ProductRecord, error) {
	var model models.ProductRecordModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, productID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, marketplace.ErrProductNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// Save creates or updates a product record
func (r *GormProductRecordRepository) Save(ctx context.Context, product *marketplace.ProductRecord) error {
	var model models.ProductRecordModel
	if err := model.FromDomain(product); err != nil {
		return err
	}
	now := time.Now()
	model.UpdatedAt = now

	var existing models.ProductRecordModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", product.TenantID, product.ID).
		First(&existing).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		model.CreatedAt = now
		return r.db.WithContext(ctx).Create(&model).Error
	}

	model.CreatedAt = existing.CreatedAt
	return r.db.WithContext(ctx).Save(&model).Error
}

// Ensure GormProductRecordRepository implements the repository port
var _ marketplace.ProductRecordRepository = (*GormProductRecordRepository)(nil)
