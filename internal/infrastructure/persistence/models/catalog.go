package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/resell/backend/internal/domain/catalog"
)

// CategoryMappingModel is the persistence model for category mapping rows.
type CategoryMappingModel struct {
	ID                    uuid.UUID `gorm:"type:uuid;primary_key"`
	TenantID              uuid.UUID `gorm:"type:uuid;not null;index:idx_category_mapping_tenant,priority:1"`
	Category              string    `gorm:"type:varchar(60);not null;index:idx_category_mapping_pair,priority:1"`
	Gender                string    `gorm:"type:varchar(20);not null;index:idx_category_mapping_pair,priority:2"`
	Fit                   *string   `gorm:"type:varchar(40)"`
	Length                *string   `gorm:"type:varchar(40)"`
	Rise                  *string   `gorm:"type:varchar(40)"`
	Material              *string   `gorm:"type:varchar(40)"`
	Pattern               *string   `gorm:"type:varchar(40)"`
	Neckline              *string   `gorm:"type:varchar(40)"`
	SleeveLength          *string   `gorm:"type:varchar(40)"`
	MarketplaceCategoryID string    `gorm:"type:varchar(50);not null"`
	IsDefault             bool      `gorm:"not null;default:false"`
	CreatedAt             time.Time `gorm:"not null"`
	UpdatedAt             time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CategoryMappingModel) TableName() string {
	return "category_mappings"
}

// ToDomain converts the persistence model to a domain CategoryMapping.
func (m *CategoryMappingModel) ToDomain() catalog.CategoryMapping {
	return catalog.CategoryMapping{
		ID:                    m.ID,
		TenantID:              m.TenantID,
		Category:              m.Category,
		Gender:                m.Gender,
		Fit:                   m.Fit,
		Length:                m.Length,
		Rise:                  m.Rise,
		Material:              m.Material,
		Pattern:               m.Pattern,
		Neckline:              m.Neckline,
		SleeveLength:          m.SleeveLength,
		MarketplaceCategoryID: m.MarketplaceCategoryID,
		IsDefault:             m.IsDefault,
		CreatedAt:             m.CreatedAt,
		UpdatedAt:             m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain CategoryMapping.
func (m *CategoryMappingModel) FromDomain(c catalog.CategoryMapping) {
	m.ID = c.ID
	m.TenantID = c.TenantID
	m.Category = c.Category
	m.Gender = c.Gender
	m.Fit = c.Fit
	m.Length = c.Length
	m.Rise = c.Rise
	m.Material = c.Material
	m.Pattern = c.Pattern
	m.Neckline = c.Neckline
	m.SleeveLength = c.SleeveLength
	m.MarketplaceCategoryID = c.MarketplaceCategoryID
	m.IsDefault = c.IsDefault
	m.CreatedAt = c.CreatedAt
	m.UpdatedAt = c.UpdatedAt
}
