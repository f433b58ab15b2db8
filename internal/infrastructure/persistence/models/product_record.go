package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/resell/backend/internal/domain/catalog"
	"github.com/resell/backend/internal/domain/marketplace"
)

// ProductRecordModel is the persistence model for the read-only product
// collaborator rows consumed by the payload builder.
type ProductRecordModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key"`
	TenantID    uuid.UUID       `gorm:"type:uuid;not null;index:idx_product_record_tenant"`
	Title       string          `gorm:"type:varchar(200);not null"`
	Description string          `gorm:"type:text"`
	Price       decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	Currency    string          `gorm:"type:varchar(3);not null;default:'EUR'"`
	ImageURLs   string          `gorm:"type:jsonb"`
	Category    string          `gorm:"type:varchar(60);not null"`
	Gender      string          `gorm:"type:varchar(20);not null"`
	Attributes  string          `gorm:"type:jsonb"`
	Brand       string          `gorm:"type:varchar(100)"`
	Size        string          `gorm:"type:varchar(40)"`
	Condition   string          `gorm:"type:varchar(40)"`
	CreatedAt   time.Time       `gorm:"not null"`
	UpdatedAt   time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ProductRecordModel) TableName() string {
	return "product_records"
}

// ToDomain converts the persistence model to a domain ProductRecord.
func (m *ProductRecordModel) ToDomain() (*marketplace.ProductRecord, error) {
	var imageURLs []string
	if m.ImageURLs != "" {
		if err := json.Unmarshal([]byte(m.ImageURLs), &imageURLs); err != nil {
			return nil, err
		}
	}
	var attrs catalog.Attributes
	if m.Attributes != "" {
		if err := json.Unmarshal([]byte(m.Attributes), &attrs); err != nil {
			return nil, err
		}
	}
	return &marketplace.ProductRecord{
		ID:          m.ID,
		TenantID:    m.TenantID,
		Title:       m.Title,
		Description: m.Description,
		Price:       m.Price,
		Currency:    m.Currency,
		ImageURLs:   imageURLs,
		Category:    m.Category,
		Gender:      m.Gender,
		Attributes:  attrs,
		Brand:       m.Brand,
		Size:        m.Size,
		Condition:   m.Condition,
	}, nil
}

// FromDomain populates the persistence model from a domain ProductRecord.
func (m *ProductRecordModel) FromDomain(p *marketplace.ProductRecord) error {
	imageURLs, err := json.Marshal(p.ImageURLs)
	if err != nil {
		return err
	}
	attrs, err := json.Marshal(p.Attributes)
	if err != nil {
		return err
	}
	m.ID = p.ID
	m.TenantID = p.TenantID
	m.Title = p.Title
	m.Description = p.Description
	m.Price = p.Price
	m.Currency = p.Currency
	m.ImageURLs = string(imageURLs)
	m.Category = p.Category
	m.Gender = p.Gender
	m.Attributes = string(attrs)
	m.Brand = p.Brand
	m.Size = p.Size
	m.Condition = p.Condition
	return nil
}
