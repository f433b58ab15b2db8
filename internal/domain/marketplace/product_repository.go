package marketplace

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrProductNotFound = errors.New("marketplace: product record not found")

// ProductRecordRepository reads product collaborator rows. The pipeline never
// writes them; Save exists for seeding and tests.
type ProductRecordRepository interface {
	// FindByID finds a product record by ID within a tenant. Returns
	// ErrProductNotFound when absent.
	FindByID(ctx context.Context, tenantID, productID uuid.UUID) (*ProductRecord, error)

	// Save creates or updates a product record
	Save(ctx context.Context, product *ProductRecord) error
}
