package catalog

import (
	"context"

	"github.com/google/uuid"
)

// CategoryMappingRepository loads the mapping reference table. The pipeline
// only reads; rows are edited out of band.
type CategoryMappingRepository interface {
	// FindAllForTenant returns every mapping row for a tenant, the snapshot
	// a Resolver is built from
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID) ([]CategoryMapping, error)

	// Seed inserts mapping rows if none exist for the tenant
	Seed(ctx context.Context, mappings []CategoryMapping) error
}
