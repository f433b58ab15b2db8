package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/resell/backend/internal/domain/marketplace"
	"github.com/resell/backend/internal/domain/sync"
)

// ListingPayloadBuilder assembles the outbound request body for a job from
// the product collaborator record and the tenant's category mapping snapshot.
// Failures here are permanent: a product that does not validate today will
// not validate on a retry either.
type ListingPayloadBuilder struct {
	products marketplace.ProductRecordRepository
	mappings *MappingService
	logger   *zap.Logger
}

// NewListingPayloadBuilder creates a new ListingPayloadBuilder
func NewListingPayloadBuilder(
	products marketplace.ProductRecordRepository,
	mappings *MappingService,
	logger *zap.Logger,
) *ListingPayloadBuilder {
	return &ListingPayloadBuilder{
		products: products,
		mappings: mappings,
		logger:   logger,
	}
}

// Build returns the request body for the job's action. Publish and update
// carry the full listing payload; the remaining actions reference the product
// at most.
func (b *ListingPayloadBuilder) Build(ctx context.Context, job *sync.Job) ([]byte, error) {
	switch job.ActionCode {
	case sync.ActionCodePublish, sync.ActionCodeUpdate:
		return b.buildListing(ctx, job)
	case sync.ActionCodeDelete:
		if job.ProductID == nil {
			return nil, fmt.Errorf("%w: delete requires a product", marketplace.ErrProductInvalid)
		}
		return json.Marshal(map[string]string{"product_id": job.ProductID.String()})
	default:
		// sync, orders and message poll marketplace-side state; the request
		// carries no body.
		return json.Marshal(map[string]string{})
	}
}

func (b *ListingPayloadBuilder) buildListing(ctx context.Context, job *sync.Job) ([]byte, error) {
	if job.ProductID == nil {
		return nil, fmt.Errorf("%w: listing requires a product", marketplace.ErrProductInvalid)
	}

	product, err := b.products.FindByID(ctx, job.TenantID, *job.ProductID)
	if err != nil {
		if errors.Is(err, marketplace.ErrProductNotFound) {
			return nil, fmt.Errorf("%w: product %s not found", marketplace.ErrProductInvalid, job.ProductID)
		}
		return nil, err
	}

	resolver, err := b.mappings.ResolverFor(ctx, job.TenantID)
	if err != nil {
		return nil, err
	}

	payload, err := marketplace.BuildListingPayload(resolver, product)
	if err != nil {
		b.logger.Warn("Listing payload rejected",
			zap.String("job_id", job.ID.String()),
			zap.String("product_id", job.ProductID.String()),
			zap.Error(err),
		)
		return nil, err
	}
	return payload, nil
}
