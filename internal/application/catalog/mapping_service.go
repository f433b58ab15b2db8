package catalog

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/resell/backend/internal/domain/catalog"
)

// MappingService loads category mapping snapshots and serves resolvers built
// over them. A resolver is cached per tenant; mapping rows are edited out of
// band, so Reload is the explicit way to pick changes up.
type MappingService struct {
	mappings catalog.CategoryMappingRepository
	logger   *zap.Logger

	mu        sync.RWMutex
	resolvers map[uuid.UUID]*catalog.Resolver
}

// NewMappingService creates a new MappingService
func NewMappingService(mappings catalog.CategoryMappingRepository, logger *zap.Logger) *MappingService {
	return &MappingService{
		mappings:  mappings,
		logger:    logger,
		resolvers: make(map[uuid.UUID]*catalog.Resolver),
	}
}

// ResolverFor returns the tenant's resolver, loading and caching the mapping
// snapshot on first use.
func (s *MappingService) ResolverFor(ctx context.Context, tenantID uuid.UUID) (*catalog.Resolver, error) {
	s.mu.RLock()
	resolver, ok := s.resolvers[tenantID]
	s.mu.RUnlock()
	if ok {
		return resolver, nil
	}
	return s.Reload(ctx, tenantID)
}

// Reload rebuilds the tenant's resolver from the current mapping table.
func (s *MappingService) Reload(ctx context.Context, tenantID uuid.UUID) (*catalog.Resolver, error) {
	rows, err := s.mappings.FindAllForTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	resolver := catalog.NewResolver(rows)

	s.mu.Lock()
	s.resolvers[tenantID] = resolver
	s.mu.Unlock()

	s.logger.Info("Category mapping snapshot loaded",
		zap.String("tenant_id", tenantID.String()),
		zap.Int("rows", len(rows)),
	)
	return resolver, nil
}

// ResolveCategory answers a diagnostic resolution query against the tenant's
// current snapshot.
func (s *MappingService) ResolveCategory(ctx context.Context, tenantID uuid.UUID, req ResolveCategoryRequest) (*ResolveCategoryResponse, error) {
	resolver, err := s.ResolverFor(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	categoryID, err := resolver.Resolve(req.Category, req.Gender, req.attributes())
	if err != nil {
		return nil, err
	}
	return &ResolveCategoryResponse{
		Category:              req.Category,
		Gender:                req.Gender,
		MarketplaceCategoryID: categoryID,
	}, nil
}

// ValidateDefaults reports every (category, gender) pair of the tenant's
// snapshot that violates the single-default invariant.
func (s *MappingService) ValidateDefaults(ctx context.Context, tenantID uuid.UUID) ([]DefaultViolationResponse, error) {
	resolver, err := s.ResolverFor(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	violations := resolver.ValidateDefaults()
	resp := make([]DefaultViolationResponse, 0, len(violations))
	for _, v := range violations {
		resp = append(resp, DefaultViolationResponse{
			Category: v.Category,
			Gender:   v.Gender,
			Kind:     v.Kind,
		})
	}
	return resp, nil
}
