package ecommerce

import (
	stdsync "sync"

	"github.com/resell/backend/internal/domain/marketplace"
)

// maxResponseSize is the maximum allowed response size from marketplace APIs (10MB)
const maxResponseSize = 10 * 1024 * 1024

// StaticRegistry holds one adapter per marketplace code.
type StaticRegistry struct {
	mu       stdsync.RWMutex
	adapters map[marketplace.Code]marketplace.Adapter
}

// NewStaticRegistry creates a registry from the given adapters.
func NewStaticRegistry(adapters ...marketplace.Adapter) *StaticRegistry {
	r := &StaticRegistry{adapters: make(map[marketplace.Code]marketplace.Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Code()] = a
	}
	return r
}

// Register adds or replaces the adapter for its marketplace.
func (r *StaticRegistry) Register(adapter marketplace.Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[adapter.Code()] = adapter
}

// Adapter returns the adapter for the given marketplace code.
func (r *StaticRegistry) Adapter(code marketplace.Code) (marketplace.Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[code]
	if !ok {
		return nil, marketplace.ErrAdapterNotConfigured
	}
	return a, nil
}

var _ marketplace.Registry = (*StaticRegistry)(nil)
