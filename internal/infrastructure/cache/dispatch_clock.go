package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DispatchClock enforces the minimum spacing between consecutive dispatches
// of the same action against the same marketplace
type DispatchClock interface {
	// Reserve attempts to claim the dispatch slot for the (marketplace, action)
	// pair. Returns true when the caller may dispatch now; false when a
	// dispatch happened within the last spacing window
	Reserve(ctx context.Context, marketplace, action string, spacing time.Duration) (bool, error)
}

// ---------------------------------------------------------------------------
// Redis implementation
// ---------------------------------------------------------------------------

// RedisDispatchClock implements DispatchClock on Redis so that every
// dispatcher instance shares the same pacing state
type RedisDispatchClock struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisDispatchClock creates a clock backed by an existing Redis client
func NewRedisDispatchClock(client *redis.Client, keyPrefix string) *RedisDispatchClock {
	if keyPrefix == "" {
		keyPrefix = "dispatch:clock:"
	}
	return &RedisDispatchClock{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Reserve claims the slot with SET NX PX: the key lives for exactly the
// spacing window, so the next reservation succeeds only after it expires
func (c *RedisDispatchClock) Reserve(ctx context.Context, marketplace, action string, spacing time.Duration) (bool, error) {
	if spacing <= 0 {
		return true, nil
	}

	redisKey := fmt.Sprintf("%s%s:%s", c.keyPrefix, marketplace, action)
	ok, err := c.client.SetNX(ctx, redisKey, "1", spacing).Result()
	if err != nil {
		return false, fmt.Errorf("failed to reserve dispatch slot: %w", err)
	}

	return ok, nil
}

var _ DispatchClock = (*RedisDispatchClock)(nil)

// ---------------------------------------------------------------------------
// In-memory implementation
// ---------------------------------------------------------------------------

// InMemoryDispatchClock implements DispatchClock with a mutex-guarded map.
// Suitable for single-instance deployments and tests
type InMemoryDispatchClock struct {
	mu    sync.Mutex
	slots map[string]time.Time
	now   func() time.Time
}

// NewInMemoryDispatchClock creates a new in-memory dispatch clock
func NewInMemoryDispatchClock() *InMemoryDispatchClock {
	return &InMemoryDispatchClock{
		slots: make(map[string]time.Time),
		now:   time.Now,
	}
}

// Reserve claims the slot when no dispatch for the pair happened within
// the spacing window
func (c *InMemoryDispatchClock) Reserve(ctx context.Context, marketplace, action string, spacing time.Duration) (bool, error) {
	if spacing <= 0 {
		return true, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	slotKey := marketplace + ":" + action
	now := c.now()

	if last, exists := c.slots[slotKey]; exists && now.Sub(last) < spacing {
		return false, nil
	}

	c.slots[slotKey] = now
	return true, nil
}

var _ DispatchClock = (*InMemoryDispatchClock)(nil)
