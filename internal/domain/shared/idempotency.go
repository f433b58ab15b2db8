package shared

import (
	"context"
	"time"
)

// IdempotencyStore records which idempotency keys have already produced a
// marketplace call so a retried or resubmitted job is not executed twice.
type IdempotencyStore interface {
	// MarkProcessed records a key with a TTL. Returns true when the key was
	// newly recorded, false when another attempt got there first.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed reports whether the key was already recorded
	IsProcessed(ctx context.Context, key string) (bool, error)

	Close() error
}

// IdempotencyConfig holds configuration for idempotency handling
type IdempotencyConfig struct {
	// TTL bounds how long a processed key blocks re-execution. Once it
	// lapses the same key may run again.
	TTL time.Duration

	Enabled bool
}

// DefaultIdempotencyConfig keeps keys for a day
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}
