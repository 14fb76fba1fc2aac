package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers which event IDs a handler has already consumed
type IdempotencyStore interface {
	// MarkProcessed records eventID for ttl. It returns false when the ID was already present.
	MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error)

	// IsProcessed checks if an event has already been processed
	IsProcessed(ctx context.Context, eventID string) (bool, error)

	// Forget removes eventID so a failed delivery can be retried by the outbox
	Forget(ctx context.Context, eventID string) error

	// Close releases resources held by the store
	Close() error
}

// IdempotencyConfig holds configuration for idempotency handling
type IdempotencyConfig struct {
	// TTL is how long a processed event ID is remembered
	TTL time.Duration
	// Enabled switches the check on or off
	Enabled bool
}

// DefaultIdempotencyConfig returns the default idempotency configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}
