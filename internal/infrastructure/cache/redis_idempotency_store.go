package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/pos/internal/domain/shared"
	"github.com/redis/go-redis/v9"
)

// DefaultIdempotencyKeyPrefix namespaces processed event IDs in Redis
const DefaultIdempotencyKeyPrefix = "pos:event:idempotency:"

// RedisIdempotencyStore implements IdempotencyStore using Redis.
// All terminals sharing the server see the same processed set.
type RedisIdempotencyStore struct {
	client    redis.UniversalClient
	keyPrefix string
	ownsConn  bool
}

// NewRedisIdempotencyStore creates a store on an existing Redis client.
// The client is not closed by Close.
func NewRedisIdempotencyStore(client redis.UniversalClient, keyPrefix string) *RedisIdempotencyStore {
	if keyPrefix == "" {
		keyPrefix = DefaultIdempotencyKeyPrefix
	}
	return &RedisIdempotencyStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// MarkProcessed records the event with SET NX so concurrent deliveries race on one key.
// Returns true if the event was newly marked, false if it was already processed.
func (s *RedisIdempotencyStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	result, err := s.client.SetNX(ctx, s.keyPrefix+eventID, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark event as processed: %w", err)
	}
	return result, nil
}

// IsProcessed checks if an event has already been processed
func (s *RedisIdempotencyStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	exists, err := s.client.Exists(ctx, s.keyPrefix+eventID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check if event is processed: %w", err)
	}
	return exists > 0, nil
}

// Forget deletes the key of an event
func (s *RedisIdempotencyStore) Forget(ctx context.Context, eventID string) error {
	if err := s.client.Del(ctx, s.keyPrefix+eventID).Err(); err != nil {
		return fmt.Errorf("failed to forget event: %w", err)
	}
	return nil
}

// Client returns the underlying Redis client
func (s *RedisIdempotencyStore) Client() redis.UniversalClient {
	return s.client
}

// Close closes the client when the store created it
func (s *RedisIdempotencyStore) Close() error {
	if s.ownsConn {
		return s.client.Close()
	}
	return nil
}

// Ensure RedisIdempotencyStore implements IdempotencyStore
var _ shared.IdempotencyStore = (*RedisIdempotencyStore)(nil)
