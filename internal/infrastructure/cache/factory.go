package cache

import (
	"context"
	"fmt"

	"github.com/erp/pos/internal/domain/shared"
	"github.com/erp/pos/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type dialFunc func(context.Context, config.RedisConfig) (*redis.Client, error)

type storeOptions struct {
	logger   *zap.Logger
	fallback bool
	dial     dialFunc
}

// StoreOption configures OpenIdempotencyStore
type StoreOption func(*storeOptions)

func WithLogger(logger *zap.Logger) StoreOption {
	return func(o *storeOptions) { o.logger = logger }
}

// WithInMemoryFallback decides what happens when Redis is configured but does
// not answer: use process memory (the default) or fail.
func WithInMemoryFallback(allow bool) StoreOption {
	return func(o *storeOptions) { o.fallback = allow }
}

func withDialer(dial dialFunc) StoreOption {
	return func(o *storeOptions) { o.dial = dial }
}

// OpenIdempotencyStore returns a Redis store owning its connection when cfg names
// a reachable server, and an in-memory store otherwise. In-memory keys are not
// shared between server instances.
func OpenIdempotencyStore(ctx context.Context, cfg config.RedisConfig, opts ...StoreOption) (shared.IdempotencyStore, error) {
	o := storeOptions{logger: zap.NewNop(), fallback: true, dial: NewRedisClient}
	for _, opt := range opts {
		opt(&o)
	}

	if !cfg.Enabled() {
		o.logger.Info("Redis not configured, idempotency keys kept in memory")
		return NewInMemoryIdempotencyStore(), nil
	}

	client, err := o.dial(ctx, cfg)
	if err != nil {
		if !o.fallback {
			return nil, fmt.Errorf("idempotency store needs redis: %w", err)
		}
		o.logger.Warn("Redis unreachable, idempotency keys kept in memory", zap.Error(err))
		return NewInMemoryIdempotencyStore(), nil
	}

	store := NewRedisIdempotencyStore(client, DefaultIdempotencyKeyPrefix)
	store.ownsConn = true
	o.logger.Info("Idempotency keys kept in redis", zap.String("addr", cfg.Addr()))
	return store, nil
}
