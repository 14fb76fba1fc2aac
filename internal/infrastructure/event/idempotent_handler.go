package event

import (
	"context"
	"sync/atomic"

	"github.com/erp/pos/internal/domain/shared"
	"go.uber.org/zap"
)

// IdempotencyStats counts the outcomes seen by an IdempotentHandler
type IdempotencyStats struct {
	Processed  int64 `json:"processed"`
	Duplicates int64 `json:"duplicates"`
	Failed     int64 `json:"failed"`
	Released   int64 `json:"released"`
}

type idempotencyCounters struct {
	processed, duplicates, failed, released atomic.Int64
}

// IdempotentHandler runs the wrapped handler at most once per event.
// The outbox delivers at least once, so redeliveries of a handled event are skipped here.
// A failed run releases its key so the outbox retry gets through.
type IdempotentHandler struct {
	handler  shared.EventHandler
	store    shared.IdempotencyStore
	config   shared.IdempotencyConfig
	consumer string
	logger   *zap.Logger
	counters idempotencyCounters
}

// IdempotentHandlerOption is a functional option for IdempotentHandler
type IdempotentHandlerOption func(*IdempotentHandler)

// WithIdempotencyConfig sets the key TTL and the on/off switch
func WithIdempotencyConfig(config shared.IdempotencyConfig) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		h.config = config
	}
}

// WithConsumer namespaces keys so two handlers of the same event are tracked apart
func WithConsumer(name string) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		h.consumer = name
	}
}

// NewIdempotentHandler wraps handler with the idempotency check
func NewIdempotentHandler(
	handler shared.EventHandler,
	store shared.IdempotencyStore,
	logger *zap.Logger,
	opts ...IdempotentHandlerOption,
) *IdempotentHandler {
	h := &IdempotentHandler{
		handler: handler,
		store:   store,
		config:  shared.DefaultIdempotencyConfig(),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// EventTypes returns the wrapped handler's event types
func (h *IdempotentHandler) EventTypes() []string {
	return h.handler.EventTypes()
}

func (h *IdempotentHandler) key(event shared.DomainEvent) string {
	if h.consumer == "" {
		return event.EventID().String()
	}
	return h.consumer + ":" + event.EventID().String()
}

// Handle runs the wrapped handler unless the event was already handled
func (h *IdempotentHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	if !h.config.Enabled {
		return h.handler.Handle(ctx, event)
	}

	key := h.key(event)
	log := h.logger.With(
		zap.String("idempotency_key", key),
		zap.String("event_type", event.EventType()),
	)

	first, err := h.store.MarkProcessed(ctx, key, h.config.TTL)
	switch {
	case err != nil:
		// an unreachable store must not lose the event
		log.Warn("Idempotency check failed, handling event anyway", zap.Error(err))
	case !first:
		h.counters.duplicates.Add(1)
		log.Debug("Skipping event already handled")
		return nil
	}

	if err := h.handler.Handle(ctx, event); err != nil {
		h.counters.failed.Add(1)
		if ferr := h.store.Forget(ctx, key); ferr != nil {
			log.Warn("Failed to release idempotency key", zap.Error(ferr))
		} else {
			h.counters.released.Add(1)
		}
		return err
	}

	h.counters.processed.Add(1)
	return nil
}

// Stats returns a snapshot of the handler's counters
func (h *IdempotentHandler) Stats() IdempotencyStats {
	return IdempotencyStats{
		Processed:  h.counters.processed.Load(),
		Duplicates: h.counters.duplicates.Load(),
		Failed:     h.counters.failed.Load(),
		Released:   h.counters.released.Load(),
	}
}

var _ shared.EventHandler = (*IdempotentHandler)(nil)
