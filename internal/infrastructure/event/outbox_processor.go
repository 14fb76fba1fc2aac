package event

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/erp/pos/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OutboxProcessorConfig holds configuration for the outbox processor
type OutboxProcessorConfig struct {
	BatchSize        int
	PollInterval     time.Duration
	CleanupEnabled   bool
	CleanupRetention time.Duration
	CleanupInterval  time.Duration
}

// DefaultOutboxProcessorConfig returns default configuration
func DefaultOutboxProcessorConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{
		BatchSize:        100,
		PollInterval:     5 * time.Second,
		CleanupEnabled:   true,
		CleanupRetention: 7 * 24 * time.Hour,
		CleanupInterval:  time.Hour,
	}
}

// BatchResult counts what one ProcessBatch call did
type BatchResult struct {
	Claimed int
	Sent    int
	Failed  int
	Dead    int
}

func (r *BatchResult) add(o BatchResult) {
	r.Claimed += o.Claimed
	r.Sent += o.Sent
	r.Failed += o.Failed
	r.Dead += o.Dead
}

// ErrProcessorRunning is returned by Start on a processor that is already polling
var ErrProcessorRunning = errors.New("outbox processor already running")

// OutboxProcessor relays committed sale events from the outbox to the event bus.
// An entry whose handlers fail is retried with backoff until it is dead.
type OutboxProcessor struct {
	repo       shared.OutboxRepository
	publisher  shared.EventPublisher
	serializer *EventSerializer
	config     OutboxProcessorConfig
	logger     *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewOutboxProcessor creates a new outbox processor
func NewOutboxProcessor(
	repo shared.OutboxRepository,
	publisher shared.EventPublisher,
	serializer *EventSerializer,
	config OutboxProcessorConfig,
	logger *zap.Logger,
) *OutboxProcessor {
	return &OutboxProcessor{
		repo:       repo,
		publisher:  publisher,
		serializer: serializer,
		config:     config,
		logger:     logger.Named("outbox"),
	}
}

// Start polls in the background until Stop is called or ctx ends
func (p *OutboxProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return ErrProcessorRunning
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	go p.run(ctx, p.done)
	return nil
}

// Stop cancels polling and waits for the current batch to finish
func (p *OutboxProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		p.logger.Info("Outbox processor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *OutboxProcessor) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	poll := time.NewTicker(p.config.PollInterval)
	defer poll.Stop()

	// a nil channel never fires, so cleanup stays off unless enabled
	var cleanup <-chan time.Time
	if p.config.CleanupEnabled && p.config.CleanupInterval > 0 {
		t := time.NewTicker(p.config.CleanupInterval)
		defer t.Stop()
		cleanup = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-poll.C:
			p.ProcessBatch(ctx)
		case <-cleanup:
			p.cleanup(ctx)
		}
	}
}

// ProcessBatch publishes up to BatchSize pending entries, then up to BatchSize entries due for retry
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) BatchResult {
	var result BatchResult

	pending, err := p.repo.FindPending(ctx, p.config.BatchSize)
	if err != nil {
		p.logger.Error("Failed to load pending outbox entries", zap.Error(err))
		return result
	}
	result.add(p.processEntries(ctx, pending))

	due, err := p.repo.FindRetryable(ctx, time.Now(), p.config.BatchSize)
	if err != nil {
		p.logger.Error("Failed to load outbox entries due for retry", zap.Error(err))
		return result
	}
	result.add(p.processEntries(ctx, due))

	if result.Claimed > 0 {
		p.logger.Debug("Outbox batch processed",
			zap.Int("claimed", result.Claimed),
			zap.Int("sent", result.Sent),
			zap.Int("failed", result.Failed),
			zap.Int("dead", result.Dead),
		)
	}
	return result
}

func (p *OutboxProcessor) processEntries(ctx context.Context, entries []*shared.OutboxEntry) BatchResult {
	var result BatchResult
	if len(entries) == 0 {
		return result
	}

	ids := make([]uuid.UUID, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	claimed, err := p.repo.MarkProcessing(ctx, ids)
	if err != nil {
		p.logger.Error("Failed to claim outbox entries", zap.Error(err))
		return result
	}

	result.Claimed = len(claimed)
	for _, entry := range claimed {
		switch p.deliver(ctx, entry) {
		case shared.OutboxStatusSent:
			result.Sent++
		case shared.OutboxStatusDead:
			result.Dead++
		default:
			result.Failed++
		}
	}
	return result
}

// deliver publishes one claimed entry and returns the status it ends in
func (p *OutboxProcessor) deliver(ctx context.Context, entry *shared.OutboxEntry) shared.OutboxStatus {
	log := p.logger.With(
		zap.String("event_id", entry.EventID.String()),
		zap.String("event_type", entry.EventType),
		zap.String("sale_id", entry.AggregateID.String()),
	)

	event, err := p.serializer.Deserialize(entry.EventType, entry.Payload)
	if err == nil {
		err = p.publisher.Publish(ctx, event)
	}

	if err != nil {
		entry.MarkFailed(err.Error())
		if entry.IsDead() {
			log.Warn("Outbox entry is dead",
				zap.Int("attempts", entry.RetryCount),
				zap.String("last_error", entry.LastError),
			)
		} else {
			log.Error("Outbox entry failed", zap.Int("attempt", entry.RetryCount), zap.Error(err))
		}
	} else {
		entry.MarkSent()
	}

	if err := p.repo.Update(ctx, entry); err != nil {
		// the entry stays PROCESSING and is not picked up again until an operator looks at it
		log.Error("Failed to record outbox entry outcome", zap.String("status", string(entry.Status)), zap.Error(err))
	}
	return entry.Status
}

func (p *OutboxProcessor) cleanup(ctx context.Context) {
	cutoff := time.Now().Add(-p.config.CleanupRetention)
	deleted, err := p.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		p.logger.Error("Failed to delete sent outbox entries", zap.Error(err))
		return
	}
	if deleted > 0 {
		p.logger.Info("Deleted sent outbox entries", zap.Int64("deleted", deleted), zap.Time("cutoff", cutoff))
	}
}
