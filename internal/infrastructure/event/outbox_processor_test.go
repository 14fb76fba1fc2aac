package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/erp/pos/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memOutbox is an OutboxRepository over a map. The hook fields inject failures.
type memOutbox struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*shared.OutboxEntry

	findPendingErr error
	updateErr      error
	retryable      func(before time.Time) []*shared.OutboxEntry
	deleted        func(before time.Time) int64
}

func newMemOutbox(entries ...*shared.OutboxEntry) *memOutbox {
	r := &memOutbox{entries: make(map[uuid.UUID]*shared.OutboxEntry)}
	for _, e := range entries {
		r.entries[e.ID] = e
	}
	return r
}

func (r *memOutbox) Save(_ context.Context, entries ...*shared.OutboxEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range entries {
		r.entries[e.ID] = e
	}
	return nil
}

func (r *memOutbox) FindPending(_ context.Context, limit int) ([]*shared.OutboxEntry, error) {
	if r.findPendingErr != nil {
		return nil, r.findPendingErr
	}
	return r.withStatus(shared.OutboxStatusPending, limit), nil
}

func (r *memOutbox) FindRetryable(_ context.Context, before time.Time, limit int) ([]*shared.OutboxEntry, error) {
	if r.retryable != nil {
		return r.retryable(before), nil
	}
	var due []*shared.OutboxEntry
	for _, e := range r.withStatus(shared.OutboxStatusFailed, 0) {
		if e.CanRetry() && e.NextRetryAt != nil && !e.NextRetryAt.After(before) && (limit == 0 || len(due) < limit) {
			due = append(due, e)
		}
	}
	return due, nil
}

func (r *memOutbox) withStatus(status shared.OutboxStatus, limit int) []*shared.OutboxEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*shared.OutboxEntry
	for _, e := range r.entries {
		if e.Status == status && (limit == 0 || len(out) < limit) {
			out = append(out, e)
		}
	}
	return out
}

func (r *memOutbox) MarkProcessing(_ context.Context, ids []uuid.UUID) ([]*shared.OutboxEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var claimed []*shared.OutboxEntry
	for _, id := range ids {
		if e, ok := r.entries[id]; ok && e.MarkProcessing() == nil {
			claimed = append(claimed, e)
		}
	}
	return claimed, nil
}

func (r *memOutbox) Update(_ context.Context, entry *shared.OutboxEntry) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[entry.ID] = entry
	return nil
}

func (r *memOutbox) DeleteOlderThan(_ context.Context, before time.Time) (int64, error) {
	if r.deleted != nil {
		return r.deleted(before), nil
	}
	return 0, nil
}

func (r *memOutbox) CountByStatus(context.Context) (map[shared.OutboxStatus]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[shared.OutboxStatus]int64)
	for _, e := range r.entries {
		counts[e.Status]++
	}
	return counts, nil
}

func (r *memOutbox) status(id uuid.UUID) shared.OutboxStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[id].Status
}

type processorFixture struct {
	repo      *memOutbox
	handler   *testHandler
	processor *OutboxProcessor
}

func newProcessorFixture(t *testing.T, config OutboxProcessorConfig) *processorFixture {
	t.Helper()
	serializer := NewEventSerializer()
	RegisterEvent[testEvent](serializer, "TestEvent")

	bus := NewInMemoryEventBus(zap.NewNop())
	handler := newTestHandler("TestEvent")
	bus.Subscribe(handler, "TestEvent")

	repo := newMemOutbox()
	return &processorFixture{
		repo:      repo,
		handler:   handler,
		processor: NewOutboxProcessor(repo, bus, serializer, config, zap.NewNop()),
	}
}

func (f *processorFixture) enqueue(t *testing.T, eventType string) *shared.OutboxEntry {
	t.Helper()
	event := newTestEvent(eventType, uuid.New())
	payload, err := NewEventSerializer().Serialize(event)
	require.NoError(t, err)
	entry := shared.NewOutboxEntry(event, payload)
	require.NoError(t, f.repo.Save(context.Background(), entry))
	return entry
}

func TestDefaultOutboxProcessorConfig(t *testing.T) {
	config := DefaultOutboxProcessorConfig()

	assert.Equal(t, 100, config.BatchSize)
	assert.Equal(t, 5*time.Second, config.PollInterval)
	assert.True(t, config.CleanupEnabled)
	assert.Equal(t, 7*24*time.Hour, config.CleanupRetention)
	assert.Equal(t, time.Hour, config.CleanupInterval)
}

func TestOutboxProcessor_ProcessBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("publishes pending entries", func(t *testing.T) {
		f := newProcessorFixture(t, DefaultOutboxProcessorConfig())
		a := f.enqueue(t, "TestEvent")
		b := f.enqueue(t, "TestEvent")

		result := f.processor.ProcessBatch(ctx)

		assert.Equal(t, BatchResult{Claimed: 2, Sent: 2}, result)
		assert.Len(t, f.handler.getHandled(), 2)
		assert.Equal(t, shared.OutboxStatusSent, f.repo.status(a.ID))
		assert.Equal(t, shared.OutboxStatusSent, f.repo.status(b.ID))

		assert.Equal(t, BatchResult{}, f.processor.ProcessBatch(ctx))
	})

	t.Run("respects the batch size", func(t *testing.T) {
		config := DefaultOutboxProcessorConfig()
		config.BatchSize = 2
		f := newProcessorFixture(t, config)
		for range 3 {
			f.enqueue(t, "TestEvent")
		}

		assert.Equal(t, 2, f.processor.ProcessBatch(ctx).Sent)
		assert.Equal(t, 1, f.processor.ProcessBatch(ctx).Sent)
	})

	t.Run("handler failure schedules a retry", func(t *testing.T) {
		f := newProcessorFixture(t, DefaultOutboxProcessorConfig())
		f.handler.setError(errors.New("gateway unavailable"))
		entry := f.enqueue(t, "TestEvent")

		result := f.processor.ProcessBatch(ctx)

		assert.Equal(t, BatchResult{Claimed: 1, Failed: 1}, result)
		assert.Equal(t, shared.OutboxStatusFailed, entry.Status)
		assert.Equal(t, 1, entry.RetryCount)
		assert.Contains(t, entry.LastError, "gateway unavailable")
		require.NotNil(t, entry.NextRetryAt)

		// not due yet
		assert.Equal(t, BatchResult{}, f.processor.ProcessBatch(ctx))

		f.handler.setError(nil)
		past := time.Now().Add(-time.Second)
		entry.NextRetryAt = &past

		assert.Equal(t, BatchResult{Claimed: 1, Sent: 1}, f.processor.ProcessBatch(ctx))
		assert.Len(t, f.handler.getHandled(), 2)
		assert.Equal(t, shared.OutboxStatusSent, f.repo.status(entry.ID))
	})

	t.Run("unknown event type ends dead once attempts run out", func(t *testing.T) {
		f := newProcessorFixture(t, DefaultOutboxProcessorConfig())
		entry := f.enqueue(t, "Unregistered")
		entry.MaxRetries = 1

		result := f.processor.ProcessBatch(ctx)

		assert.Equal(t, BatchResult{Claimed: 1, Dead: 1}, result)
		assert.True(t, entry.IsDead())
		assert.Contains(t, entry.LastError, "unknown event type")
		assert.Empty(t, f.handler.getHandled())
	})

	t.Run("load failure skips the retry pass", func(t *testing.T) {
		f := newProcessorFixture(t, DefaultOutboxProcessorConfig())
		f.repo.findPendingErr = errors.New("db down")
		retryQueried := false
		f.repo.retryable = func(time.Time) []*shared.OutboxEntry {
			retryQueried = true
			return nil
		}

		assert.Equal(t, BatchResult{}, f.processor.ProcessBatch(ctx))
		assert.False(t, retryQueried)
	})

}

func TestOutboxProcessor_StartStop(t *testing.T) {
	f := newProcessorFixture(t, OutboxProcessorConfig{BatchSize: 10, PollInterval: 10 * time.Millisecond})
	entry := f.enqueue(t, "TestEvent")

	require.NoError(t, f.processor.Start(context.Background()))
	assert.ErrorIs(t, f.processor.Start(context.Background()), ErrProcessorRunning)

	assert.Eventually(t, func() bool {
		return f.repo.status(entry.ID) == shared.OutboxStatusSent
	}, 2*time.Second, 10*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, f.processor.Stop(stopCtx))
	require.NoError(t, f.processor.Stop(stopCtx))

	t.Run("can be started again", func(t *testing.T) {
		require.NoError(t, f.processor.Start(context.Background()))
		require.NoError(t, f.processor.Stop(stopCtx))
	})
}

func TestOutboxProcessor_Cleanup(t *testing.T) {
	config := DefaultOutboxProcessorConfig()
	f := newProcessorFixture(t, config)
	var cutoff time.Time
	f.repo.deleted = func(before time.Time) int64 {
		cutoff = before
		return 3
	}

	f.processor.cleanup(context.Background())

	assert.WithinDuration(t, time.Now().Add(-config.CleanupRetention), cutoff, time.Second)
}
