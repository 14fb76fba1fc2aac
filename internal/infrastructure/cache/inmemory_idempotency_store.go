package cache

import (
	"context"
	"sync"
	"time"

	"github.com/erp/pos/internal/domain/shared"
)

// DefaultSweepInterval is how often expired keys are dropped from an in-memory store
const DefaultSweepInterval = 5 * time.Minute

// InMemoryIdempotencyStore keeps processed keys in a map with a per-key deadline.
// Keys are only visible to this process, so it serves a single server or tests.
type InMemoryIdempotencyStore struct {
	mu       sync.Mutex
	deadline map[string]time.Time
	now      func() time.Time

	sweepEvery time.Duration
	stop       chan struct{}
	stopped    chan struct{}
	closeOnce  sync.Once
}

// InMemoryOption configures an InMemoryIdempotencyStore
type InMemoryOption func(*InMemoryIdempotencyStore)

// WithClock replaces time.Now, for tests that move time by hand
func WithClock(now func() time.Time) InMemoryOption {
	return func(s *InMemoryIdempotencyStore) { s.now = now }
}

// WithSweepInterval changes how often expired keys are dropped
func WithSweepInterval(d time.Duration) InMemoryOption {
	return func(s *InMemoryIdempotencyStore) {
		if d > 0 {
			s.sweepEvery = d
		}
	}
}

// NewInMemoryIdempotencyStore creates the store and starts its sweeper. Close stops it.
func NewInMemoryIdempotencyStore(opts ...InMemoryOption) *InMemoryIdempotencyStore {
	s := &InMemoryIdempotencyStore{
		deadline:   make(map[string]time.Time),
		now:        time.Now,
		sweepEvery: DefaultSweepInterval,
		stop:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.sweepLoop()
	return s
}

// live reports whether key is present and not yet expired. Callers hold mu.
func (s *InMemoryIdempotencyStore) live(key string) bool {
	d, ok := s.deadline[key]
	return ok && s.now().Before(d)
}

// MarkProcessed stores key for ttl. It returns false when a live key is already there.
func (s *InMemoryIdempotencyStore) MarkProcessed(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.live(key) {
		return false, nil
	}
	s.deadline[key] = s.now().Add(ttl)
	return true, nil
}

// IsProcessed reports whether key is stored and not expired
func (s *InMemoryIdempotencyStore) IsProcessed(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live(key), nil
}

// Forget removes key
func (s *InMemoryIdempotencyStore) Forget(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.deadline, key)
	return nil
}

// Size returns the number of stored keys, expired ones included until the next sweep
func (s *InMemoryIdempotencyStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.deadline)
}

// Close stops the sweeper. It is safe to call more than once.
func (s *InMemoryIdempotencyStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
		<-s.stopped
	})
	return nil
}

func (s *InMemoryIdempotencyStore) sweepLoop() {
	defer close(s.stopped)

	ticker := time.NewTicker(s.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep drops expired keys and returns how many were dropped
func (s *InMemoryIdempotencyStore) sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for key := range s.deadline {
		if !s.live(key) {
			delete(s.deadline, key)
			dropped++
		}
	}
	return dropped
}

var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
