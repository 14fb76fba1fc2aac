package memory

import (
	"context"
	"sync"

	appsales "github.com/erp/pos/internal/application/sales"
	"github.com/erp/pos/internal/domain/sales"
	"github.com/erp/pos/internal/domain/shared"
	"go.uber.org/zap"
)

// TransactionScope runs a unit of work against the Store.
// Every sale the unit reads or writes stays locked until it ends, so two
// units on one sale run one after the other. Writes are journaled and
// undone if fn fails; recorded events are published only after fn has succeeded.
type TransactionScope struct {
	store     *Store
	publisher shared.EventPublisher
}

// NewTransactionScope creates a scope that publishes committed events to publisher.
// A nil publisher drops events.
func NewTransactionScope(store *Store, publisher shared.EventPublisher) *TransactionScope {
	return &TransactionScope{store: store, publisher: publisher}
}

// Execute runs fn and commits or rolls back its writes
func (s *TransactionScope) Execute(ctx context.Context, fn func(ctx context.Context, stores appsales.TransactionalStores) error) error {
	stores := &transactionalStores{store: s.store, journal: newJournal(s.store)}

	err := fn(ctx, stores)
	if err != nil {
		stores.journal.rollback()
	}
	stores.journal.release()
	if err != nil {
		return err
	}

	events := stores.recorded()
	if len(events) == 0 || s.publisher == nil {
		return nil
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		// the unit of work is already applied; a failing subscriber cannot undo it
		s.store.logger.Warn("Failed to publish committed events",
			zap.Int("event_count", len(events)),
			zap.Error(err))
	}
	return nil
}

type transactionalStores struct {
	store   *Store
	journal *journal

	mu     sync.Mutex
	events []shared.DomainEvent
}

func (t *transactionalStores) SaleRepo() sales.SaleRepository {
	return &SaleRepository{store: t.store, journal: t.journal}
}

func (t *transactionalStores) StockLedger() sales.StockLedger {
	return &StockLedger{store: t.store, journal: t.journal}
}

func (t *transactionalStores) Events() appsales.EventRecorder {
	return t
}

// Record buffers events until the unit of work succeeds
func (t *transactionalStores) Record(ctx context.Context, events ...shared.DomainEvent) error {
	t.mu.Lock()
	t.events = append(t.events, events...)
	t.mu.Unlock()
	return nil
}

func (t *transactionalStores) recorded() []shared.DomainEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.events
}

// Ensure TransactionScope implements TransactionScope
var _ appsales.TransactionScope = (*TransactionScope)(nil)
