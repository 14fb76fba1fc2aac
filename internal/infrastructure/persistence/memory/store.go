// Package memory keeps sales, products and stock levels in process memory.
// It backs the memory database driver used for demos and single-process tests;
// nothing survives a restart.
package memory

import (
	"sync"

	"github.com/erp/pos/internal/domain/sales"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store holds all state shared by the in-memory repositories
type Store struct {
	mu       sync.RWMutex
	sales    map[uuid.UUID]*sales.Sale
	products map[uuid.UUID]sales.Product
	levels   map[uuid.UUID]*stockLevel

	// saleLocks serialize units of work on the same sale, like a row lock held to commit
	saleLocks map[uuid.UUID]*sync.Mutex

	// resMu orders reservation bookkeeping; it is taken before any product lock
	resMu        sync.Mutex
	reservations map[uuid.UUID][]sales.StockReservation

	logger *zap.Logger
}

// stockLevel is the quantity on hand of one product behind its own lock
type stockLevel struct {
	mu  sync.Mutex
	qty int64
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger used by the store and its transaction scope
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates an empty Store
func NewStore(opts ...Option) *Store {
	s := &Store{
		sales:        make(map[uuid.UUID]*sales.Sale),
		products:     make(map[uuid.UUID]sales.Product),
		levels:       make(map[uuid.UUID]*stockLevel),
		saleLocks:    make(map[uuid.UUID]*sync.Mutex),
		reservations: make(map[uuid.UUID][]sales.StockReservation),
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) level(productID uuid.UUID) (*stockLevel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.levels[productID]
	return l, ok
}

func (s *Store) saleLock(saleID uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.saleLocks[saleID]
	if !ok {
		l = &sync.Mutex{}
		s.saleLocks[saleID] = l
	}
	return l
}

// cloneSale copies a sale so callers never share line or payment slices with the store
func cloneSale(src *sales.Sale) *sales.Sale {
	dst := *src
	dst.Lines = sales.NewLineItemSet(src.Lines.Items())
	dst.Payments = sales.NewPaymentSet(src.Payments.Items())
	dst.ClearPendingEvents()
	return &dst
}

// journal collects undo steps of one unit of work and the sale locks it holds.
// A nil journal means writes apply immediately and nothing is locked.
type journal struct {
	store *Store

	mu   sync.Mutex
	undo []func()
	held map[uuid.UUID]*sync.Mutex
}

func newJournal(store *Store) *journal {
	return &journal{store: store, held: make(map[uuid.UUID]*sync.Mutex)}
}

// lockSale takes the sale's lock until release. Taking it twice is a no-op.
// Sale locks come before resMu and product locks.
func (j *journal) lockSale(saleID uuid.UUID) {
	if j == nil {
		return
	}
	j.mu.Lock()
	_, ok := j.held[saleID]
	j.mu.Unlock()
	if ok {
		return
	}

	l := j.store.saleLock(saleID)
	l.Lock()
	j.mu.Lock()
	j.held[saleID] = l
	j.mu.Unlock()
}

// release unlocks every sale taken by the unit of work
func (j *journal) release() {
	j.mu.Lock()
	defer j.mu.Unlock()
	for id, l := range j.held {
		l.Unlock()
		delete(j.held, id)
	}
}

func (j *journal) add(fn func()) {
	if j == nil {
		return
	}
	j.mu.Lock()
	j.undo = append(j.undo, fn)
	j.mu.Unlock()
}

// rollback runs the undo steps newest first
func (j *journal) rollback() {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i := len(j.undo) - 1; i >= 0; i-- {
		j.undo[i]()
	}
	j.undo = nil
}
