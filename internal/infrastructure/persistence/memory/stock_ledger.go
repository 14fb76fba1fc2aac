package memory

import (
	"context"
	"sort"
	"time"

	"github.com/erp/pos/internal/domain/sales"
	"github.com/erp/pos/internal/domain/shared"
	"github.com/google/uuid"
)

// StockLedger implements StockLedger with one mutex per product.
// A batch locks all of its products in product-id order, checks every
// delta and only then applies them, so a batch is never half visible.
type StockLedger struct {
	store   *Store
	journal *journal
}

// NewStockLedger creates a ledger whose changes are applied immediately
func NewStockLedger(store *Store) *StockLedger {
	return &StockLedger{store: store}
}

// Commit applies one signed delta to a product
func (l *StockLedger) Commit(ctx context.Context, productID uuid.UUID, delta int64) error {
	if delta == 0 {
		return nil
	}
	undo, err := l.apply([]sales.StockDelta{{ProductID: productID, Delta: delta}})
	if err != nil {
		return err
	}
	l.journal.add(undo)
	return nil
}

// CommitBatch applies all deltas of a sale or none and records a reservation per product
func (l *StockLedger) CommitBatch(ctx context.Context, saleID uuid.UUID, deltas []sales.StockDelta) ([]sales.StockReservation, error) {
	merged := mergeDeltas(deltas)
	if len(merged) == 0 {
		return nil, nil
	}

	l.journal.lockSale(saleID)
	l.store.resMu.Lock()
	defer l.store.resMu.Unlock()

	for _, r := range l.store.reservations[saleID] {
		if !r.IsReversed() {
			return nil, shared.NewInvalidStateError("Stock for sale %s is already committed", saleID)
		}
	}

	undo, err := l.apply(merged)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	created := make([]sales.StockReservation, len(merged))
	for i, d := range merged {
		created[i] = sales.StockReservation{
			ID:          uuid.New(),
			SaleID:      saleID,
			ProductID:   d.ProductID,
			Delta:       d.Delta,
			CommittedAt: now,
		}
	}
	previous := l.store.reservations[saleID]
	l.store.reservations[saleID] = append(append([]sales.StockReservation(nil), previous...), created...)

	l.journal.add(func() {
		l.store.resMu.Lock()
		l.store.reservations[saleID] = previous
		l.store.resMu.Unlock()
		undo()
	})

	result := make([]sales.StockReservation, len(created))
	copy(result, created)
	return result, nil
}

// ReverseBatch puts back every unreversed reservation of a sale and marks them reversed
func (l *StockLedger) ReverseBatch(ctx context.Context, saleID uuid.UUID) ([]sales.StockReservation, error) {
	l.journal.lockSale(saleID)
	l.store.resMu.Lock()
	defer l.store.resMu.Unlock()

	previous := l.store.reservations[saleID]
	var inverse []sales.StockDelta
	for _, r := range previous {
		if !r.IsReversed() {
			inverse = append(inverse, sales.StockDelta{ProductID: r.ProductID, Delta: -r.Delta})
		}
	}
	if len(inverse) == 0 {
		return []sales.StockReservation{}, nil
	}

	undo, err := l.apply(mergeDeltas(inverse))
	if err != nil {
		return nil, err
	}

	now := time.Now()
	updated := make([]sales.StockReservation, len(previous))
	var reversed []sales.StockReservation
	for i, r := range previous {
		if !r.IsReversed() {
			r.ReversedAt = &now
			reversed = append(reversed, r)
		}
		updated[i] = r
	}
	l.store.reservations[saleID] = updated

	l.journal.add(func() {
		l.store.resMu.Lock()
		l.store.reservations[saleID] = previous
		l.store.resMu.Unlock()
		undo()
	})
	return reversed, nil
}

// Reservations lists what a sale has committed, reversed or not
func (l *StockLedger) Reservations(ctx context.Context, saleID uuid.UUID) ([]sales.StockReservation, error) {
	l.store.resMu.Lock()
	defer l.store.resMu.Unlock()
	result := make([]sales.StockReservation, len(l.store.reservations[saleID]))
	copy(result, l.store.reservations[saleID])
	return result, nil
}

// QuantityOnHand returns the current quantity of a product
func (l *StockLedger) QuantityOnHand(ctx context.Context, productID uuid.UUID) (int64, error) {
	level, ok := l.store.level(productID)
	if !ok {
		return 0, shared.NewDomainError(shared.CodeNotFound, "Stock level not found")
	}
	level.mu.Lock()
	defer level.mu.Unlock()
	return level.qty, nil
}

// apply checks and applies sorted, merged deltas under their product locks.
// It returns a function that puts the quantities back.
func (l *StockLedger) apply(deltas []sales.StockDelta) (func(), error) {
	levels := make([]*stockLevel, len(deltas))
	for i, d := range deltas {
		level, ok := l.store.level(d.ProductID)
		if !ok {
			if d.Delta < 0 {
				return nil, sales.NewInsufficientStockError(d.ProductID, d.Delta, 0)
			}
			return nil, shared.NewDomainError(shared.CodeNotFound, "Product has no stock level")
		}
		levels[i] = level
	}

	for _, level := range levels {
		level.mu.Lock()
	}
	defer func() {
		for _, level := range levels {
			level.mu.Unlock()
		}
	}()

	for i, d := range deltas {
		if levels[i].qty+d.Delta < 0 {
			return nil, sales.NewInsufficientStockError(d.ProductID, d.Delta, levels[i].qty)
		}
	}
	for i, d := range deltas {
		levels[i].qty += d.Delta
	}

	return func() {
		for _, level := range levels {
			level.mu.Lock()
		}
		for i, d := range deltas {
			levels[i].qty -= d.Delta
		}
		for _, level := range levels {
			level.mu.Unlock()
		}
	}, nil
}

// mergeDeltas sums deltas per product, drops zeros and orders by product ID
func mergeDeltas(deltas []sales.StockDelta) []sales.StockDelta {
	totals := make(map[uuid.UUID]int64, len(deltas))
	for _, d := range deltas {
		totals[d.ProductID] += d.Delta
	}
	merged := make([]sales.StockDelta, 0, len(totals))
	for productID, delta := range totals {
		if delta != 0 {
			merged = append(merged, sales.StockDelta{ProductID: productID, Delta: delta})
		}
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].ProductID.String() < merged[j].ProductID.String()
	})
	return merged
}

// Ensure StockLedger implements StockLedger
var _ sales.StockLedger = (*StockLedger)(nil)
