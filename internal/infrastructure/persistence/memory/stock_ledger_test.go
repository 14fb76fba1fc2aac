package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/erp/pos/internal/domain/sales"
	"github.com/erp/pos/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedProduct(t *testing.T, store *Store, tenantID uuid.UUID, price string, qty int64) *sales.Product {
	t.Helper()
	p := &sales.Product{
		ID:             uuid.New(),
		TenantID:       tenantID,
		SKU:            "SKU-" + price,
		Name:           "Product " + price,
		Unit:           "pcs",
		ListPrice:      decimal.RequireFromString(price),
		QuantityOnHand: qty,
	}
	require.NoError(t, NewProductCatalog(store).Save(context.Background(), p))
	return p
}

func TestStockLedger_CommitBatch(t *testing.T) {
	store := NewStore()
	ledger := NewStockLedger(store)
	ctx := context.Background()
	tenantID := uuid.New()

	a := seedProduct(t, store, tenantID, "1.00", 5)
	b := seedProduct(t, store, tenantID, "2.00", 1)
	saleID := uuid.New()

	reservations, err := ledger.CommitBatch(ctx, saleID, []sales.StockDelta{
		{ProductID: a.ID, Delta: -2},
		{ProductID: b.ID, Delta: -1},
	})
	require.NoError(t, err)
	assert.Len(t, reservations, 2)

	qa, _ := ledger.QuantityOnHand(ctx, a.ID)
	qb, _ := ledger.QuantityOnHand(ctx, b.ID)
	assert.Equal(t, int64(3), qa)
	assert.Equal(t, int64(0), qb)

	_, err = ledger.CommitBatch(ctx, saleID, []sales.StockDelta{{ProductID: a.ID, Delta: -1}})
	assert.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestStockLedger_CommitBatch_AllOrNothing(t *testing.T) {
	store := NewStore()
	ledger := NewStockLedger(store)
	ctx := context.Background()
	tenantID := uuid.New()

	a := seedProduct(t, store, tenantID, "1.00", 5)
	b := seedProduct(t, store, tenantID, "2.00", 0)
	saleID := uuid.New()

	_, err := ledger.CommitBatch(ctx, saleID, []sales.StockDelta{
		{ProductID: a.ID, Delta: -2},
		{ProductID: b.ID, Delta: -1},
	})
	var stockErr *sales.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, b.ID, stockErr.ProductID)
	assert.Equal(t, int64(0), stockErr.Available)

	qa, _ := ledger.QuantityOnHand(ctx, a.ID)
	assert.Equal(t, int64(5), qa)
	reservations, err := ledger.Reservations(ctx, saleID)
	require.NoError(t, err)
	assert.Empty(t, reservations)

	_, err = ledger.CommitBatch(ctx, saleID, []sales.StockDelta{{ProductID: uuid.New(), Delta: -1}})
	assert.ErrorIs(t, err, shared.ErrInsufficientStock)
}

func TestStockLedger_ReverseBatch(t *testing.T) {
	store := NewStore()
	ledger := NewStockLedger(store)
	ctx := context.Background()

	a := seedProduct(t, store, uuid.New(), "1.00", 4)
	saleID := uuid.New()

	_, err := ledger.CommitBatch(ctx, saleID, []sales.StockDelta{{ProductID: a.ID, Delta: -4}})
	require.NoError(t, err)

	reversed, err := ledger.ReverseBatch(ctx, saleID)
	require.NoError(t, err)
	require.Len(t, reversed, 1)
	assert.True(t, reversed[0].IsReversed())
	assert.Equal(t, int64(-4), reversed[0].Delta)

	qa, _ := ledger.QuantityOnHand(ctx, a.ID)
	assert.Equal(t, int64(4), qa)

	again, err := ledger.ReverseBatch(ctx, saleID)
	require.NoError(t, err)
	assert.Empty(t, again)

	stored, err := ledger.Reservations(ctx, saleID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.True(t, stored[0].IsReversed())
}

func TestStockLedger_ConcurrentCommitsNeverOversell(t *testing.T) {
	store := NewStore()
	ledger := NewStockLedger(store)
	ctx := context.Background()

	p := seedProduct(t, store, uuid.New(), "1.00", 10)

	var wg sync.WaitGroup
	var succeeded, rejected int64
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.CommitBatch(ctx, uuid.New(), []sales.StockDelta{{ProductID: p.ID, Delta: -1}})
			switch {
			case err == nil:
				atomic.AddInt64(&succeeded, 1)
			case errors.Is(err, shared.ErrInsufficientStock):
				atomic.AddInt64(&rejected, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(10), succeeded)
	assert.Equal(t, int64(40), rejected)
	q, _ := ledger.QuantityOnHand(ctx, p.ID)
	assert.Equal(t, int64(0), q)
}

func TestStockLedger_JournalRollback(t *testing.T) {
	store := NewStore()
	j := newJournal(store)
	defer j.release()
	ledger := &StockLedger{store: store, journal: j}
	ctx := context.Background()

	p := seedProduct(t, store, uuid.New(), "1.00", 3)
	saleID := uuid.New()

	_, err := ledger.CommitBatch(ctx, saleID, []sales.StockDelta{{ProductID: p.ID, Delta: -3}})
	require.NoError(t, err)
	require.NoError(t, ledger.Commit(ctx, p.ID, 2))

	j.rollback()

	q, _ := ledger.QuantityOnHand(ctx, p.ID)
	assert.Equal(t, int64(3), q)
	reservations, _ := ledger.Reservations(ctx, saleID)
	assert.Empty(t, reservations)
}

func TestMergeDeltas(t *testing.T) {
	a := uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	b := uuid.MustParse("00000000-0000-0000-0000-00000000000b")

	merged := mergeDeltas([]sales.StockDelta{
		{ProductID: b, Delta: -1},
		{ProductID: a, Delta: -1},
		{ProductID: a, Delta: -1},
	})
	assert.Equal(t, []sales.StockDelta{{ProductID: a, Delta: -2}, {ProductID: b, Delta: -1}}, merged)
}
