package sales

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/erp/pos/internal/domain/shared"
	"github.com/erp/pos/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLedger is a minimal all-or-nothing ledger for aggregate tests
type fakeLedger struct {
	mu           sync.Mutex
	onHand       map[uuid.UUID]int64
	reservations map[uuid.UUID][]StockReservation
	batches      int
}

func newFakeLedger(stock map[uuid.UUID]int64) *fakeLedger {
	return &fakeLedger{onHand: stock, reservations: map[uuid.UUID][]StockReservation{}}
}

func (l *fakeLedger) Commit(_ context.Context, productID uuid.UUID, delta int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.onHand[productID]+delta < 0 {
		return NewInsufficientStockError(productID, delta, l.onHand[productID])
	}
	l.onHand[productID] += delta
	return nil
}

func (l *fakeLedger) CommitBatch(_ context.Context, saleID uuid.UUID, deltas []StockDelta) ([]StockReservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.batches++
	for _, d := range deltas {
		if l.onHand[d.ProductID]+d.Delta < 0 {
			return nil, NewInsufficientStockError(d.ProductID, d.Delta, l.onHand[d.ProductID])
		}
	}
	out := make([]StockReservation, 0, len(deltas))
	for _, d := range deltas {
		l.onHand[d.ProductID] += d.Delta
		out = append(out, StockReservation{ID: uuid.New(), SaleID: saleID, ProductID: d.ProductID, Delta: d.Delta, CommittedAt: time.Now()})
	}
	l.reservations[saleID] = out
	return out, nil
}

func (l *fakeLedger) ReverseBatch(_ context.Context, saleID uuid.UUID) ([]StockReservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var reversed []StockReservation
	now := time.Now()
	for i, r := range l.reservations[saleID] {
		if r.IsReversed() {
			continue
		}
		l.onHand[r.ProductID] -= r.Delta
		l.reservations[saleID][i].ReversedAt = &now
		reversed = append(reversed, l.reservations[saleID][i])
	}
	return reversed, nil
}

func (l *fakeLedger) Reservations(_ context.Context, saleID uuid.UUID) ([]StockReservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]StockReservation(nil), l.reservations[saleID]...), nil
}

func (l *fakeLedger) QuantityOnHand(_ context.Context, productID uuid.UUID) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.onHand[productID], nil
}

var _ StockLedger = (*fakeLedger)(nil)

func newTestSale(t *testing.T) *Sale {
	t.Helper()
	sale, err := NewSale(uuid.New(), "POS-20261015-00001", valueobject.IDR)
	require.NoError(t, err)
	return sale
}

func addTestLine(t *testing.T, sale *Sale, productID uuid.UUID, qty int, price string) LineItem {
	t.Helper()
	line, err := sale.AddLine(lineInput(productID, qty, price))
	require.NoError(t, err)
	return line
}

// checkoutFixture builds the 2x50 + 1x30 sale with a fixed 10 discount
func checkoutFixture(t *testing.T) (*Sale, uuid.UUID, uuid.UUID) {
	t.Helper()
	sale := newTestSale(t)
	p1, p2 := uuid.New(), uuid.New()
	addTestLine(t, sale, p1, 2, "50.00")
	addTestLine(t, sale, p2, 1, "30.00")
	require.NoError(t, sale.ApplyDiscount(dec("10.00"), DiscountTypeFixed))
	return sale, p1, p2
}

func TestSaleStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to SaleStatus
		want     bool
	}{
		{SaleStatusDraft, SaleStatusHeld, true},
		{SaleStatusDraft, SaleStatusCompleted, true},
		{SaleStatusDraft, SaleStatusVoided, false},
		{SaleStatusHeld, SaleStatusDraft, true},
		{SaleStatusHeld, SaleStatusCompleted, false},
		{SaleStatusHeld, SaleStatusVoided, false},
		{SaleStatusCompleted, SaleStatusVoided, true},
		{SaleStatusCompleted, SaleStatusDraft, false},
		{SaleStatusVoided, SaleStatusDraft, false},
		{SaleStatusVoided, SaleStatusVoided, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
	assert.False(t, SaleStatus("X").IsValid())
	assert.True(t, SaleStatusVoided.IsTerminal())
	assert.False(t, SaleStatusHeld.IsTerminal())
}

func TestNewSale(t *testing.T) {
	sale := newTestSale(t)
	assert.Equal(t, SaleStatusDraft, sale.Status)
	assert.Zero(t, sale.Lines.Len())
	assert.Zero(t, sale.Payments.Len())
	assert.True(t, sale.Total.IsZero())
	assert.Equal(t, 1, sale.Version)
	assert.Nil(t, sale.CompletedAt)
	assert.Empty(t, sale.PendingEvents())

	_, err := NewSale(uuid.Nil, "X", valueobject.IDR)
	assert.ErrorIs(t, err, shared.ErrValidation)
	_, err = NewSale(uuid.New(), "", valueobject.IDR)
	assert.ErrorIs(t, err, shared.ErrValidation)

	defaulted, err := NewSale(uuid.New(), "X", "")
	require.NoError(t, err)
	assert.Equal(t, valueobject.DefaultCurrency, defaulted.Currency)
}

func TestSale_CheckoutScenario(t *testing.T) {
	sale, p1, p2 := checkoutFixture(t)
	assert.Equal(t, "130", sale.Subtotal.String())
	assert.Equal(t, "120", sale.Total.String())

	_, err := sale.AddPayment(PaymentMethodCash, dec("120.00"), "")
	require.NoError(t, err)
	assert.Equal(t, "120", sale.PaymentTotal.String())

	ledger := newFakeLedger(map[uuid.UUID]int64{p1: 10, p2: 5})
	deliveryID, err := sale.Complete(context.Background(), ledger, false)
	require.NoError(t, err)

	assert.Equal(t, uuid.Nil, deliveryID)
	assert.Equal(t, SaleStatusCompleted, sale.Status)
	require.NotNil(t, sale.CompletedAt)
	assert.Equal(t, int64(8), ledger.onHand[p1])
	assert.Equal(t, int64(4), ledger.onHand[p2])

	events := sale.PendingEvents()
	require.Len(t, events, 1)
	assert.Equal(t, EventTypeSaleCompleted, events[0].EventType())
}

func TestSale_CompleteForDelivery(t *testing.T) {
	sale, p1, p2 := checkoutFixture(t)
	_, err := sale.AddPayment(PaymentMethodCard, dec("120"), "AUTH-9")
	require.NoError(t, err)

	deliveryID, err := sale.Complete(context.Background(), newFakeLedger(map[uuid.UUID]int64{p1: 2, p2: 1}), true)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, deliveryID)
	require.NotNil(t, sale.DeliveryID)
	assert.Equal(t, deliveryID, *sale.DeliveryID)

	events := sale.PendingEvents()
	require.Len(t, events, 2)
	req, ok := events[1].(*SaleDeliveryRequestedEvent)
	require.True(t, ok)
	assert.Equal(t, sale.ID, req.SaleID)
	assert.Equal(t, deliveryID, req.DeliveryID)
	require.Len(t, req.Lines, 2)
	assert.Equal(t, 2, req.Lines[0].Quantity)
	assert.Equal(t, p2, req.Lines[1].ProductID)
}

func TestSale_CompleteInsufficientStockLeavesSaleUnchanged(t *testing.T) {
	sale, p1, p2 := checkoutFixture(t)
	_, err := sale.AddPayment(PaymentMethodCash, dec("120"), "")
	require.NoError(t, err)

	before := *sale
	ledger := newFakeLedger(map[uuid.UUID]int64{p1: 10, p2: 0})

	_, err = sale.Complete(context.Background(), ledger, true)

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, p2, stockErr.ProductID)
	assert.Equal(t, int64(1), stockErr.Requested)
	assert.ErrorIs(t, err, shared.ErrInsufficientStock)

	assert.Equal(t, before, *sale)
	assert.Equal(t, int64(10), ledger.onHand[p1])
	assert.Equal(t, int64(0), ledger.onHand[p2])
}

func TestSale_CompletePreconditions(t *testing.T) {
	ctx := context.Background()

	t.Run("no lines", func(t *testing.T) {
		sale := newTestSale(t)
		ledger := newFakeLedger(map[uuid.UUID]int64{})
		_, err := sale.Complete(ctx, ledger, false)
		assert.ErrorIs(t, err, shared.ErrInvalidState)
		assert.Zero(t, ledger.batches)
	})

	t.Run("underpaid", func(t *testing.T) {
		sale, p1, p2 := checkoutFixture(t)
		_, err := sale.AddPayment(PaymentMethodCash, dec("119.99"), "")
		require.NoError(t, err)
		ledger := newFakeLedger(map[uuid.UUID]int64{p1: 5, p2: 5})

		_, err = sale.Complete(ctx, ledger, false)
		assert.ErrorIs(t, err, shared.ErrInvalidState)
		assert.Equal(t, SaleStatusDraft, sale.Status)
		assert.Zero(t, ledger.batches)
	})

	t.Run("zero total", func(t *testing.T) {
		sale := newTestSale(t)
		p := uuid.New()
		addTestLine(t, sale, p, 1, "10")
		require.NoError(t, sale.ApplyDiscount(dec("100"), DiscountTypePercent))
		assert.True(t, sale.Total.IsZero())

		_, err := sale.Complete(ctx, newFakeLedger(map[uuid.UUID]int64{p: 1}), false)
		assert.ErrorIs(t, err, shared.ErrInvalidState)
	})

	t.Run("held sale must be retrieved first", func(t *testing.T) {
		sale, p1, p2 := checkoutFixture(t)
		_, err := sale.AddPayment(PaymentMethodCash, dec("120"), "")
		require.NoError(t, err)
		require.NoError(t, sale.Hold())

		_, err = sale.Complete(ctx, newFakeLedger(map[uuid.UUID]int64{p1: 5, p2: 5}), false)
		assert.ErrorIs(t, err, shared.ErrInvalidState)
	})
}

func TestSale_Totals(t *testing.T) {
	sale := newTestSale(t)
	p := uuid.New()
	line := addTestLine(t, sale, p, 3, "33.333")

	assert.Equal(t, "100", sale.Subtotal.String(), "99.999 rounds to 100.00")

	require.NoError(t, sale.ApplyDiscount(dec("150"), DiscountTypePercent))
	assert.True(t, sale.EffectiveDiscount.Equal(sale.Subtotal))
	assert.True(t, sale.Total.IsZero())

	require.NoError(t, sale.ApplyDiscount(dec("12.5"), DiscountTypePercent))
	assert.Equal(t, "12.5", sale.EffectiveDiscount.String())
	assert.Equal(t, "87.5", sale.Total.String())

	require.NoError(t, sale.SetLineDiscount(line.ID, dec("9.999")))
	assert.Equal(t, "90", sale.Subtotal.String())
	assert.True(t, sale.Total.Equal(sale.Subtotal.Sub(sale.EffectiveDiscount)))

	require.NoError(t, sale.ApplyDiscount(dec("500"), DiscountTypeFixed))
	assert.True(t, sale.Total.IsZero())
	assert.True(t, sale.EffectiveDiscount.Equal(sale.Subtotal))

	require.NoError(t, sale.UpdateLineQuantity(line.ID, 0))
	assert.Zero(t, sale.Lines.Len())
	assert.True(t, sale.Subtotal.IsZero())
	assert.True(t, sale.Total.IsZero())
}

func TestSale_AddLineMergesSameProduct(t *testing.T) {
	sale := newTestSale(t)
	p := uuid.New()
	addTestLine(t, sale, p, 1, "4.25")
	addTestLine(t, sale, p, 2, "4.25")

	require.Equal(t, 1, sale.Lines.Len())
	assert.Equal(t, 3, sale.Lines.Items()[0].Quantity)
	assert.Equal(t, "12.75", sale.Subtotal.String())
}

func TestSale_OversizedQuantityCannotRestock(t *testing.T) {
	sale := newTestSale(t)
	a, b := uuid.New(), uuid.New()
	addTestLine(t, sale, a, MaxLineQuantity, "1.00")

	_, err := sale.AddLine(lineInput(a, MaxLineQuantity, "1.00"))
	require.ErrorIs(t, err, shared.ErrValidation)
	addTestLine(t, sale, b, 1, "1.00")

	_, err = sale.AddPayment(PaymentMethodCash, sale.Total, "")
	require.NoError(t, err)

	ledger := newFakeLedger(map[uuid.UUID]int64{a: 10, b: 10})
	_, err = sale.Complete(context.Background(), ledger, false)
	assert.ErrorIs(t, err, shared.ErrInsufficientStock)
	assert.Equal(t, int64(10), ledger.onHand[a])
	assert.Equal(t, int64(10), ledger.onHand[b])
	assert.Equal(t, SaleStatusDraft, sale.Status)
}

func TestSale_AddPaymentOnlyInDraft(t *testing.T) {
	sale := newTestSale(t)
	addTestLine(t, sale, uuid.New(), 1, "10")
	require.NoError(t, sale.Hold())

	_, err := sale.AddPayment(PaymentMethodCash, dec("10"), "")
	assert.ErrorIs(t, err, shared.ErrInvalidState)

	require.NoError(t, sale.Retrieve())
	_, err = sale.AddPayment(PaymentMethodCash, dec("10"), "")
	assert.NoError(t, err)
}

func TestSale_HoldAndRetrieve(t *testing.T) {
	t.Run("empty cart cannot be held", func(t *testing.T) {
		sale := newTestSale(t)
		err := sale.Hold()
		assert.ErrorIs(t, err, shared.ErrInvalidState)
		assert.Equal(t, SaleStatusDraft, sale.Status)
	})

	t.Run("retrieve restores identical state", func(t *testing.T) {
		sale, _, _ := checkoutFixture(t)
		_, err := sale.AddPayment(PaymentMethodEWallet, dec("50"), "WALLET-1")
		require.NoError(t, err)

		lines := sale.Lines.Items()
		payments := sale.Payments.Items()
		subtotal, total, paid := sale.Subtotal, sale.Total, sale.PaymentTotal
		discount, discountType := sale.DiscountAmount, sale.DiscountType

		require.NoError(t, sale.Hold())
		assert.Equal(t, SaleStatusHeld, sale.Status)
		assert.NotNil(t, sale.HeldAt)

		for _, mutate := range []func() error{
			func() error { _, err := sale.AddLine(lineInput(uuid.New(), 1, "1")); return err },
			func() error { return sale.ApplyDiscount(dec("1"), DiscountTypeFixed) },
			func() error { return sale.RemoveLine(lines[0].ID) },
			sale.Hold,
		} {
			assert.ErrorIs(t, mutate(), shared.ErrInvalidState)
		}

		require.NoError(t, sale.Retrieve())
		assert.Equal(t, SaleStatusDraft, sale.Status)
		assert.Nil(t, sale.HeldAt)
		assert.Equal(t, lines, sale.Lines.Items())
		assert.Equal(t, payments, sale.Payments.Items())
		assert.Equal(t, subtotal, sale.Subtotal)
		assert.Equal(t, total, sale.Total)
		assert.Equal(t, paid, sale.PaymentTotal)
		assert.Equal(t, discount, sale.DiscountAmount)
		assert.Equal(t, discountType, sale.DiscountType)

		assert.ErrorIs(t, sale.Retrieve(), shared.ErrInvalidState)
	})
}

func TestSale_TerminalStatesRejectMutation(t *testing.T) {
	ctx := context.Background()
	sale, p1, p2 := checkoutFixture(t)
	line := sale.Lines.Items()[0]
	_, err := sale.AddPayment(PaymentMethodCash, dec("150"), "")
	require.NoError(t, err)
	ledger := newFakeLedger(map[uuid.UUID]int64{p1: 5, p2: 5})
	_, err = sale.Complete(ctx, ledger, false)
	require.NoError(t, err)
	sale.ClearPendingEvents()

	mutations := map[string]func() error{
		"add line":      func() error { _, err := sale.AddLine(lineInput(uuid.New(), 1, "1")); return err },
		"update line":   func() error { return sale.UpdateLineQuantity(line.ID, 5) },
		"remove line":   func() error { return sale.RemoveLine(line.ID) },
		"line discount": func() error { return sale.SetLineDiscount(line.ID, dec("1")) },
		"discount":      func() error { return sale.ApplyDiscount(dec("1"), DiscountTypeFixed) },
		"payment":       func() error { _, err := sale.AddPayment(PaymentMethodCash, dec("1"), ""); return err },
		"hold":          sale.Hold,
		"retrieve":      sale.Retrieve,
		"complete":      func() error { _, err := sale.Complete(ctx, ledger, false); return err },
	}

	check := func(status SaleStatus) {
		for name, mutate := range mutations {
			before := *sale
			err := mutate()
			assert.ErrorIs(t, err, shared.ErrInvalidState, "%s on %s", name, status)
			assert.Equal(t, before, *sale, "%s on %s changed the sale", name, status)
		}
	}

	check(SaleStatusCompleted)

	require.NoError(t, sale.Void(ctx, ledger))
	sale.ClearPendingEvents()
	check(SaleStatusVoided)

	before := *sale
	assert.ErrorIs(t, sale.Void(ctx, ledger), shared.ErrInvalidState)
	assert.Equal(t, before, *sale)
}

func TestSale_VoidRestoresStockExactly(t *testing.T) {
	ctx := context.Background()
	sale, p1, p2 := checkoutFixture(t)
	addTestLine(t, sale, p1, 1, "45") // second line for p1 at a different price
	_, err := sale.AddPayment(PaymentMethodCash, dec("165"), "")
	require.NoError(t, err)

	ledger := newFakeLedger(map[uuid.UUID]int64{p1: 7, p2: 3})
	_, err = sale.Complete(ctx, ledger, false)
	require.NoError(t, err)
	assert.Equal(t, int64(4), ledger.onHand[p1])
	assert.Equal(t, int64(2), ledger.onHand[p2])

	// Unrelated stock movement between completion and void
	require.NoError(t, ledger.Commit(ctx, p1, 10))

	require.NoError(t, sale.Void(ctx, ledger))
	assert.Equal(t, SaleStatusVoided, sale.Status)
	assert.NotNil(t, sale.VoidedAt)
	assert.Equal(t, int64(17), ledger.onHand[p1])
	assert.Equal(t, int64(3), ledger.onHand[p2])

	events := sale.PendingEvents()
	voided, ok := events[len(events)-1].(*SaleVoidedEvent)
	require.True(t, ok)
	restocked := voided.Restocked
	sort.Slice(restocked, func(i, j int) bool { return restocked[i].Quantity > restocked[j].Quantity })
	assert.Equal(t, []RestockedProduct{{ProductID: p1, Quantity: 3}, {ProductID: p2, Quantity: 1}}, restocked)
}

func TestSale_VoidRequiresCompleted(t *testing.T) {
	sale, _, _ := checkoutFixture(t)
	ledger := newFakeLedger(map[uuid.UUID]int64{})

	assert.ErrorIs(t, sale.Void(context.Background(), ledger), shared.ErrInvalidState)
	require.NoError(t, sale.Hold())
	assert.ErrorIs(t, sale.Void(context.Background(), ledger), shared.ErrInvalidState)
}

func TestSale_AmountDue(t *testing.T) {
	sale, _, _ := checkoutFixture(t)
	assert.Equal(t, "120", sale.AmountDue().String())

	_, err := sale.AddPayment(PaymentMethodCash, dec("200"), "")
	require.NoError(t, err)
	assert.True(t, sale.AmountDue().IsZero())
	assert.Equal(t, "120.00 IDR", sale.TotalMoney().String())
}
