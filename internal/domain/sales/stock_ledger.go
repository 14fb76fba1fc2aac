package sales

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/pos/internal/domain/shared"
	"github.com/google/uuid"
)

// StockDelta is a signed change to a product's quantity on hand
type StockDelta struct {
	ProductID uuid.UUID
	Delta     int64
}

// StockReservation records what a sale committed against one product,
// so a void can put back exactly that amount later.
type StockReservation struct {
	ID          uuid.UUID
	SaleID      uuid.UUID
	ProductID   uuid.UUID
	Delta       int64
	CommittedAt time.Time
	ReversedAt  *time.Time
}

// IsReversed reports whether the reservation has been put back
func (r StockReservation) IsReversed() bool {
	return r.ReversedAt != nil
}

// InsufficientStockError is returned when a commit would drive a product below zero
type InsufficientStockError struct {
	ProductID uuid.UUID
	Requested int64
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// Unwrap makes errors.Is(err, shared.ErrInsufficientStock) hold
func (e *InsufficientStockError) Unwrap() error {
	return shared.ErrInsufficientStock
}

// NewInsufficientStockError builds the error for a negative delta that could not be applied
func NewInsufficientStockError(productID uuid.UUID, delta, available int64) *InsufficientStockError {
	requested := delta
	if requested < 0 {
		requested = -requested
	}
	return &InsufficientStockError{ProductID: productID, Requested: requested, Available: available}
}

// StockLedger owns the quantity on hand of every product.
// Implementations serialize changes per product and apply each change as a
// conditional update, so quantity on hand can never go below zero.
type StockLedger interface {
	// Commit applies a single signed delta outside of any sale
	Commit(ctx context.Context, productID uuid.UUID, delta int64) error

	// CommitBatch applies every delta for a sale or none of them.
	// On failure the returned error is an *InsufficientStockError naming the product.
	CommitBatch(ctx context.Context, saleID uuid.UUID, deltas []StockDelta) ([]StockReservation, error)

	// ReverseBatch applies the inverse of every unreversed reservation of a sale
	ReverseBatch(ctx context.Context, saleID uuid.UUID) ([]StockReservation, error)

	// Reservations lists what a sale has committed
	Reservations(ctx context.Context, saleID uuid.UUID) ([]StockReservation, error)

	// QuantityOnHand returns the current quantity of a product
	QuantityOnHand(ctx context.Context, productID uuid.UUID) (int64, error)
}
