package sales

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/pos/internal/domain/shared"
	"github.com/erp/pos/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SaleStatus represents the lifecycle state of a sale
type SaleStatus string

const (
	SaleStatusDraft     SaleStatus = "DRAFT"
	SaleStatusHeld      SaleStatus = "HELD"
	SaleStatusCompleted SaleStatus = "COMPLETED"
	SaleStatusVoided    SaleStatus = "VOIDED"
)

// IsValid checks if the status is a valid SaleStatus
func (s SaleStatus) IsValid() bool {
	switch s {
	case SaleStatusDraft, SaleStatusHeld, SaleStatusCompleted, SaleStatusVoided:
		return true
	}
	return false
}

// String returns the string representation of SaleStatus
func (s SaleStatus) String() string {
	return string(s)
}

// CanTransitionTo checks if the status can transition to the target status
func (s SaleStatus) CanTransitionTo(target SaleStatus) bool {
	switch s {
	case SaleStatusDraft:
		return target == SaleStatusHeld || target == SaleStatusCompleted
	case SaleStatusHeld:
		return target == SaleStatusDraft
	case SaleStatusCompleted:
		return target == SaleStatusVoided
	case SaleStatusVoided:
		return false
	}
	return false
}

// IsTerminal reports whether lines, discounts and payments are frozen
func (s SaleStatus) IsTerminal() bool {
	return s == SaleStatusCompleted || s == SaleStatusVoided
}

// Sale is the checkout aggregate root.
//
// Subtotal, EffectiveDiscount, Total and PaymentTotal are derived from the lines,
// the discount inputs and the payments, and are recomputed after every mutation.
// They are rounded to two places; line arithmetic underneath is exact.
type Sale struct {
	shared.TenantAggregateRoot
	SaleNumber        string
	Currency          valueobject.Currency
	Status            SaleStatus
	Lines             LineItemSet
	Payments          PaymentSet
	DiscountAmount    decimal.Decimal
	DiscountType      DiscountType
	Subtotal          decimal.Decimal
	EffectiveDiscount decimal.Decimal
	Total             decimal.Decimal
	PaymentTotal      decimal.Decimal
	HeldAt            *time.Time
	CompletedAt       *time.Time
	VoidedAt          *time.Time
	DeliveryID        *uuid.UUID
}

// NewSale opens an empty draft sale
func NewSale(tenantID uuid.UUID, saleNumber string, currency valueobject.Currency) (*Sale, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewValidationError("Tenant ID is required")
	}
	if saleNumber == "" {
		return nil, shared.NewValidationError("Sale number cannot be empty")
	}
	if len(saleNumber) > 50 {
		return nil, shared.NewValidationError("Sale number cannot exceed 50 characters")
	}
	if currency == "" {
		currency = valueobject.DefaultCurrency
	}

	return &Sale{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		SaleNumber:          saleNumber,
		Currency:            currency,
		Status:              SaleStatusDraft,
		Lines:               NewLineItemSet(nil),
		Payments:            NewPaymentSet(nil),
		DiscountAmount:      decimal.Zero,
		DiscountType:        DiscountTypeFixed,
		Subtotal:            decimal.Zero,
		EffectiveDiscount:   decimal.Zero,
		Total:               decimal.Zero,
		PaymentTotal:        decimal.Zero,
	}, nil
}

func (s *Sale) requireDraft(action string) error {
	if s.Status != SaleStatusDraft {
		return shared.NewInvalidStateError("Cannot %s a sale in %s status", action, s.Status)
	}
	return nil
}

// AddLine adds a product to the sale. The caller resolves the unit price,
// using the catalog list price when the cashier did not override it.
func (s *Sale) AddLine(in LineInput) (LineItem, error) {
	if err := s.requireDraft("add lines to"); err != nil {
		return LineItem{}, err
	}
	line, err := s.Lines.Add(s.ID, in)
	if err != nil {
		return LineItem{}, err
	}
	s.recalculateTotals()
	return line, nil
}

// UpdateLineQuantity sets a line's quantity. Zero or less removes the line.
func (s *Sale) UpdateLineQuantity(lineID uuid.UUID, quantity int) error {
	if err := s.requireDraft("update lines of"); err != nil {
		return err
	}
	if _, err := s.Lines.Update(lineID, quantity); err != nil {
		return err
	}
	s.recalculateTotals()
	return nil
}

// RemoveLine removes a line from the sale
func (s *Sale) RemoveLine(lineID uuid.UUID) error {
	if err := s.requireDraft("remove lines from"); err != nil {
		return err
	}
	if err := s.Lines.Remove(lineID); err != nil {
		return err
	}
	s.recalculateTotals()
	return nil
}

// SetLineDiscount sets the discount of one line
func (s *Sale) SetLineDiscount(lineID uuid.UUID, amount decimal.Decimal) error {
	if err := s.requireDraft("discount lines of"); err != nil {
		return err
	}
	if err := s.Lines.SetDiscount(lineID, amount); err != nil {
		return err
	}
	s.recalculateTotals()
	return nil
}

// ApplyDiscount sets the sale-level discount. Out-of-range amounts are stored
// as entered and clamped by EffectiveDiscount.
func (s *Sale) ApplyDiscount(amount decimal.Decimal, discountType DiscountType) error {
	if err := s.requireDraft("apply a discount to"); err != nil {
		return err
	}
	if !discountType.IsValid() {
		return shared.NewValidationError("Unsupported discount type %q", discountType)
	}
	s.DiscountAmount = amount
	s.DiscountType = discountType
	s.recalculateTotals()
	return nil
}

// AddPayment records a tender against the sale
func (s *Sale) AddPayment(method PaymentMethod, amount decimal.Decimal, reference string) (Payment, error) {
	if err := s.requireDraft("take payments for"); err != nil {
		return Payment{}, err
	}
	payment, err := s.Payments.Append(s.ID, method, amount, reference)
	if err != nil {
		return Payment{}, err
	}
	s.recalculateTotals()
	return payment, nil
}

// Hold parks a draft sale. Holding reserves no stock.
func (s *Sale) Hold() error {
	if !s.Status.CanTransitionTo(SaleStatusHeld) {
		return shared.NewInvalidStateError("Cannot hold a sale in %s status", s.Status)
	}
	if s.Lines.Len() == 0 {
		return shared.NewInvalidStateError("Cannot hold a sale without lines")
	}

	now := time.Now()
	s.Status = SaleStatusHeld
	s.HeldAt = &now
	s.UpdatedAt = now
	return nil
}

// Retrieve resumes a held sale exactly where it was left
func (s *Sale) Retrieve() error {
	if s.Status != SaleStatusHeld {
		return shared.NewInvalidStateError("Cannot retrieve a sale in %s status", s.Status)
	}
	s.Status = SaleStatusDraft
	s.HeldAt = nil
	s.UpdatedAt = time.Now()
	return nil
}

// Complete closes the sale: it commits one negative stock delta per product
// through the ledger as a single batch and stamps CompletedAt. When forDelivery
// is set a delivery ID is assigned and a delivery request event is recorded.
//
// If the ledger rejects the batch nothing on the sale changes.
func (s *Sale) Complete(ctx context.Context, ledger StockLedger, forDelivery bool) (uuid.UUID, error) {
	if !s.Status.CanTransitionTo(SaleStatusCompleted) {
		return uuid.Nil, shared.NewInvalidStateError("Cannot complete a sale in %s status", s.Status)
	}
	if s.Lines.Len() == 0 {
		return uuid.Nil, shared.NewInvalidStateError("Cannot complete a sale without lines")
	}
	if !s.Total.IsPositive() {
		return uuid.Nil, shared.NewInvalidStateError("Cannot complete a sale with a zero total")
	}
	if s.PaymentTotal.LessThan(s.Total) {
		return uuid.Nil, shared.NewInvalidStateError("Payments of %s do not cover the total of %s",
			s.PaymentTotal.StringFixed(valueobject.TotalPlaces), s.Total.StringFixed(valueobject.TotalPlaces))
	}

	if _, err := ledger.CommitBatch(ctx, s.ID, s.Lines.StockDeltas()); err != nil {
		return uuid.Nil, err
	}

	now := time.Now()
	s.Status = SaleStatusCompleted
	s.CompletedAt = &now
	s.UpdatedAt = now
	s.RecordEvent(NewSaleCompletedEvent(s))

	if !forDelivery {
		return uuid.Nil, nil
	}
	deliveryID := uuid.New()
	s.DeliveryID = &deliveryID
	s.RecordEvent(NewSaleDeliveryRequestedEvent(s))
	return deliveryID, nil
}

// Void cancels a completed sale and puts back the stock it committed
func (s *Sale) Void(ctx context.Context, ledger StockLedger) error {
	if !s.Status.CanTransitionTo(SaleStatusVoided) {
		return shared.NewInvalidStateError("Cannot void a sale in %s status", s.Status)
	}

	reversed, err := ledger.ReverseBatch(ctx, s.ID)
	if err != nil {
		return fmt.Errorf("reverse stock for sale %s: %w", s.SaleNumber, err)
	}

	now := time.Now()
	s.Status = SaleStatusVoided
	s.VoidedAt = &now
	s.UpdatedAt = now
	s.RecordEvent(NewSaleVoidedEvent(s, reversed))
	return nil
}

// recalculateTotals derives all totals from lines, discount inputs and payments
func (s *Sale) recalculateTotals() {
	rawSubtotal := s.Lines.Subtotal()
	subtotal := rawSubtotal.Round(valueobject.TotalPlaces)
	discount := EffectiveDiscount(rawSubtotal, s.DiscountAmount, s.DiscountType).Round(valueobject.TotalPlaces)
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}

	total := subtotal.Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	s.Subtotal = subtotal
	s.EffectiveDiscount = discount
	s.Total = total
	s.PaymentTotal = s.Payments.Total().Round(valueobject.TotalPlaces)
	s.UpdatedAt = time.Now()
}

// Recalculate refreshes derived totals after the aggregate is rebuilt from storage
func (s *Sale) Recalculate() {
	updatedAt := s.UpdatedAt
	s.recalculateTotals()
	s.UpdatedAt = updatedAt
}

// AmountDue returns how much is still owed, never negative
func (s *Sale) AmountDue() decimal.Decimal {
	due := s.Total.Sub(s.PaymentTotal)
	if due.IsNegative() {
		return decimal.Zero
	}
	return due
}

// TotalMoney returns the total as Money in the sale's currency
func (s *Sale) TotalMoney() valueobject.Money {
	m, _ := valueobject.NewMoney(s.Total, s.Currency)
	return m
}
