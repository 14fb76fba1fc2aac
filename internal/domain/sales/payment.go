package sales

import (
	"strings"
	"time"

	"github.com/erp/pos/internal/domain/shared"
	"github.com/erp/pos/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod is the tender used for a payment
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "CASH"
	PaymentMethodCard         PaymentMethod = "CARD"
	PaymentMethodEWallet      PaymentMethod = "E_WALLET"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
)

// IsValid checks if the method is a known PaymentMethod
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodEWallet, PaymentMethodBankTransfer:
		return true
	}
	return false
}

// RequiresReference reports whether a transaction reference must accompany the payment.
// Every non-cash tender is settled by a third party that issues one.
func (m PaymentMethod) RequiresReference() bool {
	return m != PaymentMethodCash
}

// String returns the string representation of PaymentMethod
func (m PaymentMethod) String() string {
	return string(m)
}

// Payment is a single tender applied to a sale. Payments are never edited.
type Payment struct {
	ID        uuid.UUID
	SaleID    uuid.UUID
	Method    PaymentMethod
	Amount    decimal.Decimal
	Reference string
	CreatedAt time.Time
}

// PaymentSet is the append-only, chronological list of payments of a sale
type PaymentSet struct {
	items []Payment
}

// NewPaymentSet rebuilds a set from persisted payments
func NewPaymentSet(items []Payment) PaymentSet {
	cp := make([]Payment, len(items))
	copy(cp, items)
	return PaymentSet{items: cp}
}

// Append validates and records a payment
func (s *PaymentSet) Append(saleID uuid.UUID, method PaymentMethod, amount decimal.Decimal, reference string) (Payment, error) {
	if !method.IsValid() {
		return Payment{}, shared.NewValidationError("Unsupported payment method %q", method)
	}
	if !amount.IsPositive() {
		return Payment{}, shared.NewValidationError("Payment amount must be greater than zero")
	}
	if !amount.Equal(amount.Round(valueobject.TotalPlaces)) {
		return Payment{}, shared.NewValidationError("Payment amount %s has more than %d decimal places", amount, valueobject.TotalPlaces)
	}
	reference = strings.TrimSpace(reference)
	if method.RequiresReference() && reference == "" {
		return Payment{}, shared.NewValidationError("Payment reference is required for %s", method)
	}

	payment := Payment{
		ID:        uuid.New(),
		SaleID:    saleID,
		Method:    method,
		Amount:    amount,
		Reference: reference,
		CreatedAt: time.Now(),
	}
	s.items = append(s.items, payment)
	return payment, nil
}

// Items returns a copy of the payments in the order they were taken
func (s *PaymentSet) Items() []Payment {
	cp := make([]Payment, len(s.items))
	copy(cp, s.items)
	return cp
}

// Len returns the number of payments
func (s *PaymentSet) Len() int {
	return len(s.items)
}

// Total returns the unrounded sum of all payment amounts
func (s *PaymentSet) Total() decimal.Decimal {
	sum := decimal.Zero
	for _, p := range s.items {
		sum = sum.Add(p.Amount)
	}
	return sum
}
