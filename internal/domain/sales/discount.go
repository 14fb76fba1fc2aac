package sales

import (
	"github.com/shopspring/decimal"
)

// DiscountType selects how a sale-level discount amount is interpreted
type DiscountType string

const (
	DiscountTypePercent DiscountType = "PERCENT"
	DiscountTypeFixed   DiscountType = "FIXED"
)

var hundred = decimal.NewFromInt(100)

// IsValid checks if the type is a known DiscountType
func (t DiscountType) IsValid() bool {
	switch t {
	case DiscountTypePercent, DiscountTypeFixed:
		return true
	}
	return false
}

// String returns the string representation of DiscountType
func (t DiscountType) String() string {
	return string(t)
}

// EffectiveDiscount returns the amount actually taken off subtotal.
// A percent amount is clamped to [0,100] and a fixed amount to [0, subtotal],
// so the result never exceeds subtotal and is never negative. The result is not rounded.
func EffectiveDiscount(subtotal, amount decimal.Decimal, discountType DiscountType) decimal.Decimal {
	if !subtotal.IsPositive() {
		return decimal.Zero
	}
	switch discountType {
	case DiscountTypePercent:
		percent := clamp(amount, decimal.Zero, hundred)
		return subtotal.Mul(percent).Div(hundred)
	case DiscountTypeFixed:
		return clamp(amount, decimal.Zero, subtotal)
	}
	return decimal.Zero
}

func clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	if v.LessThan(lo) {
		return lo
	}
	if v.GreaterThan(hi) {
		return hi
	}
	return v
}
