package sales

import (
	"math"

	"github.com/erp/pos/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxLineQuantity is the largest quantity a line may hold, the range of the INTEGER quantity column
const MaxLineQuantity = math.MaxInt32

// LineItem is one product row of a sale.
// UnitPrice is captured when the line is added and never re-read from the catalog.
type LineItem struct {
	ID             uuid.UUID
	SaleID         uuid.UUID
	ProductID      uuid.UUID
	ProductName    string
	Unit           string
	Quantity       int
	UnitPrice      decimal.Decimal
	DiscountAmount decimal.Decimal
}

// GrossAmount returns Quantity * UnitPrice
func (l LineItem) GrossAmount() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// LineTotal returns GrossAmount - DiscountAmount, never below zero
func (l LineItem) LineTotal() decimal.Decimal {
	total := l.GrossAmount().Sub(l.DiscountAmount)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

// LineInput describes a product being added to a sale
type LineInput struct {
	ProductID      uuid.UUID
	ProductName    string
	Unit           string
	Quantity       int
	UnitPrice      decimal.Decimal
	DiscountAmount decimal.Decimal
}

func (in LineInput) validate() error {
	if in.ProductID == uuid.Nil {
		return shared.NewValidationError("Product ID is required")
	}
	if in.Quantity < 1 {
		return shared.NewValidationError("Quantity must be at least 1, got %d", in.Quantity)
	}
	if in.Quantity > MaxLineQuantity {
		return shared.NewValidationError("Quantity cannot exceed %d, got %d", MaxLineQuantity, in.Quantity)
	}
	if in.UnitPrice.IsNegative() {
		return shared.NewValidationError("Unit price cannot be negative")
	}
	if in.DiscountAmount.IsNegative() {
		return shared.NewValidationError("Line discount cannot be negative")
	}
	return nil
}

var errLineNotFound = shared.NewDomainError(shared.CodeNotFound, "Sale line not found")

// LineItemSet keeps the ordered lines of a sale.
// Every line in the set has Quantity >= 1.
type LineItemSet struct {
	items []LineItem
}

// NewLineItemSet rebuilds a set from persisted lines, preserving their order
func NewLineItemSet(items []LineItem) LineItemSet {
	cp := make([]LineItem, len(items))
	copy(cp, items)
	return LineItemSet{items: cp}
}

// Add appends a line, or merges into an existing line for the same product
// captured at the same unit price. The same product at a different price
// becomes its own line. Merging adds quantities and line discounts.
func (s *LineItemSet) Add(saleID uuid.UUID, in LineInput) (LineItem, error) {
	if err := in.validate(); err != nil {
		return LineItem{}, err
	}

	for i := range s.items {
		line := &s.items[i]
		if line.ProductID == in.ProductID && line.UnitPrice.Equal(in.UnitPrice) {
			if line.Quantity > MaxLineQuantity-in.Quantity {
				return LineItem{}, shared.NewValidationError(
					"Quantity of %s cannot exceed %d, line already has %d", line.ProductName, MaxLineQuantity, line.Quantity)
			}
			line.Quantity += in.Quantity
			line.DiscountAmount = line.DiscountAmount.Add(in.DiscountAmount)
			return *line, nil
		}
	}

	line := LineItem{
		ID:             uuid.New(),
		SaleID:         saleID,
		ProductID:      in.ProductID,
		ProductName:    in.ProductName,
		Unit:           in.Unit,
		Quantity:       in.Quantity,
		UnitPrice:      in.UnitPrice,
		DiscountAmount: in.DiscountAmount,
	}
	s.items = append(s.items, line)
	return line, nil
}

// Update replaces a line's quantity in place. A quantity below 1 removes the line
// and removed is reported as true.
func (s *LineItemSet) Update(lineID uuid.UUID, quantity int) (removed bool, err error) {
	idx := s.indexOf(lineID)
	if idx < 0 {
		return false, errLineNotFound
	}
	if quantity < 1 {
		s.removeAt(idx)
		return true, nil
	}
	if quantity > MaxLineQuantity {
		return false, shared.NewValidationError("Quantity cannot exceed %d, got %d", MaxLineQuantity, quantity)
	}
	s.items[idx].Quantity = quantity
	return false, nil
}

// Remove deletes a line
func (s *LineItemSet) Remove(lineID uuid.UUID) error {
	idx := s.indexOf(lineID)
	if idx < 0 {
		return errLineNotFound
	}
	s.removeAt(idx)
	return nil
}

// SetDiscount sets the discount of a single line. Amounts above the line's
// gross amount are kept as entered and clamped when LineTotal is computed.
func (s *LineItemSet) SetDiscount(lineID uuid.UUID, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return shared.NewValidationError("Line discount cannot be negative")
	}
	idx := s.indexOf(lineID)
	if idx < 0 {
		return errLineNotFound
	}
	s.items[idx].DiscountAmount = amount
	return nil
}

// Get returns a copy of the line with the given ID
func (s *LineItemSet) Get(lineID uuid.UUID) (LineItem, bool) {
	idx := s.indexOf(lineID)
	if idx < 0 {
		return LineItem{}, false
	}
	return s.items[idx], true
}

// Items returns a copy of the lines in insertion order
func (s *LineItemSet) Items() []LineItem {
	cp := make([]LineItem, len(s.items))
	copy(cp, s.items)
	return cp
}

// Len returns the number of lines
func (s *LineItemSet) Len() int {
	return len(s.items)
}

// Subtotal returns the unrounded sum of all line totals
func (s *LineItemSet) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, line := range s.items {
		sum = sum.Add(line.LineTotal())
	}
	return sum
}

// TotalQuantity returns the number of units across all lines
func (s *LineItemSet) TotalQuantity() int {
	n := 0
	for _, line := range s.items {
		n += line.Quantity
	}
	return n
}

// StockDeltas returns one negative delta per product, summing lines that share a product
func (s *LineItemSet) StockDeltas() []StockDelta {
	byProduct := make(map[uuid.UUID]int64, len(s.items))
	order := make([]uuid.UUID, 0, len(s.items))
	for _, line := range s.items {
		if _, seen := byProduct[line.ProductID]; !seen {
			order = append(order, line.ProductID)
		}
		byProduct[line.ProductID] -= int64(line.Quantity)
	}

	deltas := make([]StockDelta, 0, len(order))
	for _, productID := range order {
		deltas = append(deltas, StockDelta{ProductID: productID, Delta: byProduct[productID]})
	}
	return deltas
}

func (s *LineItemSet) indexOf(lineID uuid.UUID) int {
	for i := range s.items {
		if s.items[i].ID == lineID {
			return i
		}
	}
	return -1
}

func (s *LineItemSet) removeAt(idx int) {
	s.items = append(s.items[:idx:idx], s.items[idx+1:]...)
}
