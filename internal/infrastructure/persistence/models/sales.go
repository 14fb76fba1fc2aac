package models

import (
	"time"

	"github.com/erp/pos/internal/domain/sales"
	"github.com/erp/pos/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductModel is the catalog row a terminal prices lines from
type ProductModel struct {
	Row
	TenantID  uuid.UUID        `gorm:"type:uuid;not null;index"`
	SKU       string           `gorm:"column:sku;type:varchar(50);not null"`
	Name      string           `gorm:"type:varchar(200);not null"`
	Unit      string           `gorm:"type:varchar(20);not null"`
	ListPrice decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
	Stock     *StockLevelModel `gorm:"foreignKey:ProductID;references:ID"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the row and its stock level to a catalog Product
func (m *ProductModel) ToDomain() *sales.Product {
	p := &sales.Product{
		ID:        m.ID,
		TenantID:  m.TenantID,
		SKU:       m.SKU,
		Name:      m.Name,
		Unit:      m.Unit,
		ListPrice: m.ListPrice,
	}
	if m.Stock != nil {
		p.QuantityOnHand = m.Stock.QuantityOnHand
	}
	return p
}

// ProductModelFromDomain creates a row and its stock level from a catalog Product
func ProductModelFromDomain(p *sales.Product) *ProductModel {
	now := time.Now()
	return &ProductModel{
		Row:       Row{ID: p.ID, CreatedAt: now, UpdatedAt: now},
		TenantID:  p.TenantID,
		SKU:       p.SKU,
		Name:      p.Name,
		Unit:      p.Unit,
		ListPrice: p.ListPrice,
		Stock: &StockLevelModel{
			ProductID:      p.ID,
			QuantityOnHand: p.QuantityOnHand,
			Version:        1,
			UpdatedAt:      now,
		},
	}
}

// StockLevelModel holds the quantity on hand of one product.
// The column carries a CHECK (quantity_on_hand >= 0) in the migration.
type StockLevelModel struct {
	ProductID      uuid.UUID `gorm:"type:uuid;primaryKey"`
	QuantityOnHand int64     `gorm:"not null;default:0"`
	Version        int       `gorm:"not null;default:1"`
	UpdatedAt      time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (StockLevelModel) TableName() string {
	return "stock_levels"
}

// StockReservationModel records one committed stock change of a sale
type StockReservationModel struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey"`
	SaleID      uuid.UUID  `gorm:"type:uuid;not null;index"`
	ProductID   uuid.UUID  `gorm:"type:uuid;not null"`
	Delta       int64      `gorm:"not null"`
	CommittedAt time.Time  `gorm:"not null"`
	ReversedAt  *time.Time
}

// TableName returns the table name for GORM
func (StockReservationModel) TableName() string {
	return "stock_reservations"
}

// ToDomain converts the row to a domain StockReservation
func (m *StockReservationModel) ToDomain() sales.StockReservation {
	return sales.StockReservation{
		ID:          m.ID,
		SaleID:      m.SaleID,
		ProductID:   m.ProductID,
		Delta:       m.Delta,
		CommittedAt: m.CommittedAt,
		ReversedAt:  m.ReversedAt,
	}
}

// StockReservationModelFromDomain creates a row from a domain StockReservation
func StockReservationModelFromDomain(r sales.StockReservation) *StockReservationModel {
	return &StockReservationModel{
		ID:          r.ID,
		SaleID:      r.SaleID,
		ProductID:   r.ProductID,
		Delta:       r.Delta,
		CommittedAt: r.CommittedAt,
		ReversedAt:  r.ReversedAt,
	}
}

// SaleModel is the persistence model for the Sale aggregate root
type SaleModel struct {
	AggregateRow
	SaleNumber        string             `gorm:"type:varchar(50);not null;index"`
	Currency          string             `gorm:"type:varchar(3);not null"`
	Status            sales.SaleStatus   `gorm:"type:varchar(20);not null;default:'DRAFT';index"`
	Lines             []SaleLineModel    `gorm:"foreignKey:SaleID;references:ID"`
	Payments          []SalePaymentModel `gorm:"foreignKey:SaleID;references:ID"`
	DiscountAmount    decimal.Decimal    `gorm:"type:decimal(18,4);not null;default:0"`
	DiscountType      sales.DiscountType `gorm:"type:varchar(10);not null;default:'FIXED'"`
	Subtotal          decimal.Decimal    `gorm:"type:decimal(18,2);not null;default:0"`
	EffectiveDiscount decimal.Decimal    `gorm:"type:decimal(18,2);not null;default:0"`
	Total             decimal.Decimal    `gorm:"type:decimal(18,2);not null;default:0"`
	PaymentTotal      decimal.Decimal    `gorm:"type:decimal(18,2);not null;default:0"`
	HeldAt            *time.Time
	CompletedAt       *time.Time `gorm:"index"`
	VoidedAt          *time.Time
	DeliveryID        *uuid.UUID `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (SaleModel) TableName() string {
	return "sales"
}

// ToDomain rebuilds the Sale aggregate. Lines must already be in position order.
func (m *SaleModel) ToDomain() *sales.Sale {
	lines := make([]sales.LineItem, len(m.Lines))
	for i := range m.Lines {
		lines[i] = m.Lines[i].ToDomain()
	}
	payments := make([]sales.Payment, len(m.Payments))
	for i := range m.Payments {
		payments[i] = m.Payments[i].ToDomain()
	}

	sale := &sales.Sale{
		TenantAggregateRoot: m.aggregate(),
		SaleNumber:          m.SaleNumber,
		Currency:            valueobject.Currency(m.Currency),
		Status:              m.Status,
		Lines:               sales.NewLineItemSet(lines),
		Payments:            sales.NewPaymentSet(payments),
		DiscountAmount:      m.DiscountAmount,
		DiscountType:        m.DiscountType,
		Subtotal:            m.Subtotal,
		EffectiveDiscount:   m.EffectiveDiscount,
		Total:               m.Total,
		PaymentTotal:        m.PaymentTotal,
		HeldAt:              m.HeldAt,
		CompletedAt:         m.CompletedAt,
		VoidedAt:            m.VoidedAt,
		DeliveryID:          m.DeliveryID,
	}
	sale.Recalculate()
	return sale
}

// FromDomain populates the model from a Sale, numbering lines in order
func (m *SaleModel) FromDomain(s *sales.Sale) {
	m.setAggregate(s.TenantAggregateRoot)
	m.SaleNumber = s.SaleNumber
	m.Currency = string(s.Currency)
	m.Status = s.Status
	m.DiscountAmount = s.DiscountAmount
	m.DiscountType = s.DiscountType
	m.Subtotal = s.Subtotal
	m.EffectiveDiscount = s.EffectiveDiscount
	m.Total = s.Total
	m.PaymentTotal = s.PaymentTotal
	m.HeldAt = s.HeldAt
	m.CompletedAt = s.CompletedAt
	m.VoidedAt = s.VoidedAt
	m.DeliveryID = s.DeliveryID

	lines := s.Lines.Items()
	m.Lines = make([]SaleLineModel, len(lines))
	for i, line := range lines {
		m.Lines[i] = SaleLineModelFromDomain(line, i, s.UpdatedAt)
	}
	payments := s.Payments.Items()
	m.Payments = make([]SalePaymentModel, len(payments))
	for i, p := range payments {
		m.Payments[i] = SalePaymentModelFromDomain(p)
	}
}

// SaleModelFromDomain creates a new persistence model from a Sale
func SaleModelFromDomain(s *sales.Sale) *SaleModel {
	m := &SaleModel{}
	m.FromDomain(s)
	return m
}

// SaleLineModel is one line of a sale
type SaleLineModel struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	SaleID         uuid.UUID       `gorm:"type:uuid;not null;index"`
	Position       int             `gorm:"not null;default:0"`
	ProductID      uuid.UUID       `gorm:"type:uuid;not null"`
	ProductName    string          `gorm:"type:varchar(200);not null"`
	Unit           string          `gorm:"type:varchar(20);not null"`
	Quantity       int             `gorm:"not null"`
	UnitPrice      decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	UpdatedAt      time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SaleLineModel) TableName() string {
	return "sale_lines"
}

// ToDomain converts the row to a domain LineItem
func (m *SaleLineModel) ToDomain() sales.LineItem {
	return sales.LineItem{
		ID:             m.ID,
		SaleID:         m.SaleID,
		ProductID:      m.ProductID,
		ProductName:    m.ProductName,
		Unit:           m.Unit,
		Quantity:       m.Quantity,
		UnitPrice:      m.UnitPrice,
		DiscountAmount: m.DiscountAmount,
	}
}

// SaleLineModelFromDomain creates a row for the line at position
func SaleLineModelFromDomain(l sales.LineItem, position int, updatedAt time.Time) SaleLineModel {
	return SaleLineModel{
		ID:             l.ID,
		SaleID:         l.SaleID,
		Position:       position,
		ProductID:      l.ProductID,
		ProductName:    l.ProductName,
		Unit:           l.Unit,
		Quantity:       l.Quantity,
		UnitPrice:      l.UnitPrice,
		DiscountAmount: l.DiscountAmount,
		UpdatedAt:      updatedAt,
	}
}

// SalePaymentModel is one payment of a sale. Rows are inserted once and never updated.
type SalePaymentModel struct {
	ID        uuid.UUID           `gorm:"type:uuid;primaryKey"`
	SaleID    uuid.UUID           `gorm:"type:uuid;not null;index"`
	Method    sales.PaymentMethod `gorm:"type:varchar(20);not null"`
	Amount    decimal.Decimal     `gorm:"type:decimal(18,4);not null"`
	Reference string              `gorm:"type:varchar(100)"`
	CreatedAt time.Time           `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SalePaymentModel) TableName() string {
	return "sale_payments"
}

// ToDomain converts the row to a domain Payment
func (m *SalePaymentModel) ToDomain() sales.Payment {
	return sales.Payment{
		ID:        m.ID,
		SaleID:    m.SaleID,
		Method:    m.Method,
		Amount:    m.Amount,
		Reference: m.Reference,
		CreatedAt: m.CreatedAt,
	}
}

// SalePaymentModelFromDomain creates a row from a domain Payment
func SalePaymentModelFromDomain(p sales.Payment) SalePaymentModel {
	return SalePaymentModel{
		ID:        p.ID,
		SaleID:    p.SaleID,
		Method:    p.Method,
		Amount:    p.Amount,
		Reference: p.Reference,
		CreatedAt: p.CreatedAt,
	}
}

// All returns every model, in dependency order, for AutoMigrate
func All() []any {
	return []any{
		&ProductModel{},
		&StockLevelModel{},
		&StockReservationModel{},
		&SaleModel{},
		&SaleLineModel{},
		&SalePaymentModel{},
		&OutboxEntryModel{},
	}
}
