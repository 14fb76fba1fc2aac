package sales

import (
	"time"

	"github.com/erp/pos/internal/domain/sales"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ==================== Requests ====================

// CreateSaleRequest opens a new sale on a terminal
type CreateSaleRequest struct {
	CashierID *uuid.UUID `json:"cashier_id"`
}

// VersionGuard lets a client assert the version it last saw
type VersionGuard struct {
	ExpectedVersion *int `json:"expected_version"`
}

// AddLineRequest adds a product to a sale. UnitPrice defaults to the catalog list price.
type AddLineRequest struct {
	VersionGuard
	ProductID    uuid.UUID        `json:"product_id" binding:"required"`
	Quantity     int              `json:"quantity" binding:"required,max=2147483647"`
	UnitPrice    *decimal.Decimal `json:"unit_price"`
	LineDiscount *decimal.Decimal `json:"line_discount"`
}

// UpdateLineRequest sets a line quantity; zero or less removes the line
type UpdateLineRequest struct {
	VersionGuard
	Quantity int `json:"quantity" binding:"max=2147483647"`
}

// SetLineDiscountRequest sets the discount of a single line
type SetLineDiscountRequest struct {
	VersionGuard
	Amount decimal.Decimal `json:"amount"`
}

// ApplyDiscountRequest sets the sale-level discount
type ApplyDiscountRequest struct {
	VersionGuard
	Amount decimal.Decimal `json:"amount"`
	Type   string          `json:"type" binding:"required,oneof=PERCENT FIXED"`
}

// AddPaymentRequest records a tender
type AddPaymentRequest struct {
	VersionGuard
	Method    string          `json:"method" binding:"required"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference" binding:"max=100"`
}

// CompleteSaleRequest closes a sale
type CompleteSaleRequest struct {
	VersionGuard
	ForDelivery bool `json:"for_delivery"`
}

// SaleListFilter holds listing options
type SaleListFilter struct {
	Status   string `form:"status" binding:"omitempty,oneof=DRAFT HELD COMPLETED VOIDED"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string `form:"order_by" binding:"omitempty,oneof=created_at updated_at sale_number total"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// ==================== Responses ====================

// SaleLineResponse is one line of a sale
type SaleLineResponse struct {
	ID             uuid.UUID       `json:"id"`
	ProductID      uuid.UUID       `json:"product_id"`
	ProductName    string          `json:"product_name"`
	Unit           string          `json:"unit"`
	Quantity       int             `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	LineTotal      decimal.Decimal `json:"line_total"`
}

// PaymentResponse is one payment of a sale
type PaymentResponse struct {
	ID        uuid.UUID       `json:"id"`
	Method    string          `json:"method"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// SaleResponse is the full view of a sale
type SaleResponse struct {
	ID                uuid.UUID          `json:"id"`
	TenantID          uuid.UUID          `json:"tenant_id"`
	SaleNumber        string             `json:"sale_number"`
	Status            string             `json:"status"`
	Currency          string             `json:"currency"`
	Lines             []SaleLineResponse `json:"lines"`
	Payments          []PaymentResponse  `json:"payments"`
	DiscountAmount    decimal.Decimal    `json:"discount_amount"`
	DiscountType      string             `json:"discount_type"`
	Subtotal          decimal.Decimal    `json:"subtotal"`
	EffectiveDiscount decimal.Decimal    `json:"effective_discount"`
	Total             decimal.Decimal    `json:"total"`
	PaymentTotal      decimal.Decimal    `json:"payment_total"`
	AmountDue         decimal.Decimal    `json:"amount_due"`
	DeliveryID        *uuid.UUID         `json:"delivery_id,omitempty"`
	CreatedBy         *uuid.UUID         `json:"created_by,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
	HeldAt            *time.Time         `json:"held_at,omitempty"`
	CompletedAt       *time.Time         `json:"completed_at,omitempty"`
	VoidedAt          *time.Time         `json:"voided_at,omitempty"`
	Version           int                `json:"version"`
}

// SaleListItemResponse is the summary row used in listings
type SaleListItemResponse struct {
	ID           uuid.UUID       `json:"id"`
	SaleNumber   string          `json:"sale_number"`
	Status       string          `json:"status"`
	LineCount    int             `json:"line_count"`
	Total        decimal.Decimal `json:"total"`
	PaymentTotal decimal.Decimal `json:"payment_total"`
	CreatedAt    time.Time       `json:"created_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	Version      int             `json:"version"`
}

// CompleteSaleResponse is returned by Complete
type CompleteSaleResponse struct {
	Sale       SaleResponse `json:"sale"`
	DeliveryID *uuid.UUID   `json:"delivery_id,omitempty"`
}

// ProductResponse is the catalog view used to price a new line
type ProductResponse struct {
	ID             uuid.UUID       `json:"id"`
	SKU            string          `json:"sku"`
	Name           string          `json:"name"`
	Unit           string          `json:"unit"`
	ListPrice      decimal.Decimal `json:"list_price"`
	QuantityOnHand int64           `json:"quantity_on_hand"`
}

// ToSaleResponse converts a sale to its response DTO
func ToSaleResponse(sale *sales.Sale) SaleResponse {
	lines := sale.Lines.Items()
	lineResponses := make([]SaleLineResponse, len(lines))
	for i, line := range lines {
		lineResponses[i] = SaleLineResponse{
			ID:             line.ID,
			ProductID:      line.ProductID,
			ProductName:    line.ProductName,
			Unit:           line.Unit,
			Quantity:       line.Quantity,
			UnitPrice:      line.UnitPrice,
			DiscountAmount: line.DiscountAmount,
			LineTotal:      line.LineTotal(),
		}
	}

	payments := sale.Payments.Items()
	paymentResponses := make([]PaymentResponse, len(payments))
	for i, p := range payments {
		paymentResponses[i] = PaymentResponse{
			ID:        p.ID,
			Method:    string(p.Method),
			Amount:    p.Amount,
			Reference: p.Reference,
			CreatedAt: p.CreatedAt,
		}
	}

	return SaleResponse{
		ID:                sale.ID,
		TenantID:          sale.TenantID,
		SaleNumber:        sale.SaleNumber,
		Status:            string(sale.Status),
		Currency:          string(sale.Currency),
		Lines:             lineResponses,
		Payments:          paymentResponses,
		DiscountAmount:    sale.DiscountAmount,
		DiscountType:      string(sale.DiscountType),
		Subtotal:          sale.Subtotal,
		EffectiveDiscount: sale.EffectiveDiscount,
		Total:             sale.Total,
		PaymentTotal:      sale.PaymentTotal,
		AmountDue:         sale.AmountDue(),
		DeliveryID:        sale.DeliveryID,
		CreatedBy:         sale.CreatedBy,
		CreatedAt:         sale.CreatedAt,
		UpdatedAt:         sale.UpdatedAt,
		HeldAt:            sale.HeldAt,
		CompletedAt:       sale.CompletedAt,
		VoidedAt:          sale.VoidedAt,
		Version:           sale.Version,
	}
}

// ToSaleListItemResponse converts a sale to its list row
func ToSaleListItemResponse(sale *sales.Sale) SaleListItemResponse {
	return SaleListItemResponse{
		ID:           sale.ID,
		SaleNumber:   sale.SaleNumber,
		Status:       string(sale.Status),
		LineCount:    sale.Lines.Len(),
		Total:        sale.Total,
		PaymentTotal: sale.PaymentTotal,
		CreatedAt:    sale.CreatedAt,
		CompletedAt:  sale.CompletedAt,
		Version:      sale.Version,
	}
}

// ToProductResponse converts a catalog product to its response DTO
func ToProductResponse(p *sales.Product) ProductResponse {
	return ProductResponse{
		ID:             p.ID,
		SKU:            p.SKU,
		Name:           p.Name,
		Unit:           p.Unit,
		ListPrice:      p.ListPrice,
		QuantityOnHand: p.QuantityOnHand,
	}
}
