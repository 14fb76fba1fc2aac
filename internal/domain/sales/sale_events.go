package sales

import (
	"github.com/erp/pos/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Aggregate type constant
const AggregateTypeSale = "Sale"

// Event type constants
const (
	EventTypeSaleCompleted         = "SaleCompleted"
	EventTypeSaleDeliveryRequested = "SaleDeliveryRequested"
	EventTypeSaleVoided            = "SaleVoided"
)

// SaleLineSummary is the line information carried by sale events
type SaleLineSummary struct {
	LineID      uuid.UUID       `json:"line_id"`
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Unit        string          `json:"unit"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

func summarizeLines(sale *Sale) []SaleLineSummary {
	lines := sale.Lines.Items()
	out := make([]SaleLineSummary, len(lines))
	for i, line := range lines {
		out[i] = SaleLineSummary{
			LineID:      line.ID,
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			Unit:        line.Unit,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			LineTotal:   line.LineTotal(),
		}
	}
	return out
}

// SaleCompletedEvent is raised once stock has been committed for a sale
type SaleCompletedEvent struct {
	shared.BaseDomainEvent
	SaleID       uuid.UUID         `json:"sale_id"`
	SaleNumber   string            `json:"sale_number"`
	Lines        []SaleLineSummary `json:"lines"`
	Total        decimal.Decimal   `json:"total"`
	PaymentTotal decimal.Decimal   `json:"payment_total"`
}

// NewSaleCompletedEvent creates a new SaleCompletedEvent
func NewSaleCompletedEvent(sale *Sale) *SaleCompletedEvent {
	return &SaleCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSaleCompleted, AggregateTypeSale, sale.ID, sale.TenantID),
		SaleID:          sale.ID,
		SaleNumber:      sale.SaleNumber,
		Lines:           summarizeLines(sale),
		Total:           sale.Total,
		PaymentTotal:    sale.PaymentTotal,
	}
}

// EventType returns the event type name
func (e *SaleCompletedEvent) EventType() string {
	return EventTypeSaleCompleted
}

// SaleDeliveryRequestedEvent asks the delivery module to create a delivery for a completed sale
type SaleDeliveryRequestedEvent struct {
	shared.BaseDomainEvent
	SaleID     uuid.UUID         `json:"sale_id"`
	SaleNumber string            `json:"sale_number"`
	DeliveryID uuid.UUID         `json:"delivery_id"`
	Lines      []SaleLineSummary `json:"lines"`
}

// NewSaleDeliveryRequestedEvent creates a new SaleDeliveryRequestedEvent.
// The sale must already carry its DeliveryID.
func NewSaleDeliveryRequestedEvent(sale *Sale) *SaleDeliveryRequestedEvent {
	var deliveryID uuid.UUID
	if sale.DeliveryID != nil {
		deliveryID = *sale.DeliveryID
	}
	return &SaleDeliveryRequestedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSaleDeliveryRequested, AggregateTypeSale, sale.ID, sale.TenantID),
		SaleID:          sale.ID,
		SaleNumber:      sale.SaleNumber,
		DeliveryID:      deliveryID,
		Lines:           summarizeLines(sale),
	}
}

// EventType returns the event type name
func (e *SaleDeliveryRequestedEvent) EventType() string {
	return EventTypeSaleDeliveryRequested
}

// RestockedProduct is one product put back by a void
type RestockedProduct struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int64     `json:"quantity"`
}

// SaleVoidedEvent is raised when a completed sale is voided and its stock restored
type SaleVoidedEvent struct {
	shared.BaseDomainEvent
	SaleID     uuid.UUID          `json:"sale_id"`
	SaleNumber string             `json:"sale_number"`
	Restocked  []RestockedProduct `json:"restocked"`
}

// NewSaleVoidedEvent creates a new SaleVoidedEvent
func NewSaleVoidedEvent(sale *Sale, reversed []StockReservation) *SaleVoidedEvent {
	restocked := make([]RestockedProduct, len(reversed))
	for i, r := range reversed {
		restocked[i] = RestockedProduct{ProductID: r.ProductID, Quantity: -r.Delta}
	}
	return &SaleVoidedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSaleVoided, AggregateTypeSale, sale.ID, sale.TenantID),
		SaleID:          sale.ID,
		SaleNumber:      sale.SaleNumber,
		Restocked:       restocked,
	}
}

// EventType returns the event type name
func (e *SaleVoidedEvent) EventType() string {
	return EventTypeSaleVoided
}
