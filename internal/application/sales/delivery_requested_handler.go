package sales

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/pos/internal/domain/sales"
	"github.com/erp/pos/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DeliveryRequest is what the delivery module receives for a sale completed for delivery
type DeliveryRequest struct {
	DeliveryID  uuid.UUID               `json:"delivery_id"`
	SaleID      uuid.UUID               `json:"sale_id"`
	TenantID    uuid.UUID               `json:"tenant_id"`
	SaleNumber  string                  `json:"sale_number"`
	Lines       []sales.SaleLineSummary `json:"lines"`
	RequestedAt time.Time               `json:"requested_at"`
}

// DeliveryGateway hands a delivery request to the delivery module.
// Retries after a returned error are driven by the outbox.
type DeliveryGateway interface {
	RequestDelivery(ctx context.Context, req DeliveryRequest) error
}

// DeliveryRequestedHandler forwards SaleDeliveryRequestedEvent to the delivery gateway
type DeliveryRequestedHandler struct {
	gateway DeliveryGateway
	logger  *zap.Logger
}

// NewDeliveryRequestedHandler creates a new DeliveryRequestedHandler
func NewDeliveryRequestedHandler(gateway DeliveryGateway, logger *zap.Logger) *DeliveryRequestedHandler {
	return &DeliveryRequestedHandler{gateway: gateway, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *DeliveryRequestedHandler) EventTypes() []string {
	return []string{sales.EventTypeSaleDeliveryRequested}
}

// Handle processes a SaleDeliveryRequestedEvent
func (h *DeliveryRequestedHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	requested, ok := event.(*sales.SaleDeliveryRequestedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			sales.EventTypeSaleDeliveryRequested, event.EventType())
	}

	req := DeliveryRequest{
		DeliveryID:  requested.DeliveryID,
		SaleID:      requested.SaleID,
		TenantID:    requested.TenantID(),
		SaleNumber:  requested.SaleNumber,
		Lines:       requested.Lines,
		RequestedAt: requested.OccurredAt(),
	}
	if err := h.gateway.RequestDelivery(ctx, req); err != nil {
		return fmt.Errorf("request delivery %s for sale %s: %w", req.DeliveryID, req.SaleNumber, err)
	}

	h.logger.Info("delivery requested",
		zap.String("delivery_id", req.DeliveryID.String()),
		zap.String("sale_id", req.SaleID.String()),
		zap.Int("lines", len(req.Lines)),
	)
	return nil
}

var _ shared.EventHandler = (*DeliveryRequestedHandler)(nil)
