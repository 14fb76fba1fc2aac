package event

import (
	"github.com/erp/pos/internal/domain/sales"
)

// RegisterAllEvents registers every sale event with the serializer.
// The outbox processor drops entries whose type is missing here.
func RegisterAllEvents(serializer *EventSerializer) {
	RegisterEvent[sales.SaleCompletedEvent](serializer, sales.EventTypeSaleCompleted)
	RegisterEvent[sales.SaleDeliveryRequestedEvent](serializer, sales.EventTypeSaleDeliveryRequested)
	RegisterEvent[sales.SaleVoidedEvent](serializer, sales.EventTypeSaleVoided)
}
