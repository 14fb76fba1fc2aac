package event

import (
	"testing"
	"time"

	"github.com/erp/pos/internal/domain/sales"
	"github.com/erp/pos/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completedSale(t *testing.T) *sales.Sale {
	t.Helper()
	sale, err := sales.NewSale(uuid.New(), "POS-20260101-00001", valueobject.USD)
	require.NoError(t, err)
	_, err = sale.AddLine(sales.LineInput{
		ProductID:   uuid.New(),
		ProductName: "espresso",
		Unit:        "cup",
		Quantity:    3,
		UnitPrice:   decimal.RequireFromString("2.40"),
	})
	require.NoError(t, err)
	return sale
}

func TestRegisterAllEvents(t *testing.T) {
	serializer := NewEventSerializer()
	RegisterAllEvents(serializer)

	assert.Equal(t, []string{
		sales.EventTypeSaleCompleted,
		sales.EventTypeSaleDeliveryRequested,
		sales.EventTypeSaleVoided,
	}, serializer.RegisteredTypes())
	assert.False(t, serializer.IsRegistered("SaleOpened"))
}

func TestEventSerializer_SaleCompleted(t *testing.T) {
	serializer := NewEventSerializer()
	RegisterAllEvents(serializer)
	sale := completedSale(t)
	original := sales.NewSaleCompletedEvent(sale)
	original.At = original.At.Truncate(time.Millisecond)

	data, err := serializer.Serialize(original)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"sale_number":"POS-20260101-00001"`)

	decoded, err := serializer.Deserialize(sales.EventTypeSaleCompleted, data)
	require.NoError(t, err)
	event, ok := decoded.(*sales.SaleCompletedEvent)
	require.True(t, ok)

	assert.Equal(t, original.EventID(), event.EventID())
	assert.Equal(t, sale.ID, event.AggregateID())
	assert.Equal(t, sale.TenantID, event.TenantID())
	assert.True(t, original.OccurredAt().Equal(event.OccurredAt()))
	require.Len(t, event.Lines, 1)
	assert.Equal(t, "espresso", event.Lines[0].ProductName)
	assert.True(t, event.Total.Equal(decimal.RequireFromString("7.20")))
}

func TestEventSerializer_SaleVoided(t *testing.T) {
	serializer := NewEventSerializer()
	RegisterAllEvents(serializer)
	sale := completedSale(t)
	productID := sale.Lines.Items()[0].ProductID

	original := sales.NewSaleVoidedEvent(sale, []sales.StockReservation{{SaleID: sale.ID, ProductID: productID, Delta: -3}})
	data, err := serializer.Serialize(original)
	require.NoError(t, err)

	decoded, err := serializer.Deserialize(sales.EventTypeSaleVoided, data)
	require.NoError(t, err)
	event := decoded.(*sales.SaleVoidedEvent)
	assert.Equal(t, []sales.RestockedProduct{{ProductID: productID, Quantity: 3}}, event.Restocked)
}

func TestEventSerializer_Deserialize_Errors(t *testing.T) {
	serializer := NewEventSerializer()
	RegisterAllEvents(serializer)
	RegisterEvent[testEvent](serializer, "TestEvent")

	t.Run("unknown type", func(t *testing.T) {
		_, err := serializer.Deserialize("SaleOpened", []byte(`{}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown event type")
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := serializer.Deserialize(sales.EventTypeSaleVoided, []byte(`{"sale_id":`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to unmarshal")
	})

	t.Run("payload of another type", func(t *testing.T) {
		data, err := serializer.Serialize(newTestEvent("OtherEvent", uuid.New()))
		require.NoError(t, err)
		_, err = serializer.Deserialize("TestEvent", data)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "expected TestEvent")
	})
}
