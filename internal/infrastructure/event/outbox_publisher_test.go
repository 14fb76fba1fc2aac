package event

import (
	"context"
	"errors"
	"testing"

	"github.com/erp/pos/internal/domain/sales"
	"github.com/erp/pos/internal/domain/shared"
	"github.com/erp/pos/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestOutboxPublisher_PublishWithTx(t *testing.T) {
	db := setupOutboxDB(t)
	serializer := NewEventSerializer()
	RegisterEvent[testEvent](serializer, "TestEvent")
	publisher := NewOutboxPublisher(serializer)
	ctx := context.Background()

	tenantID := uuid.New()
	events := []shared.DomainEvent{
		newTestEvent("TestEvent", tenantID),
		newTestEvent("TestEvent", tenantID),
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		return publisher.PublishWithTx(ctx, tx, events...)
	})
	require.NoError(t, err)

	pending, err := NewGormOutboxRepository(db).FindPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, tenantID, pending[0].TenantID)
	assert.Equal(t, "TestAggregate", pending[0].AggregateType)
	assert.Equal(t, shared.DefaultMaxRetries, pending[0].MaxRetries)
}

func TestOutboxPublisher_WithMaxRetries(t *testing.T) {
	db := setupOutboxDB(t)
	serializer := NewEventSerializer()
	RegisterEvent[testEvent](serializer, "TestEvent")
	publisher := NewOutboxPublisher(serializer, WithMaxRetries(2), WithMaxRetries(0))
	ctx := context.Background()

	err := db.Transaction(func(tx *gorm.DB) error {
		return publisher.PublishWithTx(ctx, tx, newTestEvent("TestEvent", uuid.New()))
	})
	require.NoError(t, err)

	pending, err := NewGormOutboxRepository(db).FindPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].MaxRetries)
}

func TestOutboxPublisher_PublishWithTx_EmptyEvents(t *testing.T) {
	db, mock := setupMockDB(t)
	publisher := NewOutboxPublisher(NewEventSerializer())

	mock.ExpectBegin()
	mock.ExpectCommit()

	err := db.Transaction(func(tx *gorm.DB) error {
		return publisher.PublishWithTx(context.Background(), tx)
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxPublisher_PublishWithTx_TransactionRollback(t *testing.T) {
	db := setupOutboxDB(t)
	serializer := NewEventSerializer()
	RegisterEvent[testEvent](serializer, "TestEvent")
	publisher := NewOutboxPublisher(serializer)
	ctx := context.Background()

	testErr := errors.New("simulated error")
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := publisher.PublishWithTx(ctx, tx, newTestEvent("TestEvent", uuid.New())); err != nil {
			return err
		}
		return testErr
	})
	require.ErrorIs(t, err, testErr)

	pending, err := NewGormOutboxRepository(db).FindPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestOutboxPublisher_UnregisteredEventType(t *testing.T) {
	db := setupOutboxDB(t)
	publisher := NewOutboxPublisher(NewEventSerializer())

	err := publisher.PublishWithTx(context.Background(), db, newTestEvent("Unknown", uuid.New()))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not registered")
}

func TestOutboxPublisher_SaveEvents(t *testing.T) {
	serializer := NewEventSerializer()
	RegisterAllEvents(serializer)
	publisher := NewOutboxPublisher(serializer)
	ctx := context.Background()

	sale, err := sales.NewSale(uuid.New(), "POS-20260101-00001", valueobject.USD)
	require.NoError(t, err)
	event := sales.NewSaleCompletedEvent(sale)

	t.Run("rejects a non-gorm transaction", func(t *testing.T) {
		err := publisher.SaveEvents(ctx, "not a tx", event)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "*gorm.DB")
	})

	t.Run("stores a sale event that round-trips", func(t *testing.T) {
		db := setupOutboxDB(t)
		require.NoError(t, publisher.SaveEvents(ctx, db, event))

		pending, err := NewGormOutboxRepository(db).FindPending(ctx, 10)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, sales.EventTypeSaleCompleted, pending[0].EventType)
		assert.Equal(t, sale.ID, pending[0].AggregateID)

		decoded, err := serializer.Deserialize(pending[0].EventType, pending[0].Payload)
		require.NoError(t, err)
		completed, ok := decoded.(*sales.SaleCompletedEvent)
		require.True(t, ok)
		assert.Equal(t, "POS-20260101-00001", completed.SaleNumber)
		assert.Equal(t, event.EventID(), completed.EventID())
	})
}
