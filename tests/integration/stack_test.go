package integration

import (
	"context"
	"testing"

	appsales "github.com/erp/pos/internal/application/sales"
	"github.com/erp/pos/internal/domain/shared"
	"github.com/erp/pos/internal/domain/shared/valueobject"
	"github.com/erp/pos/internal/infrastructure/cache"
	"github.com/erp/pos/internal/infrastructure/config"
	"github.com/erp/pos/internal/infrastructure/event"
	"github.com/erp/pos/internal/infrastructure/persistence"
	"github.com/erp/pos/internal/infrastructure/persistence/models"
	"github.com/erp/pos/internal/interfaces/http/handler"
	"github.com/erp/pos/internal/interfaces/http/router"
	"github.com/erp/pos/tests/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// posStack wires the server the way cmd/server does for the postgres driver,
// except that the outbox is drained by the test instead of a ticker.
type posStack struct {
	db         *TestDB
	service    *appsales.SaleService
	client     *testutil.APIClient
	outbox     *event.GormOutboxRepository
	processor  *event.OutboxProcessor
	bus        *event.InMemoryEventBus
	serializer *event.EventSerializer
	tenantID   uuid.UUID
}

type stackOptions struct {
	gateway     appsales.DeliveryGateway
	idempotency shared.IdempotencyStore
}

func newPOSStack(t *testing.T, db *TestDB, opts stackOptions) *posStack {
	t.Helper()
	log := zap.NewNop()

	if opts.gateway == nil {
		opts.gateway = testutil.NewRecordingGateway()
	}
	if opts.idempotency == nil {
		opts.idempotency = cache.NewInMemoryIdempotencyStore()
		t.Cleanup(func() { _ = opts.idempotency.Close() })
	}

	serializer := event.NewEventSerializer()
	event.RegisterAllEvents(serializer)
	publisher := event.NewOutboxPublisher(serializer)

	bus := event.NewInMemoryEventBus(log)
	bus.Subscribe(event.NewIdempotentHandler(
		appsales.NewDeliveryRequestedHandler(opts.gateway, log),
		opts.idempotency,
		log,
	))
	require.NoError(t, bus.Start(context.Background()))
	t.Cleanup(func() { _ = bus.Stop(context.Background()) })

	outbox := event.NewGormOutboxRepository(db.DB)
	processor := event.NewOutboxProcessor(outbox, bus, serializer, event.OutboxProcessorConfig{BatchSize: 50}, log)

	service := appsales.NewSaleService(
		persistence.NewGormTransactionScope(db.DB, publisher),
		persistence.NewGormSaleRepository(db.DB),
		persistence.NewGormProductCatalog(db.DB),
		log,
		appsales.WithCurrency(valueobject.USD),
	)

	cfg := &config.Config{App: config.AppConfig{Name: "pos", Env: "test"}}
	engine, err := router.NewEngine(cfg, log, router.Handlers{
		Sales:    handler.NewSaleHandler(service),
		Products: handler.NewProductHandler(service),
		Health:   handler.NewHealthHandler(config.DriverPostgres, db.SqlDB),
	})
	require.NoError(t, err)

	tenantID := uuid.New()
	return &posStack{
		db:         db,
		service:    service,
		client:     testutil.NewAPIClient(engine, tenantID),
		outbox:     outbox,
		processor:  processor,
		bus:        bus,
		serializer: serializer,
		tenantID:   tenantID,
	}
}

// outboxCounts returns the number of entries per status
func (s *posStack) outboxCounts(t *testing.T) map[shared.OutboxStatus]int64 {
	t.Helper()
	counts, err := s.outbox.CountByStatus(context.Background())
	require.NoError(t, err)
	return counts
}

// redeliver publishes every stored entry of eventType to the bus again,
// as a second server draining the same outbox would
func (s *posStack) redeliver(t *testing.T, eventType string) {
	t.Helper()
	var rows []models.OutboxEntryModel
	require.NoError(t, s.db.DB.Where("event_type = ?", eventType).Find(&rows).Error)
	require.NotEmpty(t, rows)
	for i := range rows {
		evt, err := s.serializer.Deserialize(rows[i].EventType, rows[i].Payload)
		require.NoError(t, err)
		require.NoError(t, s.bus.Publish(context.Background(), evt))
	}
}
