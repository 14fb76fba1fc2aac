package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appevent "github.com/erp/pos/internal/application/event"
	appsales "github.com/erp/pos/internal/application/sales"
	"github.com/erp/pos/internal/domain/sales"
	"github.com/erp/pos/internal/domain/shared"
	"github.com/erp/pos/internal/domain/shared/valueobject"
	"github.com/erp/pos/internal/infrastructure/cache"
	"github.com/erp/pos/internal/infrastructure/config"
	"github.com/erp/pos/internal/infrastructure/delivery"
	"github.com/erp/pos/internal/infrastructure/event"
	"github.com/erp/pos/internal/infrastructure/logger"
	"github.com/erp/pos/internal/infrastructure/persistence"
	"github.com/erp/pos/internal/infrastructure/persistence/memory"
	"github.com/erp/pos/internal/infrastructure/telemetry"
	"github.com/erp/pos/internal/interfaces/http/handler"
	"github.com/erp/pos/internal/interfaces/http/router"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// backend is the storage selected by database.driver
type backend struct {
	scope   appsales.TransactionScope
	sales   sales.SaleRepository
	catalog appsales.CatalogWriter
	pinger  handler.Pinger
	// outbox is nil for the in-process backend, which publishes directly
	outbox *event.GormOutboxRepository
	close  func() error
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(logger.FromAppConfig(cfg.Log))
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	// Telemetry comes up before anything else so the bridged logger reaches the collector
	tel, err := telemetry.Setup(context.Background(), cfg.Telemetry, cfg.Profiling, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(ctx); err != nil {
			log.Error("Error shutting down telemetry", zap.Error(err))
		}
	}()
	log = tel.Logs.BridgeLogger(log)

	log.Info("Starting POS sale engine",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("driver", cfg.Database.Driver),
	)

	// Initialize event serializer and register all event types
	eventSerializer := event.NewEventSerializer()
	event.RegisterAllEvents(eventSerializer)
	outboxPublisher := event.NewOutboxPublisher(eventSerializer, event.WithMaxRetries(cfg.Event.MaxRetries))

	eventBus := event.NewInMemoryEventBus(log)

	store, err := openBackend(cfg, log, eventBus, outboxPublisher)
	if err != nil {
		log.Fatal("Failed to open storage", zap.Error(err))
	}
	defer func() {
		if err := store.close(); err != nil {
			log.Error("Error closing storage", zap.Error(err))
		}
	}()

	if err := seedCatalog(context.Background(), store.catalog, cfg.Sales.SeedProducts, log); err != nil {
		log.Fatal("Failed to seed product catalog", zap.Error(err))
	}

	// Idempotency store and delivery gateway share the Redis connection when there is one
	idempotencyStore, err := cache.OpenIdempotencyStore(context.Background(), cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	)
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}
	defer func() {
		if err := idempotencyStore.Close(); err != nil {
			log.Error("Error closing idempotency store", zap.Error(err))
		}
	}()

	var gateway appsales.DeliveryGateway
	if redisStore, ok := idempotencyStore.(*cache.RedisIdempotencyStore); ok {
		gateway = delivery.NewRedisStreamGateway(redisStore.Client(), cfg.Sales.DeliveryStream, cfg.Sales.DeliveryMaxLen, log)
	} else {
		gateway = delivery.NewLogGateway(log)
	}

	// Register event handlers
	deliveryHandler := event.NewIdempotentHandler(
		appsales.NewDeliveryRequestedHandler(gateway, log),
		idempotencyStore,
		log,
		event.WithIdempotencyConfig(shared.IdempotencyConfig{
			TTL:     cfg.Sales.IdempotencyTTL,
			Enabled: true,
		}),
	)
	eventBus.Subscribe(deliveryHandler)
	log.Info("Event handlers registered",
		zap.Strings("delivery_events", deliveryHandler.EventTypes()),
	)

	// Start event bus
	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// The outbox processor relays committed events from outbox_events to the event bus
	if store.outbox != nil && cfg.Event.ProcessorEnabled {
		processorConfig := event.DefaultOutboxProcessorConfig()
		processorConfig.BatchSize = cfg.Event.BatchSize
		processorConfig.PollInterval = cfg.Event.PollInterval
		processorConfig.CleanupEnabled = cfg.Event.CleanupEnabled
		processorConfig.CleanupRetention = cfg.Event.CleanupRetention

		outboxProcessor := event.NewOutboxProcessor(store.outbox, eventBus, eventSerializer, processorConfig, log)
		if err := outboxProcessor.Start(context.Background()); err != nil {
			log.Fatal("Failed to start outbox processor", zap.Error(err))
		}
		defer func() {
			if err := outboxProcessor.Stop(context.Background()); err != nil {
				log.Error("Error stopping outbox processor", zap.Error(err))
			}
		}()
		log.Info("Outbox processor started",
			zap.Int("batch_size", processorConfig.BatchSize),
			zap.Duration("poll_interval", processorConfig.PollInterval),
		)
	}

	// Initialize services
	serviceOpts := []appsales.SaleServiceOption{
		appsales.WithCurrency(valueobject.Currency(cfg.Sales.Currency)),
	}
	if saleMetrics, err := tel.NewSaleMetrics(); err != nil {
		log.Warn("Sale metrics unavailable", zap.Error(err))
	} else {
		serviceOpts = append(serviceOpts, appsales.WithSaleMetrics(saleMetrics))
	}
	saleService := appsales.NewSaleService(store.scope, store.sales, store.catalog, log, serviceOpts...)

	handlers := router.Handlers{
		Sales:    handler.NewSaleHandler(saleService),
		Products: handler.NewProductHandler(saleService),
		Health:   handler.NewHealthHandler(cfg.Database.Driver, store.pinger),
	}
	if store.outbox != nil {
		handlers.Outbox = handler.NewOutboxHandler(appevent.NewOutboxService(store.outbox, log))
	}

	engine, err := router.NewEngine(cfg, log, handlers)
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return
	}

	log.Info("Server exited gracefully")
}

// seedCatalog adds the configured products the catalog does not have yet
func seedCatalog(ctx context.Context, catalog appsales.CatalogWriter, seeds []config.SeedProduct, log *zap.Logger) error {
	if len(seeds) == 0 {
		return nil
	}
	products := make([]sales.Product, 0, len(seeds))
	for _, seed := range seeds {
		id, err := uuid.Parse(seed.ID)
		if err != nil {
			return err
		}
		tenantID, err := uuid.Parse(seed.TenantID)
		if err != nil {
			return err
		}
		price, err := decimal.NewFromString(seed.Price)
		if err != nil {
			return err
		}
		products = append(products, sales.Product{
			ID:             id,
			TenantID:       tenantID,
			SKU:            seed.SKU,
			Name:           seed.Name,
			Unit:           seed.Unit,
			ListPrice:      price,
			QuantityOnHand: seed.Quantity,
		})
	}

	added, err := appsales.SeedCatalog(ctx, catalog, products)
	if err != nil {
		return err
	}
	log.Info("Product catalog seeded", zap.Int("configured", len(products)), zap.Int("added", added))
	return nil
}

// openBackend builds repositories for the configured driver
func openBackend(cfg *config.Config, log *zap.Logger, bus *event.InMemoryEventBus, outbox *event.OutboxPublisher) (*backend, error) {
	if cfg.Database.Driver == config.DriverMemory {
		store := memory.NewStore(memory.WithLogger(log))
		log.Warn("Using in-process storage, sales are lost on restart")
		return &backend{
			scope:   memory.NewTransactionScope(store, bus),
			sales:   memory.NewSaleRepository(store),
			catalog: memory.NewProductCatalog(store),
			close:   func() error { return nil },
		}, nil
	}

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
	)
	db, err := persistence.Open(&cfg.Database, persistence.WithGormLogger(gormLog))
	if err != nil {
		return nil, err
	}
	log.Info("Database connected successfully")

	dbSystem := "postgresql"
	if cfg.Database.Driver == config.DriverSQLite {
		dbSystem = "sqlite"
		// SQLite has no migration files; the schema comes from the models
		if err := persistence.AutoMigrate(db.DB); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := telemetry.NewDBTracingPlugin(cfg.Telemetry, dbSystem, log).Register(db.DB); err != nil {
		log.Warn("Database tracing not installed", zap.Error(err))
	}

	return &backend{
		scope:   persistence.NewGormTransactionScope(db.DB, outbox),
		sales:   persistence.NewGormSaleRepository(db.DB),
		catalog: persistence.NewGormProductCatalog(db.DB),
		pinger:  db,
		outbox:  event.NewGormOutboxRepository(db.DB),
		close:   db.Close,
	}, nil
}
