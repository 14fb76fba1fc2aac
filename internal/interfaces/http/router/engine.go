package router

import (
	"fmt"

	"github.com/erp/pos/internal/infrastructure/config"
	"github.com/erp/pos/internal/infrastructure/logger"
	"github.com/erp/pos/internal/interfaces/http/handler"
	"github.com/erp/pos/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handlers groups the HTTP handlers mounted by NewEngine
type Handlers struct {
	Sales    *handler.SaleHandler
	Products *handler.ProductHandler
	Health   *handler.HealthHandler
	// Outbox is nil when sales are kept in process
	Outbox *handler.OutboxHandler
}

// NewEngine builds the gin engine with the global middleware chain,
// /health and the versioned POS routes
func NewEngine(cfg *config.Config, log *zap.Logger, h Handlers) (*gin.Engine, error) {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		return nil, fmt.Errorf("set trusted proxies: %w", err)
	}

	engine.Use(
		logger.Recovery(log),
		middleware.RequestID(),
	)
	if cfg.Telemetry.Enabled {
		engine.Use(
			middleware.Tracing(cfg.Telemetry.ServiceName),
			middleware.SpanErrorMarker(),
		)
	}
	engine.Use(
		logger.GinMiddleware(log),
		middleware.Secure(),
		middleware.CORS(middleware.CORSConfig{
			AllowOrigins: cfg.HTTP.CORSAllowOrigins,
			AllowMethods: cfg.HTTP.CORSAllowMethods,
			AllowHeaders: cfg.HTTP.CORSAllowHeaders,
		}),
	)

	engine.GET("/health", h.Health.Check)

	var apiMiddleware []gin.HandlerFunc
	if cfg.HTTP.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		apiMiddleware = append(apiMiddleware, middleware.RateLimit(limiter))
	}
	if cfg.HTTP.MaxBodySize > 0 {
		apiMiddleware = append(apiMiddleware, middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	}

	r := NewRouter(engine, WithAPIVersion("v1"), WithAPIMiddleware(apiMiddleware...))
	r.Register(NewPOSGroup(h.Sales, h.Products))
	if h.Outbox != nil {
		r.Register(NewOpsGroup(h.Outbox))
	}
	r.Setup()

	return engine, nil
}
