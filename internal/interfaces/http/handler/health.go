package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/erp/pos/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger reports whether a backing store is reachable
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler answers liveness checks
type HealthHandler struct {
	driver  string
	db      Pinger
	timeout time.Duration
}

// NewHealthHandler creates a health handler. A nil db reports the in-process
// store, which is always up.
func NewHealthHandler(driver string, db Pinger) *HealthHandler {
	return &HealthHandler{driver: driver, db: db, timeout: 2 * time.Second}
}

// Check godoc
// @Summary      Health check
// @Description  Report whether the service and its database are reachable
// @Tags         health
// @Accept       json
// @Produce      json
// @Success      200 {object} map[string]string
// @Failure      503 {object} map[string]string
// @Router       /health [get]
func (h *HealthHandler) Check(c *gin.Context) {
	body := gin.H{
		"status":   "healthy",
		"time":     time.Now().Format(time.RFC3339),
		"driver":   h.driver,
		"database": "ok",
	}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			logger.GetGinLogger(c).Warn("Health check failed", zap.Error(err))
			body["status"] = "unhealthy"
			body["database"] = "error"
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
	}
	c.JSON(http.StatusOK, body)
}
