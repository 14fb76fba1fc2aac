package router

import "github.com/erp/pos/internal/interfaces/http/handler"

// NewOpsGroup returns the operator routes. They span tenants, so no tenant header is read.
func NewOpsGroup(outbox *handler.OutboxHandler) *DomainGroup {
	ops := NewDomainGroup("ops", "/ops")

	ops.Group("outbox", "/outbox").
		GET("/stats", outbox.Stats).
		GET("/dead", outbox.ListDead).
		POST("/dead/retry", outbox.RetryAll).
		POST("/:id/retry", outbox.Retry)

	return ops
}
