package router

import (
	"github.com/erp/pos/internal/interfaces/http/handler"
	"github.com/erp/pos/internal/interfaces/http/middleware"
)

// NewPOSGroup returns the /pos routes. Every route requires X-Tenant-ID.
func NewPOSGroup(sales *handler.SaleHandler, products *handler.ProductHandler) *DomainGroup {
	pos := NewDomainGroup("pos", "/pos").
		Use(middleware.Tenant(), middleware.SpanAttributes())

	pos.Group("sales", "/sales").
		POST("", sales.Create).
		GET("", sales.List).
		GET("/:id", sales.GetByID).
		POST("/:id/lines", sales.AddLine).
		PUT("/:id/lines/:line_id", sales.UpdateLine).
		PUT("/:id/lines/:line_id/discount", sales.SetLineDiscount).
		DELETE("/:id/lines/:line_id", sales.RemoveLine).
		PUT("/:id/discount", sales.ApplyDiscount).
		POST("/:id/payments", sales.AddPayment).
		POST("/:id/hold", sales.Hold).
		POST("/:id/retrieve", sales.Retrieve).
		POST("/:id/complete", sales.Complete).
		POST("/:id/void", sales.Void)

	pos.Group("products", "/products").
		GET("/:id", products.GetByID)

	return pos
}
