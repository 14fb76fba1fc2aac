package handler

import (
	appsales "github.com/erp/pos/internal/application/sales"
	"github.com/erp/pos/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// ProductHandler serves the catalog lookups a terminal needs before adding a line
type ProductHandler struct {
	BaseHandler
	saleService *appsales.SaleService
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(saleService *appsales.SaleService) *ProductHandler {
	return &ProductHandler{saleService: saleService}
}

// GetByID godoc
// @Summary      Get product by ID
// @Description  Retrieve a product with its list price and quantity on hand
// @Tags         pos-products
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Product ID" format(uuid)
// @Success      200 {object} dto.Response{data=appsales.ProductResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /pos/products/{id} [get]
func (h *ProductHandler) GetByID(c *gin.Context) {
	productID, ok := h.parseID(c, "id", "product ID")
	if !ok {
		return
	}

	product, err := h.saleService.GetProduct(c.Request.Context(), middleware.GetTenantID(c), productID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, product)
}
