package handler

import (
	"context"

	appsales "github.com/erp/pos/internal/application/sales"
	"github.com/erp/pos/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SaleHandler handles the POS sale endpoints
type SaleHandler struct {
	BaseHandler
	saleService *appsales.SaleService
}

// NewSaleHandler creates a new SaleHandler
func NewSaleHandler(saleService *appsales.SaleService) *SaleHandler {
	return &SaleHandler{
		saleService: saleService,
	}
}

// Create godoc
// @Summary      Open a sale
// @Description  Open an empty draft sale on a terminal
// @Tags         pos-sales
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        request body appsales.CreateSaleRequest false "Cashier"
// @Success      201 {object} dto.Response{data=appsales.SaleResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /pos/sales [post]
func (h *SaleHandler) Create(c *gin.Context) {
	var req appsales.CreateSaleRequest
	if !h.bindOptionalJSON(c, &req) {
		return
	}

	sale, err := h.saleService.Create(c.Request.Context(), middleware.GetTenantID(c), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, sale)
}

// List godoc
// @Summary      List sales
// @Description  List the tenant's sales with filtering and pagination
// @Tags         pos-sales
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        status query string false "Status" Enums(DRAFT, HELD, COMPLETED, VOIDED)
// @Param        page query int false "Page" default(1)
// @Param        page_size query int false "Page size" default(20)
// @Param        order_by query string false "Sort field" Enums(created_at, updated_at, sale_number, total)
// @Param        order_dir query string false "Sort direction" Enums(asc, desc)
// @Success      200 {object} dto.Response{data=[]appsales.SaleListItemResponse,meta=dto.Meta}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /pos/sales [get]
func (h *SaleHandler) List(c *gin.Context) {
	var filter appsales.SaleListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	items, total, err := h.saleService.List(c.Request.Context(), middleware.GetTenantID(c), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	page, pageSize := filter.Page, filter.PageSize
	if page == 0 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = 20
	}
	h.SuccessWithMeta(c, items, total, page, pageSize)
}

// GetByID godoc
// @Summary      Get sale by ID
// @Description  Retrieve a sale with its lines and payments
// @Tags         pos-sales
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Sale ID" format(uuid)
// @Success      200 {object} dto.Response{data=appsales.SaleResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /pos/sales/{id} [get]
func (h *SaleHandler) GetByID(c *gin.Context) {
	saleID, ok := h.parseID(c, "id", "sale ID")
	if !ok {
		return
	}

	sale, err := h.saleService.GetByID(c.Request.Context(), middleware.GetTenantID(c), saleID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, sale)
}

// AddLine godoc
// @Summary      Add a line
// @Description  Add a product to a draft sale. The price is captured now and defaults to the list price
// @Tags         pos-sales
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Sale ID" format(uuid)
// @Param        expected_version query int false "Version the client last saw"
// @Param        request body appsales.AddLineRequest true "Line"
// @Success      201 {object} dto.Response{data=appsales.SaleResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /pos/sales/{id}/lines [post]
func (h *SaleHandler) AddLine(c *gin.Context) {
	saleID, ok := h.parseID(c, "id", "sale ID")
	if !ok {
		return
	}
	var req appsales.AddLineRequest
	if !h.bindJSON(c, &req) || !h.bindVersionQuery(c, &req.VersionGuard) {
		return
	}

	sale, err := h.saleService.AddLine(c.Request.Context(), middleware.GetTenantID(c), saleID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, sale)
}

// UpdateLine godoc
// @Summary      Update line quantity
// @Description  Set a line quantity. Zero or less removes the line
// @Tags         pos-sales
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Sale ID" format(uuid)
// @Param        line_id path string true "Line ID" format(uuid)
// @Param        expected_version query int false "Version the client last saw"
// @Param        request body appsales.UpdateLineRequest true "Quantity"
// @Success      200 {object} dto.Response{data=appsales.SaleResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /pos/sales/{id}/lines/{line_id} [put]
func (h *SaleHandler) UpdateLine(c *gin.Context) {
	saleID, ok := h.parseID(c, "id", "sale ID")
	if !ok {
		return
	}
	lineID, ok := h.parseID(c, "line_id", "line ID")
	if !ok {
		return
	}
	var req appsales.UpdateLineRequest
	if !h.bindJSON(c, &req) || !h.bindVersionQuery(c, &req.VersionGuard) {
		return
	}

	sale, err := h.saleService.UpdateLine(c.Request.Context(), middleware.GetTenantID(c), saleID, lineID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, sale)
}

// SetLineDiscount godoc
// @Summary      Set line discount
// @Description  Set the discount amount of one line
// @Tags         pos-sales
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Sale ID" format(uuid)
// @Param        line_id path string true "Line ID" format(uuid)
// @Param        expected_version query int false "Version the client last saw"
// @Param        request body appsales.SetLineDiscountRequest true "Discount"
// @Success      200 {object} dto.Response{data=appsales.SaleResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /pos/sales/{id}/lines/{line_id}/discount [put]
func (h *SaleHandler) SetLineDiscount(c *gin.Context) {
	saleID, ok := h.parseID(c, "id", "sale ID")
	if !ok {
		return
	}
	lineID, ok := h.parseID(c, "line_id", "line ID")
	if !ok {
		return
	}
	var req appsales.SetLineDiscountRequest
	if !h.bindJSON(c, &req) || !h.bindVersionQuery(c, &req.VersionGuard) {
		return
	}

	sale, err := h.saleService.SetLineDiscount(c.Request.Context(), middleware.GetTenantID(c), saleID, lineID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, sale)
}

// RemoveLine godoc
// @Summary      Remove a line
// @Description  Remove a line from a draft sale
// @Tags         pos-sales
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Sale ID" format(uuid)
// @Param        line_id path string true "Line ID" format(uuid)
// @Param        expected_version query int false "Version the client last saw"
// @Success      200 {object} dto.Response{data=appsales.SaleResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /pos/sales/{id}/lines/{line_id} [delete]
func (h *SaleHandler) RemoveLine(c *gin.Context) {
	saleID, ok := h.parseID(c, "id", "sale ID")
	if !ok {
		return
	}
	lineID, ok := h.parseID(c, "line_id", "line ID")
	if !ok {
		return
	}
	var guard appsales.VersionGuard
	if !h.bindOptionalJSON(c, &guard) || !h.bindVersionQuery(c, &guard) {
		return
	}

	sale, err := h.saleService.RemoveLine(c.Request.Context(), middleware.GetTenantID(c), saleID, lineID, guard)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, sale)
}

// ApplyDiscount godoc
// @Summary      Apply sale discount
// @Description  Set the sale-level discount, percent or fixed
// @Tags         pos-sales
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Sale ID" format(uuid)
// @Param        expected_version query int false "Version the client last saw"
// @Param        request body appsales.ApplyDiscountRequest true "Discount"
// @Success      200 {object} dto.Response{data=appsales.SaleResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /pos/sales/{id}/discount [put]
func (h *SaleHandler) ApplyDiscount(c *gin.Context) {
	saleID, ok := h.parseID(c, "id", "sale ID")
	if !ok {
		return
	}
	var req appsales.ApplyDiscountRequest
	if !h.bindJSON(c, &req) || !h.bindVersionQuery(c, &req.VersionGuard) {
		return
	}

	sale, err := h.saleService.ApplyDiscount(c.Request.Context(), middleware.GetTenantID(c), saleID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, sale)
}

// AddPayment godoc
// @Summary      Add a payment
// @Description  Record a tender. Non-cash tenders need a reference
// @Tags         pos-sales
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Sale ID" format(uuid)
// @Param        expected_version query int false "Version the client last saw"
// @Param        request body appsales.AddPaymentRequest true "Payment"
// @Success      201 {object} dto.Response{data=appsales.SaleResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /pos/sales/{id}/payments [post]
func (h *SaleHandler) AddPayment(c *gin.Context) {
	saleID, ok := h.parseID(c, "id", "sale ID")
	if !ok {
		return
	}
	var req appsales.AddPaymentRequest
	if !h.bindJSON(c, &req) || !h.bindVersionQuery(c, &req.VersionGuard) {
		return
	}

	sale, err := h.saleService.AddPayment(c.Request.Context(), middleware.GetTenantID(c), saleID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, sale)
}

// Hold godoc
// @Summary      Hold a sale
// @Description  Park a draft sale
// @Tags         pos-sales
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Sale ID" format(uuid)
// @Param        expected_version query int false "Version the client last saw"
// @Param        request body appsales.VersionGuard false "Version guard"
// @Success      200 {object} dto.Response{data=appsales.SaleResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /pos/sales/{id}/hold [post]
func (h *SaleHandler) Hold(c *gin.Context) {
	h.transition(c, h.saleService.Hold)
}

// Retrieve godoc
// @Summary      Retrieve a held sale
// @Description  Resume a held sale as a draft
// @Tags         pos-sales
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Sale ID" format(uuid)
// @Param        expected_version query int false "Version the client last saw"
// @Param        request body appsales.VersionGuard false "Version guard"
// @Success      200 {object} dto.Response{data=appsales.SaleResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /pos/sales/{id}/retrieve [post]
func (h *SaleHandler) Retrieve(c *gin.Context) {
	h.transition(c, h.saleService.Retrieve)
}

// Void godoc
// @Summary      Void a sale
// @Description  Void a completed sale and restore its stock
// @Tags         pos-sales
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Sale ID" format(uuid)
// @Param        expected_version query int false "Version the client last saw"
// @Param        request body appsales.VersionGuard false "Version guard"
// @Success      200 {object} dto.Response{data=appsales.SaleResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /pos/sales/{id}/void [post]
func (h *SaleHandler) Void(c *gin.Context) {
	h.transition(c, h.saleService.Void)
}

// Complete godoc
// @Summary      Complete a sale
// @Description  Commit stock for every line and close the sale. With for_delivery the response carries a delivery_id
// @Tags         pos-sales
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Sale ID" format(uuid)
// @Param        expected_version query int false "Version the client last saw"
// @Param        request body appsales.CompleteSaleRequest false "Completion options"
// @Success      200 {object} dto.Response{data=appsales.CompleteSaleResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /pos/sales/{id}/complete [post]
func (h *SaleHandler) Complete(c *gin.Context) {
	saleID, ok := h.parseID(c, "id", "sale ID")
	if !ok {
		return
	}
	var req appsales.CompleteSaleRequest
	if !h.bindOptionalJSON(c, &req) || !h.bindVersionQuery(c, &req.VersionGuard) {
		return
	}

	result, err := h.saleService.Complete(c.Request.Context(), middleware.GetTenantID(c), saleID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

type transitionFunc func(ctx context.Context, tenantID, saleID uuid.UUID, guard appsales.VersionGuard) (*appsales.SaleResponse, error)

// transition runs a status change whose body only carries the version guard
func (h *SaleHandler) transition(c *gin.Context, fn transitionFunc) {
	saleID, ok := h.parseID(c, "id", "sale ID")
	if !ok {
		return
	}
	var guard appsales.VersionGuard
	if !h.bindOptionalJSON(c, &guard) || !h.bindVersionQuery(c, &guard) {
		return
	}

	sale, err := fn(c.Request.Context(), middleware.GetTenantID(c), saleID, guard)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, sale)
}
