package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	appsales "github.com/erp/pos/internal/application/sales"
	"github.com/erp/pos/internal/domain/sales"
	"github.com/erp/pos/internal/domain/shared/valueobject"
	"github.com/erp/pos/internal/infrastructure/persistence/memory"
	"github.com/erp/pos/internal/interfaces/http/dto"
	"github.com/erp/pos/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

// envelope mirrors dto.Response with a raw data payload
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *dto.ErrorInfo  `json:"error"`
	Meta    *dto.Meta       `json:"meta"`
}

type testServer struct {
	engine   *gin.Engine
	catalog  *memory.ProductCatalog
	tenantID uuid.UUID
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.NewStore()
	catalog := memory.NewProductCatalog(store)
	service := appsales.NewSaleService(
		memory.NewTransactionScope(store, nil),
		memory.NewSaleRepository(store),
		catalog,
		zap.NewNop(),
		appsales.WithCurrency(valueobject.USD),
	)

	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.GET("/health", NewHealthHandler("memory", nil).Check)

	api := engine.Group("/api/v1/pos", middleware.Tenant())
	sh := NewSaleHandler(service)
	api.POST("/sales", sh.Create)
	api.GET("/sales", sh.List)
	api.GET("/sales/:id", sh.GetByID)
	api.POST("/sales/:id/lines", sh.AddLine)
	api.PUT("/sales/:id/lines/:line_id", sh.UpdateLine)
	api.PUT("/sales/:id/lines/:line_id/discount", sh.SetLineDiscount)
	api.DELETE("/sales/:id/lines/:line_id", sh.RemoveLine)
	api.PUT("/sales/:id/discount", sh.ApplyDiscount)
	api.POST("/sales/:id/payments", sh.AddPayment)
	api.POST("/sales/:id/hold", sh.Hold)
	api.POST("/sales/:id/retrieve", sh.Retrieve)
	api.POST("/sales/:id/complete", sh.Complete)
	api.POST("/sales/:id/void", sh.Void)
	api.GET("/products/:id", NewProductHandler(service).GetByID)

	return &testServer{engine: engine, catalog: catalog, tenantID: uuid.New()}
}

func (s *testServer) seedProduct(t *testing.T, name, price string, qty int64) *sales.Product {
	t.Helper()
	p := &sales.Product{
		ID:             uuid.New(),
		TenantID:       s.tenantID,
		SKU:            "SKU-" + name,
		Name:           name,
		Unit:           "pcs",
		ListPrice:      decimal.RequireFromString(price),
		QuantityOnHand: qty,
	}
	require.NoError(t, s.catalog.Save(context.Background(), p))
	return p
}

func (s *testServer) do(t *testing.T, method, path string, body any) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, "/api/v1/pos"+path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.TenantIDHeader, s.tenantID.String())
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func decodeSale(t *testing.T, env envelope) appsales.SaleResponse {
	t.Helper()
	var sale appsales.SaleResponse
	require.NoError(t, json.Unmarshal(env.Data, &sale))
	return sale
}

func (s *testServer) openSale(t *testing.T) appsales.SaleResponse {
	t.Helper()
	status, env := s.do(t, http.MethodPost, "/sales", nil)
	require.Equal(t, http.StatusCreated, status)
	return decodeSale(t, env)
}

func (s *testServer) addLine(t *testing.T, saleID uuid.UUID, p *sales.Product, qty int) appsales.SaleResponse {
	t.Helper()
	status, env := s.do(t, http.MethodPost, "/sales/"+saleID.String()+"/lines", gin.H{
		"product_id": p.ID,
		"quantity":   qty,
	})
	require.Equal(t, http.StatusCreated, status, env.Error)
	return decodeSale(t, env)
}

func (s *testServer) pay(t *testing.T, saleID uuid.UUID, method, amount, reference string) appsales.SaleResponse {
	t.Helper()
	status, env := s.do(t, http.MethodPost, "/sales/"+saleID.String()+"/payments", gin.H{
		"method":    method,
		"amount":    amount,
		"reference": reference,
	})
	require.Equal(t, http.StatusCreated, status, env.Error)
	return decodeSale(t, env)
}

func (s *testServer) quantityOnHand(t *testing.T, productID uuid.UUID) int64 {
	t.Helper()
	status, env := s.do(t, http.MethodGet, "/products/"+productID.String(), nil)
	require.Equal(t, http.StatusOK, status)
	var product appsales.ProductResponse
	require.NoError(t, json.Unmarshal(env.Data, &product))
	return product.QuantityOnHand
}
