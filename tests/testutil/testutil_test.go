package testutil

import (
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	appsales "github.com/erp/pos/internal/application/sales"
	"github.com/erp/pos/internal/interfaces/http/dto"
	"github.com/erp/pos/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTestUUID(t *testing.T) {
	assert.Equal(t, NewTestUUID("a"), NewTestUUID("a"))
	assert.NotEqual(t, NewTestUUID("a"), NewTestUUID("b"))
	assert.NotEqual(t, uuid.Nil, TestTenantID())
}

func TestContextWithTimeout(t *testing.T) {
	ctx := ContextWithTimeout(t, 20*time.Millisecond)
	_, ok := ctx.Deadline()
	assert.True(t, ok)
	<-ctx.Done()
	assert.Error(t, ctx.Err())
}

func TestRequireEventually(t *testing.T) {
	var n atomic.Int32
	go func() {
		time.Sleep(20 * time.Millisecond)
		n.Store(1)
	}()
	RequireEventually(t, func() bool { return n.Load() == 1 }, time.Second)
}

func TestAssertNever(t *testing.T) {
	AssertNever(t, func() bool { return false }, 30*time.Millisecond)
}

func TestRecordingGateway(t *testing.T) {
	g := NewRecordingGateway()
	deliveryID := uuid.New()
	req := appsales.DeliveryRequest{DeliveryID: deliveryID, SaleNumber: "POS-1"}

	g.FailNext(1, errors.New("down"))
	assert.Error(t, g.RequestDelivery(t.Context(), req))
	assert.Empty(t, g.Requests())

	require.NoError(t, g.RequestDelivery(t.Context(), req))
	require.NoError(t, g.RequestDelivery(t.Context(), appsales.DeliveryRequest{DeliveryID: uuid.New()}))
	assert.Len(t, g.Requests(), 2)
	assert.Equal(t, 1, g.CountFor(deliveryID))
}

func TestAPIClient(t *testing.T) {
	engine := gin.New()
	engine.POST("/api/v1/pos/echo", func(c *gin.Context) {
		var body map[string]any
		_ = c.ShouldBindJSON(&body)
		c.JSON(http.StatusCreated, dto.Response{Success: true, Data: gin.H{
			"tenant": c.GetHeader(middleware.TenantIDHeader),
			"name":   body["name"],
		}})
	})
	engine.GET("/api/v1/pos/missing", func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.NewErrorResponse("ERR_NOT_FOUND", "missing"))
	})

	tenantID := uuid.New()
	client := NewAPIClient(engine, tenantID)

	got := DoOK[map[string]string](t, client, http.StatusCreated, http.MethodPost, "/echo", map[string]string{"name": "latte"})
	assert.Equal(t, tenantID.String(), got["tenant"])
	assert.Equal(t, "latte", got["name"])

	w := client.Do(t, http.MethodGet, "/missing", nil)
	info := RequireErrorCode(t, w, http.StatusNotFound, "ERR_NOT_FOUND")
	assert.Equal(t, "missing", info.Message)
}
