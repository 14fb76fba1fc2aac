package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/erp/pos/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type addLineBody struct {
	ProductID string `json:"product_id" binding:"required,uuid"`
	Quantity  int64  `json:"quantity" binding:"required,gt=0"`
	Note      string `json:"note" binding:"max=4"`
}

func newValidationRouter() *gin.Engine {
	SetupValidator()
	router := gin.New()
	router.Use(RequestID())
	router.POST("/lines", func(c *gin.Context) {
		var body addLineBody
		if err := c.ShouldBindJSON(&body); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.Status(http.StatusCreated)
	})
	return router
}

func postJSON(router *gin.Engine, body string) (*httptest.ResponseRecorder, dto.Response) {
	req := httptest.NewRequest(http.MethodPost, "/lines", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	var resp dto.Response
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func TestHandleValidationError(t *testing.T) {
	router := newValidationRouter()

	t.Run("valid body passes", func(t *testing.T) {
		w, _ := postJSON(router, `{"product_id":"6f1c0d1e-8a3b-4c55-9a43-2a0c5b8f1e01","quantity":2}`)
		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("malformed JSON", func(t *testing.T) {
		w, resp := postJSON(router, `{"product_id":`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeInvalidJSON, resp.Error.Code)
		assert.NotEmpty(t, resp.Error.RequestID)
	})

	t.Run("field errors use JSON names", func(t *testing.T) {
		w, resp := postJSON(router, `{"product_id":"nope","quantity":0,"note":"too long"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)

		messages := map[string]string{}
		for _, d := range resp.Error.Details {
			messages[d.Field] = d.Message
		}
		assert.Equal(t, "Invalid UUID format", messages["product_id"])
		assert.Equal(t, "This field is required", messages["quantity"])
		assert.Equal(t, "Must be at most 4 characters", messages["note"])
	})
}

func TestHandleValidationError_BodyTooLarge(t *testing.T) {
	SetupValidator()
	router := gin.New()
	router.Use(RequestID(), BodyLimit(32))
	router.POST("/lines", func(c *gin.Context) {
		var body addLineBody
		if err := c.ShouldBindJSON(&body); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.Status(http.StatusCreated)
	})

	req := httptest.NewRequest(http.MethodPost, "/lines",
		strings.NewReader(`{"product_id":"6f1c0d1e-8a3b-4c55-9a43-2a0c5b8f1e01","quantity":2}`))
	req.Header.Set("Content-Type", "application/json")
	req.ContentLength = -1
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), dto.ErrCodeRequestTooLarge)
}
