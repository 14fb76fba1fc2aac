package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/erp/pos/internal/interfaces/http/dto"
	"github.com/erp/pos/internal/interfaces/http/middleware"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// Envelope mirrors dto.Response with the data left undecoded
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *dto.ErrorInfo  `json:"error"`
	Meta    *dto.Meta       `json:"meta"`
}

// APIClient issues tenant scoped requests against an in-process handler
type APIClient struct {
	Handler  http.Handler
	TenantID uuid.UUID
	// BasePath is prefixed to every path, e.g. /api/v1/pos
	BasePath string
}

// NewAPIClient creates a client for the POS routes of handler
func NewAPIClient(handler http.Handler, tenantID uuid.UUID) *APIClient {
	return &APIClient{Handler: handler, TenantID: tenantID, BasePath: "/api/v1/pos"}
}

// Do sends body as JSON when it is not nil
func (c *APIClient) Do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err, "Failed to marshal request body")
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, c.BasePath+path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.TenantID != uuid.Nil {
		req.Header.Set(middleware.TenantIDHeader, c.TenantID.String())
	}

	w := httptest.NewRecorder()
	c.Handler.ServeHTTP(w, req)
	return w
}

// DoOK sends the request and fails the test unless the status matches
func DoOK[T any](t *testing.T, c *APIClient, wantStatus int, method, path string, body any) T {
	t.Helper()
	w := c.Do(t, method, path, body)
	require.Equal(t, wantStatus, w.Code, "%s %s: %s", method, path, w.Body.String())
	return DecodeData[T](t, w)
}

// DecodeEnvelope parses the response envelope
func DecodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), "Failed to parse response: %s", w.Body.String())
	return env
}

// DecodeData parses the data field of a success envelope into T
func DecodeData[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	env := DecodeEnvelope(t, w)
	require.True(t, env.Success, "expected success, got %s", w.Body.String())

	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

// RequireErrorCode asserts the status and the envelope error code
func RequireErrorCode(t *testing.T, w *httptest.ResponseRecorder, status int, code string) *dto.ErrorInfo {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	env := DecodeEnvelope(t, w)
	require.False(t, env.Success)
	require.NotNil(t, env.Error, fmt.Sprintf("missing error in %s", w.Body.String()))
	require.Equal(t, code, env.Error.Code)
	return env.Error
}
