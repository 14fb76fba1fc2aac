package middleware

import (
	"net/http"

	"github.com/erp/pos/internal/infrastructure/logger"
	"github.com/erp/pos/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// TenantIDHeader identifies the store a terminal belongs to
	TenantIDHeader = "X-Tenant-ID"
	// TenantIDKey is the gin context key holding the parsed tenant ID
	TenantIDKey = "tenant_id"
)

// Tenant requires a UUID X-Tenant-ID header and stores the parsed value.
// The tenant is also attached to the request context for logging.
func Tenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(TenantIDHeader)
		if raw == "" {
			abortWithError(c, http.StatusBadRequest, dto.ErrCodeBadRequest, "X-Tenant-ID header is required")
			return
		}
		tenantID, err := uuid.Parse(raw)
		if err != nil || tenantID == uuid.Nil {
			abortWithError(c, http.StatusBadRequest, dto.ErrCodeBadRequest, "X-Tenant-ID must be a UUID")
			return
		}

		c.Set(TenantIDKey, tenantID)
		c.Request = c.Request.WithContext(logger.WithTenantID(c.Request.Context(), tenantID.String()))
		c.Next()
	}
}

// GetTenantID returns the tenant set by Tenant, or uuid.Nil
func GetTenantID(c *gin.Context) uuid.UUID {
	if v, ok := c.Get(TenantIDKey); ok {
		if id, ok := v.(uuid.UUID); ok {
			return id
		}
	}
	return uuid.Nil
}

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, dto.NewErrorResponseWithRequestID(code, message, GetRequestID(c)))
}
