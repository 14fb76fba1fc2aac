package middleware

import (
	"net/http"

	"github.com/erp/pos/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

const bodyTooLarge = "Request body exceeds maximum allowed size"

// BodyLimit answers 413 when Content-Length is over limit. Bodies of unknown length
// are read through http.MaxBytesReader, so binding them fails once limit is passed.
func BodyLimit(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			abortWithError(c, http.StatusRequestEntityTooLarge, dto.ErrCodeRequestTooLarge, bodyTooLarge)
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
