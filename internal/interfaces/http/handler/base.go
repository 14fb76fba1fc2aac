package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	appsales "github.com/erp/pos/internal/application/sales"
	"github.com/erp/pos/internal/domain/sales"
	"github.com/erp/pos/internal/domain/shared"
	"github.com/erp/pos/internal/infrastructure/logger"
	"github.com/erp/pos/internal/interfaces/http/dto"
	"github.com/erp/pos/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.Set(middleware.ErrorCodeKey, code)
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// HandleError converts service errors to HTTP responses.
// Domain errors keep their message; anything else is a 500 with a generic message.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var stockErr *sales.InsufficientStockError
	if errors.As(err, &stockErr) {
		c.Set(middleware.ErrorCodeKey, dto.ErrCodeInsufficientStock)
		resp := dto.NewErrorResponseWithRequestID(dto.ErrCodeInsufficientStock, stockErr.Error(), middleware.GetRequestID(c))
		resp.Error.Stock = &dto.StockShortage{
			ProductID: stockErr.ProductID.String(),
			Requested: stockErr.Requested,
			Available: stockErr.Available,
		}
		c.JSON(http.StatusUnprocessableEntity, resp)
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		h.Error(c, dto.GetHTTPStatus(code), code, domainErr.Message)
		return
	}

	logger.GetGinLogger(c).Error("Unhandled error", zap.Error(err))
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, "An unexpected error occurred")
}

// parseID reads a UUID path parameter, answering 400 when it is malformed
func (h *BaseHandler) parseID(c *gin.Context, param, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		h.BadRequest(c, "Invalid "+label+" format")
		return uuid.Nil, false
	}
	return id, true
}

// bindJSON binds a required JSON body
func (h *BaseHandler) bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}

// bindOptionalJSON binds a JSON body when one is sent. An empty body leaves req untouched.
func (h *BaseHandler) bindOptionalJSON(c *gin.Context, req any) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(req); err != nil {
		if errors.Is(err, io.EOF) {
			return true
		}
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}

// bindVersionQuery fills guard from ?expected_version= when the body did not set it
func (h *BaseHandler) bindVersionQuery(c *gin.Context, guard *appsales.VersionGuard) bool {
	raw := c.Query("expected_version")
	if raw == "" || guard.ExpectedVersion != nil {
		return true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		h.BadRequest(c, "expected_version must be a positive integer")
		return false
	}
	guard.ExpectedVersion = &v
	return true
}
