package dto

import (
	"net/http"

	"github.com/erp/pos/internal/domain/shared"
)

// API error codes carried in Response.Error.Code
const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"

	ErrCodeValidation          = "ERR_VALIDATION"
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT" // stale expected_version or lost update
	ErrCodeInvalidState        = "ERR_INVALID_STATE"
	ErrCodeInsufficientStock   = "ERR_INSUFFICIENT_STOCK"

	ErrCodeBadRequest      = "ERR_BAD_REQUEST"
	ErrCodeInvalidJSON     = "ERR_INVALID_JSON"
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
	ErrCodeRateLimited     = "ERR_RATE_LIMITED"
)

// apiError is one row of the error table: the HTTP status of an API code and
// the domain code that produces it, if any
type apiError struct {
	status int
	domain string
}

var apiErrors = map[string]apiError{
	ErrCodeUnknown:  {status: http.StatusInternalServerError},
	ErrCodeInternal: {status: http.StatusInternalServerError},

	ErrCodeValidation:          {http.StatusBadRequest, shared.CodeValidation},
	ErrCodeNotFound:            {http.StatusNotFound, shared.CodeNotFound},
	ErrCodeAlreadyExists:       {http.StatusConflict, shared.CodeAlreadyExists},
	ErrCodeConcurrencyConflict: {http.StatusConflict, shared.CodeConcurrencyConflict},
	ErrCodeInvalidState:        {http.StatusUnprocessableEntity, shared.CodeInvalidState},
	ErrCodeInsufficientStock:   {http.StatusUnprocessableEntity, shared.CodeInsufficientStock},

	ErrCodeBadRequest:      {status: http.StatusBadRequest},
	ErrCodeInvalidJSON:     {status: http.StatusBadRequest},
	ErrCodeRequestTooLarge: {status: http.StatusRequestEntityTooLarge},
	ErrCodeRateLimited:     {status: http.StatusTooManyRequests},
}

// fromDomain indexes apiErrors by domain code
var fromDomain = func() map[string]string {
	m := make(map[string]string)
	for code, e := range apiErrors {
		if e.domain != "" {
			m[e.domain] = code
		}
	}
	return m
}()

// GetHTTPStatus returns the status for an API code, 500 when the code is unknown
func GetHTTPStatus(code string) int {
	if e, ok := apiErrors[code]; ok {
		return e.status
	}
	return http.StatusInternalServerError
}

// NormalizeErrorCode turns a shared.DomainError code into its API code.
// Any other code is returned unchanged.
func NormalizeErrorCode(code string) string {
	if api, ok := fromDomain[code]; ok {
		return api
	}
	return code
}
