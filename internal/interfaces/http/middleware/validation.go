package middleware

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/erp/pos/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// SetupValidator makes field errors name the json key, or the form key for query structs
func SetupValidator() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
			switch name {
			case "-":
				return ""
			case "":
				continue
			}
			return name
		}
		return ""
	})
}

// HandleValidationError answers a failed ShouldBind. Field errors become 400
// ERR_VALIDATION with details, a body cut off by BodyLimit is 413 and anything
// else is 400 ERR_INVALID_JSON.
func HandleValidationError(c *gin.Context, err error) {
	var fields validator.ValidationErrors
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &fields):
		c.Set(ErrorCodeKey, dto.ErrCodeValidation)
		c.AbortWithStatusJSON(http.StatusBadRequest, FormatValidationErrors(fields, GetRequestID(c)))
	case errors.As(err, &tooLarge):
		abortWithError(c, http.StatusRequestEntityTooLarge, dto.ErrCodeRequestTooLarge, bodyTooLarge)
	default:
		c.Set(ErrorCodeKey, dto.ErrCodeInvalidJSON)
		c.AbortWithStatusJSON(http.StatusBadRequest,
			dto.NewErrorResponseWithRequestID(dto.ErrCodeInvalidJSON, "Request body is not valid JSON", GetRequestID(c)))
	}
}

// FormatValidationErrors lists one detail per invalid field
func FormatValidationErrors(fields validator.ValidationErrors, requestID string) dto.Response {
	details := make([]dto.ValidationDetail, 0, len(fields))
	for _, f := range fields {
		details = append(details, dto.ValidationDetail{Field: f.Field(), Message: describe(f)})
	}
	return dto.NewValidationErrorResponse("Request validation failed", requestID, details)
}

var fixedMessages = map[string]string{
	"required": "This field is required",
	"uuid":     "Invalid UUID format",
}

var boundMessages = map[string]string{
	"min":   "Must be at least ",
	"max":   "Must be at most ",
	"gt":    "Must be greater than ",
	"gte":   "Must be greater than or equal to ",
	"oneof": "Must be one of: ",
}

func describe(f validator.FieldError) string {
	if msg, ok := fixedMessages[f.Tag()]; ok {
		return msg
	}
	prefix, ok := boundMessages[f.Tag()]
	if !ok {
		return "Invalid value"
	}
	msg := prefix + f.Param()
	if (f.Tag() == "min" || f.Tag() == "max") && f.Kind() == reflect.String {
		msg += " characters"
	}
	return msg
}
