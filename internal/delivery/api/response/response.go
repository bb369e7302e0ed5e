package response

import (
	"net/http"

	deliverycontext "reviewhub/internal/delivery/context"

	"github.com/labstack/echo/v4"
)

// Envelope is the body of every API response.
type Envelope struct {
	Success bool      `json:"success"`
	Errors  []string  `json:"errors"`
	Data    any       `json:"data"`
	Code    string    `json:"code,omitempty"` // Machine-readable error code, e.g. "VALIDATION_FAILED"
	Meta    *MetaInfo `json:"meta"`
}

// MetaInfo represents response metadata
type MetaInfo struct {
	RequestID string `json:"request_id"` // Request tracking ID
}

// Success returns a successful response
func Success(c echo.Context, statusCode int, data any) error {
	return c.JSON(statusCode, Envelope{
		Success: true,
		Errors:  []string{},
		Data:    data,
		Meta:    meta(c),
	})
}

// Error returns an error response. messages are shown to the client as-is.
func Error(c echo.Context, statusCode int, errorCode string, messages ...string) error {
	if len(messages) == 0 {
		messages = []string{http.StatusText(statusCode)}
	}

	return c.JSON(statusCode, Envelope{
		Success: false,
		Errors:  messages,
		Code:    errorCode,
		Meta:    meta(c),
	})
}

// BindingError returns a binding error response
func BindingError(c echo.Context, message string) error {
	return Error(c, http.StatusBadRequest, "INVALID_INPUT", message)
}

// Unauthorized returns a 401 error
func Unauthorized(c echo.Context, errorCode string, message string) error {
	return Error(c, http.StatusUnauthorized, errorCode, message)
}

// Forbidden returns a 403 error
func Forbidden(c echo.Context, errorCode string, message string) error {
	return Error(c, http.StatusForbidden, errorCode, message)
}

// InternalServerError returns a 500 error
func InternalServerError(c echo.Context, errorCode string, message string) error {
	return Error(c, http.StatusInternalServerError, errorCode, message)
}

func meta(c echo.Context) *MetaInfo {
	return &MetaInfo{RequestID: deliverycontext.GetRequestID(c)}
}
