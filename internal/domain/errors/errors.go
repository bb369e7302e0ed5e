package errors

import (
	"net/http"
	"slices"

	"reviewhub/internal/errors"
)

// AppError defines the interface for application-specific errors
type AppError interface {
	error
	HTTPCode() int     // HTTP status code
	ErrorCode() string // Business error code
	Message() string   // User-friendly error message
	Errors() []string  // Itemized, client-correctable problems (optional)
}

// BaseError is a basic error structure that implements the AppError interface
type BaseError struct {
	httpCode  int
	errorCode string
	message   string
	items     []string
	kind      *BaseError
}

// NewBaseError creates a new base error
func NewBaseError(httpCode int, errorCode, message string) *BaseError {
	return &BaseError{
		httpCode:  httpCode,
		errorCode: errorCode,
		message:   message,
	}
}

// Error implements the error interface
func (e *BaseError) Error() string {
	return e.message
}

// WrapMessage wraps the error with additional context message
func (e *BaseError) WrapMessage(message string) error {
	return errors.Wrap(e, message)
}

// HTTPCode returns the HTTP status code
func (e *BaseError) HTTPCode() int {
	return e.httpCode
}

// ErrorCode returns the business error code
func (e *BaseError) ErrorCode() string {
	return e.errorCode
}

// Message returns the user-friendly error message
func (e *BaseError) Message() string {
	return e.message
}

// Errors returns the itemized problems attached with WithErrors.
func (e *BaseError) Errors() []string {
	return slices.Clone(e.items)
}

// WithErrors returns a copy carrying itemized problems. The copy still
// matches the original with errors.Is.
func (e *BaseError) WithErrors(items ...string) *BaseError {
	return &BaseError{
		httpCode:  e.httpCode,
		errorCode: e.errorCode,
		message:   e.message,
		items:     slices.Clone(items),
		kind:      e.root(),
	}
}

// Is reports whether target is this error or the predefined error it was derived from.
func (e *BaseError) Is(target error) bool {
	t, ok := target.(*BaseError)
	if !ok {
		return false
	}

	return e == t || e.root() == t.root()
}

func (e *BaseError) root() *BaseError {
	if e.kind != nil {
		return e.kind
	}

	return e
}

// Predefined error types
var (
	ErrValidationFailed = NewBaseError(
		http.StatusBadRequest,
		"VALIDATION_FAILED",
		"Input validation failed",
	)

	ErrInvalidCredentials = NewBaseError(
		http.StatusUnauthorized,
		"INVALID_CREDENTIALS",
		"Invalid authentication",
	)

	// ErrIncorrectPassword is the settings-change flavour of invalid credentials:
	// the caller is authenticated but supplied a wrong current password.
	ErrIncorrectPassword = NewBaseError(
		http.StatusBadRequest,
		"INCORRECT_PASSWORD",
		"Invalid password",
	)

	ErrInvalidExternalToken = NewBaseError(
		http.StatusBadRequest,
		"INVALID_EXTERNAL_TOKEN",
		"Invalid external authentication",
	)

	ErrConflict = NewBaseError(
		http.StatusBadRequest,
		"CONFLICT",
		"Account already exists",
	)

	ErrInvalidToken = NewBaseError(
		http.StatusBadRequest,
		"INVALID_TOKEN",
		"Invalid token",
	)

	ErrAccountConflict = NewBaseError(
		http.StatusConflict,
		"ACCOUNT_CONFLICT",
		"External account could not be linked",
	)

	ErrUnauthorized = NewBaseError(
		http.StatusUnauthorized,
		"UNAUTHORIZED",
		"Authentication required",
	)

	ErrForbidden = NewBaseError(
		http.StatusForbidden,
		"FORBIDDEN",
		"Access denied",
	)

	ErrNotFound = NewBaseError(
		http.StatusNotFound,
		"NOT_FOUND",
		"Resource not found",
	)

	ErrTooManyRequests = NewBaseError(
		http.StatusTooManyRequests,
		"TOO_MANY_REQUESTS",
		"Too many requests, please try again later",
	)

	ErrInternalError = NewBaseError(
		http.StatusInternalServerError,
		"INTERNAL_ERROR",
		"Internal server error, please try again later",
	)
)

// DatabaseExecuteError represents a database execution error, implementing the AppError interface
type DatabaseExecuteError struct {
	err     error
	details string
}

// NewDatabaseExecuteError creates a database-related error
func NewDatabaseExecuteError(err error, details string) AppError {
	return &DatabaseExecuteError{
		err:     err,
		details: details,
	}
}

// Error implements the error interface
func (e *DatabaseExecuteError) Error() string {
	return errors.Wrap(e.err, e.details).Error()
}

// Unwrap exposes the driver error to errors.Is / errors.As.
func (e *DatabaseExecuteError) Unwrap() error {
	return e.err
}

// HTTPCode returns the HTTP status code
func (e *DatabaseExecuteError) HTTPCode() int {
	return http.StatusInternalServerError
}

// ErrorCode returns the business error code
func (e *DatabaseExecuteError) ErrorCode() string {
	return "DATABASE_EXECUTE_FAILED"
}

// Message returns the user-friendly error message
func (e *DatabaseExecuteError) Message() string {
	return ErrInternalError.Message()
}

// Errors never exposes database details to clients.
func (e *DatabaseExecuteError) Errors() []string {
	return nil
}
