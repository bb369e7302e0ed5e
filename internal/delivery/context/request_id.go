// Package context carries request-scoped values (request ID, logger and the
// authenticated caller) on both echo.Context and context.Context.
package context

import (
	"context"
	"log/slog"

	"reviewhub/internal/domain/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// ContextKey is a custom type for context keys to avoid collisions.
type ContextKey string

const (
	KeyRequestID     ContextKey = "request_id"
	KeyLogger        ContextKey = "logger"
	KeySessionClaims ContextKey = "session_claims"

	// HeaderXRequestID is the HTTP header name for request ID.
	HeaderXRequestID = "X-Request-Id"
)

// GetRequestID returns the request ID stored by the request ID middleware.
// Outside of that middleware it falls back to the request context, then to a fresh UUID.
func GetRequestID(c echo.Context) string {
	if id, ok := c.Get(string(KeyRequestID)).(string); ok && id != "" {
		return id
	}
	if id := GetRequestIDFromContext(c.Request().Context()); id != "" {
		return id
	}

	return uuid.NewString()
}

func SetRequestID(c echo.Context, requestID string) {
	c.Set(string(KeyRequestID), requestID)
}

// GetRequestIDFromContext returns "" when ctx carries no request ID.
func GetRequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(KeyRequestID).(string)

	return id
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, KeyRequestID, requestID)
}

// GetLogger returns nil when ctx carries no request-scoped logger.
func GetLogger(ctx context.Context) *slog.Logger {
	logger, _ := ctx.Value(KeyLogger).(*slog.Logger)

	return logger
}

// GetLoggerOrDefault is GetLogger with a fallback for background work.
func GetLoggerOrDefault(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if logger := GetLogger(ctx); logger != nil {
		return logger
	}

	return fallback
}

func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, KeyLogger, logger)
}

// WithSessionClaims attaches the authenticated caller to ctx.
func WithSessionClaims(ctx context.Context, claims *service.SessionClaims) context.Context {
	return context.WithValue(ctx, KeySessionClaims, claims)
}

// GetSessionClaims returns the authenticated caller, if any.
func GetSessionClaims(ctx context.Context) (*service.SessionClaims, bool) {
	claims, ok := ctx.Value(KeySessionClaims).(*service.SessionClaims)

	return claims, ok && claims != nil
}

// SetSessionClaims stores the caller on the request context. A request-scoped
// logger already present is tagged with the caller's user_id.
func SetSessionClaims(c echo.Context, claims *service.SessionClaims) {
	ctx := WithSessionClaims(c.Request().Context(), claims)
	if logger := GetLogger(ctx); logger != nil {
		ctx = WithLogger(ctx, logger.With(slog.String("user_id", claims.Subject)))
	}
	c.SetRequest(c.Request().WithContext(ctx))
}
