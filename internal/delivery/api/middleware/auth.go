package middleware

import (
	"slices"
	"strings"

	"reviewhub/internal/delivery/api/response"
	deliverycontext "reviewhub/internal/delivery/context"
	domainerrors "reviewhub/internal/domain/errors"
	"reviewhub/internal/domain/entity"
	"reviewhub/internal/domain/service"

	"github.com/labstack/echo/v4"
)

const bearerPrefix = "Bearer "

// AuthMiddleware provides middleware for session token authentication and authorization.
type AuthMiddleware struct {
	tokens service.TokenIssuer
}

// NewAuthMiddleware is the constructor for AuthMiddleware.
func NewAuthMiddleware(tokens service.TokenIssuer) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Authenticate validates the Bearer session token and stores its claims on the context.
func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
		if authHeader == "" {
			return response.Unauthorized(c, domainerrors.ErrUnauthorized.ErrorCode(), "Authorization header is missing")
		}

		if len(authHeader) <= len(bearerPrefix) || !strings.EqualFold(authHeader[:len(bearerPrefix)], bearerPrefix) {
			return response.Unauthorized(c, domainerrors.ErrUnauthorized.ErrorCode(), "Invalid token format, must be Bearer token")
		}

		claims, err := m.tokens.Validate(strings.TrimSpace(authHeader[len(bearerPrefix):]))
		if err != nil {
			return response.Unauthorized(c, domainerrors.ErrUnauthorized.ErrorCode(), "Invalid or expired token")
		}

		deliverycontext.SetSessionClaims(c, claims)

		return next(c)
	}
}

// RequireRole checks the authenticated caller's roles. It must be used AFTER Authenticate.
func (m *AuthMiddleware) RequireRole(role entity.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := GetClaims(c)
			if !ok {
				return response.Unauthorized(c, domainerrors.ErrUnauthorized.ErrorCode(), domainerrors.ErrUnauthorized.Message())
			}

			if !slices.Contains(claims.Roles, role.String()) {
				return response.Forbidden(c, domainerrors.ErrForbidden.ErrorCode(), "Permission denied: require '"+role.String()+"' role")
			}

			return next(c)
		}
	}
}

// GetClaims returns the session claims set by Authenticate.
func GetClaims(c echo.Context) (*service.SessionClaims, bool) {
	return deliverycontext.GetSessionClaims(c.Request().Context())
}
