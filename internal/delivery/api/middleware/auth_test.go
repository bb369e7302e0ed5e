package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	deliverycontext "reviewhub/internal/delivery/context"
	domainerrors "reviewhub/internal/domain/errors"
	"reviewhub/internal/domain/entity"
	"reviewhub/internal/domain/service"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

type stubTokens struct {
	valid map[string]*service.SessionClaims
}

func (s *stubTokens) Issue(*entity.User) (*service.SessionToken, error) { return nil, nil }

func (s *stubTokens) Validate(token string) (*service.SessionClaims, error) {
	claims, ok := s.valid[token]
	if !ok {
		return nil, domainerrors.ErrUnauthorized
	}

	return claims, nil
}

func TestAuthMiddleware(t *testing.T) {
	tokens := &stubTokens{valid: map[string]*service.SessionClaims{
		"user-token":  {Email: "a@x.com", Roles: []string{"user"}},
		"admin-token": {Email: "admin@x.com", Roles: []string{"user", "admin"}},
	}}
	m := NewAuthMiddleware(tokens)

	e := echo.New()
	e.GET("/me", func(c echo.Context) error {
		claims, ok := GetClaims(c)
		if !ok {
			return c.NoContent(http.StatusTeapot)
		}
		if fromCtx, ok := deliverycontext.GetSessionClaims(c.Request().Context()); !ok || fromCtx != claims {
			return c.NoContent(http.StatusConflict)
		}

		return c.String(http.StatusOK, claims.Email)
	}, m.Authenticate)
	e.GET("/admin", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) },
		m.Authenticate, m.RequireRole(entity.RoleAdmin))

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{name: "missing header", path: "/me", want: http.StatusUnauthorized},
		{name: "not bearer", path: "/me", header: "Basic abc", want: http.StatusUnauthorized},
		{name: "unknown token", path: "/me", header: "Bearer forged", want: http.StatusUnauthorized},
		{name: "valid token", path: "/me", header: "Bearer user-token", want: http.StatusOK},
		{name: "lowercase scheme", path: "/me", header: "bearer user-token", want: http.StatusOK},
		{name: "missing role", path: "/admin", header: "Bearer user-token", want: http.StatusForbidden},
		{name: "admin", path: "/admin", header: "Bearer admin-token", want: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
