package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	deliverycontext "reviewhub/internal/delivery/context"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestRequestIDMiddleware(t *testing.T) {
	m := NewRequestIDMiddleware(slog.New(slog.NewTextHandler(io.Discard, nil)))

	e := echo.New()
	e.GET("/", func(c echo.Context) error {
		ctx := c.Request().Context()
		assert.NotNil(t, deliverycontext.GetLogger(ctx))

		return c.String(http.StatusOK, deliverycontext.GetRequestIDFromContext(ctx))
	}, m.Process)

	tests := []struct {
		name     string
		header   string
		keepSent bool
	}{
		{name: "client id kept", header: "req-123.abc", keepSent: true},
		{name: "missing id generated"},
		{name: "line break rejected", header: "abc\r\nfake: log"},
		{name: "too long rejected", header: strings.Repeat("a", maxRequestIDLength+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header[deliverycontext.HeaderXRequestID] = []string{tt.header}
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			got := rec.Header().Get(deliverycontext.HeaderXRequestID)
			assert.Equal(t, got, rec.Body.String())
			if tt.keepSent {
				assert.Equal(t, tt.header, got)

				return
			}
			_, err := uuid.Parse(got)
			assert.NoError(t, err)
		})
	}
}
