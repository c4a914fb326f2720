package server

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/helpgate/helpgate/internal/logger"
)

func TestPublicPath(t *testing.T) {
	public := []string{
		"/ping",
		"/health",
		"/metrics",
		"/auth/login",
		"/chat",
		"/feedback/react",
		"/escalations/msg-1/response",
		"/escalations/msg-1/rate",
	}
	for _, path := range public {
		if !publicPath(path) {
			t.Errorf("publicPath(%q) = false, want true", path)
		}
	}

	staff := []string{
		"/admin",
		"/admin/escalations",
		"/admin/escalations/1/claim",
		"/admin/channels/web/policies",
		"/admin/accounts",
	}
	for _, path := range staff {
		if publicPath(path) {
			t.Errorf("publicPath(%q) = true, want false", path)
		}
	}
}

type handlerFunc func(e *echo.Echo)

func (f handlerFunc) Register(e *echo.Echo) { f(e) }

func TestRequestScopedLogger(t *testing.T) {
	var seen *slog.Logger
	h := handlerFunc(func(e *echo.Echo) {
		e.GET("/ping", func(c echo.Context) error {
			seen = logger.FromContext(c.Request().Context())
			return c.NoContent(http.StatusOK)
		})
	})

	s := NewServer(slog.Default(), ":0", "secret", h)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if seen == nil || seen == slog.Default() {
		t.Fatal("handler must see the request-scoped logger, not the process default")
	}
}
