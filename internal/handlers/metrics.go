package handlers

import (
	"github.com/labstack/echo/v4"

	"github.com/helpgate/helpgate/internal/metrics"
)

// MetricsHandler exposes the Prometheus scrape endpoint.
type MetricsHandler struct{}

// NewMetricsHandler creates the metrics handler.
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

// Register mounts GET /metrics on the Echo instance.
func (h *MetricsHandler) Register(e *echo.Echo) {
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
}
