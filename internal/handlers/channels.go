package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/helpgate/helpgate/internal/channel"
)

// ChannelsHandler exposes adapter status and restart to the admin console.
type ChannelsHandler struct {
	registry *channel.Registry
	logger   *slog.Logger
}

// ChannelInfo is one registered adapter with its live health.
type ChannelInfo struct {
	Channel      channel.ID           `json:"channel"`
	Capabilities []string             `json:"capabilities"`
	Health       channel.HealthStatus `json:"health"`
}

// NewChannelsHandler creates the channels handler.
func NewChannelsHandler(log *slog.Logger, registry *channel.Registry) *ChannelsHandler {
	return &ChannelsHandler{
		registry: registry,
		logger:   log.With(slog.String("handler", "channels")),
	}
}

// Register mounts the channel admin routes.
func (h *ChannelsHandler) Register(e *echo.Echo) {
	e.GET("/admin/channels", h.List)
	e.POST("/admin/channels/:channel/restart", h.Restart)
}

// List returns every registered adapter with capabilities and health.
func (h *ChannelsHandler) List(c echo.Context) error {
	ctx := c.Request().Context()
	health := h.registry.HealthCheckAll(ctx)
	var items []ChannelInfo
	for _, adapter := range h.registry.List() {
		id := adapter.ChannelID()
		items = append(items, ChannelInfo{
			Channel:      id,
			Capabilities: adapter.Capabilities().Names(),
			Health:       health[id],
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// Restart stops and starts one adapter.
func (h *ChannelsHandler) Restart(c echo.Context) error {
	id, err := channel.ParseID(strings.TrimSpace(c.Param("channel")))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.registry.Restart(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "restarted"})
}
