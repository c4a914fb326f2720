package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/helpgate/helpgate/internal/channel"
	"github.com/helpgate/helpgate/internal/policy"
)

// PoliciesHandler serves the admin switches controlling AI generation and
// auto-response per channel.
type PoliciesHandler struct {
	service *policy.Service
	logger  *slog.Logger
}

// PolicyRequest is the body for PUT /admin/channels/:channel/policies.
type PolicyRequest struct {
	AIGenerationEnabled *bool `json:"ai_generation_enabled"`
	AutoResponseEnabled *bool `json:"auto_response_enabled"`
}

// NewPoliciesHandler creates the policies handler.
func NewPoliciesHandler(log *slog.Logger, service *policy.Service) *PoliciesHandler {
	return &PoliciesHandler{
		service: service,
		logger:  log.With(slog.String("handler", "policies")),
	}
}

// Register mounts the policy admin routes.
func (h *PoliciesHandler) Register(e *echo.Echo) {
	e.GET("/admin/policies", h.List)
	e.PUT("/admin/channels/:channel/policies", h.Set)
}

// List returns all stored channel policies. Channels without a row run with
// both switches enabled.
func (h *PoliciesHandler) List(c echo.Context) error {
	items, err := h.service.List(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// Set updates the switch pair for one channel. Omitted switches keep their
// current value.
func (h *PoliciesHandler) Set(c echo.Context) error {
	id, err := channel.ParseID(strings.TrimSpace(c.Param("channel")))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	var req PolicyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	next := policy.ChannelPolicy{
		Channel:             id,
		AIGenerationEnabled: h.service.GenerationEnabled(ctx, id),
		AutoResponseEnabled: h.service.AutoResponseEnabled(ctx, id),
	}
	if req.AIGenerationEnabled != nil {
		next.AIGenerationEnabled = *req.AIGenerationEnabled
	}
	if req.AutoResponseEnabled != nil {
		next.AutoResponseEnabled = *req.AutoResponseEnabled
	}

	updated, err := h.service.Set(ctx, next)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, updated)
}
