// Package handlers provides the HTTP API for the support gateway.
package handlers

import (
	"log/slog"

	"github.com/labstack/echo/v4"

	"github.com/helpgate/helpgate/internal/channel"
	"github.com/helpgate/helpgate/internal/logger"
)

// ErrorResponse is the standard API error body (message only).
type ErrorResponse struct {
	Message string `json:"message"`
}

// gatewayErrorResponse renders a pipeline error with its wire code and the
// HTTP status it maps to.
func gatewayErrorResponse(c echo.Context, gwErr *channel.GatewayError) error {
	logger.FromContext(c.Request().Context()).Warn("pipeline error",
		slog.String("code", string(gwErr.Code)),
		slog.Bool("recoverable", gwErr.Recoverable))
	return c.JSON(gwErr.HTTPStatus(), gwErr)
}
