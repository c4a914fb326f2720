package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/helpgate/helpgate/internal/accounts"
	"github.com/helpgate/helpgate/internal/auth"
)

// AccountsHandler manages staff accounts. Creation requires the admin role;
// password change is self-service.
type AccountsHandler struct {
	service *accounts.Service
	logger  *slog.Logger
}

// NewAccountsHandler creates the accounts handler.
func NewAccountsHandler(log *slog.Logger, service *accounts.Service) *AccountsHandler {
	return &AccountsHandler{
		service: service,
		logger:  log.With(slog.String("handler", "accounts")),
	}
}

// Register mounts the account routes.
func (h *AccountsHandler) Register(e *echo.Echo) {
	e.GET("/admin/accounts", h.List)
	e.POST("/admin/accounts", h.Create)
	e.PUT("/admin/accounts/password", h.UpdatePassword)
}

// List returns all staff accounts.
func (h *AccountsHandler) List(c echo.Context) error {
	items, err := h.service.List(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, accounts.ListAccountsResponse{Items: items})
}

// Create adds a staff account; only admins may call it.
func (h *AccountsHandler) Create(c echo.Context) error {
	callerID := auth.AccountID(c)
	isAdmin, err := h.service.IsAdmin(c.Request().Context(), callerID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !isAdmin {
		return echo.NewHTTPError(http.StatusForbidden, "admin role required")
	}

	var req accounts.CreateAccountRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	account, err := h.service.Create(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, accounts.ErrUsernameTaken) {
			return echo.NewHTTPError(http.StatusConflict, "username already taken")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, account)
}

// UpdatePassword changes the caller's password.
func (h *AccountsHandler) UpdatePassword(c echo.Context) error {
	callerID := auth.AccountID(c)
	if callerID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "staff token required")
	}
	var req accounts.UpdatePasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	err := h.service.UpdatePassword(c.Request().Context(), callerID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		if errors.Is(err, accounts.ErrInvalidPassword) {
			return echo.NewHTTPError(http.StatusUnauthorized, "current password is incorrect")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "updated"})
}
