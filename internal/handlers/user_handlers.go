package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"serviceportal/internal/middleware"
	"serviceportal/internal/services"
)

type UserHandler struct {
	accounts *services.AccountService
}

func NewUserHandler(accounts *services.AccountService) *UserHandler {
	return &UserHandler{accounts: accounts}
}

// Me returns the signed-in account
func (h *UserHandler) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, middleware.CurrentUser(c))
}

func (h *UserHandler) Notifications(c echo.Context) error {
	notes, err := h.accounts.Notifications(c.Request().Context(), middleware.CurrentUser(c).ID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"notifications": notes})
}

// MarkRead only touches notifications owned by the caller
func (h *UserHandler) MarkRead(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.accounts.MarkRead(c.Request().Context(), middleware.CurrentUser(c).ID, id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
