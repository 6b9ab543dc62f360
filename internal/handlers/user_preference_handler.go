package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"serviceportal/internal/middleware"
	"serviceportal/internal/models"
	"serviceportal/internal/services"
)

type UserPreferenceHandler struct {
	accounts *services.AccountService
}

func NewUserPreferenceHandler(accounts *services.AccountService) *UserPreferenceHandler {
	return &UserPreferenceHandler{accounts: accounts}
}

// GetUserPreference returns the saved preference, or the default one
func (h *UserPreferenceHandler) GetUserPreference(c echo.Context) error {
	pref, err := h.accounts.Preference(c.Request().Context(), middleware.CurrentUser(c).ID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pref)
}

// UpdateUserPreference accepts JSON or the form fields of the settings page
func (h *UserPreferenceHandler) UpdateUserPreference(c echo.Context) error {
	var body struct {
		Channel            string `json:"channel" form:"channel"`                           // "email", "whatsapp" or "none"
		WhatsappTargetType string `json:"whatsapp_target_type" form:"whatsapp_target_type"` // "personal" or "group"
		WhatsappGroupID    string `json:"whatsapp_group_id" form:"whatsapp_group_id"`
	}
	if err := bind(c, &body); err != nil {
		return err
	}

	pref := &models.UserNotifPreference{
		UserID:             middleware.CurrentUser(c).ID,
		Channel:            models.NotificationChannel(body.Channel),
		WhatsappTargetType: body.WhatsappTargetType,
		WhatsappGroupID:    body.WhatsappGroupID,
	}
	if err := h.accounts.SavePreference(c.Request().Context(), pref); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pref)
}
