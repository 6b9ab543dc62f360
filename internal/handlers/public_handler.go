package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"serviceportal/internal/services"
	"serviceportal/internal/views"
)

// PublicHandler serves the unauthenticated tracking and pricing endpoints
type PublicHandler struct {
	progress *services.ProgressService
	pricing  *services.PricingService
	currency string
}

func NewPublicHandler(progress *services.ProgressService, pricing *services.PricingService, currency string) *PublicHandler {
	return &PublicHandler{progress: progress, pricing: pricing, currency: currency}
}

// Track returns the redacted progress of a request number, matched exactly
func (h *PublicHandler) Track(c echo.Context) error {
	p, err := h.progress.Track(c.Request().Context(), c.Param("number"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p.Public())
}

// TrackSearch renders the search form, or forwards ?number= to its page
func (h *PublicHandler) TrackSearch(c echo.Context) error {
	if number := strings.TrimSpace(c.QueryParam("number")); number != "" {
		return c.Redirect(http.StatusSeeOther, "/track/"+url.PathEscape(number))
	}
	return render(c, http.StatusOK, views.TrackingPage(views.TrackingPageProps{Currency: h.currency}))
}

// TrackPage renders the public tracking page
func (h *PublicHandler) TrackPage(c echo.Context) error {
	number := c.Param("number")
	p, err := h.progress.Track(c.Request().Context(), number)
	if err != nil {
		return httpError(err)
	}
	return render(c, http.StatusOK, views.TrackingPage(views.TrackingPageProps{
		Number:   number,
		Progress: p.Public(),
		Currency: h.currency,
	}))
}

// Pricing lists the effective price of every program combination
func (h *PublicHandler) Pricing(c echo.Context) error {
	tiers, err := h.pricing.List(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"currency": h.currency,
		"tiers":    tiers,
	})
}
