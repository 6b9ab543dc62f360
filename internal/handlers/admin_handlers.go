package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"serviceportal/internal/catalog"
	"serviceportal/internal/middleware"
	"serviceportal/internal/models"
	"serviceportal/internal/services"
	"serviceportal/internal/store"
)

// AdminHandler is the back-office surface: listing, status changes,
// evaluation decisions and pricing
type AdminHandler struct {
	requests *services.RequestService
	reviews  *services.ReviewService
	pricing  *services.PricingService
}

func NewAdminHandler(requests *services.RequestService, reviews *services.ReviewService, pricing *services.PricingService) *AdminHandler {
	return &AdminHandler{requests: requests, reviews: reviews, pricing: pricing}
}

type statusBody struct {
	Status          string              `json:"status"`
	Notes           string              `json:"notes"`
	ExpectedVersion int                 `json:"expected_version"`
	Checklist       *services.Checklist `json:"checklist"`
}

type evaluationBody struct {
	Decision        string `json:"decision"`
	Notes           string `json:"notes"`
	ExpectedVersion int    `json:"expected_version"`
}

type pricingBody struct {
	Service     string          `json:"service"`
	ProgramType string          `json:"program_type"`
	ProjectType string          `json:"project_type"`
	Level       string          `json:"level"`
	BaseFee     decimal.Decimal `json:"base_fee"`
	Tranche1Fee decimal.Decimal `json:"tranche1_fee"`
	ProgramFee  decimal.Decimal `json:"program_fee"`
	AdvanceFee  decimal.Decimal `json:"advance_fee"`
	IsActive    *bool           `json:"is_active"`
}

func actor(c echo.Context) string {
	if user := middleware.CurrentUser(c); user != nil {
		return user.Email
	}
	return ""
}

// ListRequests is filtered by ?service= and ?status=
func (h *AdminHandler) ListRequests(c echo.Context) error {
	filter := store.RequestFilter{
		Service: c.QueryParam("service"),
		Status:  c.QueryParam("status"),
	}
	page := pageFromQuery(c)
	reqs, total, err := h.requests.ListAll(c.Request().Context(), filter, page)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"requests": reqs,
		"total":    total,
		"page":     page.Number,
	})
}

func (h *AdminHandler) SetStatus(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var body statusBody
	if err := bind(c, &body); err != nil {
		return err
	}

	result, err := h.reviews.SetStatus(c.Request().Context(), services.SetStatusInput{
		RequestID:       id,
		NewStatus:       body.Status,
		Notes:           body.Notes,
		ChangedBy:       actor(c),
		ExpectedVersion: body.ExpectedVersion,
		Checklist:       body.Checklist,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *AdminHandler) SetEvaluation(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var body evaluationBody
	if err := bind(c, &body); err != nil {
		return err
	}

	result, err := h.reviews.SetEvaluationStatus(c.Request().Context(), services.EvaluationInput{
		RequestID:       id,
		Decision:        catalog.EvaluationStatus(body.Decision),
		Notes:           body.Notes,
		ChangedBy:       actor(c),
		ExpectedVersion: body.ExpectedVersion,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *AdminHandler) ListPricing(c echo.Context) error {
	tiers, err := h.pricing.List(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"tiers": tiers})
}

// UpsertPricing stores an override; omitting is_active means active
func (h *AdminHandler) UpsertPricing(c echo.Context) error {
	var body pricingBody
	if err := bind(c, &body); err != nil {
		return err
	}
	tier := &models.PricingTier{
		Service:     body.Service,
		ProgramType: body.ProgramType,
		ProjectType: body.ProjectType,
		Level:       body.Level,
		BaseFee:     body.BaseFee,
		Tranche1Fee: body.Tranche1Fee,
		ProgramFee:  body.ProgramFee,
		AdvanceFee:  body.AdvanceFee,
		IsActive:    body.IsActive == nil || *body.IsActive,
	}
	if err := h.pricing.Upsert(c.Request().Context(), tier); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, tier)
}
