package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"serviceportal/internal/catalog"
	"serviceportal/internal/middleware"
	"serviceportal/internal/models"
	"serviceportal/internal/services"
	"serviceportal/internal/store"
)

// DashboardHandler summarizes the signed-in applicant's requests
type DashboardHandler struct {
	requests *services.RequestService
	accounts *services.AccountService
}

func NewDashboardHandler(requests *services.RequestService, accounts *services.AccountService) *DashboardHandler {
	return &DashboardHandler{requests: requests, accounts: accounts}
}

type dashboardRequest struct {
	ID            uint               `json:"id"`
	RequestNumber string             `json:"request_number"`
	Service       string             `json:"service"`
	ProgramType   string             `json:"program_type"`
	Status        catalog.StatusInfo `json:"status"`
	Stage         catalog.StageInfo  `json:"stage"`
	BalanceDue    string             `json:"balance_due"`
}

// Dashboard returns the latest requests and the unread notification count
func (h *DashboardHandler) Dashboard(c echo.Context) error {
	user := middleware.CurrentUser(c)
	ctx := c.Request().Context()

	reqs, err := h.requests.ListForUser(ctx, user.ID, store.Page{Number: 1, Size: 10})
	if err != nil {
		return httpError(err)
	}
	notes, err := h.accounts.Notifications(ctx, user.ID)
	if err != nil {
		return httpError(err)
	}

	unread := 0
	for _, n := range notes {
		if !n.IsRead {
			unread++
		}
	}

	out := make([]dashboardRequest, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, summarize(r))
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"user":                 user,
		"requests":             out,
		"unread_notifications": unread,
	})
}

func summarize(r models.Request) dashboardRequest {
	service := catalog.Service(r.Service)
	return dashboardRequest{
		ID:            r.ID,
		RequestNumber: r.RequestNumber,
		Service:       r.Service,
		ProgramType:   r.ProgramType,
		Status:        catalog.Status(service, r.Status),
		Stage:         catalog.StageOf(service, catalog.Stage(r.PaymentStage)),
		BalanceDue:    r.BalanceDue.StringFixed(2),
	}
}
