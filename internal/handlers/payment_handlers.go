package handlers

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"serviceportal/internal/catalog"
	"serviceportal/internal/middleware"
	"serviceportal/internal/services"
)

type PaymentHandler struct {
	payments *services.PaymentService
	requests *services.RequestService
	log      *zap.Logger
}

func NewPaymentHandler(payments *services.PaymentService, requests *services.RequestService, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{payments: payments, requests: requests, log: orNop(log)}
}

type initiateBody struct {
	Stage    string `json:"stage" form:"stage"`
	ForceNew bool   `json:"force_new" form:"force_new"`
}

type completeBody struct {
	TransactionID string `json:"transaction_id" form:"transaction_id"`
}

// Initiate opens (or resumes) a checkout for one stage of the request
func (h *PaymentHandler) Initiate(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var body initiateBody
	if err := bind(c, &body); err != nil {
		return err
	}
	if body.Stage == "" {
		return httpError(&services.ValidationError{Fields: []string{"stage"}})
	}

	ctx := c.Request().Context()
	req, err := h.requests.Get(ctx, id)
	if err != nil {
		return httpError(err)
	}
	if err := authorize(c, req); err != nil {
		return err
	}

	user := middleware.CurrentUser(c)
	checkout, err := h.payments.Initiate(ctx, services.PayInput{
		RequestID:  req.ID,
		Stage:      catalog.Stage(body.Stage),
		PayerEmail: user.Email,
		PayerName:  req.FullName,
		ForceNew:   body.ForceNew,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, checkout)
}

// ownedReference checks the caller may act on the checkout behind :reference
func (h *PaymentHandler) ownedReference(c echo.Context) (string, error) {
	reference := c.Param("reference")
	req, err := h.payments.RequestFor(c.Request().Context(), reference)
	if err != nil {
		return "", httpError(err)
	}
	if err := authorize(c, req); err != nil {
		return "", err
	}
	return reference, nil
}

// Complete is called by the checkout page once the gateway reports success.
// The gateway is always asked again before anything is recorded.
func (h *PaymentHandler) Complete(c echo.Context) error {
	reference, err := h.ownedReference(c)
	if err != nil {
		return err
	}
	var body completeBody
	if err := bind(c, &body); err != nil {
		return err
	}

	result, err := h.payments.Complete(c.Request().Context(), reference, body.TransactionID)
	if errors.Is(err, services.ErrProcessingPending) {
		message := "Payment received, processing pending"
		if errors.Is(err, services.ErrPaymentHeld) {
			message = "Payment received. The request could not accept it, so it is held for review"
		}
		return c.JSON(http.StatusAccepted, map[string]interface{}{
			"outcome": services.OutcomeProcessingPending,
			"message": message,
		})
	}
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, result)
}

// Cancel is called when the payer closes the checkout
func (h *PaymentHandler) Cancel(c echo.Context) error {
	reference, err := h.ownedReference(c)
	if err != nil {
		return err
	}
	outcome, err := h.payments.Cancel(c.Request().Context(), reference)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"outcome": outcome})
}

// Notification is the gateway webhook. Anything a retry cannot fix is
// acknowledged so the gateway stops resending it.
func (h *PaymentHandler) Notification(c echo.Context) error {
	var n services.GatewayNotification
	if err := bind(c, &n); err != nil {
		return err
	}

	result, err := h.payments.HandleNotification(c.Request().Context(), n)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, map[string]interface{}{"status": "ok", "outcome": result.Outcome})
	case errors.Is(err, services.ErrUnauthorized):
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid signature")
	case errors.Is(err, services.ErrProcessingPending),
		errors.Is(err, services.ErrAlreadyPaid),
		errors.Is(err, services.ErrStageNotPayable):
		h.log.Warn("paymentHandler.Notification acknowledged with error",
			zap.String("order_id", n.OrderID),
			zap.Error(err),
		)
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}
	return httpError(err)
}

// Finish is where the gateway sends the payer back. It settles what it can
// and forwards to the public tracking page.
func (h *PaymentHandler) Finish(c echo.Context) error {
	reference := c.QueryParam("order_id")
	if reference == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Missing order_id")
	}
	ctx := c.Request().Context()
	req, err := h.payments.RequestFor(ctx, reference)
	if err != nil {
		return httpError(err)
	}
	if _, err := h.payments.Complete(ctx, reference, ""); err != nil {
		h.log.Warn("paymentHandler.Finish could not complete payment",
			zap.String("reference", reference),
			zap.Error(err),
		)
	}
	return c.Redirect(http.StatusSeeOther, "/track/"+url.PathEscape(req.RequestNumber))
}
