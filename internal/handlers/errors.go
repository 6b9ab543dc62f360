package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"serviceportal/internal/services"
)

// httpError translates a service error. Unrecognized errors become a bare
// 500 so store details never reach the client.
func httpError(err error) error {
	var verr *services.ValidationError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &verr):
		return echo.NewHTTPError(http.StatusBadRequest, map[string]interface{}{
			"error":  "validation failed",
			"fields": verr.Fields,
		})
	case errors.Is(err, services.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Not found")
	case errors.Is(err, services.ErrAlreadyPaid):
		return echo.NewHTTPError(http.StatusConflict, "This stage is already paid")
	case errors.Is(err, services.ErrStageNotPayable):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, services.ErrConcurrentModification):
		return echo.NewHTTPError(http.StatusConflict, "The request was modified by someone else, reload and try again")
	case errors.Is(err, services.ErrPaymentInProgress):
		return echo.NewHTTPError(http.StatusConflict, "A payment for this stage is already being started")
	case errors.Is(err, services.ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrGatewayFailure):
		return echo.NewHTTPError(http.StatusBadGateway, "The payment provider is unavailable, please try again")
	case errors.Is(err, services.ErrNumberUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Could not assign a request number, please try again")
	case errors.Is(err, services.ErrUnauthorized):
		return echo.NewHTTPError(http.StatusUnauthorized)
	}
	return echo.NewHTTPError(http.StatusInternalServerError).SetInternal(err)
}

func paramID(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "Invalid "+name)
	}
	return uint(id), nil
}

func bind(c echo.Context, dest interface{}) error {
	if err := c.Bind(dest); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Malformed request body")
	}
	return nil
}
