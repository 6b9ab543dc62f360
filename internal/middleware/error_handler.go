package middleware

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"serviceportal/internal/views"
)

// CustomErrorHandler creates the echo error handler. /api routes get JSON,
// everything else the HTML error page.
func CustomErrorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		errorTitle := "Internal Server Error"
		errorMessage := ""
		var body interface{}

		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			switch msg := he.Message.(type) {
			case string:
				errorMessage = msg
			case map[string]interface{}:
				body = msg
				if s, ok := msg["error"].(string); ok {
					errorMessage = s
				}
			}

			switch code {
			case http.StatusNotFound:
				errorTitle = "Page Not Found"
				if errorMessage == "" || errorMessage == http.StatusText(code) {
					errorMessage = "The page you're looking for doesn't exist."
				}
			case http.StatusForbidden:
				errorTitle = "Access Denied"
				if errorMessage == "" || errorMessage == http.StatusText(code) {
					errorMessage = "You don't have permission to access this resource."
				}
			case http.StatusUnauthorized:
				errorTitle = "Unauthorized"
				if errorMessage == "" {
					errorMessage = "Please log in to continue."
				}
			case http.StatusBadRequest:
				errorTitle = "Bad Request"
				if errorMessage == "" {
					errorMessage = "The request could not be processed."
				}
			case http.StatusTooManyRequests:
				errorTitle = "Too Many Requests"
			default:
				if code < 500 {
					errorTitle = http.StatusText(code)
				}
				if errorMessage == "" {
					errorMessage = "Something went wrong. Please try again later."
				}
			}
		} else {
			errorMessage = "Something went wrong. Please try again later."
		}

		if code >= 500 {
			log.Error("request failed",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.Int("status", code),
				zap.Error(err),
			)
		}

		if isAPI(c) {
			if body == nil {
				body = map[string]string{"error": errorMessage}
			}
			if jerr := c.JSON(code, body); jerr != nil {
				log.Error("failed to write error response", zap.Error(jerr))
			}
			return
		}

		props := views.ErrorPageProps{
			Title:        errorTitle,
			ErrorTitle:   errorTitle,
			ErrorMessage: errorMessage,
		}
		c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
		c.Response().WriteHeader(code)
		if renderErr := views.ErrorPage(props).Render(c.Request().Context(), c.Response()); renderErr != nil {
			log.Error("failed to render error page", zap.Error(fmt.Errorf("render: %w", renderErr)))
		}
	}
}
