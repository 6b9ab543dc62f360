package middleware

import (
	"context"
	"net/http"
	"strings"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"

	"serviceportal/internal/models"
)

const (
	SessionCookieName = "session"
	userKey           = "user"
)

// SessionVerifier is the part of *auth.Client used to check session cookies
type SessionVerifier interface {
	VerifySessionCookie(ctx context.Context, sessionCookie string) (*auth.Token, error)
}

// UserResolver maps a verified Firebase identity to a portal account
type UserResolver interface {
	SyncUser(ctx context.Context, firebaseUID, email, name string) (*models.User, error)
}

func isAPI(c echo.Context) bool {
	return strings.HasPrefix(c.Request().URL.Path, "/api/")
}

func clearSession(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		MaxAge:   -1,
		HttpOnly: true,
		Path:     "/",
	})
}

// RequireAuth returns a middleware that verifies Firebase session cookies.
// API calls get 401, page requests are redirected to the login page.
func RequireAuth(verifier SessionVerifier, users UserResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			deny := func(reason string) error {
				if isAPI(c) {
					return echo.NewHTTPError(http.StatusUnauthorized, "Please log in to continue.")
				}
				target := "/login"
				if reason != "" {
					target += "?error=" + reason
				}
				return c.Redirect(http.StatusTemporaryRedirect, target)
			}

			if verifier == nil {
				return deny("auth_not_configured")
			}

			cookie, err := c.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				return deny("")
			}

			token, err := verifier.VerifySessionCookie(c.Request().Context(), cookie.Value)
			if err != nil {
				clearSession(c)
				return deny("")
			}

			email, _ := token.Claims["email"].(string)
			name, _ := token.Claims["name"].(string)
			user, err := users.SyncUser(c.Request().Context(), token.UID, email, name)
			if err != nil {
				return err
			}

			c.Set(userKey, user)
			c.Set("userUID", token.UID)
			c.Set("userEmail", email)
			return next(c)
		}
	}
}

// RequireAdmin must run after RequireAuth
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := CurrentUser(c)
			if user == nil || !user.IsAdmin() {
				return echo.NewHTTPError(http.StatusForbidden)
			}
			return next(c)
		}
	}
}

// CurrentUser returns the account set by RequireAuth, or nil
func CurrentUser(c echo.Context) *models.User {
	user, _ := c.Get(userKey).(*models.User)
	return user
}
