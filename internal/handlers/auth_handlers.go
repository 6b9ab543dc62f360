package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"serviceportal/internal/middleware"
	"serviceportal/internal/views"
)

const sessionLifetime = 5 * 24 * time.Hour

// SessionIssuer is the part of *auth.Client that turns ID tokens into session cookies
type SessionIssuer interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
	SessionCookie(ctx context.Context, idToken string, expiresIn time.Duration) (string, error)
}

type LoginConfig struct {
	FirebaseAPIKey     string
	FirebaseAuthDomain string
	FirebaseProjectID  string
	SecureCookies      bool
}

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	issuer SessionIssuer
	users  middleware.UserResolver
	cfg    LoginConfig
	log    *zap.Logger
}

func NewAuthHandler(issuer SessionIssuer, users middleware.UserResolver, cfg LoginConfig, log *zap.Logger) *AuthHandler {
	return &AuthHandler{issuer: issuer, users: users, cfg: cfg, log: orNop(log)}
}

// LoginPage renders the login page
func (h *AuthHandler) LoginPage(c echo.Context) error {
	props := views.LoginPageProps{
		FirebaseAPIKey:     h.cfg.FirebaseAPIKey,
		FirebaseAuthDomain: h.cfg.FirebaseAuthDomain,
		FirebaseProjectID:  h.cfg.FirebaseProjectID,
	}
	if c.QueryParam("error") == "auth_not_configured" {
		props.Error = "Sign in is not available right now."
	}
	return render(c, http.StatusOK, views.LoginPage(props))
}

// HandleLogin verifies the Firebase ID token and creates a session cookie
func (h *AuthHandler) HandleLogin(c echo.Context) error {
	if h.issuer == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Firebase not initialized")
	}

	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Missing authorization header")
	}
	idToken := strings.TrimPrefix(authHeader, "Bearer ")
	if idToken == authHeader {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization format")
	}

	ctx := c.Request().Context()
	token, err := h.issuer.VerifyIDToken(ctx, idToken)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
	}

	cookieValue, err := h.issuer.SessionCookie(ctx, idToken, sessionLifetime)
	if err != nil {
		h.log.Error("authHandler.HandleLogin session cookie failed", zap.String("uid", token.UID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create session")
	}

	email, _ := token.Claims["email"].(string)
	name, _ := token.Claims["name"].(string)
	user, err := h.users.SyncUser(ctx, token.UID, email, name)
	if err != nil {
		return httpError(err)
	}

	c.SetCookie(&http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    cookieValue,
		MaxAge:   int(sessionLifetime.Seconds()),
		HttpOnly: true,
		Secure:   h.cfg.SecureCookies,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	})

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": "success",
		"user":   user,
	})
}

// HandleLogout clears the session cookie
func (h *AuthHandler) HandleLogout(c echo.Context) error {
	c.SetCookie(&http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		MaxAge:   -1,
		HttpOnly: true,
		Path:     "/",
	})
	return c.JSON(http.StatusOK, map[string]string{
		"status": "logged out",
	})
}
