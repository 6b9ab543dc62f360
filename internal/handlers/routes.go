package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"serviceportal/internal/middleware"
)

// Routes bundles the handlers and the middleware dependencies the router needs
type Routes struct {
	Auth        *AuthHandler
	Dashboard   *DashboardHandler
	Requests    *RequestHandler
	Payments    *PaymentHandler
	Public      *PublicHandler
	Admin       *AdminHandler
	Users       *UserHandler
	Preferences *UserPreferenceHandler

	Verifier middleware.SessionVerifier
	Accounts middleware.UserResolver
	Limiter  middleware.Limiter

	TrackingLimit  int
	TrackingWindow time.Duration
}

func (r Routes) Register(e *echo.Echo) {
	e.GET("/", func(c echo.Context) error {
		return c.Redirect(http.StatusTemporaryRedirect, "/track")
	})

	// Public routes
	e.GET("/login", r.Auth.LoginPage)
	e.POST("/auth/login", r.Auth.HandleLogin)
	e.POST("/auth/logout", r.Auth.HandleLogout)

	limited := middleware.RateLimit(r.Limiter, "track", r.TrackingLimit, r.TrackingWindow)
	e.GET("/track", r.Public.TrackSearch)
	e.GET("/track/:number", r.Public.TrackPage, limited)
	e.GET("/api/track/:number", r.Public.Track, limited)
	e.GET("/api/pricing", r.Public.Pricing)

	e.POST("/api/payments/notification", r.Payments.Notification)
	e.GET("/payments/finish", r.Payments.Finish)

	// Signed-in applicants
	api := e.Group("/api", middleware.RequireAuth(r.Verifier, r.Accounts))
	api.GET("/me", r.Users.Me)
	api.GET("/dashboard", r.Dashboard.Dashboard)

	api.GET("/requests", r.Requests.List)
	api.POST("/requests", r.Requests.Create)
	api.GET("/requests/:id", r.Requests.Get)
	api.GET("/requests/:id/progress", r.Requests.Progress)
	api.GET("/requests/:id/documents", r.Requests.ListDocuments)
	api.POST("/requests/:id/documents", r.Requests.UploadDocument)

	api.POST("/requests/:id/payments", r.Payments.Initiate)
	api.POST("/payments/:reference/complete", r.Payments.Complete)
	api.POST("/payments/:reference/cancel", r.Payments.Cancel)

	api.GET("/notifications", r.Users.Notifications)
	api.POST("/notifications/:id/read", r.Users.MarkRead)
	api.GET("/preferences", r.Preferences.GetUserPreference)
	api.PUT("/preferences", r.Preferences.UpdateUserPreference)

	// Back office
	admin := api.Group("/admin", middleware.RequireAdmin())
	admin.GET("/requests", r.Admin.ListRequests)
	admin.PUT("/requests/:id/status", r.Admin.SetStatus)
	admin.PUT("/requests/:id/evaluation", r.Admin.SetEvaluation)
	admin.GET("/pricing", r.Admin.ListPricing)
	admin.PUT("/pricing", r.Admin.UpsertPricing)
}
