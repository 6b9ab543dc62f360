package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

// Limiter is satisfied by services.RedisCache
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) bool
}

// RateLimit counts requests per client IP in fixed windows. A nil limiter
// disables the check.
func RateLimit(limiter Limiter, prefix string, limit int, window time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if limiter == nil || limit <= 0 {
				return next(c)
			}
			key := "ratelimit:" + prefix + ":" + c.RealIP()
			if !limiter.Allow(c.Request().Context(), key, limit, window) {
				c.Response().Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				return echo.NewHTTPError(http.StatusTooManyRequests, "Too many requests, please slow down.")
			}
			return next(c)
		}
	}
}
