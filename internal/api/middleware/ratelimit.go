package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/natours/tours-api/internal/metrics"
)

// HitCounter counts requests per key in fixed windows.
type HitCounter interface {
	Hit(ctx context.Context, key string) (int64, time.Time, error)
}

const rateLimitMessage = "Too many requests from this address, please try again later!"

// RateLimit allows max requests per client address per window. When the
// counter is unavailable requests are let through.
func RateLimit(counter HitCounter, max int64, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			n, reset, err := counter.Hit(c.Request().Context(), c.RealIP())
			if err != nil {
				log.Warn().Err(err).Msg("rate limiter unavailable, allowing request")
				return next(c)
			}

			remaining := max - n
			if remaining < 0 {
				remaining = 0
			}
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.FormatInt(max, 10))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

			if n > max {
				metrics.RateLimitedTotal.Inc()
				return echo.NewHTTPError(http.StatusTooManyRequests, rateLimitMessage)
			}
			return next(c)
		}
	}
}
