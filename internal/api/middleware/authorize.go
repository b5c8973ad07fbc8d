package middleware

import (
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/samber/oops"

	"github.com/natours/tours-api/internal/api/handler"
	"github.com/natours/tours-api/internal/core/domain"
)

// Authorize admits accounts whose role is in roles. It must run after
// Authenticate; a route wired without it fails with an internal error.
func Authorize(log zerolog.Logger, roles ...domain.Role) echo.MiddlewareFunc {
	allowed := make(map[domain.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			acc, ok := handler.AccountFrom(c)
			if !ok {
				log.Error().Str("route", c.Path()).Msg("authorize reached without an authenticated account")
				return oops.Code("ROUTE_UNGUARDED").
					With("route", c.Path()).
					Errorf("authorize requires authenticate")
			}
			if _, ok := allowed[acc.Role]; !ok {
				return domain.ErrForbidden
			}
			return next(c)
		}
	}
}
