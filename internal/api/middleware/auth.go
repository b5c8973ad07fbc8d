package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/natours/tours-api/internal/api/handler"
	"github.com/natours/tours-api/internal/core/domain"
)

// SessionResolver runs the authentication checks for a presented token.
type SessionResolver interface {
	ResolveSession(ctx context.Context, token string) (*domain.Account, error)
}

// Outcome is the result of resolving a request's session.
type Outcome int

const (
	OutcomeAuthenticated Outcome = iota
	OutcomeMissing
	OutcomeInvalid
	OutcomeAccountGone
	OutcomeStale
	OutcomeFailed
)

// Resolve extracts the token from r and classifies the session. Every
// outcome other than OutcomeAuthenticated comes with the error to report.
func Resolve(ctx context.Context, resolver SessionResolver, r *http.Request) (*domain.Account, Outcome, error) {
	acc, err := resolver.ResolveSession(ctx, TokenFrom(r))
	switch {
	case err == nil:
		return acc, OutcomeAuthenticated, nil
	case domain.KindOf(err) != domain.KindAuthentication:
		return nil, OutcomeFailed, err
	case errors.Is(err, domain.ErrNotLoggedIn):
		return nil, OutcomeMissing, err
	case errors.Is(err, domain.ErrSessionAccountGone):
		return nil, OutcomeAccountGone, err
	case errors.Is(err, domain.ErrSessionStale):
		return nil, OutcomeStale, err
	default:
		return nil, OutcomeInvalid, err
	}
}

// TokenFrom returns the bearer token, falling back to the session cookie.
func TokenFrom(r *http.Request) string {
	if scheme, token, ok := strings.Cut(r.Header.Get(echo.HeaderAuthorization), " "); ok && strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(token)
	}
	if cookie, err := r.Cookie(handler.SessionCookie); err == nil {
		return cookie.Value
	}
	return ""
}

// Authenticate rejects the request unless it carries a valid session, and
// stores the account for the handlers.
func Authenticate(resolver SessionResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			acc, outcome, err := Resolve(c.Request().Context(), resolver, c.Request())
			if outcome != OutcomeAuthenticated {
				return err
			}
			handler.WithAccount(c, acc)
			return next(c)
		}
	}
}

// SoftAuthenticate attaches the account when the session is valid and
// otherwise continues anonymously.
func SoftAuthenticate(resolver SessionResolver, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			acc, outcome, err := Resolve(c.Request().Context(), resolver, c.Request())
			switch outcome {
			case OutcomeAuthenticated:
				handler.WithAccount(c, acc)
			case OutcomeFailed:
				log.Warn().Err(err).Str("route", c.Path()).Msg("session lookup failed, continuing anonymously")
			}
			return next(c)
		}
	}
}
