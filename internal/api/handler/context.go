package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/samber/oops"

	"github.com/natours/tours-api/internal/core/domain"
)

// accountKey is the echo.Context key of the authenticated account. Only
// WithAccount and AccountFrom touch it.
const accountKey = "natours.account"

// WithAccount stores the authenticated account on the request context.
func WithAccount(c echo.Context, acc *domain.Account) {
	c.Set(accountKey, acc)
}

// AccountFrom returns the account stored by WithAccount, if any.
func AccountFrom(c echo.Context) (*domain.Account, bool) {
	acc, ok := c.Get(accountKey).(*domain.Account)
	return acc, ok && acc != nil
}

func errNoAccount(c echo.Context) error {
	return oops.Code("ROUTE_UNGUARDED").
		With("route", c.Path()).
		Errorf("no authenticated account on request")
}
