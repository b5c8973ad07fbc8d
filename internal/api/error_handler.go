package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/samber/oops"

	"github.com/natours/tours-api/internal/core/domain"
)

const internalMessage = "Something went very wrong!"

// errorResponse is the error envelope: status is "fail" for 4xx and
// "error" otherwise.
type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// NewHTTPErrorHandler renders every error as an errorResponse. Operational
// domain errors expose their message; anything else is logged in full and
// answered with a generic 500.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, msg := resolveError(err, log, c)
		status := "error"
		if code >= 400 && code < 500 {
			status = "fail"
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, errorResponse{Status: status, Message: msg})
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, string) {
	// Echo's own errors: bind failures, unknown routes, body limit, rate limit.
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if he.Code >= http.StatusInternalServerError {
			logInternal(log, c, err)
			return he.Code, internalMessage
		}
		return he.Code, fmt.Sprintf("%v", he.Message)
	}

	var de *domain.Error
	if errors.As(err, &de) {
		if de.Kind == domain.KindDelivery {
			log.Error().Err(err).Str("path", c.Path()).Msg("notification delivery failed")
		}
		return de.Kind.HTTPStatus(), de.Message
	}

	logInternal(log, c, err)
	return http.StatusInternalServerError, internalMessage
}

func logInternal(log zerolog.Logger, c echo.Context, err error) {
	event := log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID))
	if oe, ok := oops.AsOops(err); ok {
		event = event.Interface("code", oe.Code()).Fields(oe.Context())
	}
	event.Msg("unhandled error")
}
