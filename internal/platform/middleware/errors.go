package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/healthgraph/radar/pkg/apperr"
	"github.com/healthgraph/radar/pkg/response"
)

// StatusOf returns the HTTP status an error will be rendered with.
func StatusOf(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae.Status()
	}
	return http.StatusInternalServerError
}

// kindForStatus classifies echo's own errors (unknown route, bind failures).
func kindForStatus(status int) apperr.Kind {
	switch status {
	case http.StatusBadRequest, http.StatusUnsupportedMediaType, http.StatusRequestEntityTooLarge:
		return apperr.KindValidation
	case http.StatusUnauthorized:
		return apperr.KindAuthentication
	case http.StatusForbidden:
		return apperr.KindForbidden
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return apperr.KindNotFound
	case http.StatusConflict:
		return apperr.KindConflict
	case http.StatusUnprocessableEntity:
		return apperr.KindInvalidState
	case http.StatusTooManyRequests:
		return apperr.KindRateLimited
	default:
		return apperr.KindInternal
	}
}

// ErrorHandler renders every error returned by a handler or middleware into
// the failure envelope. Internal failures are logged with their cause and
// reported to the client with a generic message.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var (
			status int
			kind   apperr.Kind
			msg    string
		)

		var he *echo.HTTPError
		var ae *apperr.Error
		switch {
		case errors.As(err, &ae):
			status, kind, msg = ae.Status(), ae.Kind, ae.Message
		case errors.As(err, &he):
			status, kind = he.Code, kindForStatus(he.Code)
			msg = fmt.Sprintf("%v", he.Message)
		default:
			status, kind, msg = http.StatusInternalServerError, apperr.KindInternal, "internal server error"
		}

		if kind == apperr.KindInternal {
			logger.Error().
				Err(err).
				Str("request_id", fmt.Sprintf("%v", c.Get("request_id"))).
				Str("path", c.Request().URL.Path).
				Msg("internal error")
			msg = "internal server error"
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = response.Fail(c, status, kind, msg)
	}
}
