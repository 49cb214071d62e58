package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// quietRoutes are polled by probes and scrapers; successful hits log at debug.
var quietRoutes = map[string]bool{
	"/metrics":       true,
	"/api/health":    true,
	"/api/health/db": true,
}

// Logger writes one line per request. Client errors log at warn and server
// errors at error, with the status taken from the returned error.
func Logger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			var evt *zerolog.Event
			switch {
			case err != nil && StatusOf(err) >= 500:
				status = StatusOf(err)
				evt = logger.Error().Err(err)
			case err != nil:
				status = StatusOf(err)
				evt = logger.Warn().Err(err)
			case quietRoutes[c.Path()]:
				evt = logger.Debug()
			default:
				evt = logger.Info()
			}

			rid, _ := c.Get("request_id").(string)
			req := c.Request()
			evt.
				Str("request_id", rid).
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Str("route", c.Path()).
				Int("status", status).
				Int64("bytes_out", c.Response().Size).
				Dur("latency", time.Since(start)).
				Str("remote_ip", c.RealIP()).
				Msg("request")
			return err
		}
	}
}
