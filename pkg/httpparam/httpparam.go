// Package httpparam parses path and query parameters into typed values,
// reporting malformed input as validation errors.
package httpparam

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/healthgraph/radar/pkg/apperr"
)

// ID parses the path parameter name as a positive integer id.
func ID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id < 1 {
		return 0, apperr.Validation("invalid %s", name)
	}
	return id, nil
}

// Int parses an optional integer query parameter, returning def when absent.
func Int(c echo.Context, name string, def int) (int, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Validation("%s must be an integer", name)
	}
	return n, nil
}

// Int64 is Int for identifiers; absent values yield 0.
func Int64(c echo.Context, name string) (int64, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 1 {
		return 0, apperr.Validation("invalid %s", name)
	}
	return n, nil
}

// Bool parses an optional boolean query parameter. The second result reports
// whether the parameter was present.
func Bool(c echo.Context, name string) (bool, bool, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return false, false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false, apperr.Validation("%s must be a boolean", name)
	}
	return b, true, nil
}
