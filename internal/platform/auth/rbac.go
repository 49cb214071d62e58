package auth

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/healthgraph/radar/pkg/apperr"
)

const (
	// RoleAdmin satisfies every role check.
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// RequireRole returns middleware that checks the caller has one of roles.
// It must run after RequireAuth.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := IdentityFromContext(c.Request().Context())
			if id == nil {
				return apperr.Authentication("authentication required")
			}
			if id.Role == RoleAdmin {
				return next(c)
			}
			for _, r := range roles {
				if id.Role == r {
					return next(c)
				}
			}
			return apperr.Forbidden("required role: %s", strings.Join(roles, " or "))
		}
	}
}
