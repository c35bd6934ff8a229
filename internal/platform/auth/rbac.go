package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// RequireRole returns middleware that checks the caller has one of the
// specified roles. Admins always pass.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if HasRole(c.Request().Context(), roles...) {
				return next(c)
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}

// HasRole reports whether the caller in ctx holds one of roles, or is admin.
func HasRole(ctx context.Context, roles ...string) bool {
	has := RoleFromContext(ctx)
	if has == "" {
		return false
	}
	if has == RoleAdmin {
		return true
	}
	for _, r := range roles {
		if has == r {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the caller in ctx is an admin.
func IsAdmin(ctx context.Context) bool {
	return RoleFromContext(ctx) == RoleAdmin
}
