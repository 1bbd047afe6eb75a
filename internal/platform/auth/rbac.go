package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// RequireRole returns middleware that checks if the user has at least one of
// the specified roles. Administrators pass every gate.
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

// HasRole reports whether the caller holds any of roles, or is an admin.
func HasRole(ctx context.Context, roles ...string) bool {
	for _, has := range RolesFromContext(ctx) {
		if has == RoleAdmin {
			return true
		}
		for _, required := range roles {
			if has == required {
				return true
			}
		}
	}
	return false
}

// CanAccessPatient reports whether the caller may read the given patient's
// records. Staff see every patient; a family account sees only the patients
// listed in its token.
func CanAccessPatient(ctx context.Context, patientID string) bool {
	if HasRole(ctx, RoleProfessional, RoleSecretary) {
		return true
	}
	if !HasRole(ctx, RoleFamily) {
		return false
	}
	for _, id := range PatientIDsFromContext(ctx) {
		if id == patientID {
			return true
		}
	}
	return false
}
