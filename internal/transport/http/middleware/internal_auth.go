// Package middleware holds echo middleware shared by the HTTP servers.
package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
)

// InternalAuthHeader carries the shared secret on internal routes.
const InternalAuthHeader = "X-Internal-Auth"

// InternalAuth creates middleware that validates a shared secret for internal endpoints.
// Uses constant-time comparison.
func InternalAuth(sharedSecret string) echo.MiddlewareFunc {
	secretBytes := []byte(sharedSecret)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			provided := []byte(c.Request().Header.Get(InternalAuthHeader))
			if len(provided) == 0 {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing internal auth header")
			}
			if len(secretBytes) == 0 || subtle.ConstantTimeCompare(provided, secretBytes) != 1 {
				return echo.NewHTTPError(http.StatusForbidden, "invalid internal auth")
			}
			return next(c)
		}
	}
}
