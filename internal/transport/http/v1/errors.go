package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/csbedford/picklematch/internal/domain"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusFor maps a domain error to an HTTP status and a client-safe message.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidSignUp),
		errors.Is(err, domain.ErrUnknownEvent),
		errors.Is(err, domain.ErrEventMismatch):
		return http.StatusBadRequest, err.Error()

	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid credentials"

	case errors.Is(err, domain.ErrNotSignedIn),
		errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrAuthFailed),
		errors.Is(err, domain.ErrSessionExpired),
		errors.Is(err, domain.ErrSessionInactive),
		errors.Is(err, domain.ErrMissingIdentity),
		errors.Is(err, domain.ErrInvalidToken):
		return http.StatusUnauthorized, "authentication required"

	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "admin role required"

	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, "user not found"

	case errors.Is(err, domain.ErrEmailTaken):
		return http.StatusConflict, "email already registered"

	case errors.Is(err, domain.ErrIdentityUnavailable):
		return http.StatusBadGateway, "identity provider unavailable"

	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func respondError(c echo.Context, err error) error {
	status, msg := StatusFor(err)
	return c.JSON(status, ErrorResponse{Error: msg})
}
