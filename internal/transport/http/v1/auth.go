package v1

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/csbedford/picklematch/internal/adapter/local"
	"github.com/csbedford/picklematch/internal/domain"
	"github.com/csbedford/picklematch/internal/transport/protocol"
)

// SignInRequest is the request to sign in.
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse is returned by operations that start a session. The token
// stays on the server.
type SessionResponse struct {
	OK      bool                 `json:"ok"`
	Session protocol.SessionView `json:"session"`
}

func sessionResponse(sess *domain.Session) SessionResponse {
	return SessionResponse{
		OK: true,
		Session: protocol.SessionView{
			ID:        sess.ID,
			UserID:    sess.UserID,
			IssuedAt:  sess.IssuedAt,
			ExpiresAt: sess.ExpiresAt,
		},
	}
}

// SignIn signs in with email and password.
// POST /v1/auth/sign-in
func (h *Handler) SignIn(c echo.Context) error {
	var req SignInRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "email and password are required"})
	}

	sess, err := h.accounts.SignIn(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, sessionResponse(sess))
}

// SignUp creates an account and signs it in.
// POST /v1/auth/sign-up
func (h *Handler) SignUp(c echo.Context) error {
	var req local.SignUpRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	sess, err := h.accounts.SignUp(c.Request().Context(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, sessionResponse(sess))
}

// SignOut ends the current session.
// POST /v1/auth/sign-out
func (h *Handler) SignOut(c echo.Context) error {
	if err := h.accounts.SignOut(c.Request().Context()); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

// Refresh replaces the current session with a new one.
// POST /v1/auth/refresh
func (h *Handler) Refresh(c echo.Context) error {
	sess, err := h.accounts.Refresh(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, sessionResponse(sess))
}
