// Package v1 provides the public HTTP handlers.
package v1

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/csbedford/picklematch/internal/adapter/local"
	"github.com/csbedford/picklematch/internal/authsync"
	"github.com/csbedford/picklematch/internal/domain"
	"github.com/csbedford/picklematch/internal/policy"
)

// Accounts is the account API of an identity provider that manages its own users.
type Accounts interface {
	SignIn(ctx context.Context, email, password string) (*domain.Session, error)
	SignUp(ctx context.Context, req local.SignUpRequest) (*domain.Session, error)
	SignOut(ctx context.Context) error
	Refresh(ctx context.Context) (*domain.Session, error)
	SetUserVerified(ctx context.Context, userID string, verified bool) error
}

// Handler handles HTTP requests.
type Handler struct {
	state    authsync.StateReader
	nav      *policy.Engine
	accounts Accounts
}

// NewHandler creates a new handler. accounts may be nil, in which case the
// account routes are not registered.
func NewHandler(state authsync.StateReader, nav *policy.Engine, accounts Accounts) *Handler {
	if state == nil || nav == nil {
		panic("v1: NewHandler requires an auth state reader and a nav policy")
	}
	return &Handler{
		state:    state,
		nav:      nav,
		accounts: accounts,
	}
}

// RegisterRoutes registers external routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/v1/auth/state", h.GetAuthState)
	e.GET("/v1/nav", h.GetNav)

	if h.accounts != nil {
		e.POST("/v1/auth/sign-in", h.SignIn)
		e.POST("/v1/auth/sign-up", h.SignUp)
		e.POST("/v1/auth/sign-out", h.SignOut)
		e.POST("/v1/auth/refresh", h.Refresh)
		e.POST("/v1/admin/users/:id/verify", h.VerifyUser)
	}

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	st := h.state.State()
	return c.JSON(http.StatusOK, map[string]any{
		"status":  "healthy",
		"phase":   st.Phase,
		"loading": st.Loading,
	})
}
