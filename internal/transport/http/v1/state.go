package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/csbedford/picklematch/internal/policy"
	"github.com/csbedford/picklematch/internal/transport/protocol"
)

// NavResponse is the navigation menu for the current auth state.
type NavResponse struct {
	Rev   uint64             `json:"rev"`
	Items []policy.MenuEntry `json:"items"`
}

// GetAuthState returns the current auth state snapshot.
// GET /v1/auth/state
func (h *Handler) GetAuthState(c echo.Context) error {
	return c.JSON(http.StatusOK, protocol.NewAuthStateView(h.state.State()))
}

// GetNav returns the navigation items with their lock state.
// GET /v1/nav
func (h *Handler) GetNav(c echo.Context) error {
	st := h.state.State()
	menu, err := h.nav.Menu(c.Request().Context(), st)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, NavResponse{Rev: st.Rev, Items: menu})
}
