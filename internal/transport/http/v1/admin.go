package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// VerifyUserRequest sets a user's verification flag. Verified defaults to true.
type VerifyUserRequest struct {
	Verified *bool `json:"verified"`
}

// VerifyUserResponse echoes the applied flag.
type VerifyUserResponse struct {
	UserID   string `json:"user_id"`
	Verified bool   `json:"verified"`
}

// VerifyUser marks a user as verified (or not). Admin only.
// POST /v1/admin/users/:id/verify
func (h *Handler) VerifyUser(c echo.Context) error {
	userID := c.Param("id")
	if userID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "user id is required"})
	}

	var req VerifyUserRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}
	verified := true
	if req.Verified != nil {
		verified = *req.Verified
	}

	if err := h.accounts.SetUserVerified(c.Request().Context(), userID, verified); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, VerifyUserResponse{UserID: userID, Verified: verified})
}
