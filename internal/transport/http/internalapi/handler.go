// Package internalapi provides HTTP handlers for internal APIs.
// These APIs are only accessible to the identity provider's webhooks.
package internalapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/csbedford/picklematch/internal/adapter/kratos"
	v1 "github.com/csbedford/picklematch/internal/transport/http/v1"
)

// EventSink applies identity webhook events.
type EventSink interface {
	HandleEvent(ctx context.Context, ev kratos.Event) error
}

// Handler handles internal HTTP requests.
type Handler struct {
	events EventSink
}

// NewHandler creates a new internal API handler.
func NewHandler(events EventSink) *Handler {
	if events == nil {
		panic("internalapi: NewHandler requires an event sink")
	}
	return &Handler{
		events: events,
	}
}

// RegisterRoutes registers internal routes on g.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/identity/events", h.IdentityEvent)
}

// IdentityEvent applies a session event posted by the identity provider.
// POST /internal/identity/events
func (h *Handler) IdentityEvent(c echo.Context) error {
	var ev kratos.Event
	if err := c.Bind(&ev); err != nil {
		return c.JSON(http.StatusBadRequest, v1.ErrorResponse{Error: "invalid request body"})
	}
	if ev.Type == "" {
		return c.JSON(http.StatusBadRequest, v1.ErrorResponse{Error: "type is required"})
	}

	if err := h.events.HandleEvent(c.Request().Context(), ev); err != nil {
		status, msg := v1.StatusFor(err)
		return c.JSON(status, v1.ErrorResponse{Error: msg})
	}
	return c.JSON(http.StatusAccepted, map[string]bool{"ok": true})
}
