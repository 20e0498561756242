// Package http provides the HTTP server implementation.
package http

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/csbedford/picklematch/internal/authsync"
	"github.com/csbedford/picklematch/internal/policy"
	"github.com/csbedford/picklematch/internal/transport/http/internalapi"
	"github.com/csbedford/picklematch/internal/transport/http/middleware"
	v1 "github.com/csbedford/picklematch/internal/transport/http/v1"
	"github.com/csbedford/picklematch/internal/transport/ws"
)

// Deps are the components served over HTTP.
type Deps struct {
	State authsync.StateReader
	Nav   *policy.Engine
	// Accounts is set when the identity provider manages its own users.
	Accounts v1.Accounts
	// Events and WebhookSecret are set when the provider pushes through webhooks.
	Events        internalapi.EventSink
	WebhookSecret string
	WS            *ws.Server

	ServiceName string
	Tracing     bool
}

// NewServer creates and configures the HTTP server.
func NewServer(deps Deps, logger *slog.Logger) *echo.Echo {
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	if deps.Tracing {
		e.Use(otelecho.Middleware(deps.ServiceName))
	}
	e.Use(middleware.RequestLogger(logger))
	e.Use(echomw.Recover())

	// Handlers
	v1.NewHandler(deps.State, deps.Nav, deps.Accounts).RegisterRoutes(e)

	if deps.WS != nil {
		e.GET("/ws", deps.WS.HandleWebSocket)
	}

	if deps.Events != nil {
		internal := e.Group("/internal", middleware.InternalAuth(deps.WebhookSecret))
		internalapi.NewHandler(deps.Events).RegisterRoutes(internal)
	}

	return e
}
