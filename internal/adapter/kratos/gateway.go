// Package kratos adapts an Ory Kratos deployment to the identity contract.
//
// Kratos has no push channel of its own, so session changes arrive through
// webhook events (see HandleEvent) and are fanned out to subscribers.
package kratos

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	kratos "github.com/ory/kratos-client-go"

	"github.com/csbedford/picklematch/internal/domain"
	"github.com/csbedford/picklematch/internal/eventbus"
	"github.com/csbedford/picklematch/internal/identity"
)

// Config configures the gateway.
type Config struct {
	PublicURL string
	// SessionToken is the device's Kratos session token, if one was issued.
	SessionToken string
	Timeout      time.Duration
}

// Gateway implements identity.SessionProvider against the Kratos frontend API.
type Gateway struct {
	client  *kratos.APIClient
	timeout time.Duration
	logger  *slog.Logger

	bus     *eventbus.Bus[*domain.Session]
	stopBus context.CancelFunc
	closed  sync.Once

	mu      sync.Mutex
	token   string
	current *domain.Session
}

var _ identity.SessionProvider = (*Gateway)(nil)

// NewGateway creates a new Kratos gateway with tuned HTTP transport. Close
// must be called to stop notification delivery.
func NewGateway(cfg Config, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}

	configuration := kratos.NewConfiguration()
	configuration.Servers = []kratos.ServerConfiguration{
		{URL: cfg.PublicURL},
	}
	configuration.HTTPClient = &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 20,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	g := &Gateway{
		client:  kratos.NewAPIClient(configuration),
		timeout: cfg.Timeout,
		logger:  logger,
		bus:     eventbus.New[*domain.Session](),
		stopBus: cancel,
		token:   cfg.SessionToken,
	}
	go g.bus.Run(ctx)
	return g
}

// Close stops notification delivery.
func (g *Gateway) Close() {
	g.closed.Do(func() {
		g.stopBus()
		<-g.bus.Done()
	})
}

// RestoreSession resolves the configured session token. A missing token or
// one Kratos no longer accepts means no session.
func (g *Gateway) RestoreSession(ctx context.Context) (*domain.Session, error) {
	g.mu.Lock()
	token := g.token
	g.mu.Unlock()
	if token == "" {
		return nil, nil
	}

	sess, err := g.whoami(ctx, token)
	switch {
	case err == nil:
	case isNoSession(err):
		g.logger.InfoContext(ctx, "stored kratos session no longer valid", "error", err)
		return nil, nil
	default:
		return nil, err
	}

	g.mu.Lock()
	if g.current == nil {
		g.current = sess.Clone()
	}
	g.mu.Unlock()
	return sess, nil
}

// Subscribe registers onChange for every session change.
func (g *Gateway) Subscribe(onChange func(*domain.Session)) identity.Subscription {
	unsubscribe := g.bus.Subscribe(func(sess *domain.Session) {
		onChange(sess.Clone())
	})
	return identity.SubscriptionFunc(unsubscribe)
}

// HandleEvent applies a webhook event and pushes the resulting session.
// When the event names an identity it must be the one the session belongs to.
func (g *Gateway) HandleEvent(ctx context.Context, ev Event) error {
	switch ev.Type {
	case EventSessionCreated, EventSessionRefreshed:
		if ev.SessionToken == "" {
			return fmt.Errorf("%w: %s without session token", domain.ErrSessionNotFound, ev.Type)
		}
		sess, err := g.whoami(ctx, ev.SessionToken)
		if err != nil {
			return err
		}
		if ev.IdentityID != "" && ev.IdentityID != sess.UserID {
			return fmt.Errorf("%w: event names identity %s, session belongs to %s",
				domain.ErrEventMismatch, ev.IdentityID, sess.UserID)
		}
		g.mu.Lock()
		defer g.mu.Unlock()
		g.token = ev.SessionToken
		g.current = sess.Clone()
		g.bus.Publish(sess)
		g.logger.InfoContext(ctx, "kratos session applied", "event", ev.Type, "session_id", sess.ID)
		return nil

	case EventSessionRevoked:
		g.mu.Lock()
		defer g.mu.Unlock()
		if g.current == nil ||
			(ev.SessionID != "" && ev.SessionID != g.current.ID) ||
			(ev.IdentityID != "" && ev.IdentityID != g.current.UserID) {
			g.logger.DebugContext(ctx, "ignoring revocation of foreign session", "session_id", ev.SessionID)
			return nil
		}
		g.token = ""
		g.current = nil
		g.bus.Publish(nil)
		g.logger.InfoContext(ctx, "kratos session revoked", "session_id", ev.SessionID)
		return nil

	default:
		return fmt.Errorf("%w: %q", domain.ErrUnknownEvent, ev.Type)
	}
}

func (g *Gateway) whoami(ctx context.Context, token string) (*domain.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	session, resp, err := g.client.FrontendAPI.ToSession(ctx).XSessionToken(token).Execute()
	if err != nil {
		if resp != nil {
			if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
				return nil, domain.ErrAuthFailed
			}
			return nil, fmt.Errorf("%w: kratos returned status %d", domain.ErrIdentityUnavailable, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrIdentityUnavailable, err)
	}

	if session.Active != nil && !*session.Active {
		return nil, domain.ErrSessionInactive
	}
	if session.Identity == nil || session.Identity.Id == "" {
		return nil, domain.ErrMissingIdentity
	}

	out := &domain.Session{
		ID:          session.Id,
		UserID:      session.Identity.Id,
		AccessToken: token,
	}
	if session.IssuedAt != nil {
		out.IssuedAt = *session.IssuedAt
	} else if session.AuthenticatedAt != nil {
		out.IssuedAt = *session.AuthenticatedAt
	}
	if session.ExpiresAt != nil {
		out.ExpiresAt = *session.ExpiresAt
	}
	return out, nil
}
