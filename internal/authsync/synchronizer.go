package authsync

import (
	"context"
	"log/slog"
	"time"

	"github.com/csbedford/picklematch/internal/eventbus"
	"github.com/csbedford/picklematch/internal/identity"
)

// Option configures a Synchronizer.
type Option func(*options)

type options struct {
	logger        *slog.Logger
	lookupTimeout time.Duration
}

// WithLogger sets the logger shared by all components.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithLookupTimeout bounds each user record lookup.
func WithLookupTimeout(d time.Duration) Option {
	return func(o *options) { o.lookupTimeout = d }
}

// Synchronizer wires the session store, profile loader and facade to one bus.
type Synchronizer struct {
	bus    *eventbus.Bus[Event]
	store  *SessionStore
	loader *ProfileLoader
	facade *Facade
	logger *slog.Logger
}

// New creates a Synchronizer backed by client.
func New(client identity.Client, opts ...Option) *Synchronizer {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	bus := eventbus.New[Event]()
	return &Synchronizer{
		bus:    bus,
		store:  NewSessionStore(client, bus, o.logger),
		loader: NewProfileLoader(client, bus, o.logger, o.lookupTimeout),
		facade: NewFacade(bus, o.logger),
		logger: o.logger,
	}
}

// Facade returns the read-only state view.
func (s *Synchronizer) Facade() *Facade {
	return s.facade
}

// Store returns the session store.
func (s *Synchronizer) Store() *SessionStore {
	return s.store
}

// Loader returns the profile loader.
func (s *Synchronizer) Loader() *ProfileLoader {
	return s.loader
}

// Run starts syncing and blocks until ctx is done. The push subscription is
// released and all lookups have returned before Run returns.
func (s *Synchronizer) Run(ctx context.Context) error {
	busCtx, stopBus := context.WithCancel(context.WithoutCancel(ctx))
	go s.bus.Run(busCtx)
	defer func() {
		stopBus()
		<-s.bus.Done()
	}()

	detach := s.loader.Attach(ctx)
	defer func() {
		detach()
		s.loader.Wait()
	}()

	defer s.store.Close()
	if err := s.store.Start(ctx); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "auth sync started")

	<-ctx.Done()
	s.logger.Info("auth sync stopping")
	return nil
}
