package authsync

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/csbedford/picklematch/internal/domain"
	"github.com/csbedford/picklematch/internal/eventbus"
	"github.com/csbedford/picklematch/internal/identity"
)

var tracer = otel.Tracer("github.com/csbedford/picklematch/internal/authsync")

// SessionStore holds the current session and the loading flag.
type SessionStore struct {
	provider identity.SessionProvider
	bus      *eventbus.Bus[Event]
	logger   *slog.Logger

	mu         sync.Mutex
	session    *domain.Session
	loading    bool
	restoreErr error
	seq        uint64
	pushes     uint64
	started    bool
	closed     bool
	sub        identity.Subscription
	cancel     context.CancelFunc

	closeOnce   sync.Once
	restoreDone chan struct{}
}

// NewSessionStore creates a store in the loading state.
func NewSessionStore(provider identity.SessionProvider, bus *eventbus.Bus[Event], logger *slog.Logger) *SessionStore {
	if provider == nil || bus == nil {
		panic("authsync: NewSessionStore requires a provider and a bus")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionStore{
		provider:    provider,
		bus:         bus,
		logger:      logger,
		loading:     true,
		restoreDone: make(chan struct{}),
	}
}

// Start subscribes to push notifications and issues the restoration call.
func (s *SessionStore) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrClosed
	}
	if s.started {
		s.mu.Unlock()
		return domain.ErrAlreadyStarted
	}
	s.started = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	sub := s.provider.Subscribe(s.handleNotification)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		sub.Unsubscribe()
		close(s.restoreDone)
		return domain.ErrClosed
	}
	s.sub = sub
	s.mu.Unlock()

	go s.restore(ctx)
	return nil
}

func (s *SessionStore) restore(ctx context.Context) {
	defer close(s.restoreDone)

	ctx, span := tracer.Start(ctx, "SessionStore.restore")
	sess, err := s.provider.RestoreSession(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.loading = false
	s.restoreErr = err
	// A push that arrived while restoring is newer than whatever was persisted.
	applied := err == nil && s.pushes == 0
	if applied {
		s.session = sess.Clone()
		s.seq++
		s.bus.Publish(SessionChanged{Seq: s.seq, Session: sess.Clone(), Source: SourceRestore})
	}
	s.bus.Publish(SessionRestored{Applied: applied, Err: err})
	s.mu.Unlock()

	switch {
	case err != nil:
		s.logger.WarnContext(ctx, "session restore failed, continuing anonymous", "error", err)
	case !applied:
		s.logger.InfoContext(ctx, "session restore superseded by push notification")
	case sess.HasUser():
		s.logger.InfoContext(ctx, "session restored", "user_id", sess.UserID)
	default:
		s.logger.InfoContext(ctx, "no session to restore")
	}
}

func (s *SessionStore) handleNotification(sess *domain.Session) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.pushes++
	s.session = sess.Clone()
	s.seq++
	seq := s.seq
	s.bus.Publish(SessionChanged{Seq: seq, Session: sess.Clone(), Source: SourcePush})
	s.mu.Unlock()

	s.logger.Debug("session push received", "seq", seq, "signed_in", sess.HasUser())
}

// Close releases the push subscription and abandons a pending restore.
// Only the first call has an effect.
func (s *SessionStore) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		sub := s.sub
		s.sub = nil
		cancel := s.cancel
		started := s.started
		s.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if sub != nil {
			sub.Unsubscribe()
		}
		if started {
			<-s.restoreDone
		}
	})
}

// Session returns a copy of the current session.
func (s *SessionStore) Session() *domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.Clone()
}

// Loading reports whether the restoration call is still pending.
func (s *SessionStore) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// RestoreErr returns the error of the restoration call, if any.
func (s *SessionStore) RestoreErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restoreErr
}

// Phase returns the store's state machine phase.
func (s *SessionStore) Phase() domain.AuthPhase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return phaseOf(s.loading, s.session)
}

func phaseOf(loading bool, sess *domain.Session) domain.AuthPhase {
	switch {
	case loading:
		return domain.AuthPhaseInitializing
	case sess.HasUser():
		return domain.AuthPhaseAuthenticated
	default:
		return domain.AuthPhaseAnonymous
	}
}
