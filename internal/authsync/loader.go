package authsync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/csbedford/picklematch/internal/domain"
	"github.com/csbedford/picklematch/internal/eventbus"
	"github.com/csbedford/picklematch/internal/identity"
)

// DefaultLookupTimeout bounds a single user record lookup.
const DefaultLookupTimeout = 10 * time.Second

// ProfileLoader issues a user record lookup for every session change.
//
// Only the lookup for the most recent change may publish a result; older
// lookups are cancelled and their results dropped.
type ProfileLoader struct {
	records identity.RecordLookup
	bus     *eventbus.Bus[Event]
	logger  *slog.Logger
	timeout time.Duration

	latest  atomic.Uint64
	lookups atomic.Int64

	mu       sync.Mutex
	ctx      context.Context
	inflight context.CancelFunc
	wg       sync.WaitGroup
}

// NewProfileLoader creates a loader. A zero timeout selects DefaultLookupTimeout.
func NewProfileLoader(records identity.RecordLookup, bus *eventbus.Bus[Event], logger *slog.Logger, timeout time.Duration) *ProfileLoader {
	if records == nil || bus == nil {
		panic("authsync: NewProfileLoader requires a record source and a bus")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	return &ProfileLoader{
		records: records,
		bus:     bus,
		logger:  logger,
		timeout: timeout,
		ctx:     context.Background(),
	}
}

// Attach subscribes the loader to session changes. Lookups derive from ctx.
func (l *ProfileLoader) Attach(ctx context.Context) (detach func()) {
	l.mu.Lock()
	l.ctx = ctx
	l.mu.Unlock()

	unsubscribe := l.bus.Subscribe(l.handle)
	return func() {
		unsubscribe()
		l.mu.Lock()
		if l.inflight != nil {
			l.inflight()
			l.inflight = nil
		}
		l.mu.Unlock()
	}
}

// Wait blocks until every started lookup has returned.
func (l *ProfileLoader) Wait() {
	l.wg.Wait()
}

// Lookups returns how many lookups have been issued.
func (l *ProfileLoader) Lookups() int64 {
	return l.lookups.Load()
}

func (l *ProfileLoader) handle(ev Event) {
	changed, ok := ev.(SessionChanged)
	if !ok {
		return
	}
	l.latest.Store(changed.Seq)

	l.mu.Lock()
	if l.inflight != nil {
		l.inflight()
		l.inflight = nil
	}
	if !changed.Session.HasUser() {
		l.mu.Unlock()
		l.bus.Publish(ProfileResolved{Seq: changed.Seq})
		return
	}
	ctx, cancel := context.WithTimeout(l.ctx, l.timeout)
	l.inflight = cancel
	l.wg.Add(1)
	l.mu.Unlock()

	l.lookups.Add(1)
	go l.lookup(ctx, cancel, changed.Seq, changed.Session.UserID)
}

func (l *ProfileLoader) lookup(ctx context.Context, cancel context.CancelFunc, seq uint64, userID string) {
	defer l.wg.Done()
	defer cancel()

	ctx, span := tracer.Start(ctx, "ProfileLoader.lookup",
		trace.WithAttributes(attribute.String("user.id", userID), attribute.Int64("session.seq", int64(seq))))
	defer span.End()

	profile, err := l.records.LookupUserRecord(ctx, userID)
	if seq != l.latest.Load() {
		l.logger.DebugContext(ctx, "discarding superseded profile lookup", "seq", seq, "user_id", userID)
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		l.logger.WarnContext(ctx, "profile lookup failed", "user_id", userID, "error", err)
		l.bus.Publish(ProfileResolved{Seq: seq, UserID: userID, Err: fmt.Errorf("%w: %w", domain.ErrRecordLookup, err)})
		return
	}
	if profile == nil {
		l.logger.InfoContext(ctx, "no user record for session", "user_id", userID)
	}
	l.bus.Publish(ProfileResolved{Seq: seq, UserID: userID, Profile: profile.Clone()})
}
