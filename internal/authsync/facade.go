package authsync

import (
	"log/slog"
	"sync"

	"github.com/csbedford/picklematch/internal/domain"
	"github.com/csbedford/picklematch/internal/eventbus"
)

// StateReader is the read-only view handed to consumers of auth state.
type StateReader interface {
	State() domain.AuthState
	Subscribe(fn func(domain.AuthState)) (unsubscribe func())
}

// Facade folds session and profile events into an AuthState snapshot.
// Its handler runs on the bus dispatcher; readers take a copy under a read lock.
type Facade struct {
	bus    *eventbus.Bus[Event]
	logger *slog.Logger

	mu       sync.RWMutex
	state    domain.AuthState
	seq      uint64
	restored bool
}

var _ StateReader = (*Facade)(nil)

// NewFacade creates a facade subscribed to bus.
func NewFacade(bus *eventbus.Bus[Event], logger *slog.Logger) *Facade {
	if bus == nil {
		panic("authsync: NewFacade requires a bus")
	}
	if logger == nil {
		logger = slog.Default()
	}
	f := &Facade{
		bus:    bus,
		logger: logger,
		state: domain.AuthState{
			Phase:   domain.AuthPhaseInitializing,
			Loading: true,
		},
	}
	bus.Subscribe(f.handle)
	return f
}

// State returns a copy of the current snapshot.
func (f *Facade) State() domain.AuthState {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state.Clone()
}

// Subscribe calls fn with every new snapshot, on the bus dispatcher.
func (f *Facade) Subscribe(fn func(domain.AuthState)) (unsubscribe func()) {
	return f.bus.Subscribe(func(ev Event) {
		if sc, ok := ev.(StateChanged); ok {
			fn(sc.State)
		}
	})
}

func (f *Facade) handle(ev Event) {
	f.mu.Lock()
	changed := false
	switch e := ev.(type) {
	case SessionChanged:
		changed = f.applySession(e)
	case SessionRestored:
		changed = f.applyRestored(e)
	case ProfileResolved:
		changed = f.applyProfile(e)
	}
	var snapshot domain.AuthState
	if changed {
		f.state.Phase = phaseOf(f.state.Loading, f.state.Session)
		f.state.Rev++
		snapshot = f.state.Clone()
	}
	f.mu.Unlock()

	if changed {
		f.bus.Publish(StateChanged{State: snapshot})
	}
}

func (f *Facade) applySession(e SessionChanged) bool {
	prev := f.state.Session
	f.seq = e.Seq
	f.state.Session = e.Session.Clone()
	if !e.Session.HasUser() || !prev.HasUser() || prev.UserID != e.Session.UserID {
		// Never show a profile that does not belong to the current user.
		f.state.Profile = nil
		f.state.ProfileErr = nil
	}
	return true
}

func (f *Facade) applyRestored(e SessionRestored) bool {
	if f.restored {
		return false
	}
	f.restored = true
	f.state.Loading = false
	f.state.RestoreErr = e.Err
	return true
}

func (f *Facade) applyProfile(e ProfileResolved) bool {
	if e.Seq != f.seq {
		f.logger.Debug("ignoring stale profile result", "seq", e.Seq, "current_seq", f.seq)
		return false
	}
	if !f.state.Session.HasUser() {
		return false
	}
	if e.Err != nil {
		f.state.ProfileErr = e.Err
		return true
	}
	f.state.Profile = e.Profile.Clone()
	f.state.ProfileErr = nil
	return true
}
