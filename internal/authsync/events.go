// Package authsync mirrors the identity provider's session into local,
// read-only auth state.
//
// A SessionStore restores the session once at start and then follows the
// provider's push notifications. A ProfileLoader reacts to every session change
// with a point lookup of the user record. The Facade folds both into an
// AuthState snapshot. The three talk through an eventbus.Bus, whose single
// dispatcher goroutine plays the role of the UI event loop.
package authsync

import "github.com/csbedford/picklematch/internal/domain"

// Event is anything published on the sync bus.
type Event interface {
	eventName() string
}

// ChangeSource tells where a session change came from.
type ChangeSource string

const (
	SourceRestore ChangeSource = "restore"
	SourcePush    ChangeSource = "push"
)

// SessionChanged is published whenever the store replaces its session.
// Seq increases by one with every change.
type SessionChanged struct {
	Seq     uint64
	Session *domain.Session
	Source  ChangeSource
}

// SessionRestored is published once, when the restoration call resolves.
type SessionRestored struct {
	Applied bool
	Err     error
}

// ProfileResolved carries the outcome of the lookup issued for session change Seq.
type ProfileResolved struct {
	Seq     uint64
	UserID  string
	Profile *domain.Profile
	Err     error
}

// StateChanged carries a new facade snapshot.
type StateChanged struct {
	State domain.AuthState
}

func (SessionChanged) eventName() string  { return "session_changed" }
func (SessionRestored) eventName() string { return "session_restored" }
func (ProfileResolved) eventName() string { return "profile_resolved" }
func (StateChanged) eventName() string    { return "state_changed" }
