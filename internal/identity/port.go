// Package identity defines the contract the sync core consumes from an
// identity provider, and helpers for composing providers.
package identity

import (
	"context"

	"github.com/csbedford/picklematch/internal/domain"
)

// Subscription is a live push-notification registration.
type Subscription interface {
	// Unsubscribe releases the registration. It is safe to call more than once.
	Unsubscribe()
}

// SubscriptionFunc adapts a plain function to Subscription.
type SubscriptionFunc func()

// Unsubscribe calls f.
func (f SubscriptionFunc) Unsubscribe() { f() }

// SessionProvider restores and pushes sessions.
type SessionProvider interface {
	// RestoreSession returns an already established session, or nil if there is none.
	RestoreSession(ctx context.Context) (*domain.Session, error)
	// Subscribe registers onChange for every session change. A nil session means signed out.
	Subscribe(onChange func(*domain.Session)) Subscription
}

// RecordLookup resolves user records by primary key.
type RecordLookup interface {
	// LookupUserRecord returns the record with id userID, or nil, nil when none matches.
	LookupUserRecord(ctx context.Context, userID string) (*domain.Profile, error)
}

// Client is the full identity contract.
type Client interface {
	SessionProvider
	RecordLookup
}

type composite struct {
	SessionProvider
	RecordLookup
}

// Compose joins a session provider and a record source into a Client.
func Compose(sessions SessionProvider, records RecordLookup) Client {
	return composite{SessionProvider: sessions, RecordLookup: records}
}
