package kratos

import (
	"errors"

	"github.com/csbedford/picklematch/internal/domain"
)

// EventType names a Kratos webhook event.
type EventType string

const (
	EventSessionCreated   EventType = "session.created"
	EventSessionRefreshed EventType = "session.refreshed"
	EventSessionRevoked   EventType = "session.revoked"
)

// Event is the payload posted by the Kratos webhook.
type Event struct {
	Type         EventType `json:"type"`
	SessionID    string    `json:"session_id,omitempty"`
	SessionToken string    `json:"session_token,omitempty"`
	IdentityID   string    `json:"identity_id,omitempty"`
}

// isNoSession reports whether err means Kratos holds no usable session.
func isNoSession(err error) bool {
	return errors.Is(err, domain.ErrAuthFailed) ||
		errors.Is(err, domain.ErrSessionInactive) ||
		errors.Is(err, domain.ErrMissingIdentity)
}
