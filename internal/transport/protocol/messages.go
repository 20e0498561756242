// Package protocol defines the WebSocket message protocol between clients and
// the auth state stream, and the JSON views shared with the HTTP API.
package protocol

import (
	"time"

	"github.com/csbedford/picklematch/internal/domain"
)

// Message types from client to server
const (
	TypeHello = "hello"
)

// Message types from server to client
const (
	TypeHelloAck  = "hello_ack"
	TypeAuthState = "auth_state"
	TypeError     = "error"
)

// BaseMessage contains common fields for all messages.
type BaseMessage struct {
	Type      string `json:"type"`
	Ts        int64  `json:"ts"`
	RequestID string `json:"request_id,omitempty"`
}

// HelloMessage is sent by client to start receiving auth state.
type HelloMessage struct {
	BaseMessage
	ClientMeta map[string]string `json:"client_meta,omitempty"`
}

// HelloAckMessage is sent by the server after a successful hello.
type HelloAckMessage struct {
	BaseMessage
	ConnectionID string `json:"connection_id"`
}

// AuthStateMessage carries an auth state snapshot.
type AuthStateMessage struct {
	BaseMessage
	State AuthStateView `json:"state"`
}

// ErrorMessage is sent by the server when an error occurs.
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrorCodeInvalidMessage = "invalid_message"
	ErrorCodeHelloRequired  = "hello_required"
	ErrorCodeInternalError  = "internal_error"
)

// SessionView is the client-visible part of a session. Tokens are never sent.
type SessionView struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	IssuedAt  time.Time `json:"issued_at,omitzero"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// AuthStateView is the JSON form of domain.AuthState.
type AuthStateView struct {
	Rev          uint64           `json:"rev"`
	Phase        domain.AuthPhase `json:"phase"`
	Session      *SessionView     `json:"session"`
	Profile      *domain.Profile  `json:"profile"`
	Loading      bool             `json:"loading"`
	RestoreError string           `json:"restore_error,omitempty"`
	ProfileError string           `json:"profile_error,omitempty"`
}

// NewAuthStateView converts a snapshot to its JSON form.
func NewAuthStateView(s domain.AuthState) AuthStateView {
	v := AuthStateView{
		Rev:     s.Rev,
		Phase:   s.Phase,
		Profile: s.Profile.Clone(),
		Loading: s.Loading,
	}
	if s.Session != nil {
		v.Session = &SessionView{
			ID:        s.Session.ID,
			UserID:    s.Session.UserID,
			IssuedAt:  s.Session.IssuedAt,
			ExpiresAt: s.Session.ExpiresAt,
		}
	}
	if s.RestoreErr != nil {
		v.RestoreError = s.RestoreErr.Error()
	}
	if s.ProfileErr != nil {
		v.ProfileError = s.ProfileErr.Error()
	}
	return v
}

// NewAuthStateMessage wraps a snapshot in an auth_state message.
func NewAuthStateMessage(s domain.AuthState) AuthStateMessage {
	return AuthStateMessage{
		BaseMessage: BaseMessage{Type: TypeAuthState, Ts: time.Now().UnixMilli()},
		State:       NewAuthStateView(s),
	}
}
