package domain

import "errors"

// Session errors.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrSessionInactive = errors.New("session is not active")
	ErrAuthFailed      = errors.New("authentication failed")
	ErrMissingIdentity = errors.New("missing identity in session")
	ErrInvalidToken    = errors.New("invalid session token")
)

// Account errors.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidSignUp      = errors.New("invalid sign-up request")
	ErrNotSignedIn        = errors.New("not signed in")
	ErrForbidden          = errors.New("not allowed for this account")
	ErrUserNotFound       = errors.New("user not found")
)

// External service errors.
var (
	ErrIdentityUnavailable = errors.New("identity provider unavailable")
	ErrRecordLookup        = errors.New("user record lookup failed")
	ErrUnknownEvent        = errors.New("unknown identity event")
	ErrEventMismatch       = errors.New("identity event does not match its session")
)

// Lifecycle errors.
var (
	ErrAlreadyStarted = errors.New("already started")
	ErrClosed         = errors.New("closed")
)
