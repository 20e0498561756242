package domain

import "time"

// Session is an authenticated identity issued by the identity provider.
// Only UserID carries meaning for the sync core; the rest is passed through.
type Session struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	AccessToken string    `json:"access_token,omitempty"`
	IssuedAt    time.Time `json:"issued_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// HasUser reports whether s is non-nil and carries a user identifier.
func (s *Session) HasUser() bool {
	return s != nil && s.UserID != ""
}

// Clone returns a copy of s, or nil.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// Expired reports whether the session has an expiry in the past.
func (s *Session) Expired(now time.Time) bool {
	return s != nil && !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}
