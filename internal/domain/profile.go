package domain

import "time"

// Profile is the application-level user record keyed by the session's user id.
type Profile struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	Name       string     `json:"name"`
	Role       UserRole   `json:"role"`
	SkillLevel string     `json:"skill_level,omitempty"`
	Bio        string     `json:"bio,omitempty"`
	Verified   bool       `json:"verified"`
	Status     UserStatus `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Clone returns a copy of p, or nil.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// AuthState is the read-only snapshot exposed by the auth facade.
// Rev increases with every published snapshot.
type AuthState struct {
	Rev        uint64
	Phase      AuthPhase
	Session    *Session
	Profile    *Profile
	Loading    bool
	RestoreErr error
	ProfileErr error
}

// Authenticated reports whether the snapshot carries a session with a user.
func (s AuthState) Authenticated() bool {
	return s.Session.HasUser()
}

// Clone returns a deep copy of s.
func (s AuthState) Clone() AuthState {
	s.Session = s.Session.Clone()
	s.Profile = s.Profile.Clone()
	return s
}
