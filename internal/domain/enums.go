// Package domain defines the core domain models for the auth sync service.
package domain

// AuthPhase is the lifecycle phase of the session store.
type AuthPhase string

const (
	AuthPhaseInitializing  AuthPhase = "INITIALIZING"
	AuthPhaseAnonymous     AuthPhase = "ANONYMOUS"
	AuthPhaseAuthenticated AuthPhase = "AUTHENTICATED"
)

// UserRole is the application role stored on a user record.
type UserRole string

const (
	UserRoleAdmin  UserRole = "admin"
	UserRolePlayer UserRole = "player"
)

// UserStatus is the account status stored on a user record.
type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
)

// Skill levels offered at sign-up.
const (
	SkillLevelNew        = "I'm new, where's the kitchen?"
	SkillLevelGettingIt  = "I think I've got the hang of this"
	SkillLevelBringIt    = "Bring it on!"
	SkillLevelPrizeMoney = "I'm just here for the prize money"
)

// SkillLevels lists the accepted skill level labels in display order.
var SkillLevels = []string{
	SkillLevelNew,
	SkillLevelGettingIt,
	SkillLevelBringIt,
	SkillLevelPrizeMoney,
}

// ValidSkillLevel reports whether level is one of SkillLevels.
func ValidSkillLevel(level string) bool {
	for _, l := range SkillLevels {
		if l == level {
			return true
		}
	}
	return false
}
