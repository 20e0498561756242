// Package repository persists user records and the device session.
package repository

import (
	"context"

	"github.com/csbedford/picklematch/internal/domain"
)

// UserRecord is a stored user with its credential hash.
type UserRecord struct {
	domain.Profile
	PasswordHash string
}

// Store defines the interface for data persistence.
type Store interface {
	// User operations
	CreateUser(ctx context.Context, user *UserRecord) error
	SeedUser(ctx context.Context, user *UserRecord) error
	GetUser(ctx context.Context, userID string) (*domain.Profile, error)
	LookupUserRecord(ctx context.Context, userID string) (*domain.Profile, error)
	GetUserByEmail(ctx context.Context, email string) (*UserRecord, error)
	UpdateUserVerified(ctx context.Context, userID string, verified bool) error

	// Device session operations
	SaveDeviceSession(ctx context.Context, session *domain.Session) error
	LoadDeviceSession(ctx context.Context) (*domain.Session, error)
	ClearDeviceSession(ctx context.Context) error

	// Lifecycle
	Close() error
}
