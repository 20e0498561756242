package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/csbedford/picklematch/internal/domain"
)

// deviceSlot is the key of the single persisted session row.
const deviceSlot = "current"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE COLLATE NOCASE,
			name TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'player',
			skill_level TEXT,
			bio TEXT,
			verified INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'active',
			password_hash TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS device_sessions (
			slot TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			token TEXT NOT NULL,
			issued_at DATETIME NOT NULL,
			expires_at DATETIME NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateUser inserts a new user. A duplicate email yields domain.ErrEmailTaken.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *UserRecord) error {
	err := s.insertUser(ctx, `INSERT INTO users`, user)
	if isUniqueViolation(err) {
		return domain.ErrEmailTaken
	}
	return err
}

// SeedUser inserts user unless a user with the same id or email exists.
func (s *SQLiteStore) SeedUser(ctx context.Context, user *UserRecord) error {
	return s.insertUser(ctx, `INSERT OR IGNORE INTO users`, user)
}

func (s *SQLiteStore) insertUser(ctx context.Context, verb string, user *UserRecord) error {
	_, err := s.db.ExecContext(ctx,
		verb+` (id, email, name, role, skill_level, bio, verified, status, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.Name, string(user.Role), nullString(user.SkillLevel), nullString(user.Bio),
		user.Verified, string(user.Status), nullString(user.PasswordHash), user.CreatedAt)
	return err
}

// GetUser retrieves at most one user by primary key. No match returns nil, nil.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.Profile, error) {
	rec, err := s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, email, name, role, skill_level, bio, verified, status, password_hash, created_at
		FROM users WHERE id = ? LIMIT 1`, userID))
	if rec == nil || err != nil {
		return nil, err
	}
	return &rec.Profile, nil
}

// LookupUserRecord resolves a profile for the sync core. It is GetUser under
// the name identity.RecordLookup expects.
func (s *SQLiteStore) LookupUserRecord(ctx context.Context, userID string) (*domain.Profile, error) {
	return s.GetUser(ctx, userID)
}

// GetUserByEmail retrieves a user and its credential hash by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*UserRecord, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, email, name, role, skill_level, bio, verified, status, password_hash, created_at
		FROM users WHERE email = ? LIMIT 1`, strings.TrimSpace(email)))
}

// UpdateUserVerified sets the verification flag of a user.
func (s *SQLiteStore) UpdateUserVerified(ctx context.Context, userID string, verified bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET verified = ? WHERE id = ?`, verified, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("user %s: %w", userID, domain.ErrUserNotFound)
	}
	return nil
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*UserRecord, error) {
	var rec UserRecord
	var role, status string
	var skill, bio, hash sql.NullString
	err := row.Scan(&rec.ID, &rec.Email, &rec.Name, &role, &skill, &bio,
		&rec.Verified, &status, &hash, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.Role = domain.UserRole(role)
	rec.Status = domain.UserStatus(status)
	rec.SkillLevel = skill.String
	rec.Bio = bio.String
	rec.PasswordHash = hash.String
	return &rec, nil
}

// SaveDeviceSession replaces the persisted session.
func (s *SQLiteStore) SaveDeviceSession(ctx context.Context, session *domain.Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO device_sessions (slot, session_id, user_id, token, issued_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET
			session_id = excluded.session_id,
			user_id = excluded.user_id,
			token = excluded.token,
			issued_at = excluded.issued_at,
			expires_at = excluded.expires_at`,
		deviceSlot, session.ID, session.UserID, session.AccessToken, session.IssuedAt, session.ExpiresAt)
	return err
}

// LoadDeviceSession returns the persisted session, or nil if none is stored.
func (s *SQLiteStore) LoadDeviceSession(ctx context.Context) (*domain.Session, error) {
	var sess domain.Session
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, user_id, token, issued_at, expires_at FROM device_sessions WHERE slot = ?`,
		deviceSlot).Scan(&sess.ID, &sess.UserID, &sess.AccessToken, &sess.IssuedAt, &sess.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// ClearDeviceSession removes the persisted session.
func (s *SQLiteStore) ClearDeviceSession(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM device_sessions WHERE slot = ?`, deviceSlot)
	return err
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
