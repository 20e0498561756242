// Package local implements an identity provider backed by the local SQLite
// store. It mirrors the app's development backend: email/password accounts,
// a seeded admin, and one device session that survives restarts.
package local

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/csbedford/picklematch/internal/domain"
	"github.com/csbedford/picklematch/internal/eventbus"
	"github.com/csbedford/picklematch/internal/identity"
	"github.com/csbedford/picklematch/internal/repository"
	"github.com/csbedford/picklematch/internal/tokens"
)

const minPasswordLength = 8

// SignUpRequest carries the fields collected by the sign-up form.
type SignUpRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	SkillLevel string `json:"skill_level"`
	Bio        string `json:"bio,omitempty"`
}

// AdminSeed describes the administrator account created on first start.
type AdminSeed struct {
	Email    string
	Password string
}

// Provider is a local identity.SessionProvider with account operations.
type Provider struct {
	store      repository.Store
	issuer     *tokens.JWTIssuer
	logger     *slog.Logger
	bcryptCost int

	bus     *eventbus.Bus[*domain.Session]
	stopBus context.CancelFunc
	closed  sync.Once

	// mu serializes session mutations so pushes are published in the order
	// they were applied.
	mu      sync.Mutex
	current *domain.Session
}

var _ identity.SessionProvider = (*Provider)(nil)

// NewProvider creates a provider and starts its notification dispatcher.
// Close must be called to stop it.
func NewProvider(store repository.Store, issuer *tokens.JWTIssuer, logger *slog.Logger) *Provider {
	if store == nil || issuer == nil {
		panic("local: NewProvider requires a store and a token issuer")
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Provider{
		store:      store,
		issuer:     issuer,
		logger:     logger,
		bcryptCost: bcrypt.DefaultCost,
		bus:        eventbus.New[*domain.Session](),
		stopBus:    cancel,
	}
	go p.bus.Run(ctx)
	return p
}

// Close stops notification delivery. Pending notifications are dropped.
func (p *Provider) Close() {
	p.closed.Do(func() {
		p.stopBus()
		<-p.bus.Done()
	})
}

// Seed creates the admin account unless it already exists.
func (p *Provider) Seed(ctx context.Context, admin AdminSeed) error {
	if admin.Email == "" || admin.Password == "" {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(admin.Password), p.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	return p.store.SeedUser(ctx, &repository.UserRecord{
		Profile: domain.Profile{
			ID:         uuid.NewString(),
			Email:      admin.Email,
			Name:       "System Admin",
			Role:       domain.UserRoleAdmin,
			SkillLevel: domain.SkillLevelBringIt,
			Bio:        "System administrator",
			Verified:   true,
			Status:     domain.UserStatusActive,
			CreatedAt:  time.Now().UTC(),
		},
		PasswordHash: string(hash),
	})
}

// RestoreSession returns the session persisted on this device. A session that
// expired or no longer verifies, for example after the signing secret was
// rotated, is discarded and reported as no session.
func (p *Provider) RestoreSession(ctx context.Context) (*domain.Session, error) {
	stored, err := p.store.LoadDeviceSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load device session: %w", domain.ErrIdentityUnavailable, err)
	}
	if stored == nil {
		return nil, nil
	}

	sess, err := p.issuer.Parse(stored.AccessToken)
	switch {
	case errors.Is(err, domain.ErrSessionExpired), errors.Is(err, domain.ErrInvalidToken):
		p.logger.InfoContext(ctx, "discarding persisted session", "session_id", stored.ID, "reason", err)
		if err := p.store.ClearDeviceSession(ctx); err != nil {
			p.logger.WarnContext(ctx, "failed to clear persisted session", "error", err)
		}
		return nil, nil
	case err != nil:
		return nil, err
	}

	p.mu.Lock()
	if p.current == nil {
		p.current = sess.Clone()
	}
	p.mu.Unlock()
	return sess, nil
}

// Subscribe registers onChange for every session change.
func (p *Provider) Subscribe(onChange func(*domain.Session)) identity.Subscription {
	unsubscribe := p.bus.Subscribe(func(sess *domain.Session) {
		onChange(sess.Clone())
	})
	return identity.SubscriptionFunc(unsubscribe)
}

// Current returns the session last applied by this provider.
func (p *Provider) Current() *domain.Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current.Clone()
}

// SignIn verifies credentials and starts a new session.
func (p *Provider) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	rec, err := p.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIdentityUnavailable, err)
	}
	if rec == nil || rec.PasswordHash == "" {
		return nil, domain.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	if rec.Status != domain.UserStatusActive {
		return nil, fmt.Errorf("%w: account %s", domain.ErrAuthFailed, rec.Status)
	}
	return p.startSession(ctx, rec.ID, rec.Email)
}

// SignUp creates a player account and signs it in.
func (p *Provider) SignUp(ctx context.Context, req SignUpRequest) (*domain.Session, error) {
	if err := validateSignUp(&req); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), p.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	rec := &repository.UserRecord{
		Profile: domain.Profile{
			ID:         uuid.NewString(),
			Email:      req.Email,
			Name:       req.Name,
			Role:       domain.UserRolePlayer,
			SkillLevel: req.SkillLevel,
			Bio:        req.Bio,
			Verified:   false,
			Status:     domain.UserStatusActive,
			CreatedAt:  time.Now().UTC(),
		},
		PasswordHash: string(hash),
	}
	if err := p.store.CreateUser(ctx, rec); err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrIdentityUnavailable, err)
	}
	p.logger.InfoContext(ctx, "user signed up", "user_id", rec.ID)
	return p.startSession(ctx, rec.ID, rec.Email)
}

// Refresh replaces the current session with a newly issued one. The account
// must still exist and be active.
func (p *Provider) Refresh(ctx context.Context) (*domain.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.current.HasUser() {
		return nil, domain.ErrNotSignedIn
	}
	user, err := p.store.GetUser(ctx, p.current.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIdentityUnavailable, err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: account %s no longer exists", domain.ErrAuthFailed, p.current.UserID)
	}
	if user.Status != domain.UserStatusActive {
		return nil, fmt.Errorf("%w: account %s", domain.ErrAuthFailed, user.Status)
	}
	return p.issueLocked(ctx, user.ID, user.Email)
}

// SetUserVerified sets the verification flag of userID. The signed-in user
// must be an admin. When admins change their own record the current session
// is pushed again so its profile is reloaded.
func (p *Provider) SetUserVerified(ctx context.Context, userID string, verified bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.current.HasUser() {
		return domain.ErrNotSignedIn
	}
	actor, err := p.store.GetUser(ctx, p.current.UserID)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIdentityUnavailable, err)
	}
	if actor == nil || actor.Role != domain.UserRoleAdmin {
		return domain.ErrForbidden
	}

	if err := p.store.UpdateUserVerified(ctx, userID, verified); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return err
		}
		return fmt.Errorf("%w: %w", domain.ErrIdentityUnavailable, err)
	}
	p.logger.InfoContext(ctx, "user verification changed", "user_id", userID, "verified", verified, "admin_id", actor.ID)

	if userID == p.current.UserID {
		p.bus.Publish(p.current.Clone())
	}
	return nil
}

// SignOut ends the current session. Signing out without a session is a no-op.
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.store.ClearDeviceSession(ctx); err != nil {
		return fmt.Errorf("%w: clear device session: %w", domain.ErrIdentityUnavailable, err)
	}
	if p.current == nil {
		return nil
	}
	p.logger.InfoContext(ctx, "user signed out", "user_id", p.current.UserID)
	p.current = nil
	p.bus.Publish(nil)
	return nil
}

func (p *Provider) startSession(ctx context.Context, userID, email string) (*domain.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.issueLocked(ctx, userID, email)
}

func (p *Provider) issueLocked(ctx context.Context, userID, email string) (*domain.Session, error) {
	sess, err := p.issuer.Issue(userID, email, uuid.NewString())
	if err != nil {
		return nil, err
	}
	if err := p.store.SaveDeviceSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("%w: save device session: %w", domain.ErrIdentityUnavailable, err)
	}
	p.current = sess.Clone()
	p.bus.Publish(sess.Clone())
	return sess, nil
}

func validateSignUp(req *SignUpRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Bio = strings.TrimSpace(req.Bio)

	if req.Name == "" {
		return fmt.Errorf("%w: name is required", domain.ErrInvalidSignUp)
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return fmt.Errorf("%w: invalid email address", domain.ErrInvalidSignUp)
	}
	if len(req.Password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", domain.ErrInvalidSignUp, minPasswordLength)
	}
	if !domain.ValidSkillLevel(req.SkillLevel) {
		return fmt.Errorf("%w: unknown skill level %q", domain.ErrInvalidSignUp, req.SkillLevel)
	}
	return nil
}
