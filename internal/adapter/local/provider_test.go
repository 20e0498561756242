package local

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/crypto/bcrypt"

	"github.com/csbedford/picklematch/internal/domain"
	"github.com/csbedford/picklematch/internal/repository"
	"github.com/csbedford/picklematch/internal/tokens"
	"github.com/csbedford/picklematch/tests/helpers"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestIssuer(ttl time.Duration) *tokens.JWTIssuer {
	return tokens.NewJWTIssuer(tokens.JWTConfig{
		Secret:   "this-is-a-valid-session-token-secret-32-chars-long",
		Issuer:   "picklematch",
		Audience: "picklematch-app",
		TTL:      ttl,
	})
}

func newTestProvider(t *testing.T, store repository.Store, ttl time.Duration) *Provider {
	t.Helper()
	p := NewProvider(store, newTestIssuer(ttl), slog.New(slog.DiscardHandler))
	p.bcryptCost = bcrypt.MinCost
	t.Cleanup(p.Close)
	return p
}

type sessionLog struct {
	mu  sync.Mutex
	got []*domain.Session
}

func (l *sessionLog) add(s *domain.Session) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.got = append(l.got, s)
}

func (l *sessionLog) all() []*domain.Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*domain.Session(nil), l.got...)
}

func validSignUp() SignUpRequest {
	return SignUpRequest{
		Name:       "Dink Master",
		Email:      "dink@picklematch.app",
		Password:   "kitchen-line",
		SkillLevel: domain.SkillLevelNew,
	}
}

func TestSignUpCreatesPlayerAndPushesSession(t *testing.T) {
	ctx := context.Background()
	store := helpers.NewTestSQLiteStore(t)
	p := newTestProvider(t, store, time.Hour)

	log := &sessionLog{}
	sub := p.Subscribe(log.add)
	defer sub.Unsubscribe()

	sess, err := p.SignUp(ctx, validSignUp())
	require.NoError(t, err)
	require.True(t, sess.HasUser())

	profile, err := store.LookupUserRecord(ctx, sess.UserID)
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, domain.UserRolePlayer, profile.Role)
	assert.Equal(t, domain.UserStatusActive, profile.Status)
	assert.False(t, profile.Verified)
	assert.Equal(t, domain.SkillLevelNew, profile.SkillLevel)

	require.Eventually(t, func() bool { return len(log.all()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, sess.ID, log.all()[0].ID)
}

func TestSignUpValidation(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t, helpers.NewTestSQLiteStore(t), time.Hour)

	cases := map[string]func(*SignUpRequest){
		"missing name":  func(r *SignUpRequest) { r.Name = "  " },
		"bad email":     func(r *SignUpRequest) { r.Email = "not-an-email" },
		"short pass":    func(r *SignUpRequest) { r.Password = "short" },
		"unknown skill": func(r *SignUpRequest) { r.SkillLevel = "Beginner" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := validSignUp()
			mutate(&req)
			_, err := p.SignUp(ctx, req)
			assert.True(t, errors.Is(err, domain.ErrInvalidSignUp), "got %v", err)
		})
	}

	_, err := p.SignUp(ctx, validSignUp())
	require.NoError(t, err)
	_, err = p.SignUp(ctx, validSignUp())
	assert.True(t, errors.Is(err, domain.ErrEmailTaken))
}

func TestSeedAndSignIn(t *testing.T) {
	ctx := context.Background()
	store := helpers.NewTestSQLiteStore(t)
	p := newTestProvider(t, store, time.Hour)

	admin := AdminSeed{Email: "admin@picklematch.com", Password: "super-secret"}
	require.NoError(t, p.Seed(ctx, admin))
	require.NoError(t, p.Seed(ctx, admin))

	_, err := p.SignIn(ctx, admin.Email, "wrong-password")
	assert.True(t, errors.Is(err, domain.ErrInvalidCredentials))

	_, err = p.SignIn(ctx, "nobody@picklematch.com", "whatever")
	assert.True(t, errors.Is(err, domain.ErrInvalidCredentials))

	sess, err := p.SignIn(ctx, admin.Email, admin.Password)
	require.NoError(t, err)

	profile, err := store.GetUser(ctx, sess.UserID)
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, "System Admin", profile.Name)
	assert.Equal(t, domain.UserRoleAdmin, profile.Role)
	assert.True(t, profile.Verified)
}

func TestRefreshAndSignOut(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t, helpers.NewTestSQLiteStore(t), time.Hour)

	_, err := p.Refresh(ctx)
	assert.True(t, errors.Is(err, domain.ErrNotSignedIn))

	log := &sessionLog{}
	sub := p.Subscribe(log.add)
	defer sub.Unsubscribe()

	first, err := p.SignUp(ctx, validSignUp())
	require.NoError(t, err)
	second, err := p.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.UserID, second.UserID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, second.ID, p.Current().ID)

	require.NoError(t, p.SignOut(ctx))
	require.NoError(t, p.SignOut(ctx))
	assert.Nil(t, p.Current())

	require.Eventually(t, func() bool { return len(log.all()) == 3 }, time.Second, 5*time.Millisecond)
	got := log.all()
	assert.Equal(t, first.ID, got[0].ID)
	assert.Equal(t, second.ID, got[1].ID)
	assert.Nil(t, got[2])
}

func TestRestoreSessionAcrossRestart(t *testing.T) {
	ctx := context.Background()
	store := helpers.NewTestSQLiteStore(t)

	p := newTestProvider(t, store, time.Hour)
	restored, err := p.RestoreSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, restored)

	sess, err := p.SignUp(ctx, validSignUp())
	require.NoError(t, err)
	p.Close()

	again := newTestProvider(t, store, time.Hour)
	restored, err = again.RestoreSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, restored)
	assert.Equal(t, sess.ID, restored.ID)
	assert.Equal(t, sess.UserID, restored.UserID)
	assert.Equal(t, sess.ID, again.Current().ID)

	require.NoError(t, again.SignOut(ctx))
	restored, err = newTestProvider(t, store, time.Hour).RestoreSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, restored)
}

func TestRestoreDiscardsExpiredSession(t *testing.T) {
	ctx := context.Background()
	store := helpers.NewTestSQLiteStore(t)

	p := newTestProvider(t, store, -time.Minute)
	_, err := p.SignUp(ctx, validSignUp())
	require.NoError(t, err)

	restored, err := p.RestoreSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, restored)

	stored, err := store.LoadDeviceSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestUnsubscribeStopsNotifications(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t, helpers.NewTestSQLiteStore(t), time.Hour)

	log := &sessionLog{}
	sub := p.Subscribe(log.add)
	sub.Unsubscribe()
	sub.Unsubscribe()

	_, err := p.SignUp(ctx, validSignUp())
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, log.all())
}

func TestRestoreDiscardsSessionSignedWithOldSecret(t *testing.T) {
	ctx := context.Background()
	store := helpers.NewTestSQLiteStore(t)

	p := newTestProvider(t, store, time.Hour)
	_, err := p.SignUp(ctx, validSignUp())
	require.NoError(t, err)
	p.Close()

	rotated := NewProvider(store, tokens.NewJWTIssuer(tokens.JWTConfig{
		Secret:   "a-rotated-session-token-secret-that-is-32-chars",
		Issuer:   "picklematch",
		Audience: "picklematch-app",
		TTL:      time.Hour,
	}), slog.New(slog.DiscardHandler))
	t.Cleanup(rotated.Close)

	restored, err := rotated.RestoreSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, restored)
	assert.Nil(t, rotated.Current())

	stored, err := store.LoadDeviceSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestRefreshKeepsEmailClaim(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t, helpers.NewTestSQLiteStore(t), time.Hour)

	_, err := p.SignUp(ctx, validSignUp())
	require.NoError(t, err)
	refreshed, err := p.Refresh(ctx)
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(refreshed.AccessToken, claims)
	require.NoError(t, err)
	assert.Equal(t, validSignUp().Email, claims["email"])
}

func TestSetUserVerified(t *testing.T) {
	ctx := context.Background()
	store := helpers.NewTestSQLiteStore(t)
	p := newTestProvider(t, store, time.Hour)

	admin := AdminSeed{Email: "admin@picklematch.com", Password: "super-secret"}
	require.NoError(t, p.Seed(ctx, admin))

	player, err := p.SignUp(ctx, validSignUp())
	require.NoError(t, err)
	assert.True(t, errors.Is(p.SetUserVerified(ctx, player.UserID, true), domain.ErrForbidden))

	require.NoError(t, p.SignOut(ctx))
	assert.True(t, errors.Is(p.SetUserVerified(ctx, player.UserID, true), domain.ErrNotSignedIn))

	_, err = p.SignIn(ctx, admin.Email, admin.Password)
	require.NoError(t, err)
	require.NoError(t, p.SetUserVerified(ctx, player.UserID, true))

	profile, err := store.GetUser(ctx, player.UserID)
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.True(t, profile.Verified)

	assert.True(t, errors.Is(p.SetUserVerified(ctx, "missing-user", true), domain.ErrUserNotFound))
}

func TestSetUserVerifiedOnSelfPushesSessionAgain(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t, helpers.NewTestSQLiteStore(t), time.Hour)

	admin := AdminSeed{Email: "admin@picklematch.com", Password: "super-secret"}
	require.NoError(t, p.Seed(ctx, admin))

	log := &sessionLog{}
	sub := p.Subscribe(log.add)
	defer sub.Unsubscribe()

	sess, err := p.SignIn(ctx, admin.Email, admin.Password)
	require.NoError(t, err)
	require.NoError(t, p.SetUserVerified(ctx, sess.UserID, false))

	require.Eventually(t, func() bool { return len(log.all()) == 2 }, time.Second, 5*time.Millisecond)
	for _, got := range log.all() {
		assert.Equal(t, sess.ID, got.ID)
	}
}
