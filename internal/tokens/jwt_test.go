package tokens

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csbedford/picklematch/internal/domain"
)

const testSecret = "this-is-a-valid-session-token-secret-32-chars-long"

func newTestIssuer() *JWTIssuer {
	return NewJWTIssuer(JWTConfig{
		Secret:   testSecret,
		Issuer:   "picklematch",
		Audience: "picklematch-app",
		TTL:      time.Hour,
	})
}

func TestJWTIssuer_IssueAndParse(t *testing.T) {
	issuer := newTestIssuer()

	sess, err := issuer.Issue("user-123", "dinker@picklematch.app", "session-abc")
	require.NoError(t, err)
	assert.Equal(t, "user-123", sess.UserID)
	assert.Equal(t, "session-abc", sess.ID)
	assert.NotEmpty(t, sess.AccessToken)
	assert.Equal(t, time.Hour, sess.ExpiresAt.Sub(sess.IssuedAt))

	parsed, err := issuer.Parse(sess.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, sess.UserID, parsed.UserID)
	assert.Equal(t, sess.ID, parsed.ID)
	assert.True(t, sess.ExpiresAt.Equal(parsed.ExpiresAt))

	raw, err := jwt.ParseWithClaims(sess.AccessToken, &sessionClaims{}, func(*jwt.Token) (any, error) {
		return []byte(testSecret), nil
	})
	require.NoError(t, err)
	claims := raw.Claims.(*sessionClaims)
	assert.Equal(t, "dinker@picklematch.app", claims.Email)
	assert.Equal(t, "picklematch", claims.Issuer)
}

func TestJWTIssuer_ParseExpired(t *testing.T) {
	issuer := newTestIssuer()
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	sess, err := issuer.Issue("user-123", "", "session-abc")
	require.NoError(t, err)

	issuer.now = time.Now
	_, err = issuer.Parse(sess.AccessToken)
	assert.True(t, errors.Is(err, domain.ErrSessionExpired))
}

func TestJWTIssuer_ParseRejectsForeignTokens(t *testing.T) {
	issuer := newTestIssuer()
	other := NewJWTIssuer(JWTConfig{Secret: "another-secret-that-is-also-long-enough", Issuer: "picklematch", Audience: "picklematch-app", TTL: time.Hour})

	sess, err := other.Issue("user-123", "", "session-abc")
	require.NoError(t, err)

	_, err = issuer.Parse(sess.AccessToken)
	assert.True(t, errors.Is(err, domain.ErrInvalidToken))

	_, err = issuer.Parse("not-a-token")
	assert.True(t, errors.Is(err, domain.ErrInvalidToken))
}

func TestJWTIssuer_IssueRequiresIDs(t *testing.T) {
	_, err := newTestIssuer().Issue("", "", "session-abc")
	assert.True(t, errors.Is(err, domain.ErrInvalidToken))
}
