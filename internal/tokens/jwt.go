// Package tokens issues and verifies the HS256 session tokens of the local
// identity provider.
package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/csbedford/picklematch/internal/domain"
)

// JWTConfig holds JWT generation configuration.
type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience string
	TTL      time.Duration
}

// sessionClaims are the claims carried by a session token.
type sessionClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// JWTIssuer issues and parses session tokens.
type JWTIssuer struct {
	cfg JWTConfig
	now func() time.Time
}

// NewJWTIssuer creates a new JWT issuer.
func NewJWTIssuer(cfg JWTConfig) *JWTIssuer {
	return &JWTIssuer{cfg: cfg, now: time.Now}
}

// Issue signs a new token for userID and returns the session it represents.
// The session id is the token's jti.
func (j *JWTIssuer) Issue(userID, email, sessionID string) (*domain.Session, error) {
	if userID == "" || sessionID == "" {
		return nil, fmt.Errorf("%w: empty subject or session id", domain.ErrInvalidToken)
	}
	now := j.now().UTC().Truncate(time.Second)
	claims := sessionClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Issuer:    j.cfg.Issuer,
			Audience:  jwt.ClaimStrings{j.cfg.Audience},
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.cfg.TTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(j.cfg.Secret))
	if err != nil {
		return nil, fmt.Errorf("sign session token: %w", err)
	}
	return &domain.Session{
		ID:          sessionID,
		UserID:      userID,
		AccessToken: signed,
		IssuedAt:    now,
		ExpiresAt:   now.Add(j.cfg.TTL),
	}, nil
}

// Parse verifies raw and returns the session it carries. Expired tokens yield
// domain.ErrSessionExpired, anything else that fails verification yields
// domain.ErrInvalidToken.
func (j *JWTIssuer) Parse(raw string) (*domain.Session, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(j.now),
		jwt.WithExpirationRequired(),
	}
	if j.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.cfg.Issuer))
	}
	if j.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(j.cfg.Audience))
	}

	var claims sessionClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return []byte(j.cfg.Secret), nil
	}, opts...)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, fmt.Errorf("%w: %w", domain.ErrSessionExpired, err)
	case err != nil:
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidToken, err)
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, fmt.Errorf("%w: missing sub or jti", domain.ErrInvalidToken)
	}

	sess := &domain.Session{
		ID:          claims.ID,
		UserID:      claims.Subject,
		AccessToken: raw,
	}
	if claims.IssuedAt != nil {
		sess.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	if claims.ExpiresAt != nil {
		sess.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	return sess, nil
}
