package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "this-is-a-valid-secret-that-is-at-least-32-chars"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, ProviderLocal, cfg.IdentityProvider)
	assert.Equal(t, 10*time.Second, cfg.LookupTimeout)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, "admin@picklematch.com", cfg.AdminEmail)
	assert.Equal(t, 30*time.Second, cfg.PingInterval)
	assert.Equal(t, int64(65536), cfg.MaxMessageSize)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.OTLPEndpoint)
}

func TestLoadSecretsFromFiles(t *testing.T) {
	dir := t.TempDir()
	secretPath := filepath.Join(dir, "jwt")
	require.NoError(t, os.WriteFile(secretPath, []byte(testSecret+"\n"), 0o600))
	passwordPath := filepath.Join(dir, "admin")
	require.NoError(t, os.WriteFile(passwordPath, []byte("from-file"), 0o600))

	t.Setenv("JWT_SECRET_FILE", secretPath)
	t.Setenv("ADMIN_PASSWORD_FILE", passwordPath)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, testSecret, cfg.JWTSecret)
	assert.Equal(t, "from-file", cfg.AdminPassword)
}

func TestDirectSecretWinsOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jwt")
	require.NoError(t, os.WriteFile(path, []byte("file-secret-that-is-also-long-enough-32"), 0o600))
	t.Setenv("JWT_SECRET_FILE", path)
	t.Setenv("JWT_SECRET", testSecret)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, testSecret, cfg.JWTSecret)
}

func TestLoadKratos(t *testing.T) {
	t.Setenv("IDENTITY_PROVIDER", "kratos")
	t.Setenv("KRATOS_URL", "http://localhost:4433")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WEBHOOK_SECRET")

	t.Setenv("WEBHOOK_SECRET", testSecret)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ProviderKratos, cfg.IdentityProvider)
	assert.Equal(t, 3*time.Second, cfg.KratosTimeout)
}

func TestLoadParseError(t *testing.T) {
	t.Setenv("HTTP_PORT", "not-an-int")

	_, err := Load()
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "parse env:"), err.Error())
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Config{
		HTTPPort:         0,
		IdentityProvider: "firebase",
		PingInterval:     time.Minute,
		WriteTimeout:     time.Second,
		ReadTimeout:      time.Second,
		TraceSampleRatio: 2,
	}

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "HTTP_PORT")
	assert.Contains(t, msg, "IDENTITY_PROVIDER")
	assert.Contains(t, msg, "WS_PING_INTERVAL")
	assert.Contains(t, msg, "OTEL_TRACES_SAMPLER_ARG")
	assert.Contains(t, msg, "DATABASE_DSN")
}
