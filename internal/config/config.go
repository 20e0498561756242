// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Identity provider names.
const (
	ProviderLocal  = "local"
	ProviderKratos = "kratos"
)

const minSecretLength = 32

// Config holds the service configuration.
type Config struct {
	// Server settings
	HTTPPort int `env:"HTTP_PORT" envDefault:"8080"`

	// Identity settings
	IdentityProvider string        `env:"IDENTITY_PROVIDER" envDefault:"local"`
	LookupTimeout    time.Duration `env:"PROFILE_LOOKUP_TIMEOUT" envDefault:"10s"`

	// Storage
	DatabaseDSN string `env:"DATABASE_DSN" envDefault:"picklematch.db"`

	// Local provider
	JWTSecret     string        `env:"JWT_SECRET"`
	JWTSecretFile string        `env:"JWT_SECRET_FILE,file"`
	JWTIssuer     string        `env:"JWT_ISSUER" envDefault:"picklematch"`
	JWTAudience   string        `env:"JWT_AUDIENCE" envDefault:"picklematch-app"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	AdminEmail        string `env:"ADMIN_EMAIL" envDefault:"admin@picklematch.com"`
	AdminPassword     string `env:"ADMIN_PASSWORD"`
	AdminPasswordFile string `env:"ADMIN_PASSWORD_FILE,file"`

	// Kratos provider
	KratosURL              string        `env:"KRATOS_URL" envDefault:"http://kratos:4433"`
	KratosTimeout          time.Duration `env:"KRATOS_TIMEOUT" envDefault:"3s"`
	KratosSessionToken     string        `env:"KRATOS_SESSION_TOKEN"`
	KratosSessionTokenFile string        `env:"KRATOS_SESSION_TOKEN_FILE,file"`
	WebhookSecret          string        `env:"WEBHOOK_SECRET"`
	WebhookSecretFile      string        `env:"WEBHOOK_SECRET_FILE,file"`

	// WebSocket settings
	PingInterval   time.Duration `env:"WS_PING_INTERVAL" envDefault:"30s"`
	WriteTimeout   time.Duration `env:"WS_WRITE_TIMEOUT" envDefault:"10s"`
	ReadTimeout    time.Duration `env:"WS_READ_TIMEOUT" envDefault:"60s"`
	MaxMessageSize int64         `env:"WS_MAX_MESSAGE_SIZE" envDefault:"65536"`

	// Observability
	LogLevel         string  `env:"LOG_LEVEL" envDefault:"info"`
	ServiceName      string  `env:"OTEL_SERVICE_NAME" envDefault:"picklematch"`
	OTLPEndpoint     string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	TraceSampleRatio float64 `env:"OTEL_TRACES_SAMPLER_ARG" envDefault:"1.0"`
}

// Load reads configuration from environment variables and validates it.
// A secret X may also be given as a file path in X_FILE; X wins when both are set.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.resolveSecrets()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) resolveSecrets() {
	c.JWTSecret = pick(c.JWTSecret, c.JWTSecretFile)
	c.AdminPassword = pick(c.AdminPassword, c.AdminPasswordFile)
	c.KratosSessionToken = pick(c.KratosSessionToken, c.KratosSessionTokenFile)
	c.WebhookSecret = pick(c.WebhookSecret, c.WebhookSecretFile)
}

func pick(value, fromFile string) string {
	if value != "" {
		return value
	}
	return strings.TrimSpace(fromFile)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []error

	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.HTTPPort))
	}
	if c.LookupTimeout <= 0 {
		errs = append(errs, errors.New("PROFILE_LOOKUP_TIMEOUT must be positive"))
	}
	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("DATABASE_DSN cannot be empty"))
	}

	switch c.IdentityProvider {
	case ProviderLocal:
		if len(c.JWTSecret) < minSecretLength {
			errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d characters", minSecretLength))
		}
		if c.SessionTTL <= 0 {
			errs = append(errs, errors.New("SESSION_TTL must be positive"))
		}
	case ProviderKratos:
		if c.KratosURL == "" {
			errs = append(errs, errors.New("KRATOS_URL cannot be empty"))
		}
		if c.KratosTimeout <= 0 {
			errs = append(errs, errors.New("KRATOS_TIMEOUT must be positive"))
		}
		if len(c.WebhookSecret) < minSecretLength {
			errs = append(errs, fmt.Errorf("WEBHOOK_SECRET must be at least %d characters", minSecretLength))
		}
	default:
		errs = append(errs, fmt.Errorf("IDENTITY_PROVIDER must be %q or %q, got %q", ProviderLocal, ProviderKratos, c.IdentityProvider))
	}

	if c.PingInterval <= 0 || c.WriteTimeout <= 0 || c.ReadTimeout <= 0 {
		errs = append(errs, errors.New("websocket intervals must be positive"))
	}
	if c.PingInterval >= c.ReadTimeout {
		errs = append(errs, errors.New("WS_PING_INTERVAL must be shorter than WS_READ_TIMEOUT"))
	}
	if c.MaxMessageSize <= 0 {
		errs = append(errs, errors.New("WS_MAX_MESSAGE_SIZE must be positive"))
	}
	if c.TraceSampleRatio < 0 || c.TraceSampleRatio > 1 {
		errs = append(errs, errors.New("OTEL_TRACES_SAMPLER_ARG must be between 0 and 1"))
	}

	return errors.Join(errs...)
}
