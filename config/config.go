// Package config loads service configuration from the environment, with
// an optional .env file for local development.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every runtime knob. Durations use Go syntax ("15m", "168h").
type Config struct {
	// Addr is the listen address for the HTTP server.
	Addr string `env:"GATEHOUSE_ADDR" envDefault:":8080"`

	// Production forces Secure cookies regardless of the request scheme.
	Production bool `env:"GATEHOUSE_PRODUCTION" envDefault:"false"`

	// AdminPasswordHash is the PBKDF2 hash of the admin password in
	// salt:key hex form, as produced by the hash-password command. The
	// server starts without it but every login fails closed.
	AdminPasswordHash string `env:"GATEHOUSE_ADMIN_PASSWORD_HASH"`

	SessionTTL time.Duration `env:"GATEHOUSE_SESSION_TTL" envDefault:"168h"`
	CSRFTTL    time.Duration `env:"GATEHOUSE_CSRF_TTL" envDefault:"1h"`

	RateLimitMaxAttempts int           `env:"GATEHOUSE_RATE_LIMIT_MAX_ATTEMPTS" envDefault:"5"`
	RateLimitWindow      time.Duration `env:"GATEHOUSE_RATE_LIMIT_WINDOW" envDefault:"15m"`
	RateLimitBlock       time.Duration `env:"GATEHOUSE_RATE_LIMIT_BLOCK" envDefault:"1h"`

	// SweepInterval drives the background cleanup of all three stores.
	SweepInterval time.Duration `env:"GATEHOUSE_SWEEP_INTERVAL" envDefault:"5m"`

	// FailureDelay is the artificial pause after a failed login.
	FailureDelay time.Duration `env:"GATEHOUSE_FAILURE_DELAY" envDefault:"1s"`

	// AuditWebhookURL, when set, forwards security events to an external
	// HTTP endpoint. AuditWebhookAuth is an optional "Header: Value" pair.
	AuditWebhookURL  string `env:"GATEHOUSE_AUDIT_WEBHOOK_URL"`
	AuditWebhookAuth string `env:"GATEHOUSE_AUDIT_WEBHOOK_AUTH"`

	// AuditArchivePath, when set, appends security events to a local
	// BBolt database.
	AuditArchivePath string `env:"GATEHOUSE_AUDIT_ARCHIVE_PATH"`
}

// Load reads a .env file if present, then parses the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parsing environment: %w", err)
	}
	return cfg, nil
}
