// config.go

// Environment variable loading and validation.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Auth modes select the Access Guard implementation at construction time.
const (
	AuthModeJWT    = "jwt"
	AuthModeStatic = "static"
)

// minSecretLen is the shortest HS256 signing key accepted (256 bits).
const minSecretLen = 32

// Config holds all env configuration vars for mindtrack.
type Config struct {
	DatabaseURL string `env:"DATABASE_URL"`
	// RedisURL is optional; empty means in-memory revocations and no login throttling.
	RedisURL string `env:"REDIS_URL"`
	Port     string `env:"PORT" envDefault:"5000"`

	// LogLevelName is the raw LOG_LEVEL value; LogLevel is derived from it.
	LogLevelName string `env:"LOG_LEVEL" envDefault:"info"`
	LogLevel     slog.Level

	// Token signing and lifetimes. Defaults: 1h access, 720h (30d) refresh.
	JWTSecret       string        `env:"JWT_SECRET_KEY"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"1h"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"720h"`

	// AuthMode picks the guard: "jwt" (default) or "static" (fixed identity, local testing only).
	AuthMode     string `env:"AUTH_MODE" envDefault:"jwt"`
	StaticUserID int64  `env:"AUTH_STATIC_USER_ID"`

	// Rate limit policy for login attempts per email.
	// Defaults: max=10, window=10m, lockout=15m. Max 0 disables throttling.
	RateLoginEmailMax     int           `env:"RATE_LOGIN_EMAIL_MAX" envDefault:"10"`
	RateLoginEmailWindow  time.Duration `env:"RATE_LOGIN_EMAIL_WINDOW" envDefault:"10m"`
	RateLoginEmailLockout time.Duration `env:"RATE_LOGIN_EMAIL_LOCKOUT" envDefault:"15m"`

	// How often the in-memory revocation set drops entries for expired tokens.
	RevocationSweepInterval time.Duration `env:"REVOCATION_SWEEP_INTERVAL" envDefault:"10m"`
}

// LoadConfig reads environment variables and returns a validated Config.
// Returns an error if DATABASE_URL is missing or the auth settings are inconsistent.
func LoadConfig() (*Config, error) {
	return load(env.Options{})
}

// load parses with the given options; tests pass an explicit Environment map.
func load(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parsing env: %w", err)
	}

	cfg.LogLevel = parseLogLevel(cfg.LogLevelName)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field rules env tags cannot express.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}

	switch c.AuthMode {
	case AuthModeJWT:
		if len(c.JWTSecret) < minSecretLen {
			return fmt.Errorf("JWT_SECRET_KEY must be at least %d bytes", minSecretLen)
		}
	case AuthModeStatic:
		if c.StaticUserID <= 0 {
			return errors.New("AUTH_STATIC_USER_ID is required when AUTH_MODE=static")
		}
	default:
		return fmt.Errorf("AUTH_MODE must be %q or %q, got %q", AuthModeJWT, AuthModeStatic, c.AuthMode)
	}

	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	if c.RefreshTokenTTL < c.AccessTokenTTL {
		return errors.New("REFRESH_TOKEN_TTL must not be shorter than ACCESS_TOKEN_TTL")
	}
	if c.RateLoginEmailMax < 0 {
		return errors.New("RATE_LOGIN_EMAIL_MAX must not be negative")
	}
	if c.RateLoginEmailMax > 0 && (c.RateLoginEmailWindow <= 0 || c.RateLoginEmailLockout <= 0) {
		return errors.New("RATE_LOGIN_EMAIL_WINDOW and RATE_LOGIN_EMAIL_LOCKOUT must be positive")
	}
	if c.RevocationSweepInterval <= 0 {
		return errors.New("REVOCATION_SWEEP_INTERVAL must be positive")
	}
	return nil
}

// parseLogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func parseLogLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
