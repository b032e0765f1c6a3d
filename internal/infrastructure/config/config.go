package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

var (
	ErrMissingJWTSecret   = errors.New("AUTH_ENABLED requires JWT_SECRET")
	ErrInvalidLogFormat   = errors.New("LOG_FORMAT must be json or console")
	ErrInvalidRateLimit   = errors.New("RATE_LIMIT_RPS must not be negative")
	ErrInvalidRateBurst   = errors.New("RATE_LIMIT_BURST must be positive when rate limiting is enabled")
	ErrInvalidIdempotency = errors.New("IDEMPOTENCY_TTL must be positive")
)

// Config holds all application configuration.
type Config struct {
	// Redis backs the idempotency cache; empty disables it.
	RedisURL string `env:"REDIS_URL" envDefault:""`

	// HTTP Server
	HTTPPort            string        `env:"HTTP_PORT"             envDefault:"8080"`
	HTTPReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT"     envDefault:"30s"`
	HTTPWriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT"    envDefault:"30s"`
	HTTPIdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT"     envDefault:"60s"`
	HTTPShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Idempotency
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`

	// Rate limiting per client IP; 0 disables it.
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS"   envDefault:"0"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"20"`

	// Metrics
	MetricsEnabled bool `env:"METRICS_ENABLED" envDefault:"true"`

	// Authentication (optional - leave empty to disable)
	JWTSecret     string        `env:"JWT_SECRET"       envDefault:""`
	JWTExpiration time.Duration `env:"JWT_EXPIRATION"   envDefault:"24h"`
	AuthEnabled   bool          `env:"AUTH_ENABLED"     envDefault:"false"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks settings that depend on each other.
func (c *Config) Validate() error {
	if c.AuthEnabled && c.JWTSecret == "" {
		return ErrMissingJWTSecret
	}

	if c.LogFormat != "json" && c.LogFormat != "console" {
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.LogFormat)
	}

	if c.RateLimitRPS < 0 {
		return ErrInvalidRateLimit
	}

	if c.RateLimitRPS > 0 && c.RateLimitBurst <= 0 {
		return ErrInvalidRateBurst
	}

	if c.IdempotencyTTL <= 0 {
		return ErrInvalidIdempotency
	}

	return nil
}

// RateLimitEnabled reports whether requests should be rate limited.
func (c *Config) RateLimitEnabled() bool {
	return c.RateLimitRPS > 0
}

// IdempotencyEnabled reports whether a Redis idempotency cache is configured.
func (c *Config) IdempotencyEnabled() bool {
	return c.RedisURL != ""
}
