// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// knownWeakSecrets contains default/example secrets that must be rejected.
var knownWeakSecrets = []string{
	"change-me-to-32-byte-secret-key!",
	"REPLACE_WITH_YOUR_OWN_SECRET_KEY!",
}

// MinETagSecretLength is the minimum required length of the ETag secret.
const MinETagSecretLength = 32

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBPath     string `env:"OCMS_DB_PATH" envDefault:"./data/ocms-pages.db"`
	ServerHost string `env:"OCMS_SERVER_HOST" envDefault:"localhost"`
	ServerPort int    `env:"OCMS_SERVER_PORT" envDefault:"8080"`
	Env        string `env:"OCMS_ENV" envDefault:"development"`
	LogLevel   string `env:"OCMS_LOG_LEVEL" envDefault:"info"`

	// ETagSecret keys the ETag MAC. Changing it invalidates every outstanding ETag.
	ETagSecret string `env:"OCMS_ETAG_SECRET,required"`

	// Locks
	RedisURL        string        `env:"OCMS_REDIS_URL"` // Optional; locks are kept in memory without it
	LockPrefix      string        `env:"OCMS_LOCK_PREFIX" envDefault:"ocms:lock:"`
	LockTTL         time.Duration `env:"OCMS_LOCK_TTL" envDefault:"5m"`
	LockMaxTTL      time.Duration `env:"OCMS_LOCK_MAX_TTL" envDefault:"30m"`
	RequireEditLock bool          `env:"OCMS_REQUIRE_EDIT_LOCK" envDefault:"false"`

	// Scheduler
	SchedulerSpec        string        `env:"OCMS_SCHEDULER_SPEC" envDefault:"@every 30s"`
	SchedulerMaxAttempts int           `env:"OCMS_SCHEDULER_MAX_ATTEMPTS" envDefault:"5"`
	SchedulerConcurrency int           `env:"OCMS_SCHEDULER_CONCURRENCY" envDefault:"4"`
	SchedulerRate        float64       `env:"OCMS_SCHEDULER_RATE" envDefault:"10"`
	SchedulerRetryBase   time.Duration `env:"OCMS_SCHEDULER_RETRY_BASE" envDefault:"30s"`
	SchedulerRetryMax    time.Duration `env:"OCMS_SCHEDULER_RETRY_MAX" envDefault:"15m"`
	EventRetention       time.Duration `env:"OCMS_EVENT_RETENTION" envDefault:"2160h"` // 0 keeps events forever

	VersionRetention int `env:"OCMS_VERSION_RETENTION" envDefault:"50"` // Autosave versions kept per page; 0 keeps all

	// API
	APIRateLimit   float64       `env:"OCMS_API_RATE_LIMIT" envDefault:"20"` // Requests per second per tenant; 0 disables
	APIRateBurst   int           `env:"OCMS_API_RATE_BURST" envDefault:"40"`
	RequestTimeout time.Duration `env:"OCMS_REQUEST_TIMEOUT" envDefault:"30s"`

	// OpenTelemetry
	OTelEnabled     bool   `env:"OCMS_OTEL_ENABLED" envDefault:"false"`
	OTelExporter    string `env:"OCMS_OTEL_EXPORTER" envDefault:"stdout"`
	OTelServiceName string `env:"OCMS_OTEL_SERVICE_NAME" envDefault:"ocms-pages"`
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedisLocks returns true if edit locks are shared through Redis.
func (c Config) UseRedisLocks() bool {
	return c.RedisURL != ""
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if !hasMinimumEntropy(cfg.ETagSecret) {
		slog.Warn("OCMS_ETAG_SECRET has low character diversity; " +
			"consider generating a random secret with: openssl rand -base64 32")
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.ETagSecret) < MinETagSecretLength {
		return fmt.Errorf("OCMS_ETAG_SECRET must be at least %d bytes long, got %d bytes; "+
			"generate a secure secret with: openssl rand -base64 32",
			MinETagSecretLength, len(c.ETagSecret))
	}
	for _, weak := range knownWeakSecrets {
		if c.ETagSecret == weak {
			return errors.New("OCMS_ETAG_SECRET is a known default value and must not be used; " +
				"generate a secure secret with: openssl rand -base64 32")
		}
	}

	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("OCMS_SERVER_PORT must be between 1 and 65535, got %d", c.ServerPort)
	}
	if c.LockTTL <= 0 {
		return fmt.Errorf("OCMS_LOCK_TTL must be positive, got %s", c.LockTTL)
	}
	if c.LockMaxTTL < c.LockTTL {
		return fmt.Errorf("OCMS_LOCK_MAX_TTL (%s) must not be shorter than OCMS_LOCK_TTL (%s)", c.LockMaxTTL, c.LockTTL)
	}
	if c.SchedulerMaxAttempts < 1 {
		return fmt.Errorf("OCMS_SCHEDULER_MAX_ATTEMPTS must be at least 1, got %d", c.SchedulerMaxAttempts)
	}
	if c.SchedulerConcurrency < 1 {
		return fmt.Errorf("OCMS_SCHEDULER_CONCURRENCY must be at least 1, got %d", c.SchedulerConcurrency)
	}
	if c.SchedulerRate < 0 || c.APIRateLimit < 0 {
		return errors.New("rate limits must not be negative")
	}
	if c.VersionRetention < 0 {
		return fmt.Errorf("OCMS_VERSION_RETENTION must not be negative, got %d", c.VersionRetention)
	}
	if c.EventRetention < 0 {
		return fmt.Errorf("OCMS_EVENT_RETENTION must not be negative, got %s", c.EventRetention)
	}
	switch c.OTelExporter {
	case "stdout", "otlp":
	default:
		return fmt.Errorf("OCMS_OTEL_EXPORTER must be \"stdout\" or \"otlp\", got %q", c.OTelExporter)
	}
	return nil
}

// hasMinimumEntropy checks that a secret contains at least 3 character classes
// (lowercase, uppercase, digits, special characters).
func hasMinimumEntropy(s string) bool {
	charTypes := 0
	if strings.ContainsAny(s, "abcdefghijklmnopqrstuvwxyz") {
		charTypes++
	}
	if strings.ContainsAny(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		charTypes++
	}
	if strings.ContainsAny(s, "0123456789") {
		charTypes++
	}
	if strings.ContainsAny(s, "!@#$%^&*()-_=+[]{}|;:,.<>?/~`'\"\\") {
		charTypes++
	}
	return charTypes >= 3
}
