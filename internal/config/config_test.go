// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"log/slog"
	"os"
	"testing"
	"time"
)

const testSecret = "test-Secret-key-32-bytes-long!!!"

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set %s: %v", key, err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()
	setEnv(t, "OCMS_ETAG_SECRET", testSecret)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.DBPath != "./data/ocms-pages.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "./data/ocms-pages.db")
	}
	if cfg.ServerHost != "localhost" {
		t.Errorf("ServerHost = %q, want %q", cfg.ServerHost, "localhost")
	}
	if cfg.ServerPort != 8080 {
		t.Errorf("ServerPort = %d, want %d", cfg.ServerPort, 8080)
	}
	if cfg.Env != "development" {
		t.Errorf("Env = %q, want %q", cfg.Env, "development")
	}
	if cfg.LockTTL != 5*time.Minute {
		t.Errorf("LockTTL = %s, want 5m", cfg.LockTTL)
	}
	if cfg.LockMaxTTL != 30*time.Minute {
		t.Errorf("LockMaxTTL = %s, want 30m", cfg.LockMaxTTL)
	}
	if cfg.RequireEditLock {
		t.Error("RequireEditLock should default to false")
	}
	if cfg.SchedulerSpec != "@every 30s" {
		t.Errorf("SchedulerSpec = %q, want %q", cfg.SchedulerSpec, "@every 30s")
	}
	if cfg.SchedulerMaxAttempts != 5 {
		t.Errorf("SchedulerMaxAttempts = %d, want 5", cfg.SchedulerMaxAttempts)
	}
	if cfg.EventRetention != 90*24*time.Hour {
		t.Errorf("EventRetention = %s, want 2160h", cfg.EventRetention)
	}
	if cfg.UseRedisLocks() {
		t.Error("UseRedisLocks() = true without OCMS_REDIS_URL")
	}
	if cfg.OTelEnabled {
		t.Error("OTelEnabled should default to false")
	}
}

func TestLoad_CustomValues(t *testing.T) {
	os.Clearenv()
	setEnv(t, "OCMS_ETAG_SECRET", testSecret)
	setEnv(t, "OCMS_DB_PATH", "/custom/path.db")
	setEnv(t, "OCMS_SERVER_HOST", "0.0.0.0")
	setEnv(t, "OCMS_SERVER_PORT", "3000")
	setEnv(t, "OCMS_ENV", "production")
	setEnv(t, "OCMS_LOG_LEVEL", "debug")
	setEnv(t, "OCMS_REDIS_URL", "redis://localhost:6379/1")
	setEnv(t, "OCMS_LOCK_TTL", "2m")
	setEnv(t, "OCMS_REQUIRE_EDIT_LOCK", "true")
	setEnv(t, "OCMS_SCHEDULER_SPEC", "@every 1m")
	setEnv(t, "OCMS_SCHEDULER_RATE", "2.5")
	setEnv(t, "OCMS_VERSION_RETENTION", "0")
	setEnv(t, "OCMS_OTEL_ENABLED", "true")
	setEnv(t, "OCMS_OTEL_EXPORTER", "otlp")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.DBPath != "/custom/path.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "/custom/path.db")
	}
	if cfg.ServerAddr() != "0.0.0.0:3000" {
		t.Errorf("ServerAddr() = %q, want %q", cfg.ServerAddr(), "0.0.0.0:3000")
	}
	if cfg.IsDevelopment() {
		t.Error("IsDevelopment() = true in production")
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("SlogLevel() = %v, want debug", cfg.SlogLevel())
	}
	if !cfg.UseRedisLocks() {
		t.Error("UseRedisLocks() = false with OCMS_REDIS_URL set")
	}
	if cfg.LockTTL != 2*time.Minute {
		t.Errorf("LockTTL = %s, want 2m", cfg.LockTTL)
	}
	if !cfg.RequireEditLock {
		t.Error("RequireEditLock = false, want true")
	}
	if cfg.SchedulerSpec != "@every 1m" {
		t.Errorf("SchedulerSpec = %q, want %q", cfg.SchedulerSpec, "@every 1m")
	}
	if cfg.SchedulerRate != 2.5 {
		t.Errorf("SchedulerRate = %v, want 2.5", cfg.SchedulerRate)
	}
	if cfg.VersionRetention != 0 {
		t.Errorf("VersionRetention = %d, want 0", cfg.VersionRetention)
	}
	if !cfg.OTelEnabled || cfg.OTelExporter != "otlp" {
		t.Errorf("OTel = (%v, %q), want (true, otlp)", cfg.OTelEnabled, cfg.OTelExporter)
	}
}

func TestLoad_RequiredETagSecret(t *testing.T) {
	os.Clearenv()

	if _, err := Load(); err == nil {
		t.Fatal("Load() should fail when OCMS_ETAG_SECRET is not set")
	}
}

func TestLoad_ETagSecretTooShort(t *testing.T) {
	tests := []struct {
		name   string
		secret string
	}{
		{"empty", ""},
		{"short", "short"},
		{"31_bytes", "1234567890123456789012345678901"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			setEnv(t, "OCMS_ETAG_SECRET", tt.secret)

			if _, err := Load(); err == nil {
				t.Fatalf("Load() should fail with %d-byte secret", len(tt.secret))
			}
		})
	}
}

func TestLoad_ETagSecretKnownWeak(t *testing.T) {
	for _, weak := range knownWeakSecrets {
		os.Clearenv()
		setEnv(t, "OCMS_ETAG_SECRET", weak)
		if _, err := Load(); err == nil {
			t.Errorf("Load() should reject known default secret %q", weak)
		}
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"port out of range", "OCMS_SERVER_PORT", "70000"},
		{"zero lock ttl", "OCMS_LOCK_TTL", "0s"},
		{"max ttl below ttl", "OCMS_LOCK_MAX_TTL", "1m"},
		{"no attempts", "OCMS_SCHEDULER_MAX_ATTEMPTS", "0"},
		{"no concurrency", "OCMS_SCHEDULER_CONCURRENCY", "0"},
		{"negative rate", "OCMS_API_RATE_LIMIT", "-1"},
		{"negative retention", "OCMS_VERSION_RETENTION", "-3"},
		{"unknown exporter", "OCMS_OTEL_EXPORTER", "zipkin"},
		{"malformed duration", "OCMS_REQUEST_TIMEOUT", "soon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			setEnv(t, "OCMS_ETAG_SECRET", testSecret)
			setEnv(t, tt.key, tt.value)

			if _, err := Load(); err == nil {
				t.Fatalf("Load() should fail with %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestConfig_SlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := Config{LogLevel: tt.level}
			if got := cfg.SlogLevel(); got != tt.want {
				t.Errorf("SlogLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHasMinimumEntropy(t *testing.T) {
	tests := []struct {
		secret string
		want   bool
	}{
		{"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", false},
		{"abcdefgh12345678abcdefgh12345678", false},
		{"abcdEFGH12345678abcdefgh12345678", true},
		{testSecret, true},
	}
	for _, tt := range tests {
		if got := hasMinimumEntropy(tt.secret); got != tt.want {
			t.Errorf("hasMinimumEntropy(%q) = %v, want %v", tt.secret, got, tt.want)
		}
	}
}
