// PhotoMirror - Synchronized Media Library Mirror and Streaming Gateway
// Copyright 2026 PhotoMirror Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photomirror/photomirror

// Package config holds all application configuration loaded from defaults,
// an optional YAML config file, and environment variables (Koanf v2,
// highest priority last). Config is immutable after Load() and safe for
// concurrent reads.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration for the PhotoMirror server.
type Config struct {
	Provider ProviderConfig `koanf:"provider"`
	Database DatabaseConfig `koanf:"database"`
	Sync     SyncConfig     `koanf:"sync"`
	Server   ServerConfig   `koanf:"server"`
	Stream   StreamConfig   `koanf:"stream"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ProviderConfig holds the remote media-library provider connection
// settings. The provider is the single upstream for both the sync engine
// (delta listing) and the streaming gateway (access-URL minting).
//
// Environment variables:
//   - PROVIDER_URL: base URL of the provider API (required)
//   - PROVIDER_AUTH_TOKEN: bearer token for provider requests (required)
//   - PROVIDER_TIMEOUT: per-request timeout (default: 30s)
//   - PROVIDER_RETRY_ATTEMPTS / PROVIDER_RETRY_BACKOFF: bounded retry policy
//   - PROVIDER_RATE_LIMIT: listing requests per second (default: 5)
type ProviderConfig struct {
	URL           string        `koanf:"url" validate:"required,url"`
	AuthToken     string        `koanf:"auth_token" validate:"required"`
	Timeout       time.Duration `koanf:"timeout" validate:"gt=0"`
	RetryAttempts int           `koanf:"retry_attempts" validate:"gte=1,lte=10"`
	RetryBackoff  time.Duration `koanf:"retry_backoff" validate:"gt=0"`
	RateLimit     float64       `koanf:"rate_limit" validate:"gt=0"`
}

// DatabaseConfig holds DuckDB settings for the local index.
type DatabaseConfig struct {
	Path      string `koanf:"path" validate:"required"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads" validate:"gte=0"` // 0 = runtime.NumCPU()
}

// SyncConfig controls the periodic synchronization scheduler.
type SyncConfig struct {
	// Interval between automatic sync runs. 0 disables the scheduler;
	// manual POST /api/v1/sync still works.
	Interval time.Duration `koanf:"interval" validate:"gte=0"`

	// PageSize is a hint forwarded to the provider's delta-listing call.
	PageSize int `koanf:"page_size" validate:"gte=0,lte=10000"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host" validate:"required"`
	Port            int           `koanf:"port" validate:"gt=0,lte=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"gte=0"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
}

// StreamConfig tunes the streaming gateway.
type StreamConfig struct {
	// ChunkSize is the relay buffer size in bytes; bounds per-stream memory.
	ChunkSize int `koanf:"chunk_size" validate:"gte=4096,lte=8388608"`

	// ResolveTimeout bounds each access-URL minting call.
	ResolveTimeout time.Duration `koanf:"resolve_timeout" validate:"gt=0"`

	// DefaultSeekWindow is the fast-seek segment length when the client
	// does not pass one, in seconds.
	DefaultSeekWindow float64 `koanf:"default_seek_window" validate:"gt=0"`

	// URLCacheSize bounds the access-URL cache; entries expire with
	// their underlying URLs regardless.
	URLCacheSize int `koanf:"url_cache_size" validate:"gte=0"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Validate checks the configuration for completeness and well-formedness.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
