// PhotoMirror - Synchronized Media Library Mirror and Streaming Gateway
// Copyright 2026 PhotoMirror Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photomirror/photomirror

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/photomirror/config.yaml",
	"/etc/photomirror/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Provider: ProviderConfig{
			URL:           "",
			AuthToken:     "",
			Timeout:       30 * time.Second,
			RetryAttempts: 3,
			RetryBackoff:  2 * time.Second,
			RateLimit:     5,
		},
		Database: DatabaseConfig{
			Path:      "/data/photomirror.duckdb",
			MaxMemory: "1GB",
			Threads:   0, // 0 = use runtime.NumCPU()
		},
		Sync: SyncConfig{
			Interval: 5 * time.Minute,
			PageSize: 500,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            7860,
			ReadTimeout:     30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   300,
			RateLimitWindow: time.Minute,
		},
		Stream: StreamConfig{
			ChunkSize:         256 << 10, // 256KiB relay buffer
			ResolveTimeout:    15 * time.Second,
			DefaultSeekWindow: 30,
			URLCacheSize:      1024,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load reads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in values from defaultConfig()
//  2. Config file: optional YAML file
//  3. Environment variables: highest priority
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// findConfigFile searches the env override and then the default paths,
// returning the first file found or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths lists config paths parsed as comma-separated slices
// when they arrive from environment variables.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated env strings to slices for
// known slice fields. YAML-sourced values are already slices and skipped.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
//
// Examples:
//   - PROVIDER_URL           -> provider.url
//   - PROVIDER_AUTH_TOKEN    -> provider.auth_token
//   - SYNC_INTERVAL          -> sync.interval
//   - HTTP_PORT              -> server.port
//   - DUCKDB_PATH            -> database.path
//   - STREAM_CHUNK_SIZE      -> stream.chunk_size
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		"provider_url":            "provider.url",
		"provider_auth_token":     "provider.auth_token",
		"provider_timeout":        "provider.timeout",
		"provider_retry_attempts": "provider.retry_attempts",
		"provider_retry_backoff":  "provider.retry_backoff",
		"provider_rate_limit":     "provider.rate_limit",

		"duckdb_path":       "database.path",
		"duckdb_max_memory": "database.max_memory",
		"duckdb_threads":    "database.threads",

		"sync_interval":  "sync.interval",
		"sync_page_size": "sync.page_size",

		"http_host":              "server.host",
		"http_port":              "server.port",
		"http_read_timeout":      "server.read_timeout",
		"http_shutdown_timeout":  "server.shutdown_timeout",
		"cors_origins":           "server.cors_origins",
		"http_rate_limit_reqs":   "server.rate_limit_reqs",
		"http_rate_limit_window": "server.rate_limit_window",

		"stream_chunk_size":          "stream.chunk_size",
		"stream_resolve_timeout":     "stream.resolve_timeout",
		"stream_default_seek_window": "stream.default_seek_window",
		"stream_url_cache_size":      "stream.url_cache_size",

		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	// Unknown variables are ignored rather than polluting the tree.
	return ""
}
