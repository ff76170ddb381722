// PhotoMirror - Synchronized Media Library Mirror and Streaming Gateway
// Copyright 2026 PhotoMirror Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photomirror/photomirror

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// setRequiredEnv sets the minimum environment for Load to succeed.
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("PROVIDER_URL", "https://library.example.com")
	t.Setenv("PROVIDER_AUTH_TOKEN", "secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Provider.Timeout != 30*time.Second {
		t.Errorf("Unexpected provider timeout: %v", cfg.Provider.Timeout)
	}
	if cfg.Provider.RetryAttempts != 3 {
		t.Errorf("Unexpected retry attempts: %d", cfg.Provider.RetryAttempts)
	}
	if cfg.Sync.Interval != 5*time.Minute || cfg.Sync.PageSize != 500 {
		t.Errorf("Unexpected sync defaults: %+v", cfg.Sync)
	}
	if cfg.Server.Port != 7860 {
		t.Errorf("Unexpected port: %d", cfg.Server.Port)
	}
	if cfg.Stream.ChunkSize != 256<<10 {
		t.Errorf("Unexpected chunk size: %d", cfg.Stream.ChunkSize)
	}
	if cfg.Stream.URLCacheSize != 1024 {
		t.Errorf("Unexpected URL cache size: %d", cfg.Stream.URLCacheSize)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("Unexpected logging defaults: %+v", cfg.Logging)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("SYNC_INTERVAL", "1m")
	t.Setenv("DUCKDB_PATH", "/tmp/test.duckdb")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Expected port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Sync.Interval != time.Minute {
		t.Errorf("Expected 1m interval, got %v", cfg.Sync.Interval)
	}
	if cfg.Database.Path != "/tmp/test.duckdb" {
		t.Errorf("Unexpected database path: %s", cfg.Database.Path)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Unexpected log level: %s", cfg.Logging.Level)
	}
	want := []string{"https://a.example.com", "https://b.example.com"}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[0] != want[0] || cfg.Server.CORSOrigins[1] != want[1] {
		t.Errorf("Unexpected CORS origins: %v", cfg.Server.CORSOrigins)
	}
}

func TestLoadConfigFile(t *testing.T) {
	setRequiredEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := []byte("server:\n  port: 8123\nsync:\n  page_size: 250\n")
	if err := os.WriteFile(path, yaml, 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 8123 {
		t.Errorf("Expected file-provided port 8123, got %d", cfg.Server.Port)
	}
	if cfg.Sync.PageSize != 250 {
		t.Errorf("Expected page size 250, got %d", cfg.Sync.PageSize)
	}
}

func TestEnvBeatsFile(t *testing.T) {
	setRequiredEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 8123\n"), 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("HTTP_PORT", "9999")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Environment must beat the config file, got %d", cfg.Server.Port)
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*testing.T)
	}{
		{
			name: "missing provider url",
			mutate: func(t *testing.T) {
				t.Setenv("PROVIDER_AUTH_TOKEN", "secret")
			},
		},
		{
			name: "malformed provider url",
			mutate: func(t *testing.T) {
				setRequiredEnv(t)
				t.Setenv("PROVIDER_URL", "not a url")
			},
		},
		{
			name: "port out of range",
			mutate: func(t *testing.T) {
				setRequiredEnv(t)
				t.Setenv("HTTP_PORT", "70000")
			},
		},
		{
			name: "bad log level",
			mutate: func(t *testing.T) {
				setRequiredEnv(t)
				t.Setenv("LOG_LEVEL", "verbose")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mutate(t)
			if _, err := Load(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestAddr(t *testing.T) {
	s := ServerConfig{Host: "127.0.0.1", Port: 7860}
	if got := s.Addr(); got != "127.0.0.1:7860" {
		t.Errorf("Unexpected Addr: %s", got)
	}
}
