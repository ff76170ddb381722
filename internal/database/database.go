// PhotoMirror - Synchronized Media Library Mirror and Streaming Gateway
// Copyright 2026 PhotoMirror Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photomirror/photomirror

// Package database implements the local media index on DuckDB: the
// mirrored catalog of media items plus the persisted synchronization
// cursor. All writes are transactional; a page of provider changes is
// either fully applied or not applied at all.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/photomirror/photomirror/internal/config"
	"github.com/photomirror/photomirror/internal/logging"
)

// ErrMediaNotFound is returned when a media key does not exist in the
// local index.
var ErrMediaNotFound = errors.New("media item not found")

// DB wraps the DuckDB connection and provides data access methods.
type DB struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig

	// canonical decides which item in a dedup group is canonical.
	// Set once at construction; never mutated afterwards.
	canonical CanonicalPolicy
}

// Option customizes DB construction.
type Option func(*DB)

// WithCanonicalPolicy overrides the default canonical-selection policy.
func WithCanonicalPolicy(p CanonicalPolicy) Option {
	return func(db *DB) {
		if p != nil {
			db.canonical = p
		}
	}
}

// New opens (or creates) the DuckDB database and initializes the schema.
func New(cfg *config.DatabaseConfig, opts ...Option) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	// Ensure the parent directory exists for file-backed databases.
	if cfg.Path != ":memory:" {
		dbDir := filepath.Dir(cfg.Path)
		if dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
			}
		}
	}

	// Disable extension auto-install/auto-load to prevent hangs in
	// restricted network environments; nothing here needs extensions.
	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, numThreads, cfg.MaxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{
		conn:      conn,
		cfg:       cfg,
		canonical: PreferProviderFlag,
	}
	for _, opt := range opts {
		opt(db)
	}

	db.configureConnectionPool()

	if err := db.initialize(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Int("threads", numThreads).
		Msg("Database initialized")

	return db, nil
}

// configureConnectionPool tunes database/sql pooling. DuckDB is embedded
// and single-process; a small pool avoids excessive native connections.
func (db *DB) configureConnectionPool() {
	db.conn.SetMaxOpenConns(4)
	db.conn.SetMaxIdleConns(2)
	db.conn.SetConnMaxLifetime(0)
}

// Conn exposes the underlying sql.DB for health checks.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Close closes the database connection.
func (db *DB) Close() error {
	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// Ping verifies the database connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// initialize creates the schema if it does not exist and seeds the
// sync-state singleton row.
func (db *DB) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, stmt := range schemaStatements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}

	// Seed the singleton sync-state row so reads never miss.
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO sync_state (id, state_token, page_token, init_complete)
		SELECT 1, '', '', false
		WHERE NOT EXISTS (SELECT 1 FROM sync_state WHERE id = 1)`)
	if err != nil {
		return fmt.Errorf("failed to seed sync state: %w", err)
	}
	return nil
}

// schemaStatements defines the local index schema. media_items mirrors
// the provider's library; sync_state is a single-row table holding the
// enumeration cursor.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS media_items (
		media_key           VARCHAR PRIMARY KEY,
		dedup_key           VARCHAR NOT NULL,
		is_canonical        BOOLEAN NOT NULL DEFAULT false,
		type                VARCHAR NOT NULL,
		subtype             VARCHAR,
		file_name           VARCHAR NOT NULL,
		size_bytes          BIGINT NOT NULL,
		duration_seconds    DOUBLE NOT NULL DEFAULT 0,
		capture_timestamp   BIGINT NOT NULL,
		creation_timestamp  BIGINT NOT NULL,
		timezone_offset     INTEGER NOT NULL DEFAULT 0,
		is_archived         BOOLEAN NOT NULL DEFAULT false,
		is_favorite         BOOLEAN NOT NULL DEFAULT false,
		is_locked           BOOLEAN NOT NULL DEFAULT false,
		trashed_at          TIMESTAMP,
		is_original_quality BOOLEAN NOT NULL DEFAULT false,
		latitude            DOUBLE,
		longitude           DOUBLE,
		camera_make         VARCHAR,
		camera_model        VARCHAR,
		aperture            DOUBLE,
		iso                 INTEGER,
		exposure_ms         DOUBLE,
		focal_length        DOUBLE,
		is_edited           BOOLEAN NOT NULL DEFAULT false,
		micro_video_width   INTEGER,
		micro_video_height  INTEGER,
		updated_at          TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_media_dedup ON media_items (dedup_key)`,
	`CREATE INDEX IF NOT EXISTS idx_media_capture ON media_items (capture_timestamp)`,
	`CREATE TABLE IF NOT EXISTS sync_state (
		id             INTEGER PRIMARY KEY,
		state_token    VARCHAR NOT NULL DEFAULT '',
		page_token     VARCHAR NOT NULL DEFAULT '',
		init_complete  BOOLEAN NOT NULL DEFAULT false,
		updated_at     TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
}

func closeQuietly(conn *sql.DB) {
	if err := conn.Close(); err != nil {
		logging.Warn().Err(err).Msg("Failed to close database connection")
	}
}
