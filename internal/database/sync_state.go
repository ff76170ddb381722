// PhotoMirror - Synchronized Media Library Mirror and Streaming Gateway
// Copyright 2026 PhotoMirror Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photomirror/photomirror

package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/photomirror/photomirror/internal/models"
)

// GetSyncState reads the singleton synchronization cursor. The row is
// seeded at schema initialization, so this never returns sql.ErrNoRows
// on a healthy database.
func (db *DB) GetSyncState(ctx context.Context) (*models.SyncState, error) {
	var state models.SyncState
	err := db.conn.QueryRowContext(ctx,
		`SELECT state_token, page_token, init_complete FROM sync_state WHERE id = 1`).
		Scan(&state.StateToken, &state.PageToken, &state.InitComplete)
	if err != nil {
		return nil, fmt.Errorf("failed to read sync state: %w", err)
	}
	return &state, nil
}

// SetSyncState applies a partial update to the singleton cursor. Nil
// fields in the patch are left untouched, so the sync engine can persist
// a page token mid-run without clobbering the state token.
func (db *DB) SetSyncState(ctx context.Context, patch models.SyncStatePatch) error {
	var (
		sets []string
		args []interface{}
	)
	if patch.StateToken != nil {
		sets = append(sets, "state_token = ?")
		args = append(args, *patch.StateToken)
	}
	if patch.PageToken != nil {
		sets = append(sets, "page_token = ?")
		args = append(args, *patch.PageToken)
	}
	if patch.InitComplete != nil {
		sets = append(sets, "init_complete = ?")
		args = append(args, *patch.InitComplete)
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")

	query := "UPDATE sync_state SET " + strings.Join(sets, ", ") + " WHERE id = 1"
	if _, err := db.conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update sync state: %w", err)
	}
	return nil
}
