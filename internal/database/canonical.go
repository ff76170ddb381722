// PhotoMirror - Synchronized Media Library Mirror and Streaming Gateway
// Copyright 2026 PhotoMirror Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photomirror/photomirror

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/photomirror/photomirror/internal/models"
)

// CanonicalPolicy selects the canonical member of a dedup group. The
// group is never empty; the returned key must belong to one of the
// members. Exactly one item per group carries is_canonical after the
// policy runs.
type CanonicalPolicy func(group []models.MediaItem) string

// PreferProviderFlag is the default policy: keep the provider's own
// canonical flag when exactly one member carries it. Otherwise fall
// back to the largest file, breaking remaining ties by the
// lexicographically smallest media key so the choice is deterministic.
func PreferProviderFlag(group []models.MediaItem) string {
	flagged := ""
	flaggedCount := 0
	for i := range group {
		if group[i].IsCanonical {
			flagged = group[i].MediaKey
			flaggedCount++
		}
	}
	if flaggedCount == 1 {
		return flagged
	}

	best := &group[0]
	for i := 1; i < len(group); i++ {
		it := &group[i]
		if it.SizeBytes > best.SizeBytes ||
			(it.SizeBytes == best.SizeBytes && it.MediaKey < best.MediaKey) {
			best = it
		}
	}
	return best.MediaKey
}

// applyCanonicalPolicy recalculates the canonical flag for each touched
// dedup group inside the caller's transaction. Groups that vanished
// entirely (all members deleted) are skipped.
func (db *DB) applyCanonicalPolicy(ctx context.Context, tx *sql.Tx, groups map[string]struct{}) error {
	if len(groups) == 0 {
		return nil
	}

	for dedupKey := range groups {
		group, err := groupMembers(ctx, tx, dedupKey)
		if err != nil {
			return err
		}
		if len(group) == 0 {
			continue
		}

		winner := db.canonical(group)

		if _, err := tx.ExecContext(ctx,
			`UPDATE media_items SET is_canonical = (media_key = ?) WHERE dedup_key = ?`,
			winner, dedupKey); err != nil {
			return fmt.Errorf("failed to update canonical flag for group %s: %w", dedupKey, err)
		}
	}
	return nil
}

// groupMembers loads the minimal fields the policy needs for one group.
func groupMembers(ctx context.Context, tx *sql.Tx, dedupKey string) ([]models.MediaItem, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT media_key, dedup_key, is_canonical, size_bytes
		 FROM media_items WHERE dedup_key = ? ORDER BY media_key`, dedupKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query dedup group %s: %w", dedupKey, err)
	}
	defer closeRows(rows)

	var group []models.MediaItem
	for rows.Next() {
		var it models.MediaItem
		if err := rows.Scan(&it.MediaKey, &it.DedupKey, &it.IsCanonical, &it.SizeBytes); err != nil {
			return nil, fmt.Errorf("failed to scan dedup group member: %w", err)
		}
		group = append(group, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate dedup group: %w", err)
	}
	return group, nil
}
