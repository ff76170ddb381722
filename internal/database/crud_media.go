// PhotoMirror - Synchronized Media Library Mirror and Streaming Gateway
// Copyright 2026 PhotoMirror Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photomirror/photomirror

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/photomirror/photomirror/internal/logging"
	"github.com/photomirror/photomirror/internal/models"
)

// mediaColumns is the column list shared by upsert and select statements.
// Order must match upsert args and scanMediaItem.
const mediaColumns = `media_key, dedup_key, is_canonical, type, subtype,
	file_name, size_bytes, duration_seconds,
	capture_timestamp, creation_timestamp, timezone_offset,
	is_archived, is_favorite, is_locked, trashed_at, is_original_quality,
	latitude, longitude, camera_make, camera_model,
	aperture, iso, exposure_ms, focal_length,
	is_edited, micro_video_width, micro_video_height`

// UpsertMediaItems applies one provider page of item records in a single
// transaction. Every row is a full replacement: existing rows with the
// same media_key take all the incoming values, so re-applying the same
// page is a no-op. After the rows land, the canonical flag is
// recalculated for every dedup group the page touched.
//
// An empty slice returns nil without touching the database.
func (db *DB) UpsertMediaItems(ctx context.Context, items []models.MediaItem) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				logging.Warn().Err(rbErr).Msg("Failed to roll back upsert transaction")
			}
		}
	}()

	query := `INSERT INTO media_items (` + mediaColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (media_key) DO UPDATE SET
			dedup_key = EXCLUDED.dedup_key,
			is_canonical = EXCLUDED.is_canonical,
			type = EXCLUDED.type,
			subtype = EXCLUDED.subtype,
			file_name = EXCLUDED.file_name,
			size_bytes = EXCLUDED.size_bytes,
			duration_seconds = EXCLUDED.duration_seconds,
			capture_timestamp = EXCLUDED.capture_timestamp,
			creation_timestamp = EXCLUDED.creation_timestamp,
			timezone_offset = EXCLUDED.timezone_offset,
			is_archived = EXCLUDED.is_archived,
			is_favorite = EXCLUDED.is_favorite,
			is_locked = EXCLUDED.is_locked,
			trashed_at = EXCLUDED.trashed_at,
			is_original_quality = EXCLUDED.is_original_quality,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			camera_make = EXCLUDED.camera_make,
			camera_model = EXCLUDED.camera_model,
			aperture = EXCLUDED.aperture,
			iso = EXCLUDED.iso,
			exposure_ms = EXCLUDED.exposure_ms,
			focal_length = EXCLUDED.focal_length,
			is_edited = EXCLUDED.is_edited,
			micro_video_width = EXCLUDED.micro_video_width,
			micro_video_height = EXCLUDED.micro_video_height,
			updated_at = now()`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer func() {
		if cerr := stmt.Close(); cerr != nil {
			logging.Warn().Err(cerr).Msg("Failed to close upsert statement")
		}
	}()

	touched := make(map[string]struct{}, len(items))
	for i := range items {
		it := &items[i]
		if _, err := stmt.ExecContext(ctx,
			it.MediaKey, it.DedupKey, it.IsCanonical, it.Type, nullString(it.Subtype),
			it.FileName, it.SizeBytes, it.DurationSeconds,
			it.CaptureTimestamp, it.CreationTimestamp, it.TimezoneOffset,
			it.IsArchived, it.IsFavorite, it.IsLocked, it.TrashedAt, it.IsOriginalQuality,
			it.Latitude, it.Longitude, nullString(it.CameraMake), nullString(it.CameraModel),
			it.Aperture, it.ISO, it.ExposureMS, it.FocalLength,
			it.IsEdited, nullInt(it.MicroVideoWidth), nullInt(it.MicroVideoHeight),
		); err != nil {
			return fmt.Errorf("failed to upsert media item %s: %w", it.MediaKey, err)
		}
		touched[it.DedupKey] = struct{}{}
	}

	if err := db.applyCanonicalPolicy(ctx, tx, touched); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit upsert: %w", err)
	}
	committed = true
	return nil
}

// DeleteMediaItems removes the given media keys from the local index.
// Deletion happens only here, driven by explicit provider tombstones;
// keys that do not exist locally are silently ignored. The canonical
// flag is recalculated for every dedup group that lost a member.
func (db *DB) DeleteMediaItems(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				logging.Warn().Err(rbErr).Msg("Failed to roll back delete transaction")
			}
		}
	}()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	args := make([]interface{}, len(keys))
	for i, k := range keys {
		args[i] = k
	}

	// Capture the dedup groups that are about to lose members so the
	// canonical flag can be recalculated for the survivors.
	touched := make(map[string]struct{})
	rows, err := tx.QueryContext(ctx,
		`SELECT DISTINCT dedup_key FROM media_items WHERE media_key IN (`+placeholders+`)`, args...)
	if err != nil {
		return fmt.Errorf("failed to query affected dedup groups: %w", err)
	}
	for rows.Next() {
		var dk string
		if err := rows.Scan(&dk); err != nil {
			closeRows(rows)
			return fmt.Errorf("failed to scan dedup key: %w", err)
		}
		touched[dk] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		closeRows(rows)
		return fmt.Errorf("failed to iterate dedup keys: %w", err)
	}
	closeRows(rows)

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM media_items WHERE media_key IN (`+placeholders+`)`, args...); err != nil {
		return fmt.Errorf("failed to delete media items: %w", err)
	}

	if err := db.applyCanonicalPolicy(ctx, tx, touched); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	committed = true
	return nil
}

// GetMediaItem fetches a single item by media key.
// Returns ErrMediaNotFound when the key is not in the local index.
func (db *DB) GetMediaItem(ctx context.Context, mediaKey string) (*models.MediaItem, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+mediaColumns+` FROM media_items WHERE media_key = ?`, mediaKey)

	item, err := scanMediaItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrMediaNotFound, mediaKey)
		}
		return nil, fmt.Errorf("failed to get media item: %w", err)
	}
	return item, nil
}

// MediaFilter narrows ListMediaItems results. Zero values mean "no
// constraint" except Limit, which defaults to 100 when unset.
type MediaFilter struct {
	Type          string // MediaTypePhoto or MediaTypeVideo
	DedupKey      string
	CanonicalOnly bool
	IncludeTrash  bool
	Favorite      bool
	Limit         int
	Offset        int
}

// ListMediaItems returns items matching the filter, newest capture first.
func (db *DB) ListMediaItems(ctx context.Context, filter MediaFilter) ([]models.MediaItem, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.Type != "" {
		conds = append(conds, "type = ?")
		args = append(args, filter.Type)
	}
	if filter.DedupKey != "" {
		conds = append(conds, "dedup_key = ?")
		args = append(args, filter.DedupKey)
	}
	if filter.CanonicalOnly {
		conds = append(conds, "is_canonical = true")
	}
	if !filter.IncludeTrash {
		conds = append(conds, "trashed_at IS NULL")
	}
	if filter.Favorite {
		conds = append(conds, "is_favorite = true")
	}

	query := `SELECT ` + mediaColumns + ` FROM media_items`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY capture_timestamp DESC, media_key"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list media items: %w", err)
	}
	defer closeRows(rows)

	items := make([]models.MediaItem, 0, limit)
	for rows.Next() {
		item, err := scanMediaItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan media item: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate media items: %w", err)
	}
	return items, nil
}

// CountMediaItems returns the total number of items in the local index,
// trash included.
func (db *DB) CountMediaItems(ctx context.Context) (int64, error) {
	var count int64
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM media_items`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count media items: %w", err)
	}
	return count, nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanMediaItem.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanMediaItem(s scanner) (*models.MediaItem, error) {
	var (
		item                       models.MediaItem
		subtype, camMake, camModel sql.NullString
		microW, microH             sql.NullInt32
		trashedAt                  sql.NullTime
		lat, lon, aperture         sql.NullFloat64
		iso                        sql.NullInt32
		exposureMS, focalLength    sql.NullFloat64
	)

	err := s.Scan(
		&item.MediaKey, &item.DedupKey, &item.IsCanonical, &item.Type, &subtype,
		&item.FileName, &item.SizeBytes, &item.DurationSeconds,
		&item.CaptureTimestamp, &item.CreationTimestamp, &item.TimezoneOffset,
		&item.IsArchived, &item.IsFavorite, &item.IsLocked, &trashedAt, &item.IsOriginalQuality,
		&lat, &lon, &camMake, &camModel,
		&aperture, &iso, &exposureMS, &focalLength,
		&item.IsEdited, &microW, &microH,
	)
	if err != nil {
		return nil, err
	}

	item.Subtype = subtype.String
	item.CameraMake = camMake.String
	item.CameraModel = camModel.String
	if trashedAt.Valid {
		t := trashedAt.Time
		item.TrashedAt = &t
	}
	if lat.Valid {
		item.Latitude = &lat.Float64
	}
	if lon.Valid {
		item.Longitude = &lon.Float64
	}
	if aperture.Valid {
		item.Aperture = &aperture.Float64
	}
	if iso.Valid {
		v := int(iso.Int32)
		item.ISO = &v
	}
	if exposureMS.Valid {
		item.ExposureMS = &exposureMS.Float64
	}
	if focalLength.Valid {
		item.FocalLength = &focalLength.Float64
	}
	item.MicroVideoWidth = int(microW.Int32)
	item.MicroVideoHeight = int(microH.Int32)

	return &item, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(i int) interface{} {
	if i == 0 {
		return nil
	}
	return i
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		logging.Warn().Err(err).Msg("Failed to close rows")
	}
}
