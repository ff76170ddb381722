// PhotoMirror - Synchronized Media Library Mirror and Streaming Gateway
// Copyright 2026 PhotoMirror Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photomirror/photomirror

// Package models defines the shared data records for PhotoMirror: the
// mirrored media item, the sync-state singleton, sync run summaries, and
// the API response envelope.
package models

import "time"

// Media types as reported by the remote library provider.
const (
	MediaTypePhoto = "photo"
	MediaTypeVideo = "video"
)

// MediaItem is one remote media object mirrored into the local index.
//
// MediaKey is globally unique and immutable once assigned by the provider.
// DedupKey groups multiple uploads of the same underlying content;
// IsCanonical marks the representative copy within that group (see
// database.CanonicalPolicy for how the flag is assigned locally).
//
// Instances are constructed once at the provider-decoding boundary and
// passed around as typed records.
type MediaItem struct {
	MediaKey    string `json:"media_key"`
	DedupKey    string `json:"dedup_key"`
	IsCanonical bool   `json:"is_canonical"`

	Type    string `json:"type"` // MediaTypePhoto or MediaTypeVideo
	Subtype string `json:"subtype,omitempty"`

	FileName        string  `json:"file_name"`
	SizeBytes       int64   `json:"size_bytes"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"` // videos only, 0 for photos

	CaptureTimestamp  int64 `json:"capture_timestamp"`  // unix seconds, client capture time
	CreationTimestamp int64 `json:"creation_timestamp"` // unix seconds, server-side creation
	TimezoneOffset    int   `json:"timezone_offset"`    // seconds east of UTC at capture time

	IsArchived        bool       `json:"is_archived"`
	IsFavorite        bool       `json:"is_favorite"`
	IsLocked          bool       `json:"is_locked"`
	TrashedAt         *time.Time `json:"trashed_at,omitempty"`
	IsOriginalQuality bool       `json:"is_original_quality"`

	// Optional descriptive metadata. Pointers distinguish "absent" from zero.
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	CameraMake  string   `json:"camera_make,omitempty"`
	CameraModel string   `json:"camera_model,omitempty"`
	Aperture    *float64 `json:"aperture,omitempty"`
	ISO         *int     `json:"iso,omitempty"`
	ExposureMS  *float64 `json:"exposure_ms,omitempty"`
	FocalLength *float64 `json:"focal_length,omitempty"`

	IsEdited bool `json:"is_edited"`

	// Motion-photo companion clip dimensions, when present.
	MicroVideoWidth  int `json:"micro_video_width,omitempty"`
	MicroVideoHeight int `json:"micro_video_height,omitempty"`
}

// IsVideo reports whether the item is a video.
func (m *MediaItem) IsVideo() bool {
	return m.Type == MediaTypeVideo
}

// Trashed reports whether the provider has moved the item to trash.
func (m *MediaItem) Trashed() bool {
	return m.TrashedAt != nil
}
