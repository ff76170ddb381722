// PhotoMirror - Synchronized Media Library Mirror and Streaming Gateway
// Copyright 2026 PhotoMirror Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photomirror/photomirror

package models

import "time"

// SyncState is the singleton synchronization-state record. Exactly one row
// exists in the local index after first initialization.
//
// StateToken identifies a full-library enumeration epoch; empty means no
// baseline has been established yet. PageToken is the resume cursor within
// an in-progress enumeration pass; empty means no page is in flight.
// InitComplete turns true once at least one full pass has finished and
// never reverts.
type SyncState struct {
	StateToken   string `json:"state_token"`
	PageToken    string `json:"page_token"`
	InitComplete bool   `json:"init_complete"`
}

// SyncStatePatch is a partial update to SyncState. Nil fields leave the
// stored value unchanged.
type SyncStatePatch struct {
	StateToken   *string
	PageToken    *string
	InitComplete *bool
}

// SyncSummary reports the outcome of one sync run. Added and updated rows
// are conflated into Upserted because a full-row replace cannot tell the
// two apart without a read-before-write.
type SyncSummary struct {
	RunID    string        `json:"run_id"`
	Upserted int           `json:"upserted"`
	Removed  int           `json:"removed"`
	Total    int64         `json:"total"`
	Pages    int           `json:"pages"`
	Duration time.Duration `json:"-"`
}
