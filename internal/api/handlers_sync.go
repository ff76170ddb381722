// PhotoMirror - Synchronized Media Library Mirror and Streaming Gateway
// Copyright 2026 PhotoMirror Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photomirror/photomirror

package api

import (
	"net/http"
	"time"
)

// TriggerSync handles POST /api/v1/sync: one synchronous sync run. A
// run already in flight answers 409 without queuing.
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	summary, err := h.engine.Sync(r.Context())
	if err != nil {
		respondMappedError(w, err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]any{
		"run_id":      summary.RunID,
		"pages":       summary.Pages,
		"upserted":    summary.Upserted,
		"removed":     summary.Removed,
		"total":       summary.Total,
		"duration_ms": summary.Duration.Milliseconds(),
	}, started)
}

// SyncState handles GET /api/v1/sync/state: the persisted cursor plus
// the last completed run, when any.
func (h *Handler) SyncState(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	state, err := h.db.GetSyncState(r.Context())
	if err != nil {
		respondMappedError(w, err)
		return
	}
	total, err := h.db.CountMediaItems(r.Context())
	if err != nil {
		respondMappedError(w, err)
		return
	}

	data := map[string]any{
		"state_token":   state.StateToken,
		"page_token":    state.PageToken,
		"init_complete": state.InitComplete,
		"total_items":   total,
	}
	if last := h.engine.LastSummary(); last != nil {
		data["last_run"] = last
	}

	respondSuccess(w, http.StatusOK, data, started)
}
