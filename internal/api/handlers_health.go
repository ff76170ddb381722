// PhotoMirror - Synchronized Media Library Mirror and Streaming Gateway
// Copyright 2026 PhotoMirror Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photomirror/photomirror

package api

import (
	"net/http"
	"time"
)

// HealthLive handles GET /api/v1/health/live: the process is up.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, map[string]string{"status": "alive"}, time.Now())
}

// HealthReady handles GET /api/v1/health/ready: the local index is
// reachable. Provider reachability is deliberately excluded so a
// provider outage does not evict the mirror from load balancers; the
// mirror keeps serving catalog reads either way.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	if err := h.db.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "NOT_READY",
			"local index unavailable", err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]string{"status": "ready"}, started)
}
