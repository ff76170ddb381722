// PhotoMirror - Synchronized Media Library Mirror and Streaming Gateway
// Copyright 2026 PhotoMirror Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photomirror/photomirror

package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/photomirror/photomirror/internal/logging"
	"github.com/photomirror/photomirror/internal/stream"
)

// Stream handles GET /api/v1/stream/{key}.
//
// Query parameters:
//   - mode: "redirect" (default), "full", or "fastseek"
//   - t: fastseek time offset in seconds (required for fastseek)
//   - d: fastseek window in seconds (optional, server default applies)
//
// Full mode forwards the client's Range header verbatim, so players can
// do their own byte-range seeking through the gateway.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	mode, ok := h.parseMode(w, r)
	if !ok {
		return
	}

	switch m := mode.(type) {
	case stream.Redirect:
		h.streamRedirect(w, r, key)
	default:
		h.streamRelay(w, r, key, m)
	}
}

// parseMode decodes the delivery mode from the query. On failure it
// writes the error response and returns ok=false.
func (h *Handler) parseMode(w http.ResponseWriter, r *http.Request) (stream.Mode, bool) {
	q := r.URL.Query()

	switch q.Get("mode") {
	case "", "redirect":
		return stream.Redirect{}, true

	case "full":
		return stream.Full{RangeHeader: r.Header.Get("Range")}, true

	case "fastseek":
		rawT := q.Get("t")
		if rawT == "" {
			respondError(w, http.StatusBadRequest, "INVALID_ARGUMENT",
				"fastseek requires the t parameter", nil)
			return nil, false
		}
		t, err := strconv.ParseFloat(rawT, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "INVALID_ARGUMENT",
				"t must be a number of seconds", nil)
			return nil, false
		}

		var d float64
		if rawD := q.Get("d"); rawD != "" {
			d, err = strconv.ParseFloat(rawD, 64)
			if err != nil {
				respondError(w, http.StatusBadRequest, "INVALID_ARGUMENT",
					"d must be a number of seconds", nil)
				return nil, false
			}
		}
		return stream.FastSeek{Offset: t, Window: d}, true

	default:
		respondError(w, http.StatusBadRequest, "INVALID_ARGUMENT",
			"mode must be redirect, full, or fastseek", nil)
		return nil, false
	}
}

// streamRedirect answers with a 302 to a freshly minted provider URL.
// The URL is short-lived, so responses must never be cached.
func (h *Handler) streamRedirect(w http.ResponseWriter, r *http.Request, key string) {
	info, err := h.gateway.Resolve(r.Context(), key)
	if err != nil {
		respondMappedError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	http.Redirect(w, r, info.URL, http.StatusFound)
}

// streamRelay opens the upstream and relays it chunk by chunk. Once the
// relay starts the status line is on the wire, so mid-stream failures
// can only terminate the connection.
func (h *Handler) streamRelay(w http.ResponseWriter, r *http.Request, key string, mode stream.Mode) {
	up, err := h.gateway.Open(r.Context(), key, mode)
	if err != nil {
		respondMappedError(w, err)
		return
	}

	relayed, err := h.gateway.Relay(r.Context(), w, up, mode)
	if err != nil {
		logging.Ctx(r.Context()).Warn().
			Err(err).
			Str("media_key", sanitizeLogValue(key)).
			Str("mode", mode.Label()).
			Int64("relayed_bytes", relayed).
			Msg("Stream relay terminated early")
	}
}
