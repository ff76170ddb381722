// PhotoMirror - Synchronized Media Library Mirror and Streaming Gateway
// Copyright 2026 PhotoMirror Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photomirror/photomirror

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/photomirror/photomirror/internal/database"
	"github.com/photomirror/photomirror/internal/models"
)

// maxListLimit caps one page of catalog results.
const maxListLimit = 1000

// ListMedia handles GET /api/v1/media.
//
// Query parameters:
//   - type: "photo" or "video"
//   - dedup_key: restrict to one dedup group
//   - canonical: "true" to return only canonical items
//   - include_trash: "true" to include trashed items
//   - favorite: "true" to return only favorites
//   - limit, offset: pagination (default 100, max 1000)
func (h *Handler) ListMedia(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	q := r.URL.Query()

	mediaType := q.Get("type")
	if mediaType != "" && mediaType != models.MediaTypePhoto && mediaType != models.MediaTypeVideo {
		respondError(w, http.StatusBadRequest, "INVALID_ARGUMENT",
			"type must be photo or video", nil)
		return
	}

	limit := getIntParam(r, "limit", 100)
	if limit < 1 || limit > maxListLimit {
		respondError(w, http.StatusBadRequest, "INVALID_ARGUMENT",
			"limit must be between 1 and 1000", nil)
		return
	}
	offset := getIntParam(r, "offset", 0)
	if offset < 0 {
		respondError(w, http.StatusBadRequest, "INVALID_ARGUMENT",
			"offset must not be negative", nil)
		return
	}

	filter := database.MediaFilter{
		Type:          mediaType,
		DedupKey:      q.Get("dedup_key"),
		CanonicalOnly: q.Get("canonical") == "true",
		IncludeTrash:  q.Get("include_trash") == "true",
		Favorite:      q.Get("favorite") == "true",
		Limit:         limit,
		Offset:        offset,
	}

	items, err := h.db.ListMediaItems(r.Context(), filter)
	if err != nil {
		respondMappedError(w, err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]any{
		"items":  items,
		"count":  len(items),
		"limit":  limit,
		"offset": offset,
	}, started)
}

// GetMedia handles GET /api/v1/media/{key}.
func (h *Handler) GetMedia(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	key := chi.URLParam(r, "key")

	item, err := h.db.GetMediaItem(r.Context(), key)
	if err != nil {
		respondMappedError(w, err)
		return
	}

	respondSuccess(w, http.StatusOK, item, started)
}

// GetMediaURL handles GET /api/v1/media/{key}/url: mints a short-lived
// direct URL without relaying any content. Clients fetch from the
// provider themselves and must tolerate expiry.
func (h *Handler) GetMediaURL(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	key := chi.URLParam(r, "key")

	info, err := h.gateway.Resolve(r.Context(), key)
	if err != nil {
		respondMappedError(w, err)
		return
	}

	respondSuccess(w, http.StatusOK, info, started)
}
