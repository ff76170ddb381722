// PhotoMirror - Synchronized Media Library Mirror and Streaming Gateway
// Copyright 2026 PhotoMirror Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photomirror/photomirror

// Package api provides the HTTP surface of PhotoMirror on the Chi
// router: catalog queries, streaming delivery, sync control, and health.
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/photomirror/photomirror/internal/config"
	"github.com/photomirror/photomirror/internal/database"
	"github.com/photomirror/photomirror/internal/logging"
	"github.com/photomirror/photomirror/internal/models"
	"github.com/photomirror/photomirror/internal/provider"
	"github.com/photomirror/photomirror/internal/stream"
	syncengine "github.com/photomirror/photomirror/internal/sync"
)

// Handler carries the dependencies for all API endpoints.
type Handler struct {
	db      *database.DB
	engine  *syncengine.Engine
	gateway *stream.Gateway
	client  provider.Client
	cfg     *config.Config
}

// NewHandler creates the API handler set.
func NewHandler(db *database.DB, engine *syncengine.Engine, gateway *stream.Gateway, client provider.Client, cfg *config.Config) *Handler {
	return &Handler{
		db:      db,
		engine:  engine,
		gateway: gateway,
		client:  client,
		cfg:     cfg,
	}
}

// sanitizeLogValue strips control characters so request-derived strings
// cannot forge log lines.
func sanitizeLogValue(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			result.WriteString(fmt.Sprintf("\\x%02x", r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// respondJSON sends a JSON response envelope.
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// respondSuccess wraps data in the success envelope.
func respondSuccess(w http.ResponseWriter, status int, data any, started time.Time) {
	respondJSON(w, status, &models.APIResponse{
		Status: "success",
		Data:   data,
		Metadata: models.Metadata{
			Timestamp:   time.Now().UTC(),
			QueryTimeMS: time.Since(started).Milliseconds(),
		},
	})
}

// respondError sends an error envelope and logs the cause.
func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Error().
			Str("code", sanitizeLogValue(code)).
			Str("error", sanitizeLogValue(err.Error())).
			Msg("API error")
	}

	respondJSON(w, status, &models.APIResponse{
		Status: "error",
		Metadata: models.Metadata{
			Timestamp: time.Now().UTC(),
		},
		Error: &models.APIError{
			Code:    code,
			Message: message,
		},
	})
}

// respondMappedError translates the domain error taxonomy onto HTTP.
func respondMappedError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrMediaNotFound), errors.Is(err, provider.ErrMediaNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", "media item not found", nil)
	case errors.Is(err, syncengine.ErrSyncInFlight):
		respondError(w, http.StatusConflict, "SYNC_IN_FLIGHT", "a sync run is already in progress", nil)
	case errors.Is(err, stream.ErrInvalidArgument):
		respondError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error(), nil)
	case errors.Is(err, stream.ErrOutOfRange):
		respondError(w, http.StatusRequestedRangeNotSatisfiable, "OUT_OF_RANGE", err.Error(), nil)
	case errors.Is(err, stream.ErrInvalidMedia):
		respondError(w, http.StatusUnprocessableEntity, "INVALID_MEDIA", err.Error(), nil)
	case errors.Is(err, provider.ErrUpstreamUnavailable):
		respondError(w, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", "remote library is unavailable", err)
	default:
		respondError(w, http.StatusInternalServerError, "STORAGE_ERROR", "internal error", err)
	}
}

// getIntParam reads an integer query parameter with a fallback.
func getIntParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
