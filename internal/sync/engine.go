// PhotoMirror - Synchronized Media Library Mirror and Streaming Gateway
// Copyright 2026 PhotoMirror Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photomirror/photomirror

// Package sync drives the local index toward the provider's library
// state: paged delta enumeration, idempotent application, and durable
// resume cursors.
package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/photomirror/photomirror/internal/database"
	"github.com/photomirror/photomirror/internal/logging"
	"github.com/photomirror/photomirror/internal/metrics"
	"github.com/photomirror/photomirror/internal/models"
	"github.com/photomirror/photomirror/internal/provider"
)

// ErrSyncInFlight is returned when a sync run is requested while another
// run holds the engine. Callers surface it as a conflict, not a failure.
var ErrSyncInFlight = errors.New("sync already in progress")

// Engine coordinates sync runs. At most one run executes at a time;
// concurrent requests fail fast with ErrSyncInFlight instead of queuing.
type Engine struct {
	db     *database.DB
	client provider.Client

	// mu serializes runs. TryLock keeps the conflict path non-blocking.
	mu sync.Mutex

	// lastSummary guards its own access; it outlives the run lock.
	summaryMu   sync.RWMutex
	lastSummary *models.SyncSummary
}

// NewEngine creates a sync engine.
func NewEngine(db *database.DB, client provider.Client) *Engine {
	return &Engine{
		db:     db,
		client: client,
	}
}

// LastSummary returns the summary of the most recent completed run, or
// nil when no run has completed since startup.
func (e *Engine) LastSummary() *models.SyncSummary {
	e.summaryMu.RLock()
	defer e.summaryMu.RUnlock()
	return e.lastSummary
}

// Sync performs one full enumeration pass against the provider.
//
// The run resumes from the persisted page token, so a crash or error
// mid-pass costs only the unfinished page. Each page is applied in
// order: upserts, then tombstone deletes, then the cursor update. Only
// after the page is durable does the loop advance, which makes re-running
// any prefix of a pass a no-op.
func (e *Engine) Sync(ctx context.Context) (*models.SyncSummary, error) {
	if !e.mu.TryLock() {
		metrics.SyncRuns.WithLabelValues("conflict").Inc()
		return nil, ErrSyncInFlight
	}
	defer e.mu.Unlock()

	runID := uuid.New().String()
	start := time.Now()
	log := logging.Logger().With().Str("run_id", runID).Logger()

	state, err := e.db.GetSyncState(ctx)
	if err != nil {
		metrics.SyncRuns.WithLabelValues("failure").Inc()
		return nil, err
	}

	log.Info().
		Str("state_token", state.StateToken).
		Bool("resuming", state.PageToken != "").
		Bool("initial", !state.InitComplete).
		Msg("Sync run started")

	summary := &models.SyncSummary{RunID: runID}
	pageToken := state.PageToken

	for {
		if err := ctx.Err(); err != nil {
			metrics.SyncRuns.WithLabelValues("failure").Inc()
			return nil, fmt.Errorf("sync canceled: %w", err)
		}

		page, err := e.client.ListLibraryPage(ctx, state.StateToken, pageToken)
		if err != nil {
			metrics.SyncRuns.WithLabelValues("failure").Inc()
			return nil, fmt.Errorf("failed to list library page: %w", err)
		}

		if err := e.applyPage(ctx, page); err != nil {
			metrics.SyncRuns.WithLabelValues("failure").Inc()
			return nil, err
		}

		summary.Pages++
		summary.Upserted += len(page.Items)
		summary.Removed += len(page.DeletedKeys)
		metrics.SyncPagesApplied.Inc()
		metrics.SyncItemsUpserted.Add(float64(len(page.Items)))
		metrics.SyncItemsDeleted.Add(float64(len(page.DeletedKeys)))

		if page.Terminal() {
			if err := e.completePass(ctx, page); err != nil {
				metrics.SyncRuns.WithLabelValues("failure").Inc()
				return nil, err
			}
			break
		}

		// Persist the cursor only after the page's rows are durable, so
		// a resume never skips an unapplied page.
		pageToken = page.NextPageToken
		if err := e.db.SetSyncState(ctx, models.SyncStatePatch{PageToken: &pageToken}); err != nil {
			metrics.SyncRuns.WithLabelValues("failure").Inc()
			return nil, err
		}
	}

	total, err := e.db.CountMediaItems(ctx)
	if err != nil {
		metrics.SyncRuns.WithLabelValues("failure").Inc()
		return nil, err
	}
	summary.Total = total
	summary.Duration = time.Since(start)

	metrics.SyncRuns.WithLabelValues("success").Inc()
	metrics.SyncDuration.Observe(summary.Duration.Seconds())
	metrics.CatalogSize.Set(float64(total))

	e.summaryMu.Lock()
	e.lastSummary = summary
	e.summaryMu.Unlock()

	log.Info().
		Int("pages", summary.Pages).
		Int("upserted", summary.Upserted).
		Int("removed", summary.Removed).
		Int64("total", summary.Total).
		Dur("duration", summary.Duration).
		Msg("Sync run completed")

	return summary, nil
}

// applyPage lands one page of changes: upserts first, then deletes.
func (e *Engine) applyPage(ctx context.Context, page *provider.DeltaPage) error {
	if err := e.db.UpsertMediaItems(ctx, page.Items); err != nil {
		return fmt.Errorf("failed to apply page upserts: %w", err)
	}
	if err := e.db.DeleteMediaItems(ctx, page.DeletedKeys); err != nil {
		return fmt.Errorf("failed to apply page tombstones: %w", err)
	}
	return nil
}

// completePass advances the enumeration epoch at the terminal page:
// adopt the new state token, clear the resume cursor, and mark the
// initial mirror complete.
func (e *Engine) completePass(ctx context.Context, page *provider.DeltaPage) error {
	empty := ""
	done := true
	patch := models.SyncStatePatch{
		PageToken:    &empty,
		InitComplete: &done,
	}
	if page.NewStateToken != "" {
		patch.StateToken = &page.NewStateToken
	}
	if err := e.db.SetSyncState(ctx, patch); err != nil {
		return fmt.Errorf("failed to complete sync pass: %w", err)
	}
	return nil
}
