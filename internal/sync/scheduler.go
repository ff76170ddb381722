// PhotoMirror - Synchronized Media Library Mirror and Streaming Gateway
// Copyright 2026 PhotoMirror Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photomirror/photomirror

package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/photomirror/photomirror/internal/logging"
)

// Scheduler triggers periodic sync runs. Manual runs through the API
// share the engine's single-flight lock, so an automatic run that
// collides with a manual one is skipped rather than queued.
type Scheduler struct {
	engine   *Engine
	interval time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler. An interval of 0 disables
// automatic runs; Start then becomes a no-op.
func NewScheduler(engine *Engine, interval time.Duration) *Scheduler {
	return &Scheduler{
		engine:   engine,
		interval: interval,
	}
}

// Start launches the background loop. The first run fires immediately
// so a fresh deployment mirrors the library without waiting a full
// interval.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	if s.interval <= 0 {
		logging.Info().Msg("Periodic sync disabled")
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	s.wg.Add(1)
	go s.loop(ctx)

	logging.Info().Dur("interval", s.interval).Msg("Sync scheduler started")
	return nil
}

// Stop halts the loop and waits for any in-progress run to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	logging.Info().Msg("Sync scheduler stopped")
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	_, err := s.engine.Sync(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrSyncInFlight):
		logging.Debug().Msg("Skipping scheduled sync, run already in flight")
	case errors.Is(err, context.Canceled):
	default:
		logging.Error().Err(err).Msg("Scheduled sync failed")
	}
}
