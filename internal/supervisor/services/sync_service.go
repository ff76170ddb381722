// PhotoMirror - Synchronized Media Library Mirror and Streaming Gateway
// Copyright 2026 PhotoMirror Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photomirror/photomirror

// Package services adapts PhotoMirror components to suture's Serve
// lifecycle.
package services

import (
	"context"
	"fmt"
)

// StartStopper matches the sync scheduler's lifecycle.
type StartStopper interface {
	Start(ctx context.Context) error
	Stop() error
}

// SyncService runs the sync scheduler under supervision: Start on
// entry, block until cancellation, Stop on the way out. The scheduler
// owns its goroutines; this wrapper only sequences the transitions.
type SyncService struct {
	scheduler StartStopper
	name      string
}

// NewSyncService wraps the scheduler as a supervised service.
func NewSyncService(scheduler StartStopper) *SyncService {
	return &SyncService{
		scheduler: scheduler,
		name:      "sync-scheduler",
	}
}

// Serve implements suture.Service.
func (s *SyncService) Serve(ctx context.Context) error {
	if err := s.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("sync scheduler start failed: %w", err)
	}

	<-ctx.Done()

	if err := s.scheduler.Stop(); err != nil {
		return fmt.Errorf("sync scheduler stop failed: %w", err)
	}
	return ctx.Err()
}

// String identifies the service in supervisor logs.
func (s *SyncService) String() string {
	return s.name
}
