// PhotoMirror - Synchronized Media Library Mirror and Streaming Gateway
// Copyright 2026 PhotoMirror Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photomirror/photomirror

package services

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"
)

type fakeScheduler struct {
	started  atomic.Bool
	stopped  atomic.Bool
	startErr error
}

func (f *fakeScheduler) Start(ctx context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started.Store(true)
	return nil
}

func (f *fakeScheduler) Stop() error {
	f.stopped.Store(true)
	return nil
}

func TestSyncServiceLifecycle(t *testing.T) {
	sched := &fakeScheduler{}
	svc := NewSyncService(sched)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	deadline := time.After(2 * time.Second)
	for !sched.started.Load() {
		select {
		case <-deadline:
			t.Fatal("Scheduler never started")
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	err := <-done
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if !sched.stopped.Load() {
		t.Error("Scheduler was not stopped on shutdown")
	}
}

func TestSyncServiceStartFailure(t *testing.T) {
	startErr := errors.New("boom")
	svc := NewSyncService(&fakeScheduler{startErr: startErr})

	if err := svc.Serve(context.Background()); !errors.Is(err, startErr) {
		t.Errorf("Expected start error, got %v", err)
	}
}

type fakeHTTPServer struct {
	listenErr error
	closed    chan struct{}
	shutdown  atomic.Bool
}

func newFakeHTTPServer(listenErr error) *fakeHTTPServer {
	return &fakeHTTPServer{listenErr: listenErr, closed: make(chan struct{})}
}

func (f *fakeHTTPServer) ListenAndServe() error {
	if f.listenErr != nil {
		return f.listenErr
	}
	<-f.closed
	return http.ErrServerClosed
}

func (f *fakeHTTPServer) Shutdown(ctx context.Context) error {
	f.shutdown.Store(true)
	close(f.closed)
	return nil
}

func TestHTTPServerServiceGracefulShutdown(t *testing.T) {
	server := newFakeHTTPServer(nil)
	svc := NewHTTPServerService(server, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Service did not shut down")
	}
	if !server.shutdown.Load() {
		t.Error("Shutdown was never called")
	}
}

func TestHTTPServerServiceListenFailure(t *testing.T) {
	listenErr := errors.New("address in use")
	svc := NewHTTPServerService(newFakeHTTPServer(listenErr), time.Second)

	if err := svc.Serve(context.Background()); !errors.Is(err, listenErr) {
		t.Errorf("Expected listen error, got %v", err)
	}
}

func TestServiceNames(t *testing.T) {
	if got := NewSyncService(&fakeScheduler{}).String(); got != "sync-scheduler" {
		t.Errorf("Unexpected sync service name %q", got)
	}
	if got := NewHTTPServerService(newFakeHTTPServer(nil), 0).String(); got != "http-server" {
		t.Errorf("Unexpected http service name %q", got)
	}
}
