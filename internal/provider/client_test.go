// PhotoMirror - Synchronized Media Library Mirror and Streaming Gateway
// Copyright 2026 PhotoMirror Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photomirror/photomirror

package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/photomirror/photomirror/internal/config"
)

func testClientConfig(serverURL string) *config.ProviderConfig {
	return &config.ProviderConfig{
		URL:           serverURL,
		AuthToken:     "test-token",
		Timeout:       5 * time.Second,
		RetryAttempts: 3,
		RetryBackoff:  time.Millisecond,
		RateLimit:     1000, // effectively unlimited in tests
	}
}

func TestListLibraryPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/library:delta" {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Missing auth header, got %q", got)
		}

		var req listRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode request body: %v", err)
		}
		if req.StateToken != "st-1" || req.PageToken != "pt-2" || req.PageSize != 100 {
			t.Errorf("Unexpected request body: %+v", req)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"items": [{"media_key": "mk-1", "dedup_key": "dk-1", "type": "photo",
				"file_name": "a.jpg", "size_bytes": 100,
				"capture_timestamp": 1, "creation_timestamp": 2}],
			"deleted_keys": ["mk-gone"],
			"next_page_token": "pt-3"
		}`))
	}))
	defer server.Close()

	client := NewHTTPClient(testClientConfig(server.URL), 100)

	page, err := client.ListLibraryPage(context.Background(), "st-1", "pt-2")
	if err != nil {
		t.Fatalf("ListLibraryPage failed: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].MediaKey != "mk-1" {
		t.Errorf("Unexpected items: %+v", page.Items)
	}
	if len(page.DeletedKeys) != 1 || page.DeletedKeys[0] != "mk-gone" {
		t.Errorf("Unexpected deleted keys: %v", page.DeletedKeys)
	}
	if page.Terminal() {
		t.Error("Page with next_page_token should not be terminal")
	}
}

func TestListLibraryPageTerminal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items": [], "new_state_token": "st-2"}`))
	}))
	defer server.Close()

	client := NewHTTPClient(testClientConfig(server.URL), 0)

	page, err := client.ListLibraryPage(context.Background(), "", "")
	if err != nil {
		t.Fatalf("ListLibraryPage failed: %v", err)
	}
	if !page.Terminal() {
		t.Error("Page without next_page_token should be terminal")
	}
	if page.NewStateToken != "st-2" {
		t.Errorf("Expected new state token st-2, got %q", page.NewStateToken)
	}
}

func TestResolveAccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/media/mk-1/access" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"url": "https://cdn.example.com/blob/abc",
			"expires_at": "2026-01-01T00:05:00Z",
			"size_bytes": 3600000000,
			"duration_seconds": 7200,
			"content_type": "video/mp4"
		}`))
	}))
	defer server.Close()

	client := NewHTTPClient(testClientConfig(server.URL), 0)

	info, err := client.ResolveAccess(context.Background(), "mk-1")
	if err != nil {
		t.Fatalf("ResolveAccess failed: %v", err)
	}
	if info.URL != "https://cdn.example.com/blob/abc" {
		t.Errorf("Unexpected URL: %s", info.URL)
	}
	if info.SizeBytes != 3600000000 || info.DurationSeconds != 7200 {
		t.Errorf("Unexpected size/duration: %d %f", info.SizeBytes, info.DurationSeconds)
	}
}

func TestResolveAccessNotFound(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewHTTPClient(testClientConfig(server.URL), 0)

	_, err := client.ResolveAccess(context.Background(), "missing")
	if !errors.Is(err, ErrMediaNotFound) {
		t.Errorf("Expected ErrMediaNotFound, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("Not-found must not be retried, got %d calls", calls.Load())
	}
}

func TestRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items": []}`))
	}))
	defer server.Close()

	client := NewHTTPClient(testClientConfig(server.URL), 0)

	if _, err := client.ListLibraryPage(context.Background(), "", ""); err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls.Load())
	}
}

func TestRetryBudgetExhausted(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewHTTPClient(testClientConfig(server.URL), 0)

	_, err := client.ListLibraryPage(context.Background(), "", "")
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Errorf("Expected ErrUpstreamUnavailable, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("Expected retry budget of 3 attempts, got %d", calls.Load())
	}
}

func TestRetryRespectsContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := testClientConfig(server.URL)
	cfg.RetryBackoff = 10 * time.Second
	client := NewHTTPClient(cfg, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.ListLibraryPage(ctx, "", "")
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Errorf("Expected ErrUpstreamUnavailable, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Cancellation should interrupt backoff, took %v", elapsed)
	}
}

func TestClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`state token expired`))
	}))
	defer server.Close()

	client := NewHTTPClient(testClientConfig(server.URL), 0)

	_, err := client.ListLibraryPage(context.Background(), "stale", "")
	if err == nil {
		t.Fatal("Expected error for 400 response")
	}
	if errors.Is(err, ErrUpstreamUnavailable) {
		t.Errorf("Client errors must not map to upstream unavailability: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("Client errors must not be retried, got %d calls", calls.Load())
	}
}
