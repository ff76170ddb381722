// PhotoMirror - Synchronized Media Library Mirror and Streaming Gateway
// Copyright 2026 PhotoMirror Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photomirror/photomirror

// Package provider implements the client for the remote media library
// API: paged delta listing for the sync engine and short-lived access-URL
// minting for the streaming gateway. All calls carry a bounded retry
// policy, a rate limiter on listing, and circuit breaker protection.
package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/photomirror/photomirror/internal/config"
	"github.com/photomirror/photomirror/internal/logging"
	"github.com/photomirror/photomirror/internal/metrics"
	"github.com/photomirror/photomirror/internal/models"
)

// ErrUpstreamUnavailable is returned when the provider cannot be reached
// after the retry budget is exhausted, returns a server error, or the
// circuit breaker is open.
var ErrUpstreamUnavailable = errors.New("upstream provider unavailable")

// ErrMediaNotFound is returned when the provider does not know the
// requested media key.
var ErrMediaNotFound = errors.New("provider: media not found")

// DeltaPage is one page of library changes since the client's cursor.
// NewStateToken is set only on the terminal page of an enumeration pass.
type DeltaPage struct {
	Items         []models.MediaItem `json:"items"`
	DeletedKeys   []string           `json:"deleted_keys"`
	NextPageToken string             `json:"next_page_token"`
	NewStateToken string             `json:"new_state_token"`
}

// Terminal reports whether this page completes the enumeration pass.
func (p *DeltaPage) Terminal() bool {
	return p.NextPageToken == ""
}

// AccessInfo is a freshly minted, short-lived direct content URL.
type AccessInfo struct {
	URL             string    `json:"url"`
	ExpiresAt       time.Time `json:"expires_at"`
	SizeBytes       int64     `json:"size_bytes"`
	DurationSeconds float64   `json:"duration_seconds"`
	ContentType     string    `json:"content_type"`
}

// Client is the remote-library API surface consumed by the sync engine
// and the streaming gateway. CircuitBreakerClient also satisfies it.
type Client interface {
	ListLibraryPage(ctx context.Context, stateToken, pageToken string) (*DeltaPage, error)
	ResolveAccess(ctx context.Context, mediaKey string) (*AccessInfo, error)
	Ping(ctx context.Context) error
}

// HTTPClient talks to the provider's REST API.
type HTTPClient struct {
	baseURL    string
	authToken  string
	pageSize   int
	httpClient *http.Client

	retryAttempts int
	retryBackoff  time.Duration

	// limiter paces delta-listing calls; access minting is latency
	// sensitive and not limited.
	limiter *rate.Limiter
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a provider client from configuration.
func NewHTTPClient(cfg *config.ProviderConfig, pageSize int) *HTTPClient {
	return &HTTPClient{
		baseURL:       strings.TrimSuffix(cfg.URL, "/"),
		authToken:     cfg.AuthToken,
		pageSize:      pageSize,
		retryAttempts: cfg.RetryAttempts,
		retryBackoff:  cfg.RetryBackoff,
		limiter:       rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// listRequest is the delta-listing request body. The page size is a
// hint; the provider may return fewer or more items per page.
type listRequest struct {
	StateToken string `json:"state_token"`
	PageToken  string `json:"page_token"`
	PageSize   int    `json:"page_size,omitempty"`
}

// ListLibraryPage fetches one page of library changes. An empty state
// token requests a full enumeration from the beginning; an empty page
// token starts a fresh pass.
func (c *HTTPClient) ListLibraryPage(ctx context.Context, stateToken, pageToken string) (*DeltaPage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait canceled: %w", err)
	}

	body, err := json.Marshal(listRequest{
		StateToken: stateToken,
		PageToken:  pageToken,
		PageSize:   c.pageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode list request: %w", err)
	}

	var page DeltaPage
	err = c.doWithRetry(ctx, "list_page", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/v1/library:delta", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to build list request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		page = DeltaPage{}
		return c.send(req, &page)
	})
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// ResolveAccess mints a short-lived direct URL for one media item.
func (c *HTTPClient) ResolveAccess(ctx context.Context, mediaKey string) (*AccessInfo, error) {
	var info AccessInfo
	err := c.doWithRetry(ctx, "resolve_access", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			c.baseURL+"/v1/media/"+url.PathEscape(mediaKey)+"/access", http.NoBody)
		if err != nil {
			return fmt.Errorf("failed to build access request: %w", err)
		}

		info = AccessInfo{}
		return c.send(req, &info)
	})
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// Ping verifies connectivity to the provider.
func (c *HTTPClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/ping", http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to build ping request: %w", err)
	}
	return c.send(req, nil)
}

// send executes one request and decodes the JSON response into out when
// non-nil. Status codes map onto the package error taxonomy.
func (c *HTTPClient) send(req *http.Request, out interface{}) error {
	req.Header.Set("Authorization", "Bearer "+c.authToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
		// Fall through to decode.
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrMediaNotFound, req.URL.Path)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrUpstreamUnavailable, resp.StatusCode)
	default:
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if readErr != nil {
			return fmt.Errorf("provider returned status %d (failed to read body)", resp.StatusCode)
		}
		return fmt.Errorf("provider returned status %d: %s", resp.StatusCode, string(body))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode provider response: %w", err)
	}
	return nil
}

// doWithRetry runs fn with the configured bounded retry policy. Only
// upstream-availability failures are retried; not-found responses and
// context cancellation return immediately.
func (c *HTTPClient) doWithRetry(ctx context.Context, operation string, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= c.retryAttempts; attempt++ {
		start := time.Now()
		err := fn(ctx)
		metrics.RecordProviderRequest(operation, time.Since(start), err)

		if err == nil {
			return nil
		}
		lastErr = err

		if !errors.Is(err, ErrUpstreamUnavailable) {
			return err
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, ctx.Err())
		}
		if attempt == c.retryAttempts {
			break
		}

		backoff := c.retryBackoff * time.Duration(attempt)
		logging.Warn().
			Err(err).
			Str("operation", operation).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Msg("Provider request failed, retrying")

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, ctx.Err())
		}
	}
	return fmt.Errorf("retries exhausted after %d attempts: %w", c.retryAttempts, lastErr)
}
