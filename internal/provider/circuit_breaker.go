// PhotoMirror - Synchronized Media Library Mirror and Streaming Gateway
// Copyright 2026 PhotoMirror Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photomirror/photomirror

package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/photomirror/photomirror/internal/logging"
	"github.com/photomirror/photomirror/internal/metrics"
)

// CircuitBreakerClient wraps a Client with a circuit breaker so a
// misbehaving provider does not soak up the retry budget of every
// caller. An open circuit fails fast with ErrUpstreamUnavailable.
//
// The breaker uses real time for its interval and timeout windows;
// tests exercise the wrapped client directly.
type CircuitBreakerClient struct {
	client Client
	cb     *gobreaker.CircuitBreaker[interface{}]
	name   string
}

var _ Client = (*CircuitBreakerClient)(nil)

// NewCircuitBreakerClient wraps client with breaker protection.
// The circuit opens after a 60% failure rate over at least 10 requests,
// stays open for 2 minutes, then admits up to 3 probes half-open.
func NewCircuitBreakerClient(client Client) *CircuitBreakerClient {
	const cbName = "provider-api"

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= 0.6
			if shouldTrip {
				logging.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("Opening provider circuit")
			}
			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)
			logging.Info().
				Str("from", fromStr).
				Str("to", toStr).
				Msg("Provider circuit state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &CircuitBreakerClient{
		client: client,
		cb:     cb,
		name:   cbName,
	}
}

func (c *CircuitBreakerClient) execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := c.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: circuit open", ErrUpstreamUnavailable)
		}
		return nil, err
	}
	return result, nil
}

// ListLibraryPage delegates through the breaker.
func (c *CircuitBreakerClient) ListLibraryPage(ctx context.Context, stateToken, pageToken string) (*DeltaPage, error) {
	result, err := c.execute(func() (interface{}, error) {
		return c.client.ListLibraryPage(ctx, stateToken, pageToken)
	})
	if err != nil {
		return nil, err
	}
	return result.(*DeltaPage), nil
}

// ResolveAccess delegates through the breaker.
func (c *CircuitBreakerClient) ResolveAccess(ctx context.Context, mediaKey string) (*AccessInfo, error) {
	result, err := c.execute(func() (interface{}, error) {
		return c.client.ResolveAccess(ctx, mediaKey)
	})
	if err != nil {
		return nil, err
	}
	return result.(*AccessInfo), nil
}

// Ping delegates through the breaker.
func (c *CircuitBreakerClient) Ping(ctx context.Context) error {
	_, err := c.execute(func() (interface{}, error) {
		return nil, c.client.Ping(ctx)
	})
	return err
}

func stateToString(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
