// PhotoMirror - Synchronized Media Library Mirror and Streaming Gateway
// Copyright 2026 PhotoMirror Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photomirror/photomirror

package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "req-42")
	if got := RequestIDFromContext(ctx); got != "req-42" {
		t.Errorf("Expected req-42, got %q", got)
	}
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Errorf("Expected empty id from bare context, got %q", got)
	}
}

func TestCtxAttachesRequestID(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	t.Cleanup(func() { Init(DefaultConfig()) })

	ctx := ContextWithRequestID(context.Background(), "req-99")
	Ctx(ctx).Warn().Str("media_key", "mk-1").Msg("stream ended early")

	line := buf.String()
	if !strings.Contains(line, `"request_id":"req-99"`) {
		t.Errorf("Expected request_id in log line, got %s", line)
	}
	if !strings.Contains(line, `"level":"warn"`) {
		t.Errorf("Expected warn level, got %s", line)
	}
}

func TestCtxWithoutRequestID(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	t.Cleanup(func() { Init(DefaultConfig()) })

	Ctx(context.Background()).Info().Msg("no request scope")

	if strings.Contains(buf.String(), "request_id") {
		t.Errorf("Expected no request_id field, got %s", buf.String())
	}
}
