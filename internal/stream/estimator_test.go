// PhotoMirror - Synchronized Media Library Mirror and Streaming Gateway
// Copyright 2026 PhotoMirror Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photomirror/photomirror

package stream

import (
	"errors"
	"testing"
)

func TestSeekEstimatorByteRange(t *testing.T) {
	tests := []struct {
		name      string
		size      int64
		duration  float64
		offset    float64
		window    float64
		wantStart int64
		wantEnd   int64
	}{
		{
			name:     "two hour video midpoint",
			size:     3_600_000_000,
			duration: 7200,
			offset:   1800,
			window:   30,
			// rate = 500000 B/s
			wantStart: 900_000_000,
			wantEnd:   915_000_000,
		},
		{
			name:      "start of file",
			size:      1000,
			duration:  10,
			offset:    0,
			window:    1,
			wantStart: 0,
			wantEnd:   100,
		},
		{
			name:     "offset at exact duration clamps to final byte",
			size:     1000,
			duration: 10,
			offset:   10,
			window:   5,
			// floor(100*10)=1000 clamped to size-1
			wantStart: 999,
			wantEnd:   999,
		},
		{
			name:      "window past end is capped",
			size:      1000,
			duration:  10,
			offset:    9,
			window:    60,
			wantStart: 900,
			wantEnd:   999,
		},
		{
			name:     "fractional rate rounds window up",
			size:     1001,
			duration: 3,
			offset:   1,
			window:   1,
			// rate = 333.67; start = floor(333.67) = 333, end = 333+ceil(333.67) = 667
			wantStart: 333,
			wantEnd:   667,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			est := SeekEstimator{SizeBytes: tt.size, DurationSeconds: tt.duration}
			start, end, err := est.ByteRange(tt.offset, tt.window)
			if err != nil {
				t.Fatalf("ByteRange failed: %v", err)
			}
			if start != tt.wantStart || end != tt.wantEnd {
				t.Errorf("ByteRange() = (%d, %d), want (%d, %d)", start, end, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestSeekEstimatorErrors(t *testing.T) {
	tests := []struct {
		name     string
		size     int64
		duration float64
		offset   float64
		window   float64
		wantErr  error
	}{
		{
			name: "zero duration", size: 1000, duration: 0,
			offset: 0, window: 1, wantErr: ErrInvalidMedia,
		},
		{
			name: "negative duration", size: 1000, duration: -5,
			offset: 0, window: 1, wantErr: ErrInvalidMedia,
		},
		{
			name: "zero size", size: 0, duration: 10,
			offset: 0, window: 1, wantErr: ErrInvalidMedia,
		},
		{
			name: "negative offset", size: 1000, duration: 10,
			offset: -1, window: 1, wantErr: ErrInvalidArgument,
		},
		{
			name: "zero window", size: 1000, duration: 10,
			offset: 1, window: 0, wantErr: ErrInvalidArgument,
		},
		{
			name: "negative window", size: 1000, duration: 10,
			offset: 1, window: -3, wantErr: ErrInvalidArgument,
		},
		{
			name: "offset past duration", size: 1000, duration: 10,
			offset: 10.01, window: 1, wantErr: ErrOutOfRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			est := SeekEstimator{SizeBytes: tt.size, DurationSeconds: tt.duration}
			_, _, err := est.ByteRange(tt.offset, tt.window)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ByteRange() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
