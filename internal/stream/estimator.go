// PhotoMirror - Synchronized Media Library Mirror and Streaming Gateway
// Copyright 2026 PhotoMirror Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photomirror/photomirror

// Package stream implements the streaming gateway: byte-range seek
// estimation and passthrough relay of provider content to clients.
package stream

import (
	"errors"
	"fmt"
	"math"
)

// Estimator errors. Handlers map these onto HTTP status codes.
var (
	// ErrInvalidMedia marks an item whose stored metadata cannot support
	// seek estimation (non-positive duration or size).
	ErrInvalidMedia = errors.New("media not seekable")

	// ErrInvalidArgument marks a malformed seek request.
	ErrInvalidArgument = errors.New("invalid seek argument")

	// ErrOutOfRange marks a seek offset past the end of the media.
	ErrOutOfRange = errors.New("seek offset out of range")
)

// SeekEstimator maps a time offset within a media item to an estimated
// byte range, assuming a constant overall byte rate. The estimate is
// deliberately coarse: containers are not parsed, so players seeking
// through the gateway get a window that starts at or before the target
// and must discard leading bytes themselves.
type SeekEstimator struct {
	SizeBytes       int64
	DurationSeconds float64
}

// ByteRange estimates the inclusive byte range covering window seconds
// of playback starting at offset seconds.
//
// The start byte is floor(rate*offset) clamped to [0, size-1]; the end
// byte is start+ceil(rate*window), capped at the final byte. offset ==
// duration is allowed and yields a range at the very end of the file.
func (e SeekEstimator) ByteRange(offset, window float64) (start, end int64, err error) {
	if e.DurationSeconds <= 0 || e.SizeBytes <= 0 {
		return 0, 0, fmt.Errorf("%w: size=%d duration=%g", ErrInvalidMedia, e.SizeBytes, e.DurationSeconds)
	}
	if offset < 0 {
		return 0, 0, fmt.Errorf("%w: negative offset %g", ErrInvalidArgument, offset)
	}
	if window <= 0 {
		return 0, 0, fmt.Errorf("%w: non-positive window %g", ErrInvalidArgument, window)
	}
	if offset > e.DurationSeconds {
		return 0, 0, fmt.Errorf("%w: offset %g exceeds duration %g", ErrOutOfRange, offset, e.DurationSeconds)
	}

	rate := float64(e.SizeBytes) / e.DurationSeconds

	start = int64(math.Floor(rate * offset))
	if start > e.SizeBytes-1 {
		start = e.SizeBytes - 1
	}
	if start < 0 {
		start = 0
	}

	end = start + int64(math.Ceil(rate*window))
	if end > e.SizeBytes-1 {
		end = e.SizeBytes - 1
	}

	return start, end, nil
}
