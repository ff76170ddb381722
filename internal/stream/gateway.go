// PhotoMirror - Synchronized Media Library Mirror and Streaming Gateway
// Copyright 2026 PhotoMirror Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photomirror/photomirror

package stream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/photomirror/photomirror/internal/cache"
	"github.com/photomirror/photomirror/internal/config"
	"github.com/photomirror/photomirror/internal/database"
	"github.com/photomirror/photomirror/internal/logging"
	"github.com/photomirror/photomirror/internal/metrics"
	"github.com/photomirror/photomirror/internal/provider"
)

// Mode selects how the gateway delivers content. It is a closed set:
// exactly Redirect, Full, or FastSeek.
type Mode interface {
	isMode()
	Label() string
}

// Redirect sends the client directly to a short-lived provider URL.
type Redirect struct{}

// Full relays the entire object, forwarding the client's Range header
// verbatim when present.
type Full struct {
	// RangeHeader is the client's Range request header, or "".
	RangeHeader string
}

// FastSeek relays an estimated byte window around a time offset.
type FastSeek struct {
	Offset float64 // seconds from the start
	Window float64 // seconds of playback to cover
}

func (Redirect) isMode() {}
func (Full) isMode()     {}
func (FastSeek) isMode() {}

func (Redirect) Label() string { return "redirect" }
func (Full) Label() string     { return "full" }
func (FastSeek) Label() string { return "fastseek" }

// Upstream describes an opened provider stream ready for relay.
// Body must be closed by the caller (Relay does this).
type Upstream struct {
	Body          io.ReadCloser
	StatusCode    int    // 200 or 206, forwarded to the client
	ContentType   string
	ContentLength int64  // -1 when unknown
	ContentRange  string // forwarded or synthesized, "" when absent
}

// Gateway resolves media through the local index, mints access URLs
// from the provider, and relays content without buffering whole objects.
type Gateway struct {
	db       *database.DB
	client   provider.Client
	cfg      *config.StreamConfig
	relayBuf int

	// urlCache holds minted access URLs until shortly before they
	// expire, so bursts of requests for the same item do not hammer the
	// provider's minting endpoint.
	urlCache *cache.LRU
}

// urlCacheMargin is subtracted from an access URL's expiry before
// caching, so a cached URL is never handed out moments from expiring.
const urlCacheMargin = 30 * time.Second

// NewGateway creates a streaming gateway.
func NewGateway(db *database.DB, client provider.Client, cfg *config.StreamConfig) *Gateway {
	return &Gateway{
		db:       db,
		client:   client,
		cfg:      cfg,
		relayBuf: cfg.ChunkSize,
		urlCache: cache.NewLRU(cfg.URLCacheSize),
	}
}

// Resolve checks the key against the local index and returns an access
// URL, minting a fresh one unless a comfortably-valid URL is cached.
// Returns database.ErrMediaNotFound for keys outside the local mirror.
func (g *Gateway) Resolve(ctx context.Context, mediaKey string) (*provider.AccessInfo, error) {
	if _, err := g.db.GetMediaItem(ctx, mediaKey); err != nil {
		return nil, err
	}
	return g.mintAccess(ctx, mediaKey)
}

// mintAccess returns a usable access URL for a key already known to be in
// the local index, from the cache when a comfortably-valid one exists.
func (g *Gateway) mintAccess(ctx context.Context, mediaKey string) (*provider.AccessInfo, error) {
	if cached, ok := g.urlCache.Get(mediaKey); ok {
		return cached.(*provider.AccessInfo), nil
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.ResolveTimeout)
	defer cancel()

	info, err := g.client.ResolveAccess(ctx, mediaKey)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve access for %s: %w", mediaKey, err)
	}

	g.urlCache.Add(mediaKey, info, info.ExpiresAt.Add(-urlCacheMargin))
	return info, nil
}

// Open resolves the media item and opens the upstream connection for a
// relaying mode (Full or FastSeek). Redirect mode never opens a body;
// callers use Resolve for it.
func (g *Gateway) Open(ctx context.Context, mediaKey string, mode Mode) (*Upstream, error) {
	switch m := mode.(type) {
	case Full:
		info, err := g.Resolve(ctx, mediaKey)
		if err != nil {
			return nil, err
		}
		return g.openUpstream(ctx, info, m.RangeHeader)
	case FastSeek:
		return g.openFastSeek(ctx, mediaKey, m)
	default:
		return nil, fmt.Errorf("%w: mode %q cannot be relayed", ErrInvalidArgument, mode.Label())
	}
}

// openFastSeek estimates the byte window from the indexed item's size and
// duration and opens a ranged upstream request for exactly that window.
// The access descriptor supplies the numbers only when the index has none.
func (g *Gateway) openFastSeek(ctx context.Context, mediaKey string, m FastSeek) (*Upstream, error) {
	item, err := g.db.GetMediaItem(ctx, mediaKey)
	if err != nil {
		return nil, err
	}

	info, err := g.mintAccess(ctx, mediaKey)
	if err != nil {
		return nil, err
	}

	sizeBytes := item.SizeBytes
	if sizeBytes == 0 {
		sizeBytes = info.SizeBytes
	}
	duration := item.DurationSeconds
	if duration == 0 {
		duration = info.DurationSeconds
	}

	window := m.Window
	if window == 0 {
		window = g.cfg.DefaultSeekWindow
	}
	est := SeekEstimator{
		SizeBytes:       sizeBytes,
		DurationSeconds: duration,
	}
	start, end, err := est.ByteRange(m.Offset, window)
	if err != nil {
		return nil, err
	}

	up, err := g.openUpstream(ctx, info, fmt.Sprintf("bytes=%d-%d", start, end))
	if err != nil {
		return nil, err
	}

	// Some origins ignore Range and answer 200 with the whole object.
	// Skip to the window and cap the relay so the client still receives
	// exactly the estimated segment as partial content.
	if up.StatusCode == http.StatusOK {
		if _, err := io.CopyN(io.Discard, up.Body, start); err != nil {
			_ = up.Body.Close()
			return nil, fmt.Errorf("%w: failed to skip to byte %d: %v", provider.ErrUpstreamUnavailable, start, err)
		}
		length := end - start + 1
		up.Body = &boundedBody{r: io.LimitReader(up.Body, length), closer: up.Body}
		up.StatusCode = http.StatusPartialContent
		up.ContentLength = length
		up.ContentRange = fmt.Sprintf("bytes %d-%d/%d", start, end, sizeBytes)
	}
	return up, nil
}

// boundedBody caps reads at the estimated window while closing the real
// upstream body underneath.
type boundedBody struct {
	r      io.Reader
	closer io.Closer
}

func (b *boundedBody) Read(p []byte) (int, error) { return b.r.Read(p) }
func (b *boundedBody) Close() error               { return b.closer.Close() }

// openUpstream issues the GET against the minted URL. rangeHeader is
// forwarded verbatim when non-empty.
func (g *Gateway) openUpstream(ctx context.Context, info *provider.AccessInfo, rangeHeader string) (*Upstream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, info.URL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build upstream request: %w", err)
	}
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}

	// The default transport streams response bodies; no timeout on the
	// client because relays legitimately run for the whole playback.
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrUpstreamUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: upstream status %d", provider.ErrUpstreamUnavailable, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = info.ContentType
	}

	return &Upstream{
		Body:          resp.Body,
		StatusCode:    resp.StatusCode,
		ContentType:   contentType,
		ContentLength: resp.ContentLength,
		ContentRange:  resp.Header.Get("Content-Range"),
	}, nil
}

// Relay copies the upstream body to the client in fixed-size chunks,
// flushing after each write so playback starts before the transfer
// completes. It stops as soon as the client context is canceled and
// always closes the upstream body.
//
// Headers and the status code must not have been written yet; Relay
// writes them from the Upstream fields.
func (g *Gateway) Relay(ctx context.Context, w http.ResponseWriter, up *Upstream, mode Mode) (int64, error) {
	defer func() {
		if err := up.Body.Close(); err != nil {
			logging.Warn().Err(err).Msg("Failed to close upstream body")
		}
	}()

	metrics.ActiveStreams.Inc()
	defer metrics.ActiveStreams.Dec()

	if up.ContentType != "" {
		w.Header().Set("Content-Type", up.ContentType)
	}
	if up.ContentLength >= 0 {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", up.ContentLength))
	}
	if up.ContentRange != "" {
		w.Header().Set("Content-Range", up.ContentRange)
	}
	w.Header().Set("Accept-Ranges", "bytes")
	w.WriteHeader(up.StatusCode)

	flusher, _ := w.(http.Flusher)
	buf := make([]byte, g.relayBuf)

	var relayed int64
	for {
		if err := ctx.Err(); err != nil {
			metrics.StreamErrors.WithLabelValues(mode.Label(), "client_canceled").Inc()
			return relayed, fmt.Errorf("client disconnected: %w", err)
		}

		n, readErr := up.Body.Read(buf)
		if n > 0 {
			written, writeErr := w.Write(buf[:n])
			relayed += int64(written)
			metrics.StreamBytesRelayed.WithLabelValues(mode.Label()).Add(float64(written))
			if writeErr != nil {
				metrics.StreamErrors.WithLabelValues(mode.Label(), "client_write").Inc()
				return relayed, fmt.Errorf("client write failed: %w", writeErr)
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				return relayed, nil
			}
			metrics.StreamErrors.WithLabelValues(mode.Label(), "upstream_read").Inc()
			return relayed, fmt.Errorf("upstream read failed: %w", readErr)
		}
	}
}
