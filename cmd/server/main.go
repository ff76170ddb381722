// PhotoMirror - Synchronized Media Library Mirror and Streaming Gateway
// Copyright 2026 PhotoMirror Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photomirror/photomirror

// Command server runs the PhotoMirror daemon: a local mirror of a remote
// media library plus a streaming gateway, supervised as a suture tree.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/photomirror/photomirror/internal/api"
	"github.com/photomirror/photomirror/internal/config"
	"github.com/photomirror/photomirror/internal/database"
	"github.com/photomirror/photomirror/internal/logging"
	"github.com/photomirror/photomirror/internal/provider"
	"github.com/photomirror/photomirror/internal/stream"
	"github.com/photomirror/photomirror/internal/supervisor"
	"github.com/photomirror/photomirror/internal/supervisor/services"
	syncengine "github.com/photomirror/photomirror/internal/sync"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("provider_url", cfg.Provider.URL).
		Str("db_path", cfg.Database.Path).
		Dur("sync_interval", cfg.Sync.Interval).
		Msg("Starting PhotoMirror")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	// Provider client: HTTP transport wrapped by the circuit breaker.
	client := provider.NewCircuitBreakerClient(
		provider.NewHTTPClient(&cfg.Provider, cfg.Sync.PageSize))
	if err := client.Ping(context.Background()); err != nil {
		logging.Warn().Err(err).Msg("Provider unreachable at startup (sync will retry)")
	} else {
		logging.Info().Msg("Connected to provider")
	}

	engine := syncengine.NewEngine(db, client)
	scheduler := syncengine.NewScheduler(engine, cfg.Sync.Interval)
	gateway := stream.NewGateway(db, client, &cfg.Stream)

	handler := api.NewHandler(db, engine, gateway, client, cfg)
	router := api.NewRouter(handler, &cfg.Server)

	server := &http.Server{
		Addr:        cfg.Server.Addr(),
		Handler:     router.Setup(),
		ReadTimeout: cfg.Server.ReadTimeout,
		// No WriteTimeout: passthrough streams legitimately outlive any
		// fixed deadline.
		IdleTimeout: 60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddMirrorService(services.NewSyncService(scheduler))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("Services added to supervisor tree")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutting down, waiting for supervisor")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Stopped")
}
