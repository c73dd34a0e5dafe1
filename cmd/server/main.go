// Quakewatch - Seismic Event Feed Ingestion and Storage
// Copyright 2026 Quakewatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/iokt/quakewatch

// Package main is the entry point for the Quakewatch server.
//
// Quakewatch ingests seismic events from the AFAD feed, publishes them
// through a durable JetStream channel, and reconciles them into a DuckDB
// event store exposed over a management HTTP API.
//
// The server initializes components in the following order:
//
//  1. Configuration: layered loading via Koanf v2 (defaults, YAML, env)
//  2. Database: DuckDB event store
//  3. NATS: embedded or external JetStream, stream provisioning,
//     publisher and durable subscriber
//  4. Pipeline: feed client, ingestion scheduler, stream reconciler
//  5. HTTP server: event queries, deletes, and ingestion triggers
//
// All long-running components run under a suture supervisor tree and
// shut down gracefully on SIGINT and SIGTERM.
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/iokt/quakewatch/internal/api"
	"github.com/iokt/quakewatch/internal/config"
	"github.com/iokt/quakewatch/internal/database"
	"github.com/iokt/quakewatch/internal/eventprocessor"
	"github.com/iokt/quakewatch/internal/feed"
	"github.com/iokt/quakewatch/internal/logging"
	"github.com/iokt/quakewatch/internal/scheduler"
	"github.com/iokt/quakewatch/internal/supervisor"
	"github.com/iokt/quakewatch/internal/supervisor/services"
)

// disabledTrigger serves ingestion endpoints when the event pipeline is
// switched off.
type disabledTrigger struct{}

var errPipelineDisabled = errors.New("event pipeline disabled (NATS_ENABLED=false)")

func (disabledTrigger) RunDateRange(ctx context.Context, date time.Time) (int, error) {
	return 0, errPipelineDisabled
}

func (disabledTrigger) RunDateRangeFiltered(ctx context.Context, date time.Time, minMagnitude float64) (int, error) {
	return 0, errPipelineDisabled
}

func (disabledTrigger) RunLatest(ctx context.Context) (int, error) {
	return 0, errPipelineDisabled
}

func main() {
	// Load configuration first to get logging settings.
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("feed_url", cfg.Feed.BaseURL).
		Str("db_path", cfg.Database.Path).
		Bool("nats_enabled", cfg.NATS.Enabled).
		Msg("Starting Quakewatch")

	db, err := database.New(cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized")

	nats, err := initNATS(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize NATS event processing")
	}
	if nats != nil {
		defer nats.shutdown(context.Background())
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	// The ingestion pipeline only exists when the transport is up: the
	// scheduler publishes to the stream and the reconciler drains it.
	var trigger api.IngestTrigger = disabledTrigger{}
	if nats != nil {
		feedClient := feed.NewClient(cfg.Feed)
		sched := scheduler.New(feedClient, nats.publisher, cfg.Scheduler)
		trigger = sched

		if cfg.Scheduler.Enabled {
			tree.AddIngestService(services.NewSchedulerService(sched))
		} else {
			logging.Info().Msg("Periodic ingestion disabled; feed cycles run on demand only")
		}

		reconciler := eventprocessor.NewReconciler(nats.subscriber, db, nil, cfg.NATS.Topic)
		tree.AddMessagingService(services.NewReconcilerService(reconciler))
	}

	handler := api.NewHandler(db, trigger)
	httpServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           api.NewRouter(handler),
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       2 * cfg.Server.Timeout,
		ReadHeaderTimeout: 10 * time.Second,
	}
	tree.AddAPIService(services.NewHTTPService(httpServer))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree exited with error")
	}
	logging.Info().Msg("Shutdown complete")
}
