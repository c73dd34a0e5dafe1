// Quakewatch - Seismic Event Feed Ingestion and Storage
// Copyright 2026 Quakewatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/iokt/quakewatch

package main

import (
	"context"
	"fmt"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/iokt/quakewatch/internal/config"
	"github.com/iokt/quakewatch/internal/eventprocessor"
	"github.com/iokt/quakewatch/internal/logging"
)

// natsComponents holds the JetStream transport for lifecycle management.
type natsComponents struct {
	server     *eventprocessor.EmbeddedServer
	conn       *natsgo.Conn
	publisher  *eventprocessor.Publisher
	subscriber *eventprocessor.Subscriber
}

// initNATS brings up the event transport: the embedded server (when
// configured), the JetStream stream, and the publisher/subscriber pair.
// Returns nil components when NATS is disabled.
func initNATS(cfg *config.Config) (*natsComponents, error) {
	if !cfg.NATS.Enabled {
		logging.Info().Msg("NATS event processing disabled (NATS_ENABLED=false)")
		return nil, nil
	}

	components := &natsComponents{}

	// Step 1: embedded server or external URL.
	var natsURL string
	if cfg.NATS.EmbeddedServer {
		serverCfg := eventprocessor.DefaultServerConfig()
		serverCfg.StoreDir = cfg.NATS.StoreDir
		serverCfg.JetStreamMaxMem = cfg.NATS.MaxMemory
		serverCfg.JetStreamMaxStore = cfg.NATS.MaxStore

		server, err := eventprocessor.NewEmbeddedServer(&serverCfg)
		if err != nil {
			return nil, err
		}
		components.server = server
		natsURL = server.ClientURL()
		logging.Info().Str("url", natsURL).Msg("Embedded NATS server started")
	} else {
		natsURL = cfg.NATS.URL
		logging.Info().Str("url", natsURL).Msg("Using external NATS server")
	}

	// Step 2: management connection for stream provisioning.
	nc, err := natsgo.Connect(natsURL,
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2*time.Second),
	)
	if err != nil {
		components.shutdown(context.Background())
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	components.conn = nc

	js, err := jetstream.New(nc)
	if err != nil {
		components.shutdown(context.Background())
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	// Step 3: provision the stream before any publisher or subscriber
	// touches it.
	streamCfg := eventprocessor.DefaultStreamConfig()
	if cfg.NATS.StreamRetentionDays > 0 {
		streamCfg.MaxAge = time.Duration(cfg.NATS.StreamRetentionDays) * 24 * time.Hour
	}

	streamInitializer, err := eventprocessor.NewStreamInitializer(js, &streamCfg)
	if err != nil {
		components.shutdown(context.Background())
		return nil, fmt.Errorf("create stream initializer: %w", err)
	}

	stream, err := streamInitializer.EnsureStream(context.Background())
	if err != nil {
		components.shutdown(context.Background())
		return nil, fmt.Errorf("ensure stream exists: %w", err)
	}
	streamInfo := stream.CachedInfo()
	logging.Info().
		Str("name", streamInfo.Config.Name).
		Strs("subjects", streamInfo.Config.Subjects).
		Dur("max_age", streamInfo.Config.MaxAge).
		Msg("JetStream stream ready")

	// Step 4: publisher with circuit breaker.
	publisher, err := eventprocessor.NewPublisher(eventprocessor.DefaultPublisherConfig(natsURL, cfg.NATS.Topic), nil)
	if err != nil {
		components.shutdown(context.Background())
		return nil, err
	}
	publisher.SetCircuitBreaker(newPublishBreaker())
	components.publisher = publisher

	// Step 5: durable subscriber for the reconciler.
	subCfg := eventprocessor.DefaultSubscriberConfig(natsURL)
	subCfg.StreamName = streamCfg.Name
	if cfg.NATS.DurableName != "" {
		subCfg.DurableName = cfg.NATS.DurableName
	}
	if cfg.NATS.QueueGroup != "" {
		subCfg.QueueGroup = cfg.NATS.QueueGroup
	}
	if cfg.NATS.SubscribersCount > 0 {
		subCfg.SubscribersCount = cfg.NATS.SubscribersCount
	}

	subscriber, err := eventprocessor.NewSubscriber(&subCfg, nil)
	if err != nil {
		components.shutdown(context.Background())
		return nil, err
	}
	components.subscriber = subscriber

	logging.Info().Str("topic", cfg.NATS.Topic).Msg("NATS event processing initialized")
	return components, nil
}

// newPublishBreaker guards publishes against a broker outage: after 60%
// failures across at least 5 calls the breaker opens for 2 minutes.
func newPublishBreaker() *gobreaker.CircuitBreaker[any] {
	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "nats-publish",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	})
}

// shutdown tears the transport down in reverse dependency order.
func (c *natsComponents) shutdown(ctx context.Context) {
	if c.subscriber != nil {
		if err := c.subscriber.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing subscriber")
		}
	}
	if c.publisher != nil {
		if err := c.publisher.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing publisher")
		}
	}
	if c.conn != nil {
		c.conn.Close()
	}
	if c.server != nil {
		if err := c.server.Shutdown(ctx); err != nil {
			logging.Error().Err(err).Msg("Error shutting down embedded NATS server")
		}
	}
}
