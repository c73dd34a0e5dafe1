// Quakewatch - Seismic Event Feed Ingestion and Storage
// Copyright 2026 Quakewatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/iokt/quakewatch

// Package config holds the application configuration and its layered
// loading: struct defaults, then an optional YAML file, then environment
// variables.
package config

import (
	"fmt"
	"time"
)

// Config is the root application configuration.
type Config struct {
	Feed      FeedConfig      `koanf:"feed"`
	NATS      NATSConfig      `koanf:"nats"`
	Database  DatabaseConfig  `koanf:"database"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// FeedConfig configures the upstream seismic event feed client.
type FeedConfig struct {
	// BaseURL is the feed API root, without a trailing slash.
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
	// LatestWindowDays is the trailing window scanned when resolving
	// the most recent event.
	LatestWindowDays int `koanf:"latest_window_days"`
}

// NATSConfig configures the JetStream transport.
type NATSConfig struct {
	Enabled             bool   `koanf:"enabled"`
	URL                 string `koanf:"url"`
	EmbeddedServer      bool   `koanf:"embedded_server"`
	StoreDir            string `koanf:"store_dir"`
	MaxMemory           int64  `koanf:"max_memory"`
	MaxStore            int64  `koanf:"max_store"`
	StreamRetentionDays int    `koanf:"stream_retention_days"`
	Topic               string `koanf:"topic"`
	DurableName         string `koanf:"durable_name"`
	QueueGroup          string `koanf:"queue_group"`
	SubscribersCount    int    `koanf:"subscribers_count"`
}

// DatabaseConfig configures the DuckDB event store.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	// Threads 0 means runtime.NumCPU().
	Threads                int  `koanf:"threads"`
	PreserveInsertionOrder bool `koanf:"preserve_insertion_order"`
}

// SchedulerConfig configures the periodic ingestion job.
type SchedulerConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Interval time.Duration `koanf:"interval"`
	// RunOnStart triggers one cycle immediately instead of waiting for
	// the first tick.
	RunOnStart bool `koanf:"run_on_start"`
}

// ServerConfig configures the management HTTP server.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks the configuration for values that would fail at runtime.
func (c *Config) Validate() error {
	if err := c.validateFeed(); err != nil {
		return err
	}
	if err := c.validateNATS(); err != nil {
		return err
	}
	if err := c.validateScheduler(); err != nil {
		return err
	}
	return c.validateServer()
}

func (c *Config) validateFeed() error {
	if c.Feed.BaseURL == "" {
		return fmt.Errorf("feed.base_url must not be empty")
	}
	if c.Feed.Timeout <= 0 {
		return fmt.Errorf("feed.timeout must be positive, got %v", c.Feed.Timeout)
	}
	if c.Feed.LatestWindowDays <= 0 {
		return fmt.Errorf("feed.latest_window_days must be positive, got %d", c.Feed.LatestWindowDays)
	}
	return nil
}

func (c *Config) validateNATS() error {
	if !c.NATS.Enabled {
		return nil
	}
	if c.NATS.URL == "" && !c.NATS.EmbeddedServer {
		return fmt.Errorf("nats.url required when nats.embedded_server is false")
	}
	if c.NATS.Topic == "" {
		return fmt.Errorf("nats.topic must not be empty")
	}
	if c.NATS.SubscribersCount < 1 {
		return fmt.Errorf("nats.subscribers_count must be at least 1, got %d", c.NATS.SubscribersCount)
	}
	return nil
}

func (c *Config) validateScheduler() error {
	if c.Scheduler.Enabled && c.Scheduler.Interval < time.Second {
		return fmt.Errorf("scheduler.interval must be at least 1s, got %v", c.Scheduler.Interval)
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1-65535, got %d", c.Server.Port)
	}
	return nil
}
