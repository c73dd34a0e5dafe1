// Quakewatch - Seismic Event Feed Ingestion and Storage
// Copyright 2026 Quakewatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/iokt/quakewatch

// Package scheduler drives periodic feed ingestion: each cycle fetches a
// UTC day window from the feed and publishes every event to the stream.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iokt/quakewatch/internal/config"
	"github.com/iokt/quakewatch/internal/logging"
	"github.com/iokt/quakewatch/internal/metrics"
	"github.com/iokt/quakewatch/internal/models"
)

// FeedClient is the feed surface the scheduler needs.
type FeedClient interface {
	EventsBetween(ctx context.Context, start, end time.Time) ([]models.SeismicEvent, error)
	Latest(ctx context.Context) (*models.SeismicEvent, error)
}

// EventPublisher publishes one event under a caller-supplied message key.
type EventPublisher interface {
	PublishEvent(ctx context.Context, key string, event *models.SeismicEvent) error
}

// Scheduler runs the hourly ingestion loop and serves ad-hoc cycle
// triggers from the management API.
type Scheduler struct {
	feed      FeedClient
	publisher EventPublisher
	cfg       config.SchedulerConfig

	// now is swapped in tests to pin the clock.
	now func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New creates a scheduler.
func New(feed FeedClient, publisher EventPublisher, cfg config.SchedulerConfig) *Scheduler {
	return &Scheduler{
		feed:      feed,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Start launches the periodic loop. Safe to call once; a second call while
// running is an error.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	s.stopCh = make(chan struct{})
	s.running = true
	s.wg.Add(1)
	go s.runLoop()

	logging.Info().Dur("interval", s.cfg.Interval).Msg("Scheduler started")
	return nil
}

// Stop halts the periodic loop and waits for an in-flight cycle to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	logging.Info().Msg("Scheduler stopped")
}

// IsRunning reports whether the periodic loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Serve adapts the scheduler to a supervised service: it runs until the
// context is canceled.
func (s *Scheduler) Serve(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	s.Stop()
	return ctx.Err()
}

func (s *Scheduler) runLoop() {
	defer s.wg.Done()

	if s.cfg.RunOnStart {
		s.runCycle()
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.runCycle()
		}
	}
}

// runCycle executes one timer-driven cycle. Failures are logged and the
// cycle abandoned; the timer loop itself never dies on an upstream error.
func (s *Scheduler) runCycle() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		select {
		case <-s.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := s.RunHourly(ctx); err != nil {
		logging.Error().Err(err).Msg("Ingestion cycle failed")
	}
}

// RunHourly ingests the current UTC day with no magnitude filter.
// The error is logged and swallowed so timer ticks stay independent.
func (s *Scheduler) RunHourly(ctx context.Context) error {
	published, err := s.RunDateRange(ctx, s.now().UTC())
	if err != nil {
		metrics.IngestCycles.WithLabelValues("error").Inc()
		return err
	}
	metrics.IngestCycles.WithLabelValues("ok").Inc()
	logging.Info().Int("published", published).Msg("Hourly ingestion cycle completed")
	return nil
}

// RunDateRange fetches the full UTC day containing date and publishes
// every event. Returns the number of events published.
func (s *Scheduler) RunDateRange(ctx context.Context, date time.Time) (int, error) {
	start, end := dayWindow(date)
	events, err := s.feed.EventsBetween(ctx, start, end)
	if err != nil {
		return 0, fmt.Errorf("fetch events for %s: %w", start.Format("2006-01-02"), err)
	}
	return s.publishBatch(ctx, events), nil
}

// RunDateRangeFiltered is RunDateRange restricted to events whose
// magnitude parses to at least minMagnitude. Events with unparseable
// magnitudes are excluded.
func (s *Scheduler) RunDateRangeFiltered(ctx context.Context, date time.Time, minMagnitude float64) (int, error) {
	start, end := dayWindow(date)
	events, err := s.feed.EventsBetween(ctx, start, end)
	if err != nil {
		return 0, fmt.Errorf("fetch events for %s: %w", start.Format("2006-01-02"), err)
	}

	filtered := events[:0:0]
	for _, e := range events {
		mag, err := e.ParsedMagnitude()
		if err != nil {
			continue
		}
		if mag >= minMagnitude {
			filtered = append(filtered, e)
		}
	}

	return s.publishBatch(ctx, filtered), nil
}

// RunLatest fetches the most recent event and publishes it. Returns the
// number of events published (0 when the window is empty).
func (s *Scheduler) RunLatest(ctx context.Context) (int, error) {
	latest, err := s.feed.Latest(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch latest event: %w", err)
	}
	if latest == nil {
		logging.Info().Msg("No recent event to publish")
		return 0, nil
	}
	return s.publishBatch(ctx, []models.SeismicEvent{*latest}), nil
}

// publishBatch publishes each event under a fresh random key. A failed
// publish is logged and skipped; it never aborts the rest of the batch.
func (s *Scheduler) publishBatch(ctx context.Context, events []models.SeismicEvent) int {
	published := 0
	for i := range events {
		if ctx.Err() != nil {
			logging.Warn().
				Int("published", published).
				Int("remaining", len(events)-i).
				Msg("Batch publish canceled")
			return published
		}

		key := uuid.New().String()
		if err := s.publisher.PublishEvent(ctx, key, &events[i]); err != nil {
			logging.Error().Err(err).
				Str("event_id", events[i].EventID).
				Str("key", key).
				Msg("Event publish failed, continuing batch")
			continue
		}
		published++
	}
	return published
}

// dayWindow returns the inclusive UTC day window containing t. The end
// bound lands 100ns before midnight, matching the feed's upstream
// convention for day queries.
func dayWindow(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24*time.Hour - 100*time.Nanosecond)
	return start, end
}
