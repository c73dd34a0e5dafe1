// Quakewatch - Seismic Event Feed Ingestion and Storage
// Copyright 2026 Quakewatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/iokt/quakewatch

// Package feed implements the HTTP client for the upstream seismic event
// feed. All queries are windowed on UTC timestamps in the feed's native
// layout.
package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/iokt/quakewatch/internal/config"
	"github.com/iokt/quakewatch/internal/logging"
	"github.com/iokt/quakewatch/internal/metrics"
	"github.com/iokt/quakewatch/internal/models"
)

// maxErrorBodySize limits how much of an error response body is read for
// diagnostics.
const maxErrorBodySize = 64 * 1024

// Client queries the seismic event feed API.
//
// The circuit breaker uses real time for its interval and timeout
// calculations; tests should exercise the HTTP paths directly rather
// than waiting out breaker state transitions.
type Client struct {
	baseURL          string
	httpClient       *http.Client
	cb               *gobreaker.CircuitBreaker[[]models.SeismicEvent]
	latestWindowDays int
}

// NewClient creates a feed client from configuration.
func NewClient(cfg config.FeedConfig) *Client {
	cb := gobreaker.NewCircuitBreaker[[]models.SeismicEvent](gobreaker.Settings{
		Name:        "seismic-feed",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Feed circuit breaker state transition")
		},
	})

	return &Client{
		baseURL:          cfg.BaseURL,
		httpClient:       &http.Client{Timeout: cfg.Timeout},
		cb:               cb,
		latestWindowDays: cfg.LatestWindowDays,
	}
}

// EventsBetween fetches all events in the [start, end] window, inclusive.
// Both bounds are formatted in the feed's native layout in UTC.
func (c *Client) EventsBetween(ctx context.Context, start, end time.Time) ([]models.SeismicEvent, error) {
	if start.After(end) {
		return nil, fmt.Errorf("invalid window: start %v after end %v", start, end)
	}

	return c.cb.Execute(func() ([]models.SeismicEvent, error) {
		return c.fetch(ctx, start.UTC(), end.UTC())
	})
}

func (c *Client) fetch(ctx context.Context, start, end time.Time) ([]models.SeismicEvent, error) {
	began := time.Now()

	q := url.Values{}
	q.Set("start", start.Format(models.FeedDateLayout))
	q.Set("end", end.Format(models.FeedDateLayout))
	reqURL := c.baseURL + "/event/filter?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.FeedFetchErrors.WithLabelValues("http").Inc()
		return nil, fmt.Errorf("feed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.FeedFetchErrors.WithLabelValues("status").Inc()
		return nil, &FetchError{
			StatusCode: resp.StatusCode,
			Body:       readBodyForError(resp.Body),
		}
	}

	var events []models.SeismicEvent
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		metrics.FeedFetchErrors.WithLabelValues("decode").Inc()
		return nil, &DecodeError{Err: err}
	}

	metrics.ObserveFeedFetch(began)
	metrics.FeedEventsFetched.Add(float64(len(events)))
	return events, nil
}

// Latest returns the most recent event within the trailing scan window,
// chosen by maximum parseable event date. Events with unparseable dates
// are skipped. Returns nil when the window holds no candidates.
func (c *Client) Latest(ctx context.Context) (*models.SeismicEvent, error) {
	end := time.Now().UTC()
	start := end.AddDate(0, 0, -c.latestWindowDays)

	events, err := c.EventsBetween(ctx, start, end)
	if err != nil {
		return nil, err
	}

	var latest *models.SeismicEvent
	var latestDate time.Time
	for i := range events {
		d, err := events[i].ParsedDate()
		if err != nil {
			logging.Warn().
				Str("event_id", events[i].EventID).
				Str("date", events[i].Date).
				Msg("Skipping event with unparseable date")
			continue
		}
		if latest == nil || d.After(latestDate) {
			latest = &events[i]
			latestDate = d
		}
	}

	return latest, nil
}

// readBodyForError reads a bounded prefix of an error response body.
func readBodyForError(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return fmt.Sprintf("(failed to read body: %v)", err)
	}
	return string(body)
}
