// Quakewatch - Seismic Event Feed Ingestion and Storage
// Copyright 2026 Quakewatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/iokt/quakewatch

// Package models defines the canonical data shapes moved through the
// ingestion pipeline.
package models

import (
	"strconv"
	"strings"
	"time"
)

// FeedDateLayout is the feed's native timestamp layout: ISO-8601 local time
// with no zone designator. All feed timestamps are UTC by convention.
const FeedDateLayout = "2006-01-02T15:04:05"

// feedDateLayouts lists the accepted timestamp layouts, most common first.
// The feed occasionally emits fractional seconds or a trailing zone.
var feedDateLayouts = []string{
	FeedDateLayout,
	"2006-01-02T15:04:05.999999999",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// SeismicEvent is the canonical unit moved through the pipeline: created from
// raw feed JSON, carried immutably over the channel, and reconciled into
// storage. Coordinates, depth, and magnitude are carried as text exactly as
// the feed delivers them; consumers must coerce defensively.
//
// The Date string is the reconciliation key. EventID is feed-assigned and is
// NOT stable across re-fetches: the feed may reissue different IDs for update
// revisions of the same quake.
type SeismicEvent struct {
	Resource      string `json:"resource"`
	EventID       string `json:"eventId"`
	Location      string `json:"location"`
	Latitude      string `json:"latitude"`
	Longitude     string `json:"longitude"`
	Depth         string `json:"depth"`
	Type          string `json:"type"`
	Magnitude     string `json:"magnitude"`
	Country       string `json:"country"`
	Province      string `json:"province"`
	District      string `json:"district"`
	Neighborhood  string `json:"neighborhood"`
	Date          string `json:"date"`
	IsEventUpdate bool   `json:"isEventUpdate"`
	// LastUpdateDate is present only on revisions.
	LastUpdateDate string `json:"lastUpdateDate,omitempty"`
}

// ParsedMagnitude coerces the text magnitude to a float.
// The feed provides no numeric guarantee, so callers must treat a parse
// failure as "no usable magnitude", not as a fatal error.
func (e *SeismicEvent) ParsedMagnitude() (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(e.Magnitude), 64)
}

// ParsedDate parses the feed timestamp, trying the known layouts in order.
// The result is always in UTC.
func (e *SeismicEvent) ParsedDate() (time.Time, error) {
	var lastErr error
	for _, layout := range feedDateLayouts {
		t, err := time.Parse(layout, e.Date)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// Validate checks the fields required before an event may be published.
func (e *SeismicEvent) Validate() error {
	if e.EventID == "" {
		return &ValidationError{Field: "eventId", Message: "required"}
	}
	if e.Date == "" {
		return &ValidationError{Field: "date", Message: "required"}
	}
	return nil
}

// ValidationError represents a field validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
