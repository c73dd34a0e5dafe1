// Quakewatch - Seismic Event Feed Ingestion and Storage
// Copyright 2026 Quakewatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/iokt/quakewatch

package database

import "fmt"

// Text columns mirror the feed payload verbatim. Magnitude stays VARCHAR
// because the feed does not guarantee numeric values; numeric comparisons
// go through TRY_CAST at query time.
const createEventsTable = `
CREATE TABLE IF NOT EXISTS seismic_events (
    resource         VARCHAR,
    event_id         VARCHAR NOT NULL,
    location         VARCHAR,
    latitude         VARCHAR,
    longitude        VARCHAR,
    depth            VARCHAR,
    event_type       VARCHAR,
    magnitude        VARCHAR,
    country          VARCHAR,
    province         VARCHAR,
    district         VARCHAR,
    neighborhood     VARCHAR,
    event_date       VARCHAR NOT NULL,
    is_event_update  BOOLEAN DEFAULT FALSE,
    last_update_date VARCHAR
)`

const createEventDateIndex = `
CREATE INDEX IF NOT EXISTS idx_seismic_events_date ON seismic_events (event_date)`

// initSchema creates the event table and its indexes.
func (db *DB) initSchema() error {
	if _, err := db.conn.Exec(createEventsTable); err != nil {
		return fmt.Errorf("failed to create seismic_events table: %w", err)
	}
	if _, err := db.conn.Exec(createEventDateIndex); err != nil {
		return fmt.Errorf("failed to create event_date index: %w", err)
	}
	return nil
}
