// Quakewatch - Seismic Event Feed Ingestion and Storage
// Copyright 2026 Quakewatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/iokt/quakewatch

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iokt/quakewatch/internal/models"
)

// ErrNotFound is returned when a single-row lookup matches nothing.
var ErrNotFound = errors.New("event not found")

const eventColumns = `resource, event_id, location, latitude, longitude, depth,
	event_type, magnitude, country, province, district, neighborhood,
	event_date, is_event_update, last_update_date`

// scanEvent reads one row into a SeismicEvent.
func scanEvent(row interface{ Scan(...any) error }) (models.SeismicEvent, error) {
	var e models.SeismicEvent
	var lastUpdate sql.NullString
	err := row.Scan(
		&e.Resource, &e.EventID, &e.Location, &e.Latitude, &e.Longitude,
		&e.Depth, &e.Type, &e.Magnitude, &e.Country, &e.Province,
		&e.District, &e.Neighborhood, &e.Date, &e.IsEventUpdate, &lastUpdate,
	)
	if err != nil {
		return e, err
	}
	if lastUpdate.Valid {
		e.LastUpdateDate = lastUpdate.String
	}
	return e, nil
}

func (db *DB) queryEvents(ctx context.Context, query string, args ...any) ([]models.SeismicEvent, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var events []models.SeismicEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration failed: %w", err)
	}
	return events, nil
}

// GetAll returns every stored event.
func (db *DB) GetAll(ctx context.Context) ([]models.SeismicEvent, error) {
	return db.queryEvents(ctx, `SELECT `+eventColumns+` FROM seismic_events`)
}

// GetByEventID returns the event with the given feed-assigned ID, or
// ErrNotFound.
func (db *DB) GetByEventID(ctx context.Context, eventID string) (models.SeismicEvent, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM seismic_events WHERE event_id = ?`, eventID)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return e, ErrNotFound
	}
	if err != nil {
		return e, fmt.Errorf("get by event_id failed: %w", err)
	}
	return e, nil
}

// GetByDate returns all events with the exact event_date string.
// This is the reconciliation lookup: the date string is compared verbatim,
// not parsed.
func (db *DB) GetByDate(ctx context.Context, date string) ([]models.SeismicEvent, error) {
	return db.queryEvents(ctx,
		`SELECT `+eventColumns+` FROM seismic_events WHERE event_date = ?`, date)
}

// GetByCountry returns all events for the given country.
func (db *DB) GetByCountry(ctx context.Context, country string) ([]models.SeismicEvent, error) {
	return db.queryEvents(ctx,
		`SELECT `+eventColumns+` FROM seismic_events WHERE country = ?`, country)
}

// GetByProvince returns all events for the given province.
func (db *DB) GetByProvince(ctx context.Context, province string) ([]models.SeismicEvent, error) {
	return db.queryEvents(ctx,
		`SELECT `+eventColumns+` FROM seismic_events WHERE province = ?`, province)
}

// GetByMagnitude returns events whose magnitude parses to exactly the given
// value. Rows with unparseable magnitudes never match.
func (db *DB) GetByMagnitude(ctx context.Context, magnitude float64) ([]models.SeismicEvent, error) {
	return db.queryEvents(ctx,
		`SELECT `+eventColumns+` FROM seismic_events WHERE TRY_CAST(magnitude AS DOUBLE) = ?`,
		magnitude)
}

// GetGreaterThanMagnitude returns events with magnitude strictly above the
// threshold. Rows with unparseable magnitudes are excluded.
func (db *DB) GetGreaterThanMagnitude(ctx context.Context, magnitude float64) ([]models.SeismicEvent, error) {
	return db.queryEvents(ctx,
		`SELECT `+eventColumns+` FROM seismic_events WHERE TRY_CAST(magnitude AS DOUBLE) > ?`,
		magnitude)
}

// Create inserts a new event row.
func (db *DB) Create(ctx context.Context, e *models.SeismicEvent) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO seismic_events (`+eventColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Resource, e.EventID, e.Location, e.Latitude, e.Longitude,
		e.Depth, e.Type, e.Magnitude, e.Country, e.Province,
		e.District, e.Neighborhood, e.Date, e.IsEventUpdate, nullable(e.LastUpdateDate),
	)
	if err != nil {
		return fmt.Errorf("insert failed: %w", err)
	}
	return nil
}

// Update rewrites the full row matched by event_id. When no row carries
// that ID the statement affects nothing and no error is returned; the
// reconciler relies on this being a silent no-op.
func (db *DB) Update(ctx context.Context, e *models.SeismicEvent) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE seismic_events SET
			resource = ?, location = ?, latitude = ?, longitude = ?, depth = ?,
			event_type = ?, magnitude = ?, country = ?, province = ?,
			district = ?, neighborhood = ?, event_date = ?,
			is_event_update = ?, last_update_date = ?
		 WHERE event_id = ?`,
		e.Resource, e.Location, e.Latitude, e.Longitude, e.Depth,
		e.Type, e.Magnitude, e.Country, e.Province,
		e.District, e.Neighborhood, e.Date,
		e.IsEventUpdate, nullable(e.LastUpdateDate),
		e.EventID,
	)
	if err != nil {
		return fmt.Errorf("update failed: %w", err)
	}
	return nil
}

// Delete removes the event with the given ID.
func (db *DB) Delete(ctx context.Context, eventID string) error {
	_, err := db.conn.ExecContext(ctx,
		`DELETE FROM seismic_events WHERE event_id = ?`, eventID)
	if err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	return nil
}

// DeleteAll removes every stored event.
func (db *DB) DeleteAll(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM seismic_events`); err != nil {
		return fmt.Errorf("delete all failed: %w", err)
	}
	return nil
}

// DeleteByDate removes all events with the exact event_date string.
func (db *DB) DeleteByDate(ctx context.Context, date string) error {
	_, err := db.conn.ExecContext(ctx,
		`DELETE FROM seismic_events WHERE event_date = ?`, date)
	if err != nil {
		return fmt.Errorf("delete by date failed: %w", err)
	}
	return nil
}

// DeleteSmallerThanMagnitude removes events with magnitude strictly below
// the threshold. Rows with unparseable magnitudes are left untouched
// because TRY_CAST yields NULL and NULL comparisons never match.
func (db *DB) DeleteSmallerThanMagnitude(ctx context.Context, magnitude float64) error {
	_, err := db.conn.ExecContext(ctx,
		`DELETE FROM seismic_events WHERE TRY_CAST(magnitude AS DOUBLE) < ?`, magnitude)
	if err != nil {
		return fmt.Errorf("delete by magnitude failed: %w", err)
	}
	return nil
}

// nullable maps an empty string to NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
