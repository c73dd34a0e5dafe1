// Quakewatch - Seismic Event Feed Ingestion and Storage
// Copyright 2026 Quakewatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/iokt/quakewatch

package database

import (
	"context"
	"errors"
	"testing"

	"github.com/iokt/quakewatch/internal/config"
	"github.com/iokt/quakewatch/internal/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(config.DatabaseConfig{
		Path:                   ":memory:",
		MaxMemory:              "512MB",
		Threads:                2,
		PreserveInsertionOrder: true,
	})
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleEvent(id, date, magnitude string) *models.SeismicEvent {
	return &models.SeismicEvent{
		Resource:  "feed",
		EventID:   id,
		Location:  "Somewhere",
		Latitude:  "38.1",
		Longitude: "27.2",
		Depth:     "7.0",
		Type:      "Ke",
		Magnitude: magnitude,
		Country:   "Turkiye",
		Province:  "Izmir",
		Date:      date,
	}
}

func TestCreateAndGet(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.Create(ctx, sampleEvent("e1", "2024-05-03T10:00:00", "4.2")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	t.Run("get by event id", func(t *testing.T) {
		got, err := db.GetByEventID(ctx, "e1")
		if err != nil {
			t.Fatalf("GetByEventID failed: %v", err)
		}
		if got.Magnitude != "4.2" || got.Province != "Izmir" {
			t.Errorf("Unexpected event: %+v", got)
		}
	})

	t.Run("get by event id miss", func(t *testing.T) {
		_, err := db.GetByEventID(ctx, "missing")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("get by date", func(t *testing.T) {
		events, err := db.GetByDate(ctx, "2024-05-03T10:00:00")
		if err != nil {
			t.Fatalf("GetByDate failed: %v", err)
		}
		if len(events) != 1 {
			t.Fatalf("Expected 1 event, got %d", len(events))
		}
	})

	t.Run("get by date miss", func(t *testing.T) {
		events, err := db.GetByDate(ctx, "2099-01-01T00:00:00")
		if err != nil {
			t.Fatalf("GetByDate failed: %v", err)
		}
		if len(events) != 0 {
			t.Errorf("Expected no events, got %d", len(events))
		}
	})

	t.Run("get all", func(t *testing.T) {
		events, err := db.GetAll(ctx)
		if err != nil {
			t.Fatalf("GetAll failed: %v", err)
		}
		if len(events) != 1 {
			t.Errorf("Expected 1 event, got %d", len(events))
		}
	})
}

func TestUpdate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.Create(ctx, sampleEvent("e1", "2024-05-03T10:00:00", "4.2")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	t.Run("matching event id rewrites row", func(t *testing.T) {
		rev := sampleEvent("e1", "2024-05-03T10:00:00", "4.5")
		rev.IsEventUpdate = true
		rev.LastUpdateDate = "2024-05-03T11:00:00"
		if err := db.Update(ctx, rev); err != nil {
			t.Fatalf("Update failed: %v", err)
		}

		got, err := db.GetByEventID(ctx, "e1")
		if err != nil {
			t.Fatalf("GetByEventID failed: %v", err)
		}
		if got.Magnitude != "4.5" || !got.IsEventUpdate {
			t.Errorf("Expected updated row, got %+v", got)
		}
		if got.LastUpdateDate != "2024-05-03T11:00:00" {
			t.Errorf("Expected last update date, got %q", got.LastUpdateDate)
		}
	})

	t.Run("unknown event id is a silent no-op", func(t *testing.T) {
		rev := sampleEvent("reissued-id", "2024-05-03T10:00:00", "9.9")
		if err := db.Update(ctx, rev); err != nil {
			t.Fatalf("Update should not error on zero matched rows: %v", err)
		}

		got, err := db.GetByEventID(ctx, "e1")
		if err != nil {
			t.Fatalf("GetByEventID failed: %v", err)
		}
		if got.Magnitude == "9.9" {
			t.Error("Existing row must not be touched by a mismatched update")
		}
		if _, err := db.GetByEventID(ctx, "reissued-id"); !errors.Is(err, ErrNotFound) {
			t.Errorf("No row should exist for the reissued ID, got %v", err)
		}
	})
}

func TestMagnitudeQueries(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	seed := []*models.SeismicEvent{
		sampleEvent("m1", "2024-05-01T00:00:01", "3.1"),
		sampleEvent("m2", "2024-05-01T00:00:02", "4.9"),
		sampleEvent("m3", "2024-05-01T00:00:03", "5.0"),
		sampleEvent("m4", "2024-05-01T00:00:04", "bad"),
	}
	for _, e := range seed {
		if err := db.Create(ctx, e); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	t.Run("exact match", func(t *testing.T) {
		events, err := db.GetByMagnitude(ctx, 4.9)
		if err != nil {
			t.Fatalf("GetByMagnitude failed: %v", err)
		}
		if len(events) != 1 || events[0].EventID != "m2" {
			t.Errorf("Expected only m2, got %+v", events)
		}
	})

	t.Run("greater than excludes unparseable", func(t *testing.T) {
		events, err := db.GetGreaterThanMagnitude(ctx, 3.1)
		if err != nil {
			t.Fatalf("GetGreaterThanMagnitude failed: %v", err)
		}
		if len(events) != 2 {
			t.Fatalf("Expected 2 events, got %d", len(events))
		}
		for _, e := range events {
			if e.EventID == "m4" {
				t.Error("Unparseable magnitude must not match")
			}
		}
	})

	t.Run("delete smaller than keeps unparseable", func(t *testing.T) {
		if err := db.DeleteSmallerThanMagnitude(ctx, 5.0); err != nil {
			t.Fatalf("DeleteSmallerThanMagnitude failed: %v", err)
		}
		events, err := db.GetAll(ctx)
		if err != nil {
			t.Fatalf("GetAll failed: %v", err)
		}
		if len(events) != 2 {
			t.Fatalf("Expected m3 and m4 to survive, got %d rows", len(events))
		}
		ids := map[string]bool{}
		for _, e := range events {
			ids[e.EventID] = true
		}
		if !ids["m3"] || !ids["m4"] {
			t.Errorf("Expected m3 and m4, got %v", ids)
		}
	})
}

func TestDeletes(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for _, e := range []*models.SeismicEvent{
		sampleEvent("d1", "2024-05-01T00:00:01", "3.0"),
		sampleEvent("d2", "2024-05-01T00:00:01", "3.5"),
		sampleEvent("d3", "2024-05-02T00:00:00", "4.0"),
	} {
		if err := db.Create(ctx, e); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	t.Run("delete by date", func(t *testing.T) {
		if err := db.DeleteByDate(ctx, "2024-05-01T00:00:01"); err != nil {
			t.Fatalf("DeleteByDate failed: %v", err)
		}
		events, err := db.GetAll(ctx)
		if err != nil {
			t.Fatalf("GetAll failed: %v", err)
		}
		if len(events) != 1 || events[0].EventID != "d3" {
			t.Errorf("Expected only d3, got %+v", events)
		}
	})

	t.Run("delete by id", func(t *testing.T) {
		if err := db.Delete(ctx, "d3"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := db.GetByEventID(ctx, "d3"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound after delete, got %v", err)
		}
	})

	t.Run("delete all", func(t *testing.T) {
		if err := db.Create(ctx, sampleEvent("d4", "2024-05-03T00:00:00", "2.2")); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if err := db.DeleteAll(ctx); err != nil {
			t.Fatalf("DeleteAll failed: %v", err)
		}
		events, err := db.GetAll(ctx)
		if err != nil {
			t.Fatalf("GetAll failed: %v", err)
		}
		if len(events) != 0 {
			t.Errorf("Expected empty store, got %d rows", len(events))
		}
	})
}

func TestRegionQueries(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	e1 := sampleEvent("r1", "2024-05-01T00:00:01", "3.0")
	e2 := sampleEvent("r2", "2024-05-01T00:00:02", "3.5")
	e2.Country = "Greece"
	e2.Province = "Crete"
	for _, e := range []*models.SeismicEvent{e1, e2} {
		if err := db.Create(ctx, e); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	t.Run("by country", func(t *testing.T) {
		events, err := db.GetByCountry(ctx, "Greece")
		if err != nil {
			t.Fatalf("GetByCountry failed: %v", err)
		}
		if len(events) != 1 || events[0].EventID != "r2" {
			t.Errorf("Expected only r2, got %+v", events)
		}
	})

	t.Run("by province", func(t *testing.T) {
		events, err := db.GetByProvince(ctx, "Izmir")
		if err != nil {
			t.Fatalf("GetByProvince failed: %v", err)
		}
		if len(events) != 1 || events[0].EventID != "r1" {
			t.Errorf("Expected only r1, got %+v", events)
		}
	})
}
