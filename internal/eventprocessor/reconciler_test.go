// Quakewatch - Seismic Event Feed Ingestion and Storage
// Copyright 2026 Quakewatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/iokt/quakewatch

package eventprocessor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/iokt/quakewatch/internal/models"
)

// chanSource feeds messages to the reconciler from an in-memory channel.
type chanSource struct {
	ch chan *message.Message
}

func newChanSource() *chanSource {
	return &chanSource{ch: make(chan *message.Message, 16)}
}

func (s *chanSource) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return s.ch, nil
}

// fakeStore records reconciliation calls keyed by event date.
type fakeStore struct {
	mu        sync.Mutex
	byDate    map[string]models.SeismicEvent
	creates   []string
	updates   []string
	lookupErr error
	createErr error
	updateErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{byDate: make(map[string]models.SeismicEvent)}
}

func (s *fakeStore) GetByDate(ctx context.Context, date string) ([]models.SeismicEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	if e, ok := s.byDate[date]; ok {
		return []models.SeismicEvent{e}, nil
	}
	return nil, nil
}

func (s *fakeStore) Create(ctx context.Context, e *models.SeismicEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.byDate[e.Date] = *e
	s.creates = append(s.creates, e.EventID)
	return nil
}

func (s *fakeStore) Update(ctx context.Context, e *models.SeismicEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	// Update matches by event ID, like the real store.
	for date, existing := range s.byDate {
		if existing.EventID == e.EventID {
			s.byDate[date] = *e
			break
		}
	}
	s.updates = append(s.updates, e.EventID)
	return nil
}

func eventMessage(t *testing.T, event *models.SeismicEvent) *message.Message {
	t.Helper()
	data, err := SerializeEvent(event)
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	msg := message.NewMessage(uuid.New().String(), data)
	msg.Metadata.Set(EventTypeHeader, TypeSeismicEvent)
	return msg
}

func waitForStats(t *testing.T, r *Reconciler, pred func(ReconcilerStats) bool) ReconcilerStats {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		stats := r.Stats()
		if pred(stats) {
			return stats
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for reconciler stats, last: %+v", r.Stats())
	return ReconcilerStats{}
}

func TestReconcilerCreateThenUpdate(t *testing.T) {
	source := newChanSource()
	store := newFakeStore()
	r := NewReconciler(source, store, nil, "quake.events")

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer r.Stop()

	event := &models.SeismicEvent{EventID: "e1", Date: "2024-05-03T10:00:00", Magnitude: "4.2"}
	source.ch <- eventMessage(t, event)

	revised := *event
	revised.Magnitude = "4.5"
	revised.IsEventUpdate = true
	source.ch <- eventMessage(t, &revised)

	stats := waitForStats(t, r, func(s ReconcilerStats) bool {
		return s.MessagesProcessed == 2
	})
	if stats.Creates != 1 || stats.Updates != 1 {
		t.Errorf("Expected 1 create and 1 update, got %+v", stats)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.byDate) != 1 {
		t.Fatalf("Expected exactly one stored row, got %d", len(store.byDate))
	}
	if got := store.byDate[event.Date]; got.Magnitude != "4.5" || !got.IsEventUpdate {
		t.Errorf("Expected row to carry the revision, got %+v", got)
	}
}

func TestReconcilerUpdateMatchesEventID(t *testing.T) {
	source := newChanSource()
	store := newFakeStore()
	r := NewReconciler(source, store, nil, "quake.events")

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer r.Stop()

	source.ch <- eventMessage(t, &models.SeismicEvent{EventID: "original", Date: "2024-05-03T10:00:00", Magnitude: "4.2"})
	// Same date, reissued ID: takes the update path, which matches no row.
	source.ch <- eventMessage(t, &models.SeismicEvent{EventID: "reissued", Date: "2024-05-03T10:00:00", Magnitude: "9.9"})

	waitForStats(t, r, func(s ReconcilerStats) bool {
		return s.MessagesProcessed == 2
	})

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.updates) != 1 || store.updates[0] != "reissued" {
		t.Fatalf("Expected update attempt for reissued ID, got %v", store.updates)
	}
	if got := store.byDate["2024-05-03T10:00:00"]; got.EventID != "original" || got.Magnitude != "4.2" {
		t.Errorf("Original row must survive a mismatched update, got %+v", got)
	}
}

func TestReconcilerDropsBadMessages(t *testing.T) {
	t.Run("malformed payload", func(t *testing.T) {
		source := newChanSource()
		store := newFakeStore()
		r := NewReconciler(source, store, nil, "quake.events")

		if err := r.Start(context.Background()); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		defer r.Stop()

		msg := message.NewMessage(uuid.New().String(), []byte("{broken"))
		msg.Metadata.Set(EventTypeHeader, TypeSeismicEvent)
		source.ch <- msg
		source.ch <- eventMessage(t, &models.SeismicEvent{EventID: "ok", Date: "2024-05-03T10:00:00"})

		stats := waitForStats(t, r, func(s ReconcilerStats) bool {
			return s.MessagesReceived == 2 && s.MessagesProcessed == 1
		})
		if stats.ParseErrors != 1 {
			t.Errorf("Expected 1 parse error, got %+v", stats)
		}
	})

	t.Run("unknown event type tag", func(t *testing.T) {
		source := newChanSource()
		store := newFakeStore()
		r := NewReconciler(source, store, nil, "quake.events")

		if err := r.Start(context.Background()); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		defer r.Stop()

		msg := message.NewMessage(uuid.New().String(), []byte(`{}`))
		msg.Metadata.Set(EventTypeHeader, "volcano_event")
		source.ch <- msg

		stats := waitForStats(t, r, func(s ReconcilerStats) bool {
			return s.ParseErrors == 1
		})
		if stats.MessagesProcessed != 0 {
			t.Errorf("Expected no processed messages, got %+v", stats)
		}
	})

	t.Run("missing tag defaults to seismic event", func(t *testing.T) {
		source := newChanSource()
		store := newFakeStore()
		r := NewReconciler(source, store, nil, "quake.events")

		if err := r.Start(context.Background()); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		defer r.Stop()

		data, _ := SerializeEvent(&models.SeismicEvent{EventID: "untagged", Date: "2024-05-03T10:00:00"})
		source.ch <- message.NewMessage(uuid.New().String(), data)

		stats := waitForStats(t, r, func(s ReconcilerStats) bool {
			return s.MessagesProcessed == 1
		})
		if stats.Creates != 1 {
			t.Errorf("Expected create for untagged message, got %+v", stats)
		}
	})
}

func TestReconcilerStorageFailures(t *testing.T) {
	t.Run("lookup failure drops event", func(t *testing.T) {
		source := newChanSource()
		store := newFakeStore()
		store.lookupErr = errors.New("database closed")
		r := NewReconciler(source, store, nil, "quake.events")

		if err := r.Start(context.Background()); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		defer r.Stop()

		source.ch <- eventMessage(t, &models.SeismicEvent{EventID: "e1", Date: "2024-05-03T10:00:00"})

		stats := waitForStats(t, r, func(s ReconcilerStats) bool {
			return s.StorageErrors == 1
		})
		if stats.MessagesProcessed != 0 {
			t.Errorf("Expected no processed messages, got %+v", stats)
		}
	})

	t.Run("insert failure drops event without retry", func(t *testing.T) {
		source := newChanSource()
		store := newFakeStore()
		store.createErr = errors.New("constraint violation")
		r := NewReconciler(source, store, nil, "quake.events")

		if err := r.Start(context.Background()); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		defer r.Stop()

		source.ch <- eventMessage(t, &models.SeismicEvent{EventID: "e1", Date: "2024-05-03T10:00:00"})

		waitForStats(t, r, func(s ReconcilerStats) bool {
			return s.StorageErrors == 1
		})

		store.mu.Lock()
		defer store.mu.Unlock()
		if len(store.byDate) != 0 {
			t.Errorf("Expected nothing stored, got %v", store.byDate)
		}
	})
}

func TestReconcilerLifecycle(t *testing.T) {
	source := newChanSource()
	r := NewReconciler(source, newFakeStore(), nil, "quake.events")

	if r.IsRunning() {
		t.Error("Should not be running before Start")
	}
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !r.IsRunning() {
		t.Error("Should be running after Start")
	}
	if err := r.Start(context.Background()); err == nil {
		t.Error("Second Start should fail")
	}
	r.Stop()
	if r.IsRunning() {
		t.Error("Should not be running after Stop")
	}
	r.Stop() // idempotent
}
