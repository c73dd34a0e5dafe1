// Quakewatch - Seismic Event Feed Ingestion and Storage
// Copyright 2026 Quakewatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/iokt/quakewatch

package eventprocessor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/iokt/quakewatch/internal/logging"
	"github.com/iokt/quakewatch/internal/metrics"
	"github.com/iokt/quakewatch/internal/models"
)

// EventStore is the storage surface the reconciler needs.
type EventStore interface {
	GetByDate(ctx context.Context, date string) ([]models.SeismicEvent, error)
	Create(ctx context.Context, e *models.SeismicEvent) error
	Update(ctx context.Context, e *models.SeismicEvent) error
}

// MessageSource abstracts the subscriber for testing.
type MessageSource interface {
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
}

// ReconcilerStats is a snapshot of the reconciler's counters.
type ReconcilerStats struct {
	MessagesReceived  uint64
	MessagesProcessed uint64
	ParseErrors       uint64
	Creates           uint64
	Updates           uint64
	StorageErrors     uint64
}

// Reconciler consumes seismic events from the stream and reconciles each
// into the store: events are looked up by their date string; a miss
// inserts a new row and a hit rewrites the row matched by event ID.
//
// Every message gets exactly one processing attempt. Decode and storage
// failures are logged and counted, then the message is acked and dropped;
// the stream never redelivers a failed event.
type Reconciler struct {
	source   MessageSource
	store    EventStore
	registry *Registry
	topic    string

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	messagesReceived  atomic.Uint64
	messagesProcessed atomic.Uint64
	parseErrors       atomic.Uint64
	creates           atomic.Uint64
	updates           atomic.Uint64
	storageErrors     atomic.Uint64
}

// NewReconciler creates a reconciler consuming from the given topic.
// A nil registry falls back to DefaultRegistry.
func NewReconciler(source MessageSource, store EventStore, registry *Registry, topic string) *Reconciler {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Reconciler{
		source:   source,
		store:    store,
		registry: registry,
		topic:    topic,
	}
}

// Start begins consuming messages in a background goroutine.
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return fmt.Errorf("reconciler already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	messages, err := r.source.Subscribe(runCtx, r.topic)
	if err != nil {
		cancel()
		return fmt.Errorf("subscribe to %s: %w", r.topic, err)
	}

	r.cancel = cancel
	r.running = true
	r.wg.Add(1)
	go r.consumeLoop(runCtx, messages)

	logging.Info().Str("topic", r.topic).Msg("Reconciler started")
	return nil
}

// Stop cancels consumption and waits for the loop to drain.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	cancel := r.cancel
	r.mu.Unlock()

	cancel()
	r.wg.Wait()
	logging.Info().Msg("Reconciler stopped")
}

// IsRunning reports whether the consume loop is active.
func (r *Reconciler) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Stats returns a snapshot of the processing counters.
func (r *Reconciler) Stats() ReconcilerStats {
	return ReconcilerStats{
		MessagesReceived:  r.messagesReceived.Load(),
		MessagesProcessed: r.messagesProcessed.Load(),
		ParseErrors:       r.parseErrors.Load(),
		Creates:           r.creates.Load(),
		Updates:           r.updates.Load(),
		StorageErrors:     r.storageErrors.Load(),
	}
}

func (r *Reconciler) consumeLoop(ctx context.Context, messages <-chan *message.Message) {
	defer r.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			r.processMessage(ctx, msg)
		}
	}
}

// processMessage reconciles one message. The message is always acked:
// a failed event is dropped, not retried.
func (r *Reconciler) processMessage(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	r.messagesReceived.Add(1)
	metrics.MessagesConsumed.Inc()

	tag := msg.Metadata.Get(EventTypeHeader)
	if tag == "" {
		tag = TypeSeismicEvent
	}

	decoded, err := r.registry.Decode(tag, msg.Payload)
	if err != nil {
		r.parseErrors.Add(1)
		metrics.MessageParseFailures.Inc()
		logging.Error().Err(err).
			Str("message_uuid", msg.UUID).
			Str("event_type", tag).
			Msg("Dropping undecodable message")
		return
	}

	event, ok := decoded.(*models.SeismicEvent)
	if !ok {
		r.parseErrors.Add(1)
		metrics.MessageParseFailures.Inc()
		logging.Error().
			Str("message_uuid", msg.UUID).
			Str("event_type", tag).
			Msg("Decoded message is not a seismic event")
		return
	}

	r.reconcile(ctx, msg.UUID, event)
}

// reconcile applies the create-or-update decision. The lookup keys on the
// event date string; the update statement matches on event ID. When the
// feed reissued a different ID for the same date, the update touches
// nothing and the revision is silently lost, mirroring upstream behavior.
func (r *Reconciler) reconcile(ctx context.Context, msgUUID string, event *models.SeismicEvent) {
	existing, err := r.store.GetByDate(ctx, event.Date)
	if err != nil {
		r.storageErrors.Add(1)
		metrics.RecordStorageError()
		logging.Error().Err(err).
			Str("message_uuid", msgUUID).
			Str("event_id", event.EventID).
			Msg("Reconcile lookup failed, dropping event")
		return
	}

	if len(existing) == 0 {
		if err := r.store.Create(ctx, event); err != nil {
			r.storageErrors.Add(1)
			metrics.RecordStorageError()
			logging.Error().Err(err).
				Str("message_uuid", msgUUID).
				Str("event_id", event.EventID).
				Msg("Event insert failed, dropping event")
			return
		}
		r.creates.Add(1)
		metrics.RecordReconcileCreate()
	} else {
		if err := r.store.Update(ctx, event); err != nil {
			r.storageErrors.Add(1)
			metrics.RecordStorageError()
			logging.Error().Err(err).
				Str("message_uuid", msgUUID).
				Str("event_id", event.EventID).
				Msg("Event update failed, dropping event")
			return
		}
		r.updates.Add(1)
		metrics.RecordReconcileUpdate()
	}

	r.messagesProcessed.Add(1)
}
