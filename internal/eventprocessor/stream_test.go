// Quakewatch - Seismic Event Feed Ingestion and Storage
// Copyright 2026 Quakewatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/iokt/quakewatch

package eventprocessor

import (
	"context"
	"errors"
	"testing"

	"github.com/nats-io/nats.go/jetstream"
)

type fakeJetStream struct {
	streamExists bool
	streamErr    error

	created *jetstream.StreamConfig
	updated *jetstream.StreamConfig
}

func (f *fakeJetStream) Stream(ctx context.Context, name string) (jetstream.Stream, error) {
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	if !f.streamExists {
		return nil, jetstream.ErrStreamNotFound
	}
	return nil, nil
}

func (f *fakeJetStream) CreateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error) {
	f.created = &cfg
	return nil, nil
}

func (f *fakeJetStream) UpdateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error) {
	f.updated = &cfg
	return nil, nil
}

func TestEnsureStream(t *testing.T) {
	cfg := DefaultStreamConfig()

	t.Run("creates missing stream", func(t *testing.T) {
		js := &fakeJetStream{streamExists: false}
		init, err := NewStreamInitializer(js, &cfg)
		if err != nil {
			t.Fatalf("NewStreamInitializer: %v", err)
		}

		if _, err := init.EnsureStream(context.Background()); err != nil {
			t.Fatalf("EnsureStream: %v", err)
		}
		if js.created == nil {
			t.Fatal("Expected stream creation")
		}
		if js.updated != nil {
			t.Error("Did not expect stream update")
		}
		if js.created.Name != cfg.Name {
			t.Errorf("Expected stream %q, got %q", cfg.Name, js.created.Name)
		}
		if js.created.Storage != jetstream.FileStorage {
			t.Errorf("Expected file storage, got %v", js.created.Storage)
		}
		if js.created.Duplicates != cfg.DuplicateWindow {
			t.Errorf("Expected duplicate window %v, got %v", cfg.DuplicateWindow, js.created.Duplicates)
		}
	})

	t.Run("updates existing stream", func(t *testing.T) {
		js := &fakeJetStream{streamExists: true}
		init, err := NewStreamInitializer(js, &cfg)
		if err != nil {
			t.Fatalf("NewStreamInitializer: %v", err)
		}

		if _, err := init.EnsureStream(context.Background()); err != nil {
			t.Fatalf("EnsureStream: %v", err)
		}
		if js.updated == nil {
			t.Fatal("Expected stream update")
		}
		if js.created != nil {
			t.Error("Did not expect stream creation")
		}
	})

	t.Run("propagates lookup failures", func(t *testing.T) {
		js := &fakeJetStream{streamErr: errors.New("connection lost")}
		init, err := NewStreamInitializer(js, &cfg)
		if err != nil {
			t.Fatalf("NewStreamInitializer: %v", err)
		}

		if _, err := init.EnsureStream(context.Background()); err == nil {
			t.Fatal("Expected error from stream lookup")
		}
		if js.created != nil || js.updated != nil {
			t.Error("No provisioning should happen on lookup failure")
		}
	})

	t.Run("rejects nil arguments", func(t *testing.T) {
		if _, err := NewStreamInitializer(nil, &cfg); err == nil {
			t.Error("Expected error for nil JetStream context")
		}
		if _, err := NewStreamInitializer(&fakeJetStream{}, nil); err == nil {
			t.Error("Expected error for nil config")
		}
	})
}

func TestStreamInitializerIsHealthy(t *testing.T) {
	cfg := DefaultStreamConfig()

	js := &fakeJetStream{streamExists: true}
	init, err := NewStreamInitializer(js, &cfg)
	if err != nil {
		t.Fatalf("NewStreamInitializer: %v", err)
	}
	if !init.IsHealthy(context.Background()) {
		t.Error("Expected healthy when stream exists")
	}

	js.streamErr = errors.New("connection lost")
	if init.IsHealthy(context.Background()) {
		t.Error("Expected unhealthy on lookup failure")
	}
}
