// Quakewatch - Seismic Event Feed Ingestion and Storage
// Copyright 2026 Quakewatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/iokt/quakewatch

package eventprocessor

import (
	"errors"
	"fmt"
)

// EventTypeHeader is the message metadata key carrying the payload's
// variant tag. Consumers dispatch on it instead of guessing from topic
// names.
const EventTypeHeader = "event_type"

// TypeSeismicEvent tags a message carrying a serialized SeismicEvent.
const TypeSeismicEvent = "seismic_event"

// ErrUnknownEventType is returned when a message carries a variant tag
// no decoder is registered for.
var ErrUnknownEventType = errors.New("unknown event type")

// Decoder turns a raw payload into a typed event.
type Decoder func(payload []byte) (any, error)

// Registry maps variant tags to payload decoders. It is populated once at
// construction and read-only afterwards, so it is safe for concurrent use.
type Registry struct {
	decoders map[string]Decoder
}

// NewRegistry creates a registry from an explicit tag→decoder mapping.
func NewRegistry(decoders map[string]Decoder) *Registry {
	m := make(map[string]Decoder, len(decoders))
	for tag, d := range decoders {
		m[tag] = d
	}
	return &Registry{decoders: m}
}

// DefaultRegistry returns the registry covering the variants this pipeline
// produces.
func DefaultRegistry() *Registry {
	return NewRegistry(map[string]Decoder{
		TypeSeismicEvent: DecodeSeismicEvent,
	})
}

// Decode dispatches the payload to the decoder registered for the tag.
func (r *Registry) Decode(tag string, payload []byte) (any, error) {
	d, ok := r.decoders[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, tag)
	}
	return d(payload)
}

// Known reports whether a decoder is registered for the tag.
func (r *Registry) Known(tag string) bool {
	_, ok := r.decoders[tag]
	return ok
}
