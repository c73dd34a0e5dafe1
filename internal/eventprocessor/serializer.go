// Quakewatch - Seismic Event Feed Ingestion and Storage
// Copyright 2026 Quakewatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/iokt/quakewatch

package eventprocessor

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/iokt/quakewatch/internal/models"
)

// Serializer handles event encoding/decoding for stream messages.
type Serializer struct{}

// NewSerializer creates a new serializer.
func NewSerializer() *Serializer {
	return &Serializer{}
}

// Marshal converts an event to JSON bytes, validating required fields first.
func (s *Serializer) Marshal(event *models.SeismicEvent) ([]byte, error) {
	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("validate event: %w", err)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}

	return data, nil
}

// Unmarshal converts JSON bytes to an event.
func (s *Serializer) Unmarshal(data []byte) (*models.SeismicEvent, error) {
	var event models.SeismicEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}

	return &event, nil
}

// SerializeEvent is a convenience function that marshals an event to JSON.
func SerializeEvent(event *models.SeismicEvent) ([]byte, error) {
	return NewSerializer().Marshal(event)
}

// DeserializeEvent is a convenience function that unmarshals JSON to an event.
func DeserializeEvent(data []byte) (*models.SeismicEvent, error) {
	return NewSerializer().Unmarshal(data)
}

// DecodeSeismicEvent is the Registry decoder for the seismic_event variant.
func DecodeSeismicEvent(payload []byte) (any, error) {
	return DeserializeEvent(payload)
}
