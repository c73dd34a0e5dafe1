// Quakewatch - Seismic Event Feed Ingestion and Storage
// Copyright 2026 Quakewatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/iokt/quakewatch

package feed

import "fmt"

// FetchError reports a non-2xx response from the feed API.
type FetchError struct {
	StatusCode int
	Body       string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("feed returned status %d: %s", e.StatusCode, e.Body)
}

// DecodeError reports a response body that could not be parsed as the
// expected event list.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("feed response decode failed: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
