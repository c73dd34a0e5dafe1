// Quakewatch - Seismic Event Feed Ingestion and Storage
// Copyright 2026 Quakewatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/iokt/quakewatch

package services

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/iokt/quakewatch/internal/logging"
)

// HTTPService supervises the management HTTP server.
type HTTPService struct {
	server *http.Server
}

// NewHTTPService wraps an http.Server for supervision.
func NewHTTPService(server *http.Server) *HTTPService {
	return &HTTPService{server: server}
}

// Serve runs the server until the context is canceled, then drains it.
func (s *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.ListenAndServe()
	}()

	logging.Info().Str("addr", s.server.Addr).Msg("HTTP server listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			logging.Warn().Err(err).Msg("HTTP server shutdown incomplete")
		}
		return ctx.Err()
	}
}

func (s *HTTPService) String() string {
	return "http-service"
}
