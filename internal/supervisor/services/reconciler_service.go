// Quakewatch - Seismic Event Feed Ingestion and Storage
// Copyright 2026 Quakewatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/iokt/quakewatch

// Package services adapts pipeline components to suture.Service.
package services

import (
	"context"

	"github.com/iokt/quakewatch/internal/eventprocessor"
)

// ReconcilerService supervises the stream reconciler.
type ReconcilerService struct {
	reconciler *eventprocessor.Reconciler
}

// NewReconcilerService wraps a reconciler for supervision.
func NewReconcilerService(r *eventprocessor.Reconciler) *ReconcilerService {
	return &ReconcilerService{reconciler: r}
}

// Serve runs the reconciler until the context is canceled. Returning
// ctx.Err() tells suture this is a clean shutdown, not a crash.
func (s *ReconcilerService) Serve(ctx context.Context) error {
	if err := s.reconciler.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	s.reconciler.Stop()
	return ctx.Err()
}

func (s *ReconcilerService) String() string {
	return "reconciler-service"
}
