// Quakewatch - Seismic Event Feed Ingestion and Storage
// Copyright 2026 Quakewatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/iokt/quakewatch

package services

import (
	"context"

	"github.com/iokt/quakewatch/internal/scheduler"
)

// SchedulerService supervises the periodic ingestion scheduler.
type SchedulerService struct {
	scheduler *scheduler.Scheduler
}

// NewSchedulerService wraps a scheduler for supervision.
func NewSchedulerService(s *scheduler.Scheduler) *SchedulerService {
	return &SchedulerService{scheduler: s}
}

// Serve runs the scheduler loop until the context is canceled.
func (s *SchedulerService) Serve(ctx context.Context) error {
	return s.scheduler.Serve(ctx)
}

func (s *SchedulerService) String() string {
	return "scheduler-service"
}
