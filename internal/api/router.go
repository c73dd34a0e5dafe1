// Quakewatch - Seismic Event Feed Ingestion and Storage
// Copyright 2026 Quakewatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/iokt/quakewatch

// Package api exposes the management HTTP surface: event queries and
// deletes backed by the store, and ad-hoc ingestion triggers. There is
// no auth layer; deployments front this with their own gateway.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/iokt/quakewatch/internal/metrics"
)

// NewRouter builds the chi router for the management API.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/events", func(r chi.Router) {
			r.Get("/", h.ListEvents)
			r.Delete("/", h.DeleteAllEvents)

			r.Get("/magnitude", h.EventsByMagnitude)
			r.Delete("/magnitude", h.DeleteBelowMagnitude)

			r.Get("/date/{date}", h.EventsByDate)
			r.Delete("/date/{date}", h.DeleteByDate)

			r.Get("/country/{country}", h.EventsByCountry)
			r.Get("/province/{province}", h.EventsByProvince)

			r.Get("/{eventID}", h.EventByID)
			r.Delete("/{eventID}", h.DeleteEvent)
		})

		r.Route("/ingest", func(r chi.Router) {
			r.Post("/daily", h.TriggerDaily)
			r.Post("/latest", h.TriggerLatest)
		})
	})

	return r
}
