// Quakewatch - Seismic Event Feed Ingestion and Storage
// Copyright 2026 Quakewatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/iokt/quakewatch

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/iokt/quakewatch/internal/database"
	"github.com/iokt/quakewatch/internal/logging"
	"github.com/iokt/quakewatch/internal/models"
)

// EventStore is the storage surface the handlers query.
type EventStore interface {
	GetAll(ctx context.Context) ([]models.SeismicEvent, error)
	GetByEventID(ctx context.Context, eventID string) (models.SeismicEvent, error)
	GetByDate(ctx context.Context, date string) ([]models.SeismicEvent, error)
	GetByCountry(ctx context.Context, country string) ([]models.SeismicEvent, error)
	GetByProvince(ctx context.Context, province string) ([]models.SeismicEvent, error)
	GetByMagnitude(ctx context.Context, magnitude float64) ([]models.SeismicEvent, error)
	GetGreaterThanMagnitude(ctx context.Context, magnitude float64) ([]models.SeismicEvent, error)
	Delete(ctx context.Context, eventID string) error
	DeleteAll(ctx context.Context) error
	DeleteByDate(ctx context.Context, date string) error
	DeleteSmallerThanMagnitude(ctx context.Context, magnitude float64) error
}

// IngestTrigger is the scheduler surface for ad-hoc cycles.
type IngestTrigger interface {
	RunDateRange(ctx context.Context, date time.Time) (int, error)
	RunDateRangeFiltered(ctx context.Context, date time.Time, minMagnitude float64) (int, error)
	RunLatest(ctx context.Context) (int, error)
}

// Handler serves the management API.
type Handler struct {
	store   EventStore
	trigger IngestTrigger
}

// NewHandler creates the API handler.
func NewHandler(store EventStore, trigger IngestTrigger) *Handler {
	return &Handler{store: store, trigger: trigger}
}

type errorResponse struct {
	Error string `json:"error"`
}

type ingestResponse struct {
	Published int `json:"published"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeEvents normalizes a nil slice to an empty JSON array.
func writeEvents(w http.ResponseWriter, events []models.SeismicEvent) {
	if events == nil {
		events = []models.SeismicEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListEvents returns every stored event.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.store.GetAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeEvents(w, events)
}

// EventByID returns a single event by feed-assigned ID.
func (h *Handler) EventByID(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	event, err := h.store.GetByEventID(r.Context(), eventID)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// EventsByDate returns events with the exact date string.
func (h *Handler) EventsByDate(w http.ResponseWriter, r *http.Request) {
	events, err := h.store.GetByDate(r.Context(), chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeEvents(w, events)
}

// EventsByCountry returns events for a country.
func (h *Handler) EventsByCountry(w http.ResponseWriter, r *http.Request) {
	events, err := h.store.GetByCountry(r.Context(), chi.URLParam(r, "country"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeEvents(w, events)
}

// EventsByProvince returns events for a province.
func (h *Handler) EventsByProvince(w http.ResponseWriter, r *http.Request) {
	events, err := h.store.GetByProvince(r.Context(), chi.URLParam(r, "province"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeEvents(w, events)
}

// EventsByMagnitude handles ?eq= for exact match and ?min= for a strict
// greater-than query.
func (h *Handler) EventsByMagnitude(w http.ResponseWriter, r *http.Request) {
	if eq := r.URL.Query().Get("eq"); eq != "" {
		mag, err := strconv.ParseFloat(eq, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid eq magnitude")
			return
		}
		events, err := h.store.GetByMagnitude(r.Context(), mag)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "query failed")
			return
		}
		writeEvents(w, events)
		return
	}

	minStr := r.URL.Query().Get("min")
	if minStr == "" {
		writeError(w, http.StatusBadRequest, "eq or min query parameter required")
		return
	}
	mag, err := strconv.ParseFloat(minStr, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid min magnitude")
		return
	}
	events, err := h.store.GetGreaterThanMagnitude(r.Context(), mag)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeEvents(w, events)
}

// DeleteEvent removes one event by ID.
func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), chi.URLParam(r, "eventID")); err != nil {
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteAllEvents clears the store.
func (h *Handler) DeleteAllEvents(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteAll(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteByDate removes events with the exact date string.
func (h *Handler) DeleteByDate(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteByDate(r.Context(), chi.URLParam(r, "date")); err != nil {
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteBelowMagnitude removes events with magnitude below ?below=.
// Events with unparseable magnitudes are kept.
func (h *Handler) DeleteBelowMagnitude(w http.ResponseWriter, r *http.Request) {
	belowStr := r.URL.Query().Get("below")
	if belowStr == "" {
		writeError(w, http.StatusBadRequest, "below query parameter required")
		return
	}
	mag, err := strconv.ParseFloat(belowStr, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid below magnitude")
		return
	}
	if err := h.store.DeleteSmallerThanMagnitude(r.Context(), mag); err != nil {
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TriggerDaily runs an ad-hoc ingestion cycle for ?date= (default today),
// optionally filtered by ?min_magnitude=.
func (h *Handler) TriggerDaily(w http.ResponseWriter, r *http.Request) {
	date := time.Now().UTC()
	if dateStr := r.URL.Query().Get("date"); dateStr != "" {
		parsed, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
			return
		}
		date = parsed
	}

	var published int
	var err error
	if minStr := r.URL.Query().Get("min_magnitude"); minStr != "" {
		minMag, parseErr := strconv.ParseFloat(minStr, 64)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, "invalid min_magnitude")
			return
		}
		published, err = h.trigger.RunDateRangeFiltered(r.Context(), date, minMag)
	} else {
		published, err = h.trigger.RunDateRange(r.Context(), date)
	}

	if err != nil {
		logging.Error().Err(err).Msg("Ad-hoc ingestion cycle failed")
		writeError(w, http.StatusBadGateway, "ingestion failed")
		return
	}
	writeJSON(w, http.StatusOK, ingestResponse{Published: published})
}

// TriggerLatest publishes the most recent feed event.
func (h *Handler) TriggerLatest(w http.ResponseWriter, r *http.Request) {
	published, err := h.trigger.RunLatest(r.Context())
	if err != nil {
		logging.Error().Err(err).Msg("Latest ingestion failed")
		writeError(w, http.StatusBadGateway, "ingestion failed")
		return
	}
	writeJSON(w, http.StatusOK, ingestResponse{Published: published})
}
