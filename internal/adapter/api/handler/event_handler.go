package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/pildhora/pildhora-sync/internal/adapter/api/middleware"
	"github.com/pildhora/pildhora-sync/internal/domain"
	"github.com/pildhora/pildhora-sync/internal/usecase"
)

// EventIngestor accepts one event document from an authenticated actor.
type EventIngestor interface {
	Ingest(ctx context.Context, event *domain.MedicationEvent, actorID string) error
}

// EventHandler handles HTTP requests for event ingestion.
type EventHandler struct {
	useCase      EventIngestor
	logger       *slog.Logger
	maxEventSize int64
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(uc EventIngestor, logger *slog.Logger, maxEventSize int64) *EventHandler {
	return &EventHandler{
		useCase:      uc,
		logger:       logger,
		maxEventSize: maxEventSize,
	}
}

// ServeHTTP processes one POSTed event document.
func (h *EventHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.ActorID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxEventSize)

	var event domain.MedicationEvent
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&event); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			http.Error(w, "Payload too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	if err := h.useCase.Ingest(r.Context(), &event, actorID); err != nil {
		switch {
		case errors.Is(err, usecase.ErrInvalidDocument):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, usecase.ErrActorMismatch):
			http.Error(w, "Forbidden", http.StatusForbidden)
		case errors.Is(err, usecase.ErrRateLimited):
			http.Error(w, "Too many events", http.StatusTooManyRequests)
		default:
			h.logger.Error("failed to ingest event", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusAccepted)
}
