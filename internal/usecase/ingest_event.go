package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pildhora/pildhora-sync/internal/adapter/metrics"
	"github.com/pildhora/pildhora-sync/internal/domain"
)

var (
	// ErrInvalidDocument wraps a failed event document validation.
	ErrInvalidDocument = errors.New("invalid event document")
	// ErrActorMismatch is returned when the authenticated actor is neither
	// the patient nor the caregiver named on the event.
	ErrActorMismatch = errors.New("event actor does not match authenticated device")
	// ErrRateLimited is returned when the patient's event ceiling is reached.
	ErrRateLimited = errors.New("event rate limit exceeded")
)

// IngestEventUseCase validates and persists event documents delivered by
// device agents.
type IngestEventUseCase struct {
	events  domain.EventRepository
	limiter domain.RateLimiter
	metrics *metrics.ServerMetrics
	logger  *slog.Logger
}

// NewIngestEventUseCase creates the ingest use case. metrics may be nil.
func NewIngestEventUseCase(events domain.EventRepository, limiter domain.RateLimiter, m *metrics.ServerMetrics, logger *slog.Logger) *IngestEventUseCase {
	return &IngestEventUseCase{
		events:  events,
		limiter: limiter,
		metrics: m,
		logger:  logger,
	}
}

// Ingest accepts one event document written by the actor identified by
// actorID. Duplicate event ids are absorbed by the repository, so agents may
// safely redeliver after a lost acknowledgment.
func (uc *IngestEventUseCase) Ingest(ctx context.Context, event *domain.MedicationEvent, actorID string) error {
	if err := event.Validate(); err != nil {
		uc.count("rejected_validation")
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	if actorID != event.PatientID && actorID != event.CaregiverID {
		uc.count("rejected_actor")
		uc.logger.Warn("rejected event from mismatched actor",
			"event_id", event.ID, "actor_id", actorID, "patient_id", event.PatientID)
		return ErrActorMismatch
	}

	allowed, err := uc.limiter.Allow(ctx, event.PatientID)
	if err != nil {
		// The limiter backend being down must not block ingestion.
		uc.logger.Warn("rate limiter unavailable, accepting event", "error", err)
		allowed = true
	}
	if !allowed {
		uc.count("rejected_rate")
		return ErrRateLimited
	}

	if err := uc.events.SaveEvent(ctx, *event); err != nil {
		uc.count("error_store")
		uc.logger.Error("failed to store event", "event_id", event.ID, "error", err)
		return fmt.Errorf("failed to store event: %w", err)
	}

	uc.count("accepted")
	return nil
}

func (uc *IngestEventUseCase) count(status string) {
	if uc.metrics != nil {
		uc.metrics.EventsTotal.WithLabelValues(status).Inc()
	}
}
