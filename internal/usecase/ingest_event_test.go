package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pildhora/pildhora-sync/internal/domain"
	"github.com/pildhora/pildhora-sync/internal/domain/mocks"
)

func validEvent() domain.MedicationEvent {
	return domain.MedicationEvent{
		ID:             uuid.NewString(),
		EventType:      domain.EventCreated,
		MedicationID:   "med-1",
		MedicationName: "Aspirin",
		PatientID:      "patient-1",
		PatientName:    "Maria",
		CaregiverID:    "caregiver-1",
		Timestamp:      time.Now().UTC(),
		SyncStatus:     domain.SyncPending,
	}
}

func newTestIngest(events domain.EventRepository, limiter domain.RateLimiter) *IngestEventUseCase {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewIngestEventUseCase(events, limiter, nil, logger)
}

func TestIngestEventUseCase_Ingest(t *testing.T) {
	t.Run("Accepts Valid Event From Patient Device", func(t *testing.T) {
		repo := &mocks.MockEventRepository{}
		uc := newTestIngest(repo, &mocks.MockRateLimiter{})

		event := validEvent()
		if err := uc.Ingest(context.Background(), &event, "patient-1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(repo.Saved) != 1 {
			t.Fatalf("expected 1 stored event, got %d", len(repo.Saved))
		}
	})

	t.Run("Accepts Valid Event From Caregiver Device", func(t *testing.T) {
		repo := &mocks.MockEventRepository{}
		uc := newTestIngest(repo, &mocks.MockRateLimiter{})

		event := validEvent()
		if err := uc.Ingest(context.Background(), &event, "caregiver-1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("Rejects Missing Fields", func(t *testing.T) {
		repo := &mocks.MockEventRepository{}
		uc := newTestIngest(repo, &mocks.MockRateLimiter{})

		event := validEvent()
		event.MedicationName = ""
		err := uc.Ingest(context.Background(), &event, "patient-1")
		if !errors.Is(err, ErrInvalidDocument) {
			t.Fatalf("expected ErrInvalidDocument, got %v", err)
		}
		var missing *domain.MissingFieldError
		if !errors.As(err, &missing) || missing.Field != "medication_name" {
			t.Errorf("expected a missing medication_name error, got %v", err)
		}
		if len(repo.Saved) != 0 {
			t.Error("rejected event must not be stored")
		}
	})

	t.Run("Rejects Unknown Event Type", func(t *testing.T) {
		repo := &mocks.MockEventRepository{}
		uc := newTestIngest(repo, &mocks.MockRateLimiter{})

		event := validEvent()
		event.EventType = "renamed"
		err := uc.Ingest(context.Background(), &event, "patient-1")
		if !errors.Is(err, ErrInvalidDocument) || !errors.Is(err, domain.ErrInvalidEventType) {
			t.Errorf("expected an invalid event type error, got %v", err)
		}
	})

	t.Run("Rejects Unknown Sync Status", func(t *testing.T) {
		repo := &mocks.MockEventRepository{}
		uc := newTestIngest(repo, &mocks.MockRateLimiter{})

		event := validEvent()
		event.SyncStatus = "queued"
		err := uc.Ingest(context.Background(), &event, "patient-1")
		if !errors.Is(err, domain.ErrInvalidSyncStatus) {
			t.Errorf("expected an invalid sync status error, got %v", err)
		}
	})

	t.Run("Rejects Changes On Non-Update", func(t *testing.T) {
		repo := &mocks.MockEventRepository{}
		uc := newTestIngest(repo, &mocks.MockRateLimiter{})

		event := validEvent()
		event.Changes = []domain.FieldChange{{Field: "name", OldValue: "a", NewValue: "b"}}
		err := uc.Ingest(context.Background(), &event, "patient-1")
		if !errors.Is(err, domain.ErrUnexpectedChanges) {
			t.Errorf("expected an unexpected changes error, got %v", err)
		}
	})

	t.Run("Rejects Mismatched Actor", func(t *testing.T) {
		repo := &mocks.MockEventRepository{}
		uc := newTestIngest(repo, &mocks.MockRateLimiter{})

		event := validEvent()
		err := uc.Ingest(context.Background(), &event, "someone-else")
		if !errors.Is(err, ErrActorMismatch) {
			t.Errorf("expected ErrActorMismatch, got %v", err)
		}
	})

	t.Run("Rejects Over Rate Ceiling", func(t *testing.T) {
		repo := &mocks.MockEventRepository{}
		uc := newTestIngest(repo, &mocks.MockRateLimiter{Denied: true})

		event := validEvent()
		err := uc.Ingest(context.Background(), &event, "patient-1")
		if !errors.Is(err, ErrRateLimited) {
			t.Errorf("expected ErrRateLimited, got %v", err)
		}
		if len(repo.Saved) != 0 {
			t.Error("rate limited event must not be stored")
		}
	})

	t.Run("Limiter Outage Fails Open", func(t *testing.T) {
		repo := &mocks.MockEventRepository{}
		limiter := &mocks.MockRateLimiter{AllowErr: errors.New("redis down")}
		uc := newTestIngest(repo, limiter)

		event := validEvent()
		if err := uc.Ingest(context.Background(), &event, "patient-1"); err != nil {
			t.Fatalf("limiter outage must not block ingestion, got %v", err)
		}
		if len(repo.Saved) != 1 {
			t.Error("event must be stored despite the limiter outage")
		}
	})

	t.Run("Store Failure", func(t *testing.T) {
		repo := &mocks.MockEventRepository{SaveErr: errors.New("insert failed")}
		uc := newTestIngest(repo, &mocks.MockRateLimiter{})

		event := validEvent()
		if err := uc.Ingest(context.Background(), &event, "patient-1"); err == nil {
			t.Fatal("expected a storage error")
		}
	})
}
