package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/pildhora/pildhora-sync/internal/domain"
	"github.com/pildhora/pildhora-sync/internal/domain/mocks"
)

type stubTrigger struct {
	calls atomic.Int64
}

func (s *stubTrigger) TriggerNow() { s.calls.Add(1) }

func newTestService(store domain.MedicationRepository, queue domain.EventQueue, trigger PassTrigger) *MedicationService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	directory := &mocks.MockPatientDirectory{Names: map[string]string{"patient-1": "Maria"}}
	factory := NewEventFactory(directory, "caregiver-1", logger)
	return NewMedicationService(store, factory, queue, trigger, logger)
}

func TestMedicationService_Create(t *testing.T) {
	store := &mocks.MockMedicationRepository{}
	queue := &mocks.MockEventQueue{}
	trigger := &stubTrigger{}
	service := newTestService(store, queue, trigger)
	ctx := context.Background()

	created, err := service.Create(ctx, testMedication())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if created.ID == "" {
		t.Error("expected a medication id")
	}
	if _, ok := store.Medications[created.ID]; !ok {
		t.Error("medication was not saved to the remote store")
	}

	if len(queue.Events) != 1 {
		t.Fatalf("expected 1 queued event, got %d", len(queue.Events))
	}
	event := queue.Events[0]
	if event.EventType != domain.EventCreated {
		t.Errorf("unexpected event type: %q", event.EventType)
	}
	if event.SyncStatus != domain.SyncPending {
		t.Errorf("expected pending status, got %q", event.SyncStatus)
	}
	if trigger.calls.Load() != 1 {
		t.Errorf("expected one sync trigger, got %d", trigger.calls.Load())
	}
}

func TestMedicationService_RemoteFailureFailsPrimaryAction(t *testing.T) {
	store := &mocks.MockMedicationRepository{SaveErr: errors.New("remote store down")}
	queue := &mocks.MockEventQueue{}
	service := newTestService(store, queue, nil)

	_, err := service.Create(context.Background(), testMedication())
	if err == nil {
		t.Fatal("expected the primary action to fail")
	}
	if len(queue.Events) != 0 {
		t.Error("no event may be queued when the primary action fails")
	}
}

func TestMedicationService_EnqueueFailureDoesNotFailPrimaryAction(t *testing.T) {
	store := &mocks.MockMedicationRepository{}
	queue := &mocks.MockEventQueue{EnqueueErr: errors.New("disk full")}
	trigger := &stubTrigger{}
	service := newTestService(store, queue, trigger)

	med, err := service.Create(context.Background(), testMedication())
	if err != nil {
		t.Fatalf("event pipeline failures must not fail the primary action: %v", err)
	}
	if _, ok := store.Medications[med.ID]; !ok {
		t.Error("medication must still be saved")
	}
	if trigger.calls.Load() != 0 {
		t.Error("no sync trigger expected when enqueue fails")
	}
}

func TestMedicationService_UpdateDiffsAgainstSnapshot(t *testing.T) {
	store := &mocks.MockMedicationRepository{}
	queue := &mocks.MockEventQueue{}
	service := newTestService(store, queue, nil)
	ctx := context.Background()

	created, err := service.Create(ctx, testMedication())
	if err != nil {
		t.Fatalf("failed to create: %v", err)
	}

	edited := created
	edited.Name = "Aspirin 500mg"
	edited.DoseValue = "2"
	if err := service.Update(ctx, edited); err != nil {
		t.Fatalf("failed to update: %v", err)
	}

	if len(queue.Events) != 2 {
		t.Fatalf("expected 2 queued events, got %d", len(queue.Events))
	}
	event := queue.Events[1]
	if event.EventType != domain.EventUpdated {
		t.Fatalf("unexpected event type: %q", event.EventType)
	}
	want := []domain.FieldChange{
		{Field: "name", OldValue: "Aspirin", NewValue: "Aspirin 500mg"},
		{Field: "doseValue", OldValue: "1", NewValue: "2"},
	}
	if len(event.Changes) != len(want) {
		t.Fatalf("expected %d changes, got %+v", len(want), event.Changes)
	}
	for i, change := range want {
		if event.Changes[i] != change {
			t.Errorf("change %d mismatch: got %+v, want %+v", i, event.Changes[i], change)
		}
	}
}

func TestMedicationService_UpdateFallsBackToRemoteSnapshot(t *testing.T) {
	store := &mocks.MockMedicationRepository{}
	queue := &mocks.MockEventQueue{}
	service := newTestService(store, queue, nil)
	ctx := context.Background()

	// The record exists remotely but not in this process's snapshot cache,
	// as after an agent restart.
	previous := testMedication()
	if err := store.SaveMedication(ctx, previous); err != nil {
		t.Fatalf("failed to seed store: %v", err)
	}

	edited := testMedication()
	edited.DoseValue = "2"
	if err := service.Update(ctx, edited); err != nil {
		t.Fatalf("failed to update: %v", err)
	}

	event := queue.Events[0]
	if len(event.Changes) != 1 || event.Changes[0].Field != "doseValue" {
		t.Errorf("expected a doseValue change diffed against the remote record, got %+v", event.Changes)
	}
}

func TestMedicationService_Delete(t *testing.T) {
	store := &mocks.MockMedicationRepository{}
	queue := &mocks.MockEventQueue{}
	service := newTestService(store, queue, nil)
	ctx := context.Background()

	created, err := service.Create(ctx, testMedication())
	if err != nil {
		t.Fatalf("failed to create: %v", err)
	}
	if err := service.Delete(ctx, created); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}

	if _, ok := store.Medications[created.ID]; ok {
		t.Error("medication must be removed from the remote store")
	}
	event := queue.Events[len(queue.Events)-1]
	if event.EventType != domain.EventDeleted {
		t.Errorf("unexpected event type: %q", event.EventType)
	}
	if event.Medication == nil || event.Medication.Name != "Aspirin" {
		t.Error("deleted event must carry the final snapshot")
	}
}

func TestMedicationService_RecordDose(t *testing.T) {
	t.Run("Taken Decrements Inventory", func(t *testing.T) {
		store := &mocks.MockMedicationRepository{}
		queue := &mocks.MockEventQueue{}
		service := newTestService(store, queue, nil)
		ctx := context.Background()

		created, err := service.Create(ctx, testMedication())
		if err != nil {
			t.Fatalf("failed to create: %v", err)
		}
		if err := service.RecordDose(ctx, created.ID, true); err != nil {
			t.Fatalf("failed to record dose: %v", err)
		}

		stored := store.Medications[created.ID]
		if stored.CurrentQuantity != 29 {
			t.Errorf("expected inventory 29, got %d", stored.CurrentQuantity)
		}
		event := queue.Events[len(queue.Events)-1]
		if event.EventType != domain.EventDoseTaken {
			t.Errorf("unexpected event type: %q", event.EventType)
		}
		if event.Medication.CurrentQuantity != 29 {
			t.Errorf("snapshot must reflect the decremented inventory, got %d", event.Medication.CurrentQuantity)
		}
	})

	t.Run("Missed Leaves Inventory", func(t *testing.T) {
		store := &mocks.MockMedicationRepository{}
		queue := &mocks.MockEventQueue{}
		service := newTestService(store, queue, nil)
		ctx := context.Background()

		created, err := service.Create(ctx, testMedication())
		if err != nil {
			t.Fatalf("failed to create: %v", err)
		}
		if err := service.RecordDose(ctx, created.ID, false); err != nil {
			t.Fatalf("failed to record dose: %v", err)
		}

		stored := store.Medications[created.ID]
		if stored.CurrentQuantity != 30 {
			t.Errorf("missed dose must not change inventory, got %d", stored.CurrentQuantity)
		}
		event := queue.Events[len(queue.Events)-1]
		if event.EventType != domain.EventDoseMissed {
			t.Errorf("unexpected event type: %q", event.EventType)
		}
	})

	t.Run("Unknown Medication", func(t *testing.T) {
		store := &mocks.MockMedicationRepository{}
		queue := &mocks.MockEventQueue{}
		service := newTestService(store, queue, nil)

		err := service.RecordDose(context.Background(), "no-such-med", true)
		if !errors.Is(err, domain.ErrMedicationNotFound) {
			t.Errorf("expected ErrMedicationNotFound, got %v", err)
		}
	})
}
