package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/pildhora/pildhora-sync/internal/domain"
)

// PassTrigger requests an out-of-schedule sync pass.
type PassTrigger interface {
	TriggerNow()
}

// MedicationService executes the primary medication actions against the
// remote store and records one lifecycle event per action in the outbox.
// Failures in the event pipeline (factory, enqueue, sync) are logged and
// never fail the primary action; failures of the primary action itself are
// returned to the caller.
type MedicationService struct {
	store   domain.MedicationRepository
	factory *EventFactory
	queue   domain.EventQueue
	trigger PassTrigger
	logger  *slog.Logger

	mu        sync.Mutex
	snapshots map[string]domain.Medication
}

// NewMedicationService creates a medication service. trigger may be nil.
func NewMedicationService(store domain.MedicationRepository, factory *EventFactory, queue domain.EventQueue, trigger PassTrigger, logger *slog.Logger) *MedicationService {
	return &MedicationService{
		store:     store,
		factory:   factory,
		queue:     queue,
		trigger:   trigger,
		logger:    logger.With("component", "medication_service"),
		snapshots: make(map[string]domain.Medication),
	}
}

// Create saves a new medication and records a created event.
func (s *MedicationService) Create(ctx context.Context, med domain.Medication) (domain.Medication, error) {
	if med.ID == "" {
		med.ID = uuid.NewString()
	}
	if err := s.store.SaveMedication(ctx, med); err != nil {
		return domain.Medication{}, fmt.Errorf("failed to save medication: %w", err)
	}
	s.remember(med)
	s.emit(ctx, s.factory.Created(ctx, med))
	return med, nil
}

// Update saves an edited medication and records an updated event whose
// changes list is diffed against the previous record.
func (s *MedicationService) Update(ctx context.Context, med domain.Medication) error {
	old, known := s.previous(ctx, med.ID)

	if err := s.store.SaveMedication(ctx, med); err != nil {
		return fmt.Errorf("failed to save medication: %w", err)
	}
	s.remember(med)

	if !known {
		s.logger.Warn("no previous record for updated medication, diffing against empty record",
			"medication_id", med.ID)
	}
	s.emit(ctx, s.factory.Updated(ctx, old, med))
	return nil
}

// Delete removes a medication and records a deleted event carrying the final
// snapshot of the record.
func (s *MedicationService) Delete(ctx context.Context, med domain.Medication) error {
	if err := s.store.DeleteMedication(ctx, med.ID); err != nil {
		return fmt.Errorf("failed to delete medication: %w", err)
	}
	s.forget(med.ID)
	s.emit(ctx, s.factory.Deleted(ctx, med))
	return nil
}

// RecordDose records a taken or missed dose. Taking a dose of an
// inventory-tracked medication also decrements its remaining quantity.
func (s *MedicationService) RecordDose(ctx context.Context, medicationID string, taken bool) error {
	med, known := s.previous(ctx, medicationID)
	if !known {
		return fmt.Errorf("failed to record dose: %w", domain.ErrMedicationNotFound)
	}

	if taken && med.TrackInventory && med.CurrentQuantity > 0 {
		med.CurrentQuantity--
		if err := s.store.SaveMedication(ctx, med); err != nil {
			return fmt.Errorf("failed to update medication inventory: %w", err)
		}
		s.remember(med)
		if med.CurrentQuantity <= med.LowQuantityThreshold {
			s.logger.Info("medication quantity low",
				"medication_id", med.ID, "remaining", med.CurrentQuantity)
		}
	}

	if taken {
		s.emit(ctx, s.factory.DoseTaken(ctx, med))
	} else {
		s.emit(ctx, s.factory.DoseMissed(ctx, med))
	}
	return nil
}

// emit queues the event and nudges the sync engine. Any failure here is
// logged only; the primary action has already succeeded.
func (s *MedicationService) emit(ctx context.Context, event domain.MedicationEvent) {
	if err := s.queue.Enqueue(ctx, event); err != nil {
		s.logger.Error("failed to queue medication event, it will not be delivered",
			"event_id", event.ID, "event_type", event.EventType, "error", err)
		return
	}
	if s.trigger != nil {
		s.trigger.TriggerNow()
	}
}

func (s *MedicationService) remember(med domain.Medication) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[med.ID] = med.Clone()
}

func (s *MedicationService) forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, id)
}

// previous returns the last known record for a medication, falling back to a
// remote read when the local snapshot cache misses.
func (s *MedicationService) previous(ctx context.Context, id string) (domain.Medication, bool) {
	s.mu.Lock()
	med, ok := s.snapshots[id]
	s.mu.Unlock()
	if ok {
		return med, true
	}

	med, err := s.store.GetMedication(ctx, id)
	if err != nil {
		return domain.Medication{}, false
	}
	s.remember(med)
	return med, true
}
