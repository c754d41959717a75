package usecase

import (
	"context"
	"log/slog"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/pildhora/pildhora-sync/internal/domain"
)

// trackedFields is the fixed set of medication attributes that appear in the
// changes list of an updated event, in the order they are compared.
var trackedFields = []struct {
	name  string
	value func(m domain.Medication) any
}{
	{"name", func(m domain.Medication) any { return m.Name }},
	{"doseValue", func(m domain.Medication) any { return m.DoseValue }},
	{"doseUnit", func(m domain.Medication) any { return m.DoseUnit }},
	{"quantityType", func(m domain.Medication) any { return m.QuantityType }},
	{"frequency", func(m domain.Medication) any { return m.Frequency }},
	{"times", func(m domain.Medication) any { return append([]string(nil), m.Times...) }},
	{"emoji", func(m domain.Medication) any { return m.Emoji }},
	{"trackInventory", func(m domain.Medication) any { return m.TrackInventory }},
	{"currentQuantity", func(m domain.Medication) any { return m.CurrentQuantity }},
	{"lowQuantityThreshold", func(m domain.Medication) any { return m.LowQuantityThreshold }},
}

// EventFactory builds immutable medication events from CRUD and dose actions.
// Building an event never fails: if the patient's display name cannot be
// resolved, the event is produced with an empty name instead.
type EventFactory struct {
	directory   domain.PatientDirectory
	caregiverID string
	logger      *slog.Logger
}

// NewEventFactory creates a factory that stamps events with the acting
// caregiver's id and resolves patient names through directory.
func NewEventFactory(directory domain.PatientDirectory, caregiverID string, logger *slog.Logger) *EventFactory {
	return &EventFactory{
		directory:   directory,
		caregiverID: caregiverID,
		logger:      logger.With("component", "event_factory"),
	}
}

// Created builds an event recording a new medication.
func (f *EventFactory) Created(ctx context.Context, med domain.Medication) domain.MedicationEvent {
	return f.build(ctx, domain.EventCreated, med)
}

// Updated builds an event recording an edit, with one change entry per
// tracked field whose value differs between old and updated.
func (f *EventFactory) Updated(ctx context.Context, old, updated domain.Medication) domain.MedicationEvent {
	event := f.build(ctx, domain.EventUpdated, updated)
	event.Changes = diffTrackedFields(old, updated)
	return event
}

// Deleted builds an event recording a removal. The snapshot preserves the
// record as it was before deletion.
func (f *EventFactory) Deleted(ctx context.Context, med domain.Medication) domain.MedicationEvent {
	return f.build(ctx, domain.EventDeleted, med)
}

// DoseTaken builds an event recording a taken dose.
func (f *EventFactory) DoseTaken(ctx context.Context, med domain.Medication) domain.MedicationEvent {
	return f.build(ctx, domain.EventDoseTaken, med)
}

// DoseMissed builds an event recording a missed dose.
func (f *EventFactory) DoseMissed(ctx context.Context, med domain.Medication) domain.MedicationEvent {
	return f.build(ctx, domain.EventDoseMissed, med)
}

func (f *EventFactory) build(ctx context.Context, eventType domain.EventType, med domain.Medication) domain.MedicationEvent {
	snapshot := med.Clone()
	return domain.MedicationEvent{
		ID:             uuid.NewString(),
		EventType:      eventType,
		MedicationID:   med.ID,
		MedicationName: med.Name,
		Medication:     &snapshot,
		PatientID:      med.PatientID,
		PatientName:    f.resolvePatientName(ctx, med.PatientID),
		CaregiverID:    f.caregiverID,
		Timestamp:      time.Now().UTC(),
		SyncStatus:     domain.SyncPending,
	}
}

func (f *EventFactory) resolvePatientName(ctx context.Context, patientID string) string {
	name, err := f.directory.PatientName(ctx, patientID)
	if err != nil {
		f.logger.Warn("failed to resolve patient name, emitting event without it",
			"patient_id", patientID, "error", err)
		return ""
	}
	return name
}

func diffTrackedFields(old, updated domain.Medication) []domain.FieldChange {
	var changes []domain.FieldChange
	for _, field := range trackedFields {
		oldValue := field.value(old)
		newValue := field.value(updated)
		if !reflect.DeepEqual(oldValue, newValue) {
			changes = append(changes, domain.FieldChange{
				Field:    field.name,
				OldValue: oldValue,
				NewValue: newValue,
			})
		}
	}
	return changes
}
