package domain

import (
	"context"
	"errors"
)

var (
	ErrMedicationNotFound = errors.New("medication not found")
	ErrPatientNotFound    = errors.New("patient not found")
	ErrDeviceKeyInvalid   = errors.New("device key invalid")
)

// EventQueue is the local durable outbox. Enqueued events survive process
// restarts and are removed only after an explicit Ack.
type EventQueue interface {
	// Enqueue persists a pending event. It returns once the event is durable.
	Enqueue(ctx context.Context, event MedicationEvent) error

	// Ack removes a delivered event from the queue.
	Ack(ctx context.Context, eventID string) error

	// Pending returns all queued events in insertion order.
	Pending(ctx context.Context) ([]MedicationEvent, error)

	// PendingCount reports the number of queued events. Display only, not a
	// correctness input.
	PendingCount(ctx context.Context) (int, error)
}

// EventPublisher delivers a single event to the remote store.
type EventPublisher interface {
	Publish(ctx context.Context, event MedicationEvent) error
}

// EventRepository is the remote store's event collection.
type EventRepository interface {
	// SaveEvent persists an event document. Saving an event id that already
	// exists is a no-op, so redelivery after a lost acknowledgment is safe.
	SaveEvent(ctx context.Context, event MedicationEvent) error
}

// MedicationRepository stores medication records. Implemented by the server's
// PostgreSQL repository and, on the agent, by the HTTP client for the remote
// store.
type MedicationRepository interface {
	SaveMedication(ctx context.Context, med Medication) error
	GetMedication(ctx context.Context, id string) (Medication, error)
	DeleteMedication(ctx context.Context, id string) error
}

// PatientDirectory resolves a patient's display name for denormalization
// onto events.
type PatientDirectory interface {
	PatientName(ctx context.Context, patientID string) (string, error)
}

// DeviceKeyRepository validates device keys and reports the actor (patient or
// caregiver id) the key belongs to.
type DeviceKeyRepository interface {
	// ActorFor returns the actor id for a valid, active key, or
	// ErrDeviceKeyInvalid.
	ActorFor(ctx context.Context, key string) (string, error)
}

// RateLimiter enforces the per-patient event ingestion ceiling.
type RateLimiter interface {
	// Allow reports whether one more event may be accepted for the patient
	// within the current window.
	Allow(ctx context.Context, patientID string) (bool, error)
}
