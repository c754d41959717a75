package domain

import (
	"errors"
	"fmt"
	"time"
)

// EventType identifies the medication lifecycle action an event records.
type EventType string

const (
	EventCreated    EventType = "created"
	EventUpdated    EventType = "updated"
	EventDeleted    EventType = "deleted"
	EventDoseTaken  EventType = "dose_taken"
	EventDoseMissed EventType = "dose_missed"
)

// SyncStatus tracks delivery of an event to the remote store. It is the only
// mutable field on an event.
type SyncStatus string

const (
	SyncPending   SyncStatus = "pending"
	SyncDelivered SyncStatus = "delivered"
	SyncFailed    SyncStatus = "failed"
)

// FieldChange records one tracked attribute that differed between the old and
// new medication record of an update.
type FieldChange struct {
	Field    string `json:"field"`
	OldValue any    `json:"old_value"`
	NewValue any    `json:"new_value"`
}

// MedicationEvent is an immutable record of a medication lifecycle action.
// It is denormalized (medication name, patient name) so it can be rendered
// without follow-up lookups.
type MedicationEvent struct {
	ID             string        `json:"id"`
	EventType      EventType     `json:"event_type"`
	MedicationID   string        `json:"medication_id"`
	MedicationName string        `json:"medication_name"`
	Medication     *Medication   `json:"medication,omitempty"`
	PatientID      string        `json:"patient_id"`
	PatientName    string        `json:"patient_name,omitempty"`
	CaregiverID    string        `json:"caregiver_id"`
	Timestamp      time.Time     `json:"timestamp"`
	SyncStatus     SyncStatus    `json:"sync_status"`
	Changes        []FieldChange `json:"changes,omitempty"`
}

var (
	ErrInvalidEventType  = errors.New("event type outside the allowed set")
	ErrInvalidSyncStatus = errors.New("sync status outside the allowed set")
	ErrUnexpectedChanges = errors.New("changes are only valid on updated events")
)

// MissingFieldError reports a required event field that was absent.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required event field %q", e.Field)
}

func (t EventType) valid() bool {
	switch t {
	case EventCreated, EventUpdated, EventDeleted, EventDoseTaken, EventDoseMissed:
		return true
	}
	return false
}

func (s SyncStatus) valid() bool {
	switch s {
	case SyncPending, SyncDelivered, SyncFailed:
		return true
	}
	return false
}

// Validate enforces the remote store document contract: required fields
// present, closed enumerations respected, and changes only on updates.
func (e *MedicationEvent) Validate() error {
	required := []struct {
		name  string
		empty bool
	}{
		{"id", e.ID == ""},
		{"event_type", e.EventType == ""},
		{"medication_id", e.MedicationID == ""},
		{"medication_name", e.MedicationName == ""},
		{"patient_id", e.PatientID == ""},
		{"caregiver_id", e.CaregiverID == ""},
		{"timestamp", e.Timestamp.IsZero()},
		{"sync_status", e.SyncStatus == ""},
	}
	for _, f := range required {
		if f.empty {
			return &MissingFieldError{Field: f.name}
		}
	}

	if !e.EventType.valid() {
		return fmt.Errorf("%w: %q", ErrInvalidEventType, e.EventType)
	}
	if !e.SyncStatus.valid() {
		return fmt.Errorf("%w: %q", ErrInvalidSyncStatus, e.SyncStatus)
	}
	if len(e.Changes) > 0 && e.EventType != EventUpdated {
		return ErrUnexpectedChanges
	}
	return nil
}
