package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/pildhora/pildhora-sync/internal/domain"
)

// EventRepository implements domain.EventRepository on PostgreSQL. Event ids
// are the primary key; inserting an id that already exists is a no-op, which
// makes agent redelivery after a lost acknowledgment harmless.
type EventRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewEventRepository creates a new PostgreSQL event repository.
func NewEventRepository(db *sql.DB, logger *slog.Logger) *EventRepository {
	return &EventRepository{db: db, logger: logger.With("component", "event_repository")}
}

// SaveEvent persists one event document.
func (r *EventRepository) SaveEvent(ctx context.Context, event domain.MedicationEvent) error {
	var medication []byte
	if event.Medication != nil {
		var err error
		medication, err = json.Marshal(event.Medication)
		if err != nil {
			return fmt.Errorf("failed to marshal medication snapshot: %w", err)
		}
	}

	var changes []byte
	if len(event.Changes) > 0 {
		var err error
		changes, err = json.Marshal(event.Changes)
		if err != nil {
			return fmt.Errorf("failed to marshal changes: %w", err)
		}
	}

	query := `
		INSERT INTO medication_events (
			id, event_type, medication_id, medication_name, medication,
			patient_id, patient_name, caregiver_id, changes, event_time, sync_status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING;
	`
	res, err := r.db.ExecContext(ctx, query,
		event.ID, string(event.EventType), event.MedicationID, event.MedicationName, medication,
		event.PatientID, event.PatientName, event.CaregiverID, changes, event.Timestamp, string(event.SyncStatus),
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		r.logger.Debug("duplicate event ignored", "event_id", event.ID)
	}
	return nil
}
