package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pildhora/pildhora-sync/internal/domain"
)

// MedicationRepository implements domain.MedicationRepository on PostgreSQL.
type MedicationRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewMedicationRepository creates a new PostgreSQL medication repository.
func NewMedicationRepository(db *sql.DB, logger *slog.Logger) *MedicationRepository {
	return &MedicationRepository{db: db, logger: logger.With("component", "medication_repository")}
}

// SaveMedication upserts a medication record.
func (r *MedicationRepository) SaveMedication(ctx context.Context, med domain.Medication) error {
	times, err := json.Marshal(med.Times)
	if err != nil {
		return fmt.Errorf("failed to marshal medication times: %w", err)
	}

	query := `
		INSERT INTO medications (
			id, patient_id, name, dose_value, dose_unit, quantity_type,
			frequency, times, emoji, track_inventory, current_quantity,
			low_quantity_threshold, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
		ON CONFLICT (id) DO UPDATE SET
			patient_id = EXCLUDED.patient_id,
			name = EXCLUDED.name,
			dose_value = EXCLUDED.dose_value,
			dose_unit = EXCLUDED.dose_unit,
			quantity_type = EXCLUDED.quantity_type,
			frequency = EXCLUDED.frequency,
			times = EXCLUDED.times,
			emoji = EXCLUDED.emoji,
			track_inventory = EXCLUDED.track_inventory,
			current_quantity = EXCLUDED.current_quantity,
			low_quantity_threshold = EXCLUDED.low_quantity_threshold,
			updated_at = NOW();
	`
	_, err = r.db.ExecContext(ctx, query,
		med.ID, med.PatientID, med.Name, med.DoseValue, med.DoseUnit, med.QuantityType,
		med.Frequency, times, med.Emoji, med.TrackInventory, med.CurrentQuantity,
		med.LowQuantityThreshold,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert medication: %w", err)
	}
	return nil
}

// GetMedication fetches one medication record by id.
func (r *MedicationRepository) GetMedication(ctx context.Context, id string) (domain.Medication, error) {
	query := `
		SELECT id, patient_id, name, dose_value, dose_unit, quantity_type,
			frequency, times, emoji, track_inventory, current_quantity,
			low_quantity_threshold
		FROM medications WHERE id = $1;
	`
	var med domain.Medication
	var times []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&med.ID, &med.PatientID, &med.Name, &med.DoseValue, &med.DoseUnit, &med.QuantityType,
		&med.Frequency, &times, &med.Emoji, &med.TrackInventory, &med.CurrentQuantity,
		&med.LowQuantityThreshold,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Medication{}, domain.ErrMedicationNotFound
	}
	if err != nil {
		return domain.Medication{}, fmt.Errorf("failed to fetch medication: %w", err)
	}

	if len(times) > 0 {
		if err := json.Unmarshal(times, &med.Times); err != nil {
			r.logger.Warn("failed to unmarshal medication times", "medication_id", id, "error", err)
		}
	}
	return med, nil
}

// DeleteMedication removes a medication record.
func (r *MedicationRepository) DeleteMedication(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM medications WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("failed to delete medication: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrMedicationNotFound
	}
	return nil
}
