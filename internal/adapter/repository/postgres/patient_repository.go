package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pildhora/pildhora-sync/internal/domain"
)

// PatientRepository implements domain.PatientDirectory on PostgreSQL.
type PatientRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPatientRepository creates a new PostgreSQL patient repository.
func NewPatientRepository(db *sql.DB, logger *slog.Logger) *PatientRepository {
	return &PatientRepository{db: db, logger: logger.With("component", "patient_repository")}
}

// PatientName returns the display name for a patient id.
func (r *PatientRepository) PatientName(ctx context.Context, patientID string) (string, error) {
	var name string
	query := `SELECT display_name FROM patients WHERE id = $1;`
	err := r.db.QueryRowContext(ctx, query, patientID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrPatientNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to fetch patient: %w", err)
	}
	return name, nil
}
