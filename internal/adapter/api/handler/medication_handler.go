package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/pildhora/pildhora-sync/internal/domain"
)

// MedicationHandler serves the remote store's medication collection.
type MedicationHandler struct {
	repo   domain.MedicationRepository
	logger *slog.Logger
}

// NewMedicationHandler creates a new MedicationHandler.
func NewMedicationHandler(repo domain.MedicationRepository, logger *slog.Logger) *MedicationHandler {
	return &MedicationHandler{repo: repo, logger: logger}
}

// Save upserts a medication record. The path id wins over any id in the body.
func (h *MedicationHandler) Save(w http.ResponseWriter, r *http.Request) {
	var med domain.Medication
	if err := json.NewDecoder(r.Body).Decode(&med); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	med.ID = r.PathValue("id")

	if med.ID == "" || med.PatientID == "" || med.Name == "" {
		http.Error(w, "id, patient_id and name are required", http.StatusBadRequest)
		return
	}

	if err := h.repo.SaveMedication(r.Context(), med); err != nil {
		h.logger.Error("failed to save medication", "medication_id", med.ID, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Get fetches a medication record.
func (h *MedicationHandler) Get(w http.ResponseWriter, r *http.Request) {
	med, err := h.repo.GetMedication(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, domain.ErrMedicationNotFound) {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to fetch medication", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(med); err != nil {
		h.logger.Error("failed to encode medication", "error", err)
	}
}

// Delete removes a medication record.
func (h *MedicationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.DeleteMedication(r.Context(), r.PathValue("id")); err != nil {
		if errors.Is(err, domain.ErrMedicationNotFound) {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to delete medication", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
