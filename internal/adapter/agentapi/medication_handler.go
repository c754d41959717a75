package agentapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/pildhora/pildhora-sync/internal/domain"
	"github.com/pildhora/pildhora-sync/internal/usecase"
)

// MedicationHandler exposes the primary medication actions to the companion
// UI on the device's loopback interface.
type MedicationHandler struct {
	service *usecase.MedicationService
	logger  *slog.Logger
}

// NewMedicationHandler creates a new MedicationHandler.
func NewMedicationHandler(service *usecase.MedicationService, logger *slog.Logger) *MedicationHandler {
	return &MedicationHandler{service: service, logger: logger}
}

// Create saves a new medication and returns the stored record.
func (h *MedicationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var med domain.Medication
	if err := json.NewDecoder(r.Body).Decode(&med); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	if med.PatientID == "" || med.Name == "" {
		http.Error(w, "patient_id and name are required", http.StatusBadRequest)
		return
	}

	created, err := h.service.Create(r.Context(), med)
	if err != nil {
		h.logger.Error("failed to create medication", "error", err)
		http.Error(w, "failed to save medication", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(created); err != nil {
		h.logger.Error("failed to encode medication", "error", err)
	}
}

// Update saves an edited medication.
func (h *MedicationHandler) Update(w http.ResponseWriter, r *http.Request) {
	var med domain.Medication
	if err := json.NewDecoder(r.Body).Decode(&med); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	med.ID = r.PathValue("id")
	if med.PatientID == "" || med.Name == "" {
		http.Error(w, "patient_id and name are required", http.StatusBadRequest)
		return
	}

	if err := h.service.Update(r.Context(), med); err != nil {
		h.logger.Error("failed to update medication", "medication_id", med.ID, "error", err)
		http.Error(w, "failed to save medication", http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete removes a medication. The UI sends the record it holds so the
// deleted event can carry a final snapshot.
func (h *MedicationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var med domain.Medication
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&med); err != nil {
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}
	}
	med.ID = r.PathValue("id")

	if err := h.service.Delete(r.Context(), med); err != nil {
		if errors.Is(err, domain.ErrMedicationNotFound) {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to delete medication", "medication_id", med.ID, "error", err)
		http.Error(w, "failed to delete medication", http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RecordDose records a taken or missed dose for a medication.
func (h *MedicationHandler) RecordDose(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	var taken bool
	switch req.Status {
	case "taken":
		taken = true
	case "missed":
		taken = false
	default:
		http.Error(w, `status must be "taken" or "missed"`, http.StatusBadRequest)
		return
	}

	if err := h.service.RecordDose(r.Context(), r.PathValue("id"), taken); err != nil {
		if errors.Is(err, domain.ErrMedicationNotFound) {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to record dose", "medication_id", r.PathValue("id"), "error", err)
		http.Error(w, "failed to record dose", http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
