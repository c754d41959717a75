package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/pildhora/pildhora-sync/internal/domain"
)

// PatientHandler resolves patient display names for agents denormalizing
// them onto events.
type PatientHandler struct {
	directory domain.PatientDirectory
	logger    *slog.Logger
}

// NewPatientHandler creates a new PatientHandler.
func NewPatientHandler(directory domain.PatientDirectory, logger *slog.Logger) *PatientHandler {
	return &PatientHandler{directory: directory, logger: logger}
}

// Get returns the patient's id and display name.
func (h *PatientHandler) Get(w http.ResponseWriter, r *http.Request) {
	patientID := r.PathValue("id")

	name, err := h.directory.PatientName(r.Context(), patientID)
	if err != nil {
		if errors.Is(err, domain.ErrPatientNotFound) {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to resolve patient", "patient_id", patientID, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	resp := struct {
		ID          string `json:"id"`
		DisplayName string `json:"display_name"`
	}{ID: patientID, DisplayName: name}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode patient", "error", err)
	}
}
