package api

import (
	"log/slog"
	"net/http"

	"github.com/pildhora/pildhora-sync/internal/adapter/api/handler"
	"github.com/pildhora/pildhora-sync/internal/adapter/api/middleware"
	"github.com/pildhora/pildhora-sync/internal/domain"
	"github.com/pildhora/pildhora-sync/internal/usecase"
)

// NewRouter creates and configures the main HTTP router for the remote store
// service. All /v1 routes require a valid device key.
func NewRouter(
	logger *slog.Logger,
	deviceKeyRepo domain.DeviceKeyRepository,
	ingestUseCase *usecase.IngestEventUseCase,
	medicationRepo domain.MedicationRepository,
	directory domain.PatientDirectory,
	maxEventSize int64,
) http.Handler {
	mux := http.NewServeMux()

	eventHandler := handler.NewEventHandler(ingestUseCase, logger, maxEventSize)
	medicationHandler := handler.NewMedicationHandler(medicationRepo, logger)
	patientHandler := handler.NewPatientHandler(directory, logger)

	authMiddleware := middleware.Auth(deviceKeyRepo, logger)

	mux.Handle("POST /v1/events", authMiddleware(eventHandler))
	mux.Handle("PUT /v1/medications/{id}", authMiddleware(http.HandlerFunc(medicationHandler.Save)))
	mux.Handle("GET /v1/medications/{id}", authMiddleware(http.HandlerFunc(medicationHandler.Get)))
	mux.Handle("DELETE /v1/medications/{id}", authMiddleware(http.HandlerFunc(medicationHandler.Delete)))
	mux.Handle("GET /v1/patients/{id}", authMiddleware(http.HandlerFunc(patientHandler.Get)))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return mux
}
