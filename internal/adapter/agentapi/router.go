package agentapi

import (
	"log/slog"
	"net/http"

	"github.com/pildhora/pildhora-sync/internal/domain"
	"github.com/pildhora/pildhora-sync/internal/usecase"
)

// NewRouter configures the agent's local HTTP API: the medication actions the
// companion UI drives and the sync status surfaces it observes.
func NewRouter(
	service *usecase.MedicationService,
	queue domain.EventQueue,
	engine *usecase.SyncEngine,
	logger *slog.Logger,
) http.Handler {
	mux := http.NewServeMux()

	medicationHandler := NewMedicationHandler(service, logger)
	statusHandler := NewStatusHandler(queue, engine, logger)
	statusStream := NewStatusStream(queue, engine, logger)

	mux.HandleFunc("POST /medications", medicationHandler.Create)
	mux.HandleFunc("PUT /medications/{id}", medicationHandler.Update)
	mux.HandleFunc("DELETE /medications/{id}", medicationHandler.Delete)
	mux.HandleFunc("POST /medications/{id}/doses", medicationHandler.RecordDose)

	mux.Handle("GET /status", statusHandler)
	mux.Handle("GET /status/stream", statusStream)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return mux
}
