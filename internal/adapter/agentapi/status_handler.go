package agentapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/pildhora/pildhora-sync/internal/domain"
	"github.com/pildhora/pildhora-sync/internal/usecase"
)

// statusResponse is the badge payload: how many events wait in the outbox and
// whether a sync pass is running right now.
type statusResponse struct {
	PendingCount int                 `json:"pending_count"`
	InFlight     bool                `json:"in_flight"`
	LastPass     *usecase.PassResult `json:"last_pass,omitempty"`
}

// StatusHandler answers point-in-time status queries from the companion UI.
type StatusHandler struct {
	queue  domain.EventQueue
	engine *usecase.SyncEngine
	logger *slog.Logger
}

// NewStatusHandler creates a new StatusHandler.
func NewStatusHandler(queue domain.EventQueue, engine *usecase.SyncEngine, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{queue: queue, engine: engine, logger: logger}
}

func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	pending, err := h.queue.PendingCount(r.Context())
	if err != nil {
		h.logger.Error("failed to count pending events", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	resp := statusResponse{PendingCount: pending, InFlight: h.engine.InFlight()}
	if last, ok := h.engine.LastPass(); ok {
		resp.LastPass = &last
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode status", "error", err)
	}
}

// StatusStream pushes one SSE frame per completed sync pass so UI badges can
// refresh without polling.
type StatusStream struct {
	queue  domain.EventQueue
	engine *usecase.SyncEngine
	logger *slog.Logger
}

// NewStatusStream creates a new StatusStream.
func NewStatusStream(queue domain.EventQueue, engine *usecase.SyncEngine, logger *slog.Logger) *StatusStream {
	return &StatusStream{queue: queue, engine: engine, logger: logger}
}

func (s *StatusStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	results, cancel := s.engine.Subscribe()
	defer cancel()
	s.logger.Info("status stream client connected", "remote_addr", r.RemoteAddr)

	// Send the current state immediately so the badge is right on connect.
	if pending, err := s.queue.PendingCount(r.Context()); err == nil {
		s.writeFrame(w, statusResponse{PendingCount: pending, InFlight: s.engine.InFlight()})
		flusher.Flush()
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("status stream client disconnected", "remote_addr", r.RemoteAddr)
			return
		case res, ok := <-results:
			if !ok {
				return
			}
			last := res
			s.writeFrame(w, statusResponse{PendingCount: res.Pending, LastPass: &last})
			flusher.Flush()
		}
	}
}

func (s *StatusStream) writeFrame(w http.ResponseWriter, resp statusResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("failed to marshal status frame", "error", err)
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}
