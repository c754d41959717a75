package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pildhora/pildhora-sync/internal/adapter/api/middleware"
	"github.com/pildhora/pildhora-sync/internal/domain"
	"github.com/pildhora/pildhora-sync/internal/domain/mocks"
	"github.com/pildhora/pildhora-sync/internal/usecase"
)

// MockEventIngestor is a mock implementation of the EventIngestor interface.
type MockEventIngestor struct {
	IngestFunc func(ctx context.Context, event *domain.MedicationEvent, actorID string) error
}

func (m *MockEventIngestor) Ingest(ctx context.Context, event *domain.MedicationEvent, actorID string) error {
	if m.IngestFunc != nil {
		return m.IngestFunc(ctx, event, actorID)
	}
	return nil
}

func eventBody(t *testing.T) string {
	t.Helper()
	event := domain.MedicationEvent{
		ID:             "event-1",
		EventType:      domain.EventCreated,
		MedicationID:   "med-1",
		MedicationName: "Aspirin",
		PatientID:      "patient-1",
		CaregiverID:    "caregiver-1",
		Timestamp:      time.Now().UTC(),
		SyncStatus:     domain.SyncPending,
	}
	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("failed to marshal event: %v", err)
	}
	return string(data)
}

func TestEventHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name           string
		body           string
		ingestErr      error
		expectedStatus int
	}{
		{
			name:           "Valid Event",
			body:           "", // filled with eventBody below
			expectedStatus: http.StatusAccepted,
		},
		{
			name:           "Malformed JSON",
			body:           `{"id":`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Unknown Field",
			body:           `{"id":"e1","unknown_field":true}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Invalid Document",
			ingestErr:      usecase.ErrInvalidDocument,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Actor Mismatch",
			ingestErr:      usecase.ErrActorMismatch,
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "Rate Limited",
			ingestErr:      usecase.ErrRateLimited,
			expectedStatus: http.StatusTooManyRequests,
		},
		{
			name:           "Storage Failure",
			ingestErr:      io.ErrUnexpectedEOF,
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockUC := &MockEventIngestor{}
			if tt.ingestErr != nil {
				mockUC.IngestFunc = func(ctx context.Context, event *domain.MedicationEvent, actorID string) error {
					return tt.ingestErr
				}
			}
			h := NewEventHandler(mockUC, logger, 1024*1024)

			body := tt.body
			if body == "" {
				body = eventBody(t)
			}
			req := httptest.NewRequest(http.MethodPost, "/v1/events", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")

			deviceKeys := &mocks.MockDeviceKeyRepository{Actors: map[string]string{"key-1": "patient-1"}}
			req.Header.Set(middleware.DeviceKeyHeader, "key-1")

			rr := httptest.NewRecorder()
			middleware.Auth(deviceKeys, logger)(h).ServeHTTP(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d (%s)", tt.expectedStatus, rr.Code, rr.Body.String())
			}
		})
	}

	t.Run("Missing Device Key", func(t *testing.T) {
		h := NewEventHandler(&MockEventIngestor{}, logger, 1024*1024)
		deviceKeys := &mocks.MockDeviceKeyRepository{Actors: map[string]string{}}

		req := httptest.NewRequest(http.MethodPost, "/v1/events", strings.NewReader(eventBody(t)))
		rr := httptest.NewRecorder()
		middleware.Auth(deviceKeys, logger)(h).ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("expected status 401, got %d", rr.Code)
		}
	})

	t.Run("Invalid Device Key", func(t *testing.T) {
		h := NewEventHandler(&MockEventIngestor{}, logger, 1024*1024)
		deviceKeys := &mocks.MockDeviceKeyRepository{Actors: map[string]string{}}

		req := httptest.NewRequest(http.MethodPost, "/v1/events", strings.NewReader(eventBody(t)))
		req.Header.Set(middleware.DeviceKeyHeader, "bad-key")
		rr := httptest.NewRecorder()
		middleware.Auth(deviceKeys, logger)(h).ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("expected status 401, got %d", rr.Code)
		}
	})

	t.Run("Payload Too Large", func(t *testing.T) {
		h := NewEventHandler(&MockEventIngestor{}, logger, 16)
		deviceKeys := &mocks.MockDeviceKeyRepository{Actors: map[string]string{"key-1": "patient-1"}}

		req := httptest.NewRequest(http.MethodPost, "/v1/events", strings.NewReader(eventBody(t)))
		req.Header.Set(middleware.DeviceKeyHeader, "key-1")
		rr := httptest.NewRecorder()
		middleware.Auth(deviceKeys, logger)(h).ServeHTTP(rr, req)

		if rr.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("expected status 413, got %d", rr.Code)
		}
	})
}
