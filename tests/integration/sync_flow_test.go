package integration

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pildhora/pildhora-sync/internal/adapter/api"
	"github.com/pildhora/pildhora-sync/internal/adapter/remote"
	"github.com/pildhora/pildhora-sync/internal/adapter/repository/outbox"
	"github.com/pildhora/pildhora-sync/internal/domain"
	"github.com/pildhora/pildhora-sync/internal/domain/mocks"
	"github.com/pildhora/pildhora-sync/internal/usecase"
)

// harness wires the full agent pipeline against a real HTTP instance of the
// remote store service, with in-memory repositories behind it.
type harness struct {
	server    *httptest.Server
	events    *mocks.MockEventRepository
	queue     *outbox.OutboxRepository
	outboxDir string
	engine    *usecase.SyncEngine
	service   *usecase.MedicationService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	events := &mocks.MockEventRepository{}
	medications := &mocks.MockMedicationRepository{}
	directory := &mocks.MockPatientDirectory{Names: map[string]string{"patient-1": "Maria"}}
	deviceKeys := &mocks.MockDeviceKeyRepository{Actors: map[string]string{"device-key-1": "caregiver-1"}}

	ingestUC := usecase.NewIngestEventUseCase(events, &mocks.MockRateLimiter{}, nil, logger)
	router := api.NewRouter(logger, deviceKeys, ingestUC, medications, directory, 1024*1024)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	outboxDir := t.TempDir()
	queue, err := outbox.NewOutboxRepository(outboxDir, 64*1024, 1024*1024, logger)
	if err != nil {
		t.Fatalf("failed to open outbox: %v", err)
	}
	t.Cleanup(func() { queue.Close() })

	client := remote.NewClient(server.URL, "device-key-1", 5*time.Second)
	publisher := remote.NewEventPublisher(client, logger)
	engine := usecase.NewSyncEngine(queue, publisher, time.Hour, nil, nil, logger)

	factory := usecase.NewEventFactory(remote.NewDirectoryClient(client), "caregiver-1", logger)
	service := usecase.NewMedicationService(remote.NewMedicationClient(client), factory, queue, nil, logger)

	return &harness{
		server:    server,
		events:    events,
		queue:     queue,
		outboxDir: outboxDir,
		engine:    engine,
		service:   service,
	}
}

func TestSyncFlow_CreateDeliversEvent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	med := domain.Medication{
		PatientID: "patient-1",
		Name:      "Aspirin",
		DoseValue: "1",
		DoseUnit:  "tablet",
		Frequency: "daily",
	}
	if _, err := h.service.Create(ctx, med); err != nil {
		t.Fatalf("failed to create medication: %v", err)
	}

	if count, _ := h.queue.PendingCount(ctx); count != 1 {
		t.Fatalf("expected 1 queued event before the pass, got %d", count)
	}

	res, ran := h.engine.RunPass(ctx)
	if !ran || res.Delivered != 1 {
		t.Fatalf("expected one delivery, got %+v (ran=%v)", res, ran)
	}
	if count, _ := h.queue.PendingCount(ctx); count != 0 {
		t.Errorf("expected empty queue after delivery, got %d", count)
	}

	if len(h.events.Saved) != 1 {
		t.Fatalf("expected 1 stored event, got %d", len(h.events.Saved))
	}
	stored := h.events.Saved[0]
	if stored.EventType != domain.EventCreated {
		t.Errorf("unexpected event type: %q", stored.EventType)
	}
	if stored.PatientName != "Maria" {
		t.Errorf("expected denormalized patient name, got %q", stored.PatientName)
	}
	if stored.CaregiverID != "caregiver-1" {
		t.Errorf("unexpected caregiver id: %q", stored.CaregiverID)
	}
}

func TestSyncFlow_OfflineBacklogDrainedInOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// Simulate an outage of the event collection only; the primary
	// medication writes still succeed.
	h.events.SaveErr = io.ErrUnexpectedEOF

	var created []domain.Medication
	for i := 0; i < 5; i++ {
		med, err := h.service.Create(ctx, domain.Medication{
			PatientID: "patient-1",
			Name:      "Aspirin",
			DoseValue: "1",
		})
		if err != nil {
			t.Fatalf("failed to create medication %d: %v", i, err)
		}
		created = append(created, med)
	}

	res, _ := h.engine.RunPass(ctx)
	if res.Failed != 5 || res.Delivered != 0 {
		t.Fatalf("expected all deliveries to fail while offline, got %+v", res)
	}
	if count, _ := h.queue.PendingCount(ctx); count != 5 {
		t.Fatalf("expected 5 events still queued, got %d", count)
	}

	// Back online: the next pass drains the backlog in insertion order.
	h.events.SaveErr = nil
	res, _ = h.engine.RunPass(ctx)
	if res.Delivered != 5 {
		t.Fatalf("expected 5 deliveries, got %+v", res)
	}
	if len(h.events.Saved) != 5 {
		t.Fatalf("expected 5 stored events, got %d", len(h.events.Saved))
	}
	for i, med := range created {
		if h.events.Saved[i].MedicationID != med.ID {
			t.Errorf("delivery order mismatch at index %d", i)
		}
	}
}

func TestSyncFlow_QueueSurvivesAgentRestart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.events.SaveErr = io.ErrUnexpectedEOF
	if _, err := h.service.Create(ctx, domain.Medication{PatientID: "patient-1", Name: "Aspirin"}); err != nil {
		t.Fatalf("failed to create medication: %v", err)
	}
	h.engine.RunPass(ctx)
	h.queue.Close()

	// A new process opens the same outbox directory and delivers the
	// event queued before the restart.
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reopened, err := outbox.NewOutboxRepository(h.outboxDir, 64*1024, 1024*1024, logger)
	if err != nil {
		t.Fatalf("failed to re-open outbox: %v", err)
	}
	defer reopened.Close()

	h.events.SaveErr = nil
	client := remote.NewClient(h.server.URL, "device-key-1", 5*time.Second)
	engine := usecase.NewSyncEngine(reopened, remote.NewEventPublisher(client, logger), time.Hour, nil, nil, logger)

	res, _ := engine.RunPass(ctx)
	if res.Delivered != 1 {
		t.Fatalf("expected the queued event to survive the restart, got %+v", res)
	}
}
