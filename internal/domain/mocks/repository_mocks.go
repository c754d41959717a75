package mocks

import (
	"context"
	"sync"

	"github.com/pildhora/pildhora-sync/internal/domain"
)

// MockEventQueue is an in-memory implementation of domain.EventQueue for testing.
type MockEventQueue struct {
	mu         sync.Mutex
	Events     []domain.MedicationEvent
	EnqueueErr error
	AckErr     error
	PendingErr error
	AckedIDs   []string
}

func (m *MockEventQueue) Enqueue(ctx context.Context, event domain.MedicationEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.EnqueueErr != nil {
		return m.EnqueueErr
	}
	m.Events = append(m.Events, event)
	return nil
}

func (m *MockEventQueue) Ack(ctx context.Context, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AckErr != nil {
		return m.AckErr
	}
	for i, ev := range m.Events {
		if ev.ID == eventID {
			m.Events = append(m.Events[:i], m.Events[i+1:]...)
			break
		}
	}
	m.AckedIDs = append(m.AckedIDs, eventID)
	return nil
}

func (m *MockEventQueue) Pending(ctx context.Context) ([]domain.MedicationEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PendingErr != nil {
		return nil, m.PendingErr
	}
	out := make([]domain.MedicationEvent, len(m.Events))
	copy(out, m.Events)
	return out, nil
}

func (m *MockEventQueue) PendingCount(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PendingErr != nil {
		return 0, m.PendingErr
	}
	return len(m.Events), nil
}

// MockEventPublisher records published events and can fail on demand.
type MockEventPublisher struct {
	mu         sync.Mutex
	Published  []domain.MedicationEvent
	PublishErr error
	// PublishFunc, when set, overrides the default behavior.
	PublishFunc func(ctx context.Context, event domain.MedicationEvent) error
}

func (m *MockEventPublisher) Publish(ctx context.Context, event domain.MedicationEvent) error {
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, event)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PublishErr != nil {
		return m.PublishErr
	}
	m.Published = append(m.Published, event)
	return nil
}

func (m *MockEventPublisher) PublishedEvents() []domain.MedicationEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.MedicationEvent, len(m.Published))
	copy(out, m.Published)
	return out
}

// MockEventRepository is a mock remote event collection.
type MockEventRepository struct {
	mu      sync.Mutex
	Saved   []domain.MedicationEvent
	SaveErr error
}

func (m *MockEventRepository) SaveEvent(ctx context.Context, event domain.MedicationEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.Saved = append(m.Saved, event)
	return nil
}

// MockMedicationRepository is a mock medication store.
type MockMedicationRepository struct {
	mu          sync.Mutex
	Medications map[string]domain.Medication
	SaveErr     error
	GetErr      error
	DeleteErr   error
}

func (m *MockMedicationRepository) SaveMedication(ctx context.Context, med domain.Medication) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	if m.Medications == nil {
		m.Medications = make(map[string]domain.Medication)
	}
	m.Medications[med.ID] = med
	return nil
}

func (m *MockMedicationRepository) GetMedication(ctx context.Context, id string) (domain.Medication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return domain.Medication{}, m.GetErr
	}
	med, ok := m.Medications[id]
	if !ok {
		return domain.Medication{}, domain.ErrMedicationNotFound
	}
	return med, nil
}

func (m *MockMedicationRepository) DeleteMedication(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	delete(m.Medications, id)
	return nil
}

// MockPatientDirectory resolves patient names from a fixed map.
type MockPatientDirectory struct {
	Names      map[string]string
	ResolveErr error
}

func (m *MockPatientDirectory) PatientName(ctx context.Context, patientID string) (string, error) {
	if m.ResolveErr != nil {
		return "", m.ResolveErr
	}
	name, ok := m.Names[patientID]
	if !ok {
		return "", domain.ErrPatientNotFound
	}
	return name, nil
}

// MockDeviceKeyRepository validates device keys from a fixed map of key to actor id.
type MockDeviceKeyRepository struct {
	Actors   map[string]string
	ActorErr error
}

func (m *MockDeviceKeyRepository) ActorFor(ctx context.Context, key string) (string, error) {
	if m.ActorErr != nil {
		return "", m.ActorErr
	}
	actor, ok := m.Actors[key]
	if !ok {
		return "", domain.ErrDeviceKeyInvalid
	}
	return actor, nil
}

// MockRateLimiter allows or denies every request.
type MockRateLimiter struct {
	Denied   bool
	AllowErr error
	Calls    int
}

func (m *MockRateLimiter) Allow(ctx context.Context, patientID string) (bool, error) {
	m.Calls++
	if m.AllowErr != nil {
		return false, m.AllowErr
	}
	return !m.Denied, nil
}
