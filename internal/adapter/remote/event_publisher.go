package remote

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/pildhora/pildhora-sync/internal/domain"
)

// EventPublisher delivers outbox events to the remote store's ingest endpoint.
type EventPublisher struct {
	client *Client
	logger *slog.Logger
}

var _ domain.EventPublisher = (*EventPublisher)(nil)

// NewEventPublisher creates a publisher on top of a remote store client.
func NewEventPublisher(client *Client, logger *slog.Logger) *EventPublisher {
	return &EventPublisher{
		client: client,
		logger: logger.With("component", "event_publisher"),
	}
}

// Publish writes one event document. A conflict response means the store
// already holds this event id, so the delivery counts as acknowledged.
func (p *EventPublisher) Publish(ctx context.Context, event domain.MedicationEvent) error {
	err := p.client.do(ctx, http.MethodPost, "/v1/events", event, nil)
	if err == nil {
		return nil
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusConflict {
		p.logger.Debug("event already stored remotely", "event_id", event.ID)
		return nil
	}
	return err
}
