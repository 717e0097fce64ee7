// Package client holds outbound integrations: the NATS publisher for
// approval lifecycle events.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/atlasops/be-ops-approvals/internal/domain"
)

// NotificationPublisher publishes approval workflow events to NATS JetStream
// for consumption by the platform notification service.
//
// Subject convention: approvals.<event_type>
// Event types: workflow_submitted, step_approved, step_delegated,
//              workflow_approved, workflow_rejected
//
// All publish operations are non-fatal. Errors are logged but never
// propagated, so notification failures never interrupt approval operations.
type NotificationPublisher struct {
	js  nats.JetStreamContext
	log zerolog.Logger
}

// NotificationEvent is the JSON schema published to NATS.
type NotificationEvent struct {
	EventType  string         `json:"event_type"`
	WorkflowID string         `json:"workflow_id"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	ActorID    string         `json:"actor_id"`
	Status     string         `json:"status"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// NewNotificationPublisher connects to NATS and returns a publisher. An
// empty URL returns a disabled publisher that drops all events.
func NewNotificationPublisher(url string, log zerolog.Logger) (*NotificationPublisher, error) {
	if url == "" {
		return &NotificationPublisher{log: log}, nil
	}

	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("open JetStream context: %w", err)
	}

	return &NotificationPublisher{js: js, log: log}, nil
}

// PublishApprovalEvent publishes one approval lifecycle event.
// Subject: approvals.<eventType>
func (p *NotificationPublisher) PublishApprovalEvent(ctx context.Context, eventType string, wf *domain.WorkflowInstance, actorID string, payload map[string]any) {
	if p.js == nil || wf == nil {
		return
	}

	event := &NotificationEvent{
		EventType:  eventType,
		WorkflowID: wf.ID,
		EntityType: string(wf.EntityType),
		EntityID:   wf.EntityID,
		ActorID:    actorID,
		Status:     string(wf.Status),
		OccurredAt: time.Now(),
		Payload:    payload,
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.log.Warn().Err(err).Str("event_type", eventType).Msg("notification: failed to marshal event")
		return
	}

	subject := fmt.Sprintf("approvals.%s", eventType)
	if _, err := p.js.Publish(subject, data, nats.Context(ctx)); err != nil {
		p.log.Warn().Err(err).
			Str("subject", subject).
			Str("workflow_id", wf.ID).
			Msg("notification: failed to publish NATS event (non-fatal)")
		return
	}

	p.log.Debug().
		Str("subject", subject).
		Str("workflow_id", wf.ID).
		Msg("notification: event published")
}
