package service

import (
	"context"

	"github.com/atlasops/be-ops-approvals/internal/domain"
)

// Notifier publishes approval lifecycle events after a transaction commits.
// Implementations must be best-effort: publish failures are logged by the
// implementation and never surfaced to approval operations.
type Notifier interface {
	PublishApprovalEvent(ctx context.Context, eventType string, wf *domain.WorkflowInstance, actorID string, payload map[string]any)
}

// Event types published by the approval service.
const (
	EventSubmitted = "workflow_submitted"
	EventApproved  = "workflow_approved"
	EventRejected  = "workflow_rejected"
	EventDelegated = "step_delegated"
	EventAdvanced  = "step_approved"
)
