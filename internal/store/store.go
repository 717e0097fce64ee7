// Package store defines the persistence contract for the approval engine.
// The postgres subpackage is the production implementation; the memory
// subpackage backs tests and local development.
package store

import (
	"context"
	"time"

	"github.com/atlasops/be-ops-approvals/internal/domain"
)

// Store is the full persistence surface. Implementations must make
// Atomically transactional: every mutation inside fn commits together or not
// at all, and a workflow row locked via GetWorkflowForUpdate stays locked
// until fn returns. That lock is what serializes concurrent finalization of
// the same workflow.
type Store interface {
	Atomically(ctx context.Context, fn func(ctx context.Context, tx Store) error) error

	WorkflowStore
	RecordStore
	HierarchyStore
	EntityStore
	AuditStore
}

// WorkflowStore manages workflow instances.
type WorkflowStore interface {
	// CreateWorkflow inserts the instance and its full record set.
	CreateWorkflow(ctx context.Context, wf *domain.WorkflowInstance, records []*domain.ApprovalRecord) error

	// GetWorkflow returns an instance by id, or NotFound.
	GetWorkflow(ctx context.Context, id string) (*domain.WorkflowInstance, error)

	// GetWorkflowForUpdate is GetWorkflow holding a row lock for the rest of
	// the surrounding Atomically block.
	GetWorkflowForUpdate(ctx context.Context, id string) (*domain.WorkflowInstance, error)

	// GetActiveWorkflow returns the non-terminal instance for an entity, or
	// nil when none exists.
	GetActiveWorkflow(ctx context.Context, entityType domain.EntityType, entityID string) (*domain.WorkflowInstance, error)

	// FinalizeWorkflow moves a pending instance to a terminal status.
	FinalizeWorkflow(ctx context.Context, id string, status domain.WorkflowStatus, completedAt time.Time, rejectionReason *string) error

	// ListWorkflowHistory returns all instances for an entity, newest first,
	// each with its full record set.
	ListWorkflowHistory(ctx context.Context, entityType domain.EntityType, entityID string) ([]*domain.WorkflowInstance, error)
}

// RecordStore manages approval records.
type RecordStore interface {
	// GetRecord returns a record by id, or NotFound.
	GetRecord(ctx context.Context, id string) (*domain.ApprovalRecord, error)

	// GetRecordsByWorkflow returns a workflow's records ordered by level.
	GetRecordsByWorkflow(ctx context.Context, workflowID string) ([]*domain.ApprovalRecord, error)

	// UpdateRecordDecision stamps a decision onto a record.
	UpdateRecordDecision(ctx context.Context, id string, status domain.RecordStatus, comments *string, decidedAt time.Time) error

	// ReassignRecord transfers a pending record's obligation to a delegate:
	// approver_id is rewritten and delegated_to recorded; status stays pending.
	ReassignRecord(ctx context.Context, id, delegateID string) error

	// CountPendingRecords returns how many records in a workflow are still
	// pending. Called under the workflow row lock during evaluation.
	CountPendingRecords(ctx context.Context, workflowID string) (int, error)

	// ListPendingForApprover returns the approver's work queue joined with
	// entity summaries, newest submissions first.
	ListPendingForApprover(ctx context.Context, approverID string) ([]*domain.PendingApproval, error)

	// ApproverStats aggregates the approver's counts; completed counts are
	// bounded to decisions at or after periodStart.
	ApproverStats(ctx context.Context, approverID string, periodStart time.Time) (*domain.ApproverStats, error)
}

// HierarchyStore reads the org reporting structure.
type HierarchyStore interface {
	// SuperiorChain returns the submitter's superiors ordered direct-first,
	// at most maxDepth entries. An unknown user is NotFound; a known user
	// with no superiors yields an empty chain.
	SuperiorChain(ctx context.Context, userID string, maxDepth int) ([]string, error)
}

// EntityStore writes governed-entity state on behalf of the synchronizer.
type EntityStore interface {
	// SetEntityStatus writes the entity's status field, or NotFound.
	SetEntityStatus(ctx context.Context, entityType domain.EntityType, entityID, status string) error

	// ExecuteTransfer applies an approved task transfer: the task moves to
	// the transfer's target project and assignee.
	ExecuteTransfer(ctx context.Context, transferID string) error

	// GetEntitySummary returns the lightweight entity view, or NotFound.
	GetEntitySummary(ctx context.Context, entityType domain.EntityType, entityID string) (*domain.EntitySummary, error)
}

// AuditStore appends immutable audit entries.
type AuditStore interface {
	AppendAudit(ctx context.Context, entry *domain.AuditEntry) error
}
