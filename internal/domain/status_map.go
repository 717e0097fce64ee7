package domain

import "github.com/atlasops/be-ops-approvals/internal/errors"

// Entity status values written by the synchronizer. The pending values are
// set at submission; the terminal values when the workflow resolves.
const (
	TaskStatusPendingApproval = "pending_approval"
	TaskStatusTodo            = "todo"
	TaskStatusRejected        = "rejected"

	ProjectStatusPendingApproval = "pending_approval"
	ProjectStatusActive          = "active"
	ProjectStatusCancelled       = "cancelled"

	TransferStatusPendingApproval = "pending_approval"
	TransferStatusExecuted        = "executed"
	TransferStatusRejected        = "transfer_rejected"
)

// PendingStatus returns the provisional status an entity holds while under
// review.
func PendingStatus(entityType EntityType) (string, error) {
	switch entityType {
	case EntityTask:
		return TaskStatusPendingApproval, nil
	case EntityProject:
		return ProjectStatusPendingApproval, nil
	case EntityTaskTransfer:
		return TransferStatusPendingApproval, nil
	}
	return "", errors.InvalidInput("entity_type", "unknown entity type "+string(entityType))
}

// TerminalStatus returns the entity status for a terminal workflow outcome.
func TerminalStatus(entityType EntityType, outcome Outcome) (string, error) {
	switch entityType {
	case EntityTask:
		if outcome == OutcomeApproved {
			return TaskStatusTodo, nil
		}
		return TaskStatusRejected, nil
	case EntityProject:
		if outcome == OutcomeApproved {
			return ProjectStatusActive, nil
		}
		return ProjectStatusCancelled, nil
	case EntityTaskTransfer:
		if outcome == OutcomeApproved {
			return TransferStatusExecuted, nil
		}
		return TransferStatusRejected, nil
	}
	return "", errors.InvalidInput("entity_type", "unknown entity type "+string(entityType))
}
