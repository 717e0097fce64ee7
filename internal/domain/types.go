// Package domain defines the approval workflow types shared by the store,
// service, and handler layers.
package domain

import (
	"time"

	"github.com/atlasops/be-ops-approvals/internal/errors"
)

// ── Closed enumerations ───────────────────────────────────────────────────────

// EntityType identifies the governed business entity family.
type EntityType string

const (
	EntityTask         EntityType = "task"
	EntityProject      EntityType = "project"
	EntityTaskTransfer EntityType = "task_transfer"
)

// ParseEntityType validates a wire value against the closed set.
func ParseEntityType(s string) (EntityType, error) {
	switch EntityType(s) {
	case EntityTask, EntityProject, EntityTaskTransfer:
		return EntityType(s), nil
	}
	return "", errors.InvalidInput("entity_type", "must be one of task, project, task_transfer")
}

// Action is a decision an approver can take on a pending record.
type Action string

const (
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionDelegate Action = "delegate"
)

// ParseAction validates a wire value against the closed set.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionApprove, ActionReject, ActionDelegate:
		return Action(s), nil
	}
	return "", errors.InvalidInput("action", "must be one of approve, reject, delegate")
}

// WorkflowStatus is the lifecycle state of a workflow instance. Instances
// move pending → approved | rejected and never back.
type WorkflowStatus string

const (
	WorkflowPending  WorkflowStatus = "pending"
	WorkflowApproved WorkflowStatus = "approved"
	WorkflowRejected WorkflowStatus = "rejected"
)

// Terminal reports whether the instance can no longer accept decisions.
func (s WorkflowStatus) Terminal() bool {
	return s == WorkflowApproved || s == WorkflowRejected
}

// RecordStatus is the state of a single approval record.
type RecordStatus string

const (
	RecordPending  RecordStatus = "pending"
	RecordApproved RecordStatus = "approved"
	RecordRejected RecordStatus = "rejected"
)

// Outcome is a terminal workflow result.
type Outcome string

const (
	OutcomeApproved Outcome = "approved"
	OutcomeRejected Outcome = "rejected"
)

// SystemApprover owns auto-approved levels created when the submitter's
// superior chain is shorter than the required level count.
const SystemApprover = "system"

// ── Entities ──────────────────────────────────────────────────────────────────

// WorkflowInstance is one approval cycle bound to a governed entity. At most
// one non-terminal instance exists per (entity_type, entity_id); history is
// append-only.
type WorkflowInstance struct {
	ID              string            `json:"id"`
	EntityType      EntityType        `json:"entity_type"`
	EntityID        string            `json:"entity_id"`
	SubmittedBy     string            `json:"submitted_by"`
	SubmittedDate   time.Time         `json:"submitted_date"`
	MaxLevel        int               `json:"max_level"`
	Status          WorkflowStatus    `json:"status"`
	CompletedDate   *time.Time        `json:"completed_date,omitempty"`
	RejectionReason *string           `json:"rejection_reason,omitempty"`
	Records         []*ApprovalRecord `json:"records,omitempty"`
}

// ApprovalRecord is one approver's obligation within a workflow instance.
// Levels are unique and contiguous from 1 to the instance's MaxLevel.
type ApprovalRecord struct {
	ID           string       `json:"id"`
	WorkflowID   string       `json:"workflow_id"`
	Level        int          `json:"level"`
	ApproverID   string       `json:"approver_id"`
	Status       RecordStatus `json:"status"`
	Comments     *string      `json:"comments,omitempty"`
	DelegatedTo  *string      `json:"delegated_to,omitempty"`
	ApprovedDate *time.Time   `json:"approved_date,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// EntitySummary is the lightweight entity view joined onto pending-list rows.
type EntitySummary struct {
	EntityType EntityType `json:"entity_type"`
	EntityID   string     `json:"entity_id"`
	Title      string     `json:"title"`
	Status     string     `json:"status"`
}

// PendingApproval is one row of an approver's work queue.
type PendingApproval struct {
	Record        *ApprovalRecord `json:"record"`
	Entity        *EntitySummary  `json:"entity"`
	SubmittedBy   string          `json:"submitted_by"`
	SubmittedDate time.Time       `json:"submitted_date"`
}

// ApproverStats aggregates an approver's workload for the current period.
type ApproverStats struct {
	PendingTasks       int `json:"pending_tasks"`
	PendingProjects    int `json:"pending_projects"`
	TotalPending       int `json:"total_pending"`
	CompletedThisMonth int `json:"completed_this_month"`
}

// AuditEntry is one immutable row in the approval audit log.
type AuditEntry struct {
	ID          string         `json:"id"`
	WorkflowID  string         `json:"workflow_id"`
	RecordID    *string        `json:"record_id,omitempty"`
	EntityType  EntityType     `json:"entity_type"`
	EntityID    string         `json:"entity_id"`
	Action      string         `json:"action"` // submitted | approved | rejected | delegated | workflow_approved | workflow_rejected
	PerformedBy string         `json:"performed_by"`
	PerformedAt time.Time      `json:"performed_at"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}
