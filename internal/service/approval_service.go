// Package service implements the approval workflow engine: submission,
// decision intake with step evaluation, outcome synchronization, and the
// read paths.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/atlasops/be-ops-approvals/internal/domain"
	"github.com/atlasops/be-ops-approvals/internal/errors"
	"github.com/atlasops/be-ops-approvals/internal/logger"
	"github.com/atlasops/be-ops-approvals/internal/store"
)

const autoApproveComment = "auto-approved: no approver available at this level"

// ApprovalService orchestrates multi-level approval workflows.
type ApprovalService struct {
	store        store.Store
	synchronizer *Synchronizer
	notifier     Notifier
	log          *logger.Logger
	maxDepth     int
}

// NewApprovalService creates an ApprovalService. notifier may be nil when
// event publishing is disabled.
func NewApprovalService(st store.Store, sync *Synchronizer, notifier Notifier, log *logger.Logger, maxHierarchyDepth int) *ApprovalService {
	return &ApprovalService{
		store:        st,
		synchronizer: sync,
		notifier:     notifier,
		log:          log,
		maxDepth:     maxHierarchyDepth,
	}
}

// ── Submission ────────────────────────────────────────────────────────────────

// Submit creates a new approval cycle for an entity: one workflow instance
// plus exactly requiredLevels approval records, and moves the entity into its
// pending-approval status, all in one transaction.
//
// The approver chain is the submitter's superiors, direct superior first.
// When the chain is shorter than requiredLevels the missing trailing levels
// are created already approved and owned by the system sentinel, so the
// record count always equals requiredLevels. A submission whose every level
// is auto-approved (including requiredLevels == 0) finalizes immediately.
func (s *ApprovalService) Submit(ctx context.Context, entityType domain.EntityType, entityID, submittedBy string, requiredLevels int) (*domain.WorkflowInstance, error) {
	if submittedBy == "" {
		return nil, errors.New(errors.ErrCodeUnauthorized, "acting user identity is required")
	}
	if requiredLevels < 0 {
		return nil, errors.InvalidInput("required_levels", "must be >= 0")
	}
	if entityID == "" {
		return nil, errors.InvalidInput("entity_id", "must not be empty")
	}

	var wf *domain.WorkflowInstance

	err := s.store.Atomically(ctx, func(ctx context.Context, tx store.Store) error {
		// Entity must exist before anything is written.
		if _, err := tx.GetEntitySummary(ctx, entityType, entityID); err != nil {
			return err
		}

		active, err := tx.GetActiveWorkflow(ctx, entityType, entityID)
		if err != nil {
			return err
		}
		if active != nil {
			return errors.New(errors.ErrCodeConflict,
				fmt.Sprintf("entity already has an active approval workflow (%s)", active.ID))
		}

		chain, err := tx.SuperiorChain(ctx, submittedBy, s.maxDepth)
		if err != nil {
			return err
		}
		if len(chain) > requiredLevels {
			chain = chain[:requiredLevels]
		}

		now := time.Now()
		records := make([]*domain.ApprovalRecord, 0, requiredLevels)
		autoApproved := 0
		for level := 1; level <= requiredLevels; level++ {
			rec := &domain.ApprovalRecord{Level: level}
			if level <= len(chain) {
				rec.ApproverID = chain[level-1]
				rec.Status = domain.RecordPending
			} else {
				comment := autoApproveComment
				decidedAt := now
				rec.ApproverID = domain.SystemApprover
				rec.Status = domain.RecordApproved
				rec.Comments = &comment
				rec.ApprovedDate = &decidedAt
				autoApproved++
			}
			records = append(records, rec)
		}

		wf = &domain.WorkflowInstance{
			EntityType:  entityType,
			EntityID:    entityID,
			SubmittedBy: submittedBy,
			MaxLevel:    requiredLevels,
			Status:      domain.WorkflowPending,
		}

		if err := tx.CreateWorkflow(ctx, wf, records); err != nil {
			return err
		}
		wf.Records = records

		pendingStatus, err := domain.PendingStatus(entityType)
		if err != nil {
			return err
		}
		if err := tx.SetEntityStatus(ctx, entityType, entityID, pendingStatus); err != nil {
			return err
		}

		if err := tx.AppendAudit(ctx, &domain.AuditEntry{
			WorkflowID:  wf.ID,
			EntityType:  entityType,
			EntityID:    entityID,
			Action:      "submitted",
			PerformedBy: submittedBy,
			Metadata: map[string]any{
				"required_levels":     requiredLevels,
				"auto_approved_count": autoApproved,
			},
		}); err != nil {
			return err
		}

		// Degenerate case: nothing left pending. The workflow resolves as
		// approved inside the submission transaction.
		if requiredLevels == 0 || autoApproved == requiredLevels {
			return s.finalize(ctx, tx, wf, domain.OutcomeApproved, nil, domain.SystemApprover, now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("workflow_id", wf.ID).
		Str("entity_type", string(entityType)).
		Str("entity_id", entityID).
		Int("max_level", wf.MaxLevel).
		Str("status", string(wf.Status)).
		Msg("Approval workflow submitted")

	s.publish(ctx, EventSubmitted, wf, submittedBy, map[string]any{
		"required_levels": requiredLevels,
	})
	if wf.Status == domain.WorkflowApproved {
		s.publish(ctx, EventApproved, wf, domain.SystemApprover, nil)
	}

	return wf, nil
}

// ── Decision intake and step evaluation ───────────────────────────────────────

// Decide applies an approver's decision to a record and evaluates the owning
// workflow, all in one transaction.
//
// The workflow row lock is taken before any status is examined, so two
// concurrent decisions against the same workflow serialize: the loser of the
// race re-reads state the winner already committed and fails its
// precondition checks instead of double-finalizing.
func (s *ApprovalService) Decide(ctx context.Context, recordID, actorID string, action domain.Action, comments, delegateTo string) error {
	if actorID == "" {
		return errors.New(errors.ErrCodeUnauthorized, "acting user identity is required")
	}
	switch action {
	case domain.ActionApprove, domain.ActionReject, domain.ActionDelegate:
	default:
		return errors.InvalidInput("action", "must be one of approve, reject, delegate")
	}
	if action == domain.ActionReject && comments == "" {
		return errors.InvalidInput("comments", "rejection reason is required")
	}
	if action == domain.ActionDelegate {
		if delegateTo == "" {
			return errors.InvalidInput("delegate_to", "delegate is required")
		}
		if delegateTo == actorID {
			return errors.InvalidInput("delegate_to", "cannot delegate to yourself")
		}
	}

	var (
		wf    *domain.WorkflowInstance
		event string
	)

	err := s.store.Atomically(ctx, func(ctx context.Context, tx store.Store) error {
		rec, err := tx.GetRecord(ctx, recordID)
		if err != nil {
			return err
		}

		// Lock the instance before examining any status.
		wf, err = tx.GetWorkflowForUpdate(ctx, rec.WorkflowID)
		if err != nil {
			return err
		}
		if wf.Status.Terminal() {
			return errors.New(errors.ErrCodeConflict,
				fmt.Sprintf("workflow is already %s and no longer accepts decisions", wf.Status))
		}

		// Re-read under the lock; the pre-lock copy may have lost a race.
		rec, err = tx.GetRecord(ctx, recordID)
		if err != nil {
			return err
		}
		if rec.Status != domain.RecordPending {
			return errors.New(errors.ErrCodeConflict,
				fmt.Sprintf("approval record is already %s", rec.Status))
		}
		if rec.ApproverID != actorID {
			return errors.New(errors.ErrCodeUnauthorized,
				"user is not the assigned approver for this record")
		}

		now := time.Now()

		switch action {
		case domain.ActionDelegate:
			if err := tx.ReassignRecord(ctx, recordID, delegateTo); err != nil {
				return err
			}
			event = EventDelegated
			return tx.AppendAudit(ctx, &domain.AuditEntry{
				WorkflowID:  wf.ID,
				RecordID:    &recordID,
				EntityType:  wf.EntityType,
				EntityID:    wf.EntityID,
				Action:      "delegated",
				PerformedBy: actorID,
				Metadata:    map[string]any{"delegated_to": delegateTo, "level": rec.Level},
			})

		case domain.ActionReject:
			if err := tx.UpdateRecordDecision(ctx, recordID, domain.RecordRejected, optional(comments), now); err != nil {
				return err
			}
			if err := tx.AppendAudit(ctx, &domain.AuditEntry{
				WorkflowID:  wf.ID,
				RecordID:    &recordID,
				EntityType:  wf.EntityType,
				EntityID:    wf.EntityID,
				Action:      "rejected",
				PerformedBy: actorID,
				Metadata:    map[string]any{"reason": comments, "level": rec.Level},
			}); err != nil {
				return err
			}
			// A single rejection terminates the whole workflow. Remaining
			// pending records stay pending for audit but become moot.
			event = EventRejected
			return s.finalize(ctx, tx, wf, domain.OutcomeRejected, optional(comments), actorID, now)

		default: // approve
			if err := tx.UpdateRecordDecision(ctx, recordID, domain.RecordApproved, optional(comments), now); err != nil {
				return err
			}
			if err := tx.AppendAudit(ctx, &domain.AuditEntry{
				WorkflowID:  wf.ID,
				RecordID:    &recordID,
				EntityType:  wf.EntityType,
				EntityID:    wf.EntityID,
				Action:      "approved",
				PerformedBy: actorID,
				Metadata:    map[string]any{"level": rec.Level},
			}); err != nil {
				return err
			}

			remaining, err := tx.CountPendingRecords(ctx, wf.ID)
			if err != nil {
				return err
			}
			if remaining > 0 {
				event = EventAdvanced
				return nil
			}
			event = EventApproved
			return s.finalize(ctx, tx, wf, domain.OutcomeApproved, nil, actorID, now)
		}
	})
	if err != nil {
		return err
	}

	s.log.Info().
		Str("workflow_id", wf.ID).
		Str("record_id", recordID).
		Str("actor", actorID).
		Str("action", string(action)).
		Str("workflow_status", string(wf.Status)).
		Msg("Approval decision recorded")

	s.publish(ctx, event, wf, actorID, map[string]any{"record_id": recordID})
	return nil
}

// finalize moves a locked, pending workflow to its terminal status and
// synchronizes the governed entity. Callers hold the instance row lock.
func (s *ApprovalService) finalize(ctx context.Context, tx store.Store, wf *domain.WorkflowInstance, outcome domain.Outcome, rejectionReason *string, actorID string, at time.Time) error {
	status := domain.WorkflowApproved
	if outcome == domain.OutcomeRejected {
		status = domain.WorkflowRejected
	}

	if err := tx.FinalizeWorkflow(ctx, wf.ID, status, at, rejectionReason); err != nil {
		return err
	}
	wf.Status = status
	wf.CompletedDate = &at
	wf.RejectionReason = rejectionReason

	if err := s.synchronizer.Sync(ctx, tx, wf.EntityType, wf.EntityID, outcome); err != nil {
		return err
	}

	return tx.AppendAudit(ctx, &domain.AuditEntry{
		WorkflowID:  wf.ID,
		EntityType:  wf.EntityType,
		EntityID:    wf.EntityID,
		Action:      "workflow_" + string(status),
		PerformedBy: actorID,
	})
}

// ── Read paths ────────────────────────────────────────────────────────────────

// ListPending returns the approver's work queue, newest submissions first.
func (s *ApprovalService) ListPending(ctx context.Context, approverID string) ([]*domain.PendingApproval, error) {
	if approverID == "" {
		return nil, errors.New(errors.ErrCodeUnauthorized, "acting user identity is required")
	}
	return s.store.ListPendingForApprover(ctx, approverID)
}

// History returns every approval cycle for an entity, newest first.
func (s *ApprovalService) History(ctx context.Context, entityType domain.EntityType, entityID string) ([]*domain.WorkflowInstance, error) {
	if entityID == "" {
		return nil, errors.InvalidInput("entity_id", "must not be empty")
	}
	return s.store.ListWorkflowHistory(ctx, entityType, entityID)
}

// Stats aggregates the approver's counts for the current calendar month.
func (s *ApprovalService) Stats(ctx context.Context, approverID string) (*domain.ApproverStats, error) {
	if approverID == "" {
		return nil, errors.New(errors.ErrCodeUnauthorized, "acting user identity is required")
	}
	now := time.Now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return s.store.ApproverStats(ctx, approverID, monthStart)
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func (s *ApprovalService) publish(ctx context.Context, eventType string, wf *domain.WorkflowInstance, actorID string, payload map[string]any) {
	if s.notifier == nil || eventType == "" {
		return
	}
	s.notifier.PublishApprovalEvent(ctx, eventType, wf, actorID, payload)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
