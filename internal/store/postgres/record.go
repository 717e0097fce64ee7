package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/atlasops/be-ops-approvals/internal/domain"
	"github.com/atlasops/be-ops-approvals/internal/errors"
)

const recordColumns = `
	id, workflow_id, level, approver_id, status,
	comments, delegated_to, approved_date, created_at`

// GetRecord retrieves a record by its primary key.
func (s *Store) GetRecord(ctx context.Context, id string) (*domain.ApprovalRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM approval_records WHERE id = $1`

	rec, err := scanRecord(s.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("approval record", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get approval record")
	}
	return rec, nil
}

// GetRecordsByWorkflow returns all records for a workflow ordered by level.
func (s *Store) GetRecordsByWorkflow(ctx context.Context, workflowID string) ([]*domain.ApprovalRecord, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM approval_records
		WHERE workflow_id = $1
		ORDER BY level ASC
	`

	rows, err := s.q.Query(ctx, query, workflowID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get approval records")
	}
	defer rows.Close()

	var records []*domain.ApprovalRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan approval record")
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// UpdateRecordDecision stamps a decision onto a still-pending record. The
// status guard turns a lost race or repeated call into a conflict.
func (s *Store) UpdateRecordDecision(ctx context.Context, id string, status domain.RecordStatus, comments *string, decidedAt time.Time) error {
	query := `
		UPDATE approval_records
		SET status        = $2,
		    comments      = $3,
		    approved_date = $4,
		    updated_at    = NOW()
		WHERE id = $1
		  AND status = 'pending'
		RETURNING id
	`

	var returnedID string
	err := s.q.QueryRow(ctx, query, id, status, comments, decidedAt).Scan(&returnedID)
	if err == pgx.ErrNoRows {
		return errors.New(errors.ErrCodeConflict, "approval record is not pending")
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to update approval record")
	}
	return nil
}

// ReassignRecord transfers a pending record's obligation to a delegate. The
// record stays pending so the delegate carries a live obligation.
func (s *Store) ReassignRecord(ctx context.Context, id, delegateID string) error {
	query := `
		UPDATE approval_records
		SET approver_id  = $2,
		    delegated_to = $2,
		    updated_at   = NOW()
		WHERE id = $1
		  AND status = 'pending'
		RETURNING id
	`

	var returnedID string
	err := s.q.QueryRow(ctx, query, id, delegateID).Scan(&returnedID)
	if err == pgx.ErrNoRows {
		return errors.New(errors.ErrCodeConflict, "approval record is not pending")
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to reassign approval record")
	}
	return nil
}

// CountPendingRecords returns the number of still-pending records in a
// workflow. Callers evaluating finalization invoke this under the workflow
// row lock.
func (s *Store) CountPendingRecords(ctx context.Context, workflowID string) (int, error) {
	query := `SELECT COUNT(*) FROM approval_records WHERE workflow_id = $1 AND status = 'pending'`

	var count int
	if err := s.q.QueryRow(ctx, query, workflowID).Scan(&count); err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeInternal, "failed to count pending records")
	}
	return count, nil
}

// ListPendingForApprover returns the approver's work queue joined with
// lightweight entity summaries, newest submissions first. Records of
// already-terminal workflows are excluded even while their status is still
// pending for audit purposes.
func (s *Store) ListPendingForApprover(ctx context.Context, approverID string) ([]*domain.PendingApproval, error) {
	query := `
		SELECT r.id, r.workflow_id, r.level, r.approver_id, r.status,
		       r.comments, r.delegated_to, r.approved_date, r.created_at,
		       w.entity_type, w.entity_id, w.submitted_by, w.submitted_date,
		       COALESCE(t.title, p.name, trt.title, '')      AS entity_title,
		       COALESCE(t.status, p.status, tr.status, '')   AS entity_status
		FROM approval_records r
		JOIN workflow_instances w ON w.id = r.workflow_id
		LEFT JOIN tasks t          ON w.entity_type = 'task'          AND t.id = w.entity_id
		LEFT JOIN projects p       ON w.entity_type = 'project'       AND p.id = w.entity_id
		LEFT JOIN task_transfers tr ON w.entity_type = 'task_transfer' AND tr.id = w.entity_id
		LEFT JOIN tasks trt        ON trt.id = tr.task_id
		WHERE r.approver_id = $1
		  AND r.status = 'pending'
		  AND w.status = 'pending'
		ORDER BY w.submitted_date DESC
	`

	rows, err := s.q.Query(ctx, query, approverID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list pending approvals")
	}
	defer rows.Close()

	var pending []*domain.PendingApproval
	for rows.Next() {
		rec := &domain.ApprovalRecord{}
		entity := &domain.EntitySummary{}
		item := &domain.PendingApproval{Record: rec, Entity: entity}

		err := rows.Scan(
			&rec.ID,
			&rec.WorkflowID,
			&rec.Level,
			&rec.ApproverID,
			&rec.Status,
			&rec.Comments,
			&rec.DelegatedTo,
			&rec.ApprovedDate,
			&rec.CreatedAt,
			&entity.EntityType,
			&entity.EntityID,
			&item.SubmittedBy,
			&item.SubmittedDate,
			&entity.Title,
			&entity.Status,
		)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan pending approval")
		}
		pending = append(pending, item)
	}
	return pending, rows.Err()
}

// ApproverStats aggregates an approver's pending and completed counts.
func (s *Store) ApproverStats(ctx context.Context, approverID string, periodStart time.Time) (*domain.ApproverStats, error) {
	query := `
		SELECT
		    COUNT(*) FILTER (WHERE r.status = 'pending' AND w.status = 'pending' AND w.entity_type = 'task'),
		    COUNT(*) FILTER (WHERE r.status = 'pending' AND w.status = 'pending' AND w.entity_type = 'project'),
		    COUNT(*) FILTER (WHERE r.status = 'pending' AND w.status = 'pending'),
		    COUNT(*) FILTER (WHERE r.status IN ('approved', 'rejected') AND r.approved_date >= $2)
		FROM approval_records r
		JOIN workflow_instances w ON w.id = r.workflow_id
		WHERE r.approver_id = $1
	`

	stats := &domain.ApproverStats{}
	err := s.q.QueryRow(ctx, query, approverID, periodStart).Scan(
		&stats.PendingTasks,
		&stats.PendingProjects,
		&stats.TotalPending,
		&stats.CompletedThisMonth,
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to aggregate approver stats")
	}
	return stats, nil
}

// ── scan helper ───────────────────────────────────────────────────────────────

func scanRecord(row rowScanner) (*domain.ApprovalRecord, error) {
	rec := &domain.ApprovalRecord{}
	err := row.Scan(
		&rec.ID,
		&rec.WorkflowID,
		&rec.Level,
		&rec.ApproverID,
		&rec.Status,
		&rec.Comments,
		&rec.DelegatedTo,
		&rec.ApprovedDate,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return rec, nil
}
