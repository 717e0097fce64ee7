package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/atlasops/be-ops-approvals/internal/domain"
	"github.com/atlasops/be-ops-approvals/internal/errors"
	"github.com/atlasops/be-ops-approvals/internal/store"
)

const workflowColumns = `
	id, entity_type, entity_id, submitted_by, submitted_date,
	max_level, status, completed_date, rejection_reason`

// CreateWorkflow inserts the instance and its full record set. Runs in its
// own transaction unless already inside Atomically.
func (s *Store) CreateWorkflow(ctx context.Context, wf *domain.WorkflowInstance, records []*domain.ApprovalRecord) error {
	if !s.inTx {
		return s.Atomically(ctx, func(ctx context.Context, tx store.Store) error {
			return tx.CreateWorkflow(ctx, wf, records)
		})
	}

	wfQuery := `
		INSERT INTO workflow_instances
		    (entity_type, entity_id, submitted_by, max_level, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, submitted_date
	`

	err := s.q.QueryRow(ctx, wfQuery,
		wf.EntityType,
		wf.EntityID,
		wf.SubmittedBy,
		wf.MaxLevel,
		wf.Status,
	).Scan(&wf.ID, &wf.SubmittedDate)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create workflow instance")
	}

	recQuery := `
		INSERT INTO approval_records
		    (workflow_id, level, approver_id, status, comments, delegated_to, approved_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	for _, rec := range records {
		rec.WorkflowID = wf.ID

		err := s.q.QueryRow(ctx, recQuery,
			rec.WorkflowID,
			rec.Level,
			rec.ApproverID,
			rec.Status,
			rec.Comments,
			rec.DelegatedTo,
			rec.ApprovedDate,
		).Scan(&rec.ID, &rec.CreatedAt)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to create approval record")
		}
	}

	return nil
}

// GetWorkflow retrieves an instance by its primary key.
func (s *Store) GetWorkflow(ctx context.Context, id string) (*domain.WorkflowInstance, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflow_instances WHERE id = $1`

	wf, err := scanWorkflow(s.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("workflow", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get workflow instance")
	}
	return wf, nil
}

// GetWorkflowForUpdate retrieves an instance holding its row lock for the
// rest of the enclosing transaction.
func (s *Store) GetWorkflowForUpdate(ctx context.Context, id string) (*domain.WorkflowInstance, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflow_instances WHERE id = $1 FOR UPDATE`

	wf, err := scanWorkflow(s.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("workflow", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to lock workflow instance")
	}
	return wf, nil
}

// GetActiveWorkflow returns the non-terminal instance for an entity, or nil.
func (s *Store) GetActiveWorkflow(ctx context.Context, entityType domain.EntityType, entityID string) (*domain.WorkflowInstance, error) {
	query := `
		SELECT ` + workflowColumns + `
		FROM workflow_instances
		WHERE entity_type = $1 AND entity_id = $2 AND status = 'pending'
		ORDER BY submitted_date DESC
		LIMIT 1
	`

	wf, err := scanWorkflow(s.q.QueryRow(ctx, query, entityType, entityID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get active workflow")
	}
	return wf, nil
}

// FinalizeWorkflow moves a pending instance to a terminal status. The WHERE
// guard on status makes a second finalization attempt a conflict rather than
// a silent overwrite.
func (s *Store) FinalizeWorkflow(ctx context.Context, id string, status domain.WorkflowStatus, completedAt time.Time, rejectionReason *string) error {
	query := `
		UPDATE workflow_instances
		SET status           = $2,
		    completed_date   = $3,
		    rejection_reason = $4,
		    updated_at       = NOW()
		WHERE id = $1
		  AND status = 'pending'
		RETURNING id
	`

	var returnedID string
	err := s.q.QueryRow(ctx, query, id, status, completedAt, rejectionReason).Scan(&returnedID)
	if err == pgx.ErrNoRows {
		return errors.New(errors.ErrCodeConflict, "workflow is not pending")
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to finalize workflow")
	}
	return nil
}

// ListWorkflowHistory returns every approval cycle for an entity, newest
// first, each with its full record set.
func (s *Store) ListWorkflowHistory(ctx context.Context, entityType domain.EntityType, entityID string) ([]*domain.WorkflowInstance, error) {
	query := `
		SELECT ` + workflowColumns + `
		FROM workflow_instances
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY submitted_date DESC
	`

	rows, err := s.q.Query(ctx, query, entityType, entityID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list workflow history")
	}
	defer rows.Close()

	var instances []*domain.WorkflowInstance
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan workflow instance")
		}
		instances = append(instances, wf)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to read workflow history")
	}

	for _, wf := range instances {
		records, err := s.GetRecordsByWorkflow(ctx, wf.ID)
		if err != nil {
			return nil, err
		}
		wf.Records = records
	}

	return instances, nil
}

// ── scan helper ───────────────────────────────────────────────────────────────

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row rowScanner) (*domain.WorkflowInstance, error) {
	wf := &domain.WorkflowInstance{}
	err := row.Scan(
		&wf.ID,
		&wf.EntityType,
		&wf.EntityID,
		&wf.SubmittedBy,
		&wf.SubmittedDate,
		&wf.MaxLevel,
		&wf.Status,
		&wf.CompletedDate,
		&wf.RejectionReason,
	)
	if err != nil {
		return nil, err
	}
	return wf, nil
}
