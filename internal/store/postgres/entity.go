package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/atlasops/be-ops-approvals/internal/domain"
	"github.com/atlasops/be-ops-approvals/internal/errors"
)

func entityTable(entityType domain.EntityType) (string, error) {
	switch entityType {
	case domain.EntityTask:
		return "tasks", nil
	case domain.EntityProject:
		return "projects", nil
	case domain.EntityTaskTransfer:
		return "task_transfers", nil
	}
	return "", errors.InvalidInput("entity_type", "unknown entity type "+string(entityType))
}

// SetEntityStatus writes the governed entity's status field. The engine is
// the only writer of this field while the entity is under review.
func (s *Store) SetEntityStatus(ctx context.Context, entityType domain.EntityType, entityID, status string) error {
	table, err := entityTable(entityType)
	if err != nil {
		return err
	}

	// Table name comes from the closed entityTable switch, never from input.
	query := `UPDATE ` + table + ` SET status = $2, updated_at = NOW() WHERE id = $1 RETURNING id`

	var returnedID string
	err = s.q.QueryRow(ctx, query, entityID, status).Scan(&returnedID)
	if err == pgx.ErrNoRows {
		return errors.NotFound(string(entityType), entityID)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to update entity status")
	}
	return nil
}

// ExecuteTransfer moves the transferred task onto its target project and
// assignee. Called in the same transaction that finalizes the workflow so an
// approved transfer can never be left unexecuted.
func (s *Store) ExecuteTransfer(ctx context.Context, transferID string) error {
	query := `
		UPDATE tasks t
		SET project_id  = tr.to_project_id,
		    assignee_id = COALESCE(tr.to_assignee_id, t.assignee_id),
		    updated_at  = NOW()
		FROM task_transfers tr
		WHERE tr.id = $1
		  AND t.id = tr.task_id
	`

	affected, err := s.q.Exec(ctx, query, transferID)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to execute task transfer")
	}
	if affected == 0 {
		return errors.NotFound("task_transfer", transferID)
	}
	return nil
}

// GetEntitySummary returns the lightweight view of a governed entity.
func (s *Store) GetEntitySummary(ctx context.Context, entityType domain.EntityType, entityID string) (*domain.EntitySummary, error) {
	summary := &domain.EntitySummary{EntityType: entityType, EntityID: entityID}

	var query string
	switch entityType {
	case domain.EntityTask:
		query = `SELECT title, status FROM tasks WHERE id = $1`
	case domain.EntityProject:
		query = `SELECT name, status FROM projects WHERE id = $1`
	case domain.EntityTaskTransfer:
		query = `
			SELECT t.title, tr.status
			FROM task_transfers tr
			JOIN tasks t ON t.id = tr.task_id
			WHERE tr.id = $1
		`
	default:
		return nil, errors.InvalidInput("entity_type", "unknown entity type "+string(entityType))
	}

	err := s.q.QueryRow(ctx, query, entityID).Scan(&summary.Title, &summary.Status)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound(string(entityType), entityID)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get entity summary")
	}
	return summary, nil
}
