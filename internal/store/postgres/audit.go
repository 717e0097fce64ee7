package postgres

import (
	"context"
	"encoding/json"

	"github.com/atlasops/be-ops-approvals/internal/domain"
	"github.com/atlasops/be-ops-approvals/internal/errors"
)

// AppendAudit inserts one immutable audit entry. The table carries a
// delete-prevention trigger, so append is the only mutation exposed.
func (s *Store) AppendAudit(ctx context.Context, entry *domain.AuditEntry) error {
	var metadataJSON []byte
	if entry.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(entry.Metadata)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal audit metadata")
		}
	}

	query := `
		INSERT INTO approval_audit_log
		    (workflow_id, record_id, entity_type, entity_id,
		     action, performed_by, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, performed_at
	`

	err := s.q.QueryRow(ctx, query,
		entry.WorkflowID,
		entry.RecordID,
		entry.EntityType,
		entry.EntityID,
		entry.Action,
		entry.PerformedBy,
		metadataJSON,
	).Scan(&entry.ID, &entry.PerformedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to append audit entry")
	}
	return nil
}
