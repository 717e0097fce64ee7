package service

import (
	"context"

	"github.com/atlasops/be-ops-approvals/internal/domain"
	"github.com/atlasops/be-ops-approvals/internal/logger"
	"github.com/atlasops/be-ops-approvals/internal/store"
)

// Synchronizer propagates a terminal workflow outcome onto the governed
// entity. During the approval window the engine is the only writer of the
// entity's status field, so this is where the review lifecycle hands the
// entity back to its own lifecycle.
type Synchronizer struct {
	log *logger.Logger
}

// NewSynchronizer creates a Synchronizer.
func NewSynchronizer(log *logger.Logger) *Synchronizer {
	return &Synchronizer{log: log}
}

// Sync writes the entity status for the outcome. For an approved task
// transfer the transfer itself is executed in the same call, inside the same
// transaction as the workflow finalization; deferring it would leave the
// task stranded in pending_approval.
func (s *Synchronizer) Sync(ctx context.Context, tx store.Store, entityType domain.EntityType, entityID string, outcome domain.Outcome) error {
	status, err := domain.TerminalStatus(entityType, outcome)
	if err != nil {
		return err
	}

	if entityType == domain.EntityTaskTransfer && outcome == domain.OutcomeApproved {
		if err := tx.ExecuteTransfer(ctx, entityID); err != nil {
			return err
		}
	}

	if err := tx.SetEntityStatus(ctx, entityType, entityID, status); err != nil {
		return err
	}

	s.log.Info().
		Str("entity_type", string(entityType)).
		Str("entity_id", entityID).
		Str("outcome", string(outcome)).
		Str("entity_status", status).
		Msg("Entity status synchronized")

	return nil
}
