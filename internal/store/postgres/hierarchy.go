package postgres

import (
	"context"

	"github.com/atlasops/be-ops-approvals/internal/errors"
)

// SuperiorChain walks the org reporting structure upward from userID,
// returning at most maxDepth superiors ordered direct-first. The depth bound
// also terminates traversal of accidental reporting cycles.
func (s *Store) SuperiorChain(ctx context.Context, userID string, maxDepth int) ([]string, error) {
	var exists bool
	err := s.q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM org_hierarchy WHERE user_id = $1)`, userID,
	).Scan(&exists)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to look up submitter")
	}
	if !exists {
		return nil, errors.NotFound("user", userID)
	}

	query := `
		WITH RECURSIVE chain AS (
		    SELECT manager_id, 1 AS depth
		    FROM org_hierarchy
		    WHERE user_id = $1
		    UNION ALL
		    SELECT o.manager_id, c.depth + 1
		    FROM org_hierarchy o
		    JOIN chain c ON o.user_id = c.manager_id
		    WHERE c.depth < $2
		)
		SELECT manager_id
		FROM chain
		WHERE manager_id IS NOT NULL
		ORDER BY depth ASC
	`

	rows, err := s.q.Query(ctx, query, userID, maxDepth)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to resolve superior chain")
	}
	defer rows.Close()

	var chain []string
	for rows.Next() {
		var managerID string
		if err := rows.Scan(&managerID); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan superior chain")
		}
		chain = append(chain, managerID)
	}
	return chain, rows.Err()
}
