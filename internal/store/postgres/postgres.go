// Package postgres implements store.Store on PostgreSQL via pgx.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/atlasops/be-ops-approvals/internal/database"
	"github.com/atlasops/be-ops-approvals/internal/store"
)

// querier is the query surface shared by the pool-backed DB and transactions.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (int64, error)
}

// txQuerier adapts pgx.Tx to the querier surface.
type txQuerier struct {
	tx pgx.Tx
}

func (t *txQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return t.tx.Query(ctx, sql, args...)
}

func (t *txQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return t.tx.QueryRow(ctx, sql, args...)
}

func (t *txQuerier) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	tag, err := t.tx.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Store is the PostgreSQL-backed store.Store.
type Store struct {
	db   *database.DB
	q    querier
	inTx bool
}

var _ store.Store = (*Store)(nil)

// New creates a Store over the given database.
func New(db *database.DB) *Store {
	return &Store{db: db, q: db}
}

// Atomically runs fn inside a database transaction. Nested calls join the
// enclosing transaction.
func (s *Store) Atomically(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}
	return s.db.InTransaction(ctx, func(tx pgx.Tx) error {
		return fn(ctx, &Store{db: s.db, q: &txQuerier{tx: tx}, inTx: true})
	})
}
