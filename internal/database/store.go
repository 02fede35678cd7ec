package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PgStore is the Postgres Store. Satisfied by a *pgxpool.Pool.
type PgStore struct {
	*Queries
	pool TxBeginner
}

// NewPgStore wraps a pool (or anything that can begin a transaction).
func NewPgStore(pool TxBeginner) *PgStore {
	return &PgStore{Queries: New(pool), pool: pool}
}

// ExecTx runs fn with queries bound to one transaction. The transaction is
// committed only if fn returns nil.
func (s *PgStore) ExecTx(ctx context.Context, fn func(Querier) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(s.WithTx(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
