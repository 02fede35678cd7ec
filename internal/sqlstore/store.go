// Package sqlstore implements database.Store on top of database/sql through
// sqlx, for the MySQL and SQLite deployments.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/loadmap/api/internal/database"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// Open connects to a MySQL or SQLite database. MySQL DSNs always get
// parseTime so DATETIME columns scan into time.Time.
func Open(driver, dsn string) (*sqlx.DB, error) {
	switch driver {
	case "mysql":
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, errors.Wrap(err, "parse mysql dsn")
		}
		cfg.ParseTime = true
		cfg.Loc = time.UTC
		return sqlx.Open("mysql", cfg.FormatDSN())
	case "sqlite":
		db, err := sqlx.Open("sqlite", dsn)
		if err != nil {
			return nil, err
		}
		// one writer at a time, matching the single-writer model
		db.SetMaxOpenConns(1)
		return db, nil
	}
	return nil, fmt.Errorf("sqlstore: unsupported driver %q", driver)
}

// Store is the sqlx-backed database.Store.
type Store struct {
	*queries
	db *sqlx.DB
}

// New wraps an open connection pool.
func New(db *sqlx.DB) *Store {
	return &Store{queries: &queries{db: db, now: utcNow}, db: db}
}

// ExecTx runs fn inside one transaction and commits only if it returns nil.
func (s *Store) ExecTx(ctx context.Context, fn func(database.Querier) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(&queries{db: tx, now: s.now}); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "commit tx")
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func utcNow() time.Time { return time.Now().UTC() }

// queries runs statements against either the pool or a transaction.
type queries struct {
	db  sqlx.ExtContext
	now func() time.Time
}

// mapErr folds driver errors into the database package sentinels.
func mapErr(err error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return database.ErrNoRows
	}
	if isUniqueViolation(err) {
		return errors.Wrap(joinUnique(err), msg)
	}
	return errors.Wrap(err, msg)
}
