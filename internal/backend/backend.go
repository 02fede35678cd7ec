// Package backend opens the database.Store selected by configuration.
package backend

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/loadmap/api/internal/config"
	"github.com/loadmap/api/internal/database"
	"github.com/loadmap/api/internal/memstore"
	"github.com/loadmap/api/internal/sqlstore"
	"github.com/loadmap/api/migrations"
	"github.com/sirupsen/logrus"
)

// Open connects to the configured backend and returns the store with a
// function that releases it. When migrate is set, pending schema migrations
// run first. The memory backend has no schema.
func Open(ctx context.Context, cfg *config.Config, migrate bool, log logrus.FieldLogger) (database.Store, func(), error) {
	log = log.WithField("driver", cfg.DatabaseDriver)

	if migrate && cfg.DatabaseDriver != "memory" {
		if err := migrations.Up(cfg.DatabaseDriver, cfg.DatabaseURL); err != nil {
			return nil, nil, err
		}
		log.Info("migrations applied")
	}

	switch cfg.DatabaseDriver {
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ping postgres: %w", err)
		}
		log.Info("connected to database")
		return database.NewPgStore(pool), pool.Close, nil

	case "mysql", "sqlite":
		db, err := sqlstore.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		store := sqlstore.New(db)
		if err := store.Ping(ctx); err != nil {
			store.Close()
			return nil, nil, fmt.Errorf("ping %s: %w", cfg.DatabaseDriver, err)
		}
		log.Info("connected to database")
		return store, func() {
			if err := store.Close(); err != nil {
				log.WithError(err).Warn("close database")
			}
		}, nil

	case "memory":
		log.Warn("using in-memory store, data is lost on restart")
		return memstore.New(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unsupported driver %q", cfg.DatabaseDriver)
}
