// Package migrations embeds the schema for every supported SQL backend and
// applies it with golang-migrate.
package migrations

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed postgres/*.sql mysql/*.sql sqlite/*.sql
var files embed.FS

// Source returns the embedded migration files for driver.
func Source(driver string) (source.Driver, error) {
	switch driver {
	case "postgres", "mysql", "sqlite":
		return iofs.New(files, driver)
	}
	return nil, fmt.Errorf("no migrations for driver %q", driver)
}

// URL converts an application DATABASE_URL into the form golang-migrate expects.
func URL(driver, databaseURL string) (string, error) {
	switch driver {
	case "postgres":
		for _, prefix := range []string{"postgres://", "postgresql://"} {
			if strings.HasPrefix(databaseURL, prefix) {
				return "pgx5://" + strings.TrimPrefix(databaseURL, prefix), nil
			}
		}
		return "", fmt.Errorf("postgres url must start with postgres://")
	case "mysql":
		cfg, err := mysql.ParseDSN(databaseURL)
		if err != nil {
			return "", fmt.Errorf("parse mysql dsn: %w", err)
		}
		cfg.MultiStatements = true
		cfg.ParseTime = true
		return "mysql://" + cfg.FormatDSN(), nil
	case "sqlite":
		return "sqlite://" + strings.TrimPrefix(databaseURL, "file:"), nil
	}
	return "", fmt.Errorf("unsupported driver %q", driver)
}

// New builds a migrator for driver against databaseURL.
func New(driver, databaseURL string) (*migrate.Migrate, error) {
	src, err := Source(driver)
	if err != nil {
		return nil, err
	}
	url, err := URL(driver, databaseURL)
	if err != nil {
		return nil, err
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return nil, fmt.Errorf("init migrate: %w", err)
	}
	return m, nil
}

// Up applies every pending migration. An up-to-date schema is not an error.
func Up(driver, databaseURL string) error {
	m, err := New(driver, databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// Down rolls back a single migration step.
func Down(driver, databaseURL string) error {
	m, err := New(driver, databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate down: %w", err)
	}
	return nil
}
