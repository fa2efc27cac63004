package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// schemaFS holds the expenses table migrations. Version 1 creates
// expenses(id INTEGER PRIMARY KEY AUTOINCREMENT, date, description,
// category, amount REAL, payment_method NULL) with CREATE TABLE IF NOT
// EXISTS, so a database whose table predates the migration history is
// adopted as is.
//
//go:embed migrations/*.sql
var schemaFS embed.FS

// migrateSchema brings the expenses schema at dbPath up to date and
// returns the resulting version. An up-to-date schema is not an error.
func migrateSchema(dbPath string) (uint, error) {
	// closing the migrator closes its connection, so it gets its own
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return 0, fmt.Errorf("open schema connection: %w", err)
	}
	defer db.Close()

	target, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return 0, fmt.Errorf("prepare sqlite schema target: %w", err)
	}
	source, err := iofs.New(schemaFS, "migrations")
	if err != nil {
		return 0, fmt.Errorf("load expense migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", target)
	if err != nil {
		return 0, fmt.Errorf("prepare expense migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("apply expense migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("expense schema version %d is dirty", version)
	}
	return version, nil
}
