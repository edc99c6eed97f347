// Package migrate applies the docuflow schema migrations from an
// embedded filesystem. AutoMigrate covers development; deployments run
// these versioned migrations instead.
package migrate

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql migrations/db-specific/*.sql
var migrationsFS embed.FS

// RunMigrations applies all pending migrations for the given database
// driver, then the database-specific enhancements.
func RunMigrations(db *sql.DB, driver string) error {
	m, err := newInstance(db, driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("core migration failed: %w", err)
	}

	if err := applyDatabaseSpecificMigrations(db, driver); err != nil {
		return fmt.Errorf("database-specific migrations failed: %w", err)
	}
	return nil
}

// GetMigrationVersion returns the current migration version.
func GetMigrationVersion(db *sql.DB, driver string) (version uint, dirty bool, err error) {
	m, err := newInstance(db, driver)
	if err != nil {
		return 0, false, err
	}
	return m.Version()
}

func newInstance(db *sql.DB, driver string) (*migrate.Migrate, error) {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to load migration source: %w", err)
	}

	var databaseDriver database.Driver
	switch driver {
	case "postgres":
		databaseDriver, err = postgres.WithInstance(db, &postgres.Config{})
	case "sqlite":
		databaseDriver, err = sqlite.WithInstance(db, &sqlite.Config{})
	default:
		return nil, fmt.Errorf("unsupported database driver: %s (supported: postgres, sqlite)", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s driver: %w", driver, err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, driver, databaseDriver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration instance: %w", err)
	}
	return m, nil
}

// applyDatabaseSpecificMigrations runs the PostgreSQL or SQLite
// specific statements. These are re-runnable and not versioned.
func applyDatabaseSpecificMigrations(db *sql.DB, driver string) error {
	var files []string
	switch driver {
	case "postgres":
		files = []string{"db-specific/000002_postgres_extras.up.sql"}
	case "sqlite":
		files = []string{"db-specific/000003_sqlite_extras.up.sql"}
	}

	for _, file := range files {
		stmts, err := migrationsFS.ReadFile("migrations/" + file)
		if err != nil {
			continue
		}
		if _, err := db.Exec(string(stmts)); err != nil {
			return fmt.Errorf("failed to apply %s: %w", file, err)
		}
	}
	return nil
}
