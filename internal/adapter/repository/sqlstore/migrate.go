package sqlstore

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrationsFS embed.FS

// Migrate applies the embedded migrations of the connection's dialect
func (db *DB) Migrate(logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	source, err := iofs.New(migrationsFS, "migrations/"+string(db.dialect))
	if err != nil {
		return fmt.Errorf("failed to open migration source: %w", err)
	}

	var driver database.Driver
	switch db.dialect {
	case DialectPostgres:
		driver, err = postgres.WithInstance(db.DB, &postgres.Config{})
	case DialectSQLite:
		driver, err = sqlite.WithInstance(db.DB, &sqlite.Config{})
	default:
		return fmt.Errorf("unsupported database dialect %q", db.dialect)
	}
	if err != nil {
		return fmt.Errorf("failed to create %s migration driver: %w", db.dialect, err)
	}

	m, err := migrate.NewWithInstance("iofs", source, string(db.dialect), driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	logger.Info("Applying database migrations...", "dialect", db.dialect)
	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("No new database migrations to apply.")
			return nil
		}
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, _, _ := m.Version()
	logger.Info("Database migrations applied successfully.", "version", version)
	return nil
}
