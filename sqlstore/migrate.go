package sqlstore

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsTable = "schema_migrations"

// migrateUp applies the embedded migrations on a dedicated connection, since
// the migrate drivers close the handle they are given.
func migrateUp(d dialect, dsn string, logger *zap.Logger) (err error) {
	db, err := sql.Open(d.driverName(), dsn)
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}

	var driver database.Driver

	switch d {
	case dialectPostgres:
		driver, err = pgxmigrate.WithInstance(db, &pgxmigrate.Config{MigrationsTable: migrationsTable})
	default:
		driver, err = sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{MigrationsTable: migrationsTable})
	}

	if err != nil {
		return multierr.Append(fmt.Errorf("failed to create migration driver: %w", err), db.Close())
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return multierr.Append(fmt.Errorf("failed to read migrations: %w", err), driver.Close())
	}

	m, err := migrate.NewWithInstance("iofs", src, string(d), driver)
	if err != nil {
		return multierr.Combine(fmt.Errorf("failed to create migration instance: %w", err), src.Close(), driver.Close())
	}

	defer func() {
		srcErr, dbErr := m.Close()
		err = multierr.Combine(err, srcErr, dbErr)
	}()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Debug("schema is up to date")
			return nil
		}

		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, _, _ := m.Version()
	logger.Info("applied migrations", zap.Uint("version", version))

	return nil
}
