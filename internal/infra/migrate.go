package infra

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	iofs "github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
)

// Migrate applies every pending migration in files to the database at databaseURL.
// A dirty schema version is reported and left for an operator to resolve.
func Migrate(ctx context.Context, databaseURL string, files fs.FS, logger zerolog.Logger) (err error) {
	log := logger.With().Str("component", "migrate").Logger()

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire dedicated connection: %w", err)
	}

	driver, err := postgres.WithConnection(ctx, conn, &postgres.Config{MigrationsTable: "schema_migrations"})
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("initialize postgres driver: %w", err)
	}
	defer func() {
		if closeErr := driver.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("close migration connection: %w", closeErr)
		}
	}()

	source, err := iofs.New(files, ".")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	version, dirty, verr := migrator.Version()
	switch {
	case errors.Is(verr, migrate.ErrNilVersion):
		log.Info().Msg("migrate: fresh database")
	case verr != nil:
		return fmt.Errorf("read migration version: %w", verr)
	case dirty:
		return fmt.Errorf("database schema version %d is dirty", version)
	default:
		log.Info().Uint("version", version).Msg("migrate: current version")
	}

	if err := migrator.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info().Msg("migrate: no change")
			return nil
		}
		return fmt.Errorf("apply migrations: %w", err)
	}
	if v, _, err := migrator.Version(); err == nil {
		log.Info().Uint("version", v).Msg("migrate: applied")
	}
	return nil
}
