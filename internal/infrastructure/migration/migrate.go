// Package migration wraps golang-migrate with the control plane's logging
// and adds helpers for authoring migration files.
package migration

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
)

// Migrator applies the SQL migrations under a directory to a postgres
// database.
type Migrator struct {
	m      *migrate.Migrate
	logger *zap.Logger
}

// New binds a Migrator to db, sourcing migrations from migrationsPath.
func New(db *sql.DB, migrationsPath string, logger *zap.Logger) (*Migrator, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("postgres migrate driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("migrate instance: %w", err)
	}
	return &Migrator{m: m, logger: logger.Named("migration")}, nil
}

// Up applies every pending migration.
func (mg *Migrator) Up() error {
	return mg.report("up", mg.m.Up())
}

// Down rolls everything back.
func (mg *Migrator) Down() error {
	return mg.report("down", mg.m.Down())
}

// Steps moves n versions forward (n > 0) or backward (n < 0).
func (mg *Migrator) Steps(n int) error {
	return mg.report(fmt.Sprintf("steps(%d)", n), mg.m.Steps(n))
}

// report logs the outcome of a migration run; ErrNoChange is a success.
func (mg *Migrator) report(op string, err error) error {
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration %s: %w", op, err)
	}
	if errors.Is(err, migrate.ErrNoChange) {
		mg.logger.Info("Schema already up to date", zap.String("op", op))
		return nil
	}
	version, dirty, verr := mg.Version()
	if verr != nil {
		return verr
	}
	mg.logger.Info("Migrations applied",
		zap.String("op", op),
		zap.Uint("version", version),
		zap.Bool("dirty", dirty),
	)
	return nil
}

// Version reports the current schema version; (0, false) means none applied.
func (mg *Migrator) Version() (uint, bool, error) {
	version, dirty, err := mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("migration version: %w", err)
	}
	return version, dirty, nil
}

// Force stamps the schema at version without running SQL. Only for
// recovering a dirty state.
func (mg *Migrator) Force(version int) error {
	mg.logger.Warn("Forcing migration version", zap.Int("version", version))
	if err := mg.m.Force(version); err != nil {
		return fmt.Errorf("force version %d: %w", version, err)
	}
	return nil
}

// Close releases the source and database handles.
func (mg *Migrator) Close() error {
	sourceErr, dbErr := mg.m.Close()
	if sourceErr != nil {
		return fmt.Errorf("close migration source: %w", sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("close migration database: %w", dbErr)
	}
	return nil
}
