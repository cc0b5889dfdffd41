// Package integration spins up a real PostgreSQL via testcontainers and
// exercises provisioning, billing and support flows end to end.
package integration

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	mpg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noro/control-plane/internal/domain/tenant"
)

// One container serves the whole package; each test truncates before it
// starts instead of paying container startup per test.
var (
	sharedContainer    testcontainers.Container
	sharedContainerMu  sync.Mutex
	sharedContainerDSN string
)

// TestDB is a migrated database handle bound to the shared container.
type TestDB struct {
	DB    *gorm.DB
	SqlDB *sql.DB
	t     *testing.T
}

// NewSharedTestDB starts the shared container on first use, migrates it,
// and hands back a fresh connection. The connection closes with the test;
// the container lives until CleanupSharedContainer.
func NewSharedTestDB(t *testing.T) *TestDB {
	t.Helper()

	sharedContainerMu.Lock()
	defer sharedContainerMu.Unlock()

	if sharedContainer == nil {
		container, err := tcpostgres.Run(context.Background(),
			"postgres:16-alpine",
			tcpostgres.WithDatabase("control_plane_test"),
			tcpostgres.WithUsername("postgres"),
			tcpostgres.WithPassword("admin123"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second)),
		)
		require.NoError(t, err, "Failed to start PostgreSQL container")

		dsn, err := container.ConnectionString(context.Background(), "sslmode=disable")
		require.NoError(t, err, "Failed to get connection string")

		_, sqlDB := connect(t, dsn)
		applyMigrations(t, sqlDB)
		sqlDB.Close()

		sharedContainer = container
		sharedContainerDSN = dsn
	}

	db, sqlDB := connect(t, sharedContainerDSN)
	tdb := &TestDB{DB: db, SqlDB: sqlDB, t: t}
	t.Cleanup(func() { tdb.SqlDB.Close() })
	return tdb
}

// CleanupSharedContainer terminates the package container; call it from
// TestMain after m.Run.
func CleanupSharedContainer() {
	sharedContainerMu.Lock()
	defer sharedContainerMu.Unlock()

	if sharedContainer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		sharedContainer.Terminate(ctx)
		sharedContainer = nil
		sharedContainerDSN = ""
	}
}

// CleanTables truncates every public table except schema_migrations and
// drops any tenant schemas left behind by provisioning tests.
func (tdb *TestDB) CleanTables() {
	tdb.t.Helper()

	var tables []string
	err := tdb.DB.Raw(`
		SELECT tablename FROM pg_tables
		WHERE schemaname = 'public'
		AND tablename != 'schema_migrations'
	`).Scan(&tables).Error
	require.NoError(tdb.t, err, "Failed to get table names")

	for _, table := range tables {
		if err := tdb.DB.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)).Error; err != nil {
			tdb.t.Logf("Warning: Failed to truncate table %s: %v", table, err)
		}
	}

	var schemas []string
	err = tdb.DB.Raw(`
		SELECT schema_name FROM information_schema.schemata
		WHERE schema_name LIKE 'tenant\_%'
	`).Scan(&schemas).Error
	require.NoError(tdb.t, err, "Failed to list tenant schemas")

	for _, schema := range schemas {
		if err := tdb.DB.Exec(fmt.Sprintf("DROP SCHEMA %q CASCADE", schema)).Error; err != nil {
			tdb.t.Logf("Warning: Failed to drop schema %s: %v", schema, err)
		}
	}
}

// CreateTestTenant inserts an active tenant row directly, bypassing
// provisioning. Billing and support tests just need a row to hang foreign
// keys off.
func (tdb *TestDB) CreateTestTenant(tenantID uuid.UUID, name, slug string) {
	tdb.t.Helper()

	err := tdb.DB.Exec(`
		INSERT INTO tenants (id, name, slug, schema_name, plan, status, settings, created_at, updated_at)
		VALUES (?, ?, ?, ?, 'starter', 'active', '{}', NOW(), NOW())
		ON CONFLICT (id) DO NOTHING
	`, tenantID, name, slug, tenant.SchemaNameForSlug(slug)).Error
	require.NoError(tdb.t, err, "Failed to create test tenant")
}

// SchemaExists reports whether the named schema exists.
func (tdb *TestDB) SchemaExists(name string) bool {
	tdb.t.Helper()

	var count int64
	err := tdb.DB.Raw(`
		SELECT COUNT(*) FROM information_schema.schemata
		WHERE schema_name = ?
	`, name).Scan(&count).Error
	require.NoError(tdb.t, err, "Failed to query schemata")
	return count > 0
}

func connect(t *testing.T, dsn string) (*gorm.DB, *sql.DB) {
	t.Helper()

	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	if os.Getenv("TEST_DB_DEBUG") != "" {
		cfg.Logger = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(gormpostgres.Open(dsn), cfg)
	require.NoError(t, err, "Failed to connect to database")

	sqlDB, err := db.DB()
	require.NoError(t, err, "Failed to get underlying SQL DB")
	sqlDB.SetMaxOpenConns(5)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	return db, sqlDB
}

func applyMigrations(t *testing.T, sqlDB *sql.DB) {
	t.Helper()

	path := migrationsDir()
	require.NotEmpty(t, path, "Could not find migrations directory")

	driver, err := mpg.WithInstance(sqlDB, &mpg.Config{})
	require.NoError(t, err, "Failed to create migration driver")

	m, err := migrate.NewWithDatabaseInstance("file://"+path, "postgres", driver)
	require.NoError(t, err, "Failed to create migrate instance")

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		require.NoError(t, err, "Failed to run migrations")
	}
}

// migrationsDir walks up from this file until it finds the migrations
// directory at the repository root.
func migrationsDir() string {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return ""
	}
	dir := filepath.Dir(filename)
	for i := 0; i < 5; i++ {
		candidate := filepath.Join(dir, "migrations")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		dir = filepath.Dir(dir)
	}
	return ""
}
