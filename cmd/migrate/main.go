// Command migrate manages the control plane's database schema: applying and
// rolling back SQL migrations, and authoring new migration file pairs.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noro/control-plane/internal/infrastructure/config"
	"github.com/noro/control-plane/internal/infrastructure/logger"
	"github.com/noro/control-plane/internal/infrastructure/migration"
)

func main() {
	var (
		migrationsPath = flag.String("path", "migrations", "Path to migrations directory")
		logLevel       = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	)
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:      *logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to initialize logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync(log) }()

	dir, err := filepath.Abs(*migrationsPath)
	if err != nil {
		log.Fatal("Failed to resolve migrations path", zap.Error(err))
	}

	if err := run(flag.Arg(0), flag.Args()[1:], dir, log); err != nil {
		log.Fatal("Migration command failed", zap.String("command", flag.Arg(0)), zap.Error(err))
	}
}

func run(command string, args []string, dir string, log *zap.Logger) error {
	// create and list never touch the database
	switch command {
	case "create":
		if len(args) == 0 {
			return fmt.Errorf("migration name required: migrate create <name> [description]")
		}
		description := ""
		if len(args) > 1 {
			description = args[1]
		}
		pair, err := migration.Create(dir, args[0], description)
		if err != nil {
			return err
		}
		log.Info("Migration created",
			zap.String("version", pair.Version),
			zap.String("up_file", pair.UpPath),
			zap.String("down_file", pair.DownPath),
		)
		return nil

	case "list":
		names, err := migration.List(dir)
		if err != nil {
			return err
		}
		if len(names) == 0 {
			log.Info("No migrations found", zap.String("dir", dir))
			return nil
		}
		for _, name := range names {
			fmt.Println("  -", name)
		}
		return nil
	}

	m, closeDB, err := openMigrator(dir, log)
	if err != nil {
		return err
	}
	defer closeDB()
	defer m.Close()

	switch command {
	case "up":
		return m.Up()
	case "down":
		return m.Down()
	case "step":
		n, err := intArg(args, "step count")
		if err != nil {
			return err
		}
		return m.Steps(n)
	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		if version == 0 {
			log.Info("No migrations applied")
		} else {
			log.Info("Current migration version", zap.Uint("version", version), zap.Bool("dirty", dirty))
		}
		return nil
	case "force":
		version, err := intArg(args, "version")
		if err != nil {
			return err
		}
		return m.Force(version)
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func openMigrator(dir string, log *zap.Logger) (*migration.Migrator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}
	m, err := migration.New(db, dir, log)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return m, func() { db.Close() }, nil
}

func intArg(args []string, what string) (int, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("%s required", what)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", what, args[0])
	}
	return n, nil
}

func usage() {
	fmt.Println(`Control plane database migration tool

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up                    Apply all pending migrations
  down                  Roll back all migrations
  step <n>              Apply n migrations (positive=up, negative=down)
  version               Show current migration version
  force <version>       Force set migration version (use with caution)
  create <name> [desc]  Create a new migration file pair
  list                  List available migrations

Flags:
  -path string          Path to migrations directory (default: ./migrations)
  -log-level string     Log level: debug, info, warn, error (default: info)

Configuration is read from config.toml and NORO_-prefixed environment
variables (e.g. NORO_DATABASE_PASSWORD).`)
}
