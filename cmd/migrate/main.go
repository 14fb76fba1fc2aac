// Command migrate manages the PostgreSQL schema of the POS sale engine.
package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/erp/pos/internal/infrastructure/config"
	"github.com/erp/pos/internal/infrastructure/logger"
	"github.com/erp/pos/internal/infrastructure/migration"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const defaultMigrationsDir = "migrations"

var errUsage = errors.New("bad usage")

// command is one migrate subcommand. Offline commands only touch the migrations directory.
type command struct {
	args    string
	help    string
	offline func(dir string, args []string, log *zap.Logger) error
	online  func(m *migration.Migrator, args []string, log *zap.Logger) error
}

var commands = map[string]command{
	"up": {
		help:   "Apply all pending migrations",
		online: func(m *migration.Migrator, _ []string, _ *zap.Logger) error { return m.Up() },
	},
	"down": {
		help:   "Roll back all migrations",
		online: func(m *migration.Migrator, _ []string, _ *zap.Logger) error { return m.Down() },
	},
	"step": {
		args: "<n>",
		help: "Apply n migrations, negative n rolls back",
		online: func(m *migration.Migrator, args []string, _ *zap.Logger) error {
			n, err := intArg(args, "step count")
			if err != nil {
				return err
			}
			return m.Steps(n)
		},
	},
	"goto": {
		args: "<version>",
		help: "Migrate up or down to a version",
		online: func(m *migration.Migrator, args []string, _ *zap.Logger) error {
			v, err := intArg(args, "version")
			if err != nil {
				return err
			}
			if v < 0 {
				return fmt.Errorf("%w: version must not be negative", errUsage)
			}
			return m.GoTo(uint(v))
		},
	},
	"version": {
		help: "Show the applied version",
		online: func(m *migration.Migrator, _ []string, log *zap.Logger) error {
			version, dirty, err := m.Version()
			if err != nil {
				return err
			}
			log.Info("Schema version", zap.Uint("version", version), zap.Bool("dirty", dirty))
			return nil
		},
	},
	"force": {
		args: "<version>",
		help: "Set the version without running anything, after a failed migration",
		online: func(m *migration.Migrator, args []string, _ *zap.Logger) error {
			v, err := intArg(args, "version")
			if err != nil {
				return err
			}
			return m.Force(v)
		},
	},
	"create": {
		args: "<name> [description]",
		help: "Write a new up/down file pair",
		offline: func(dir string, args []string, log *zap.Logger) error {
			if len(args) == 0 {
				return fmt.Errorf("%w: migration name required", errUsage)
			}
			description := ""
			if len(args) > 1 {
				description = args[1]
			}
			mf, err := migration.CreateMigration(dir, args[0], description)
			if err != nil {
				return err
			}
			log.Info("Migration created",
				zap.String("version", mf.Version),
				zap.String("up_file", mf.UpPath),
				zap.String("down_file", mf.DownPath),
			)
			return nil
		},
	},
	"list": {
		help: "List migration files",
		offline: func(dir string, _ []string, log *zap.Logger) error {
			names, err := migration.ListMigrations(dir)
			if err != nil {
				return err
			}
			log.Info("Migrations on disk", zap.Int("count", len(names)))
			for _, name := range names {
				fmt.Println("  -", name)
			}
			return nil
		},
	},
}

// order is the listing order of the usage text
var order = []string{"up", "down", "step", "goto", "version", "force", "create", "list"}

func main() {
	dir := flag.String("path", "", "migrations directory (default ./migrations)")
	level := flag.String("log-level", "info", "debug, info, warn or error")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}
	name, args := flag.Arg(0), flag.Args()[1:]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
		usage()
		os.Exit(2)
	}

	log, err := logger.New(&logger.Config{Level: *level, Format: "console", Output: "stdout"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	migrationsDir, err := resolveDir(*dir)
	if err != nil {
		log.Fatal("Cannot resolve migrations directory", zap.Error(err))
	}
	log = log.With(zap.String("command", name), zap.String("migrations_path", migrationsDir))

	if cmd.offline != nil {
		err = cmd.offline(migrationsDir, args, log)
	} else {
		err = runOnline(cmd, migrationsDir, args, log)
	}
	if errors.Is(err, errUsage) {
		fmt.Fprintf(os.Stderr, "%v\nusage: migrate %s %s\n", err, name, cmd.args)
		os.Exit(2)
	}
	if err != nil {
		log.Fatal("Migration command failed", zap.Error(err))
	}
}

// runOnline opens PostgreSQL from the POS_ configuration and runs cmd against it
func runOnline(cmd command, dir string, args []string, log *zap.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if cfg.Database.Driver != config.DriverPostgres {
		return fmt.Errorf("database.driver is %q: sqlite and memory build their schema at startup", cfg.Database.Driver)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	m, err := migration.New(db, dir, log)
	if err != nil {
		return err
	}
	defer m.Close()
	return cmd.online(m, args, log)
}

// resolveDir returns an absolute migrations directory. Without -path it tries
// ./migrations, then the repository root relative to a binary in bin/<name>.
func resolveDir(flagValue string) (string, error) {
	if flagValue != "" {
		return filepath.Abs(flagValue)
	}
	candidates := []string{defaultMigrationsDir}
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), "..", "..", defaultMigrationsDir))
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && info.IsDir() {
			return filepath.Abs(c)
		}
	}
	return filepath.Abs(defaultMigrationsDir)
}

func intArg(args []string, label string) (int, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("%w: %s required", errUsage, label)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s %q", errUsage, label, args[0])
	}
	return n, nil
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintln(out, "usage: migrate [flags] <command> [arguments]")
	fmt.Fprintln(out, "\ncommands:")
	for _, name := range order {
		c := commands[name]
		fmt.Fprintf(out, "  %-22s %s\n", name+" "+c.args, c.help)
	}
	fmt.Fprintln(out, "\nflags:")
	flag.PrintDefaults()
	fmt.Fprintln(out, "\nThe database is read from POS_DATABASE_HOST, POS_DATABASE_PORT, POS_DATABASE_USER,")
	fmt.Fprintln(out, "POS_DATABASE_PASSWORD, POS_DATABASE_DBNAME and POS_DATABASE_SSLMODE.")
}
