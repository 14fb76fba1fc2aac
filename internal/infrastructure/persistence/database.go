package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erp/pos/internal/infrastructure/config"
	"github.com/erp/pos/internal/infrastructure/persistence/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database is an open GORM handle together with its connection pool
type Database struct {
	DB     *gorm.DB
	Driver string
	pool   *sql.DB
}

// OpenOption customizes Open
type OpenOption func(*gorm.Config)

// WithGormLogger routes GORM's statement log through l
func WithGormLogger(l logger.Interface) OpenOption {
	return func(c *gorm.Config) { c.Logger = l }
}

// Open connects to the configured postgres or sqlite database and checks it answers.
// The memory driver has no database and is rejected here.
func Open(cfg *config.DatabaseConfig, opts ...OpenOption) (*Database, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DriverPostgres, "":
		dialector = postgres.Open(cfg.DSN())
	case config.DriverSQLite:
		dialector = sqlite.Open(SQLiteDSN(cfg.SQLitePath))
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	gormCfg := &gorm.Config{
		Logger:                 logger.Discard,
		SkipDefaultTransaction: true,
		TranslateError:         true,
		PrepareStmt:            cfg.Driver != config.DriverSQLite,
	}
	for _, opt := range opts {
		opt(gormCfg)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Driver, err)
	}
	pool, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("connection pool: %w", err)
	}
	tunePool(pool, cfg)

	if err := pool.Ping(); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("ping %s database: %w", cfg.Driver, err)
	}
	return &Database{DB: db, Driver: cfg.Driver, pool: pool}, nil
}

func tunePool(pool *sql.DB, cfg *config.DatabaseConfig) {
	if cfg.Driver == config.DriverSQLite {
		// one connection, otherwise concurrent writers hit SQLITE_BUSY
		pool.SetMaxOpenConns(1)
	} else {
		pool.SetMaxOpenConns(cfg.MaxOpenConns)
		pool.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	pool.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	pool.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)
}

// SQLiteDSN is the sqlite connection string for path with foreign keys on
func SQLiteDSN(path string) string {
	return fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=on", path)
}

// AutoMigrate creates the sales tables from the models. Postgres uses the SQL migrations.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

func (d *Database) PingContext(ctx context.Context) error { return d.pool.PingContext(ctx) }

func (d *Database) Stats() sql.DBStats { return d.pool.Stats() }

func (d *Database) Close() error { return d.pool.Close() }
