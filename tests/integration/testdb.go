// Package integration runs the sale engine against real PostgreSQL and Redis
// servers started with testcontainers.
package integration

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/erp/pos/internal/domain/sales"
	"github.com/erp/pos/internal/infrastructure/config"
	"github.com/erp/pos/internal/infrastructure/logger"
	"github.com/erp/pos/internal/infrastructure/migration"
	"github.com/erp/pos/internal/infrastructure/persistence"
	"github.com/erp/pos/migrations"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

// TestDB is a migrated PostgreSQL database in its own container
type TestDB struct {
	DB    *gorm.DB
	SqlDB *sql.DB
	t     *testing.T
}

// NewTestDB starts PostgreSQL, opens it the way the server does and applies the
// embedded migrations. Set TEST_DB_DEBUG to log every statement.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("pos_test"),
		tcpostgres.WithUsername("pos"),
		tcpostgres.WithPassword("pos"),
		testcontainers.WithWaitStrategy(
			// postgres logs readiness once for the init server and once for the real one
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute)),
	)
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	cfg := &config.DatabaseConfig{
		Driver:       config.DriverPostgres,
		Host:         host,
		Port:         port.Int(),
		User:         "pos",
		Password:     "pos",
		DBName:       "pos_test",
		SSLMode:      "disable",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
	}
	var opts []persistence.OpenOption
	if os.Getenv("TEST_DB_DEBUG") != "" {
		opts = append(opts, persistence.WithGormLogger(logger.NewGormLogger(zaptest.NewLogger(t), logger.MapGormLogLevel("debug"))))
	}
	db, err := persistence.Open(cfg, opts...)
	require.NoError(t, err, "open postgres")
	t.Cleanup(func() { _ = db.Close() })

	sqlDB, err := db.DB.DB()
	require.NoError(t, err)
	migrate(t, sqlDB)

	return &TestDB{DB: db.DB, SqlDB: sqlDB, t: t}
}

func migrate(t *testing.T, sqlDB *sql.DB) {
	t.Helper()
	m, err := migration.NewFromFS(sqlDB, migrations.Files, zap.NewNop())
	require.NoError(t, err)
	defer func() { _ = m.Close() }()

	require.NoError(t, m.Up())
	version, dirty, err := m.Version()
	require.NoError(t, err)
	require.False(t, dirty)
	require.NotZero(t, version)
}

// SeedProduct inserts a product with qty units on hand
func (tdb *TestDB) SeedProduct(tenantID uuid.UUID, name, price string, qty int64) *sales.Product {
	tdb.t.Helper()
	p := &sales.Product{
		ID:             uuid.New(),
		TenantID:       tenantID,
		SKU:            "SKU-" + uuid.NewString()[:8],
		Name:           name,
		Unit:           "pcs",
		ListPrice:      decimal.RequireFromString(price),
		QuantityOnHand: qty,
	}
	require.NoError(tdb.t, persistence.NewGormProductCatalog(tdb.DB).Save(context.Background(), p))
	return p
}

func (tdb *TestDB) QuantityOnHand(productID uuid.UUID) int64 {
	tdb.t.Helper()
	q, err := persistence.NewGormStockLedger(tdb.DB).QuantityOnHand(context.Background(), productID)
	require.NoError(tdb.t, err)
	return q
}
