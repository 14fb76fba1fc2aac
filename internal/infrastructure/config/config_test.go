package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable a test touches; viper ignores empty values.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"POS_APP_NAME", "POS_APP_ENV", "POS_APP_PORT",
		"POS_DATABASE_DRIVER", "POS_DATABASE_HOST", "POS_DATABASE_PORT", "POS_DATABASE_USER",
		"POS_DATABASE_PASSWORD", "POS_DATABASE_DBNAME", "POS_DATABASE_SSLMODE",
		"POS_DATABASE_MAX_OPEN_CONNS", "POS_DATABASE_MAX_IDLE_CONNS",
		"POS_REDIS_HOST", "POS_SALES_CURRENCY", "POS_SALES_IDEMPOTENCY_TTL",
		"POS_HTTP_CORS_ALLOW_ORIGINS", "POS_TELEMETRY_SAMPLING_RATIO", "POS_TELEMETRY_DB_LOG_FULL_SQL",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearEnv(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "pos-engine", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, DriverPostgres, cfg.Database.Driver)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "pos", cfg.Database.DBName)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 5, cfg.Database.MaxIdleConns)
		assert.False(t, cfg.Redis.Enabled())
		assert.Equal(t, "IDR", cfg.Sales.Currency)
		assert.Equal(t, 24*time.Hour, cfg.Sales.IdempotencyTTL)
		assert.Equal(t, "pos:delivery:requests", cfg.Sales.DeliveryStream)
		assert.Equal(t, 5*time.Second, cfg.Event.PollInterval)
		assert.Equal(t, "pos-engine", cfg.Profiling.ApplicationName)
	})

	t.Run("loads values from environment variables with POS prefix", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("POS_APP_NAME", "till-7")
		t.Setenv("POS_APP_PORT", "9000")
		t.Setenv("POS_DATABASE_DRIVER", "SQLite")
		t.Setenv("POS_DATABASE_MAX_OPEN_CONNS", "50")
		t.Setenv("POS_DATABASE_MAX_IDLE_CONNS", "10")
		t.Setenv("POS_REDIS_HOST", "cache.local")
		t.Setenv("POS_SALES_CURRENCY", "usd")
		t.Setenv("POS_SALES_IDEMPOTENCY_TTL", "2h")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "till-7", cfg.App.Name)
		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, DriverSQLite, cfg.Database.Driver)
		assert.Equal(t, 50, cfg.Database.MaxOpenConns)
		assert.Equal(t, 10, cfg.Database.MaxIdleConns)
		assert.True(t, cfg.Redis.Enabled())
		assert.Equal(t, "cache.local:6379", cfg.Redis.Addr())
		assert.Equal(t, "USD", cfg.Sales.Currency)
		assert.Equal(t, 2*time.Hour, cfg.Sales.IdempotencyTTL)
	})

	t.Run("rejects unknown database driver", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("POS_DATABASE_DRIVER", "oracle")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.driver")
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("POS_DATABASE_MAX_OPEN_CONNS", "10")
		t.Setenv("POS_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("validates MaxIdleConns cannot be negative", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("POS_DATABASE_MAX_IDLE_CONNS", "-1")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_idle_conns cannot be negative")
	})

	t.Run("rejects malformed currency", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("POS_SALES_CURRENCY", "RUPIAH")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sales.currency")
	})

	t.Run("rejects sampling ratio above one", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("POS_TELEMETRY_SAMPLING_RATIO", "1.5")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sampling_ratio")
	})
}

func TestLoad_ProductionValidation(t *testing.T) {
	setValidProductionBase := func(t *testing.T) {
		clearEnv(t)
		t.Setenv("POS_APP_ENV", "production")
		t.Setenv("POS_DATABASE_PASSWORD", "secure-password")
		t.Setenv("POS_DATABASE_SSLMODE", "require")
	}

	t.Run("passes validation with valid production config", func(t *testing.T) {
		setValidProductionBase(t)

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.App.Env)
	})

	t.Run("requires database.password in production", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("POS_DATABASE_PASSWORD", "")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.password is required in production")
	})

	t.Run("requires SSL enabled in production", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("POS_DATABASE_SSLMODE", "disable")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.sslmode cannot be 'disable' in production")
	})

	t.Run("forbids the memory driver in production", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("POS_DATABASE_DRIVER", "memory")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "memory")
	})

	t.Run("sqlite needs no database password", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("POS_DATABASE_DRIVER", "sqlite")
		t.Setenv("POS_DATABASE_PASSWORD", "")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	})

	t.Run("rejects wildcard CORS in production", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("POS_HTTP_CORS_ALLOW_ORIGINS", "*")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cors_allow_origins")
	})

	t.Run("rejects full SQL logging in production", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("POS_TELEMETRY_DB_LOG_FULL_SQL", "true")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db_log_full_sql")
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("generates valid DSN", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "testuser",
			Password: "testpass",
			DBName:   "testdb",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.Contains(t, dsn, "localhost:5432")
		assert.Contains(t, dsn, "testuser")
		assert.Contains(t, dsn, "/testdb")
		assert.Contains(t, dsn, "sslmode=disable")
	})

	t.Run("escapes special characters in password", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "pass@word#123",
			DBName:   "db",
			SSLMode:  "disable",
		}

		assert.Contains(t, cfg.DSN(), "pass%40word%23123")
	})
}

func TestConfig_SeedProducts(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.Sales.SeedProducts)

	valid := SeedProduct{
		ID:       "6f1c2d3e-0000-4000-8000-000000000001",
		TenantID: "6f1c2d3e-0000-4000-8000-0000000000aa",
		Name:     "Latte",
		Price:    "4.50",
		Quantity: 40,
	}
	cfg.Sales.SeedProducts = []SeedProduct{valid}
	require.NoError(t, cfg.validate())

	bad := valid
	bad.ID = "latte"
	bad.Price = "-1"
	bad.Quantity = -3
	cfg.Sales.SeedProducts = []SeedProduct{valid, bad}
	err = cfg.validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sales.seed_products[1]: id and tenant_id must be UUIDs")
	assert.Contains(t, err.Error(), "sales.seed_products[1]: price must be a non-negative decimal")
	assert.Contains(t, err.Error(), "sales.seed_products[1]: quantity cannot be negative")
	assert.NotContains(t, err.Error(), "sales.seed_products[0]")
}
