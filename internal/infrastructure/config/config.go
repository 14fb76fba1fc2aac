package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Config is the whole configuration, read from config.toml and POS_ variables
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
	Event     EventConfig     `mapstructure:"event"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Sales     SalesConfig     `mapstructure:"sales"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Profiling ProfilingConfig `mapstructure:"profiling"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Port string `mapstructure:"port"`
}

// LogConfig is the [log] section. Output is stdout, stderr or a file path.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// DatabaseConfig selects the storage. Connection settings apply to postgres,
// SQLitePath to sqlite, and memory needs neither.
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	SQLitePath      string `mapstructure:"sqlite_path"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // minutes
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // minutes
}

// DSN returns a postgres:// URL with user and password escaped
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     d.DBName,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}

// RedisConfig is the shared Redis server. An empty Host means no Redis: idempotency
// keys stay in process and delivery requests go to the log.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r RedisConfig) Addr() string  { return net.JoinHostPort(r.Host, strconv.Itoa(r.Port)) }
func (r RedisConfig) Enabled() bool { return r.Host != "" }

// EventConfig drives the outbox processor
type EventConfig struct {
	ProcessorEnabled bool          `mapstructure:"processor_enabled"`
	BatchSize        int           `mapstructure:"batch_size"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	MaxRetries       int           `mapstructure:"max_retries"`
	CleanupEnabled   bool          `mapstructure:"cleanup_enabled"`
	CleanupRetention time.Duration `mapstructure:"cleanup_retention"`
}

type HTTPConfig struct {
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	MaxHeaderBytes    int           `mapstructure:"max_header_bytes"`
	MaxBodySize       int64         `mapstructure:"max_body_size"`
	RateLimitEnabled  bool          `mapstructure:"rate_limit_enabled"`
	RateLimitRequests int           `mapstructure:"rate_limit_requests"`
	RateLimitWindow   time.Duration `mapstructure:"rate_limit_window"`
	// An empty origin list refuses every cross-origin request
	CORSAllowOrigins []string `mapstructure:"cors_allow_origins"`
	CORSAllowMethods []string `mapstructure:"cors_allow_methods"`
	CORSAllowHeaders []string `mapstructure:"cors_allow_headers"`
	TrustedProxies   []string `mapstructure:"trusted_proxies"`
}

// SalesConfig holds checkout settings
type SalesConfig struct {
	Currency       string        `mapstructure:"currency"`
	IdempotencyTTL time.Duration `mapstructure:"idempotency_ttl"`
	DeliveryStream string        `mapstructure:"delivery_stream"`  // Redis stream receiving delivery requests
	DeliveryMaxLen int64         `mapstructure:"delivery_max_len"` // approximate stream cap, 0 keeps everything

	// SeedProducts are added to the catalog at startup when missing. Config file only:
	//
	//	[[sales.seed_products]]
	//	id = "..."
	//	tenant_id = "..."
	//	name = "Latte"
	//	price = "4.50"
	//	quantity = 40
	SeedProducts []SeedProduct `mapstructure:"seed_products"`
}

// SeedProduct is one catalog entry loaded at startup
type SeedProduct struct {
	ID       string `mapstructure:"id"`
	TenantID string `mapstructure:"tenant_id"`
	SKU      string `mapstructure:"sku"`
	Name     string `mapstructure:"name"`
	Unit     string `mapstructure:"unit"`
	Price    string `mapstructure:"price"`
	Quantity int64  `mapstructure:"quantity"`
}

// TelemetryConfig is the OpenTelemetry export. Nothing is exported unless Enabled.
type TelemetryConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	CollectorEndpoint string        `mapstructure:"collector_endpoint"` // OTLP gRPC host:port
	SamplingRatio     float64       `mapstructure:"sampling_ratio"`
	ServiceName       string        `mapstructure:"service_name"`
	Insecure          bool          `mapstructure:"insecure"`
	MetricsEnabled    bool          `mapstructure:"metrics_enabled"`
	MetricsInterval   time.Duration `mapstructure:"metrics_interval"`
	LogsEnabled       bool          `mapstructure:"logs_enabled"`
	DBTraceEnabled    bool          `mapstructure:"db_trace_enabled"`
	DBLogFullSQL      bool          `mapstructure:"db_log_full_sql"` // statements with values, never in production
	DBSlowQueryThresh time.Duration `mapstructure:"db_slow_query_threshold"`
}

// ProfilingConfig is the Pyroscope push target
type ProfilingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	ServerAddress     string `mapstructure:"server_address"`
	ApplicationName   string `mapstructure:"application_name"`
	BasicAuthUser     string `mapstructure:"basic_auth_user"`
	BasicAuthPassword string `mapstructure:"basic_auth_password"`
}

// defaults lists every key. Keys must be known to viper for POS_ variables to
// reach Unmarshal, so keys without a useful default are listed with a zero value.
var defaults = map[string]any{
	"app.name": "pos-engine",
	"app.env":  "development",
	"app.port": "8080",

	"database.driver":             DriverPostgres,
	"database.host":               "localhost",
	"database.port":               5432,
	"database.user":               "postgres",
	"database.password":           "",
	"database.dbname":             "pos",
	"database.sslmode":            "disable",
	"database.sqlite_path":        "pos.db",
	"database.max_open_conns":     25,
	"database.max_idle_conns":     5,
	"database.conn_max_lifetime":  60,
	"database.conn_max_idle_time": 30,

	"redis.host":     "",
	"redis.port":     6379,
	"redis.password": "",
	"redis.db":       0,

	"log.level":  "info",
	"log.format": "console",
	"log.output": "stdout",

	"event.processor_enabled": true,
	"event.batch_size":        100,
	"event.poll_interval":     5 * time.Second,
	"event.max_retries":       5,
	"event.cleanup_enabled":   true,
	"event.cleanup_retention": 7 * 24 * time.Hour,

	"http.read_timeout":        15 * time.Second,
	"http.write_timeout":       15 * time.Second,
	"http.idle_timeout":        time.Minute,
	"http.shutdown_timeout":    30 * time.Second,
	"http.max_header_bytes":    1 << 20,
	"http.max_body_size":       1 << 20,
	"http.rate_limit_enabled":  false,
	"http.rate_limit_requests": 300,
	"http.rate_limit_window":   time.Minute,
	"http.cors_allow_origins":  []string{},
	"http.cors_allow_methods":  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
	"http.cors_allow_headers":  []string{"Content-Type", "X-Request-ID", "X-Tenant-ID"},
	"http.trusted_proxies":     []string{},

	"sales.currency":         "IDR",
	"sales.idempotency_ttl":  24 * time.Hour,
	"sales.delivery_stream":  "pos:delivery:requests",
	"sales.delivery_max_len": 0,

	"telemetry.enabled":                 false,
	"telemetry.collector_endpoint":      "localhost:4317",
	"telemetry.sampling_ratio":          1.0,
	"telemetry.service_name":            "pos-engine",
	"telemetry.insecure":                false,
	"telemetry.metrics_enabled":         false,
	"telemetry.metrics_interval":        time.Minute,
	"telemetry.logs_enabled":            false,
	"telemetry.db_trace_enabled":        false,
	"telemetry.db_log_full_sql":         false,
	"telemetry.db_slow_query_threshold": 200 * time.Millisecond,

	"profiling.enabled":             false,
	"profiling.server_address":      "",
	"profiling.application_name":    "",
	"profiling.basic_auth_user":     "",
	"profiling.basic_auth_password": "",
}

// Load reads config.toml from ., ./backend or /app if present, then applies
// POS_ environment variables (POS_DATABASE_PASSWORD sets database.password).
func Load() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")
	v.AddConfigPath("/app")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix("POS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.Database.Driver = strings.ToLower(c.Database.Driver)
	c.Sales.Currency = strings.ToUpper(c.Sales.Currency)
	if c.Profiling.ApplicationName == "" {
		c.Profiling.ApplicationName = c.Telemetry.ServiceName
	}
}

func (c *Config) validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	db := c.Database
	check(db.Driver == DriverPostgres || db.Driver == DriverSQLite || db.Driver == DriverMemory,
		"database.driver must be one of postgres, sqlite, memory, got %q", db.Driver)
	check(db.MaxOpenConns > 0, "database.max_open_conns must be positive")
	check(db.MaxIdleConns >= 0, "database.max_idle_conns cannot be negative")
	check(db.MaxIdleConns <= db.MaxOpenConns,
		"database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)", db.MaxIdleConns, db.MaxOpenConns)
	check(len(c.Sales.Currency) == 3, "sales.currency must be a 3-letter code, got %q", c.Sales.Currency)
	check(c.Event.MaxRetries >= 0, "event.max_retries cannot be negative")
	for i, p := range c.Sales.SeedProducts {
		_, idErr := uuid.Parse(p.ID)
		_, tenantErr := uuid.Parse(p.TenantID)
		price, priceErr := decimal.NewFromString(p.Price)
		check(idErr == nil && tenantErr == nil, "sales.seed_products[%d]: id and tenant_id must be UUIDs", i)
		check(strings.TrimSpace(p.Name) != "", "sales.seed_products[%d]: name is required", i)
		check(priceErr == nil && !price.IsNegative(), "sales.seed_products[%d]: price must be a non-negative decimal, got %q", i, p.Price)
		check(p.Quantity >= 0, "sales.seed_products[%d]: quantity cannot be negative", i)
	}
	check(c.Telemetry.SamplingRatio >= 0 && c.Telemetry.SamplingRatio <= 1,
		"telemetry.sampling_ratio must be between 0.0 and 1.0, got %g", c.Telemetry.SamplingRatio)

	if c.App.Env == "production" {
		check(db.Driver != DriverMemory, "database.driver=memory is not allowed in production")
		if db.Driver == DriverPostgres {
			check(db.Password != "", "database.password is required in production")
			check(db.SSLMode != "disable", "database.sslmode cannot be 'disable' in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			check(origin != "*", "http.cors_allow_origins cannot be '*' in production")
		}
		check(!c.Telemetry.DBLogFullSQL, "telemetry.db_log_full_sql must be false in production")
	}
	return errors.Join(errs...)
}
