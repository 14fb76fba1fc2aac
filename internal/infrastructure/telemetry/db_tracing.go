package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/pos/internal/infrastructure/config"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type contextKey string

const queryStartTimeKey contextKey = "otel_query_start_time"

// DBTracingPlugin registers otelgorm and flags slow statements on their spans
type DBTracingPlugin struct {
	enabled         bool
	dbSystem        string
	fullSQL         bool
	slowQueryThresh time.Duration
	logger          *zap.Logger
}

// NewDBTracingPlugin builds the plugin from telemetry settings.
// dbSystem names the backend on spans, e.g. "postgresql" or "sqlite".
func NewDBTracingPlugin(cfg config.TelemetryConfig, dbSystem string, logger *zap.Logger) *DBTracingPlugin {
	return &DBTracingPlugin{
		enabled:         cfg.Enabled && cfg.DBTraceEnabled,
		dbSystem:        dbSystem,
		fullSQL:         cfg.DBLogFullSQL,
		slowQueryThresh: cfg.DBSlowQueryThresh,
		logger:          logger,
	}
}

// Register installs the otelgorm plugin and the timing callbacks on db
func (p *DBTracingPlugin) Register(db *gorm.DB) error {
	if !p.enabled {
		p.logger.Debug("Database tracing disabled, skipping otelgorm registration")
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(p.dbSystem)}
	if !p.fullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return fmt.Errorf("failed to register otelgorm plugin: %w", err)
	}
	if err := p.registerCallbacks(db); err != nil {
		return err
	}

	p.logger.Info("Database tracing enabled",
		zap.String("db_system", p.dbSystem),
		zap.Duration("slow_query_threshold", p.slowQueryThresh),
	)
	return nil
}

func (p *DBTracingPlugin) registerCallbacks(db *gorm.DB) error {
	cb := db.Callback()
	type hook struct {
		op     string
		before func() error
		after  func() error
	}
	hooks := []hook{
		{"create",
			func() error { return cb.Create().Before("gorm:create").Register("pos_timing:before_create", p.before) },
			func() error { return cb.Create().After("gorm:create").Register("pos_timing:after_create", p.after) }},
		{"query",
			func() error { return cb.Query().Before("gorm:query").Register("pos_timing:before_query", p.before) },
			func() error { return cb.Query().After("gorm:query").Register("pos_timing:after_query", p.after) }},
		{"update",
			func() error { return cb.Update().Before("gorm:update").Register("pos_timing:before_update", p.before) },
			func() error { return cb.Update().After("gorm:update").Register("pos_timing:after_update", p.after) }},
		{"delete",
			func() error { return cb.Delete().Before("gorm:delete").Register("pos_timing:before_delete", p.before) },
			func() error { return cb.Delete().After("gorm:delete").Register("pos_timing:after_delete", p.after) }},
		{"row",
			func() error { return cb.Row().Before("gorm:row").Register("pos_timing:before_row", p.before) },
			func() error { return cb.Row().After("gorm:row").Register("pos_timing:after_row", p.after) }},
		{"raw",
			func() error { return cb.Raw().Before("gorm:raw").Register("pos_timing:before_raw", p.before) },
			func() error { return cb.Raw().After("gorm:raw").Register("pos_timing:after_raw", p.after) }},
	}
	for _, h := range hooks {
		if err := h.before(); err != nil {
			return fmt.Errorf("failed to register before_%s callback: %w", h.op, err)
		}
		if err := h.after(); err != nil {
			return fmt.Errorf("failed to register after_%s callback: %w", h.op, err)
		}
	}
	return nil
}

func (p *DBTracingPlugin) before(db *gorm.DB) {
	if db.Statement.Context == nil {
		return
	}
	db.Statement.Context = context.WithValue(db.Statement.Context, queryStartTimeKey, time.Now())
}

// after decorates the active span with row counts, errors and slow query markers
func (p *DBTracingPlugin) after(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}

	start, ok := ctx.Value(queryStartTimeKey).(time.Time)
	if !ok || p.slowQueryThresh <= 0 {
		return
	}
	if elapsed := time.Since(start); elapsed > p.slowQueryThresh {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
		span.AddEvent("slow_query_warning", trace.WithAttributes(
			attribute.Int64("duration_ms", elapsed.Milliseconds()),
			attribute.Int64("threshold_ms", p.slowQueryThresh.Milliseconds()),
		))
	}
}
