package telemetry

import (
	"context"
	"fmt"

	"github.com/erp/pos/internal/infrastructure/config"
	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggerProvider exports zap entries as OTLP log records
type LoggerProvider struct {
	sdk         *sdklog.LoggerProvider
	serviceName string
	logger      *zap.Logger
}

// NewLoggerProvider batches records to the collector when telemetry.enabled and
// telemetry.logs_enabled are both set
func NewLoggerProvider(ctx context.Context, cfg config.TelemetryConfig, logger *zap.Logger) (*LoggerProvider, error) {
	lp := &LoggerProvider{serviceName: cfg.ServiceName, logger: logger.Named("logs")}
	if !cfg.Enabled || !cfg.LogsEnabled {
		return lp, nil
	}

	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(cfg.CollectorEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	}
	exporter, err := otlploggrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create OTLP log exporter: %w", err)
	}
	res, err := newResource(cfg.ServiceName)
	if err != nil {
		return nil, err
	}

	lp.sdk = sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	)
	global.SetLoggerProvider(lp.sdk)
	lp.logger.Info("Exporting logs", zap.String("endpoint", cfg.CollectorEndpoint))
	return lp, nil
}

func (lp *LoggerProvider) IsEnabled() bool { return lp.sdk != nil }

// ZapCore forwards entries at or above level. It is a no-op core while export is off.
func (lp *LoggerProvider) ZapCore(level zapcore.Level) zapcore.Core {
	if lp.sdk == nil {
		return zapcore.NewNopCore()
	}
	return atLeast(otelzap.NewCore(lp.serviceName, otelzap.WithLoggerProvider(lp.sdk)), level)
}

// atLeast raises the minimum level of core, which otelzap leaves to the provider
func atLeast(core zapcore.Core, level zapcore.Level) zapcore.Core {
	raised, err := zapcore.NewIncreaseLevelCore(core, level)
	if err != nil {
		// core already drops everything below level
		return core
	}
	return raised
}

// BridgeLogger returns base with its entries also sent to the collector.
// base itself comes back while export is off.
func (lp *LoggerProvider) BridgeLogger(base *zap.Logger) *zap.Logger {
	if lp.sdk == nil {
		return base
	}
	exported := lp.ZapCore(base.Level())
	return base.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, exported)
	}))
}

// Shutdown flushes batched records
func (lp *LoggerProvider) Shutdown(ctx context.Context) error {
	if lp.sdk == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, traceFlushTimeout)
	defer cancel()
	if err := lp.sdk.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown logger provider: %w", err)
	}
	return nil
}
