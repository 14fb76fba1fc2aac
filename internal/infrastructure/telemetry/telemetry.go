package telemetry

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/pos/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Telemetry bundles the providers started for one process
type Telemetry struct {
	Tracer   *TracerProvider
	Meter    *MeterProvider
	Logs     *LoggerProvider
	Profiler *Profiler
}

// Setup starts profiling first so span profiles can attach to the tracer.
// Providers started before a failure are shut down again.
func Setup(ctx context.Context, telemetryCfg config.TelemetryConfig, profilingCfg config.ProfilingConfig, logger *zap.Logger) (*Telemetry, error) {
	t := &Telemetry{}

	profiler, err := NewProfiler(profilingCfg, logger)
	if err != nil {
		return nil, err
	}
	t.Profiler = profiler

	if t.Tracer, err = NewTracerProvider(ctx, telemetryCfg, logger); err != nil {
		return nil, errors.Join(err, t.Shutdown(ctx))
	}
	if profiler.IsEnabled() {
		t.Tracer.EnableSpanProfiles()
	}

	if t.Meter, err = NewMeterProvider(ctx, telemetryCfg, logger); err != nil {
		return nil, errors.Join(err, t.Shutdown(ctx))
	}
	if t.Logs, err = NewLoggerProvider(ctx, telemetryCfg, logger); err != nil {
		return nil, errors.Join(err, t.Shutdown(ctx))
	}
	return t, nil
}

// NewSaleMetrics creates sale instruments on the bundle's meter
func (t *Telemetry) NewSaleMetrics() (*SaleMetrics, error) {
	if t.Meter == nil {
		return nil, fmt.Errorf("meter provider not initialized")
	}
	return NewSaleMetrics(t.Meter.Meter(InstrumentationName))
}

// Shutdown stops every started provider in reverse order and joins their errors
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	if t.Logs != nil {
		errs = append(errs, t.Logs.Shutdown(ctx))
	}
	if t.Meter != nil {
		errs = append(errs, t.Meter.Shutdown(ctx))
	}
	if t.Tracer != nil {
		errs = append(errs, t.Tracer.Shutdown(ctx))
	}
	if t.Profiler != nil {
		errs = append(errs, t.Profiler.Stop())
	}
	return errors.Join(errs...)
}
