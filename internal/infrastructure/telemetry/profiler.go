package telemetry

import (
	"errors"
	"fmt"
	"os"

	"github.com/erp/pos/internal/infrastructure/config"
	"github.com/grafana/pyroscope-go"
	"go.uber.org/zap"
)

// profileTypes adds mutex contention to the CPU and heap profiles; completions
// serialize on the stock rows
var profileTypes = []pyroscope.ProfileType{
	pyroscope.ProfileCPU,
	pyroscope.ProfileAllocObjects,
	pyroscope.ProfileAllocSpace,
	pyroscope.ProfileInuseObjects,
	pyroscope.ProfileInuseSpace,
	pyroscope.ProfileGoroutines,
	pyroscope.ProfileMutexCount,
	pyroscope.ProfileMutexDuration,
}

// Profiler pushes continuous profiles to Pyroscope. The zero Profiler is idle.
type Profiler struct {
	session *pyroscope.Profiler
	logger  *zap.Logger
}

func NewProfiler(cfg config.ProfilingConfig, logger *zap.Logger) (*Profiler, error) {
	p := &Profiler{logger: logger.Named("profiling")}
	if !cfg.Enabled {
		return p, nil
	}
	if cfg.ServerAddress == "" {
		return nil, errors.New("profiling.enabled is set but profiling.server_address is empty")
	}

	session, err := pyroscope.Start(pyroscope.Config{
		ApplicationName:   cfg.ApplicationName,
		ServerAddress:     cfg.ServerAddress,
		BasicAuthUser:     cfg.BasicAuthUser,
		BasicAuthPassword: cfg.BasicAuthPassword,
		Logger:            p.logger.Sugar(),
		Tags:              hostTags(),
		ProfileTypes:      profileTypes,
	})
	if err != nil {
		return nil, fmt.Errorf("start pyroscope: %w", err)
	}
	p.session = session

	p.logger.Info("Pushing profiles",
		zap.String("server", cfg.ServerAddress),
		zap.String("application", cfg.ApplicationName),
	)
	return p, nil
}

// hostTags labels profiles with the host and, under Kubernetes, the pod
func hostTags() map[string]string {
	tags := make(map[string]string, 2)
	if host, err := os.Hostname(); err == nil {
		tags["hostname"] = host
	}
	if pod := os.Getenv("POD_NAME"); pod != "" {
		tags["pod"] = pod
	}
	return tags
}

func (p *Profiler) IsEnabled() bool { return p.session != nil }

// Stop uploads the last profiles
func (p *Profiler) Stop() error {
	if p.session == nil {
		return nil
	}
	if err := p.session.Stop(); err != nil {
		return fmt.Errorf("stop pyroscope: %w", err)
	}
	return nil
}
