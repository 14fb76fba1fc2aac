package logger

import (
	"strings"

	"github.com/erp/pos/internal/infrastructure/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const defaultTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Config selects level, encoding and destination. The zero Config logs info
// and above to stdout in console form.
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json or console
	Output     string // stdout, stderr or a file path
	TimeFormat string
}

// FromAppConfig maps the [log] section
func FromAppConfig(cfg config.LogConfig) *Config {
	return &Config{Level: cfg.Level, Format: cfg.Format, Output: cfg.Output, TimeFormat: defaultTimeFormat}
}

// New builds the process logger. extra cores, such as the OTLP bridge, receive
// every entry as well.
func New(cfg *Config, extra ...zapcore.Core) (*zap.Logger, error) {
	output := cfg.Output
	if output == "" {
		output = "stdout"
	}
	zc := zap.Config{
		Level:            zap.NewAtomicLevelAt(parseLevel(cfg.Level)),
		Encoding:         "json",
		EncoderConfig:    encoderConfig(cfg),
		OutputPaths:      []string{output},
		ErrorOutputPaths: []string{"stderr"},
	}
	if cfg.Format != "json" {
		zc.Encoding = "console"
	}

	opts := []zap.Option{zap.AddStacktrace(zapcore.ErrorLevel)}
	if len(extra) > 0 {
		opts = append(opts, zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(append([]zapcore.Core{core}, extra...)...)
		}))
	}
	return zc.Build(opts...)
}

// parseLevel falls back to info for anything zap does not know
func parseLevel(level string) zapcore.Level {
	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

func encoderConfig(cfg *Config) zapcore.EncoderConfig {
	layout := cfg.TimeFormat
	if layout == "" {
		layout = defaultTimeFormat
	}
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "time"
	ec.MessageKey = "msg"
	ec.EncodeTime = zapcore.TimeEncoderOfLayout(layout)
	ec.EncodeDuration = zapcore.MillisDurationEncoder
	if cfg.Format != "json" {
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return ec
}
