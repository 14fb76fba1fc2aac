package logger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DefaultSlowStatement is the duration above which a statement is logged as slow
const DefaultSlowStatement = 200 * time.Millisecond

// GormLogger routes GORM output to zap. Statements are logged at debug level,
// slow ones at warn and failed ones at error, all with the request fields from ctx.
type GormLogger struct {
	logger   *zap.Logger
	level    gormlogger.LogLevel
	slow     time.Duration
	expected []error
}

// GormLoggerOption configures a GormLogger
type GormLoggerOption func(*GormLogger)

// WithSlowThreshold sets the slow statement threshold, zero turns slow warnings off
func WithSlowThreshold(d time.Duration) GormLoggerOption {
	return func(l *GormLogger) { l.slow = d }
}

// WithExpectedErrors replaces the errors that are normal query outcomes and not logged.
// The default is gorm.ErrRecordNotFound and gorm.ErrDuplicatedKey, which the
// repositories translate to NOT_FOUND and a sale number retry.
func WithExpectedErrors(errs ...error) GormLoggerOption {
	return func(l *GormLogger) { l.expected = errs }
}

// NewGormLogger creates a GormLogger writing to a "gorm" child of zapLogger
func NewGormLogger(zapLogger *zap.Logger, level gormlogger.LogLevel, opts ...GormLoggerOption) *GormLogger {
	l := &GormLogger{
		logger:   zapLogger.Named("gorm"),
		level:    level,
		slow:     DefaultSlowStatement,
		expected: []error{gorm.ErrRecordNotFound, gorm.ErrDuplicatedKey},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Info, msg, data)
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Warn, msg, data)
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Error, msg, data)
}

func (l *GormLogger) printf(ctx context.Context, at gormlogger.LogLevel, msg string, data []any) {
	if l.level < at {
		return
	}
	log := WithLogger(ctx, l.logger)
	text := fmt.Sprintf(msg, data...)
	switch at {
	case gormlogger.Error:
		log.Error(text)
	case gormlogger.Warn:
		log.Warn(text)
	default:
		log.Info(text)
	}
}

// Trace logs one executed statement
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	failed := err != nil && !l.isExpected(err)
	slow := l.slow > 0 && elapsed > l.slow

	switch {
	case failed && l.level >= gormlogger.Error:
	case slow && l.level >= gormlogger.Warn:
	case l.level >= gormlogger.Info:
	default:
		return
	}

	sql, rows := fc()
	fields := []zap.Field{
		zap.String("statement", statementKind(sql)),
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", sql),
	}
	log := WithLogger(ctx, l.logger)
	switch {
	case failed && l.level >= gormlogger.Error:
		log.Error("SQL statement failed", append(fields, zap.Error(err))...)
	case slow && l.level >= gormlogger.Warn:
		log.Warn("Slow SQL statement", append(fields, zap.Duration("threshold", l.slow))...)
	default:
		log.Debug("SQL statement", fields...)
	}
}

func (l *GormLogger) isExpected(err error) bool {
	for _, e := range l.expected {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

// statementKind returns the leading keyword of sql in upper case, such as SELECT or UPDATE
func statementKind(sql string) string {
	word, _, _ := strings.Cut(strings.TrimSpace(sql), " ")
	return strings.ToUpper(word)
}

// MapGormLogLevel maps a [log] level to a GORM level. debug and info show every
// statement, anything unknown shows slow and failed ones.
func MapGormLogLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "debug", "info":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

var _ gormlogger.Interface = (*GormLogger)(nil)
