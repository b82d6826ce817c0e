package auth

import (
	"context"
	"time"

	gormlogger "gorm.io/gorm/logger"

	"github.com/CNHLAIA/XHS-Scraper/pkg/logger"
)

// GormLogger routes GORM's SQL logging into the application logger
type GormLogger struct {
	logger.Logger
	LogLevel gormlogger.LogLevel
}

// NewGormLogger creates a GormLogger that only reports warnings and errors
func NewGormLogger(l logger.Logger) *GormLogger {
	return &GormLogger{Logger: l, LogLevel: gormlogger.Warn}
}

// LogMode returns a copy at the given level
func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	c := *l
	c.LogLevel = level
	return &c
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= gormlogger.Info {
		l.Logger.InfoWithFields(msg, map[string]interface{}{"data": data})
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= gormlogger.Warn {
		l.Logger.WarnWithFields(msg, map[string]interface{}{"data": data})
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= gormlogger.Error {
		l.Logger.ErrorWithFields(msg, map[string]interface{}{"data": data})
	}
}

// Trace logs one SQL statement
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := map[string]interface{}{
		"sql":     sql,
		"rows":    rows,
		"time_ms": float64(elapsed.Nanoseconds()) / 1e6,
	}

	switch {
	case err != nil && l.LogLevel >= gormlogger.Error:
		l.Logger.WithError(err).ErrorWithFields("SQL error", fields)
	case elapsed > time.Second && l.LogLevel >= gormlogger.Warn:
		l.Logger.WarnWithFields("Slow SQL query", fields)
	case l.LogLevel == gormlogger.Info:
		l.Logger.DebugWithFields("SQL executed", fields)
	}
}
