package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogRequest logs the outcome of one API call at a level matching its status
func LogRequest(l Logger, method, path string, statusCode int, duration time.Duration) {
	fields := map[string]interface{}{
		"method":      method,
		"path":        path,
		"status_code": statusCode,
		"duration_ms": duration.Milliseconds(),
	}

	switch {
	case statusCode >= 200 && statusCode < 300:
		l.DebugWithFields("API request completed", fields)
	case statusCode >= 500:
		l.ErrorWithFields("API request server error", fields)
	default:
		l.WarnWithFields("API request failed", fields)
	}
}

// LogPage logs pagination progress
func LogPage(l Logger, operation string, page, items int, cursor string) {
	l.DebugWithFields("Fetched page", map[string]interface{}{
		"operation": operation,
		"page":      page,
		"items":     items,
		"cursor":    cursor,
	})
}

// LogDownload logs media download outcomes
func LogDownload(l Logger, noteID, url, path string, err error) {
	entry := l.WithFields(map[string]interface{}{
		"note_id": noteID,
		"url":     url,
	})
	if err != nil {
		entry.WithError(err).Warn("Media download failed, skipping")
		return
	}
	entry.WithField("path", path).Debug("Media saved")
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger                               { return nil }
