// Package logger provides a structured logging interface for the XHS scraper.
//
// It wraps zerolog with:
// - Multiple log levels (Debug, Info, Warn, Error, Fatal)
// - Structured logging with fields
// - Colored console output on stderr
// - Optional JSON file output rotated by lumberjack
// - A global logger for the CLI and injectable loggers for library code
//
// Basic Usage:
//
//	cfg := &config.LoggingConfig{
//	    Level:   "debug",
//	    File:    "logs/xhs.log",
//	    MaxSize: 10,
//	}
//	if err := logger.Initialize(cfg); err != nil {
//	    return err
//	}
//
//	log := logger.GetLogger().WithField("component", "scraper")
//	log.InfoWithFields("Fetched comments", map[string]interface{}{
//	    "note_id": noteID,
//	    "count":   len(comments),
//	})
//
// Tests inject NewNopLogger or NewTestLogger instead.
package logger
