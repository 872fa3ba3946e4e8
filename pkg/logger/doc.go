// Package logger provides structured logging for the migration pipeline.
//
// It wraps the zerolog library behind a small interface with support for:
// - Multiple log levels (Debug, Info, Warn, Error, Fatal)
// - Structured logging with fields
// - Pretty console output with colors
// - Optional append-only log file
// - Global logger instance for easy access
//
// Basic Usage:
//
//	import "typeporter/pkg/logger"
//
//	// Initialize the global logger
//	cfg := &config.LoggingConfig{
//	    Level: "info",
//	    File: "typeporter.log",
//	}
//	err := logger.Initialize(cfg)
//
//	// Use the global logger
//	logger.Info("archive started")
//	logger.WithField("slug", "my-first-post").Info("document archived")
//	logger.WithError(err).Error("asset fetch failed")
//
// Advanced Usage:
//
//	// Create a logger instance with fields
//	log := logger.GetLogger().
//	    WithField("component", "archiver").
//	    WithField("worker_id", 3)
//
//	// Use structured logging
//	log.InfoWithFields("asset stored", map[string]interface{}{
//	    "url":  assetURL,
//	    "path": localPath,
//	    "size": 1024000,
//	})
//
// Source-site credentials are handled by the fetch layer and are never
// passed through the logger.
package logger
