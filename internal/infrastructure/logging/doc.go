// Package logging provides structured logging using uber/zap.
//
// This package offers two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Each subsystem receives a named child logger so that arbitration,
// timer and storage events can be filtered independently:
//
//	logger := logging.FromSettings(cfg.Logging.Level, cfg.Logging.Development)
//	auth := authority.New(deps, authority.WithLogger(logger.Component("authority")))
//	logger.Info("Server starting", zap.String("port", "8000"))
package logging
