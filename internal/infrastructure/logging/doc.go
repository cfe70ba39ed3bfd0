// Package logging provides structured logging using uber/zap.
//
// Two modes are available:
//   - Production: JSON output for log collectors
//   - Development: colored console output
//
// The level comes from LOG_LEVEL; an unknown level falls back to info.
//
// Example Usage:
//
//	logger := logging.NewFromLevel(cfg.Logging.Level, cfg.Logging.Development)
//	logger.Info("Server starting", zap.String("addr", cfg.Addr()))
//	logger.Error("Fetch failed", zap.String("query_key", key), zap.Error(err))
package logging
