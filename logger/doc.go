// Package logger provides structured logging on top of zerolog.
//
// Loggers are scoped with WithComponent and emit fields passed as maps, so
// call sites stay independent of the zerolog event API:
//
//	log := logger.WithComponent("engine")
//	log.Info("task finished", logger.Fields("task", key, "duration_ms", 12))
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"   # or console
package logger
