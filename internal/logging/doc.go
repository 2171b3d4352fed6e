// Package logging provides structured logging for vesclink.
//
// This package wraps a zap logger with convenience functions for the
// patterns used across the link, the observer server and the CLI.
//
// # Log Levels
//
//   - Debug: packet hex dumps, discarded bytes, unrecognized messages
//   - Info: connections, polling state, server lifecycle
//   - Warn: dropped clients, link read errors
//   - Error: startup failures
//
// # Configuration
//
// Logging is silent unless a level is passed to Initialize or set through
// the VESCLINK_LOG_LEVEL environment variable. VESCLINK_LOG_FORMAT=json
// switches to zap's production JSON encoding for log collectors:
//
//	if err := logging.Initialize(""); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// All functions are safe for concurrent use.
package logging
