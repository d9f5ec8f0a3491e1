// Package logging provides structured logging helpers built on log/slog.
//
// It defines canonical attribute keys used across the server so log lines
// stay queryable (tool, session_hash, error_code, duration), plus helpers
// that keep personally identifiable information out of log output: session
// identifiers and user ids are hashed before they are logged.
package logging
