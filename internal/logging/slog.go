package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
)

// Common log attribute keys for consistent naming across the codebase.
const (
	KeyTool        = "tool"
	KeyErrorCode   = "error_code"
	KeyError       = "error"
	KeyStatus      = "status"
	KeyDuration    = "duration"
	KeySessionHash = "session_hash"
	KeyUserHash    = "user_hash"
	KeyTransport   = "transport"
)

// Status values for consistent logging.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Setup configures the default slog logger. When debug is true the level is
// lowered to Debug. Output goes to stderr so stdout stays free for the MCP
// stdio transport.
func Setup(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// Tool returns a slog attribute for the tool name.
func Tool(tool string) slog.Attr {
	return slog.String(KeyTool, tool)
}

// ErrorCode returns a slog attribute for a normalized error code.
func ErrorCode(code string) slog.Attr {
	return slog.String(KeyErrorCode, code)
}

// Status returns a slog attribute for the status.
func Status(status string) slog.Attr {
	return slog.String(KeyStatus, status)
}

// Err returns a slog attribute for an error.
// If err is nil, returns an empty Group attribute that will be omitted from
// output, so Err(maybeNilErr) is always safe to pass.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// anonymize returns a short hash of the value prefixed with the given tag.
func anonymize(tag, value string) string {
	if value == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(value))
	return tag + ":" + hex.EncodeToString(hash[:8])
}

// AnonymizeSessionID returns a hashed representation of a session id for
// logging. This allows correlating log entries across invocations of the
// same session without exposing the caller-supplied token.
func AnonymizeSessionID(sessionID string) string {
	return anonymize("session", sessionID)
}

// SessionHash returns a slog attribute with the anonymized session id.
func SessionHash(sessionID string) slog.Attr {
	return slog.String(KeySessionHash, AnonymizeSessionID(sessionID))
}

// UserHash returns a slog attribute with the anonymized user id.
func UserHash(userID string) slog.Attr {
	return slog.String(KeyUserHash, anonymize("user", userID))
}

// SanitizeKey returns a masked version of a secret for logging.
// It returns a length indicator without exposing any content, as even
// partial prefixes can aid attacks.
func SanitizeKey(key string) string {
	if key == "" {
		return "<empty>"
	}
	return fmt.Sprintf("[secret:%d chars]", len(key))
}
