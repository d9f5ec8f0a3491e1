package instrumentation

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func TestToolInvocationComplete(t *testing.T) {
	ti := NewToolInvocation("damien_trash_emails").
		WithOwner("jane@example.com").
		WithSession("abc123").
		WithResultID("tr-1").
		WithDestructive(3)

	ti.Complete(false, "GMAIL_API_ERROR", errors.New("boom"))

	assert.Equal(t, StatusError, ti.Status())
	assert.Equal(t, "GMAIL_API_ERROR", ti.ErrorCode)
	assert.Equal(t, "boom", ti.Error)
	assert.True(t, ti.Destructive)
	assert.Equal(t, 3, ti.MessageCount)
	assert.Equal(t, "example.com", ti.OwnerDomain())
}

func TestLogToolInvocationHidesPIIByDefault(t *testing.T) {
	logger, buf := captureLogger()
	al := NewAuditLogger(logger)

	ti := NewToolInvocation("damien_list_emails").
		WithOwner("jane@example.com").
		CompleteSuccess()
	al.LogToolInvocation(ti)

	out := buf.String()
	assert.Contains(t, out, "tool_executed")
	assert.Contains(t, out, "example.com")
	assert.NotContains(t, out, "jane@example.com")
}

func TestLogToolInvocationWithPII(t *testing.T) {
	logger, buf := captureLogger()
	al := NewAuditLoggerWithConfig(logger, AuditLoggingConfig{Enabled: true, IncludePII: true})

	ti := NewToolInvocation("damien_list_emails").
		WithOwner("jane@example.com").
		CompleteSuccess()
	al.LogToolInvocation(ti)

	assert.Contains(t, buf.String(), "jane@example.com")
}

func TestLogToolInvocationFailureLogsWarn(t *testing.T) {
	logger, buf := captureLogger()
	al := NewAuditLogger(logger)

	ti := NewToolInvocation("damien_add_rule").
		Complete(false, "VALIDATION_ERROR", errors.New("invalid rule"))
	al.LogToolInvocation(ti)

	out := buf.String()
	assert.Contains(t, out, "tool_failed")
	assert.Contains(t, out, "VALIDATION_ERROR")
	assert.Contains(t, out, "level=WARN")
}

func TestLogDestructiveOperation(t *testing.T) {
	logger, buf := captureLogger()
	al := NewAuditLogger(logger)

	ti := NewToolInvocation("damien_delete_emails_permanently").
		WithOwner("jane@example.com").
		WithDestructive(5).
		CompleteSuccess()
	al.LogDestructiveOperation(ti)

	out := buf.String()
	assert.Contains(t, out, "destructive_operation")
	assert.Contains(t, out, "message_count=5")
	// Destructive records always carry the raw owner.
	assert.Contains(t, out, "jane@example.com")
}

func TestAuditLoggerDisabled(t *testing.T) {
	logger, buf := captureLogger()
	al := NewAuditLoggerWithConfig(logger, AuditLoggingConfig{Enabled: false})

	al.LogToolInvocation(NewToolInvocation("damien_list_emails").CompleteSuccess())
	al.LogDestructiveOperation(NewToolInvocation("damien_trash_emails").WithDestructive(1).CompleteSuccess())

	require.Empty(t, strings.TrimSpace(buf.String()))
}

func TestExtractUserDomain(t *testing.T) {
	tests := []struct {
		email string
		want  string
	}{
		{"jane@example.com", "example.com"},
		{"user@gmail.com", "gmail.com"},
		{"invalid", "unknown"},
		{"", "unknown"},
		{"trailing@", "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractUserDomain(tt.email), tt.email)
	}
}
