package instrumentation

import (
	"context"
	"log/slog"
	"time"
)

// ToolInvocation captures all information about a tool invocation for audit
// logging. Mutating tools always produce an audit record; permanent deletes
// additionally carry the affected message count.
//
// # Privacy Considerations
//
// The Owner field may contain PII (an email address or API client id). When
// logging, consider:
//   - Using OwnerDomain() for metrics and general logs
//   - Only logging the full owner in audit-specific log streams
//   - Ensuring audit logs have appropriate access controls
type ToolInvocation struct {
	// Tool name
	Tool string

	// Caller identity and session
	Owner       string
	SessionHash string

	// ToolResultID correlates the audit record with the response envelope.
	ToolResultID string

	// Destructive marks operations that remove mail (trash, permanent
	// delete).
	Destructive bool

	// MessageCount is the number of messages affected, when known.
	MessageCount int

	// Execution details
	StartTime time.Time
	Duration  time.Duration
	Success   bool
	ErrorCode string
	Error     string

	// Tracing context
	TraceID string
	SpanID  string
}

// OwnerDomain returns the domain portion of the owner identity for
// lower-cardinality logging.
func (ti *ToolInvocation) OwnerDomain() string {
	return ExtractUserDomain(ti.Owner)
}

// Status returns "success" or "error" based on the Success field.
func (ti *ToolInvocation) Status() string {
	if ti.Success {
		return StatusSuccess
	}
	return StatusError
}

// LogAttrs returns slog attributes for structured logging with
// cardinality-controlled values. For full audit logging use LogAuditAttrs.
func (ti *ToolInvocation) LogAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("tool", ti.Tool),
		slog.String("owner_domain", ti.OwnerDomain()),
		slog.Duration("duration", ti.Duration),
		slog.Bool("success", ti.Success),
	}

	if ti.ToolResultID != "" {
		attrs = append(attrs, slog.String("tool_result_id", ti.ToolResultID))
	}
	if ti.SessionHash != "" {
		attrs = append(attrs, slog.String("session_hash", ti.SessionHash))
	}
	if ti.Destructive {
		attrs = append(attrs, slog.Bool("destructive", true))
	}
	if ti.MessageCount > 0 {
		attrs = append(attrs, slog.Int("message_count", ti.MessageCount))
	}
	if ti.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", ti.TraceID))
	}
	if ti.ErrorCode != "" {
		attrs = append(attrs, slog.String("error_code", ti.ErrorCode))
	}
	if ti.Error != "" {
		attrs = append(attrs, slog.String("error", ti.Error))
	}

	return attrs
}

// LogAuditAttrs returns slog attributes for full audit logging, including
// the raw owner identity.
//
// # Security Warning
//
// This method includes PII. Ensure audit logs are:
//   - Stored securely with appropriate access controls
//   - Not exposed to general monitoring dashboards
//   - Retained according to compliance requirements
func (ti *ToolInvocation) LogAuditAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("tool", ti.Tool),
		slog.String("owner", ti.Owner),
		slog.Duration("duration", ti.Duration),
		slog.Bool("success", ti.Success),
	}

	if ti.ToolResultID != "" {
		attrs = append(attrs, slog.String("tool_result_id", ti.ToolResultID))
	}
	if ti.SessionHash != "" {
		attrs = append(attrs, slog.String("session_hash", ti.SessionHash))
	}
	if ti.Destructive {
		attrs = append(attrs, slog.Bool("destructive", true))
	}
	if ti.MessageCount > 0 {
		attrs = append(attrs, slog.Int("message_count", ti.MessageCount))
	}
	if ti.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", ti.TraceID))
	}
	if ti.SpanID != "" {
		attrs = append(attrs, slog.String("span_id", ti.SpanID))
	}
	if ti.ErrorCode != "" {
		attrs = append(attrs, slog.String("error_code", ti.ErrorCode))
	}
	if ti.Error != "" {
		attrs = append(attrs, slog.String("error", ti.Error))
	}

	return attrs
}

// NewToolInvocation creates a new ToolInvocation with timing started.
// Call Complete() when the tool operation finishes.
func NewToolInvocation(tool string) *ToolInvocation {
	return &ToolInvocation{
		Tool:      tool,
		StartTime: time.Now(),
	}
}

// WithOwner sets the caller identity.
func (ti *ToolInvocation) WithOwner(owner string) *ToolInvocation {
	ti.Owner = owner
	return ti
}

// WithSession sets the anonymized session identifier.
func (ti *ToolInvocation) WithSession(sessionHash string) *ToolInvocation {
	ti.SessionHash = sessionHash
	return ti
}

// WithResultID sets the tool result id of the response envelope.
func (ti *ToolInvocation) WithResultID(id string) *ToolInvocation {
	ti.ToolResultID = id
	return ti
}

// WithDestructive marks the invocation as destructive and records how many
// messages it touched.
func (ti *ToolInvocation) WithDestructive(messageCount int) *ToolInvocation {
	ti.Destructive = true
	ti.MessageCount = messageCount
	return ti
}

// WithSpanContext extracts trace context from the current span.
func (ti *ToolInvocation) WithSpanContext(ctx context.Context) *ToolInvocation {
	ti.TraceID = GetTraceID(ctx)
	ti.SpanID = GetSpanID(ctx)
	return ti
}

// Complete marks the invocation as completed and calculates duration.
// Returns the same ToolInvocation for method chaining.
func (ti *ToolInvocation) Complete(success bool, errorCode string, err error) *ToolInvocation {
	ti.Duration = time.Since(ti.StartTime)
	ti.Success = success
	ti.ErrorCode = errorCode
	if err != nil {
		ti.Error = err.Error()
	}
	return ti
}

// CompleteSuccess marks the invocation as successful.
func (ti *ToolInvocation) CompleteSuccess() *ToolInvocation {
	return ti.Complete(true, "", nil)
}

// AuditLogger provides structured audit logging for tool invocations.
// It wraps slog.Logger with convenience methods for logging tool operations.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLogger creates a new AuditLogger with the given slog.Logger.
// By default, PII is not included in logs.
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger,
		includePII: false,
		enabled:    true,
	}
}

// NewAuditLoggerWithConfig creates a new AuditLogger with the given configuration.
func NewAuditLoggerWithConfig(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger,
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// SetIncludePII sets whether to include the raw owner identity in audit logs.
func (al *AuditLogger) SetIncludePII(include bool) {
	al.includePII = include
}

// SetEnabled sets whether audit logging is enabled.
func (al *AuditLogger) SetEnabled(enabled bool) {
	al.enabled = enabled
}

// LogToolInvocation logs a tool invocation using the standard log
// attributes. If the logger is configured with IncludePII, the raw owner is
// logged; otherwise only its domain.
func (al *AuditLogger) LogToolInvocation(ti *ToolInvocation) {
	if !al.enabled {
		return
	}

	var attrs []slog.Attr
	if al.includePII {
		attrs = ti.LogAuditAttrs()
	} else {
		attrs = ti.LogAttrs()
	}

	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}

	if ti.Success {
		al.logger.Info("tool_executed", args...)
	} else {
		al.logger.Warn("tool_failed", args...)
	}
}

// LogDestructiveOperation logs a destructive mailbox operation with full
// audit details. These records are emitted regardless of the IncludePII
// setting so that irreversible deletions always leave a trail.
func (al *AuditLogger) LogDestructiveOperation(ti *ToolInvocation) {
	if !al.enabled {
		return
	}

	attrs := ti.LogAuditAttrs()
	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}

	al.logger.Warn("destructive_operation", args...)
}
