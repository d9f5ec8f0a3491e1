package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/damienmail/damien-mcp-server/internal/adapter"
	"github.com/damienmail/damien-mcp-server/internal/instrumentation"
	"github.com/damienmail/damien-mcp-server/internal/logging"
	"github.com/damienmail/damien-mcp-server/internal/registry"
	"github.com/damienmail/damien-mcp-server/internal/session"
	"github.com/damienmail/damien-mcp-server/internal/validate"
)

const (
	// DefaultTimeout bounds one backend call.
	DefaultTimeout = 30 * time.Second

	// DefaultSessionTTL is how long session context outlives its last write.
	DefaultSessionTTL = 24 * time.Hour

	// maxRetries is the number of extra attempts for read-only tools on
	// transient backend failures.
	maxRetries = 2
)

// Backend is the set of operations tools execute against. *adapter.Adapter
// implements it.
type Backend interface {
	ListEmails(ctx context.Context, query string, maxResults int, pageToken string) (map[string]any, error)
	GetEmailDetails(ctx context.Context, messageID, format string) (map[string]any, error)
	TrashEmails(ctx context.Context, messageIDs []string) (map[string]any, error)
	LabelEmails(ctx context.Context, messageIDs, addNames, removeNames []string) (map[string]any, error)
	MarkEmails(ctx context.Context, messageIDs []string, markAs string) (map[string]any, error)
	DeleteEmailsPermanently(ctx context.Context, messageIDs []string) (map[string]any, error)
	ApplyRules(ctx context.Context, params adapter.ApplyParams) (map[string]any, error)
	ListRules(ctx context.Context) (map[string]any, error)
	AddRule(ctx context.Context, definition map[string]any) (map[string]any, error)
	DeleteRule(ctx context.Context, identifier string) (map[string]any, error)
}

// Invocation is one tool call as received from a transport.
type Invocation struct {
	ToolName  string
	Input     map[string]any
	Owner     string
	SessionID string
}

// ExecutionResult is the envelope every invocation resolves to. Output is
// populated only on success; error results carry error_message and
// error_code instead.
type ExecutionResult struct {
	ToolResultID string         `json:"tool_result_id"`
	IsError      bool           `json:"is_error"`
	Output       map[string]any `json:"output,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	ErrorCode    string         `json:"error_code,omitempty"`
}

// Config wires a Dispatcher.
type Config struct {
	Registry   *registry.Registry
	Backend    Backend
	Sessions   session.Store
	Logger     *slog.Logger
	Metrics    *instrumentation.Metrics
	Audit      *instrumentation.AuditLogger
	Timeout    time.Duration
	SessionTTL time.Duration
}

// Dispatcher executes tool invocations.
type Dispatcher struct {
	registry   *registry.Registry
	backend    Backend
	sessions   session.Store
	logger     *slog.Logger
	metrics    *instrumentation.Metrics
	audit      *instrumentation.AuditLogger
	timeout    time.Duration
	sessionTTL time.Duration

	specs        map[string]toolSpec
	storeBackend string

	now   func() time.Time
	newID func() string
}

// New creates a dispatcher over the given registry and backend.
func New(cfg Config) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Dispatcher{
		registry:     cfg.Registry,
		backend:      cfg.Backend,
		sessions:     cfg.Sessions,
		logger:       logger,
		metrics:      cfg.Metrics,
		audit:        cfg.Audit,
		timeout:      timeout,
		sessionTTL:   ttl,
		specs:        toolSpecs(),
		storeBackend: storeBackend(cfg.Sessions),
		now:          time.Now,
		newID:        uuid.NewString,
	}
}

// storeBackend names the session store implementation for metric labels.
func storeBackend(s session.Store) string {
	if _, ok := s.(*session.ValkeyStore); ok {
		return instrumentation.BackendValkey
	}
	return instrumentation.BackendMemory
}

// Execute runs one invocation through the pipeline and always returns a
// fully populated result.
func (d *Dispatcher) Execute(ctx context.Context, inv Invocation) ExecutionResult {
	start := d.now()
	resultID := d.newID()
	logger := d.logger.With(
		logging.Tool(inv.ToolName),
		slog.String("tool_result_id", resultID),
		logging.SessionHash(inv.SessionID),
	)

	ctx, span := instrumentation.StartToolSpan(ctx, inv.ToolName)
	defer span.End()

	spec, ok := d.specs[inv.ToolName]
	if !ok {
		return d.fail(ctx, logger, start, resultID, inv,
			CodeUnknownTool, fmt.Sprintf("unknown tool: %s", inv.ToolName))
	}
	def, ok := d.registry.Get(inv.ToolName)
	if !ok {
		return d.fail(ctx, logger, start, resultID, inv,
			CodeUnknownTool, fmt.Sprintf("unknown tool: %s", inv.ToolName))
	}
	span.SetAttributes(instrumentation.NewSpanAttributeBuilder().
		WithReadOnly(spec.readOnly).
		Build()...)

	input, verr := validate.Validate(def.InputSchema, inv.Input)
	if verr != nil {
		return d.fail(ctx, logger, start, resultID, inv,
			CodeValidationError, verr.Error())
	}
	if spec.crossCheck != nil {
		if crossErr := spec.crossCheck(input); crossErr != nil {
			return d.fail(ctx, logger, start, resultID, inv,
				CodeValidationError, crossErr.Error())
		}
	}

	output, err := d.run(ctx, spec, input)
	if err != nil {
		code, message := normalize(err)
		logger.Error("Tool invocation failed",
			logging.Status(logging.StatusError),
			logging.ErrorCode(code),
			logging.Err(err))
		instrumentation.SetSpanError(span, err)
		d.record(ctx, inv, logging.StatusError, start)
		d.recordError(ctx, inv.ToolName, code)
		d.auditInvocation(ctx, inv, spec, input, resultID, start, false, code, err)
		return ExecutionResult{
			ToolResultID: resultID,
			IsError:      true,
			ErrorMessage: message,
			ErrorCode:    code,
		}
	}

	d.recordInteraction(ctx, logger, inv, resultID)

	logger.Info("Tool invocation succeeded",
		logging.Status(logging.StatusSuccess),
		slog.Duration(logging.KeyDuration, d.now().Sub(start)))
	instrumentation.SetSpanSuccess(span)
	d.record(ctx, inv, logging.StatusSuccess, start)
	d.auditInvocation(ctx, inv, spec, input, resultID, start, true, "", nil)
	return ExecutionResult{
		ToolResultID: resultID,
		Output:       output,
	}
}

// auditInvocation emits an audit record for the invocation. Destructive
// operations that succeed additionally leave a full audit trail.
func (d *Dispatcher) auditInvocation(ctx context.Context, inv Invocation, spec toolSpec, input map[string]any, resultID string, start time.Time, success bool, code string, err error) {
	if d.audit == nil {
		return
	}

	ti := instrumentation.NewToolInvocation(inv.ToolName).
		WithOwner(inv.Owner).
		WithSession(logging.AnonymizeSessionID(inv.SessionID)).
		WithResultID(resultID).
		WithSpanContext(ctx)
	ti.StartTime = start
	if spec.destructive {
		ti.WithDestructive(len(stringSliceArg(input, "message_ids")))
	}
	ti.Complete(success, code, err)

	d.audit.LogToolInvocation(ti)
	if spec.destructive && success {
		d.audit.LogDestructiveOperation(ti)
	}
}

// run executes the handler under the dispatcher deadline, retrying
// read-only tools on transient failures.
func (d *Dispatcher) run(ctx context.Context, spec toolSpec, input map[string]any) (map[string]any, error) {
	attempts := 1
	if spec.readOnly {
		attempts += maxRetries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, d.timeout)
		output, err := spec.handler(callCtx, d.backend, input)
		cancel()
		if err == nil {
			return output, nil
		}
		lastErr = err
		if !spec.readOnly || !retryable(err) {
			return nil, err
		}
		instrumentation.AddSpanEvent(trace.SpanFromContext(ctx), "retry",
			attribute.Int("attempt", attempt+1))
		d.logger.Warn("Retrying read-only tool after transient failure",
			slog.Int("attempt", attempt+1),
			logging.Err(err))
	}
	return nil, lastErr
}

// recordInteraction appends this invocation to the session context. Store
// failures are logged and swallowed.
func (d *Dispatcher) recordInteraction(ctx context.Context, logger *slog.Logger, inv Invocation, resultID string) {
	if d.sessions == nil || inv.SessionID == "" {
		return
	}

	sc, err := d.sessions.Get(ctx, inv.Owner, inv.SessionID)
	d.recordSessionOp(ctx, "get", err)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			logger.Warn("Failed to load session context", logging.Err(err))
			return
		}
		sc = session.Context{Owner: inv.Owner, SessionID: inv.SessionID}
	}

	sc = sc.Append(session.Interaction{
		ToolResultID: resultID,
		ToolName:     inv.ToolName,
		Input:        inv.Input,
		Timestamp:    d.now().UTC(),
	})
	err = d.sessions.Put(ctx, sc, d.sessionTTL)
	d.recordSessionOp(ctx, "put", err)
	if err != nil {
		logger.Warn("Failed to store session context", logging.Err(err))
	}
}

func (d *Dispatcher) fail(ctx context.Context, logger *slog.Logger, start time.Time, resultID string, inv Invocation, code, message string) ExecutionResult {
	logger.Warn("Tool invocation rejected",
		logging.Status(logging.StatusError),
		logging.ErrorCode(code))
	d.record(ctx, inv, logging.StatusError, start)
	d.recordError(ctx, inv.ToolName, code)
	return ExecutionResult{
		ToolResultID: resultID,
		IsError:      true,
		ErrorMessage: message,
		ErrorCode:    code,
	}
}

func (d *Dispatcher) record(ctx context.Context, inv Invocation, status string, start time.Time) {
	if d.metrics == nil {
		return
	}
	d.metrics.RecordToolInvocationWithOwner(ctx, inv.ToolName, status, inv.Owner, d.now().Sub(start))
}

func (d *Dispatcher) recordError(ctx context.Context, tool, code string) {
	if d.metrics == nil {
		return
	}
	d.metrics.RecordToolError(ctx, tool, code)
}

// recordSessionOp counts one session store access. ErrNotFound is a normal
// read outcome, not a store failure.
func (d *Dispatcher) recordSessionOp(ctx context.Context, operation string, err error) {
	if d.metrics == nil {
		return
	}
	result := instrumentation.StatusSuccess
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		result = instrumentation.StatusError
	}
	d.metrics.RecordSessionStoreOperation(ctx, d.storeBackend, operation, result)
}
