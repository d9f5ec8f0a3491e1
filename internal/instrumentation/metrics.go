package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys - using constants for consistency and DRY
const (
	attrMethod    = "method"
	attrPath      = "path"
	attrStatus    = "status"
	attrOperation = "operation"
	attrResult    = "result"
	attrTool      = "tool"
	attrErrorCode = "error_code"
	attrOwner     = "owner"
	attrBackend   = "backend"
	attrDryRun    = "dry_run"
)

// Metrics provides methods for recording observability metrics.
type Metrics struct {
	// HTTP metrics
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	// Gmail API metrics
	gmailOperationsTotal   metric.Int64Counter
	gmailOperationDuration metric.Float64Histogram

	// Tool metrics
	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram
	toolErrorsTotal      metric.Int64Counter

	// Session store metrics
	sessionStoreOpsTotal metric.Int64Counter

	// Rule metrics
	ruleApplicationsTotal  metric.Int64Counter
	ruleActionsTakenTotal  metric.Int64Counter
	destructiveDeleteTotal metric.Int64Counter

	// detailedLabels controls whether high-cardinality labels are included
	detailedLabels bool
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The detailedLabels parameter controls whether high-cardinality labels are included.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{
		detailedLabels: detailedLabels,
	}

	var err error

	// HTTP Metrics
	m.httpRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	m.httpRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration_seconds histogram: %w", err)
	}

	// Gmail API Metrics
	m.gmailOperationsTotal, err = meter.Int64Counter(
		"gmail_api_operations_total",
		metric.WithDescription("Total number of Gmail API operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail_api_operations_total counter: %w", err)
	}

	m.gmailOperationDuration, err = meter.Float64Histogram(
		"gmail_api_operation_duration_seconds",
		metric.WithDescription("Gmail API operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail_api_operation_duration_seconds histogram: %w", err)
	}

	// Tool Metrics
	m.toolInvocationsTotal, err = meter.Int64Counter(
		"tool_invocations_total",
		metric.WithDescription("Total number of tool invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool_invocations_total counter: %w", err)
	}

	m.toolDuration, err = meter.Float64Histogram(
		"tool_duration_seconds",
		metric.WithDescription("Tool execution duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool_duration_seconds histogram: %w", err)
	}

	m.toolErrorsTotal, err = meter.Int64Counter(
		"tool_errors_total",
		metric.WithDescription("Total number of failed tool invocations by error code"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool_errors_total counter: %w", err)
	}

	// Session store metrics
	m.sessionStoreOpsTotal, err = meter.Int64Counter(
		"session_store_operations_total",
		metric.WithDescription("Total number of session store operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session_store_operations_total counter: %w", err)
	}

	// Rule metrics
	m.ruleApplicationsTotal, err = meter.Int64Counter(
		"rule_applications_total",
		metric.WithDescription("Total number of rule application runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rule_applications_total counter: %w", err)
	}

	m.ruleActionsTakenTotal, err = meter.Int64Counter(
		"rule_actions_taken_total",
		metric.WithDescription("Total number of rule actions taken on messages"),
		metric.WithUnit("{action}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rule_actions_taken_total counter: %w", err)
	}

	m.destructiveDeleteTotal, err = meter.Int64Counter(
		"permanent_deletes_total",
		metric.WithDescription("Total number of permanently deleted messages"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create permanent_deletes_total counter: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request with method, path, status code, and duration.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m.httpRequestsTotal == nil || m.httpRequestDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	}

	m.httpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.httpRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordGmailOperation records a Gmail API operation.
//
// Parameters:
//   - operation: Operation type (list, get, trash, modify, delete, scan)
//   - status: Result status ("success" or "error")
//   - duration: Time taken for the operation
func (m *Metrics) RecordGmailOperation(ctx context.Context, operation, status string, duration time.Duration) {
	if m.gmailOperationsTotal == nil || m.gmailOperationDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}

	m.gmailOperationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.gmailOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordToolInvocation records a tool invocation with tool name, status, and duration.
func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status string, duration time.Duration) {
	m.RecordToolInvocationWithOwner(ctx, toolName, status, "", duration)
}

// RecordToolError records a failed tool invocation by error code.
func (m *Metrics) RecordToolError(ctx context.Context, toolName, errorCode string) {
	if m.toolErrorsTotal == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrTool, toolName),
		attribute.String(attrErrorCode, errorCode),
	}

	m.toolErrorsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordSessionStoreOperation records a session store operation with its
// backend ("memory" or "valkey") and result.
func (m *Metrics) RecordSessionStoreOperation(ctx context.Context, backend, operation, result string) {
	if m.sessionStoreOpsTotal == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrBackend, backend),
		attribute.String(attrOperation, operation),
		attribute.String(attrResult, result),
	}

	m.sessionStoreOpsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRuleApplication records one rule application run and the number of
// actions it took.
func (m *Metrics) RecordRuleApplication(ctx context.Context, dryRun bool, actionsTaken int) {
	if m.ruleApplicationsTotal == nil || m.ruleActionsTakenTotal == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.Bool(attrDryRun, dryRun),
	}

	m.ruleApplicationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	if !dryRun && actionsTaken > 0 {
		m.ruleActionsTakenTotal.Add(ctx, int64(actionsTaken))
	}
}

// RecordPermanentDeletes records permanently deleted messages.
func (m *Metrics) RecordPermanentDeletes(ctx context.Context, count int) {
	if m.destructiveDeleteTotal == nil {
		return // Instrumentation not initialized
	}

	m.destructiveDeleteTotal.Add(ctx, int64(count))
}

// RecordToolInvocationWithOwner records a tool invocation including the
// caller identity. The owner label is only added when detailedLabels is
// enabled, and is reduced to its domain to limit cardinality.
func (m *Metrics) RecordToolInvocationWithOwner(ctx context.Context, toolName, status, owner string, duration time.Duration) {
	if m.toolInvocationsTotal == nil || m.toolDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	}

	// Only add high-cardinality labels if explicitly enabled
	if m.detailedLabels && owner != "" {
		attrs = append(attrs, attribute.String(attrOwner, ExtractUserDomain(owner)))
	}

	m.toolInvocationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}
