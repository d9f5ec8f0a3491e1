// Package instrumentation provides OpenTelemetry metrics, tracing, and
// audit logging for the server.
//
// A Provider wires exporters (Prometheus, OTLP, or stdout for development)
// and hands out a Metrics recorder plus tracers. When instrumentation is
// disabled the recorder degrades to no-ops, so callers never need to
// nil-check individual instruments.
//
// Metrics cover HTTP traffic, tool invocations, Gmail API operations,
// session store operations, and rule applications. Label cardinality is
// kept low: user identifiers are reduced to their domain, and
// high-cardinality labels are only added when explicitly enabled.
//
// Audit logging records mailbox-mutating tool invocations; destructive
// operations (trash, permanent delete) are always audited.
package instrumentation
