// Package server exposes the tool API over HTTP.
//
// The main server serves two endpoints: GET /list_tools for discovery and
// POST /execute_tool for invocation. Both are protected by a shared-secret
// X-API-Key header compared in constant time. Error responses reuse the
// execution result envelope so clients parse one shape everywhere.
//
// Alongside the API the package provides Kubernetes-style health probes
// (liveness, readiness with dependency checks) and a metrics server on a
// dedicated port so operational endpoints never share the API surface.
package server
