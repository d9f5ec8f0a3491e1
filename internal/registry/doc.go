// Package registry holds the authoritative catalog of tool definitions.
//
// The registry is populated once at startup and read-only afterwards. Each
// ToolDefinition carries the tool name, an agent-facing description, and
// JSON Schemas for its input and output. Discovery responses are served
// straight from the registry; listing order is insertion order so repeated
// discovery calls are deterministic within a process lifetime.
package registry
