// Package damien_tools bridges the tool registry onto an MCP server so the
// same tools are reachable over the stdio transport. Each registered tool
// keeps the JSON schema from the registry and delegates execution to the
// dispatcher, so validation and error normalization behave identically on
// both transports.
package damien_tools
