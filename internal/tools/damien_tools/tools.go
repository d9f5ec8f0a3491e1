package damien_tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/damienmail/damien-mcp-server/internal/dispatch"
	"github.com/damienmail/damien-mcp-server/internal/registry"
)

// DefaultOwner is used when no owner is configured for the MCP transport.
// Stdio serves a single local user, so one owner per process is enough.
const DefaultOwner = "damien_user"

// Executor runs a single tool invocation. *dispatch.Dispatcher satisfies it.
type Executor interface {
	Execute(ctx context.Context, inv dispatch.Invocation) dispatch.ExecutionResult
}

// RegisterDamienTools registers every tool from the registry with the MCP
// server. The registry schemas are passed through verbatim so MCP clients
// see the same contract as HTTP clients.
func RegisterDamienTools(s *mcpserver.MCPServer, reg *registry.Registry, exec Executor, owner string) error {
	if owner == "" {
		owner = DefaultOwner
	}

	for _, def := range reg.List() {
		rawSchema, err := json.Marshal(def.InputSchema)
		if err != nil {
			return fmt.Errorf("failed to marshal schema for tool %s: %w", def.Name, err)
		}

		tool := mcp.NewToolWithRawSchema(def.Name, def.Description, rawSchema)

		name := def.Name
		s.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleToolCall(ctx, request, exec, name, owner)
		})
	}

	return nil
}

func handleToolCall(ctx context.Context, request mcp.CallToolRequest, exec Executor, name, owner string) (*mcp.CallToolResult, error) {
	result := exec.Execute(ctx, dispatch.Invocation{
		ToolName:  name,
		Input:     request.GetArguments(),
		Owner:     owner,
		SessionID: sessionIDFromContext(ctx),
	})

	payload, err := json.Marshal(result)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}

	if result.IsError {
		return mcp.NewToolResultError(string(payload)), nil
	}
	return mcp.NewToolResultText(string(payload)), nil
}

// sessionIDFromContext derives a session id from the MCP client session so
// conversation context survives across calls within one client connection.
func sessionIDFromContext(ctx context.Context) string {
	if cs := mcpserver.ClientSessionFromContext(ctx); cs != nil {
		return cs.SessionID()
	}
	return ""
}
