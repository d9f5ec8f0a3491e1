package damien_tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/damienmail/damien-mcp-server/internal/dispatch"
	"github.com/damienmail/damien-mcp-server/internal/registry"
)

type fakeExecutor struct {
	lastInvocation dispatch.Invocation
	result         dispatch.ExecutionResult
}

func (f *fakeExecutor) Execute(_ context.Context, inv dispatch.Invocation) dispatch.ExecutionResult {
	f.lastInvocation = inv
	return f.result
}

func TestRegisterDamienTools(t *testing.T) {
	reg, err := registry.Default()
	require.NoError(t, err)

	mcpSrv := mcpserver.NewMCPServer("test-server", "1.0.0",
		mcpserver.WithToolCapabilities(true),
	)

	err = RegisterDamienTools(mcpSrv, reg, &fakeExecutor{}, "")
	require.NoError(t, err)
}

func TestHandleToolCallSuccess(t *testing.T) {
	exec := &fakeExecutor{result: dispatch.ExecutionResult{
		ToolResultID: "result-1",
		Output:       map[string]any{"trashed_count": float64(2)},
	}}

	request := mcp.CallToolRequest{}
	request.Params.Arguments = map[string]any{"message_ids": []any{"m1", "m2"}}

	res, err := handleToolCall(context.Background(), request, exec, "damien_trash_emails", "agent-a")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.False(t, res.IsError)

	assert.Equal(t, "damien_trash_emails", exec.lastInvocation.ToolName)
	assert.Equal(t, "agent-a", exec.lastInvocation.Owner)

	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)

	var envelope dispatch.ExecutionResult
	require.NoError(t, json.Unmarshal([]byte(text.Text), &envelope))
	assert.Equal(t, "result-1", envelope.ToolResultID)
}

func TestHandleToolCallError(t *testing.T) {
	exec := &fakeExecutor{result: dispatch.ExecutionResult{
		ToolResultID: "result-2",
		IsError:      true,
		ErrorCode:    dispatch.CodeValidationError,
		ErrorMessage: "input validation failed",
	}}

	request := mcp.CallToolRequest{}
	request.Params.Arguments = map[string]any{}

	res, err := handleToolCall(context.Background(), request, exec, "damien_trash_emails", "agent-a")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, res.IsError)

	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)

	var envelope dispatch.ExecutionResult
	require.NoError(t, json.Unmarshal([]byte(text.Text), &envelope))
	assert.Equal(t, dispatch.CodeValidationError, envelope.ErrorCode)
}

func TestSessionIDFromContextWithoutSession(t *testing.T) {
	assert.Empty(t, sessionIDFromContext(context.Background()))
}
