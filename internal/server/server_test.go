package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/damienmail/damien-mcp-server/internal/dispatch"
	"github.com/damienmail/damien-mcp-server/internal/registry"
	"github.com/damienmail/damien-mcp-server/internal/session"
)

const testAPIKey = "test-key-123"

type fakeExecutor struct {
	lastInvocation dispatch.Invocation
	result         dispatch.ExecutionResult
}

func (f *fakeExecutor) Execute(_ context.Context, inv dispatch.Invocation) dispatch.ExecutionResult {
	f.lastInvocation = inv
	return f.result
}

func newTestServer(t *testing.T, exec *fakeExecutor) *Server {
	t.Helper()

	reg, err := registry.Default()
	require.NoError(t, err)

	store := session.NewMemoryStore(time.Minute, nil)
	t.Cleanup(func() { _ = store.Close() })

	sc := NewServerContext(context.Background(), store, nil)
	t.Cleanup(sc.Shutdown)

	srv, err := NewServer(Config{
		APIKey:     testAPIKey,
		Registry:   reg,
		Dispatcher: exec,
		Health:     NewHealthChecker(sc),
	})
	require.NoError(t, err)
	return srv
}

func TestNewServerRequiresAPIKey(t *testing.T) {
	reg, err := registry.Default()
	require.NoError(t, err)

	_, err = NewServer(Config{Registry: reg, Dispatcher: &fakeExecutor{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}

func TestAuthRejectsMissingKey(t *testing.T) {
	srv := newTestServer(t, &fakeExecutor{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/list_tools")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var result dispatch.ExecutionResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.True(t, result.IsError)
	assert.Equal(t, dispatch.CodeAuthError, result.ErrorCode)
}

func TestAuthRejectsWrongKey(t *testing.T) {
	srv := newTestServer(t, &fakeExecutor{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/list_tools", nil)
	require.NoError(t, err)
	req.Header.Set(APIKeyHeader, "wrong-key")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestListTools(t *testing.T) {
	srv := newTestServer(t, &fakeExecutor{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/list_tools", nil)
	require.NoError(t, err)
	req.Header.Set(APIKeyHeader, testAPIKey)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var tools []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tools))
	require.NotEmpty(t, tools)

	names := make(map[string]bool)
	for _, tool := range tools {
		names[tool["name"].(string)] = true
		assert.NotEmpty(t, tool["description"])
		assert.NotNil(t, tool["input_schema"])
		assert.NotNil(t, tool["output_schema"])
	}
	assert.True(t, names["damien_list_emails"])
	assert.True(t, names["damien_apply_rules"])
}

func TestListToolsRejectsPost(t *testing.T) {
	srv := newTestServer(t, &fakeExecutor{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/list_tools", strings.NewReader("{}"))
	require.NoError(t, err)
	req.Header.Set(APIKeyHeader, testAPIKey)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestExecuteToolSuccess(t *testing.T) {
	exec := &fakeExecutor{result: dispatch.ExecutionResult{
		ToolResultID: "result-1",
		Output:       map[string]any{"email_summaries": []any{}},
	}}
	srv := newTestServer(t, exec)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	body := `{"tool_name":"damien_list_emails","input":{"max_results":5},"session_id":"sess-1","user_id":"agent-a"}`
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/execute_tool", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set(APIKeyHeader, testAPIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result dispatch.ExecutionResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "result-1", result.ToolResultID)
	assert.False(t, result.IsError)

	assert.Equal(t, "damien_list_emails", exec.lastInvocation.ToolName)
	assert.Equal(t, "agent-a", exec.lastInvocation.Owner)
	assert.Equal(t, "sess-1", exec.lastInvocation.SessionID)
}

func TestExecuteToolDefaultsOwner(t *testing.T) {
	exec := &fakeExecutor{result: dispatch.ExecutionResult{ToolResultID: "result-2"}}
	srv := newTestServer(t, exec)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	body := `{"tool_name":"damien_list_rules","session_id":"sess-1"}`
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/execute_tool", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set(APIKeyHeader, testAPIKey)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, DefaultOwner, exec.lastInvocation.Owner)
}

func TestExecuteToolErrorEnvelopeStaysHTTP200(t *testing.T) {
	exec := &fakeExecutor{result: dispatch.ExecutionResult{
		ToolResultID: "result-3",
		IsError:      true,
		ErrorCode:    dispatch.CodeUnknownTool,
		ErrorMessage: "unknown tool: damien_bogus",
	}}
	srv := newTestServer(t, exec)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	body := `{"tool_name":"damien_bogus"}`
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/execute_tool", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set(APIKeyHeader, testAPIKey)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result dispatch.ExecutionResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.True(t, result.IsError)
	assert.Equal(t, dispatch.CodeUnknownTool, result.ErrorCode)
}

func TestExecuteToolRejectsMalformedBody(t *testing.T) {
	srv := newTestServer(t, &fakeExecutor{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/execute_tool", strings.NewReader("{not json"))
	require.NoError(t, err)
	req.Header.Set(APIKeyHeader, testAPIKey)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var result dispatch.ExecutionResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.True(t, result.IsError)
	assert.Equal(t, dispatch.CodeValidationError, result.ErrorCode)
}

func TestExecuteToolRequiresToolName(t *testing.T) {
	srv := newTestServer(t, &fakeExecutor{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/execute_tool", strings.NewReader(`{"input":{}}`))
	require.NoError(t, err)
	req.Header.Set(APIKeyHeader, testAPIKey)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthEndpointsUnauthenticated(t *testing.T) {
	srv := newTestServer(t, &fakeExecutor{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestReadinessReportsShutdown(t *testing.T) {
	store := session.NewMemoryStore(time.Minute, nil)
	defer store.Close()

	sc := NewServerContext(context.Background(), store, nil)
	checker := NewHealthChecker(sc)
	sc.Shutdown()

	rec := httptest.NewRecorder()
	checker.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, healthStatusNotReady, resp.Status)
	assert.Equal(t, healthStatusShuttingDown, resp.Checks["shutdown"])
}

func TestReadinessChecksSessionStore(t *testing.T) {
	store := session.NewMemoryStore(time.Minute, nil)
	defer store.Close()

	sc := NewServerContext(context.Background(), store, nil)
	defer sc.Shutdown()
	checker := NewHealthChecker(sc)

	rec := httptest.NewRecorder()
	checker.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, healthStatusOK, resp.Checks["session_store"])
}
