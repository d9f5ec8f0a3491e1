package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/damienmail/damien-mcp-server/internal/dispatch"
	"github.com/damienmail/damien-mcp-server/internal/instrumentation"
	"github.com/damienmail/damien-mcp-server/internal/registry"
)

const (
	// DefaultAddr is the default address for the API server.
	DefaultAddr = ":8892"

	// DefaultOwner is assigned to requests that do not name a user.
	DefaultOwner = "damien_user"

	// DefaultReadHeaderTimeout bounds header reads on the API server.
	DefaultReadHeaderTimeout = 10 * time.Second

	// DefaultIdleTimeout is the idle timeout for API connections.
	DefaultIdleTimeout = 60 * time.Second
)

// Executor runs a single tool invocation. *dispatch.Dispatcher satisfies it.
type Executor interface {
	Execute(ctx context.Context, inv dispatch.Invocation) dispatch.ExecutionResult
}

// Config holds configuration for the API server.
type Config struct {
	// Addr is the address to bind the API server to (e.g., ":8892").
	Addr string

	// APIKey is the shared secret required in the X-API-Key header.
	APIKey string

	Registry   *registry.Registry
	Dispatcher Executor
	Health     *HealthChecker
	Logger     *slog.Logger
	Metrics    *instrumentation.Metrics
}

// Server is the HTTP API server exposing tool discovery and execution.
type Server struct {
	addr       string
	apiKey     string
	registry   *registry.Registry
	dispatcher Executor
	health     *HealthChecker
	logger     *slog.Logger
	metrics    *instrumentation.Metrics

	httpServer *http.Server
}

// NewServer creates the API server. The API key and dispatcher are required
// so a misconfigured deployment fails at startup instead of serving
// unauthenticated traffic.
func NewServer(config Config) (*Server, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if config.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if config.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if config.Addr == "" {
		config.Addr = DefaultAddr
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:       config.Addr,
		apiKey:     config.APIKey,
		registry:   config.Registry,
		dispatcher: config.Dispatcher,
		health:     config.Health,
		logger:     logger,
		metrics:    config.Metrics,
	}, nil
}

// Handler builds the full request mux, including health endpoints, auth and
// request metrics. Exposed for tests.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("/list_tools", s.handleListTools)
	api.HandleFunc("/execute_tool", s.handleExecuteTool)

	mux := http.NewServeMux()
	mux.Handle("/", apiKeyMiddleware(s.apiKey, api))
	if s.health != nil {
		// Health probes stay unauthenticated so Kubernetes can reach them.
		s.health.RegisterHealthEndpoints(mux)
	}

	return s.requestMetrics(mux)
}

// Start starts the API server in a blocking manner.
// Call this in a goroutine if you need non-blocking operation.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		IdleTimeout:       DefaultIdleTimeout,
	}

	s.logger.Info("starting API server", slog.String("addr", s.addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		s.logger.Info("shutting down API server")
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// Addr returns the configured address for the API server.
func (s *Server) Addr() string {
	return s.addr
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, s.registry.List())
}

// executeRequest is the wire format for POST /execute_tool.
type executeRequest struct {
	ToolName  string         `json:"tool_name"`
	Input     map[string]any `json:"input"`
	SessionID string         `json:"session_id"`
	UserID    string         `json:"user_id"`
}

func (s *Server) handleExecuteTool(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}

	var req executeRequest
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dispatch.ExecutionResult{
			IsError:      true,
			ErrorCode:    dispatch.CodeValidationError,
			ErrorMessage: fmt.Sprintf("invalid request body: %v", err),
		})
		return
	}
	if req.ToolName == "" {
		writeJSON(w, http.StatusBadRequest, dispatch.ExecutionResult{
			IsError:      true,
			ErrorCode:    dispatch.CodeValidationError,
			ErrorMessage: "tool_name is required",
		})
		return
	}
	if req.UserID == "" {
		req.UserID = DefaultOwner
	}

	result := s.dispatcher.Execute(r.Context(), dispatch.Invocation{
		ToolName:  req.ToolName,
		Input:     req.Input,
		Owner:     req.UserID,
		SessionID: req.SessionID,
	})

	// Tool failures are reported inside the envelope, not via HTTP status.
	// A 200 with is_error set keeps the contract uniform for clients.
	writeJSON(w, http.StatusOK, result)
}

func writeMethodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	writeJSON(w, http.StatusMethodNotAllowed, dispatch.ExecutionResult{
		IsError:      true,
		ErrorCode:    dispatch.CodeValidationError,
		ErrorMessage: fmt.Sprintf("method not allowed, use %s", allowed),
	})
}

// statusRecorder captures the status code written by downstream handlers.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		if s.metrics != nil {
			s.metrics.RecordHTTPRequest(r.Context(), r.Method, r.URL.Path, recorder.status, time.Since(start))
		}
	})
}
