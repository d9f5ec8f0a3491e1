package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/damienmail/damien-mcp-server/internal/adapter"
	"github.com/damienmail/damien-mcp-server/internal/dispatch"
	"github.com/damienmail/damien-mcp-server/internal/gmail"
	"github.com/damienmail/damien-mcp-server/internal/google"
	"github.com/damienmail/damien-mcp-server/internal/instrumentation"
	"github.com/damienmail/damien-mcp-server/internal/logging"
	"github.com/damienmail/damien-mcp-server/internal/registry"
	"github.com/damienmail/damien-mcp-server/internal/rules"
	"github.com/damienmail/damien-mcp-server/internal/server"
	"github.com/damienmail/damien-mcp-server/internal/session"
	"github.com/damienmail/damien-mcp-server/internal/tools/damien_tools"
)

// SessionStorageConfig holds session context storage backend configuration
type SessionStorageConfig struct {
	// Type is the storage backend type: "memory" or "valkey" (default: "memory")
	Type string

	// TTL is how long session context survives after its last write
	TTL time.Duration

	// SweepInterval is how often the in-memory store evicts expired entries
	SweepInterval time.Duration

	// Valkey configuration (used when Type is "valkey")
	Valkey session.ValkeyConfig
}

// MetricsConfig holds configuration for the metrics server
type MetricsConfig struct {
	// Enabled determines whether to start the metrics server (default: true)
	Enabled bool

	// Addr is the address for the metrics server (e.g., ":9090")
	Addr string
}

// ServeConfig collects everything the serve command needs to run.
type ServeConfig struct {
	Transport      string
	HTTPAddr       string
	APIKey         string
	Debug          bool
	RequestTimeout time.Duration

	CredentialsPath string
	TokenPath       string
	RulesFile       string

	Sessions SessionStorageConfig
	Metrics  MetricsConfig
}

func newServeCmd() *cobra.Command {
	var (
		debugMode      bool
		transport      string
		httpAddr       string
		apiKey         string
		requestTimeout time.Duration
		// Gmail credentials
		credentialsPath string
		tokenPath       string
		// Rules storage
		rulesFile string
		// Session storage
		sessionStorageType   string
		sessionTTL           time.Duration
		sessionSweepInterval time.Duration
		valkeyURL            string
		valkeyPassword       string
		valkeyTLS            bool
		valkeyTLSCAFile      string
		valkeyKeyPrefix      string
		valkeyDB             int
		// Metrics server configuration
		metricsEnabled bool
		metricsAddr    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the email tool server",
		Long: `Start the server exposing Gmail management tools for AI assistants.

Supports multiple transport types:
  - http: HTTP API with X-API-Key authentication (default)
  - stdio: Model Context Protocol over standard input/output

Authentication:
  The HTTP transport requires an API key, set via --api-key or the
  DAMIEN_MCP_SERVER_API_KEY environment variable. Gmail access uses OAuth
  credentials from --gmail-credentials and --gmail-token (or the
  DAMIEN_GMAIL_CREDENTIALS_PATH and DAMIEN_GMAIL_TOKEN_PATH env vars).

Session Context:
  Conversation context is kept per (user, session) pair with a TTL. The
  default in-memory store suits single-instance deployments; use
  --session-storage-type valkey for multi-replica setups.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			config := ServeConfig{
				Transport:       transport,
				HTTPAddr:        httpAddr,
				APIKey:          apiKey,
				Debug:           debugMode,
				RequestTimeout:  requestTimeout,
				CredentialsPath: credentialsPath,
				TokenPath:       tokenPath,
				RulesFile:       rulesFile,
				Sessions: SessionStorageConfig{
					Type:          sessionStorageType,
					TTL:           sessionTTL,
					SweepInterval: sessionSweepInterval,
					Valkey: session.ValkeyConfig{
						URL:        valkeyURL,
						Password:   valkeyPassword,
						TLSEnabled: valkeyTLS,
						TLSCAFile:  valkeyTLSCAFile,
						KeyPrefix:  valkeyKeyPrefix,
						DB:         valkeyDB,
					},
				},
				Metrics: MetricsConfig{
					Enabled: metricsEnabled,
					Addr:    metricsAddr,
				},
			}

			loadServeEnvVars(cmd, &config)

			return runServe(config)
		},
	}

	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&transport, "transport", "http", "Transport type: http or stdio")
	cmd.Flags().StringVar(&httpAddr, "http-addr", server.DefaultAddr, "HTTP server address (for http transport)")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key required in the X-API-Key header (http transport). Can also use DAMIEN_MCP_SERVER_API_KEY env var.")
	cmd.Flags().DurationVar(&requestTimeout, "request-timeout", dispatch.DefaultTimeout, "Timeout for a single backend call")

	cmd.Flags().StringVar(&credentialsPath, "gmail-credentials", "", "Path to Gmail OAuth client credentials JSON. Can also use DAMIEN_GMAIL_CREDENTIALS_PATH env var. Default: ~/.damien/credentials.json")
	cmd.Flags().StringVar(&tokenPath, "gmail-token", "", "Path to the stored Gmail OAuth token JSON. Can also use DAMIEN_GMAIL_TOKEN_PATH env var. Default: ~/.damien/token.json")
	cmd.Flags().StringVar(&rulesFile, "rules-file", "", "Path to the rules JSON file. Can also use DAMIEN_RULES_FILE env var. Default: ~/.damien/rules.json")

	cmd.Flags().StringVar(&sessionStorageType, "session-storage-type", instrumentation.BackendMemory, "Session context storage type: memory or valkey. Can also use SESSION_STORAGE_TYPE env var.")
	cmd.Flags().DurationVar(&sessionTTL, "session-ttl", dispatch.DefaultSessionTTL, "How long session context survives after its last write")
	cmd.Flags().DurationVar(&sessionSweepInterval, "session-sweep-interval", 10*time.Minute, "How often the in-memory session store evicts expired entries")
	cmd.Flags().StringVar(&valkeyURL, "valkey-url", "", "Valkey server address (e.g., valkey.namespace.svc:6379). Can also use VALKEY_URL env var.")
	cmd.Flags().StringVar(&valkeyPassword, "valkey-password", "", "Valkey authentication password. Can also use VALKEY_PASSWORD env var.")
	cmd.Flags().BoolVar(&valkeyTLS, "valkey-tls", false, "Enable TLS for Valkey connections. Can also use VALKEY_TLS_ENABLED env var.")
	cmd.Flags().StringVar(&valkeyTLSCAFile, "valkey-tls-ca-file", "", "Path to a custom CA certificate for Valkey TLS. Can also use VALKEY_TLS_CA_FILE env var.")
	cmd.Flags().StringVar(&valkeyKeyPrefix, "valkey-key-prefix", "damien:", "Prefix for all Valkey keys. Can also use VALKEY_KEY_PREFIX env var.")
	cmd.Flags().IntVar(&valkeyDB, "valkey-db", 0, "Valkey database number. Can also use VALKEY_DB env var.")

	cmd.Flags().BoolVar(&metricsEnabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

// loadServeEnvVars fills config fields from environment variables when the
// corresponding flag was not set explicitly.
func loadServeEnvVars(cmd *cobra.Command, config *ServeConfig) {
	if config.APIKey == "" {
		config.APIKey = os.Getenv("DAMIEN_MCP_SERVER_API_KEY")
	}
	if !cmd.Flags().Changed("http-addr") {
		if addr := os.Getenv("DAMIEN_MCP_SERVER_LISTEN_ADDR"); addr != "" {
			config.HTTPAddr = addr
		}
	}
	if config.RulesFile == "" {
		config.RulesFile = os.Getenv("DAMIEN_RULES_FILE")
	}
	if !cmd.Flags().Changed("session-storage-type") {
		if t := os.Getenv("SESSION_STORAGE_TYPE"); t != "" {
			config.Sessions.Type = t
		}
	}
	if config.Sessions.Valkey.URL == "" {
		config.Sessions.Valkey.URL = os.Getenv("VALKEY_URL")
	}
	if config.Sessions.Valkey.Password == "" {
		config.Sessions.Valkey.Password = os.Getenv("VALKEY_PASSWORD")
	}
	if !cmd.Flags().Changed("valkey-tls") {
		if parsed, err := strconv.ParseBool(os.Getenv("VALKEY_TLS_ENABLED")); err == nil {
			config.Sessions.Valkey.TLSEnabled = parsed
		}
	}
	if config.Sessions.Valkey.TLSCAFile == "" {
		config.Sessions.Valkey.TLSCAFile = os.Getenv("VALKEY_TLS_CA_FILE")
	}
	if !cmd.Flags().Changed("valkey-key-prefix") {
		if prefix := os.Getenv("VALKEY_KEY_PREFIX"); prefix != "" {
			config.Sessions.Valkey.KeyPrefix = prefix
		}
	}
	if !cmd.Flags().Changed("valkey-db") {
		if db, err := strconv.Atoi(os.Getenv("VALKEY_DB")); err == nil {
			config.Sessions.Valkey.DB = db
		}
	}
	if !cmd.Flags().Changed("metrics-enabled") {
		if parsed, err := strconv.ParseBool(os.Getenv("METRICS_ENABLED")); err == nil {
			config.Metrics.Enabled = parsed
		}
	}
	if !cmd.Flags().Changed("metrics-addr") {
		if addr := os.Getenv("METRICS_ADDR"); addr != "" {
			config.Metrics.Addr = addr
		}
	}
}

// newSessionStore builds the session store named by the configuration.
func newSessionStore(config SessionStorageConfig) (session.Store, error) {
	switch config.Type {
	case "", instrumentation.BackendMemory:
		return session.NewMemoryStore(config.SweepInterval, nil), nil
	case instrumentation.BackendValkey:
		if config.Valkey.URL == "" {
			return nil, fmt.Errorf("valkey session storage requires --valkey-url or VALKEY_URL")
		}
		return session.NewValkeyStore(config.Valkey)
	default:
		return nil, fmt.Errorf("unsupported session storage type: %s (supported: memory, valkey)", config.Type)
	}
}

func runServe(config ServeConfig) error {
	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := logging.Setup(config.Debug)

	// Initialize instrumentation provider
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(shutdownCtx); err != nil {
			if config.Transport != "stdio" {
				log.Printf("Error during instrumentation shutdown: %v", err)
			}
		}
	}()

	// Start metrics server if enabled and not in stdio mode
	var metricsServer *server.MetricsServer
	if config.Transport != "stdio" && config.Metrics.Enabled && provider.Enabled() {
		var err error
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    config.Metrics.Addr,
			Enabled:                 true,
			InstrumentationProvider: provider,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}

		// Use ready channel to confirm metrics server started successfully
		metricsReady := make(chan struct{})
		metricsErr := make(chan error, 1)
		go func() {
			if err := metricsServer.StartWithReadySignal(metricsReady); err != nil && err != http.ErrServerClosed {
				metricsErr <- err
			}
			close(metricsErr)
		}()

		select {
		case <-metricsReady:
			log.Printf("Metrics server started on %s", metricsServer.Addr())
		case err := <-metricsErr:
			return fmt.Errorf("metrics server failed to start: %w", err)
		case <-time.After(5 * time.Second):
			return fmt.Errorf("metrics server startup timed out")
		}
	}
	defer func() {
		if metricsServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				log.Printf("Error during metrics server shutdown: %v", err)
			}
		}
	}()

	// Build the tool pipeline: registry, Gmail backend, rules, sessions.
	reg, err := registry.Default()
	if err != nil {
		return fmt.Errorf("failed to build tool registry: %w", err)
	}

	gmailProvider := gmail.NewProvider(google.Config{
		CredentialsPath: config.CredentialsPath,
		TokenPath:       config.TokenPath,
	})

	rulesFile := config.RulesFile
	if rulesFile == "" {
		rulesFile = filepath.Join(homeDir(), ".damien", "rules.json")
	}
	rulesStore := rules.NewStore(rulesFile)

	backend := adapter.New(gmailProvider, rulesStore, logger, provider.Metrics())

	sessions, err := newSessionStore(config.Sessions)
	if err != nil {
		return err
	}

	var auditLogger *instrumentation.AuditLogger
	if provider.Enabled() {
		auditLogger = instrumentation.NewAuditLoggerWithConfig(logger, instrConfig.AuditLogging)
	}

	dispatcher := dispatch.New(dispatch.Config{
		Registry:   reg,
		Backend:    backend,
		Sessions:   sessions,
		Logger:     logger,
		Metrics:    provider.Metrics(),
		Audit:      auditLogger,
		Timeout:    config.RequestTimeout,
		SessionTTL: config.Sessions.TTL,
	})

	serverContext := server.NewServerContext(shutdownCtx, sessions, logger)
	defer serverContext.Shutdown()

	switch config.Transport {
	case "http":
		return runHTTPServer(shutdownCtx, config, reg, dispatcher, serverContext, provider, logger)
	case "stdio":
		return runStdioServer(reg, dispatcher)
	default:
		return fmt.Errorf("unsupported transport type: %s (supported: http, stdio)", config.Transport)
	}
}

func runHTTPServer(ctx context.Context, config ServeConfig, reg *registry.Registry, dispatcher *dispatch.Dispatcher, serverContext *server.ServerContext, provider *instrumentation.Provider, logger *slog.Logger) error {
	healthChecker := server.NewHealthChecker(serverContext)

	apiServer, err := server.NewServer(server.Config{
		Addr:       config.HTTPAddr,
		APIKey:     config.APIKey,
		Registry:   reg,
		Dispatcher: dispatcher,
		Health:     healthChecker,
		Logger:     logger,
		Metrics:    provider.Metrics(),
	})
	if err != nil {
		return err
	}

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := apiServer.Start(); err != nil && err != http.ErrServerClosed {
			serverDone <- err
		}
	}()

	logger.Info("API server listening", slog.String("addr", apiServer.Addr()))

	select {
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("server stopped with error: %w", err)
		}
		return nil
	case <-ctx.Done():
		healthChecker.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		return apiServer.Shutdown(shutdownCtx)
	}
}

func runStdioServer(reg *registry.Registry, dispatcher *dispatch.Dispatcher) error {
	mcpSrv := mcpserver.NewMCPServer("damien-mcp-server", version,
		mcpserver.WithToolCapabilities(true),
	)

	if err := damien_tools.RegisterDamienTools(mcpSrv, reg, dispatcher, ""); err != nil {
		return fmt.Errorf("failed to register tools: %w", err)
	}

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	err := <-serverDone
	if err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

func homeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	// Windows fallback
	return os.Getenv("HOMEDRIVE") + os.Getenv("HOMEPATH")
}
