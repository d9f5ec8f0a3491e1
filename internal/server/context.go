package server

import (
	"context"
	"log/slog"
	"sync"

	"github.com/damienmail/damien-mcp-server/internal/session"
)

// ServerContext holds shared server state and coordinates graceful shutdown.
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger

	sessions session.Store

	mu       sync.RWMutex
	shutdown bool
}

// NewServerContext creates a new server context derived from ctx.
func NewServerContext(ctx context.Context, sessions session.Store, logger *slog.Logger) *ServerContext {
	if logger == nil {
		logger = slog.Default()
	}
	serverCtx, cancel := context.WithCancel(ctx)
	return &ServerContext{
		ctx:      serverCtx,
		cancel:   cancel,
		logger:   logger,
		sessions: sessions,
	}
}

// Context returns the context that is cancelled on shutdown.
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Sessions returns the session store backing the server.
func (sc *ServerContext) Sessions() session.Store {
	return sc.sessions
}

// IsShutdown reports whether Shutdown has been called.
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown cancels the server context and closes the session store.
// It is safe to call multiple times.
func (sc *ServerContext) Shutdown() {
	sc.mu.Lock()
	if sc.shutdown {
		sc.mu.Unlock()
		return
	}
	sc.shutdown = true
	sc.mu.Unlock()

	sc.cancel()
	if sc.sessions != nil {
		if err := sc.sessions.Close(); err != nil {
			sc.logger.Warn("Failed to close session store", slog.Any("error", err))
		}
	}
}
