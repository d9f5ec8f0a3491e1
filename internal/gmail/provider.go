package gmail

import (
	"context"
	"sync"

	"github.com/damienmail/damien-mcp-server/internal/google"
)

// newClientFunc builds a client; swapped in tests.
type newClientFunc func(ctx context.Context, cfg google.Config) (*Client, error)

// Provider hands out a shared Gmail client, building it on first use.
// Initialization failures are returned but not cached, so the next call
// tries again.
type Provider struct {
	cfg google.Config

	mu        sync.Mutex
	client    *Client
	newClient newClientFunc
}

// NewProvider creates a provider for the given credential configuration.
// No network or file access happens until the first Client call.
func NewProvider(cfg google.Config) *Provider {
	return &Provider{
		cfg:       cfg.WithDefaults(),
		newClient: NewClient,
	}
}

// Client returns the shared client, initializing it if needed. Concurrent
// callers during initialization block until one of them succeeds or fails;
// at most one initialization runs at a time.
func (p *Provider) Client(ctx context.Context) (*Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		return p.client, nil
	}
	client, err := p.newClient(ctx, p.cfg)
	if err != nil {
		return nil, err
	}
	p.client = client
	return client, nil
}
