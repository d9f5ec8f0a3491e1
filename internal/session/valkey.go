package session

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/valkey-io/valkey-go"
)

// ValkeyConfig holds configuration for the Valkey session backend.
type ValkeyConfig struct {
	// URL is the Valkey server address (e.g., "valkey.namespace.svc:6379")
	URL string

	// Password is the optional password for Valkey authentication
	Password string

	// TLSEnabled enables TLS for Valkey connections
	TLSEnabled bool

	// TLSCAFile is the path to a custom CA certificate file for TLS
	// verification. Use this when Valkey uses certificates signed by a
	// private CA.
	TLSCAFile string

	// KeyPrefix is the prefix for all Valkey keys (default: "damien:session:")
	KeyPrefix string

	// DB is the Valkey database number (default: 0)
	DB int
}

// ValkeyStore persists session context in Valkey, relying on server-side
// key expiry for the TTL.
type ValkeyStore struct {
	client valkey.Client
	prefix string
}

// NewValkeyStore connects to Valkey with the given configuration.
func NewValkeyStore(cfg ValkeyConfig) (*ValkeyStore, error) {
	opt := valkey.ClientOption{
		InitAddress: []string{cfg.URL},
		Password:    cfg.Password,
		SelectDB:    cfg.DB,
	}
	if cfg.TLSEnabled {
		tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
		if cfg.TLSCAFile != "" {
			caCert, err := os.ReadFile(cfg.TLSCAFile)
			if err != nil {
				return nil, fmt.Errorf("failed to read Valkey CA file: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(caCert) {
				return nil, fmt.Errorf("failed to parse Valkey CA file %s", cfg.TLSCAFile)
			}
			tlsConfig.RootCAs = pool
		}
		opt.TLSConfig = tlsConfig
	}

	client, err := valkey.NewClient(opt)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Valkey: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "damien:session:"
	}
	return &ValkeyStore{client: client, prefix: prefix}, nil
}

func (s *ValkeyStore) key(owner, sessionID string) string {
	return s.prefix + owner + ":" + sessionID
}

func (s *ValkeyStore) Get(ctx context.Context, owner, sessionID string) (Context, error) {
	resp := s.client.Do(ctx, s.client.B().Get().Key(s.key(owner, sessionID)).Build())
	data, err := resp.AsBytes()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return Context{}, ErrNotFound
		}
		return Context{}, fmt.Errorf("failed to read session context: %w", err)
	}

	var sc Context
	if err := json.Unmarshal(data, &sc); err != nil {
		return Context{}, fmt.Errorf("failed to decode session context: %w", err)
	}
	return sc, nil
}

func (s *ValkeyStore) Put(ctx context.Context, sc Context, ttl time.Duration) error {
	data, err := json.Marshal(sc)
	if err != nil {
		return fmt.Errorf("failed to encode session context: %w", err)
	}
	cmd := s.client.B().Set().Key(s.key(sc.Owner, sc.SessionID)).Value(string(data)).Ex(ttl).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to write session context: %w", err)
	}
	return nil
}

func (s *ValkeyStore) Delete(ctx context.Context, owner, sessionID string) error {
	cmd := s.client.B().Del().Key(s.key(owner, sessionID)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to delete session context: %w", err)
	}
	return nil
}

func (s *ValkeyStore) Ping(ctx context.Context) error {
	return s.client.Do(ctx, s.client.B().Ping().Build()).Error()
}

func (s *ValkeyStore) Close() error {
	s.client.Close()
	return nil
}
