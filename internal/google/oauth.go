package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
)

// Environment variables overriding the default credential locations.
const (
	EnvCredentialsPath = "DAMIEN_GMAIL_CREDENTIALS_PATH"
	EnvTokenPath       = "DAMIEN_GMAIL_TOKEN_PATH"
)

// Config holds the locations of the OAuth client secrets file and the cached
// token file.
type Config struct {
	CredentialsPath string
	TokenPath       string
}

// WithDefaults fills unset paths from the environment, falling back to
// ~/.damien/credentials.json and ~/.damien/token.json.
func (c Config) WithDefaults() Config {
	if c.CredentialsPath == "" {
		c.CredentialsPath = os.Getenv(EnvCredentialsPath)
	}
	if c.TokenPath == "" {
		c.TokenPath = os.Getenv(EnvTokenPath)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	if c.CredentialsPath == "" {
		c.CredentialsPath = filepath.Join(home, ".damien", "credentials.json")
	}
	if c.TokenPath == "" {
		c.TokenPath = filepath.Join(home, ".damien", "token.json")
	}
	return c
}

// HasToken reports whether a token file exists at the configured path.
func HasToken(cfg Config) bool {
	cfg = cfg.WithDefaults()
	_, err := os.Stat(cfg.TokenPath)
	return err == nil
}

// GetTokenSource builds a refreshing token source from the configured
// credential files.
func GetTokenSource(ctx context.Context, cfg Config) (oauth2.TokenSource, error) {
	cfg = cfg.WithDefaults()

	secrets, err := os.ReadFile(cfg.CredentialsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read OAuth client secrets from %s: %w", cfg.CredentialsPath, err)
	}
	conf, err := google.ConfigFromJSON(secrets, gmail.MailGoogleComScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse OAuth client secrets: %w", err)
	}

	token, err := readToken(cfg.TokenPath)
	if err != nil {
		return nil, err
	}

	return conf.TokenSource(ctx, token), nil
}

func readToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("no Google OAuth token found at %s: %w", path, err)
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to parse token file %s: %w", path, err)
	}
	if token.AccessToken == "" && token.RefreshToken == "" {
		return nil, fmt.Errorf("token file %s holds no usable token", path)
	}
	return &token, nil
}

// GetHTTPClient returns an HTTP client configured with OAuth2 authentication.
// The client is configured to use HTTP/1.1 to avoid HTTP/2 protocol errors.
func GetHTTPClient(ctx context.Context, cfg Config) (*http.Client, error) {
	ts, err := GetTokenSource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	client := oauth2.NewClient(ctx, ts)

	// Force HTTP/1.1 by disabling HTTP/2
	transport := client.Transport.(*oauth2.Transport)
	transport.Base = &http.Transport{
		ForceAttemptHTTP2: false,
	}

	return client, nil
}
