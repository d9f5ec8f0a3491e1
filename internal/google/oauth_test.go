package google

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigWithDefaults(t *testing.T) {
	t.Setenv(EnvCredentialsPath, "")
	t.Setenv(EnvTokenPath, "")

	cfg := Config{}.WithDefaults()
	assert.Contains(t, cfg.CredentialsPath, filepath.Join(".damien", "credentials.json"))
	assert.Contains(t, cfg.TokenPath, filepath.Join(".damien", "token.json"))
}

func TestConfigWithDefaultsFromEnv(t *testing.T) {
	t.Setenv(EnvCredentialsPath, "/etc/damien/creds.json")
	t.Setenv(EnvTokenPath, "/etc/damien/token.json")

	cfg := Config{}.WithDefaults()
	assert.Equal(t, "/etc/damien/creds.json", cfg.CredentialsPath)
	assert.Equal(t, "/etc/damien/token.json", cfg.TokenPath)
}

func TestConfigExplicitPathsWin(t *testing.T) {
	t.Setenv(EnvTokenPath, "/etc/damien/token.json")

	cfg := Config{TokenPath: "/opt/token.json"}.WithDefaults()
	assert.Equal(t, "/opt/token.json", cfg.TokenPath)
}

func TestHasToken(t *testing.T) {
	dir := t.TempDir()
	tokenPath := filepath.Join(dir, "token.json")

	cfg := Config{CredentialsPath: filepath.Join(dir, "creds.json"), TokenPath: tokenPath}
	assert.False(t, HasToken(cfg))

	require.NoError(t, os.WriteFile(tokenPath, []byte("{}"), 0o600))
	assert.True(t, HasToken(cfg))
}

func TestReadToken(t *testing.T) {
	dir := t.TempDir()

	t.Run("valid", func(t *testing.T) {
		path := filepath.Join(dir, "valid.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"access_token":"at","refresh_token":"rt","token_type":"Bearer"}`), 0o600))

		token, err := readToken(path)
		require.NoError(t, err)
		assert.Equal(t, "at", token.AccessToken)
		assert.Equal(t, "rt", token.RefreshToken)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := readToken(filepath.Join(dir, "missing.json"))
		assert.ErrorContains(t, err, "no Google OAuth token found")
	})

	t.Run("not json", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))
		_, err := readToken(path)
		assert.ErrorContains(t, err, "failed to parse token file")
	})

	t.Run("empty token", func(t *testing.T) {
		path := filepath.Join(dir, "empty.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"token_type":"Bearer"}`), 0o600))
		_, err := readToken(path)
		assert.ErrorContains(t, err, "no usable token")
	})
}
