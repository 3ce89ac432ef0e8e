package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points HOME at a temporary directory and clears overrides that
// the developer's shell may set.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range []string{"OLLY_APP_DIR", "OLLY_LOG_LEVEL", "LOG_LEVEL", "OLLY_MAX_TOKENS", "OLLY_ANTHROPIC_BASE_URL", "OLLY_STREAM_TIMEOUT"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
	return home
}

func TestLoad_Defaults(t *testing.T) {
	home := isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)

	appDir := filepath.Join(home, ".olly")
	assert.Equal(t, appDir, cfg.AppDir)
	assert.Equal(t, filepath.Join(appDir, "keys"), cfg.KeysDir)
	assert.Equal(t, filepath.Join(appDir, "config.env"), cfg.LegacyConfig)
	assert.True(t, cfg.Keyring.Enabled)
	assert.Equal(t, "olly", cfg.Keyring.Service)
	assert.Equal(t, "2023-06-01", cfg.Anthropic.Version)
	assert.Equal(t, 0.7, cfg.Perplexity.Temperature)
	assert.Equal(t, 1024, cfg.MaxTokens)
	assert.Equal(t, 120*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 10*time.Minute, cfg.StreamTimeout)
	assert.Equal(t, "INFO", cfg.Log.Level)
	assert.Equal(t, "pretty", cfg.Log.Format)
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	home := isolate(t)
	appDir := filepath.Join(home, ".olly")
	require.NoError(t, os.MkdirAll(appDir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(appDir, "config.yaml"), []byte(
		"max_tokens: 2048\n"+
			"stream_timeout: 30s\n"+
			"anthropic:\n  base_url: http://file.example\n  model: claude-opus\n"+
			"keyring:\n  enabled: false\n"), 0o600))

	t.Setenv("OLLY_ANTHROPIC_BASE_URL", "http://env.example")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 2048, cfg.MaxTokens)
	assert.Equal(t, 30*time.Second, cfg.StreamTimeout)
	assert.Equal(t, "http://env.example", cfg.Anthropic.BaseURL, "environment wins over the file")
	assert.Equal(t, "claude-opus", cfg.Anthropic.Model)
	assert.False(t, cfg.Keyring.Enabled)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_AppDirOverride_MovesDerivedPaths(t *testing.T) {
	isolate(t)
	custom := t.TempDir()
	t.Setenv("OLLY_APP_DIR", custom)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(custom, "keys"), cfg.KeysDir)
	assert.Equal(t, filepath.Join(custom, "config.env"), cfg.LegacyConfig)
}

func TestLoad_ExplicitMissingFile_Fails(t *testing.T) {
	isolate(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	cfg := Config{AppDir: "x", MaxTokens: -1, Log: LogConfig{Format: "xml"}}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_tokens")
	assert.Contains(t, err.Error(), "log.format")
}
