package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.ChatModel)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
store:
  driver: sqlite
  path: /tmp/loom.db
openai:
  chat_model: gpt-4o
retry:
  max_attempts: 5
  backoff: 2s
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "/tmp/loom.db", cfg.Store.Path)
	assert.Equal(t, "gpt-4o", cfg.OpenAI.ChatModel)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Retry.Backoff)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Unset fields keep their defaults
	assert.Equal(t, "text-embedding-3-small", cfg.OpenAI.EmbedModel)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store.Driver)
}

func TestInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store: [not a map"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TEXTLOOM_STORE_DRIVER", "sqlite")
	t.Setenv("TEXTLOOM_STORE_PATH", "/data/loom.db")
	t.Setenv("TEXTLOOM_RETRY_MAX_ATTEMPTS", "7")
	t.Setenv("TEXTLOOM_LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "/data/loom.db", cfg.Store.Path)
	assert.Equal(t, 7, cfg.Retry.MaxAttempts)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad driver", func(c *Config) { c.Store.Driver = "postgres" }},
		{"zero attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }},
		{"negative backoff", func(c *Config) { c.Retry.Backoff = -time.Second }},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
