package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "llama2:7b", cfg.Model.Name)
	assert.Equal(t, 512, cfg.Model.MaxTokens)
	assert.InDelta(t, 0.7, cfg.Model.Temperature, 1e-9)
	assert.False(t, cfg.Model.EnableStreaming)
	assert.Equal(t, 3600, cfg.Storage.CacheTTL)
	assert.Equal(t, time.Hour, cfg.Storage.CacheTTLDuration())
	assert.Equal(t, "", cfg.Storage.Backend())

	assert.Equal(t, []string{"/usr/local/bin/ollama", "ollama", "/opt/python/ollama", "/var/task/ollama"}, cfg.Runtime.Paths)
	assert.Equal(t, 5*time.Second, cfg.Runtime.VersionTimeout)
	assert.Equal(t, 10*time.Second, cfg.Runtime.ListTimeout)
	assert.Equal(t, 30*time.Second, cfg.Runtime.StartScriptTimeout)
	assert.Equal(t, 5*time.Second, cfg.Runtime.SettleDelay)
	assert.Equal(t, 15*time.Second, cfg.Runtime.StartConfirmTimeout)
	assert.Equal(t, 300*time.Second, cfg.Runtime.PullTimeout)
	assert.Equal(t, 60*time.Second, cfg.Runtime.LoadTimeout)
	assert.Equal(t, 120*time.Second, cfg.Runtime.GenerateTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Demo.MinDelay)
	assert.Equal(t, 2*time.Second, cfg.Demo.MaxDelay)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("MODEL_NAME", "phi3:mini")
	t.Setenv("MAX_TOKENS", "256")
	t.Setenv("TEMPERATURE", "1.2")
	t.Setenv("CACHE_TTL", "60")
	t.Setenv("S3_BUCKET", "tcc-cache")
	t.Setenv("ENABLE_STREAMING", "true")
	t.Setenv("OLLAMA_PATHS", "/a/ollama,/b/ollama")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "phi3:mini", cfg.Model.Name)
	assert.Equal(t, 256, cfg.Model.MaxTokens)
	assert.InDelta(t, 1.2, cfg.Model.Temperature, 1e-9)
	assert.Equal(t, 60, cfg.Storage.CacheTTL)
	assert.Equal(t, "s3", cfg.Storage.Backend())
	assert.True(t, cfg.Model.EnableStreaming)
	assert.Equal(t, []string{"/a/ollama", "/b/ollama"}, cfg.Runtime.Paths)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  port: 9090
storage:
  type: disk
  data_dir: /tmp/tcc-cache
runtime:
  transport: openai
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "disk", cfg.Storage.Backend())
	assert.Equal(t, "/tmp/tcc-cache", cfg.Storage.DataDir)
	assert.Equal(t, "openai", cfg.Runtime.Transport)
}

func TestLoadRejectsOutOfRangeValues(t *testing.T) {
	tests := []struct {
		name string
		env  string
		val  string
	}{
		{"max tokens too high", "MAX_TOKENS", "4096"},
		{"temperature negative", "TEMPERATURE", "-1"},
		{"unknown storage", "STORAGE_TYPE", "dynamodb"},
		{"unknown log level", "LOG_LEVEL", "trace"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.env, tt.val)
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}
