package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultsValidate(t *testing.T) {
	require.NoError(t, Validate(GetDefaults()))
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9191
store:
  type: file
  ttl: 2h
semantic:
  enabled: true
  type: heuristic
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "file", cfg.Store.Type)
	assert.Equal(t, 2*time.Hour, cfg.Store.TTL)
	assert.True(t, cfg.Semantic.Enabled)

	// Untouched keys keep their defaults
	assert.Equal(t, "aegis-pii-mapping", cfg.Store.DefaultKey)
	assert.Equal(t, []string{"all"}, cfg.Privacy.Detectors)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("AEGIS_SERVER_PORT", "9292")
	t.Setenv("AEGIS_STORE_TYPE", "file")

	cfg, err := Load(writeConfig(t, "logging:\n  level: debug\n"))
	require.NoError(t, err)

	assert.Equal(t, 9292, cfg.Server.Port)
	assert.Equal(t, "file", cfg.Store.Type)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	_, err := Load(writeConfig(t, "store:\n  type: s3\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid store type: s3")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"port", func(c *Config) { c.Server.Port = 0 }, "invalid server port"},
		{"detectors", func(c *Config) { c.Privacy.Detectors = nil }, "privacy.detectors"},
		{"semantic type", func(c *Config) { c.Semantic.Type = "llm" }, "invalid semantic type"},
		{"onnx paths", func(c *Config) {
			c.Semantic.Enabled = true
			c.Semantic.Type = "onnx"
			c.Semantic.ModelPath = ""
		}, "model_path"},
		{"postgres url", func(c *Config) { c.Store.Type = "postgres" }, "database_url"},
		{"rate limit", func(c *Config) { c.Security.RateLimit.RequestsPerMin = 0 }, "invalid rate limit"},
		{"log level", func(c *Config) { c.Logging.Level = "trace" }, "invalid log level"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "invalid log format"},
		{"batch", func(c *Config) { c.Batch.WorkerCount = 0 }, "batch.batch_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaults()
			tt.mutate(cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
