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

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
webhook:
  url: https://hooks.example.com/webhook/abc
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "https://hooks.example.com/webhook/abc", cfg.Webhook.URL)
	assert.Equal(t, DefaultWebhookTimeout, cfg.Webhook.Timeout)
	assert.Equal(t, 20*time.Second, GetDuration(cfg.Webhook.Timeout))
	assert.Equal(t, int64(DefaultMaxBodyBytes), cfg.Webhook.MaxBodyBytes)
	assert.Equal(t, DefaultUserAgent, cfg.Webhook.UserAgent)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Cache.Enabled)
	assert.False(t, cfg.WorkersEnabled())

	w := GetWorkerConfig(cfg, DefaultWorkerTaskType)
	assert.True(t, w.Enabled)
	assert.Equal(t, 5, w.MaxJobsActive)
	assert.Equal(t, DefaultWebhookTimeout+10000, w.Timeout)
}

func TestLoadFromFile_ExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("SEARCH_HOOK_ID", "744802d0")
	path := writeConfig(t, `
webhook:
  url: https://hooks.example.com/webhook/${SEARCH_HOOK_ID}
  timeout: 5000
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "https://hooks.example.com/webhook/744802d0", cfg.Webhook.URL)
	assert.Equal(t, 5000, cfg.Webhook.Timeout)
}

func TestLoadFromFile_EnvOverride(t *testing.T) {
	t.Setenv("WEBHOOK_URL", "http://localhost:5678/webhook/test")
	t.Setenv("SERVER_PORT", "9090")
	path := writeConfig(t, `
webhook:
  url: https://hooks.example.com/webhook/abc
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:5678/webhook/test", cfg.Webhook.URL)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		errMsg string
	}{
		{
			name:   "missing webhook url",
			body:   "server:\n  port: 8081\n",
			errMsg: "webhook.url is required",
		},
		{
			name:   "non http url",
			body:   "webhook:\n  url: ftp://example.com\n",
			errMsg: "must be an http(s) URL",
		},
		{
			name:   "cache without redis",
			body:   "webhook:\n  url: https://example.com/hook\ncache:\n  enabled: true\n",
			errMsg: "database.redis.address is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestGetWorkerConfig_Fallback(t *testing.T) {
	cfg := &Config{Webhook: WebhookConfig{Timeout: 1000}}
	w := GetWorkerConfig(cfg, "unknown")
	assert.True(t, w.Enabled)
	assert.Equal(t, 11000, w.Timeout)
}
