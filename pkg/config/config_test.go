package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.Backend.BaseURL)
	assert.Equal(t, "/status", cfg.Backend.StatusPath)
	assert.Equal(t, "/api/login", cfg.Backend.LoginPath)
	assert.Equal(t, 2*time.Second, cfg.Poll.Interval.Duration)
	assert.Equal(t, PollModePoll, cfg.Poll.Mode)
	assert.True(t, cfg.Poll.DiscardStale)
	assert.False(t, cfg.Session.Enabled)
	assert.Equal(t, "Ninguno", cfg.UI.NoneSentinel)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	p := writeFile(t, "dash.yaml", `
backend:
  base_url: https://bot.example.com
  request_timeout: 5
poll:
  interval: 500ms
  discard_stale: false
session:
  enabled: true
  store: badger
  dir: /tmp/sess
ui:
  adapter: console
`)
	cfg, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, "https://bot.example.com", cfg.Backend.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Backend.RequestTimeout.Duration)
	assert.Equal(t, 500*time.Millisecond, cfg.Poll.Interval.Duration)
	assert.False(t, cfg.Poll.DiscardStale)
	assert.True(t, cfg.Session.Enabled)
	assert.Equal(t, StoreBadger, cfg.Session.Store)
	assert.Equal(t, UIConsole, cfg.UI.Adapter)
	// 文件里没写的字段保留默认值
	assert.Equal(t, "/status", cfg.Backend.StatusPath)
}

func TestLoad_JSONFile(t *testing.T) {
	p := writeFile(t, "dash.json", `{"poll":{"interval":"3s","mode":"stream"}}`)
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.Poll.Interval.Duration)
	assert.Equal(t, PollModeStream, cfg.Poll.Mode)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	p := writeFile(t, "dash.yaml", "poll:\n  interval: 5s\n")
	t.Setenv("STATUSDASH_POLL_INTERVAL", "1s")
	t.Setenv("STATUSDASH_BASE_URL", "http://10.0.0.2:9000")
	t.Setenv("STATUSDASH_SESSION_ENABLED", "true")
	t.Setenv("STATUSDASH_EMAIL", "a@b.c")

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, time.Second, cfg.Poll.Interval.Duration)
	assert.Equal(t, "http://10.0.0.2:9000", cfg.Backend.BaseURL)
	assert.True(t, cfg.Session.Enabled)
	assert.Equal(t, "a@b.c", cfg.Session.Email)
}

func TestLoad_MetricsAndLoginLimitFromEnv(t *testing.T) {
	t.Setenv("STATUSDASH_METRICS_ADDR", "127.0.0.1:6060")
	t.Setenv("STATUSDASH_LOGIN_ATTEMPTS", "3")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:6060", cfg.Metrics.Addr)
	assert.Equal(t, 3, cfg.UI.LoginAttempts)
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	p := writeFile(t, "dash.toml", "x = 1")
	_, err := Load(p)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"非 http 地址", func(c *Config) { c.Backend.BaseURL = "ftp://x" }},
		{"缺少 host", func(c *Config) { c.Backend.BaseURL = "http://" }},
		{"轮询周期为 0", func(c *Config) { c.Poll.Interval.Duration = 0 }},
		{"未知轮询模式", func(c *Config) { c.Poll.Mode = "push" }},
		{"未知存储", func(c *Config) { c.Session.Enabled = true; c.Session.Store = "redis" }},
		{"未知适配器", func(c *Config) { c.UI.Adapter = "gtk" }},
		{"空占位值", func(c *Config) { c.UI.NoneSentinel = " " }},
		{"负超时", func(c *Config) { c.Backend.RequestTimeout.Duration = -time.Second }},
		{"负登录次数", func(c *Config) { c.UI.LoginAttempts = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Default()
			tc.mutate(c)
			assert.Error(t, c.Validate())
		})
	}

	assert.NoError(t, Default().Validate())
}
