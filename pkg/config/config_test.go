package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 2.0, cfg.RateLimit.RequestsPerSecond)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 30*time.Second, cfg.XHS.Timeout)
	assert.Equal(t, "./output", cfg.Output.Directory)
	assert.Equal(t, "json", cfg.Output.Format)
	assert.Equal(t, 5, cfg.Download.Concurrency)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("XHS_COOKIES_FILE", "/tmp/cookies.json")
	t.Setenv("XHS_SIGN_SERVER_URL", "http://127.0.0.1:5005/sign")
	t.Setenv("XHS_RATE_LIMIT", "0.5")
	t.Setenv("XHS_TIMEOUT", "10s")
	t.Setenv("XHS_CONCURRENT_DOWNLOADS", "8")
	t.Setenv("XHS_OUTPUT_DIR", "/tmp/xhs-out")
	t.Setenv("XHS_LOG_LEVEL", "debug")
	t.Setenv("XHS_RATE_LIMIT_ENABLED", "false")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "/tmp/cookies.json", cfg.XHS.CookiesFile)
	assert.Equal(t, "http://127.0.0.1:5005/sign", cfg.XHS.SignServerURL)
	assert.Equal(t, 0.5, cfg.RateLimit.RequestsPerSecond)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 10*time.Second, cfg.XHS.Timeout)
	assert.Equal(t, 8, cfg.Download.Concurrency)
	assert.Equal(t, "/tmp/xhs-out", cfg.Output.Directory)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvInvalidValues(t *testing.T) {
	t.Setenv("XHS_RATE_LIMIT", "fast")
	t.Setenv("XHS_TIMEOUT", "soon")

	cfg := DefaultConfig()
	err := cfg.LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "XHS_RATE_LIMIT")
	assert.Contains(t, err.Error(), "XHS_TIMEOUT")
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
xhs:
  cookies_file: cookies.json
  timeout: 15s
rate_limit:
  enabled: true
  requests_per_second: 1.5
  burst: 3
output:
  directory: ./exports
  format: csv
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, "cookies.json", cfg.XHS.CookiesFile)
	assert.Equal(t, 15*time.Second, cfg.XHS.Timeout)
	assert.Equal(t, 1.5, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 3.0, cfg.RateLimit.Burst)
	assert.Equal(t, "csv", cfg.Output.Format)
	// Untouched sections keep defaults.
	assert.Equal(t, 5, cfg.Download.Concurrency)
}

func TestLoadFromFileErrors(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")))

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("xhs: [unclosed"), 0644))
	assert.Error(t, cfg.LoadFromFile(bad))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"zero rate", func(c *Config) { c.RateLimit.RequestsPerSecond = 0 }, "RequestsPerSecond"},
		{"negative rate", func(c *Config) { c.RateLimit.RequestsPerSecond = -1 }, "RequestsPerSecond"},
		{"fractional burst", func(c *Config) { c.RateLimit.Burst = 0.5 }, "burst"},
		{"bad format", func(c *Config) { c.Output.Format = "xml" }, "Format"},
		{"too many workers", func(c *Config) { c.Download.Concurrency = 64 }, "Concurrency"},
		{"pattern without index", func(c *Config) { c.Download.FileNamePattern = "{note_id}.{ext}" }, "{index}"},
		{"bad sign url", func(c *Config) { c.XHS.SignServerURL = "not a url" }, "SignServerURL"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "log level"},
		{"retry delays inverted", func(c *Config) { c.Retry.MaxDelay = time.Millisecond }, "max delay"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.XHS.Account = "work"
	cfg.RateLimit.RequestsPerSecond = 0.25
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, "work", loaded.XHS.Account)
	assert.Equal(t, 0.25, loaded.RateLimit.RequestsPerSecond)
}

func TestLoadPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output:\n  directory: from-file\n  format: csv\n"), 0644))
	t.Setenv("XHS_OUTPUT_DIR", "from-env")

	cfg, err := Load(path, map[string]interface{}{"format": "both", "rate": 4.0})
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Output.Directory)
	assert.Equal(t, "both", cfg.Output.Format)
	assert.Equal(t, 4.0, cfg.RateLimit.RequestsPerSecond)

	_, err = Load(path, map[string]interface{}{"log-level": "shouting"})
	assert.Error(t, err)
}
