package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phish-feature-poc/search"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 30, cfg.Fetch.MaxRedirects)
	assert.Equal(t, search.ProviderDisabled, cfg.Search.Provider)
}

func TestLoadFile_OverlaysDefaults(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", `
fetch:
  timeout: 3s
  max_redirects: 5
search:
  provider: customsearch
  api_key: key
  engine_id: cx
batch:
  workers: 2
log:
  level: debug
  json: true
`)
	cfg := Default()
	require.NoError(t, cfg.LoadFile(path))

	assert.Equal(t, 3*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, 5, cfg.Fetch.MaxRedirects)
	assert.Equal(t, Default().Fetch.MaxBodyBytes, cfg.Fetch.MaxBodyBytes)
	assert.Equal(t, "customsearch", cfg.Search.Provider)
	assert.Equal(t, 2, cfg.Batch.Workers)
	assert.True(t, cfg.Log.JSON)
	require.NoError(t, cfg.Validate())
}

func TestLoadFile_Errors(t *testing.T) {
	cfg := Default()
	require.Error(t, cfg.LoadFile(filepath.Join(t.TempDir(), "missing.yaml")))

	bad := writeFile(t, t.TempDir(), "bad.yaml", "fetch: [unclosed")
	require.Error(t, cfg.LoadFile(bad))
}

func TestLoad_ConfigFlagAndEnvFile(t *testing.T) {
	dir := t.TempDir()
	yamlPath := writeFile(t, dir, "phish.yaml", "batch:\n  workers: 3\n")

	cfg, err := Load([]string{"batch", "--config", yamlPath, "-i", "targets.txt"}, filepath.Join(dir, "absent.env"))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Batch.Workers)
	assert.Equal(t, yamlPath, cfg.ConfigFile)
}

func TestLoad_ConfigFromDotEnv(t *testing.T) {
	dir := t.TempDir()
	yamlPath := writeFile(t, dir, "phish.yaml", "whois:\n  disabled: true\n")
	envPath := writeFile(t, dir, ".env", "PHISH_CONFIG="+yamlPath+"\n")

	_, preset := os.LookupEnv(EnvConfigFile)
	if preset {
		t.Skip("PHISH_CONFIG set in the test environment")
	}
	t.Cleanup(func() { os.Unsetenv(EnvConfigFile) })

	cfg, err := Load(nil, envPath)
	require.NoError(t, err)
	assert.True(t, cfg.Whois.Disabled)
}

func TestConfigFileArg(t *testing.T) {
	assert.Equal(t, "a.yaml", configFileArg([]string{"-c", "a.yaml", "extract", "http://x"}))
	assert.Equal(t, "b.yaml", configFileArg([]string{"predict", "--unknown", "--config=b.yaml"}))
	assert.Equal(t, "", configFileArg([]string{"extract", "http://x"}))
}

func TestFlagsAndEnvOverrideFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", "batch:\n  workers: 3\nfetch:\n  max_redirects: 7\n")
	cfg := Default()
	require.NoError(t, cfg.LoadFile(path))

	t.Setenv("PHISH_FETCH_MAX_REDIRECTS", "9")
	t.Setenv("PHISH_SEARCH_PROVIDER", "scrape")

	_, err := flags.NewParser(cfg, flags.None).ParseArgs([]string{"--batch.workers", "12", "--log.level", "warn"})
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.Batch.Workers)
	assert.Equal(t, 9, cfg.Fetch.MaxRedirects)
	assert.Equal(t, "scrape", cfg.Search.Provider)
	assert.Equal(t, "warn", cfg.Log.Level)
	// untouched options keep their layered values
	assert.Equal(t, Default().Fetch.Timeout, cfg.Fetch.Timeout)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"fetch timeout", func(c *Config) { c.Fetch.Timeout = 0 }},
		{"redirects", func(c *Config) { c.Fetch.MaxRedirects = 0 }},
		{"body", func(c *Config) { c.Fetch.MaxBodyBytes = -1 }},
		{"whois timeout", func(c *Config) { c.Whois.Timeout = 0 }},
		{"customsearch without key", func(c *Config) { c.Search.Provider = search.ProviderCustomSearch }},
		{"unknown provider", func(c *Config) { c.Search.Provider = "bing" }},
		{"negative rate", func(c *Config) { c.Search.RatePerSecond = -1 }},
		{"workers", func(c *Config) { c.Batch.Workers = 0 }},
		{"bloom size", func(c *Config) { c.Batch.BloomSize = 0 }},
		{"bloom fp", func(c *Config) { c.Batch.BloomFP = 1 }},
		{"log level", func(c *Config) { c.Log.Level = "loud" }},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConversions(t *testing.T) {
	cfg := Default()
	cfg.Fetch.ChromePath = "/usr/bin/chromium"
	cfg.Search.Provider = search.ProviderScrape

	assert.Equal(t, cfg.Fetch.MaxRedirects, cfg.FetchOptions().MaxRedirects)
	assert.Equal(t, "/usr/bin/chromium", cfg.BrowserOptions().ExecPath)
	assert.Equal(t, search.ProviderScrape, cfg.SearchOptions().Provider)
	assert.Equal(t, cfg.Fetch.UserAgent, cfg.SearchOptions().UserAgent)

	cfg.Log.Level = "debug"
	logger, err := cfg.NewLogger()
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
}
