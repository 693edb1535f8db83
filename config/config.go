// Package config loads runtime settings. Values are layered in this order,
// later sources winning: built-in defaults, the YAML config file, the
// process environment (including a .env file), then command-line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"phish-feature-poc/evidence"
	"phish-feature-poc/search"
)

// EnvConfigFile names the config file when -c is not given.
const EnvConfigFile = "PHISH_CONFIG"

// Config holds all application configuration. The struct doubles as the
// go-flags option set, so it carries flag, env and yaml tags side by side.
// Options carry no default tags; defaults come from Default() and the
// YAML file, and go-flags leaves options it does not see untouched.
type Config struct {
	ConfigFile string `short:"c" long:"config" env:"PHISH_CONFIG" description:"YAML config file" yaml:"-"`

	Fetch  FetchConfig  `group:"Fetch Options" namespace:"fetch" env-namespace:"PHISH_FETCH" yaml:"fetch"`
	Whois  WhoisConfig  `group:"WHOIS Options" namespace:"whois" env-namespace:"PHISH_WHOIS" yaml:"whois"`
	Search SearchConfig `group:"Search Options" namespace:"search" env-namespace:"PHISH_SEARCH" yaml:"search"`
	Batch  BatchConfig  `group:"Batch Options" namespace:"batch" env-namespace:"PHISH_BATCH" yaml:"batch"`
	Log    LogConfig    `group:"Log Options" namespace:"log" env-namespace:"PHISH_LOG" yaml:"log"`

	MetricsAddr string `long:"metrics-addr" env:"PHISH_METRICS_ADDR" description:"Serve Prometheus metrics on this address during runs (e.g. :9100)" yaml:"metrics_addr"`
}

// FetchConfig controls the page fetch.
type FetchConfig struct {
	Timeout      time.Duration `long:"timeout" env:"TIMEOUT" description:"Page fetch timeout" yaml:"timeout"`
	MaxRedirects int           `long:"max-redirects" env:"MAX_REDIRECTS" description:"Redirects to follow before the fetch counts as failed" yaml:"max_redirects"`
	MaxBodyBytes int64         `long:"max-body-bytes" env:"MAX_BODY_BYTES" description:"Largest response body read" yaml:"max_body_bytes"`
	UserAgent    string        `long:"user-agent" env:"USER_AGENT" description:"User-Agent header" yaml:"user_agent"`
	Render       bool          `long:"render" env:"RENDER" description:"Render pages in headless Chrome instead of a plain GET" yaml:"render"`
	ChromePath   string        `long:"chrome-path" env:"CHROME_PATH" description:"Chrome executable used with --fetch.render" yaml:"chrome_path"`
}

// WhoisConfig controls the registration lookup.
type WhoisConfig struct {
	Timeout  time.Duration `long:"timeout" env:"TIMEOUT" description:"WHOIS query timeout" yaml:"timeout"`
	Disabled bool          `long:"disabled" env:"DISABLED" description:"Skip registration lookups" yaml:"disabled"`
}

// SearchConfig selects the search provider.
type SearchConfig struct {
	Provider      string        `long:"provider" env:"PROVIDER" description:"Search provider" choice:"disabled" choice:"customsearch" choice:"scrape" yaml:"provider"`
	APIKey        string        `long:"api-key" env:"API_KEY" description:"Custom Search API key" yaml:"api_key"`
	EngineID      string        `long:"engine-id" env:"ENGINE_ID" description:"Custom Search engine id (cx)" yaml:"engine_id"`
	Endpoint      string        `long:"endpoint" env:"ENDPOINT" description:"Override the provider endpoint" yaml:"endpoint"`
	Timeout       time.Duration `long:"timeout" env:"TIMEOUT" description:"Search request timeout" yaml:"timeout"`
	MaxResults    int           `long:"max-results" env:"MAX_RESULTS" description:"Results requested per query" yaml:"max_results"`
	RatePerSecond float64       `long:"rate" env:"RATE" description:"Queries per second shared by all workers (0 = unlimited)" yaml:"rate_per_second"`
}

// BatchConfig controls batch extraction.
type BatchConfig struct {
	Workers   int           `long:"workers" env:"WORKERS" description:"Concurrent extractions" yaml:"workers"`
	Timeout   time.Duration `long:"timeout" env:"TIMEOUT" description:"Per-source acquisition timeout" yaml:"timeout"`
	BloomSize uint          `long:"bloom-size" env:"BLOOM_SIZE" description:"Expected number of distinct URLs" yaml:"bloom_size"`
	BloomFP   float64       `long:"bloom-fp" env:"BLOOM_FP" description:"Bloom filter false positive rate" yaml:"bloom_fp"`
	Quiet     bool          `long:"quiet" env:"QUIET" description:"Hide the progress bar" yaml:"quiet"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `long:"level" env:"LEVEL" description:"Log level" choice:"debug" choice:"info" choice:"warn" choice:"error" yaml:"level"`
	JSON  bool   `long:"json" env:"JSON" description:"Log as JSON" yaml:"json"`
}

// Default returns the built-in configuration.
func Default() *Config {
	fetch := evidence.DefaultFetchConfig()
	return &Config{
		Fetch: FetchConfig{
			Timeout:      fetch.Timeout,
			MaxRedirects: fetch.MaxRedirects,
			MaxBodyBytes: fetch.MaxBodyBytes,
			UserAgent:    fetch.UserAgent,
		},
		Whois: WhoisConfig{
			Timeout: 10 * time.Second,
		},
		Search: SearchConfig{
			Provider:      search.ProviderDisabled,
			Timeout:       10 * time.Second,
			MaxResults:    10,
			RatePerSecond: 0.5,
		},
		Batch: BatchConfig{
			Workers:   8,
			Timeout:   20 * time.Second,
			BloomSize: 1000000,
			BloomFP:   0.001,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration that flag parsing starts from: defaults,
// then .env files, then the YAML file named by -c/--config in args or by
// PHISH_CONFIG. Flags themselves are applied by the caller's parser.
func Load(args []string, envFiles ...string) (*Config, error) {
	if err := LoadEnv(envFiles...); err != nil {
		return nil, err
	}

	cfg := Default()
	path := configFileArg(args)
	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
		cfg.ConfigFile = path
	}
	return cfg, nil
}

// LoadEnv loads .env files into the environment without overriding
// variables that are already set. Missing files are ignored.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// LoadFile overlays the YAML file at path onto c. Keys absent from the
// file keep their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// configFileArg finds -c/--config among args without failing on the
// commands and options the real parser will handle.
func configFileArg(args []string) string {
	var opts struct {
		ConfigFile string `short:"c" long:"config"`
	}
	p := flags.NewParser(&opts, flags.IgnoreUnknown)
	if _, err := p.ParseArgs(args); err != nil {
		return ""
	}
	return opts.ConfigFile
}

// Validate checks the configuration after all layers are applied.
func (c *Config) Validate() error {
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch timeout must be > 0, got %s", c.Fetch.Timeout)
	}
	if c.Fetch.MaxRedirects <= 0 {
		return fmt.Errorf("max redirects must be > 0, got %d", c.Fetch.MaxRedirects)
	}
	if c.Fetch.MaxBodyBytes <= 0 {
		return fmt.Errorf("max body bytes must be > 0, got %d", c.Fetch.MaxBodyBytes)
	}
	if c.Whois.Timeout <= 0 {
		return fmt.Errorf("whois timeout must be > 0, got %s", c.Whois.Timeout)
	}

	switch c.Search.Provider {
	case "", search.ProviderDisabled, search.ProviderScrape:
	case search.ProviderCustomSearch:
		if c.Search.APIKey == "" || c.Search.EngineID == "" {
			return fmt.Errorf("search provider %s needs an API key and engine id", c.Search.Provider)
		}
	default:
		return fmt.Errorf("unknown search provider %q", c.Search.Provider)
	}
	if c.Search.RatePerSecond < 0 {
		return fmt.Errorf("search rate must be >= 0, got %f", c.Search.RatePerSecond)
	}

	if c.Batch.Workers <= 0 {
		return fmt.Errorf("number of workers must be > 0, got %d", c.Batch.Workers)
	}
	if c.Batch.BloomSize == 0 {
		return fmt.Errorf("bloom size must be > 0")
	}
	if c.Batch.BloomFP <= 0 || c.Batch.BloomFP >= 1 {
		return fmt.Errorf("bloom filter false positive rate must be between 0 and 1, got %f", c.Batch.BloomFP)
	}

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	return nil
}

// FetchOptions converts the fetch settings for the evidence package.
func (c *Config) FetchOptions() evidence.FetchConfig {
	return evidence.FetchConfig{
		Timeout:      c.Fetch.Timeout,
		MaxRedirects: c.Fetch.MaxRedirects,
		MaxBodyBytes: c.Fetch.MaxBodyBytes,
		UserAgent:    c.Fetch.UserAgent,
	}
}

// BrowserOptions converts the fetch settings for the headless fetcher.
func (c *Config) BrowserOptions() evidence.BrowserConfig {
	return evidence.BrowserConfig{
		Timeout:   c.Fetch.Timeout,
		ExecPath:  c.Fetch.ChromePath,
		UserAgent: c.Fetch.UserAgent,
	}
}

// SearchOptions converts the search settings for search.New.
func (c *Config) SearchOptions() search.Config {
	return search.Config{
		Provider:      c.Search.Provider,
		APIKey:        c.Search.APIKey,
		EngineID:      c.Search.EngineID,
		Endpoint:      c.Search.Endpoint,
		Timeout:       c.Search.Timeout,
		MaxResults:    c.Search.MaxResults,
		RatePerSecond: c.Search.RatePerSecond,
		UserAgent:     c.Fetch.UserAgent,
	}
}

// NewLogger builds the process logger from the log settings.
func (c *Config) NewLogger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(strings.TrimSpace(c.Log.Level))
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(level)
	if c.Log.JSON {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return l, nil
}
