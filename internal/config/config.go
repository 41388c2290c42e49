package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

type Config struct {
	Bench   BenchConfig   `json:"bench"`
	Proxies ProxyConfig   `json:"proxies"`
	API     APIConfig     `json:"api"`
	Metrics MetricsConfig `json:"metrics"`
	Logging LoggingConfig `json:"logging"`
}

type BenchConfig struct {
	Target             string  `json:"target"`
	Quantity           int     `json:"quantity"`
	Concurrency        int     `json:"concurrency"`
	TimeoutMs          int     `json:"timeout_ms"`
	InsecureSkipVerify bool    `json:"insecure_skip_verify"`
	KeepAlive          bool    `json:"keep_alive"`
	RatePerSecond      float64 `json:"rate_per_second"`
	ProgressIntervalMs int     `json:"progress_interval_ms"`
	OutputFormat       string  `json:"output_format"` // "text" or "json"
	Trace              bool    `json:"trace"`
}

type ProxyConfig struct {
	// Store selects how Path is read: "list" (text file or http(s) URL),
	// "json", "sqlite" or "redis". An empty Path means direct connections.
	Store                string `json:"store"`
	Path                 string `json:"path"`
	Prefilter            bool   `json:"prefilter"`
	PrefilterTimeoutMs   int    `json:"prefilter_timeout_ms"`
	PrefilterConcurrency int    `json:"prefilter_concurrency"`
}

type APIConfig struct {
	// Addr enables the live status server when non-empty.
	Addr               string `json:"addr"`
	APIKeyEnv          string `json:"api_key_env"`
	EnableAPIKeyAuth   bool   `json:"enable_api_key_auth"`
	RateLimitPerMinute int    `json:"rate_limit_per_minute"`
	EnableIPRateLimit  bool   `json:"enable_ip_rate_limit"`
}

type MetricsConfig struct {
	Enabled   bool   `json:"enabled"`
	Endpoint  string `json:"endpoint"`
	Namespace string `json:"namespace"`
}

type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"` // "text" or "json"
}

// Default returns a configuration with every optional field populated.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads configuration from a JSON file. Unset fields get defaults;
// validation is left to the caller because flags may still override values.
func Load(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config JSON: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Bench.TimeoutMs == 0 {
		c.Bench.TimeoutMs = 2000
	}
	if c.Bench.ProgressIntervalMs == 0 {
		c.Bench.ProgressIntervalMs = 1000
	}
	if c.Bench.OutputFormat == "" {
		c.Bench.OutputFormat = "text"
	}
	if c.Proxies.Store == "" {
		c.Proxies.Store = "list"
	}
	if c.Proxies.PrefilterTimeoutMs == 0 {
		c.Proxies.PrefilterTimeoutMs = 1000
	}
	if c.Proxies.PrefilterConcurrency == 0 {
		c.Proxies.PrefilterConcurrency = 100
	}
	if c.API.RateLimitPerMinute == 0 {
		c.API.RateLimitPerMinute = 600
	}
	if c.API.APIKeyEnv == "" {
		c.API.APIKeyEnv = "PROXYBENCH_API_KEY"
	}
	if c.Metrics.Endpoint == "" {
		c.Metrics.Endpoint = "/metrics"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "proxybench"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks configuration validity. Every error wraps ErrInvalid.
func (c *Config) Validate() error {
	if _, err := c.Bench.TargetURL(); err != nil {
		return err
	}
	if c.Bench.Quantity < 1 {
		return fmt.Errorf("%w: quantity %d must be greater or equal 1", ErrInvalid, c.Bench.Quantity)
	}
	if c.Bench.Concurrency < 1 {
		return fmt.Errorf("%w: concurrency %d must be greater or equal 1", ErrInvalid, c.Bench.Concurrency)
	}
	if c.Bench.Quantity < c.Bench.Concurrency {
		return fmt.Errorf("%w: quantity %d must be greater or equal concurrency %d",
			ErrInvalid, c.Bench.Quantity, c.Bench.Concurrency)
	}
	if c.Bench.TimeoutMs < 1 {
		return fmt.Errorf("%w: timeout_ms %d must be greater or equal 1", ErrInvalid, c.Bench.TimeoutMs)
	}
	if c.Bench.RatePerSecond < 0 {
		return fmt.Errorf("%w: rate_per_second must not be negative", ErrInvalid)
	}
	if c.Bench.ProgressIntervalMs < 1 {
		return fmt.Errorf("%w: progress_interval_ms must be greater or equal 1", ErrInvalid)
	}
	if c.Bench.OutputFormat != "text" && c.Bench.OutputFormat != "json" {
		return fmt.Errorf("%w: output format must be 'text' or 'json'", ErrInvalid)
	}
	switch c.Proxies.Store {
	case "list", "json", "sqlite", "redis":
	default:
		return fmt.Errorf("%w: proxy store must be 'list', 'json', 'sqlite' or 'redis'", ErrInvalid)
	}
	if c.Proxies.Store != "list" && c.Proxies.Path == "" {
		return fmt.Errorf("%w: proxy store %q needs a path", ErrInvalid, c.Proxies.Store)
	}
	if c.Proxies.Prefilter && (c.Proxies.PrefilterTimeoutMs < 1 || c.Proxies.PrefilterConcurrency < 1) {
		return fmt.Errorf("%w: prefilter timeout and concurrency must be positive", ErrInvalid)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("%w: log format must be 'text' or 'json'", ErrInvalid)
	}
	return nil
}

// TargetURL parses and checks the benchmark target.
func (b BenchConfig) TargetURL() (*url.URL, error) {
	if b.Target == "" {
		return nil, fmt.Errorf("%w: target URL is required", ErrInvalid)
	}
	u, err := url.Parse(b.Target)
	if err != nil {
		return nil, fmt.Errorf("%w: target URL %q: %v", ErrInvalid, b.Target, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: target URL %q must use http or https", ErrInvalid, b.Target)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: target URL %q has no host", ErrInvalid, b.Target)
	}
	return u, nil
}

func (b BenchConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutMs) * time.Millisecond
}

func (b BenchConfig) ProgressInterval() time.Duration {
	return time.Duration(b.ProgressIntervalMs) * time.Millisecond
}
