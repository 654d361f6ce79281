// Package config loads and validates the application configuration from
// YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/fsbridge/fsbridge/internal/cache"
	"github.com/fsbridge/fsbridge/internal/metrics"
)

// Configuration represents the complete application configuration
type Configuration struct {
	Global   GlobalConfig      `yaml:"global"`
	Cache    cache.Config      `yaml:"cache"`
	Listings ListingsConfig    `yaml:"listings"`
	Registry RegistryConfig    `yaml:"registry"`
	Retry    RetryConfig       `yaml:"retry"`
	Metrics  metrics.Config    `yaml:"metrics"`
	Backends map[string]Option `yaml:"backends"`
}

// GlobalConfig represents global application settings
type GlobalConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// ListingsConfig controls the per-backend directory listing cache.
type ListingsConfig struct {
	TTL      time.Duration `yaml:"ttl"`
	Capacity int           `yaml:"capacity"`
}

// RegistryConfig controls filesystem instance reuse.
type RegistryConfig struct {
	SkipCache bool `yaml:"skip_cache"`
}

// RetryConfig represents backend retry settings
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

// Option is a flat backend option map keyed by option name.
type Option map[string]string

// NewDefault returns a configuration with sensible defaults
func NewDefault() *Configuration {
	return &Configuration{
		Global: GlobalConfig{
			LogLevel:  "INFO",
			LogFormat: "text",
		},
		Cache: cache.DefaultConfig(),
		Listings: ListingsConfig{
			TTL:      30 * time.Second,
			Capacity: 4096,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   100 * time.Millisecond,
			MaxDelay:    5 * time.Second,
		},
		Metrics: *metrics.DefaultConfig(),
	}
}

// LoadFromFile loads configuration from a YAML file
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// LoadFromEnv loads configuration from environment variables
func (c *Configuration) LoadFromEnv() error {
	if val := os.Getenv("FSBRIDGE_LOG_LEVEL"); val != "" {
		c.Global.LogLevel = val
	}
	if val := os.Getenv("FSBRIDGE_LOG_FORMAT"); val != "" {
		c.Global.LogFormat = val
	}

	if val := os.Getenv("FSBRIDGE_CACHE_STRATEGY"); val != "" {
		c.Cache.Strategy = cache.Strategy(val)
	}
	if val := os.Getenv("FSBRIDGE_CACHE_BLOCK_SIZE"); val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			c.Cache.BlockSize = n
		}
	}
	if val := os.Getenv("FSBRIDGE_CACHE_MAX_BLOCKS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Cache.MaxBlocks = n
		}
	}
	if val := os.Getenv("FSBRIDGE_CACHE_READAHEAD"); val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			c.Cache.Readahead = n
		}
	}

	if val := os.Getenv("FSBRIDGE_LISTINGS_TTL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.Listings.TTL = d
		}
	}
	if val := os.Getenv("FSBRIDGE_REGISTRY_SKIP_CACHE"); val != "" {
		c.Registry.SkipCache = val == "true" || val == "1"
	}

	if val := os.Getenv("FSBRIDGE_RETRY_MAX_ATTEMPTS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Retry.MaxAttempts = n
		}
	}
	if val := os.Getenv("FSBRIDGE_METRICS_ENABLED"); val != "" {
		c.Metrics.Enabled = val == "true" || val == "1"
	}

	return nil
}

// Validate checks the configuration for consistency
func (c *Configuration) Validate() error {
	level := strings.ToUpper(c.Global.LogLevel)
	switch level {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("invalid log level: %s", c.Global.LogLevel)
	}
	switch c.Global.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid log format: %s", c.Global.LogFormat)
	}

	if err := c.Cache.Validate(); err != nil {
		return err
	}

	if c.Listings.TTL < 0 {
		return fmt.Errorf("listings ttl cannot be negative")
	}
	if c.Listings.Capacity < 0 {
		return fmt.Errorf("listings capacity cannot be negative")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry max_attempts must be at least 1")
	}
	if c.Retry.BaseDelay < 0 || c.Retry.MaxDelay < 0 {
		return fmt.Errorf("retry delays cannot be negative")
	}
	return nil
}

// Load builds the effective configuration: defaults, then the first
// config file found, then environment overrides.
func Load(path string) (*Configuration, error) {
	cfg := NewDefault()

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := cfg.LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findConfigFile() string {
	candidates := []string{
		"fsbridge.yaml",
		"fsbridge.yml",
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates,
			filepath.Join(home, ".config", "fsbridge", "config.yaml"),
			filepath.Join(home, ".fsbridge.yaml"),
		)
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}
