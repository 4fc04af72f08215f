// Package common provides shared utilities for Sieve
package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for Sieve
type Config struct {
	Environment string          `toml:"environment"`
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Providers   ProvidersConfig `toml:"providers"`
	Scanner     ScannerConfig   `toml:"scanner"`
	Cache       CacheConfig     `toml:"cache"`
	Summarizer  GeminiConfig    `toml:"summarizer"`
	Logging     LoggingConfig   `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig holds the job store path.
type StorageConfig struct {
	Path string `toml:"path"`
}

// ProvidersConfig holds the ranked market data provider configurations.
// Chain order is fixed: primary, secondary, tertiary.
type ProvidersConfig struct {
	Primary   ProviderConfig `toml:"primary"`
	Secondary ProviderConfig `toml:"secondary"`
	Tertiary  ProviderConfig `toml:"tertiary"`
}

// ProviderConfig holds one provider's connection and budget settings.
// RateLimit is the rolling-window call budget; Window is "60s" for
// per-minute vendors or "24h" for per-day vendors. Budgets should sit
// below the advertised vendor ceiling.
type ProviderConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	RateLimit int    `toml:"rate_limit"`
	Window    string `toml:"window"`
	Timeout   string `toml:"timeout"`
}

// GetWindow parses and returns the rate limit window duration.
func (c *ProviderConfig) GetWindow() time.Duration {
	d, err := time.ParseDuration(c.Window)
	if err != nil || d <= 0 {
		return time.Minute
	}
	return d
}

// GetTimeout parses and returns the per-call timeout duration.
func (c *ProviderConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// ScannerConfig holds worker pool and job lifecycle settings.
type ScannerConfig struct {
	MaxWorkers     int      `toml:"max_workers"`
	PublishEvery   int      `toml:"publish_every"`
	RetentionHours int      `toml:"retention_hours"`
	CustomIndices  []string `toml:"custom_indices"`
}

// GetMaxWorkers bounds the pool so all workers calling providers at once
// stay under the aggregate rate budget.
func (c *ScannerConfig) GetMaxWorkers() int {
	if c.MaxWorkers <= 0 {
		return 4
	}
	return c.MaxWorkers
}

// GetPublishEvery returns the partial-result publish cadence in symbols.
func (c *ScannerConfig) GetPublishEvery() int {
	if c.PublishEvery <= 0 {
		return 5
	}
	return c.PublishEvery
}

// GetRetention returns the terminal job retention period.
func (c *ScannerConfig) GetRetention() time.Duration {
	if c.RetentionHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.RetentionHours) * time.Hour
}

// CacheConfig holds quote cache settings.
type CacheConfig struct {
	MaxEntries int `toml:"max_entries"`
}

// GetMaxEntries returns the cache size cap.
func (c *CacheConfig) GetMaxEntries() int {
	if c.MaxEntries <= 0 {
		return 1000
	}
	return c.MaxEntries
}

// GeminiConfig holds the narrative summarizer configuration.
type GeminiConfig struct {
	APIKey string `toml:"api_key"`
	Model  string `toml:"model"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			Path: "data/jobs",
		},
		Providers: ProvidersConfig{
			Primary: ProviderConfig{
				BaseURL:   "https://www.alphavantage.co",
				RateLimit: 70,
				Window:    "60s",
				Timeout:   "10s",
			},
			Secondary: ProviderConfig{
				BaseURL:   "https://finnhub.io/api/v1",
				RateLimit: 50,
				Window:    "60s",
				Timeout:   "10s",
			},
			Tertiary: ProviderConfig{
				BaseURL:   "https://query1.finance.yahoo.com",
				RateLimit: 2000,
				Window:    "24h",
				Timeout:   "10s",
			},
		},
		Scanner: ScannerConfig{
			MaxWorkers:     4,
			PublishEvery:   5,
			RetentionHours: 24,
		},
		Cache: CacheConfig{
			MaxEntries: 1000,
		},
		Summarizer: GeminiConfig{
			Model: "gemini-2.0-flash",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier)
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue // Skip missing files
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("SIEVE_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("SIEVE_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("SIEVE_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("SIEVE_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if path := os.Getenv("SIEVE_DATA_PATH"); path != "" {
		config.Storage.Path = path
	}

	if key := os.Getenv("SIEVE_PRIMARY_API_KEY"); key != "" {
		config.Providers.Primary.APIKey = key
	}
	if key := os.Getenv("SIEVE_SECONDARY_API_KEY"); key != "" {
		config.Providers.Secondary.APIKey = key
	}
	if key := os.Getenv("SIEVE_TERTIARY_API_KEY"); key != "" {
		config.Providers.Tertiary.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		config.Summarizer.APIKey = key
	}
}
