// Package config loads the bistx YAML configuration and applies environment
// variable overrides.
package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the bistx pipeline.
type Config struct {
	Storage Storage `yaml:"storage"`
	Fetch   Fetch   `yaml:"fetch"`
	Batch   Batch   `yaml:"batch"`
	Logging Logging `yaml:"logging"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Fetch configures the HTTP session and host failover for the quote API.
type Fetch struct {
	TimeoutSec    int      `yaml:"timeout_sec"`
	MaxRetries    int      `yaml:"max_retries"`
	BackoffFactor float64  `yaml:"backoff_factor"`
	Hosts         []string `yaml:"hosts"`
}

// Batch controls the sequential fetch loop and export naming.
type Batch struct {
	Range    string  `yaml:"range"`
	Interval string  `yaml:"interval"`
	SleepMin float64 `yaml:"sleep_min"` // seconds
	SleepMax float64 `yaml:"sleep_max"` // seconds
	Prefix   string  `yaml:"prefix"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Default returns the built-in configuration, matching the CLI defaults.
func Default() *Config {
	return &Config{
		Storage: Storage{
			DataDir:    "data",
			SQLitePath: "data/bist100_prices.db",
		},
		Fetch: Fetch{
			TimeoutSec:    20,
			MaxRetries:    5,
			BackoffFactor: 1.25,
		},
		Batch: Batch{
			SleepMin: 0.8,
			SleepMax: 1.8,
			Prefix:   "BIST100",
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the YAML configuration file at the given path on top of the
// defaults, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides
// the corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("BISTX_DB_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("BISTX_TIMEOUT_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Fetch.TimeoutSec = n
		}
	}
}
