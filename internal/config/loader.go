package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Load reads and parses the configuration file and environment variables
func Load(configPath string) (*Config, *Secrets, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	secrets, err := LoadSecrets()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load secrets: %w", err)
	}

	return &cfg, secrets, nil
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.Service.RateLimitPerMinute == 0 {
		cfg.Service.RateLimitPerMinute = 60
	}
	if cfg.Service.HTTPTimeoutSeconds == 0 {
		cfg.Service.HTTPTimeoutSeconds = 30
	}
	if cfg.Service.MaxRetries == 0 {
		cfg.Service.MaxRetries = 3
	}
	if cfg.Session.DataDir == "" {
		cfg.Session.DataDir = "data"
	}
	if cfg.Reveal.CharsPerSecond == 0 {
		cfg.Reveal.CharsPerSecond = 40
	}
}
