package config

import (
	"fmt"
	"net/url"
	"os"
)

// Config represents the complete application configuration
type Config struct {
	Service ServiceConfig `toml:"service"`
	Session SessionConfig `toml:"session"`
	Reveal  RevealConfig  `toml:"reveal"`
}

// ServiceConfig holds date-service connection settings
type ServiceConfig struct {
	BaseURL            string `toml:"base_url"`
	RateLimitPerMinute int    `toml:"rate_limit_per_minute"`
	HTTPTimeoutSeconds int    `toml:"http_timeout_seconds"` // Optional: request timeout (default 30)
	MaxRetries         int    `toml:"max_retries"`          // Optional: retry attempts for reads (default 3)
}

// SessionConfig holds local session bookkeeping settings
type SessionConfig struct {
	DataDir           string `toml:"data_dir"`           // Root for pointer files and transcripts (default "data")
	TranscriptEnabled bool   `toml:"transcript_enabled"` // Write per-session playthrough transcripts
}

// RevealConfig tunes the cosmetic character-reveal effect
type RevealConfig struct {
	Enabled        bool `toml:"enabled"`
	CharsPerSecond int  `toml:"chars_per_second"` // Default 40
}

// Secrets holds sensitive credentials loaded from environment variables
type Secrets struct {
	AuthToken string
}

const (
	// MaxRateLimitPerMinute is the highest configurable request rate
	MaxRateLimitPerMinute = 600
	// MaxCharsPerSecond bounds the reveal speed
	MaxCharsPerSecond = 1000
)

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Service.BaseURL == "" {
		return fmt.Errorf("service.base_url is required")
	}
	u, err := url.Parse(c.Service.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("service.base_url must be an absolute URL (got %q)", c.Service.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("service.base_url scheme must be http or https (got %s)", u.Scheme)
	}

	if c.Service.RateLimitPerMinute < 1 || c.Service.RateLimitPerMinute > MaxRateLimitPerMinute {
		return fmt.Errorf("service.rate_limit_per_minute must be between 1 and %d (got %d)", MaxRateLimitPerMinute, c.Service.RateLimitPerMinute)
	}
	if c.Service.HTTPTimeoutSeconds < 0 {
		return fmt.Errorf("service.http_timeout_seconds must not be negative (got %d)", c.Service.HTTPTimeoutSeconds)
	}
	if c.Service.MaxRetries < 0 || c.Service.MaxRetries > 10 {
		return fmt.Errorf("service.max_retries must be between 0 and 10 (got %d)", c.Service.MaxRetries)
	}

	if c.Session.DataDir == "" {
		return fmt.Errorf("session.data_dir is required")
	}

	if c.Reveal.CharsPerSecond < 1 || c.Reveal.CharsPerSecond > MaxCharsPerSecond {
		return fmt.Errorf("reveal.chars_per_second must be between 1 and %d (got %d)", MaxCharsPerSecond, c.Reveal.CharsPerSecond)
	}

	return nil
}

// LoadSecrets reads credentials from the environment
func LoadSecrets() (*Secrets, error) {
	token := os.Getenv("RENDEZVOUS_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("RENDEZVOUS_TOKEN environment variable is required")
	}
	return &Secrets{AuthToken: token}, nil
}
