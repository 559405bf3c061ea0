package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() Config {
	return Config{
		Service: ServiceConfig{
			BaseURL:            "https://api.example.com",
			RateLimitPerMinute: 60,
			HTTPTimeoutSeconds: 30,
			MaxRetries:         3,
		},
		Session: SessionConfig{DataDir: "data"},
		Reveal:  RevealConfig{Enabled: true, CharsPerSecond: 40},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing base url", func(c *Config) { c.Service.BaseURL = "" }, "base_url is required"},
		{"relative base url", func(c *Config) { c.Service.BaseURL = "api.example.com" }, "absolute URL"},
		{"bad scheme", func(c *Config) { c.Service.BaseURL = "ftp://api.example.com" }, "scheme must be http or https"},
		{"rate limit too low", func(c *Config) { c.Service.RateLimitPerMinute = 0 }, "rate_limit_per_minute"},
		{"rate limit too high", func(c *Config) { c.Service.RateLimitPerMinute = 601 }, "rate_limit_per_minute"},
		{"negative timeout", func(c *Config) { c.Service.HTTPTimeoutSeconds = -1 }, "http_timeout_seconds"},
		{"retries out of range", func(c *Config) { c.Service.MaxRetries = 11 }, "max_retries"},
		{"missing data dir", func(c *Config) { c.Session.DataDir = "" }, "data_dir is required"},
		{"reveal rate too high", func(c *Config) { c.Reveal.CharsPerSecond = 1001 }, "chars_per_second"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected valid config, got: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("RENDEZVOUS_TOKEN", "secret-token")

	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[service]
base_url = "https://api.example.com"

[session]
transcript_enabled = true

[reveal]
enabled = true
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, secrets, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Omitted fields pick up defaults.
	if cfg.Service.RateLimitPerMinute != 60 {
		t.Errorf("Expected default rate limit 60, got %d", cfg.Service.RateLimitPerMinute)
	}
	if cfg.Service.HTTPTimeoutSeconds != 30 {
		t.Errorf("Expected default timeout 30, got %d", cfg.Service.HTTPTimeoutSeconds)
	}
	if cfg.Session.DataDir != "data" {
		t.Errorf("Expected default data dir, got %q", cfg.Session.DataDir)
	}
	if cfg.Reveal.CharsPerSecond != 40 {
		t.Errorf("Expected default reveal rate 40, got %d", cfg.Reveal.CharsPerSecond)
	}
	if !cfg.Session.TranscriptEnabled {
		t.Error("Expected transcript_enabled from file")
	}
	if secrets.AuthToken != "secret-token" {
		t.Errorf("Expected token from environment, got %q", secrets.AuthToken)
	}
}

func TestLoad_MissingToken(t *testing.T) {
	t.Setenv("RENDEZVOUS_TOKEN", "")

	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[service]
base_url = "https://api.example.com"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	if _, _, err := Load(path); err == nil || !strings.Contains(err.Error(), "RENDEZVOUS_TOKEN") {
		t.Errorf("Expected missing token error, got: %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Error("Expected error for missing config file")
	}
}
