// Package config loads and validates the service configuration from a
// YAML file with environment variable expansion.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Twilio    TwilioConfig    `yaml:"twilio"`
	Generator GeneratorConfig `yaml:"generator"`
	Session   SessionConfig   `yaml:"session"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// PublicURL is the externally reachable base URL Twilio posts
	// webhooks to, e.g. an ngrok tunnel during development.
	PublicURL string `yaml:"public_url"`
}

// TwilioConfig configures the telephony provider.
type TwilioConfig struct {
	AccountSID  string `yaml:"account_sid"`
	AuthToken   string `yaml:"auth_token"`
	PhoneNumber string `yaml:"phone_number"`

	// VerifySignatures rejects webhooks with a bad or missing
	// X-Twilio-Signature. Disable only for local testing.
	VerifySignatures bool `yaml:"verify_signatures"`
}

// GeneratorConfig configures the response generator.
type GeneratorConfig struct {
	// Provider selects the backend: "ollama" (default) or "openai".
	Provider string `yaml:"provider"`

	Model   string        `yaml:"model"`
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// SessionConfig configures session storage and lifecycle.
type SessionConfig struct {
	// Store selects the backend: "memory" (default) or "sqlite".
	Store string `yaml:"store"`

	// SQLitePath is the database file for the sqlite store. Empty means
	// in-memory.
	SQLitePath string `yaml:"sqlite_path"`

	// ContextWindow is the number of recent turns sent to the generator.
	ContextWindow int `yaml:"context_window"`

	// IdleTimeout is how long a session may sit untouched before the
	// sweeper reclaims it.
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// SweepInterval is how often the sweeper runs.
	SweepInterval time.Duration `yaml:"sweep_interval"`

	// LockTimeout bounds how long a turn waits for the call's lock.
	LockTimeout time.Duration `yaml:"lock_timeout"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a configuration with sane development defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Twilio: TwilioConfig{
			VerifySignatures: true,
		},
		Generator: GeneratorConfig{
			Provider: "ollama",
			Model:    "mistral",
			Timeout:  30 * time.Second,
		},
		Session: SessionConfig{
			Store:         "memory",
			ContextWindow: 5,
			IdleTimeout:   10 * time.Minute,
			SweepInterval: time.Minute,
			LockTimeout:   30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads path, expands $VAR references, and unmarshals over the
// defaults. An empty path returns the defaults untouched.
func Load(path string) (*Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks invariants the rest of the service assumes.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid server port %d", c.Server.Port)
	}

	switch c.Generator.Provider {
	case "ollama":
	case "openai":
		if c.Generator.APIKey == "" {
			return errors.New("config: generator.api_key is required for the openai provider")
		}
	default:
		return fmt.Errorf("config: unknown generator provider %q", c.Generator.Provider)
	}

	switch c.Session.Store {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("config: unknown session store %q", c.Session.Store)
	}

	if c.Session.ContextWindow <= 0 {
		return errors.New("config: session.context_window must be positive")
	}
	if c.Session.IdleTimeout <= 0 {
		return errors.New("config: session.idle_timeout must be positive")
	}
	if c.Session.SweepInterval <= 0 {
		return errors.New("config: session.sweep_interval must be positive")
	}

	// A fully absent Twilio section is allowed at load time; provider
	// construction reports the missing credentials. A partially filled
	// one with verification on is a misconfiguration.
	if c.Twilio.VerifySignatures && c.Twilio.AccountSID != "" && c.Twilio.AuthToken == "" {
		return errors.New("config: twilio.auth_token is required when verify_signatures is on")
	}
	return nil
}

// WebhookURL returns the absolute voice webhook URL, or "" when no
// public URL is configured.
func (c *Config) WebhookURL() string {
	base := strings.TrimRight(c.Server.PublicURL, "/")
	if base == "" {
		return ""
	}
	return base + "/voice"
}
