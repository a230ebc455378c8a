package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dialkit.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Generator.Provider != "ollama" || cfg.Generator.Model != "mistral" {
		t.Errorf("default generator = %s/%s, want ollama/mistral", cfg.Generator.Provider, cfg.Generator.Model)
	}
	if cfg.Session.Store != "memory" {
		t.Errorf("default store = %s, want memory", cfg.Session.Store)
	}
	if cfg.Session.IdleTimeout != 10*time.Minute {
		t.Errorf("default idle timeout = %v, want 10m", cfg.Session.IdleTimeout)
	}
	if cfg.Session.ContextWindow != 5 {
		t.Errorf("default context window = %d, want 5", cfg.Session.ContextWindow)
	}
	if !cfg.Twilio.VerifySignatures {
		t.Error("signature verification defaults to off, want on")
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
server:
  port: 9090
  public_url: https://tunnel.example.com
twilio:
  account_sid: AC123
  auth_token: secret
  phone_number: "+15550001111"
generator:
  provider: ollama
  model: llama3
session:
  store: sqlite
  sqlite_path: /tmp/sessions.db
  idle_timeout: 5m
logging:
  level: debug
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Generator.Model != "llama3" {
		t.Errorf("model = %q, want llama3", cfg.Generator.Model)
	}
	if cfg.Session.Store != "sqlite" || cfg.Session.SQLitePath != "/tmp/sessions.db" {
		t.Errorf("store = %s/%s", cfg.Session.Store, cfg.Session.SQLitePath)
	}
	if cfg.Session.IdleTimeout != 5*time.Minute {
		t.Errorf("idle timeout = %v, want 5m", cfg.Session.IdleTimeout)
	}
	// Untouched fields keep their defaults.
	if cfg.Session.SweepInterval != time.Minute {
		t.Errorf("sweep interval = %v, want default 1m", cfg.Session.SweepInterval)
	}
	if cfg.WebhookURL() != "https://tunnel.example.com/voice" {
		t.Errorf("WebhookURL() = %q", cfg.WebhookURL())
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("DIALKIT_TEST_TOKEN", "expanded-secret")

	path := writeConfig(t, `
twilio:
  account_sid: AC123
  auth_token: ${DIALKIT_TEST_TOKEN}
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Twilio.AuthToken != "expanded-secret" {
		t.Errorf("auth token = %q, want env expansion", cfg.Twilio.AuthToken)
	}
}

func TestLoadValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"bad port", "server:\n  port: -1\ntwilio:\n  auth_token: x\n", "port"},
		{"unknown provider", "generator:\n  provider: psychic\ntwilio:\n  auth_token: x\n", "provider"},
		{"openai needs key", "generator:\n  provider: openai\ntwilio:\n  auth_token: x\n", "api_key"},
		{"unknown store", "session:\n  store: etcd\ntwilio:\n  auth_token: x\n", "store"},
		{"verify needs token", "twilio:\n  account_sid: AC123\n  verify_signatures: true\n", "auth_token"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := writeConfig(t, tt.yaml)
			_, err := Load(path)
			if err == nil {
				t.Fatal("Load() error = nil, want validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load() of missing file error = nil, want error")
	}
}

func TestWebhookURLWithoutPublicURL(t *testing.T) {
	t.Parallel()

	cfg := Default()
	if got := cfg.WebhookURL(); got != "" {
		t.Errorf("WebhookURL() = %q, want empty without public_url", got)
	}
}
