package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestLoggerRedactsSecrets(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Output: &buf})

	logger.Info(context.Background(), "provider call failed",
		"error", "401 unauthorized: api_key=sk-abcdefghijklmnopqrstuvwxyz0123456789")

	out := buf.String()
	if strings.Contains(out, "sk-abcdefghijklmnopqrstuvwxyz0123456789") {
		t.Errorf("API key leaked into log output: %s", out)
	}
	if !strings.Contains(out, "[REDACTED]") {
		t.Errorf("no redaction marker in output: %s", out)
	}
}

func TestLoggerRedactsTwilioSID(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Output: &buf})

	logger.Warn(context.Background(), "request failed",
		"detail", "account AC0123456789abcdef0123456789abcdef rejected")

	if strings.Contains(buf.String(), "AC0123456789abcdef0123456789abcdef") {
		t.Errorf("account SID leaked into log output: %s", buf.String())
	}
}

func TestLoggerContextCorrelation(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Output: &buf})

	ctx := WithCallID(WithRequestID(context.Background(), "req-1"), "call-1")
	logger.Info(ctx, "turn processed")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if record["call_id"] != "call-1" {
		t.Errorf("call_id = %v, want call-1", record["call_id"])
	}
	if record["request_id"] != "req-1" {
		t.Errorf("request_id = %v, want req-1", record["request_id"])
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "warn", Output: &buf})

	logger.Debug(context.Background(), "noise")
	logger.Info(context.Background(), "more noise")
	if buf.Len() != 0 {
		t.Errorf("below-level records were written: %s", buf.String())
	}

	logger.Warn(context.Background(), "kept")
	if !strings.Contains(buf.String(), "kept") {
		t.Error("warn record was filtered out")
	}
}

func TestLevelFromString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := LevelFromString(tt.in); got != tt.want {
			t.Errorf("LevelFromString(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestWithComponent(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Output: &buf}).WithComponent("sweeper")
	logger.Info(context.Background(), "hello")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if record["component"] != "sweeper" {
		t.Errorf("component = %v, want sweeper", record["component"])
	}
}
