package infra

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewLoggerToJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, "production", "worker")
	logger.Debug().Msg("dropped")
	logger.Info().Str("payout_id", "p-1").Msg("payouts.completed")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line at info level, got %d: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["service"] != "worker" || entry["message"] != "payouts.completed" || entry["payout_id"] != "p-1" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestNewLoggerToDevelopment(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, "development", "")
	logger.Debug().Msg("campaigns.closed")
	if !strings.Contains(buf.String(), "campaigns.closed") {
		t.Fatalf("expected debug output in development, got %q", buf.String())
	}
	if strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Fatalf("expected console output in development")
	}
}
