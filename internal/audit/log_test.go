package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"pressline.org/internal/auth"
	"pressline.org/internal/obs"
)

func TestLogEvent(t *testing.T) {
	logger := obs.Logger()
	original := logger.Writer()
	logger.SetFlags(0)
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(original)

	ctx := context.Background()
	ctx = WithRequestID(ctx, "req-123")
	ctx = auth.ContextWithUser(ctx, &auth.User{ID: 42, Username: "alice"})

	if err := LogEvent(ctx, "auth.login", map[string]any{"identifier": "alice"}); err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}

	line := buf.String()
	if line == "" {
		t.Fatal("expected log output")
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if entry["type"] != "audit" {
		t.Fatalf("unexpected type: %v", entry["type"])
	}
	if entry["event"] != "auth.login" {
		t.Fatalf("unexpected event: %v", entry["event"])
	}
	if entry["request_id"] != "req-123" {
		t.Fatalf("unexpected request id: %v", entry["request_id"])
	}
	if entry["actor_id"] != float64(42) {
		t.Fatalf("unexpected actor id: %v", entry["actor_id"])
	}
	if entry["actor_username"] != "alice" {
		t.Fatalf("unexpected actor username: %v", entry["actor_username"])
	}
	fields, ok := entry["fields"].(map[string]any)
	if !ok || fields["identifier"] != "alice" {
		t.Fatalf("fields missing or incorrect: %v", entry["fields"])
	}
}

func TestLogEventRequiresName(t *testing.T) {
	if err := LogEvent(context.Background(), "  ", nil); err == nil {
		t.Fatal("expected error for empty event name")
	}
}
