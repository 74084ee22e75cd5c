package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestSubscribeReceivesPublishedEventsUntilUnsubscribed(t *testing.T) {
	logger := Discard()
	var got []string
	unsubscribe := logger.Subscribe(func(event Event) {
		got = append(got, event.Message)
	})

	logger.Info("socket open", Field("endpoint", "ws://example.test/live/websocket"))
	logger.Debug("debug hidden while disabled")
	logger.SetDebugEnabled(true)
	logger.Debug("debug visible")
	unsubscribe()
	unsubscribe()
	logger.Warn("after unsubscribe")

	if len(got) != 2 || got[0] != "socket open" || got[1] != "debug visible" {
		t.Fatalf("subscriber events = %v", got)
	}
}

func TestTerminalOutputUsesPlainLinesWhenNotPretty(t *testing.T) {
	var buf bytes.Buffer
	logger := New(false)
	logger.pretty = false
	logger.out = &buf

	logger.Warn("heartbeat timeout", Field("topic", "phoenix"))
	line := buf.String()
	if !strings.Contains(line, "[WARN] heartbeat timeout topic=phoenix") {
		t.Fatalf("terminal line = %q", line)
	}
}

func TestFormatEventLine_PayloadFieldsLast(t *testing.T) {
	line := FormatEventLine(Event{
		Time:    time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC),
		Level:   slog.LevelInfo,
		Message: "frame",
		Fields: map[string]any{
			"payload": "x",
			"event":   "phx_reply",
			"topic":   "lv:1",
		},
	})
	if !strings.HasSuffix(strings.TrimSpace(line), "event=phx_reply topic=lv:1 payload=x") {
		t.Fatalf("FormatEventLine() = %q", line)
	}
}

func TestFormatPayload(t *testing.T) {
	if got := FormatPayload([]byte("  ")); got != "<empty>" {
		t.Fatalf("FormatPayload(blank) = %q", got)
	}
	if got := FormatPayload([]byte(`{"status":"ok"}`)); got != "{\n  \"status\": \"ok\"\n}" {
		t.Fatalf("FormatPayload(json) = %q", got)
	}
	if got := FormatPayload([]byte("plain <text>")); got != "plain <text>" {
		t.Fatalf("FormatPayload(text) = %q", got)
	}
}

func TestRedact(t *testing.T) {
	tests := map[string]string{
		"":                 "<empty>",
		"abc":              "***",
		"tok-123-abcdefgh": "tok-…(16)",
	}
	for in, want := range tests {
		if got := Redact(in); got != want {
			t.Fatalf("Redact(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSensitiveFieldsAreRedacted(t *testing.T) {
	logger := Discard()
	var fields map[string]any
	unsubscribe := logger.Subscribe(func(event Event) {
		fields = event.Fields
	})
	defer unsubscribe()

	logger.Info("join",
		Field("_csrf_token", "tok-123-abcdefgh"),
		Field("token_meta", "csrf-token"),
		slog.Group("params", slog.String("session", "abc")),
		Field("mounts", 2),
	)

	if got := fields["_csrf_token"]; got != "tok-…(16)" {
		t.Fatalf("_csrf_token = %v", got)
	}
	if got := fields["token_meta"]; got != "csrf-token" {
		t.Fatalf("token_meta = %v", got)
	}
	if got := fields["params"].(map[string]any)["session"]; got != "***" {
		t.Fatalf("params.session = %v", got)
	}
	if got := fields["mounts"]; got != int64(2) {
		t.Fatalf("mounts = %v (%T)", got, got)
	}
}
