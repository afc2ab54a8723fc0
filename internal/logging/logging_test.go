package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestRedactsSensitiveFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, Options{Service: "looplib-api"})

	l.Info("login attempt", "password", "hunter22", "token", "abc.def.ghi", "uid", "u-1")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}

	if entry["password"] != "[REDACTED]" {
		t.Errorf("password = %v", entry["password"])
	}
	if entry["token"] != "[REDACTED]" {
		t.Errorf("token = %v", entry["token"])
	}
	if entry["uid"] != "u-1" {
		t.Errorf("uid = %v", entry["uid"])
	}
	if entry["service"] != "looplib-api" {
		t.Errorf("service = %v", entry["service"])
	}
}

func TestMasksEmails(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, Options{})

	l.Warn("registration failed for alice@example.com", "email", "bo@example.com")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if entry["msg"] != "registration failed for al***@example.com" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["email"] != "**@example.com" {
		t.Errorf("email = %v", entry["email"])
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
