package logger

import (
	"context"
	"log/slog"
	"testing"
)

func TestNewHonorsLevel(t *testing.T) {
	log := New("debug", "json")
	if !log.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug level should be enabled")
	}

	log = New("warn", "text")
	if log.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be disabled at warn level")
	}
}

func TestContextRoundTrip(t *testing.T) {
	scoped := New("info", "text").With(slog.String("request_id", "12345"))

	ctx := WithContext(context.Background(), scoped)
	if got := FromContext(ctx); got != scoped {
		t.Fatal("context must return the stored logger")
	}
	if got := FromContext(context.Background()); got != slog.Default() {
		t.Fatal("bare context must fall back to the process default")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"Warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.expected {
			t.Errorf("ParseLevel(%s) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}
