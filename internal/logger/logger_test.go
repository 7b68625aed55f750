package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer

	log := New(Options{Writer: &buf, Level: "warn"})
	log.Info("hidden")
	log.Warn("shown", "item", "hgnc_complete_set")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message should be filtered at warn level: %s", out)
	}

	if !strings.Contains(out, "shown") || !strings.Contains(out, "item=hgnc_complete_set") {
		t.Errorf("warn message missing from output: %s", out)
	}

	log.SetLevel("debug")
	log.Debug("now visible")

	if !strings.Contains(buf.String(), "now visible") {
		t.Error("debug message should be visible after SetLevel(debug)")
	}
}

func TestLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer

	log := New(Options{Writer: &buf, Format: "json"}).With("run", "abc")
	log.Info("fetched", "records", 3)

	out := buf.String()
	if !strings.HasPrefix(out, "{") {
		t.Fatalf("expected JSON output, got %s", out)
	}

	if !strings.Contains(out, `"run":"abc"`) || !strings.Contains(out, `"records":3`) {
		t.Errorf("JSON output missing attributes: %s", out)
	}
}
