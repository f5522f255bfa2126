package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestLevelFromString(t *testing.T) {
	t.Parallel()

	cases := map[string]slog.Level{
		"error":    slog.LevelError,
		" WARN ":   slog.LevelWarn,
		"warning":  slog.LevelWarn,
		"debug":    slog.LevelDebug,
		"info":     slog.LevelInfo,
		"":         slog.LevelInfo,
		"verbose?": slog.LevelInfo,
	}
	for raw, want := range cases {
		if got := levelFromString(raw); got != want {
			t.Fatalf("levelFromString(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestNewToFiltersByLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewTo(&buf, "warn")
	logger.Info("hidden")
	logger.Warn("shown", "job_id", "20251017_104743")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info record leaked: %q", out)
	}
	if !strings.Contains(out, "job_id=20251017_104743") || !strings.Contains(out, "service=newsletter-scanner") {
		t.Fatalf("unexpected output: %q", out)
	}
}
