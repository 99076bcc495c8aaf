package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":      slog.LevelDebug,
		"DEV":        slog.LevelDebug,
		"info":       slog.LevelInfo,
		" warning ":  slog.LevelWarn,
		"error":      slog.LevelError,
		"production": slog.LevelError,
		"bogus":      slog.LevelError,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q)=%v, want %v", in, got, want)
		}
	}
}

func TestPionFactory_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	f := NewPionFactory(New(&buf, slog.LevelWarn))
	log := f.NewLogger("ice")

	log.Debugf("gathering %d", 1)
	log.Warnf("candidate %s failed", "host")

	out := buf.String()
	if strings.Contains(out, "gathering") {
		t.Fatalf("debug line leaked at warn level: %q", out)
	}
	if !strings.Contains(out, "candidate host failed") || !strings.Contains(out, "scope=ice") {
		t.Fatalf("warn line missing or unscoped: %q", out)
	}
}
