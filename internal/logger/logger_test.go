package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestDefaultDoesNotPanic(t *testing.T) {
	t.Parallel()
	log := Default()
	if log == nil {
		t.Fatal("Default() returned nil")
	}
	log.Debug("debug message")
	log.Info("info message")
	log.Warn("warn message")
	log.Error("error message")
}

func TestJSONOutput(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := JSON(&buf, slog.LevelInfo)
	log.Info("matrix created", "format", "csc")

	out := buf.String()
	if !strings.Contains(out, "matrix created") {
		t.Fatalf("missing message in output: %s", out)
	}
	if !strings.Contains(out, `"format":"csc"`) {
		t.Fatalf("missing attr in JSON output: %s", out)
	}
	if !strings.Contains(out, `"level":"INFO"`) {
		t.Fatalf("missing level in output: %s", out)
	}
}

func TestJSONLevelFiltering(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := JSON(&buf, slog.LevelWarn)
	log.Debug("hidden")
	log.Info("hidden")
	if buf.Len() > 0 {
		t.Fatalf("expected no output below warn level, got: %s", buf.String())
	}

	log.Warn("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Fatalf("expected warn message, got: %s", buf.String())
	}
}

func TestPrettyOutput(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := Pretty(&buf, slog.LevelInfo)
	log.Info("resize", "rows", 16, "cols", 32)

	out := buf.String()
	if !strings.Contains(out, "resize") {
		t.Fatalf("missing message in output: %s", out)
	}
	if !strings.Contains(out, "rows=16") || !strings.Contains(out, "cols=32") {
		t.Fatalf("missing attrs in output: %s", out)
	}
}

func TestPrettyDebugLevel(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := Pretty(&buf, slog.LevelDebug)
	log.Debug("kernel launched")
	if !strings.Contains(buf.String(), "kernel launched") {
		t.Fatalf("expected debug message at debug level, got: %s", buf.String())
	}
}

func TestWith(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := JSON(&buf, slog.LevelInfo).With("component", "sparse")
	log.Info("child message")

	out := buf.String()
	if !strings.Contains(out, `"component":"sparse"`) {
		t.Fatalf("missing inherited attr in output: %s", out)
	}
}

func TestWithGroup(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := JSON(&buf, slog.LevelInfo).WithGroup("engine")
	log.Info("grouped message", "field", "val")
	if !strings.Contains(buf.String(), "grouped message") {
		t.Fatalf("missing message in output: %s", buf.String())
	}
}

func TestContextRoundTrip(t *testing.T) {
	t.Parallel()
	if FromContext(context.Background()) == nil {
		t.Fatal("FromContext with no logger returned nil")
	}

	var buf bytes.Buffer
	log := JSON(&buf, slog.LevelInfo)
	ctx := WithContext(context.Background(), log)
	FromContext(ctx).Info("roundtrip")
	if !strings.Contains(buf.String(), "roundtrip") {
		t.Fatalf("expected message via context logger, got: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"DEBUG", slog.LevelInfo}, // case-sensitive
	}
	for _, tc := range tests {
		if got := ParseLevel(tc.input); got != tc.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestPrettyHandlerEnabled(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	h := NewPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})

	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be disabled at warn level")
	}
	if !h.Enabled(context.Background(), slog.LevelWarn) {
		t.Error("warn should be enabled at warn level")
	}
}

func TestPrettyHandlerWithAttrs(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	h := NewPrettyHandler(&buf, nil).WithAttrs([]slog.Attr{slog.String("service", "smx")})
	slog.New(h).Info("with attrs")
	if !strings.Contains(buf.String(), "service=smx") {
		t.Fatalf("missing handler attr in output: %s", buf.String())
	}
}

func TestPrettyHandlerNestedGroups(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	h := NewPrettyHandler(&buf, nil).WithGroup("a").(*PrettyHandler).WithGroup("b")
	slog.New(h).Info("nested", "key", "val")
	if !strings.Contains(buf.String(), "a.b.key=val") {
		t.Fatalf("expected dotted group prefix, got: %s", buf.String())
	}
}

func TestPrettyHandlerEmptyGroup(t *testing.T) {
	t.Parallel()
	h := NewPrettyHandler(&bytes.Buffer{}, nil)
	if h.WithGroup("") != slog.Handler(h) {
		t.Fatal("WithGroup(\"\") should return the same handler")
	}
}

func TestPrettyQuoting(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := slog.New(NewPrettyHandler(&buf, nil))
	log.Info("test", "msg", "hello world", "key", "simple")

	out := buf.String()
	if !strings.Contains(out, `msg="hello world"`) {
		t.Fatalf("expected quoted string with spaces, got: %s", out)
	}
	if !strings.Contains(out, "key=simple") || strings.Contains(out, `key="simple"`) {
		t.Fatalf("simple strings should stay unquoted, got: %s", out)
	}
}

func TestNeedsQuoting(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  bool
	}{
		{"simple", false},
		{"has space", true},
		{"has\ttab", true},
		{"has\nnewline", true},
		{`has"quote`, true},
		{"", false},
	}
	for _, tc := range tests {
		if got := needsQuoting(tc.input); got != tc.want {
			t.Errorf("needsQuoting(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}
