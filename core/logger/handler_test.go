package logger

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"log/slog"
)

func TestStructuredHandlerKVOrder(t *testing.T) {
	buf := &bytes.Buffer{}
	w := newLineWriter([]io.Writer{buf})
	handler := newStructuredHandler(handlerConfig{
		level:    slog.LevelInfo,
		writer:   w,
		format:   formatKV,
		keyOrder: append([]string(nil), defaultKeyOrder...),
	})
	ctx := WithRID(Background(), "rid-123")
	ctx = WithUpdateMeta(ctx, 42, 7, 9)

	log := slog.New(handler).With("component", "app")
	LogEvent(ctx, log, slog.LevelInfo, "test.event",
		slog.String("status", "ok"),
		slog.String("cause", "unit"),
	)
	if err := w.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	line := strings.TrimSpace(buf.String())
	if line == "" {
		t.Fatal("expected log line")
	}
	tokens := strings.Split(line, " ")
	if len(tokens) < 6 {
		t.Fatalf("unexpected token count: %d (%s)", len(tokens), line)
	}
	expected := []string{"ts=", "level=INFO", "component=app", "event=test.event", "status=ok", "rid=rid-123"}
	for i, prefix := range expected {
		if !strings.HasPrefix(tokens[i], prefix) {
			t.Fatalf("token %d = %s, expected prefix %s", i, tokens[i], prefix)
		}
	}
}

func TestStructuredHandlerJSONOrder(t *testing.T) {
	buf := &bytes.Buffer{}
	w := newLineWriter([]io.Writer{buf})
	handler := newStructuredHandler(handlerConfig{
		level:    slog.LevelInfo,
		writer:   w,
		format:   formatJSON,
		keyOrder: append([]string(nil), defaultKeyOrder...),
	})
	ctx := WithRID(Background(), "rid-json")
	ctx = WithUpdateMeta(ctx, 11, 22, 33)

	log := slog.New(handler).With("component", "quiz")
	LogEvent(ctx, log, slog.LevelError, "quiz.failed",
		slog.String("status", "fail"),
		slog.String("err", "boom"),
		slog.String("err_code", "TEST_FAIL"),
	)
	if err := w.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	line := strings.TrimSpace(buf.String())
	if !strings.HasPrefix(line, "{") {
		t.Fatalf("expected JSON, got %s", line)
	}
	prefixes := []string{`{"ts":`, `"level":"ERROR"`, `"component":"quiz"`, `"event":"quiz.failed"`, `"status":"fail"`, `"rid":"rid-json"`}
	pos := -1
	for _, pref := range prefixes {
		idx := strings.Index(line, pref)
		if idx == -1 || idx < pos {
			t.Fatalf("prefix %s not found in order within %s", pref, line)
		}
		pos = idx
	}
}

func TestDurationKeyNormalization(t *testing.T) {
	cases := map[string]string{
		"duration":      "duration_ms",
		"send_duration": "send_duration_ms",
		"elapsed_ms":    "elapsed_ms",
		"backoff":       "backoff_ms",
	}
	for in, want := range cases {
		if got := durationKey(in); got != want {
			t.Fatalf("durationKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSanitizeLimit(t *testing.T) {
	in := "line\x00with\x1bcontrol\nchars"
	out := SanitizeLimit(in, 64)
	if strings.ContainsAny(out, "\x00\x1b") {
		t.Fatalf("control characters survived: %q", out)
	}
	if !strings.Contains(out, "\n") {
		t.Fatalf("newline should be preserved: %q", out)
	}
	if got := SanitizeLimit("abcdef", 3); got != "abc" {
		t.Fatalf("limit not applied: %q", got)
	}
}
