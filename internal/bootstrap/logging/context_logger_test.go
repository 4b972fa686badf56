package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestWithRunTagsLines(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx := WithLogger(context.Background(), logger)
	ctx = WithAttrs(ctx, slog.String("component", "ingest.worker"))
	ctx = WithRun(ctx, "run-1", 42)
	ctx = WithAttrs(ctx, slog.String("component", "ingest.file"))

	Info(ctx, "file ingested", slog.Int("rows", 3))

	line := buf.String()
	for _, want := range []string{"run_id=run-1", "catalog_id=42", "component=ingest.file", "rows=3"} {
		if !strings.Contains(line, want) {
			t.Fatalf("log line missing %q: %s", want, line)
		}
	}
	if strings.Contains(line, "ingest.worker") {
		t.Fatalf("later attr should replace earlier key: %s", line)
	}
}

func TestWithRunSkipsEmptyValues(t *testing.T) {
	ctx := WithRun(context.Background(), "", 0)
	if got := Attrs(ctx); len(got) != 0 {
		t.Fatalf("Attrs() = %v", got)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
