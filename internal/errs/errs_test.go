package errs

import (
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestTruncateIsRuneSafe(t *testing.T) {
	cases := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"缺少必填列商品编号", 6, "缺少必..."},
		{"abcdef", 3, "abc"},
		{"abcdef", 0, ""},
	}
	for _, tc := range cases {
		if got := Truncate(tc.in, tc.n); got != tc.want {
			t.Fatalf("Truncate(%q, %d) = %q, want %q", tc.in, tc.n, got, tc.want)
		}
	}
}

func TestWrapKeepsChain(t *testing.T) {
	root := errors.New("database is locked")
	err := Wrapf(Wrap(root, "commit"), "ingest file %d", 7)
	if !errors.Is(err, root) {
		t.Fatalf("errors.Is() lost root")
	}
	if err.Error() != "ingest file 7: commit: database is locked" {
		t.Fatalf("Error() = %q", err.Error())
	}
	if Wrap(nil, "x") != nil || Wrapf(nil, "x %d", 1) != nil {
		t.Fatalf("wrapping nil should stay nil")
	}

	chain := ErrorChainStrings(err)
	if len(chain) != 3 || chain[2] != "database is locked" {
		t.Fatalf("ErrorChainStrings() = %v", chain)
	}
}

func TestLoggableIncludesStack(t *testing.T) {
	err := Wrap(WithStack(errors.New("panic: boom")), "ingest")
	value := Loggable(err).LogValue()
	if value.Kind() != slog.KindGroup {
		t.Fatalf("LogValue() kind = %v", value.Kind())
	}

	keys := make([]string, 0, 3)
	for _, attr := range value.Group() {
		keys = append(keys, attr.Key)
	}
	if strings.Join(keys, ",") != "message,chain,stack" {
		t.Fatalf("LogValue() keys = %v", keys)
	}
	if WithStack(err) != err {
		t.Fatalf("WithStack() should not capture twice")
	}
}
