package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestFilenameEncodeCommand(t *testing.T) {
	out, err := executeRoot(t, "filename", "encode",
		"--platform", "Shopee", "--domain", "services", "--sub-domain", "agent",
		"--granularity", "monthly", "--ext", ".CSV", "--at", "2025-09-01T10:15:00Z")
	if err != nil {
		t.Fatalf("encode error = %v", err)
	}
	if got := strings.TrimSpace(out); got != "shopee_services_agent_monthly_20250901_101500.csv" {
		t.Fatalf("encode output = %q", got)
	}
}

func TestFilenameDecodeCommand(t *testing.T) {
	out, err := executeRoot(t, "filename", "decode", "tiktok_products_weekly_20250901_000001.xlsx")
	if err != nil {
		t.Fatalf("decode error = %v", err)
	}
	for _, want := range []string{`"platform": "tiktok"`, `"granularity": "weekly"`, `"template_key": "tiktok_products_weekly"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("decode output missing %s:\n%s", want, out)
		}
	}

	if _, err := executeRoot(t, "filename", "decode", "report-final.xlsx"); err == nil {
		t.Fatalf("decode of non-standard name should fail")
	}
}
