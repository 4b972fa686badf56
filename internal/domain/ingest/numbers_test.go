package ingest

import (
	"math"
	"testing"
)

func TestParseNumber(t *testing.T) {
	cases := []struct {
		in   any
		want float64
		ok   bool
	}{
		{"$1,234.56", 1234.56, true},
		{"¥ 88", 88, true},
		{"RM12.50", 12.5, true},
		{"1 024", 1024, true},
		{"99 USD", 99, true},
		{"-3.5", -3.5, true},
		{42, 42, true},
		{3.25, 3.25, true},
		{"g待发货", 0, false},
		{"12abc", 0, false},
		{"", 0, false},
		{"n/a", 0, false},
		{"-", 0, false},
		{math.NaN(), 0, false},
		{nil, 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseNumber(tc.in)
		if ok != tc.ok || (ok && math.Abs(got-tc.want) > 1e-9) {
			t.Fatalf("ParseNumber(%#v) = %v, %v, want %v, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestParsePercent(t *testing.T) {
	got, ok := ParsePercent("3.5%")
	if !ok || math.Abs(got-0.035) > 1e-9 {
		t.Fatalf("ParsePercent() = %v, %v", got, ok)
	}
	got, ok = ParsePercent("0.2")
	if !ok || got != 0.2 {
		t.Fatalf("ParsePercent(no sign) = %v, %v", got, ok)
	}
	if _, ok := ParsePercent("abc%"); ok {
		t.Fatalf("ParsePercent(text) expected not ok")
	}
}

func TestDetectCurrency(t *testing.T) {
	cases := map[string]string{
		"RM12.50":   "MYR",
		"₱1,000":    "PHP",
		"$5":        "USD",
		"S$5":       "SGD",
		"¥88":       "CNY",
		"100 RMB":   "CNY",
		"Rp 15.000": "IDR",
		"12.5":      "",
	}
	for in, want := range cases {
		if got := DetectCurrency(in); got != want {
			t.Fatalf("DetectCurrency(%q) = %q, want %q", in, got, want)
		}
	}
}
