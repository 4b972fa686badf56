package ingest

import "testing"

func TestPlatformResolverResolve(t *testing.T) {
	r := NewPlatformResolver(map[string][]string{"tiktok": {"TikTok Global"}})
	cases := []struct {
		in   string
		want string
	}{
		{"Shopee", "shopee"},
		{"虾皮", "shopee"},
		{"ＳＨＯＰＥＥ", "shopee"},
		{"妙手ERP", "miaoshou"},
		{"data/raw/2025/lazada/acc/x.xlsx", "lazada"},
		{"tiktok global", "tiktok"},
		{"exports/速卖通/orders", "aliexpress"},
	}
	for _, tc := range cases {
		got, ok := r.Resolve(tc.in)
		if !ok || got != tc.want {
			t.Fatalf("Resolve(%q) = %q, %v, want %q", tc.in, got, ok, tc.want)
		}
	}

	if _, ok := r.Resolve("unknown-market"); ok {
		t.Fatalf("Resolve() expected not ok")
	}
}

func TestPlatformResolverIgnoresUnknownCodes(t *testing.T) {
	r := NewPlatformResolver(map[string][]string{"ebay": {"易贝"}})
	if _, ok := r.Lookup("易贝"); ok {
		t.Fatalf("Lookup() expected alias of unknown platform to be ignored")
	}
}

func TestPlatformResolverAccentFolding(t *testing.T) {
	r := NewPlatformResolver(map[string][]string{"lazada": {"Lazáda Việt"}})
	got, ok := r.Lookup("lazada viet")
	if !ok || got != "lazada" {
		t.Fatalf("Lookup() = %q, %v", got, ok)
	}
}
