package registry

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleRegistry = `
platforms:
  tiktok: ["TikTok Global"]
currencies:
  shopee: sgd
  miaoshou: CNY
rates:
  usd: "7.1"
accounts:
  - platform: shopee
    name: main
    shops:
      - shop_id: shop-sg-01
        alias: Main SG
      - shop_id: shop-sg-02
        aliases: ["main sg 2", "second store"]
  - name: any
    shops:
      - shop_id: global-01
        alias: globalstore
`

func TestParseRegistry(t *testing.T) {
	r, err := Parse([]byte(sampleRegistry))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if got := r.PlatformCurrency("Shopee"); got != "SGD" {
		t.Fatalf("PlatformCurrency() = %q", got)
	}
	if rate, ok := r.StaticRate("USD"); !ok || rate != "7.1" {
		t.Fatalf("StaticRate() = %q, %v", rate, ok)
	}
	if _, ok := r.StaticRate("EUR"); ok {
		t.Fatalf("StaticRate() expected miss")
	}

	shopID, alias, ok := r.ShopForFile("shopee", "Main SG 2 orders.xlsx", "")
	if !ok || shopID != "shop-sg-02" || alias != "main sg 2" {
		t.Fatalf("ShopForFile() = %q, %q, %v", shopID, alias, ok)
	}
	shopID, _, ok = r.ShopForFile("shopee", "export.xlsx", "main sg")
	if !ok || shopID != "shop-sg-01" {
		t.Fatalf("ShopForFile(account) = %q, %v", shopID, ok)
	}
	if _, _, ok := r.ShopForFile("lazada", "main sg orders.xlsx", ""); ok {
		t.Fatalf("ShopForFile() expected platform mismatch to miss")
	}
	if shopID, _, ok := r.ShopForFile("lazada", "globalstore_orders.xlsx", ""); !ok || shopID != "global-01" {
		t.Fatalf("ShopForFile(any platform) = %q, %v", shopID, ok)
	}

	code, ok := r.PlatformResolver().Resolve("tiktok global")
	if !ok || code != "tiktok" {
		t.Fatalf("PlatformResolver().Resolve() = %q, %v", code, ok)
	}
}

func TestLoadMissingFilesAreEmpty(t *testing.T) {
	dir := t.TempDir()

	r, err := Load(filepath.Join(dir, "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, _, ok := r.ShopForFile("shopee", "x.xlsx", ""); ok {
		t.Fatalf("empty registry matched a shop")
	}

	p, err := LoadProfile(filepath.Join(dir, "missing.toml"))
	if err != nil {
		t.Fatalf("LoadProfile() error = %v", err)
	}
	if got := p.Keywords("shopee", "orders", "order_id"); got != nil {
		t.Fatalf("Keywords() = %v", got)
	}
}

func TestLoadProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.toml")
	raw := `version = 1

[header]
tokens = ["Variation ID"]

[platforms.shopee.orders]
order_id = ["Order SN", "订单编号"]
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write profile: %v", err)
	}

	p, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("LoadProfile() error = %v", err)
	}
	got := p.Keywords("Shopee", "orders", "order_id")
	if len(got) != 2 || got[0] != "order sn" {
		t.Fatalf("Keywords() = %v", got)
	}
	if tokens := p.HeaderTokens(); len(tokens) != 1 || tokens[0] != "variation id" {
		t.Fatalf("HeaderTokens() = %v", tokens)
	}

	if _, err := ParseProfile([]byte("version = 3")); err == nil {
		t.Fatalf("ParseProfile() expected version error")
	}
}
