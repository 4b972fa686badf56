package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"xihong/internal/domain/ingest"
	"xihong/internal/ports"
)

type testRegistry struct {
	shopID string
}

func (r testRegistry) ShopForFile(_ string, fileName string, _ string) (string, string, bool) {
	if r.shopID == "" {
		return "", "", false
	}
	return r.shopID, fileName, true
}

func TestShopResolverChain(t *testing.T) {
	aliases := []ports.AccountAlias{
		{Platform: "shopee", StoreLabelRaw: "Main Store", TargetID: "shop-main", Active: true},
		{Platform: "shopee", StoreLabelRaw: "Main Store SG", TargetID: "shop-main-sg", Active: true},
		{Platform: "shopee", StoreLabelRaw: "old", TargetID: "shop-old", Active: false},
	}
	r := NewShopResolver(aliases, testRegistry{shopID: "reg-shop"})

	sidecar := &Sidecar{Path: "x.meta.json", ShopID: "side-1", ShopSection: "collection_info"}
	got := r.Resolve(ShopQuery{RelPath: "data/raw/2025/shopee/acct/shop-sg-01/a.xlsx", Platform: "shopee", Sidecar: sidecar})
	if got.ShopID != "side-1" || got.Source != ingest.ShopSourceSidecar || got.Confidence != ingest.ConfidenceSidecarCollection {
		t.Fatalf("Resolve(sidecar) = %#v", got)
	}

	got = r.Resolve(ShopQuery{RelPath: "data/raw/2025/shopee/acct/shop-sg-01/a.xlsx", Platform: "shopee", LegacyShop: "legacy01", LegacyMatch: true})
	if got.ShopID != "legacy01" || got.Confidence != ingest.ConfidenceLegacyName {
		t.Fatalf("Resolve(legacy) = %#v", got)
	}

	got = r.Resolve(ShopQuery{RelPath: "data/raw/2025/shopee/acct/shop-sg-01/a.xlsx", Platform: "shopee"})
	if got.ShopID != "shop-sg-01" || got.Source != ingest.ShopSourcePathRule {
		t.Fatalf("Resolve(path) = %#v", got)
	}

	got = r.Resolve(ShopQuery{RelPath: "data/raw/2025/main store sg orders.xlsx", Platform: "shopee"})
	if got.ShopID != "shop-main-sg" || got.Source != ingest.ShopSourceConfigAlias {
		t.Fatalf("Resolve(alias) = %#v", got)
	}

	got = r.Resolve(ShopQuery{RelPath: "data/raw/2025/old orders.xlsx", Platform: "shopee"})
	if got.ShopID != "reg-shop" {
		t.Fatalf("Resolve(registry) = %#v", got)
	}

	bare := NewShopResolver(nil, nil)
	got = bare.Resolve(ShopQuery{RelPath: "data/raw/2025/report_shop_sg123_orders.xlsx", Platform: "shopee"})
	if got.ShopID != "sg123" || got.Source != ingest.ShopSourceFilename {
		t.Fatalf("Resolve(filename) = %#v", got)
	}
}

func TestShopResolverDatedSidecarIsFinal(t *testing.T) {
	r := NewShopResolver(nil, nil)
	got := r.Resolve(ShopQuery{
		RelPath:  "data/raw/2025/miaoshou/acct/shop-ms-01/miaoshou_inventory_snapshot_20250926_000000.xlsx",
		Platform: "miaoshou",
		Domain:   ingest.DomainInventory,
		Sidecar:  &Sidecar{Path: "m.meta.json", ShopID: "products_snapshot_20250926", ShopSection: "business_metadata"},
	})
	if got.Resolved() {
		t.Fatalf("Resolve() = %#v, want unresolved", got)
	}
}

func TestReadSidecar(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "orders.xlsx")

	if _, ok, err := ReadSidecar(context.Background(), data); err != nil || ok {
		t.Fatalf("ReadSidecar(missing) = %v, %v", ok, err)
	}

	if err := os.WriteFile(SidecarPath(data), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write sidecar: %v", err)
	}
	if _, ok, err := ReadSidecar(context.Background(), data); err != nil || ok {
		t.Fatalf("ReadSidecar(malformed) = %v, %v", ok, err)
	}

	raw := `{"collection_info": {"shop_id": 12345, "original_path": "exports/orders_2025-08-01_2025-08-31.xlsx"}, "data_quality": {"quality_score": -3}}`
	if err := os.WriteFile(SidecarPath(data), []byte(raw), 0o644); err != nil {
		t.Fatalf("write sidecar: %v", err)
	}
	got, ok, err := ReadSidecar(context.Background(), data)
	if err != nil || !ok {
		t.Fatalf("ReadSidecar() = %v, %v", ok, err)
	}
	if got.ShopID != "12345" || got.ShopSection != "collection_info" {
		t.Fatalf("ReadSidecar() shop = %q %q", got.ShopID, got.ShopSection)
	}
	if got.DateFrom == nil || got.DateTo == nil || got.DateTo.Format("2006-01-02") != "2025-08-31" {
		t.Fatalf("ReadSidecar() dates = %v %v", got.DateFrom, got.DateTo)
	}
	if got.QualityScore == nil || *got.QualityScore != 0 {
		t.Fatalf("ReadSidecar() quality = %v", got.QualityScore)
	}
	res, ok := got.Resolution()
	if !ok || res.Detail != "orders.meta.json.collection_info" {
		t.Fatalf("Resolution() = %#v, %v", res, ok)
	}
}
