package ingest

import (
	"errors"
	"testing"
)

func TestNormalizeRouting(t *testing.T) {
	got, err := NormalizeRouting(Routing{Platform: " Shopee ", Domain: "Service", Granularity: "DAILY"})
	if err != nil {
		t.Fatalf("NormalizeRouting() error = %v", err)
	}
	if got.Platform != "shopee" || got.Domain != DomainServices || got.SubDomain != SubDomainAgent || got.Granularity != GranularityDaily {
		t.Fatalf("NormalizeRouting() = %#v", got)
	}

	got, err = NormalizeRouting(Routing{Platform: "tiktok", Domain: "services", SubDomain: "ai", Granularity: "daily"})
	if err != nil || got.SubDomain != SubDomainAIAssistant {
		t.Fatalf("NormalizeRouting(ai) = %#v, %v", got, err)
	}

	if _, err := NormalizeRouting(Routing{Platform: "ebay", Domain: "orders", Granularity: "daily"}); !errors.Is(err, ErrUnknownPlatform) {
		t.Fatalf("NormalizeRouting() error = %v, want ErrUnknownPlatform", err)
	}
	if _, err := NormalizeRouting(Routing{Platform: "shopee", Domain: "reviews", Granularity: "daily"}); !errors.Is(err, ErrUnknownDomain) {
		t.Fatalf("NormalizeRouting() error = %v, want ErrUnknownDomain", err)
	}
	if _, err := NormalizeRouting(Routing{Platform: "shopee", Domain: "orders", Granularity: "yearly"}); !errors.Is(err, ErrUnknownGranularity) {
		t.Fatalf("NormalizeRouting() error = %v, want ErrUnknownGranularity", err)
	}
}

func TestKindFor(t *testing.T) {
	cases := []struct {
		domain, sub string
		want        IngesterKind
	}{
		{"products", "", IngesterProducts},
		{"orders", "", IngesterOrders},
		{"traffic", "", IngesterTraffic},
		{"analytics", "", IngesterTraffic},
		{"services", "", IngesterServicesAgent},
		{"services", "ai_assistant", IngesterServicesAIAssistant},
		{"services", "chatbot", IngesterUnknown},
		{"inventory", "", IngesterUnknown},
	}
	for _, tc := range cases {
		if got := KindFor(tc.domain, tc.sub); got != tc.want {
			t.Fatalf("KindFor(%q, %q) = %v, want %v", tc.domain, tc.sub, got, tc.want)
		}
	}
}

func TestDomainFromName(t *testing.T) {
	cases := []struct {
		name, path string
		want       string
	}{
		{"20250925_105724__acc__shop__orders__monthly.xls", "", DomainOrders},
		{"store traffic report.xlsx", "", DomainAnalytics},
		{"report.xlsx", "data/raw/2025/shopee/services/report.xlsx", DomainServices},
		{"shopee_orders_daily_20250101_000000.xlsx", "", ""},
	}
	for _, tc := range cases {
		if got := DomainFromName(tc.name, tc.path); got != tc.want {
			t.Fatalf("DomainFromName(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestTableName(t *testing.T) {
	if got := TableName("Shopee", "services", "agent", "monthly"); got != "fact_shopee_services_agent_monthly" {
		t.Fatalf("TableName() = %q", got)
	}
	if got := TableName("", "orders", "", ""); got != "fact_unknown_orders_daily" {
		t.Fatalf("TableName() defaults = %q", got)
	}
}
