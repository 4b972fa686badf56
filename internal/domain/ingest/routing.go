package ingest

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

const (
	DomainOrders    = "orders"
	DomainProducts  = "products"
	DomainTraffic   = "traffic"
	DomainAnalytics = "analytics"
	DomainServices  = "services"
	DomainInventory = "inventory"
	DomainFinance   = "finance"

	SubDomainAgent       = "agent"
	SubDomainAIAssistant = "ai_assistant"

	GranularityDaily    = "daily"
	GranularityWeekly   = "weekly"
	GranularityMonthly  = "monthly"
	GranularitySnapshot = "snapshot"
	GranularityHourly   = "hourly"
	GranularityCustom   = "custom"

	// UnresolvedShopID marks a file whose owner could not be determined. It is
	// a valid terminal value, not an error.
	UnresolvedShopID = "none"
)

var validPlatforms = map[string]struct{}{
	"shopee":     {},
	"tiktok":     {},
	"lazada":     {},
	"amazon":     {},
	"miaoshou":   {},
	"temu":       {},
	"shein":      {},
	"aliexpress": {},
}

var validDomains = map[string]struct{}{
	DomainOrders:    {},
	DomainProducts:  {},
	DomainTraffic:   {},
	DomainAnalytics: {},
	DomainServices:  {},
	DomainInventory: {},
	DomainFinance:   {},
}

var validGranularities = map[string]struct{}{
	GranularityDaily:    {},
	GranularityWeekly:   {},
	GranularityMonthly:  {},
	GranularitySnapshot: {},
	GranularityHourly:   {},
}

// Sub-domain literals that may appear in a standard file name.
var knownSubDomains = map[string]struct{}{
	SubDomainAgent:       {},
	SubDomainAIAssistant: {},
	"ai":                 {},
	"assistant":          {},
}

func IsValidPlatform(code string) bool {
	_, ok := validPlatforms[code]
	return ok
}

func IsValidDomain(domain string) bool {
	_, ok := validDomains[domain]
	return ok
}

func IsValidGranularity(granularity string) bool {
	_, ok := validGranularities[granularity]
	return ok
}

func ValidPlatforms() []string { return sortedKeys(validPlatforms) }

func ValidDomains() []string { return sortedKeys(validDomains) }

func ValidGranularities() []string { return sortedKeys(validGranularities) }

// Routing is the normalized routing metadata carried by a catalog row.
type Routing struct {
	Platform    string
	Domain      string
	SubDomain   string
	Granularity string
}

// NormalizeRouting lowercases every field and validates it against the
// closed whitelists. Services files without a sub-domain default to agent.
func NormalizeRouting(r Routing) (Routing, error) {
	out := Routing{
		Platform:    strings.ToLower(strings.TrimSpace(r.Platform)),
		Domain:      strings.ToLower(strings.TrimSpace(r.Domain)),
		SubDomain:   strings.ToLower(strings.TrimSpace(r.SubDomain)),
		Granularity: strings.ToLower(strings.TrimSpace(r.Granularity)),
	}
	if out.Domain == "service" {
		out.Domain = DomainServices
	}

	if !IsValidPlatform(out.Platform) {
		return Routing{}, fmt.Errorf("%w: %q", ErrUnknownPlatform, r.Platform)
	}
	if !IsValidDomain(out.Domain) {
		return Routing{}, fmt.Errorf("%w: %q", ErrUnknownDomain, r.Domain)
	}
	if !IsValidGranularity(out.Granularity) {
		return Routing{}, fmt.Errorf("%w: %q", ErrUnknownGranularity, r.Granularity)
	}

	if out.Domain == DomainServices && out.SubDomain == "" {
		out.SubDomain = SubDomainAgent
	}
	if out.SubDomain == "ai" || out.SubDomain == "assistant" {
		out.SubDomain = SubDomainAIAssistant
	}
	return out, nil
}

// IngesterKind enumerates the domain ingesters. Dispatch switches over it
// exhaustively.
type IngesterKind int

const (
	IngesterUnknown IngesterKind = iota
	IngesterProducts
	IngesterOrders
	IngesterTraffic
	IngesterServicesAgent
	IngesterServicesAIAssistant
)

func (k IngesterKind) String() string {
	switch k {
	case IngesterProducts:
		return "products"
	case IngesterOrders:
		return "orders"
	case IngesterTraffic:
		return "traffic"
	case IngesterServicesAgent:
		return "services/agent"
	case IngesterServicesAIAssistant:
		return "services/ai_assistant"
	default:
		return "unknown"
	}
}

// KindFor maps catalog routing to an ingester. Inventory, finance and
// anything unrecognized go to the unknown/manifest path.
func KindFor(domain string, subDomain string) IngesterKind {
	switch strings.ToLower(strings.TrimSpace(domain)) {
	case DomainProducts:
		return IngesterProducts
	case DomainOrders:
		return IngesterOrders
	case DomainTraffic, DomainAnalytics:
		return IngesterTraffic
	case DomainServices, "service":
		switch strings.ToLower(strings.TrimSpace(subDomain)) {
		case SubDomainAIAssistant, "ai", "assistant":
			return IngesterServicesAIAssistant
		case SubDomainAgent, "":
			return IngesterServicesAgent
		default:
			return IngesterUnknown
		}
	default:
		return IngesterUnknown
	}
}

// DomainFromName re-infers a data domain from file name and path tokens:
// double-underscore name tokens, space separated words and directory
// segments. It returns "" when nothing matches.
func DomainFromName(fileName string, filePath string) string {
	name := strings.ToLower(strings.TrimSpace(fileName))
	stem := strings.TrimSuffix(name, filepath.Ext(name))

	tokens := make(map[string]struct{})
	for _, part := range strings.Split(stem, "__") {
		for _, word := range strings.Fields(part) {
			tokens[word] = struct{}{}
		}
	}
	for _, segment := range strings.FieldsFunc(strings.ToLower(filePath), func(r rune) bool {
		return r == '/' || r == '\\' || r == ' '
	}) {
		tokens[segment] = struct{}{}
	}
	has := func(words ...string) bool {
		for _, w := range words {
			if _, ok := tokens[w]; ok {
				return true
			}
		}
		return false
	}

	switch {
	case has(DomainAnalytics, DomainTraffic) || strings.HasSuffix(stem, "_analytics") || strings.HasSuffix(stem, "_traffic"):
		return DomainAnalytics
	case has(DomainServices, "service"):
		return DomainServices
	case has(DomainOrders, "order"):
		return DomainOrders
	case has(DomainProducts, "product"):
		return DomainProducts
	}
	return ""
}

// DomainFromDataType maps a manifest-style data_type value to a domain.
func DomainFromDataType(value string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	switch v {
	case "products", "product":
		return DomainProducts
	case "orders", "order":
		return DomainOrders
	case "traffic", "analytics":
		return DomainAnalytics
	case "service", "services":
		return DomainServices
	}
	switch {
	case strings.HasPrefix(v, "services"):
		return DomainServices
	case strings.HasPrefix(v, "analytics"), strings.HasPrefix(v, "traffic"):
		return DomainAnalytics
	}
	return ""
}

// TableName returns fact_{platform}_{domain}[_{sub}]_{granularity}.
func TableName(platform string, domain string, subDomain string, granularity string) string {
	platform = strings.ToLower(strings.TrimSpace(platform))
	if platform == "" {
		platform = "unknown"
	}
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		domain = "unknown"
	}
	granularity = strings.ToLower(strings.TrimSpace(granularity))
	if granularity == "" {
		granularity = GranularityDaily
	}
	subDomain = strings.ToLower(strings.TrimSpace(subDomain))
	if subDomain != "" {
		return "fact_" + platform + "_" + domain + "_" + subDomain + "_" + granularity
	}
	return "fact_" + platform + "_" + domain + "_" + granularity
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
