package ingest

import (
	"path/filepath"
	"regexp"
	"strings"
)

const (
	ShopSourceSidecar     = "sidecar"
	ShopSourcePathRule    = "path_rule"
	ShopSourceConfigAlias = "config_alias"
	ShopSourceFilename    = "filename"
	ShopSourceFailed      = "failed"
)

const (
	ConfidenceSidecarBusiness   = 0.95
	ConfidenceSidecarCollection = 0.90
	ConfidenceLegacyName        = 0.90
	ConfidencePathRule          = 0.85
	ConfidenceConfigAlias       = 0.80
	ConfidenceFilenameShop      = 0.60
	ConfidenceFilenamePlatform  = 0.55
	ConfidenceFilenameDigits    = 0.50
)

// ShopResolution records which shop owns a file and how that was decided.
type ShopResolution struct {
	ShopID     string  `json:"shop_id"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
	Detail     string  `json:"detail"`
}

func (r ShopResolution) Resolved() bool {
	return r.ShopID != "" && r.Source != ShopSourceFailed
}

// Unresolved is the terminal result of a chain that found nothing.
func Unresolved(detail string) ShopResolution {
	return ShopResolution{Source: ShopSourceFailed, Detail: detail}
}

// Prefer reports whether newer should replace older on a catalog row.
// A sidecar always wins, an existing sidecar result is kept against any
// other source, and otherwise confidence decides with ties going to newer.
func Prefer(newer ShopResolution, older ShopResolution) bool {
	if newer.Source == ShopSourceSidecar {
		return true
	}
	if older.Source == ShopSourceSidecar && older.ShopID != "" {
		return false
	}
	return newer.Confidence >= older.Confidence
}

// ShopFromPath applies the <platform>/<account>/<shop_id>/... layout rule.
func ShopFromPath(path string, platform string) (string, bool) {
	platform = strings.ToLower(strings.TrimSpace(platform))
	if platform == "" {
		return "", false
	}
	parts := strings.Split(strings.ToLower(filepath.ToSlash(path)), "/")
	// the file name itself is not a directory
	if len(parts) > 0 {
		parts = parts[:len(parts)-1]
	}
	for i, part := range parts {
		if !strings.Contains(part, platform) {
			continue
		}
		if i+2 >= len(parts) {
			return "", false
		}
		candidate := parts[i+2]
		if len(candidate) >= 6 || strings.ContainsAny(candidate, "-.") {
			return candidate, true
		}
		return "", false
	}
	return "", false
}

var (
	shopTokenPattern    = regexp.MustCompile(`(?i)shop_([a-z0-9\-\.]+)`)
	digitsPattern       = regexp.MustCompile(`\d{8,}`)
	eightDigitsPattern  = regexp.MustCompile(`\d{8}`)
	standardStampSuffix = regexp.MustCompile(`_\d{8}(_\d{6})?$`)
)

var shopStoplist = map[string]struct{}{
	DomainOrders:        {},
	DomainProducts:      {},
	DomainTraffic:       {},
	DomainServices:      {},
	DomainAnalytics:     {},
	DomainInventory:     {},
	DomainFinance:       {},
	GranularityDaily:    {},
	GranularityWeekly:   {},
	GranularityMonthly:  {},
	GranularitySnapshot: {},
	GranularityHourly:   {},
	SubDomainAgent:      {},
	"ai":                {},
	"assistant":         {},
}

// ShopFromFilename extracts a shop id from a file name. The standard-name
// timestamp is removed first so it cannot be mistaken for an id.
func ShopFromFilename(name string, platform string) ShopResolution {
	base := filepath.Base(name)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	stem = standardStampSuffix.ReplaceAllString(stem, "")
	platform = strings.ToLower(strings.TrimSpace(platform))

	if m := shopTokenPattern.FindStringSubmatch(stem); m != nil && usableShopToken(m[1]) {
		return ShopResolution{ShopID: m[1], Confidence: ConfidenceFilenameShop, Source: ShopSourceFilename, Detail: "shop_ token in file name"}
	}

	if platform != "" {
		pattern := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(platform) + `_([a-z0-9\-\.]+)_`)
		if m := pattern.FindStringSubmatch(stem); m != nil && usableShopToken(m[1]) {
			return ShopResolution{ShopID: m[1], Confidence: ConfidenceFilenamePlatform, Source: ShopSourceFilename, Detail: "platform-prefixed token in file name"}
		}
	}

	for _, run := range digitsPattern.FindAllString(stem, -1) {
		if looksLikeCompactDate(run) {
			continue
		}
		if platform == "miaoshou" && len(run) == 8 && (strings.HasPrefix(run, "20") || strings.HasPrefix(run, "21")) {
			continue
		}
		return ShopResolution{ShopID: run, Confidence: ConfidenceFilenameDigits, Source: ShopSourceFilename, Detail: "numeric run in file name"}
	}

	return Unresolved("no shop id in file name")
}

func usableShopToken(candidate string) bool {
	lower := strings.ToLower(candidate)
	if eightDigitsPattern.MatchString(lower) || strings.Contains(lower, "snapshot") {
		return false
	}
	_, stop := shopStoplist[lower]
	return !stop
}

func looksLikeCompactDate(run string) bool {
	if len(run) != 8 {
		return false
	}
	_, ok := DateFromName(run)
	return ok
}

var datedShopPattern = regexp.MustCompile(`\d{8}`)

// DiscardDatedShopID drops sidecar shop ids that embed a date or a snapshot
// marker for miaoshou inventory and orders exports, where the collector wrote
// the export name instead of a shop.
func DiscardDatedShopID(shopID string, platform string, domain string) string {
	if platform != "miaoshou" || (domain != DomainInventory && domain != DomainOrders) {
		return shopID
	}
	lower := strings.ToLower(shopID)
	if datedShopPattern.MatchString(lower) || strings.Contains(lower, "snapshot") {
		return UnresolvedShopID
	}
	return shopID
}
