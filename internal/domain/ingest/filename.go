package ingest

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const (
	nameDateLayout     = "20060102"
	nameDateTimeLayout = "20060102_150405"
	defaultExt         = "xlsx"
)

// NameParts is the input of EncodeFilename.
type NameParts struct {
	Platform    string
	Domain      string
	SubDomain   string
	Granularity string
	Ext         string
	Timestamp   time.Time
}

// ParsedName is a decoded standard file name.
type ParsedName struct {
	Platform    string
	Domain      string
	SubDomain   string
	Granularity string
	Timestamp   time.Time
	Ext         string
	TemplateKey string
}

// EncodeFilename renders platform_domain[_sub]_granularity_YYYYMMDD_HHMMSS.ext.
func EncodeFilename(parts NameParts) (string, error) {
	platform := strings.ToLower(strings.TrimSpace(parts.Platform))
	domain := strings.ToLower(strings.TrimSpace(parts.Domain))
	sub := strings.ToLower(strings.TrimSpace(parts.SubDomain))
	granularity := strings.ToLower(strings.TrimSpace(parts.Granularity))
	if platform == "" || domain == "" || granularity == "" {
		return "", fmt.Errorf("%w: platform, domain and granularity are required", ErrNonStandardName)
	}
	// only emit names DecodeFilename accepts
	if !IsValidGranularity(granularity) {
		return "", fmt.Errorf("%w: granularity %q", ErrNonStandardName, granularity)
	}
	if sub != "" && !isSubDomainToken(sub) {
		return "", fmt.Errorf("%w: sub-domain %q", ErrNonStandardName, sub)
	}

	ts := parts.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	ext := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(parts.Ext), "."))
	if ext == "" {
		ext = defaultExt
	}

	return TemplateKey(platform, domain, sub, granularity) + "_" + ts.Format(nameDateTimeLayout) + "." + ext, nil
}

// TemplateKey returns platform_domain[_sub]_granularity.
func TemplateKey(platform string, domain string, subDomain string, granularity string) string {
	if subDomain != "" {
		return platform + "_" + domain + "_" + subDomain + "_" + granularity
	}
	return platform + "_" + domain + "_" + granularity
}

// DecodeFilename parses a standard file name. Only the last extension is
// stripped, so "a.b.xlsx" keeps "a.b" as its stem.
func DecodeFilename(name string) (ParsedName, error) {
	base := filepath.Base(strings.TrimSpace(name))
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	tokens := strings.Split(strings.ToLower(stem), "_")
	if len(tokens) < 4 {
		return ParsedName{}, fmt.Errorf("%w: %q", ErrNonStandardName, name)
	}

	out := ParsedName{
		Platform: tokens[0],
		Domain:   tokens[1],
		Ext:      strings.ToLower(strings.TrimPrefix(ext, ".")),
	}

	var rest []string
	switch {
	case len(tokens) >= 6 && tokens[2] == "ai" && tokens[3] == "assistant":
		out.SubDomain = SubDomainAIAssistant
		out.Granularity = tokens[4]
		rest = tokens[5:]
	case len(tokens) >= 5 && isSubDomainToken(tokens[2]) && IsValidGranularity(tokens[3]):
		out.SubDomain = tokens[2]
		out.Granularity = tokens[3]
		rest = tokens[4:]
	default:
		out.Granularity = tokens[2]
		rest = tokens[3:]
	}

	if out.Platform == "" || out.Domain == "" {
		return ParsedName{}, fmt.Errorf("%w: %q", ErrNonStandardName, name)
	}
	if !IsValidGranularity(out.Granularity) {
		return ParsedName{}, fmt.Errorf("%w: granularity %q in %q", ErrNonStandardName, out.Granularity, name)
	}

	ts, err := parseNameTimestamp(rest)
	if err != nil {
		return ParsedName{}, fmt.Errorf("%w: %q", err, name)
	}
	out.Timestamp = ts
	out.TemplateKey = TemplateKey(out.Platform, out.Domain, out.SubDomain, out.Granularity)
	return out, nil
}

func isSubDomainToken(token string) bool {
	_, ok := knownSubDomains[token]
	return ok
}

func parseNameTimestamp(tokens []string) (time.Time, error) {
	switch len(tokens) {
	case 1:
		switch len(tokens[0]) {
		case len(nameDateLayout):
			if ts, err := time.Parse(nameDateLayout, tokens[0]); err == nil {
				return ts, nil
			}
		case 14:
			if ts, err := time.Parse("20060102150405", tokens[0]); err == nil {
				return ts, nil
			}
		}
	case 2:
		if ts, err := time.Parse(nameDateTimeLayout, tokens[0]+"_"+tokens[1]); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, ErrInvalidTimestamp
}

// LegacyName is the metadata recovered from a pre-standard file name.
type LegacyName struct {
	Platform    string
	Domain      string
	SubDomain   string
	Granularity string
	Account     string
	ShopID      string
}

var legacyStampPattern = regexp.MustCompile(`^\d{8}_\d{6}$`)

// legacyDomainOrder fixes keyword search precedence.
var legacyDomainOrder = []string{
	DomainOrders, DomainProducts, DomainTraffic, DomainAnalytics,
	DomainServices, DomainInventory, DomainFinance,
}

var legacyGranularityOrder = []string{
	GranularityDaily, GranularityWeekly, GranularityMonthly,
	GranularitySnapshot, GranularityHourly,
}

// ParseLegacyName recovers routing from an older naming scheme such as
// 20250925_105724__account__shop__orders__monthly__<range>.xls. path may be
// relative; its parent directories are used as platform, domain and
// granularity hints (closest first). platforms may be nil.
func ParseLegacyName(path string, platforms *PlatformResolver) (LegacyName, error) {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	dirs := parentDirs(path)

	if platforms == nil {
		platforms = NewPlatformResolver(nil)
	}

	out := LegacyName{Platform: "unknown"}
	for _, dir := range dirs {
		if code, ok := platforms.Lookup(dir); ok {
			out.Platform = code
			break
		}
	}

	parts := strings.Split(stem, "__")
	if len(parts) >= 4 && legacyStampPattern.MatchString(parts[0]) {
		out.Account = parts[1]
		out.ShopID = parts[2]
		if len(parts) >= 5 {
			out.Domain = strings.ToLower(parts[3])
			sub := strings.ToLower(parts[4])
			if out.Domain == DomainServices && len(parts) >= 6 && (sub == SubDomainAgent || sub == SubDomainAIAssistant || sub == "ai") {
				out.SubDomain = sub
				if len(parts) >= 7 {
					out.Granularity = strings.ToLower(parts[5])
				}
			} else {
				out.Granularity = sub
			}
		}
	}

	lowerStem := strings.ToLower(stem)
	if out.Domain == "" {
		out.Domain = keywordIn(lowerStem, legacyDomainOrder)
	}
	if out.Granularity == "" {
		out.Granularity = keywordIn(lowerStem, legacyGranularityOrder)
	}
	if out.Domain == "" {
		out.Domain = dirMatch(dirs, validDomains)
	}
	if out.Granularity == "" {
		out.Granularity = dirMatch(dirs, validGranularities)
	}

	if out.Domain == "" || out.Granularity == "" {
		return LegacyName{}, fmt.Errorf("%w: cannot infer domain and granularity from %q", ErrNonStandardName, base)
	}
	return out, nil
}

func keywordIn(stem string, words []string) string {
	for _, w := range words {
		if strings.Contains(stem, "_"+w+"_") || strings.Contains(stem, "__"+w+"__") {
			return w
		}
	}
	return ""
}

func dirMatch(dirs []string, set map[string]struct{}) string {
	for _, dir := range dirs {
		if _, ok := set[strings.ToLower(dir)]; ok {
			return strings.ToLower(dir)
		}
	}
	return ""
}

// parentDirs lists directory names of path, closest first.
func parentDirs(path string) []string {
	dir := filepath.Dir(filepath.FromSlash(path))
	var out []string
	for dir != "." && dir != string(filepath.Separator) && dir != "" {
		name := filepath.Base(dir)
		if name == "." || name == string(filepath.Separator) {
			break
		}
		out = append(out, name)
		next := filepath.Dir(dir)
		if next == dir {
			break
		}
		dir = next
	}
	return out
}
