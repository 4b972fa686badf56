package ingest

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var builtinPlatformAliases = map[string][]string{
	"shopee":     {"shopee", "虾皮", "shopee.com"},
	"tiktok":     {"tiktok", "tiktok shop", "tiktokshop", "抖音国际", "tt"},
	"lazada":     {"lazada", "来赞达"},
	"amazon":     {"amazon", "亚马逊"},
	"miaoshou":   {"miaoshou", "妙手", "妙手erp", "miaoshou_erp", "miaoshou erp"},
	"temu":       {"temu"},
	"shein":      {"shein"},
	"aliexpress": {"aliexpress", "速卖通"},
}

// PlatformResolver maps free-form platform names to canonical codes.
type PlatformResolver struct {
	exact map[string]string
	// aliases sorted longest first for containment matching.
	ordered []string
}

// NewPlatformResolver merges extra aliases over the built-in table. Extra
// codes that are not whitelisted platforms are ignored.
func NewPlatformResolver(extra map[string][]string) *PlatformResolver {
	r := &PlatformResolver{exact: make(map[string]string)}
	add := func(code string, aliases []string) {
		code = strings.ToLower(strings.TrimSpace(code))
		if !IsValidPlatform(code) {
			return
		}
		for _, alias := range aliases {
			key := normalizeAlias(alias)
			if key == "" {
				continue
			}
			r.exact[key] = code
		}
	}
	for code, aliases := range builtinPlatformAliases {
		add(code, aliases)
	}
	for code, aliases := range extra {
		add(code, append([]string{code}, aliases...))
	}

	r.ordered = make([]string, 0, len(r.exact))
	for alias := range r.exact {
		r.ordered = append(r.ordered, alias)
	}
	sort.Slice(r.ordered, func(i, j int) bool {
		if len(r.ordered[i]) != len(r.ordered[j]) {
			return len(r.ordered[i]) > len(r.ordered[j])
		}
		return r.ordered[i] < r.ordered[j]
	})
	return r
}

// Lookup is the exact alias match.
func (r *PlatformResolver) Lookup(text string) (string, bool) {
	code, ok := r.exact[normalizeAlias(text)]
	return code, ok
}

// Resolve tries an exact alias match, then looks for an alias among the
// path segments and underscore tokens of text. Longer aliases win.
func (r *PlatformResolver) Resolve(text string) (string, bool) {
	if code, ok := r.Lookup(text); ok {
		return code, true
	}

	normalized := normalizeAlias(text)
	tokens := make(map[string]struct{})
	for _, segment := range strings.FieldsFunc(normalized, func(c rune) bool {
		return c == '/' || c == '\\'
	}) {
		tokens[segment] = struct{}{}
		for _, tok := range strings.FieldsFunc(segment, func(c rune) bool {
			return c == '_' || c == '-' || c == ' ' || c == '.'
		}) {
			tokens[tok] = struct{}{}
		}
	}

	for _, alias := range r.ordered {
		if _, ok := tokens[alias]; ok {
			return r.exact[alias], true
		}
		// multi-word or CJK aliases are matched as substrings
		if strings.ContainsAny(alias, " _.") || !isASCII(alias) {
			if strings.Contains(normalized, alias) {
				return r.exact[alias], true
			}
		}
	}
	return "", false
}

func normalizeAlias(text string) string {
	folded, _, err := transform.String(
		transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFKC),
		text,
	)
	if err != nil {
		folded = text
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
