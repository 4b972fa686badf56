package ingest

import (
	"math"
	"strconv"
	"strings"
)

var numberNoise = strings.NewReplacer(
	",", "",
	"\u00a0", "",
	" ", "",
	"$", "",
	"¥", "",
	"￥", "",
	"€", "",
	"£", "",
	"₱", "",
	"฿", "",
	"₫", "",
)

var currencyCodes = []string{"RMB", "CNY", "USD", "SGD", "MYR", "BRL", "PHP", "THB", "VND", "IDR", "RM", "RP"}

// ParseNumber converts a cell to float64. Strings lose thousands separators
// and currency markers, then must parse in full; "12abc" is rejected.
func ParseNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case nil:
		return 0, false
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return v, true
	case float32:
		return ParseNumber(float64(v))
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint64:
		return float64(v), true
	case string:
		return parseNumberText(v)
	}
	return 0, false
}

func parseNumberText(text string) (float64, bool) {
	if IsSemanticNull(text) {
		return 0, false
	}
	cleaned := strings.TrimSpace(numberNoise.Replace(text))
	upper := strings.ToUpper(cleaned)
	for _, code := range currencyCodes {
		switch {
		case strings.HasPrefix(upper, code):
			cleaned = strings.TrimSpace(cleaned[len(code):])
		case strings.HasSuffix(upper, code):
			cleaned = strings.TrimSpace(cleaned[:len(cleaned)-len(code)])
		default:
			continue
		}
		break
	}
	if cleaned == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParsePercent parses "3.5%" as 0.035. Values without a percent sign are
// returned as is.
func ParsePercent(value any) (float64, bool) {
	text, isText := value.(string)
	if !isText {
		return ParseNumber(value)
	}
	hasPercent := strings.Contains(text, "%")
	f, ok := ParseNumber(strings.ReplaceAll(text, "%", ""))
	if !ok {
		return 0, false
	}
	if hasPercent {
		f /= 100
	}
	return f, true
}

type currencyMarker struct {
	token    string
	currency string
}

// Checked in order; longer tokens before their prefixes.
var currencyMarkers = []currencyMarker{
	{"RMB", "CNY"},
	{"CNY", "CNY"},
	{"MYR", "MYR"},
	{"RM", "MYR"},
	{"PHP", "PHP"},
	{"₱", "PHP"},
	{"THB", "THB"},
	{"฿", "THB"},
	{"VND", "VND"},
	{"₫", "VND"},
	{"IDR", "IDR"},
	{"RP", "IDR"},
	{"SGD", "SGD"},
	{"S$", "SGD"},
	{"USD", "USD"},
	{"US$", "USD"},
	{"$", "USD"},
	{"¥", "CNY"},
	{"￥", "CNY"},
}

// DetectCurrency reads a currency marker at the start or end of a value.
func DetectCurrency(value string) string {
	text := strings.ToUpper(strings.TrimSpace(value))
	if text == "" {
		return ""
	}
	for _, marker := range currencyMarkers {
		if strings.HasPrefix(text, marker.token) || strings.HasSuffix(text, marker.token) {
			return marker.currency
		}
	}
	return ""
}
