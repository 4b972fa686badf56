package ingest

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DayFirst is the ordering hint derived from a column's samples.
type DayFirst int

const (
	DayFirstUnknown DayFirst = iota
	DayFirstYes
	DayFirstNo
)

func (d DayFirst) String() string {
	switch d {
	case DayFirstYes:
		return "day-first"
	case DayFirstNo:
		return "month-first"
	default:
		return "unknown"
	}
}

const (
	maxSerialDay = 2958465 // 9999-12-31
)

var serialOrigin = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

var semanticNulls = map[string]struct{}{
	"":     {},
	"null": {},
	"none": {},
	"n/a":  {},
	"na":   {},
	"-":    {},
	"nan":  {},
	"nat":  {},
	"--":   {},
}

// IsSemanticNull reports values that mean "no data" in exported sheets.
func IsSemanticNull(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		_, ok := semanticNulls[strings.ToLower(strings.TrimSpace(v))]
		return ok
	case float64:
		return math.IsNaN(v)
	case float32:
		return math.IsNaN(float64(v))
	case time.Time:
		return v.IsZero()
	}
	return false
}

var datePartsPattern = regexp.MustCompile(`^(\d{1,4})[-/.](\d{1,2})[-/.](\d{1,4})`)

// DetectDayFirst votes over samples such as 26/08/2025 (day-first) and
// 08/26/2025 (month-first). Year-first and ambiguous samples do not vote.
func DetectDayFirst(samples []string) DayFirst {
	dayVotes, monthVotes := 0, 0
	for _, sample := range samples {
		m := datePartsPattern.FindStringSubmatch(strings.TrimSpace(sample))
		if m == nil || len(m[1]) == 4 {
			continue
		}
		first, err1 := strconv.Atoi(m[1])
		second, err2 := strconv.Atoi(m[2])
		if err1 != nil || err2 != nil {
			continue
		}
		switch {
		case first > 12 && second <= 12:
			dayVotes++
		case second > 12 && first <= 12:
			monthVotes++
		}
	}
	switch {
	case dayVotes > monthVotes:
		return DayFirstYes
	case monthVotes > dayVotes:
		return DayFirstNo
	default:
		return DayFirstUnknown
	}
}

var isoDateTimeLayouts = []string{
	"2006-1-2 15:04:05",
	"2006-1-2 15:04",
	"2006-1-2-15:04:05",
	"2006-1-2-15:04",
	"2006/1/2 15:04:05",
	"2006/1/2 15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

var dayFirstDateTimeLayouts = []string{
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2/1/2006-15:04",
	"2-1-2006 15:04:05",
	"2-1-2006 15:04",
}

var monthFirstDateTimeLayouts = []string{
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006-15:04",
	"1-2-2006 15:04:05",
	"1-2-2006 15:04",
}

var isoDateLayouts = []string{
	"2006-1-2",
	"2006/1/2",
	"2006.1.2",
	"20060102",
	"2006年1月2日",
	"2 Jan 2006",
	"02-Jan-2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

var dayFirstDateLayouts = []string{"2/1/2006", "2-1-2006", "2.1.2006"}

var monthFirstDateLayouts = []string{"1/2/2006", "1-2-2006", "1.2.2006"}

var serialTextPattern = regexp.MustCompile(`^\d{5}(\.\d+)?$`)

// ParseDate converts a cell value into a date (or date-time when keepTime is
// set). Ambiguous day/month orders follow hint; with no hint day-first is
// tried first. It never fails loudly: unusable input returns false.
func ParseDate(value any, hint DayFirst, keepTime bool) (time.Time, bool) {
	if IsSemanticNull(value) {
		return time.Time{}, false
	}

	var ts time.Time
	var ok bool
	switch v := value.(type) {
	case time.Time:
		ts, ok = v, true
	case float64:
		ts, ok = fromSerial(v)
	case float32:
		ts, ok = fromSerial(float64(v))
	case int:
		ts, ok = fromSerial(float64(v))
	case int64:
		ts, ok = fromSerial(float64(v))
	case string:
		ts, ok = parseDateText(strings.TrimSpace(v), hint)
	default:
		return time.Time{}, false
	}
	if !ok {
		return time.Time{}, false
	}
	if !keepTime {
		ts = time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
	}
	return ts, true
}

func fromSerial(serial float64) (time.Time, bool) {
	if math.IsNaN(serial) || serial < 1 || serial > maxSerialDay {
		return time.Time{}, false
	}
	days := math.Floor(serial)
	frac := serial - days
	ts := serialOrigin.AddDate(0, 0, int(days))
	return ts.Add(time.Duration(math.Round(frac*86400)) * time.Second), true
}

func parseDateText(text string, hint DayFirst) (time.Time, bool) {
	if serialTextPattern.MatchString(text) {
		if f, err := strconv.ParseFloat(text, 64); err == nil {
			return fromSerial(f)
		}
	}

	dateTimeFamilies := [][]string{isoDateTimeLayouts, dayFirstDateTimeLayouts, monthFirstDateTimeLayouts}
	dateFamilies := [][]string{isoDateLayouts, dayFirstDateLayouts, monthFirstDateLayouts}
	if hint == DayFirstNo {
		dateTimeFamilies[1], dateTimeFamilies[2] = dateTimeFamilies[2], dateTimeFamilies[1]
		dateFamilies[1], dateFamilies[2] = dateFamilies[2], dateFamilies[1]
	}

	for _, family := range append(dateTimeFamilies, dateFamilies...) {
		for _, layout := range family {
			if ts, err := time.Parse(layout, text); err == nil {
				return ts.UTC(), true
			}
		}
	}
	return time.Time{}, false
}

var rangeSeparators = []string{"~", "—", "至", " to ", " To ", " TO ", "到", " - "}

var rangeDateTimePattern = regexp.MustCompile(`\d{4}[-/]\d{1,2}[-/]\d{1,2}(?:-\d{1,2}:\d{2}(?::\d{2})?|\s+\d{1,2}:\d{2}(?::\d{2})?)?`)

var rangeDatePattern = regexp.MustCompile(`\d{1,2}[-/]\d{1,2}[-/]\d{4}|\d{4}[-/]\d{1,2}[-/]\d{1,2}`)

var dashTimePattern = regexp.MustCompile(`^(\d{4}[-/]\d{1,2}[-/]\d{1,2})-(\d{1,2}:\d{2})`)

// SplitDateRange splits values such as "26-08-2025 - 24-09-2025" or
// "2025-08-18-15:01~2025-08-25-15:01" into their two ends. A dash between the
// date and the time is normalized to a space.
func SplitDateRange(value string) (string, string, bool) {
	text := strings.TrimSpace(value)
	if text == "" {
		return "", "", false
	}

	for _, sep := range rangeSeparators {
		if !strings.Contains(text, sep) {
			continue
		}
		left, right, _ := strings.Cut(text, sep)
		left, right = strings.TrimSpace(left), strings.TrimSpace(right)
		if looksLikeDate(left) && looksLikeDate(right) {
			return normalizeDashTime(left), normalizeDashTime(right), true
		}
	}

	if found := rangeDateTimePattern.FindAllString(text, -1); len(found) >= 2 {
		return normalizeDashTime(found[0]), normalizeDashTime(found[1]), true
	}
	if found := rangeDatePattern.FindAllString(text, -1); len(found) >= 2 {
		return found[0], found[1], true
	}
	return "", "", false
}

func looksLikeDate(s string) bool {
	return rangeDateTimePattern.MatchString(s) || rangeDatePattern.MatchString(s)
}

func normalizeDashTime(s string) string {
	return dashTimePattern.ReplaceAllString(s, "$1 $2")
}

// GranularityForSpan classifies an inclusive date span.
func GranularityForSpan(start time.Time, end time.Time) string {
	days := int(end.Sub(start).Hours()/24) + 1
	switch {
	case days <= 1:
		return GranularityDaily
	case days <= 7:
		return GranularityWeekly
	case days <= 31:
		return GranularityMonthly
	default:
		return GranularityCustom
	}
}

var nameDatePattern = regexp.MustCompile(`(20\d{2})(\d{2})(\d{2})`)

// DateFromName returns the first valid YYYYMMDD date embedded in a name.
func DateFromName(name string) (time.Time, bool) {
	for _, m := range nameDatePattern.FindAllString(name, -1) {
		if ts, err := time.Parse(nameDateLayout, m); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
