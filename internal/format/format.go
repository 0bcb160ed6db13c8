package format

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"etfsave.life/web/internal/record"
)

// Placeholder is shown wherever a value is missing or unreadable.
const Placeholder = "-"

// ParseNumber reads a percent-like cell. Thousands separators, percent signs and
// surrounding whitespace are ignored. Non-finite results report false.
func ParseNumber(v any) (float64, bool) {
	var s string
	switch x := v.(type) {
	case nil:
		return 0, false
	case float64:
		return x, !math.IsNaN(x) && !math.IsInf(x, 0)
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case bool:
		return 0, false
	default:
		s = record.Stringify(v)
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "%", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Percent formats a cell as a fixed four-decimal percentage, e.g. "0.1234%".
// Unreadable values render as Placeholder so they are not mistaken for zero.
// Example: Percent("1,234.5") => "1234.5000%"
func Percent(v any) string {
	f, ok := ParseNumber(v)
	if !ok {
		return Placeholder
	}
	return fmt.Sprintf("%.4f%%", f)
}

// ValueOrDash returns the trimmed text of v, or Placeholder when empty.
func ValueOrDash(v any) string {
	s := strings.TrimSpace(record.Stringify(v))
	if s == "" {
		return Placeholder
	}
	return s
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"2006.01.02",
	"2006-1-2",
	"2006/1/2",
	"Jan 2, 2006",
	time.RFC1123,
	time.RFC1123Z,
}

// NormalizeDate converts a date string to the display form YYYY/MM/DD.
// It returns "" when the value cannot be parsed.
func NormalizeDate(s string) string {
	t, ok := ParseDate(s)
	if !ok {
		return ""
	}
	return t.Format("2006/01/02")
}

// ParseDate tries the date layouts accepted from update metadata.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Date formats time in a locale-friendly short form.
func Date(t time.Time, lang string) string {
	if t.IsZero() {
		return ""
	}
	switch strings.ToLower(lang) {
	case "ko", "ja", "zh":
		return t.Format("2006/01/02")
	case "vi", "th", "tl", "km":
		return t.Format("02/01/2006")
	default:
		return t.Format("Jan 2, 2006")
	}
}
