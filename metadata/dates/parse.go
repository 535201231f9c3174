package dates

import (
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

var exactLayouts = []string{
	"2006:01:02 15:04:05", // EXIF
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006:01:02",
}

var compactLayouts = []string{
	"20060102150405", // PDF info dictionary, D: prefix already stripped
	"200601021504",
	"2006010215",
	"20060102",
}

// ParseAny parses the date syntaxes embedded metadata actually contains: EXIF
// colon-dates, PDF "D:YYYYMMDDHHMMSS" values and free-form strings. Returned
// times are UTC. A false result means the string held no usable date.
func ParseAny(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "D:")
	if s == "" {
		return time.Time{}, false
	}

	if len(s) == 4 && isDigits(s) {
		year, err := strconv.Atoi(s)
		if err == nil && year > 0 {
			return time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC), true
		}
	}

	if len(s) >= 8 && isDigits(s[:8]) {
		digits := s
		if idx := strings.IndexFunc(s, func(r rune) bool { return r < '0' || r > '9' }); idx > 0 {
			digits = s[:idx]
		}
		for _, layout := range compactLayouts {
			if len(digits) >= len(layout) {
				if t, err := time.Parse(layout, digits[:len(layout)]); err == nil {
					return t.UTC(), true
				}
			}
		}
	}

	for _, layout := range exactLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}

	t, err := dateparse.ParseAny(s)
	if err != nil || t.Year() < 1000 {
		return time.Time{}, false
	}
	return t.UTC(), true
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
