package identity

import (
	"strconv"
	"strings"
	"time"
)

// ParseDate parses an upstream date value into a date (UTC midnight).
//
// Socrata floating timestamps arrive as "2024-01-02T00:00:00.000", NHTSA
// mostly uses "YYYY-MM-DD". Strings are cut to their first 10 characters and
// parsed strictly; anything else yields nil. It never fails.
func ParseDate(v any) *time.Time {
	switch t := v.(type) {
	case nil:
		return nil
	case time.Time:
		if t.IsZero() {
			return nil
		}
		d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		return &d
	case *time.Time:
		if t == nil {
			return nil
		}
		return ParseDate(*t)
	}

	s := strings.TrimSpace(scalarString(v))
	if len(s) < 10 {
		return nil
	}
	d, err := time.Parse("2006-01-02", s[:10])
	if err != nil {
		return nil
	}
	return &d
}

// ParseYear accepts digit-only values; anything else yields nil.
func ParseYear(v any) *int {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(scalarString(v))
	if s == "" {
		return nil
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return nil
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}
