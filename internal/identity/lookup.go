package identity

import (
	"encoding/json"
	"strconv"
	"strings"

	"recallwatch/pkg/models"
)

// Lookup returns the value of the first field that is present in rec with a
// non-empty value. Blank strings count as absent.
func Lookup(rec models.RawRecord, fields ...string) (any, bool) {
	for _, f := range fields {
		v, ok := rec[f]
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			continue
		}
		return v, true
	}
	return nil, false
}

// String is Lookup stringified and trimmed; "" when nothing matched.
func String(rec models.RawRecord, fields ...string) string {
	v, ok := Lookup(rec, fields...)
	if !ok {
		return ""
	}
	return strings.TrimSpace(scalarString(v))
}

// OptString is String with "" mapped to nil.
func OptString(rec models.RawRecord, fields ...string) *string {
	s := String(rec, fields...)
	if s == "" {
		return nil
	}
	return &s
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case []any:
		// multi-valued fields (e.g. "components") become a comma list
		parts := make([]string, 0, len(t))
		for _, it := range t {
			if s := strings.TrimSpace(scalarString(it)); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ",")
	case map[string]any:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	default:
		return ""
	}
}
