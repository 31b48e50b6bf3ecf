package fetch

import (
	"fmt"
	"strings"
	"time"

	"recallwatch/internal/identity"
	"recallwatch/pkg/models"
)

// Column names the recalls collection has used for the make and report date
// across revisions, in preference order. They are the mapper's lists, so a
// column the filter runs on is always a column that gets stored.
var (
	RecallMakeColumns = identity.RecallMakeFields
	RecallDateColumns = identity.RecallDateFields
)

// DetectField returns the first candidate present as a key of rec, or "".
func DetectField(rec models.RawRecord, candidates ...string) string {
	if rec == nil {
		return ""
	}
	for _, c := range candidates {
		if _, ok := rec[c]; ok {
			return c
		}
	}
	return ""
}

// BuildRecallFilter returns a SoQL where clause: a case-insensitive prefix
// match of makeField on mk, and dateField bounded to [start, end] (whole end
// day included). A predicate is left out when its field was not detected or
// its value is empty; with nothing to filter on it returns "".
//
// mk is matched literally. A make containing a like wildcard (% or _) uses
// starts_with instead of like.
func BuildRecallFilter(makeField, mk, dateField, start, end string) string {
	var preds []string

	if up := strings.ToUpper(strings.TrimSpace(mk)); makeField != "" && up != "" {
		if strings.ContainsAny(up, "%_") {
			preds = append(preds, fmt.Sprintf("starts_with(upper(%s), '%s')", makeField, quote(up)))
		} else {
			preds = append(preds, fmt.Sprintf("upper(%s) like '%s%%'", makeField, quote(up)))
		}
	}
	if dateField != "" {
		if s := strings.TrimSpace(start); s != "" {
			preds = append(preds, fmt.Sprintf("%s >= '%sT00:00:00'", dateField, quote(s)))
		}
		if e := strings.TrimSpace(end); e != "" {
			preds = append(preds, fmt.Sprintf("%s < '%sT00:00:00'", dateField, quote(nextDay(e))))
		}
	}
	return strings.Join(preds, " AND ")
}

// quote escapes a SoQL string literal body.
func quote(s string) string { return strings.ReplaceAll(s, "'", "''") }

// nextDay turns an inclusive end date into an exclusive bound. Unparseable
// input is passed through as-is so the server reports it.
func nextDay(day string) string {
	t, err := time.Parse("2006-01-02", day)
	if err != nil {
		return day
	}
	return t.AddDate(0, 0, 1).Format("2006-01-02")
}
