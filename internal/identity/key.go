package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"recallwatch/pkg/models"
)

// Category names an entity family with its own key policy and table.
type Category string

const (
	Recalls    Category = "recalls"
	Complaints Category = "complaints"
)

// ParseCategory maps a user-supplied name onto a Category.
func ParseCategory(s string) (Category, error) {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case Recalls:
		return Recalls, nil
	case Complaints:
		return Complaints, nil
	default:
		return "", fmt.Errorf("unknown category %q", s)
	}
}

const (
	recallNamespace    = "nhtsa:"
	complaintNamespace = "odi:"
	hashNamespace      = "hash:"

	keySeparator = "|"
)

// ContentHash is the hex sha256 of parts joined by "|".
func ContentHash(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, keySeparator)))
	return hex.EncodeToString(sum[:])
}

// RecallKeyParts selects and canonicalizes the fields hashed when a recall
// has no campaign id: manufacturer | component | report date | subject.
// Dates are hashed as the source string, not the parsed value.
func RecallKeyParts(rec models.RawRecord) []string {
	return []string{
		strings.ToUpper(String(rec, RecallMakeFields...)),
		strings.ToUpper(String(rec, RecallComponentFields...)),
		String(rec, RecallDateFields...),
		String(rec, RecallSubjectFields...),
	}
}

// ComplaintKeyParts is the complaint counterpart of RecallKeyParts:
// make | model | year | component | received date | summary.
func ComplaintKeyParts(rec models.RawRecord) []string {
	return []string{
		strings.ToUpper(String(rec, ComplaintMakeFields...)),
		strings.ToUpper(String(rec, ComplaintModelFields...)),
		String(rec, ComplaintYearFields...),
		strings.ToUpper(String(rec, ComplaintComponentFields...)),
		String(rec, ComplaintReceivedFields...),
		String(rec, ComplaintSummaryFields...),
	}
}

// RecallKey prefers the regulator campaign id and falls back to a content
// hash. Two distinct recalls sharing every hashed field collide; that is an
// accepted limitation of the fallback.
func RecallKey(rec models.RawRecord) string {
	if id := String(rec, RecallIDFields...); id != "" {
		return recallNamespace + id
	}
	return hashNamespace + ContentHash(RecallKeyParts(rec)...)
}

// ComplaintKey prefers the ODI number, else hashes ComplaintKeyParts.
func ComplaintKey(rec models.RawRecord) string {
	if id := String(rec, ComplaintIDFields...); id != "" {
		return complaintNamespace + id
	}
	return hashNamespace + ContentHash(ComplaintKeyParts(rec)...)
}

// DeriveKey dispatches on category. Unknown categories panic: the set is
// closed and every caller passes a constant.
func DeriveKey(c Category, rec models.RawRecord) string {
	switch c {
	case Recalls:
		return RecallKey(rec)
	case Complaints:
		return ComplaintKey(rec)
	default:
		panic(fmt.Sprintf("identity: unknown category %q", c))
	}
}
