// Package matching scores how well a provider's free-text product name
// answers a customer's item query, and rewrites item names into the query
// dialect each provider family searches best with.
package matching

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeText folds case, strips diacritics and replaces punctuation
// with spaces, collapsing runs of whitespace.
// A '.' or ',' between two digits is kept as a decimal point and '%' is
// kept so dosage facets such as "0,5 mg" or "2%" survive normalization.
func NormalizeText(s string) string {
	if s == "" {
		return ""
	}

	// Casers and transform chains carry state, so build them per call.
	stripped, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s,
	)
	if err != nil {
		stripped = s
	}
	folded := cases.Fold().String(stripped)

	rs := []rune(folded)
	var b strings.Builder
	b.Grow(len(folded))
	for i, r := range rs {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_', r == '%':
			b.WriteRune(r)
		case (r == '.' || r == ',') && i > 0 && i+1 < len(rs) &&
			unicode.IsDigit(rs[i-1]) && unicode.IsDigit(rs[i+1]):
			b.WriteByte('.')
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
