package application

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ahrav/go-pricescout/internal/domain"
)

// SimilarityScorer scores a candidate product name against an item query.
// Implementations must be deterministic and return values in [0,1].
type SimilarityScorer interface {
	Score(query, candidate string) float64
}

var (
	priceNumber = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
	stockNumber = regexp.MustCompile(`\d+`)
)

// availableTokens mark a record as available when no count is given.
var availableTokens = []string{
	"si", "sí", "disponible", "en stock", "hay", "available", "in stock",
	"entrega mañana", "entrega manana",
}

// unavailableTokens override availableTokens when present.
var unavailableTokens = []string{
	"no disponible", "agotado", "sin stock", "sin existencia", "out of stock", "sold out", "no hay",
}

// ParsePrice converts provider price text to a number. Currency symbols and
// spaces are ignored; a separator followed by exactly three digits with no
// other separator is read as a thousands separator, otherwise the last
// separator is the decimal point. Empty, unparsable, zero and negative
// prices return domain.UnknownPrice.
func ParsePrice(raw string) float64 {
	s := strings.Map(func(r rune) rune {
		switch r {
		case '$', ' ', '\u00a0', '\t':
			return -1
		}
		return r
	}, raw)
	if s == "" {
		return domain.UnknownPrice
	}

	s = normalizeSeparators(s)
	m := priceNumber.FindString(s)
	if m == "" {
		return domain.UnknownPrice
	}
	d, err := decimal.NewFromString(m)
	if err != nil || !d.IsPositive() {
		return domain.UnknownPrice
	}
	f, _ := d.Round(4).Float64()
	return f
}

func normalizeSeparators(s string) string {
	commas, dots := strings.Count(s, ","), strings.Count(s, ".")
	switch {
	case commas > 0 && dots > 0:
		// The right-most separator is the decimal point.
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case commas == 1:
		if isThousandsGroup(s, ",") {
			return strings.ReplaceAll(s, ",", "")
		}
		return strings.Replace(s, ",", ".", 1)
	case commas > 1:
		return strings.ReplaceAll(s, ",", "")
	case dots > 1:
		return strings.ReplaceAll(s, ".", "")
	}
	return s
}

// isThousandsGroup reports whether sep is followed by exactly three digits
// and then a non-digit or the end of the string.
func isThousandsGroup(s, sep string) bool {
	i := strings.Index(s, sep)
	rest := s[i+len(sep):]
	n := 0
	for n < len(rest) && rest[n] >= '0' && rest[n] <= '9' {
		n++
	}
	return n == 3
}

// ParseStock converts provider stock text to a non-negative count.
// Availability words without a number count as 1; anything else that has
// no digits counts as 0.
func ParseStock(raw string) int {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return 0
	}
	for _, tok := range availableTokens {
		if s == tok {
			return 1
		}
	}

	compact := strings.NewReplacer(",", "", " ", "").Replace(s)
	if strings.HasPrefix(compact, "-") {
		return 0
	}
	if m := stockNumber.FindString(compact); m != "" {
		n, err := strconv.Atoi(m)
		if err != nil {
			// Only overflow is possible here.
			return int(^uint(0) >> 1)
		}
		return n
	}

	for _, tok := range unavailableTokens {
		if strings.Contains(s, tok) {
			return 0
		}
	}
	for _, tok := range availableTokens {
		if len(tok) > 2 && strings.Contains(s, tok) {
			return 1
		}
	}
	return 0
}

// NormalizeOffer parses a raw offer and scores it against the original
// item query.
func NormalizeOffer(raw domain.RawOffer, itemName string, scorer SimilarityScorer) domain.NormalizedOffer {
	name := strings.TrimSpace(raw.Name)
	return domain.NormalizedOffer{
		Provider:   raw.Provider,
		Name:       name,
		Code:       strings.TrimSpace(raw.Code),
		Laboratory: strings.TrimSpace(raw.Laboratory),
		Price:      ParsePrice(raw.Price),
		Stock:      ParseStock(raw.Stock),
		Similarity: scorer.Score(itemName, name),
	}
}
