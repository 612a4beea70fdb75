package matching

import (
	"strings"
	"unicode/utf8"
)

// Bonus and penalty weights of the name score.
const (
	prefixBonus      = 0.20
	overlapBonus     = 0.15
	keywordBonus     = 0.10
	lengthPenalty    = 0.90
	dosageOnlyScore  = 0.4
	prefixRunes      = 10
	minPrefixRunes   = 3
	minKeywordRunes  = 4
	minLengthRatio   = 0.4
	maxLengthRatio   = 2.5
	minOverlapRatio  = 0.5
	strongDoseFactor = 0.5
)

// defaultStopwords are Spanish articles and prepositions that carry no
// product identity.
var defaultStopwords = []string{
	"el", "la", "los", "las", "un", "una", "unos", "unas",
	"de", "del", "y", "con", "por", "para", "en", "a", "al",
}

// Scorer computes a deterministic [0,1] similarity between an item query
// and a candidate product name. It combines a dosage facet with a keyword
// containment score. A Scorer is immutable and safe for concurrent use.
type Scorer struct {
	stopwords map[string]struct{}
}

// NewScorer returns a Scorer using the default stopword list plus any
// extra words given.
func NewScorer(extraStopwords ...string) *Scorer {
	sw := make(map[string]struct{}, len(defaultStopwords)+len(extraStopwords))
	for _, w := range defaultStopwords {
		sw[w] = struct{}{}
	}
	for _, w := range extraStopwords {
		sw[NormalizeText(w)] = struct{}{}
	}
	return &Scorer{stopwords: sw}
}

// Breakdown exposes the intermediate values behind a score.
type Breakdown struct {
	QueryDosage     *Dosage
	CandidateDosage *Dosage
	DosageFactor    float64
	QueryTokens     int
	CandidateTokens int
	CommonTokens    int
	NameScore       float64
	Score           float64
}

// Score returns the similarity of candidate to query in [0,1].
func (s *Scorer) Score(query, candidate string) float64 {
	return s.Analyze(query, candidate).Score
}

// Analyze scores candidate against query and reports how the score was built.
func (s *Scorer) Analyze(query, candidate string) Breakdown {
	q := NormalizeText(query)
	c := NormalizeText(candidate)
	if q == "" || c == "" {
		return Breakdown{}
	}

	qd, qOK := ExtractDosage(q)
	cd, cOK := ExtractDosage(c)
	factor := dosageFactor(qd, qOK, cd, cOK)

	b := Breakdown{DosageFactor: factor}
	if qOK {
		b.QueryDosage = &qd
	}
	if cOK {
		b.CandidateDosage = &cd
	}

	qRest := strings.Join(strings.Fields(stripDosage(q, qd, qOK)), " ")
	cRest := strings.Join(strings.Fields(stripDosage(c, cd, cOK)), " ")
	qTokens := s.tokens(qRest)
	cTokens := s.tokens(cRest)
	b.QueryTokens, b.CandidateTokens = len(qTokens), len(cTokens)

	// A pure-dosage query can still justify a weak match.
	if len(qTokens) == 0 {
		if qOK && cOK && factor > strongDoseFactor {
			b.Score = clamp01(dosageOnlyScore * factor)
		}
		return b
	}

	common := 0
	for t := range qTokens {
		if _, ok := cTokens[t]; ok {
			common++
		}
	}
	b.CommonTokens = common

	ratio := float64(common) / float64(len(qTokens))
	name := ratio

	if prefix := firstRunes(qRest, prefixRunes); utf8.RuneCountInString(prefix) >= minPrefixRunes &&
		strings.HasPrefix(cRest, prefix) {
		name += prefixBonus
	}
	if common >= 1 && ratio >= minOverlapRatio {
		name += overlapBonus
	}
	if kw := longestToken(qTokens); utf8.RuneCountInString(kw) >= minKeywordRunes {
		if _, ok := cTokens[kw]; ok {
			name += keywordBonus
		}
	}
	if len(cTokens) > 0 {
		lr := float64(len(qTokens)) / float64(len(cTokens))
		if lr < minLengthRatio || lr > maxLengthRatio {
			name *= lengthPenalty
		}
	}

	// Bonuses saturate before the dosage factor so a strength mismatch
	// always caps the final score at the factor.
	b.NameScore = min(name, 1.0)
	b.Score = clamp01(b.NameScore * factor)
	return b
}

func (s *Scorer) tokens(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(text) {
		if utf8.RuneCountInString(w) <= 1 {
			continue
		}
		if _, stop := s.stopwords[w]; stop {
			continue
		}
		set[w] = struct{}{}
	}
	return set
}

// longestToken picks the longest token, breaking ties lexically so the
// choice does not depend on map iteration order.
func longestToken(set map[string]struct{}) string {
	best := ""
	for t := range set {
		n, bn := utf8.RuneCountInString(t), utf8.RuneCountInString(best)
		if n > bn || (n == bn && t < best) {
			best = t
		}
	}
	return best
}

func firstRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
