package matching

import (
	"math"
	"regexp"
	"strconv"
)

// dosagePattern matches "<number> [space] <unit>" on normalized text.
// Longer units come first because alternation is leftmost-first.
var dosagePattern = regexp.MustCompile(
	`(\d+(?:\.\d+)?)\s*(unidades|unidad|unid|mcg|mg|ml|kg|ui|iu|cc|g|l|%)(?:[^\p{L}\p{N}]|$)`,
)

// Dosage is the strength facet of a product name, e.g. 500 mg.
type Dosage struct {
	Value float64
	Unit  string
	// start and end delimit the matched text in the normalized string.
	start, end int
}

// Dosage factors applied to the name score.
const (
	factorExactDose     = 1.1
	factorValueMismatch = 0.4
	factorUnitMismatch  = 0.2
	factorQueryOnlyDose = 0.1
	factorNeutral       = 1.0
)

// ExtractDosage returns the first dosage facet of normalized text.
func ExtractDosage(normalized string) (Dosage, bool) {
	m := dosagePattern.FindStringSubmatchIndex(normalized)
	if m == nil {
		return Dosage{}, false
	}
	v, err := strconv.ParseFloat(normalized[m[2]:m[3]], 64)
	if err != nil {
		return Dosage{}, false
	}
	return Dosage{
		Value: v,
		Unit:  canonicalUnit(normalized[m[4]:m[5]]),
		start: m[2],
		end:   m[5],
	}, true
}

func canonicalUnit(u string) string {
	switch u {
	case "iu":
		return "ui"
	case "unidades", "unidad", "unid":
		return "unidades"
	}
	return u
}

// stripDosage removes the first dosage occurrence from normalized text.
func stripDosage(normalized string, d Dosage, ok bool) string {
	if !ok {
		return normalized
	}
	return normalized[:d.start] + " " + normalized[d.end:]
}

// dosageFactor scales the name score by how the two strengths compare.
// A specific request against an unspecific candidate is penalized; a broad
// request against a specific candidate is not.
func dosageFactor(q Dosage, qOK bool, c Dosage, cOK bool) float64 {
	switch {
	case qOK && cOK:
		sameValue := math.Abs(q.Value-c.Value) < 1e-9
		switch {
		case sameValue && q.Unit == c.Unit:
			return factorExactDose
		case q.Unit == c.Unit:
			return factorValueMismatch
		default:
			return factorUnitMismatch
		}
	case qOK:
		return factorQueryOnlyDose
	default:
		return factorNeutral
	}
}
