package matching

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/ahrav/go-pricescout/internal/domain"
)

// Adapter names accepted in provider configuration.
const (
	AdapterDoseGlued        = "dose_glued"
	AdapterActiveIngredient = "active_ingredient"
	AdapterNameAndDose      = "name_and_dose"
	AdapterPassthrough      = "passthrough"
)

var (
	// spacedDose matches a number separated from its unit by whitespace.
	spacedDose = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s+(mgs|mcg|mg|ml|ui|iu|cc|g|%)([^\p{L}\p{N}]|$)`)
	// anyDose matches a number with or without a space before its unit.
	anyDose = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(mgs|mcg|mg|ml|ui|iu|cc|g|%)`)
	// gluedDoseToken matches a single token such as "75mg".
	gluedDoseToken = regexp.MustCompile(`^\d+(?:\.\d+)?(mgs|mcg|mg|ml|ui|iu|cc|g|%)$`)
	numberToken    = regexp.MustCompile(`^\d+(?:\.\d+)?`)
)

var unitWords = map[string]struct{}{
	"mg": {}, "mgs": {}, "g": {}, "ml": {}, "mcg": {}, "ui": {}, "iu": {}, "%": {}, "cc": {},
}

// formWords are pharmaceutical presentation words that do not identify the
// active ingredient.
var formWords = map[string]struct{}{
	"inyectable": {}, "tabletas": {}, "tablets": {}, "cápsulas": {}, "capsulas": {},
	"jarabe": {}, "solución": {}, "solucion": {}, "crema": {}, "gel": {}, "ungüento": {},
	"gotas": {}, "ampolletas": {}, "ampollas": {}, "suspensión": {}, "suspension": {},
	"comprimidos": {}, "pastillas": {}, "tabs": {}, "cap": {}, "sol": {}, "iny": {},
	"ampolla": {}, "vial": {}, "frasco": {}, "sobre": {}, "tubo": {},
}

// ingredientSynonyms maps trade spellings to the name distributors index.
var ingredientSynonyms = map[string]string{
	"acetaminofen": "paracetamol",
	"acetaminofén": "paracetamol",
}

var passthroughReplacer = strings.NewReplacer(
	" mgs ", " mg ", " Mgs ", " mg ", " MGS ", " mg ",
	" mls ", " ml ", " Mls ", " ml ", " MLS ", " ml ",
)

// DoseGlued collapses "500 mg" into "500mg" for providers that index
// strengths without a space.
func DoseGlued(itemName string) string {
	s := strings.TrimSpace(itemName)
	if s == "" {
		return itemName
	}
	s = spacedDose.ReplaceAllStringFunc(s, func(m string) string {
		sub := spacedDose.FindStringSubmatch(m)
		unit := strings.ToLower(sub[2])
		if unit == "mgs" {
			unit = "mg"
		}
		return sub[1] + unit + sub[3]
	})
	return strings.Join(strings.Fields(s), " ")
}

// ActiveIngredient keeps only the first significant word, a guess at the
// active ingredient, for providers whose search chokes on extra terms.
func ActiveIngredient(itemName string) string {
	words := strings.Fields(strings.ToLower(itemName))
	if len(words) == 0 {
		return itemName
	}
	if kept := significantWords(words); len(kept) > 0 {
		return kept[0]
	}
	return strings.Fields(itemName)[0]
}

// NameAndDose keeps the first one or two significant words and appends the
// first strength as "<number> <unit>".
func NameAndDose(itemName string) string {
	lower := strings.ToLower(strings.TrimSpace(itemName))
	words := strings.Fields(lower)
	if len(words) == 0 {
		return itemName
	}

	var name string
	if kept := significantWords(words); len(kept) > 0 {
		if len(kept) > 2 {
			kept = kept[:2]
		}
		for i, w := range kept {
			if syn, ok := ingredientSynonyms[w]; ok {
				kept[i] = syn
			}
		}
		name = strings.Join(kept, " ")
	} else {
		name = strings.Fields(itemName)[0]
	}

	if m := anyDose.FindStringSubmatch(lower); m != nil {
		unit := m[2]
		if unit == "mgs" {
			unit = "mg"
		}
		return name + " " + m[1] + " " + unit
	}
	return name
}

// Passthrough trims the name and standardizes plural unit spellings.
func Passthrough(itemName string) string {
	s := strings.TrimSpace(itemName)
	if s == "" {
		return itemName
	}
	s = strings.TrimSpace(passthroughReplacer.Replace(" " + s + " "))
	return strings.Join(strings.Fields(s), " ")
}

func significantWords(words []string) []string {
	kept := make([]string, 0, len(words))
	for _, w := range words {
		if numberToken.MatchString(w) || gluedDoseToken.MatchString(w) {
			continue
		}
		if _, ok := unitWords[w]; ok {
			continue
		}
		if _, ok := formWords[w]; ok {
			continue
		}
		kept = append(kept, w)
	}
	return kept
}

var adapters = map[string]domain.QueryAdapter{
	AdapterDoseGlued:        DoseGlued,
	AdapterActiveIngredient: ActiveIngredient,
	AdapterNameAndDose:      NameAndDose,
	AdapterPassthrough:      Passthrough,
}

// AdapterByName resolves a configured adapter name. An empty name selects
// Passthrough.
func AdapterByName(name string) (domain.QueryAdapter, error) {
	if name == "" {
		return Passthrough, nil
	}
	a, ok := adapters[name]
	if !ok {
		return nil, fmt.Errorf("unknown query adapter %q (known: %s)", name, strings.Join(AdapterNames(), ", "))
	}
	return a, nil
}

// AdapterNames lists the registered adapter names in sorted order.
func AdapterNames() []string {
	names := make([]string, 0, len(adapters))
	for n := range adapters {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
