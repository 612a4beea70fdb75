package application

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/diegoholiveira/jsonlogic/v3"

	"github.com/ahrav/go-pricescout/internal/domain"
)

// OfferRules is an optional JSON Logic eligibility rule evaluated against
// every offer that cleared the similarity threshold. The rule sees the
// variables provider, name, code, laboratory, price (null when unknown),
// stock, in_stock and similarity. A nil *OfferRules allows every offer.
type OfferRules struct {
	rule []byte
}

// NewOfferRules compiles rule. An empty rule yields nil rules.
func NewOfferRules(rule map[string]any) (*OfferRules, error) {
	if len(rule) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(rule)
	if err != nil {
		return nil, fmt.Errorf("failed to encode offer rule: %w", err)
	}
	if !jsonlogic.IsValid(bytes.NewReader(data)) {
		return nil, fmt.Errorf("%w: offer rule is not valid JSON Logic", domain.ErrInvalidConfiguration)
	}
	return &OfferRules{rule: data}, nil
}

// offerFacts is the data document a rule is evaluated against.
type offerFacts struct {
	Provider   string   `json:"provider"`
	Name       string   `json:"name"`
	Code       string   `json:"code"`
	Laboratory string   `json:"laboratory"`
	Price      *float64 `json:"price"`
	Stock      int      `json:"stock"`
	InStock    bool     `json:"in_stock"`
	Similarity float64  `json:"similarity"`
}

// Allow evaluates the rule for o and reports whether the result is truthy.
func (r *OfferRules) Allow(o domain.NormalizedOffer) (bool, error) {
	if r == nil {
		return true, nil
	}

	facts := offerFacts{
		Provider:   string(o.Provider),
		Name:       o.Name,
		Code:       o.Code,
		Laboratory: o.Laboratory,
		Stock:      o.Stock,
		InStock:    o.InStock(),
		Similarity: o.Similarity,
	}
	if o.PriceKnown() {
		p := o.Price
		facts.Price = &p
	}
	data, err := json.Marshal(facts)
	if err != nil {
		return false, fmt.Errorf("failed to encode offer facts: %w", err)
	}

	var out bytes.Buffer
	if err := jsonlogic.Apply(bytes.NewReader(r.rule), bytes.NewReader(data), &out); err != nil {
		return false, fmt.Errorf("offer rule evaluation failed: %w", err)
	}

	var result any
	if err := json.Unmarshal(bytes.TrimSpace(out.Bytes()), &result); err != nil {
		return false, fmt.Errorf("offer rule returned invalid JSON: %w", err)
	}
	return truthy(result), nil
}

// truthy follows JSON Logic truthiness.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	default:
		return true
	}
}
