// Package domain holds the value types of an offer aggregation run: the
// query, the raw and normalized offers providers produce, and the two-offer
// result handed back to callers.
package domain

import (
	"encoding/json"
	"math"
	"strings"
	"time"
)

// ProviderID identifies an external offer provider.
type ProviderID string

// ProviderInternal identifies offers served from the internal catalog.
const ProviderInternal ProviderID = "internal"

// UnknownPrice is the sentinel for a price that is missing, unparsable or
// exactly zero. It sorts after every real price.
var UnknownPrice = math.Inf(1)

// Query is the immutable input of one aggregation run.
type Query struct {
	// ItemName is the free-text item the customer asked for.
	ItemName string
	// CallerKey identifies the logical caller for throttling and history.
	CallerKey string
}

// NewQuery trims its inputs and rejects an empty item name.
func NewQuery(itemName, callerKey string) (Query, error) {
	itemName = strings.TrimSpace(itemName)
	if itemName == "" {
		return Query{}, ErrEmptyQuery
	}
	return Query{ItemName: itemName, CallerKey: strings.TrimSpace(callerKey)}, nil
}

// QueryAdapter turns a raw item name into the query string one provider
// family searches best with. Implementations are pure and total.
type QueryAdapter func(itemName string) string

// ProviderDescriptor is the static scheduling configuration of a provider.
type ProviderDescriptor struct {
	// ID identifies the provider.
	ID ProviderID
	// Phase is the 1-based phase the provider runs in.
	Phase int
	// Timeout bounds a single Search call.
	Timeout time.Duration
	// Adapter normalizes the item name for this provider. Nil means passthrough.
	Adapter QueryAdapter
}

// Normalize applies the descriptor's adapter, falling back to the input.
func (d ProviderDescriptor) Normalize(itemName string) string {
	if d.Adapter == nil {
		return itemName
	}
	if q := d.Adapter(itemName); q != "" {
		return q
	}
	return itemName
}

// Provider-reported record statuses that mark a raw record as unusable.
const (
	StatusNotFound = "not_found"
	StatusError    = "error"
)

// RawOffer is one candidate record as returned by a provider, before any
// parsing. Every field is free text.
type RawOffer struct {
	Provider   ProviderID `json:"provider" yaml:"provider"`
	Name       string     `json:"name" yaml:"name"`
	Price      string     `json:"price" yaml:"price"`
	Stock      string     `json:"stock" yaml:"stock"`
	Status     string     `json:"status,omitempty" yaml:"status,omitempty"`
	Code       string     `json:"code,omitempty" yaml:"code,omitempty"`
	Laboratory string     `json:"laboratory,omitempty" yaml:"laboratory,omitempty"`
}

// Usable reports whether the record carries anything worth scoring:
// a non-failure status and at least a name or a price.
func (r RawOffer) Usable() bool {
	switch strings.ToLower(strings.TrimSpace(r.Status)) {
	case StatusNotFound, StatusError, "no_encontrado":
		return false
	}
	return strings.TrimSpace(r.Name) != "" || strings.TrimSpace(r.Price) != ""
}

// NormalizedOffer is a RawOffer with parsed price and stock and its
// similarity against the run's query.
type NormalizedOffer struct {
	Provider   ProviderID
	Name       string
	Code       string
	Laboratory string
	// Price is UnknownPrice when the raw price was empty, unparsable or zero.
	Price float64
	// Stock is never negative.
	Stock int
	// Similarity is in [0,1].
	Similarity float64
}

// InStock reports whether the offer has positive stock.
func (o NormalizedOffer) InStock() bool { return o.Stock > 0 }

// PriceKnown reports whether the offer carries a real price.
func (o NormalizedOffer) PriceKnown() bool { return !math.IsInf(o.Price, 1) }

// MarshalJSON renders an unknown price as null.
func (o NormalizedOffer) MarshalJSON() ([]byte, error) {
	var price *float64
	if o.PriceKnown() {
		p := o.Price
		price = &p
	}
	return json.Marshal(struct {
		Provider   ProviderID `json:"provider"`
		Name       string     `json:"name"`
		Code       string     `json:"code,omitempty"`
		Laboratory string     `json:"laboratory,omitempty"`
		Price      *float64   `json:"price"`
		Stock      int        `json:"stock"`
		Similarity float64    `json:"similarity"`
	}{o.Provider, o.Name, o.Code, o.Laboratory, price, o.Stock, o.Similarity})
}

// AggregationResult is the externally visible output of one run.
type AggregationResult struct {
	// Fastest is the first offer from the fast provider, if any.
	Fastest *NormalizedOffer `json:"fastest"`
	// Cheapest is the lowest-priced surviving offer, if any.
	Cheapest *NormalizedOffer `json:"cheapest"`
	// OffersDiffer is true iff both offers exist and differ by provider or price.
	OffersDiffer bool `json:"offers_differ"`

	// RunID correlates logs, spans and the result.
	RunID string `json:"run_id,omitempty"`
	// Candidates lists every normalized offer of the run, including those
	// below the similarity threshold. Diagnostics only.
	Candidates []NormalizedOffer `json:"candidates,omitempty"`
	// Failures lists provider calls that produced no offers.
	Failures []ProviderFailure `json:"-"`
	// Duration is the wall time of the run.
	Duration time.Duration `json:"duration_ns,omitempty"`
}

// NewAggregationResult builds a result whose OffersDiffer flag always
// agrees with the two offers.
func NewAggregationResult(fastest, cheapest *NormalizedOffer) AggregationResult {
	return AggregationResult{
		Fastest:      fastest,
		Cheapest:     cheapest,
		OffersDiffer: OffersDiffer(fastest, cheapest),
	}
}

// OffersDiffer reports whether two offers are a dual option.
func OffersDiffer(a, b *NormalizedOffer) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Provider != b.Provider || a.Price != b.Price
}

// Found reports whether the run surfaced at least one offer.
func (r AggregationResult) Found() bool { return r.Fastest != nil || r.Cheapest != nil }
