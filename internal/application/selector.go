package application

import (
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/ahrav/go-pricescout/internal/domain"
)

// Selector turns the raw offers of one run into the two-offer result.
// It is pure apart from logging and safe for concurrent use.
type Selector struct {
	scorer       SimilarityScorer
	threshold    float64
	fastProvider domain.ProviderID
	rules        *OfferRules
	logger       log.FieldLogger
}

// SelectorOption configures a Selector.
type SelectorOption func(*Selector)

// WithOfferRules installs an eligibility rule applied after the threshold.
func WithOfferRules(r *OfferRules) SelectorOption { return func(s *Selector) { s.rules = r } }

// WithSelectorLogger overrides the logger.
func WithSelectorLogger(l log.FieldLogger) SelectorOption { return func(s *Selector) { s.logger = l } }

// NewSelector creates a selector.
func NewSelector(scorer SimilarityScorer, threshold float64, fastProvider domain.ProviderID, opts ...SelectorOption) *Selector {
	s := &Selector{
		scorer:       scorer,
		threshold:    threshold,
		fastProvider: fastProvider,
		logger:       log.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Threshold returns the minimum selectable similarity.
func (s *Selector) Threshold() float64 { return s.threshold }

// Select normalizes raw, filters by similarity and rules, and picks the
// fastest and cheapest offers. The result depends only on the multiset of
// raw offers, never on their arrival order. Candidates holds every usable
// offer, including those below the threshold.
func (s *Selector) Select(itemName string, raw []domain.RawOffer) domain.AggregationResult {
	candidates := make([]domain.NormalizedOffer, 0, len(raw))
	for _, r := range raw {
		if !r.Usable() {
			continue
		}
		candidates = append(candidates, NormalizeOffer(r, itemName, s.scorer))
	}
	sort.SliceStable(candidates, func(i, j int) bool { return canonicalLess(candidates[i], candidates[j]) })

	var inStock, outOfStock []domain.NormalizedOffer
	for _, c := range candidates {
		if c.Similarity < s.threshold {
			continue
		}
		ok, err := s.rules.Allow(c)
		if err != nil {
			s.logger.WithFields(log.Fields{
				"event":    "offer_rule_failed",
				"provider": c.Provider,
				"offer":    c.Name,
			}).WithError(err).Warn("Offer rule failed; offer excluded")
			continue
		}
		if !ok {
			continue
		}
		if c.InStock() {
			inStock = append(inStock, c)
		} else {
			outOfStock = append(outOfStock, c)
		}
	}
	working := append(inStock, outOfStock...)

	var fastest *domain.NormalizedOffer
	for i := range working {
		if working[i].Provider == s.fastProvider {
			o := working[i]
			fastest = &o
			break
		}
	}

	var cheapest *domain.NormalizedOffer
	if len(working) > 0 {
		byPrice := append([]domain.NormalizedOffer(nil), working...)
		sort.SliceStable(byPrice, func(i, j int) bool { return priceLess(byPrice[i], byPrice[j]) })
		o := byPrice[0]
		cheapest = &o
	}

	result := domain.NewAggregationResult(fastest, cheapest)
	result.Candidates = candidates
	return result
}

// priceLess orders by price, then in-stock before out-of-stock, then the
// canonical order.
func priceLess(a, b domain.NormalizedOffer) bool {
	if a.Price != b.Price {
		return a.Price < b.Price
	}
	if a.InStock() != b.InStock() {
		return a.InStock()
	}
	return canonicalLess(a, b)
}

// canonicalLess is a total order used to make selection independent of
// arrival order: higher similarity first, then provider, name, code,
// price, stock and laboratory.
func canonicalLess(a, b domain.NormalizedOffer) bool {
	switch {
	case a.Similarity != b.Similarity:
		return a.Similarity > b.Similarity
	case a.Provider != b.Provider:
		return a.Provider < b.Provider
	case a.Name != b.Name:
		return a.Name < b.Name
	case a.Code != b.Code:
		return a.Code < b.Code
	case a.Price != b.Price:
		return a.Price < b.Price
	case a.Stock != b.Stock:
		return a.Stock > b.Stock
	default:
		return a.Laboratory < b.Laboratory
	}
}
