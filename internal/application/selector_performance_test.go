package application

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-pricescout/infrastructure/matching"
	"github.com/ahrav/go-pricescout/internal/testutils"
)

// TestSelector_GeneratedDataset checks selection invariants across a
// synthetic dataset with messy prices, stock text and near-miss names.
func TestSelector_GeneratedDataset(t *testing.T) {
	dataset := testutils.GenerateOfferDataset(300, 42)
	require.Len(t, dataset.Items, 300, "dataset size")

	s := NewSelector(matching.NewScorer(), 0.6, "sufarmed")
	rng := rand.New(rand.NewSource(7))

	for _, it := range dataset.Items {
		raw := it.AllOffers()
		result := s.Select(it.Query, raw)

		assert.Equal(t, result.Fastest != nil && result.Cheapest != nil &&
			(result.Fastest.Provider != result.Cheapest.Provider || result.Fastest.Price != result.Cheapest.Price),
			result.OffersDiffer, "OffersDiffer should agree with the offers for %q", it.Query)

		if result.Fastest != nil {
			assert.Equal(t, "sufarmed", string(result.Fastest.Provider), "fastest comes from the fast provider")
			assert.GreaterOrEqual(t, result.Fastest.Similarity, 0.6, "fastest clears the threshold")
		}
		for _, c := range result.Candidates {
			assert.GreaterOrEqual(t, c.Stock, 0, "stock is never negative")
			assert.Positive(t, c.Price, "price is positive or unknown")
			if result.Cheapest != nil && c.Similarity >= 0.6 {
				assert.LessOrEqual(t, result.Cheapest.Price, c.Price,
					"cheapest should not exceed any eligible offer for %q", it.Query)
			}
		}

		shuffled := append(raw[:0:0], raw...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		again := s.Select(it.Query, shuffled)
		assert.Equal(t, result.Fastest, again.Fastest, "fastest independent of arrival order for %q", it.Query)
		assert.Equal(t, result.Cheapest, again.Cheapest, "cheapest independent of arrival order for %q", it.Query)
	}
}

// BenchmarkSelector_Select measures normalization and selection over
// generated provider responses.
func BenchmarkSelector_Select(b *testing.B) {
	dataset := testutils.GenerateOfferDataset(100, 42)
	s := NewSelector(matching.NewScorer(), 0.6, "sufarmed")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		it := dataset.Items[i%len(dataset.Items)]
		_ = s.Select(it.Query, it.AllOffers())
	}
}
