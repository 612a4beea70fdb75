package application

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-pricescout/internal/domain"
)

// TestNewOfferRules_Empty verifies an empty rule allows every offer.
func TestNewOfferRules_Empty(t *testing.T) {
	r, err := NewOfferRules(nil)
	require.NoError(t, err, "empty rule should compile")
	assert.Nil(t, r, "empty rule should be nil")

	ok, err := r.Allow(domain.NormalizedOffer{Name: "anything"})
	require.NoError(t, err, "nil rules should not fail")
	assert.True(t, ok, "nil rules should allow everything")
}

// TestNewOfferRules_Invalid rejects rules that are not JSON Logic.
func TestNewOfferRules_Invalid(t *testing.T) {
	_, err := NewOfferRules(map[string]any{"no_such_operator": []any{1, 2}})
	require.Error(t, err, "unknown operator should be rejected")
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration, "error should be a configuration error")
}

// TestOfferRules_Allow evaluates rules against offer facts.
func TestOfferRules_Allow(t *testing.T) {
	tests := []struct {
		name  string
		rule  map[string]any
		offer domain.NormalizedOffer
		want  bool
	}{
		{
			name:  "price ceiling allows cheaper offer",
			rule:  map[string]any{"<=": []any{map[string]any{"var": "price"}, 500}},
			offer: domain.NormalizedOffer{Provider: "nadro", Price: 120},
			want:  true,
		},
		{
			name:  "price ceiling rejects expensive offer",
			rule:  map[string]any{"<=": []any{map[string]any{"var": "price"}, 500}},
			offer: domain.NormalizedOffer{Provider: "nadro", Price: 900},
			want:  false,
		},
		{
			name:  "provider exclusion",
			rule:  map[string]any{"!=": []any{map[string]any{"var": "provider"}, "fanasa"}},
			offer: domain.NormalizedOffer{Provider: "fanasa", Price: 1},
			want:  false,
		},
		{
			name:  "in stock only",
			rule:  map[string]any{"==": []any{map[string]any{"var": "in_stock"}, true}},
			offer: domain.NormalizedOffer{Provider: "nadro", Price: 1, Stock: 4},
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewOfferRules(tt.rule)
			require.NoError(t, err, "rule should compile")

			got, err := r.Allow(tt.offer)
			require.NoError(t, err, "rule should evaluate")
			assert.Equal(t, tt.want, got, "rule decision")
		})
	}
}

// TestTruthy follows JSON Logic truthiness.
func TestTruthy(t *testing.T) {
	assert.False(t, truthy(nil), "null is falsy")
	assert.False(t, truthy(false), "false is falsy")
	assert.False(t, truthy(0.0), "zero is falsy")
	assert.False(t, truthy(""), "empty string is falsy")
	assert.False(t, truthy([]any{}), "empty array is falsy")
	assert.True(t, truthy(1.0), "non-zero is truthy")
	assert.True(t, truthy("x"), "non-empty string is truthy")
	assert.True(t, truthy(map[string]any{}), "objects are truthy")
}
