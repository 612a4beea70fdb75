package application

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ahrav/go-pricescout/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// ApplyMarkup returns the customer price for a provider cost so that the
// markup is pct percent of the final price: cost / (1 - pct/100), rounded
// to cents. pct outside [0,100) is treated as zero.
func ApplyMarkup(cost float64, pct float64) decimal.Decimal {
	price := decimal.NewFromFloat(cost)
	if pct <= 0 || pct >= 100 {
		return price.Round(2)
	}
	margin := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(pct).Div(hundred))
	return price.Div(margin).Round(2)
}

// FormatPrice renders d as $1,234.56.
func FormatPrice(d decimal.Decimal) string {
	s := d.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	whole, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	out := "$" + b.String() + "." + frac
	if neg {
		return "-" + out
	}
	return out
}

// Markups maps providers to their markup percentage.
type Markups map[domain.ProviderID]float64

// CustomerPrice renders the marked-up price of o, or "" when unknown.
func (m Markups) CustomerPrice(o domain.NormalizedOffer) string {
	if !o.PriceKnown() {
		return ""
	}
	return FormatPrice(ApplyMarkup(o.Price, m[o.Provider]))
}
