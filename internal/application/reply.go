package application

import (
	"fmt"
	"strings"

	"github.com/ahrav/go-pricescout/internal/domain"
)

// Customer-facing reply texts.
const (
	ReplyUnavailable = "Price lookup is temporarily unavailable. Please try again in a few minutes."
	replyNotFound    = "We could not find %q with our suppliers right now."
	replyPriceless   = "price on request"
)

// RenderReply turns a result into the message sent back to the caller.
func RenderReply(itemName string, result domain.AggregationResult, markups Markups) string {
	switch {
	case !result.Found():
		return fmt.Sprintf(replyNotFound, itemName)
	case result.OffersDiffer:
		var b strings.Builder
		b.WriteString("Fastest option: ")
		b.WriteString(describe(*result.Fastest, markups))
		b.WriteString("\nLowest price: ")
		b.WriteString(describe(*result.Cheapest, markups))
		return b.String()
	case result.Fastest != nil:
		return describe(*result.Fastest, markups)
	default:
		return describe(*result.Cheapest, markups)
	}
}

func describe(o domain.NormalizedOffer, markups Markups) string {
	price := markups.CustomerPrice(o)
	if price == "" {
		price = replyPriceless
	}
	availability := "out of stock"
	if o.InStock() {
		availability = "in stock"
	}
	if o.Laboratory != "" {
		return fmt.Sprintf("%s (%s) - %s, %s", o.Name, o.Laboratory, price, availability)
	}
	return fmt.Sprintf("%s - %s, %s", o.Name, price, availability)
}
