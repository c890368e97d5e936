package services

import (
	"time"

	"github.com/shopspring/decimal"

	"storefront-order-service/models"
)

// EffectivePrice returns the lowest price among the campaigns in effect at
// now, or the list price when none is.
func EffectivePrice(product *models.Product, now time.Time) (decimal.Decimal, *models.Campaign) {
	price := product.Price
	var applied *models.Campaign

	for i := range product.Campaigns {
		c := &product.Campaigns[i]
		if !c.EffectiveAt(now) {
			continue
		}
		if applied == nil || c.Price.LessThan(applied.Price) {
			applied = c
		}
	}

	if applied != nil && applied.Price.LessThan(price) {
		price = applied.Price
	} else {
		applied = nil
	}
	return price.Round(2), applied
}

// ApportionShipping splits fee across lines proportionally to their
// subtotals. Each share is rounded to cents independently, so the shares
// need not add up to fee exactly.
func ApportionShipping(fee decimal.Decimal, subtotals []decimal.Decimal) []decimal.Decimal {
	shares := make([]decimal.Decimal, len(subtotals))

	total := decimal.Zero
	for _, s := range subtotals {
		total = total.Add(s)
	}

	for i, s := range subtotals {
		if fee.IsZero() || total.IsZero() {
			shares[i] = decimal.Zero
			continue
		}
		shares[i] = fee.Mul(s).Div(total).Round(2)
	}
	return shares
}

func lineSubtotal(price decimal.Decimal, quantity int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
}
