package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"storefront-order-service/models"
)

func TestEffectivePrice(t *testing.T) {
	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	window := func(price string, active bool, from, to time.Time) models.Campaign {
		return models.Campaign{Price: decimal.RequireFromString(price), IsActive: active, StartDate: from, EndDate: to}
	}

	tests := []struct {
		name      string
		campaigns []models.Campaign
		want      string
		applied   bool
	}{
		{name: "no campaign", want: "100"},
		{
			name:      "active campaign",
			campaigns: []models.Campaign{window("79.90", true, now.Add(-time.Hour), now.Add(time.Hour))},
			want:      "79.9",
			applied:   true,
		},
		{
			name:      "inactive flag",
			campaigns: []models.Campaign{window("79.90", false, now.Add(-time.Hour), now.Add(time.Hour))},
			want:      "100",
		},
		{
			name:      "expired",
			campaigns: []models.Campaign{window("79.90", true, now.Add(-48*time.Hour), now.Add(-time.Hour))},
			want:      "100",
		},
		{
			name:      "not started",
			campaigns: []models.Campaign{window("79.90", true, now.Add(time.Hour), now.Add(48*time.Hour))},
			want:      "100",
		},
		{
			name: "lowest of overlapping",
			campaigns: []models.Campaign{
				window("90", true, now.Add(-time.Hour), now.Add(time.Hour)),
				window("85", true, now.Add(-time.Hour), now.Add(time.Hour)),
			},
			want:    "85",
			applied: true,
		},
		{
			name:      "campaign above list price ignored",
			campaigns: []models.Campaign{window("120", true, now.Add(-time.Hour), now.Add(time.Hour))},
			want:      "100",
		},
		{
			name:      "window bounds inclusive",
			campaigns: []models.Campaign{window("60", true, now, now)},
			want:      "60",
			applied:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			product := &models.Product{Price: decimal.NewFromInt(100), Campaigns: tt.campaigns}

			price, campaign := EffectivePrice(product, now)
			assert.Equal(t, tt.want, price.String())
			assert.Equal(t, tt.applied, campaign != nil)
		})
	}
}

func TestApportionShipping(t *testing.T) {
	d := decimal.RequireFromString

	shares := ApportionShipping(d("10"), []decimal.Decimal{d("10"), d("10"), d("10")})
	for _, s := range shares {
		assert.Equal(t, "3.33", s.StringFixed(2))
	}

	shares = ApportionShipping(d("5"), []decimal.Decimal{d("75"), d("25")})
	assert.Equal(t, "3.75", shares[0].StringFixed(2))
	assert.Equal(t, "1.25", shares[1].StringFixed(2))

	shares = ApportionShipping(decimal.Zero, []decimal.Decimal{d("75")})
	assert.True(t, shares[0].IsZero())

	shares = ApportionShipping(d("5"), []decimal.Decimal{decimal.Zero, decimal.Zero})
	assert.True(t, shares[0].IsZero())
	assert.True(t, shares[1].IsZero())
}

func TestLineSubtotal(t *testing.T) {
	assert.Equal(t, "149.97", lineSubtotal(decimal.RequireFromString("49.99"), 3).StringFixed(2))
}
