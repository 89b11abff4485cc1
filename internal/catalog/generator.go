// Package catalog implements the campaign generation stage: synthesizing a
// campaign catalog and simulating segment-by-campaign interaction results.
package catalog

import (
	"fmt"
	"math/rand/v2"

	"github.com/brightloop/campaign-insights/internal/dataset"
)

var (
	discountLevels = []float64{10, 15, 20, 25, 30, 40}
	discountMoods  = []string{"urgent", "friendly"}
	premiumOffers  = []string{"bundle", "premium"}
)

// Generator builds campaign catalogs with a seeded PRNG.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator creates a seeded catalog generator.
func NewGenerator(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewPCG(uint64(seed), uint64(seed)))}
}

// Generate produces count campaigns. Offer type, sentiment, and discount
// depend on the campaign type; channel and value theme are uniform.
func (g *Generator) Generate(count int) []dataset.Campaign {
	campaigns := make([]dataset.Campaign, 0, count)
	for i := 1; i <= count; i++ {
		c := dataset.Campaign{
			CampaignID:   fmt.Sprintf("CAMP_%03d", i),
			CampaignType: pick(g.rng, dataset.CampaignTypes),
			Channel:      pick(g.rng, dataset.Channels),
			ValueTheme:   pick(g.rng, dataset.ValueThemes),
		}

		switch c.CampaignType {
		case "discount":
			c.OfferType = "percentage_discount"
			discount := pick(g.rng, discountLevels)
			c.DiscountPercentage = &discount
			c.MessageSentiment = pick(g.rng, discountMoods)
		case "premium":
			c.OfferType = pick(g.rng, premiumOffers)
			c.MessageSentiment = "informative"
		default:
			c.OfferType = "none"
			c.MessageSentiment = "friendly"
		}

		campaigns = append(campaigns, c)
	}
	return campaigns
}

func pick[T any](rng *rand.Rand, options []T) T {
	return options[rng.IntN(len(options))]
}
