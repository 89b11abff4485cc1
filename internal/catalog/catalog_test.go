package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightloop/campaign-insights/internal/dataset"
)

func TestGenerateCampaignRules(t *testing.T) {
	campaigns := NewGenerator(42).Generate(50)
	require.Len(t, campaigns, 50)

	assert.Equal(t, "CAMP_001", campaigns[0].CampaignID)
	assert.Equal(t, "CAMP_050", campaigns[49].CampaignID)

	for _, c := range campaigns {
		assert.Contains(t, dataset.CampaignTypes, c.CampaignType)
		assert.Contains(t, dataset.Channels, c.Channel)
		assert.Contains(t, dataset.ValueThemes, c.ValueTheme)

		switch c.CampaignType {
		case "discount":
			assert.Equal(t, "percentage_discount", c.OfferType)
			require.NotNil(t, c.DiscountPercentage)
			assert.Contains(t, discountLevels, *c.DiscountPercentage)
			assert.Contains(t, []string{"urgent", "friendly"}, c.MessageSentiment)
		case "premium":
			assert.Contains(t, []string{"bundle", "premium"}, c.OfferType)
			assert.Nil(t, c.DiscountPercentage)
			assert.Equal(t, "informative", c.MessageSentiment)
		case "educational":
			assert.Equal(t, "none", c.OfferType)
			assert.Nil(t, c.DiscountPercentage)
			assert.Equal(t, "friendly", c.MessageSentiment)
		}
	}
}

func TestGenerateDeterministic(t *testing.T) {
	a := NewGenerator(42).Generate(20)
	b := NewGenerator(42).Generate(20)
	assert.Equal(t, a, b)
}

func testSegments() []dataset.Segment {
	return []dataset.Segment{
		{SegmentID: 1, Language: "en", EngagementPropensity: 0.8, PriceSensitivity: 0.9,
			BrandLoyalty: 0.2, ChannelPerfEmail: 0.9, ChannelPerfPush: 0.3, ChannelPerfInapp: 0.3,
			ValuesFamily: 0.7, ValuesEcoConscious: 0.1, ValuesConvenience: 0.1, ValuesQuality: 0.1},
		{SegmentID: 2, Language: "fi", EngagementPropensity: 0.2, PriceSensitivity: 0.1,
			BrandLoyalty: 0.9, ChannelPerfEmail: 0.2, ChannelPerfPush: 0.5, ChannelPerfInapp: 0.5,
			ValuesFamily: 0.25, ValuesEcoConscious: 0.25, ValuesConvenience: 0.25, ValuesQuality: 0.25},
	}
}

func TestSimulateInvariants(t *testing.T) {
	campaigns := NewGenerator(42).Generate(10)
	results := NewSimulator(42).Simulate(campaigns, testSegments())
	require.Len(t, results, 20)

	for _, r := range results {
		assert.GreaterOrEqual(t, r.Impressions, impressionsMin)
		assert.Less(t, r.Impressions, impressionsMax)
		assert.LessOrEqual(t, r.Clicks, r.Impressions)
		assert.LessOrEqual(t, r.Conversions, r.Clicks)
		assert.GreaterOrEqual(t, r.Conversions, 0)
	}
}

func TestSimulateSequenceIsStrictlyIncreasing(t *testing.T) {
	campaigns := NewGenerator(42).Generate(5)
	results := NewSimulator(42).Simulate(campaigns, testSegments())

	for i, r := range results {
		assert.Equal(t, i+1, r.Sequence)
	}
}

func TestSimulateAffinityLiftsConversion(t *testing.T) {
	// One discount campaign against a price-sensitive segment vs an
	// insensitive one; averaged over many draws the sensitive segment
	// should convert better.
	discount := 20.0
	campaigns := []dataset.Campaign{{
		CampaignID: "CAMP_001", CampaignType: "discount", Channel: "email",
		MessageSentiment: "urgent", ValueTheme: "family",
		OfferType: "percentage_discount", DiscountPercentage: &discount,
	}}

	var sensitive, insensitive float64
	const rounds = 200
	for seed := int64(0); seed < rounds; seed++ {
		results := NewSimulator(seed).Simulate(campaigns, testSegments())
		sensitive += results[0].ConversionRate()
		insensitive += results[1].ConversionRate()
	}

	assert.Greater(t, sensitive/rounds, insensitive/rounds)
}
