package patterns

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightloop/campaign-insights/internal/dataset"
)

func row(segmentID int, campaignID, campaignType, channel, sentiment, theme string, engagement, conversion float64) dataset.MetricRow {
	return dataset.MetricRow{
		SegmentID:        segmentID,
		CampaignID:       campaignID,
		CampaignType:     campaignType,
		Channel:          channel,
		MessageSentiment: sentiment,
		ValueTheme:       theme,
		EngagementRate:   engagement,
		ConversionRate:   conversion,
	}
}

func TestSegmentConsistencyScore(t *testing.T) {
	a := NewAnalyzer()
	rows := []dataset.MetricRow{
		row(1, "CAMP_001", "discount", "email", "urgent", "family", 0.10, 0.02),
		row(1, "CAMP_002", "discount", "email", "urgent", "family", 0.12, 0.02),
		row(1, "CAMP_003", "discount", "email", "urgent", "family", 0.08, 0.02),
	}
	out := a.SegmentConsistency(rows)
	require.Len(t, out, 1)

	c := out[0]
	assert.Equal(t, 3, c.CampaignsReached)
	assert.InDelta(t, 0.02, c.AvgConversion, 1e-9)
	// Identical conversion rates: zero volatility, perfect consistency.
	require.NotNil(t, c.ConversionVolatility)
	assert.InDelta(t, 0, *c.ConversionVolatility, 1e-9)
	require.NotNil(t, c.ConsistencyScore)
	assert.InDelta(t, 1.0, *c.ConsistencyScore, 1e-9)
	assert.InDelta(t, 0.02, c.MinConversion, 1e-9)
	assert.InDelta(t, 0.02, c.MaxConversion, 1e-9)
}

func TestSegmentConsistencyUndefinedCases(t *testing.T) {
	a := NewAnalyzer()

	// Single row: no sample deviation, no score.
	out := a.SegmentConsistency([]dataset.MetricRow{
		row(1, "CAMP_001", "discount", "email", "urgent", "family", 0.10, 0.02),
	})
	require.Len(t, out, 1)
	assert.Nil(t, out[0].ConversionVolatility)
	assert.Nil(t, out[0].ConsistencyScore)

	// Zero average conversion: score is undefined even with volatility.
	out = a.SegmentConsistency([]dataset.MetricRow{
		row(2, "CAMP_001", "discount", "email", "urgent", "family", 0.10, 0),
		row(2, "CAMP_002", "discount", "email", "urgent", "family", 0.12, 0),
	})
	require.Len(t, out, 1)
	assert.NotNil(t, out[0].ConversionVolatility)
	assert.Nil(t, out[0].ConsistencyScore)
}

func TestAttributeEffectivenessGrouping(t *testing.T) {
	a := NewAnalyzer()
	ratio := 1.2
	rows := []dataset.MetricRow{
		row(1, "CAMP_001", "discount", "email", "urgent", "family", 0.10, 0.02),
		row(2, "CAMP_001", "discount", "email", "urgent", "family", 0.14, 0.04),
		row(1, "CAMP_002", "premium", "push", "informative", "quality", 0.08, 0.01),
	}
	rows[0].SalesVsBenchmark = &ratio

	out := a.AttributeEffectiveness(rows)
	require.Len(t, out, 2)

	disc := out[0]
	assert.Equal(t, "discount", disc.CampaignType)
	assert.Equal(t, 2, disc.SegmentCount)
	assert.InDelta(t, 0.03, disc.AvgConversion, 1e-9)
	assert.InDelta(t, 0.12, disc.AvgEngagement, 1e-9)
	// Only one row carried a benchmark ratio; the average skips the other.
	require.NotNil(t, disc.AvgVsBenchmark)
	assert.InDelta(t, 1.2, *disc.AvgVsBenchmark, 1e-9)
	require.NotNil(t, disc.ConversionStd)
	require.NotNil(t, disc.StdError)
	assert.InDelta(t, *disc.ConversionStd/1.41421356, *disc.StdError, 1e-6)

	prem := out[1]
	assert.Equal(t, "premium", prem.CampaignType)
	assert.Nil(t, prem.AvgVsBenchmark)
	assert.Nil(t, prem.ConversionStd)
}

func TestInteractionEffectsLift(t *testing.T) {
	a := NewAnalyzer()
	rows := []dataset.MetricRow{
		row(1, "CAMP_001", "discount", "email", "urgent", "family", 0.10, 0.04),
		row(1, "CAMP_002", "discount", "push", "urgent", "family", 0.10, 0.02),
		row(1, "CAMP_003", "premium", "email", "informative", "quality", 0.10, 0.02),
		row(1, "CAMP_004", "premium", "push", "informative", "quality", 0.10, 0.02),
	}
	out := a.InteractionEffects(rows)
	require.Len(t, out, 4)

	// discount+email: type avg 0.03, channel avg 0.03, expected 0.03,
	// actual 0.04, lift +0.01 (+33.3%).
	de := out[0]
	assert.Equal(t, "discount", de.CampaignType)
	assert.Equal(t, "email", de.Channel)
	assert.InDelta(t, 0.03, de.ExpectedConversion, 1e-9)
	assert.InDelta(t, 0.01, de.InteractionLift, 1e-9)
	require.NotNil(t, de.InteractionLiftPct)
	assert.InDelta(t, 33.333333, *de.InteractionLiftPct, 1e-3)
}

func TestInteractionEffectsZeroExpected(t *testing.T) {
	a := NewAnalyzer()
	rows := []dataset.MetricRow{
		row(1, "CAMP_001", "discount", "email", "urgent", "family", 0.10, 0),
	}
	out := a.InteractionEffects(rows)
	require.Len(t, out, 1)
	assert.Zero(t, out[0].ExpectedConversion)
	assert.Nil(t, out[0].InteractionLiftPct)
}
