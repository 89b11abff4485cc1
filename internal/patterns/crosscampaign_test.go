package patterns

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightloop/campaign-insights/internal/dataset"
)

func TestTypeAffinityPatterns(t *testing.T) {
	a := NewAnalyzer()
	rows := []dataset.MetricRow{
		// Segment 1: strong educational engagement and premium conversion.
		row(1, "CAMP_001", "educational", "email", "friendly", "family", 0.12, 0.01),
		row(1, "CAMP_002", "premium", "email", "informative", "quality", 0.08, 0.03),
		// Segment 2: discount response well above premium.
		row(2, "CAMP_003", "discount", "email", "urgent", "family", 0.08, 0.05),
		row(2, "CAMP_002", "premium", "email", "informative", "quality", 0.08, 0.02),
		// Segment 3: premium only, nothing to compare.
		row(3, "CAMP_002", "premium", "email", "informative", "quality", 0.08, 0.02),
	}

	out := a.TypeAffinity(rows)
	require.Len(t, out, 3)
	assert.Equal(t, "edu_premium_affinity", out[0].ResponsePattern)
	assert.Equal(t, "discount_preference", out[1].ResponsePattern)
	assert.Equal(t, "balanced", out[2].ResponsePattern)

	assert.Nil(t, out[0].DiscountConversion)
	require.NotNil(t, out[1].DiscountConversion)
	assert.InDelta(t, 0.05, *out[1].DiscountConversion, 1e-9)
}

func TestEducationalPrimingLevels(t *testing.T) {
	a := NewAnalyzer()
	rows := []dataset.MetricRow{
		// Segment 1: high early educational exposure, later premium rows.
		row(1, "CAMP_002", "educational", "email", "friendly", "family", 0.12, 0.01),
		row(1, "CAMP_009", "premium", "email", "informative", "quality", 0.08, 0.04),
		// Segment 2: moderate early exposure.
		row(2, "CAMP_003", "educational", "email", "friendly", "family", 0.09, 0.01),
		row(2, "CAMP_010", "premium", "email", "informative", "quality", 0.08, 0.02),
		// Segment 3: educational rows only after the boundary.
		row(3, "CAMP_011", "educational", "email", "friendly", "family", 0.15, 0.01),
	}

	priming, summary := a.EducationalPriming(rows)
	require.Len(t, priming, 3)
	assert.Equal(t, "high_edu_exposure", priming[0].EduExposureLevel)
	assert.Equal(t, "medium_edu_exposure", priming[1].EduExposureLevel)
	assert.Equal(t, "low_edu_exposure", priming[2].EduExposureLevel)

	require.NotNil(t, priming[0].LaterPremiumConversion)
	assert.InDelta(t, 0.04, *priming[0].LaterPremiumConversion, 1e-9)
	assert.Nil(t, priming[2].EarlyEduEngagement)

	require.Len(t, summary, 3)
	for _, s := range summary {
		assert.Equal(t, 1, s.SegmentCount)
	}
}

func TestValueAlignmentDominantValue(t *testing.T) {
	a := NewAnalyzer()
	segments := []dataset.Segment{
		{SegmentID: 1, ValuesFamily: 0.4, ValuesEcoConscious: 0.2, ValuesConvenience: 0.2, ValuesQuality: 0.2},
		// All weights equal: family wins by canonical ordering.
		{SegmentID: 2, ValuesFamily: 0.25, ValuesEcoConscious: 0.25, ValuesConvenience: 0.25, ValuesQuality: 0.25},
	}
	rows := []dataset.MetricRow{
		row(1, "CAMP_001", "discount", "email", "urgent", "family", 0.10, 0.05),
		row(1, "CAMP_002", "discount", "email", "urgent", "quality", 0.10, 0.01),
		row(2, "CAMP_001", "discount", "email", "urgent", "family", 0.10, 0.02),
	}

	alignment, impact := a.ValueAlignment(rows, segments)
	require.Len(t, alignment, 2)
	assert.Equal(t, "family", alignment[0].DominantValue)
	assert.Equal(t, "family", alignment[1].DominantValue)

	require.NotNil(t, alignment[0].ThemeResponse["family"])
	assert.InDelta(t, 0.05, *alignment[0].ThemeResponse["family"], 1e-9)
	assert.InDelta(t, 0.03, alignment[0].OverallConversion, 1e-9)

	require.Len(t, impact, 1)
	assert.Equal(t, "family", impact[0].DominantValue)
	assert.Equal(t, 2, impact[0].SegmentCount)
	require.NotNil(t, impact[0].AlignedThemeConversion)
	assert.InDelta(t, 0.035, *impact[0].AlignedThemeConversion, 1e-9)
}

func TestValueAlignmentSkipsSegmentsWithoutRows(t *testing.T) {
	a := NewAnalyzer()
	segments := []dataset.Segment{{SegmentID: 1}, {SegmentID: 9}}
	rows := []dataset.MetricRow{
		row(1, "CAMP_001", "discount", "email", "urgent", "family", 0.10, 0.02),
	}
	alignment, _ := a.ValueAlignment(rows, segments)
	require.Len(t, alignment, 1)
	assert.Equal(t, 1, alignment[0].SegmentID)
}

func TestChannelVersatilityStrategy(t *testing.T) {
	a := NewAnalyzer()
	rows := []dataset.MetricRow{
		// Segment 1 clears the floor on two channels.
		row(1, "CAMP_001", "discount", "email", "urgent", "family", 0.12, 0.02),
		row(1, "CAMP_002", "discount", "push", "urgent", "family", 0.11, 0.02),
		row(1, "CAMP_003", "discount", "inapp", "urgent", "family", 0.05, 0.02),
		// Segment 2 reaches two channels but clears the floor on one.
		row(2, "CAMP_001", "discount", "email", "urgent", "family", 0.12, 0.02),
		row(2, "CAMP_002", "discount", "push", "urgent", "family", 0.04, 0.02),
	}

	out := a.ChannelVersatility(rows)
	require.Len(t, out, 2)

	assert.Equal(t, 3, out[0].ChannelsEngaged)
	assert.Equal(t, "multi_channel", out[0].ChannelStrategy)
	assert.Equal(t, 2, out[1].ChannelsEngaged)
	assert.Equal(t, "single_channel", out[1].ChannelStrategy)

	require.NotNil(t, out[0].ChannelEngagement["email"])
	assert.InDelta(t, 0.12, *out[0].ChannelEngagement["email"], 1e-9)
	assert.NotNil(t, out[0].EngagementVariance)
}
