package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightloop/campaign-insights/internal/dataset"
)

func testCampaigns() []dataset.Campaign {
	return []dataset.Campaign{
		{CampaignID: "CAMP_001", CampaignType: "discount", Channel: "email",
			MessageSentiment: "urgent", ValueTheme: "family", OfferType: "percentage_discount"},
		{CampaignID: "CAMP_002", CampaignType: "premium", Channel: "push",
			MessageSentiment: "informative", ValueTheme: "quality", OfferType: "premium"},
	}
}

func testSegments() []dataset.Segment {
	return []dataset.Segment{
		{SegmentID: 1, Language: "en", ChannelPerfEmail: 0.8, ChannelPerfPush: 0.3, ChannelPerfInapp: 0.4},
		{SegmentID: 2, Language: "fi", ChannelPerfEmail: 0.5, ChannelPerfPush: 0.6, ChannelPerfInapp: 0.2},
	}
}

func result(campaignID string, segmentID, impressions, clicks, conversions, sequence int) dataset.CampaignResult {
	return dataset.CampaignResult{
		CampaignID:  campaignID,
		SegmentID:   segmentID,
		Impressions: impressions,
		Clicks:      clicks,
		Conversions: conversions,
		Sequence:    sequence,
	}
}

func TestJoinRatesAndChannelMatch(t *testing.T) {
	b := NewBuilder(5)
	rows := b.Join(
		[]dataset.CampaignResult{result("CAMP_001", 1, 10000, 800, 40, 1)},
		testCampaigns(), testSegments(),
	)
	require.Len(t, rows, 1)

	assert.Equal(t, "discount", rows[0].CampaignType)
	assert.Equal(t, "en", rows[0].Language)
	assert.InDelta(t, 0.08, rows[0].EngagementRate, 1e-9)
	assert.InDelta(t, 0.004, rows[0].ConversionRate, 1e-9)
	assert.InDelta(t, 0.8, rows[0].ChannelMatchScore, 1e-9)
}

func TestJoinDropsDanglingReferences(t *testing.T) {
	b := NewBuilder(5)
	rows := b.Join(
		[]dataset.CampaignResult{
			result("CAMP_001", 1, 10000, 800, 40, 1),
			result("CAMP_099", 1, 10000, 800, 40, 2),
			result("CAMP_001", 99, 10000, 800, 40, 3),
		},
		testCampaigns(), testSegments(),
	)
	assert.Len(t, rows, 1)
}

func TestBenchmarksObservationCutoff(t *testing.T) {
	b := NewBuilder(5)

	// Four rows in the (en, discount) cohort, five in (fi, premium).
	var results []dataset.CampaignResult
	for i := 0; i < 4; i++ {
		results = append(results, result("CAMP_001", 1, 10000, 1000, 20+i, i+1))
	}
	for i := 0; i < 5; i++ {
		results = append(results, result("CAMP_002", 2, 10000, 1000, 30+i, 10+i))
	}

	rows := b.Join(results, testCampaigns(), testSegments())
	benchmarks := b.Benchmarks(rows)

	require.Len(t, benchmarks, 1)
	assert.Equal(t, "fi", benchmarks[0].Language)
	assert.Equal(t, "premium", benchmarks[0].CampaignType)
	assert.Equal(t, 5, benchmarks[0].Observations)
	assert.InDelta(t, 0.0032, benchmarks[0].BaselineConversion, 1e-9)
	assert.InDelta(t, 0.1, benchmarks[0].BaselineEngagement, 1e-9)
	assert.Greater(t, benchmarks[0].ConversionStd, 0.0)
}

func TestAttachBenchmarksNullPropagation(t *testing.T) {
	b := NewBuilder(5)

	var results []dataset.CampaignResult
	for i := 0; i < 5; i++ {
		results = append(results, result("CAMP_002", 2, 10000, 1000, 30, i+1))
	}
	results = append(results, result("CAMP_001", 1, 10000, 1000, 20, 6))

	attached, benchmarks := b.Build(results, testCampaigns(), testSegments())
	require.Len(t, benchmarks, 1)
	require.Len(t, attached, 6)

	for _, row := range attached {
		if row.CampaignType == "premium" {
			require.NotNil(t, row.BaselineConversion)
			require.NotNil(t, row.BaselineEngagement)
			require.NotNil(t, row.SalesVsBenchmark)
			assert.InDelta(t, 1.0, *row.SalesVsBenchmark, 1e-9)
		} else {
			assert.Nil(t, row.BaselineConversion)
			assert.Nil(t, row.BaselineEngagement)
			assert.Nil(t, row.SalesVsBenchmark)
		}
	}
}

func TestAttachBenchmarksZeroBaseline(t *testing.T) {
	b := NewBuilder(5)

	// A cohort where every row converted zero times yields a zero baseline;
	// the ratio must stay nil instead of dividing by zero.
	var results []dataset.CampaignResult
	for i := 0; i < 5; i++ {
		results = append(results, result("CAMP_001", 1, 10000, 1000, 0, i+1))
	}

	attached, _ := b.Build(results, testCampaigns(), testSegments())
	for _, row := range attached {
		require.NotNil(t, row.BaselineConversion)
		assert.Zero(t, *row.BaselineConversion)
		assert.Nil(t, row.SalesVsBenchmark)
	}
}
