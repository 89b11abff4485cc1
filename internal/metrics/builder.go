// Package metrics implements the metrics and benchmark stage: joining
// results with campaigns and segments, deriving engagement/conversion rates,
// and benchmarking each row against its cohort baseline.
package metrics

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/brightloop/campaign-insights/internal/dataset"
)

// Builder computes the joined metric table and cohort baselines.
type Builder struct {
	minObservations int
}

// NewBuilder creates a builder. Cohorts with fewer than minObservations
// result rows are excluded from the benchmark table entirely.
func NewBuilder(minObservations int) *Builder {
	return &Builder{minObservations: minObservations}
}

// Join produces one MetricRow per result row, inner-joined against the
// campaign catalog and the segment table. Results referencing an unknown
// campaign or segment are dropped, matching SQL inner-join semantics.
func (b *Builder) Join(results []dataset.CampaignResult, campaigns []dataset.Campaign, segments []dataset.Segment) []dataset.MetricRow {
	campaignsByID := make(map[string]dataset.Campaign, len(campaigns))
	for _, c := range campaigns {
		campaignsByID[c.CampaignID] = c
	}
	segmentsByID := make(map[int]dataset.Segment, len(segments))
	for _, s := range segments {
		segmentsByID[s.SegmentID] = s
	}

	rows := make([]dataset.MetricRow, 0, len(results))
	for _, r := range results {
		campaign, ok := campaignsByID[r.CampaignID]
		if !ok {
			continue
		}
		segment, ok := segmentsByID[r.SegmentID]
		if !ok {
			continue
		}

		rows = append(rows, dataset.MetricRow{
			CampaignID:  r.CampaignID,
			SegmentID:   r.SegmentID,
			Sequence:    r.Sequence,
			Impressions: r.Impressions,
			Clicks:      r.Clicks,
			Conversions: r.Conversions,

			CampaignType:     campaign.CampaignType,
			Channel:          campaign.Channel,
			MessageSentiment: campaign.MessageSentiment,
			ValueTheme:       campaign.ValueTheme,
			Language:         segment.Language,

			EngagementRate:    r.EngagementRate(),
			ConversionRate:    r.ConversionRate(),
			ChannelMatchScore: segment.ChannelPerf(campaign.Channel),
		})
	}
	return rows
}

// Benchmarks aggregates per-(language, campaign_type) baselines over the
// joined rows, keeping only cohorts with enough observations. Output is
// sorted for deterministic export.
func (b *Builder) Benchmarks(rows []dataset.MetricRow) []dataset.Benchmark {
	type cohort struct {
		conversions []float64
		engagements []float64
	}
	cohorts := map[[2]string]*cohort{}
	for _, row := range rows {
		key := [2]string{row.Language, row.CampaignType}
		c := cohorts[key]
		if c == nil {
			c = &cohort{}
			cohorts[key] = c
		}
		c.conversions = append(c.conversions, row.ConversionRate)
		c.engagements = append(c.engagements, row.EngagementRate)
	}

	benchmarks := make([]dataset.Benchmark, 0, len(cohorts))
	for key, c := range cohorts {
		if len(c.conversions) < b.minObservations {
			continue
		}
		benchmarks = append(benchmarks, dataset.Benchmark{
			Language:           key[0],
			CampaignType:       key[1],
			BaselineConversion: stat.Mean(c.conversions, nil),
			BaselineEngagement: stat.Mean(c.engagements, nil),
			ConversionStd:      stat.StdDev(c.conversions, nil),
			Observations:       len(c.conversions),
		})
	}

	sort.Slice(benchmarks, func(i, j int) bool {
		if benchmarks[i].Language != benchmarks[j].Language {
			return benchmarks[i].Language < benchmarks[j].Language
		}
		return benchmarks[i].CampaignType < benchmarks[j].CampaignType
	})
	return benchmarks
}

// AttachBenchmarks left-joins each row against its cohort baseline. Rows
// without a qualifying cohort keep nil comparison fields; the benchmark
// ratio is also nil when the baseline conversion is zero.
func (b *Builder) AttachBenchmarks(rows []dataset.MetricRow, benchmarks []dataset.Benchmark) []dataset.MetricRow {
	byCohort := make(map[[2]string]dataset.Benchmark, len(benchmarks))
	for _, bm := range benchmarks {
		byCohort[[2]string{bm.Language, bm.CampaignType}] = bm
	}

	out := make([]dataset.MetricRow, len(rows))
	for i, row := range rows {
		bm, ok := byCohort[[2]string{row.Language, row.CampaignType}]
		if ok {
			conversion := bm.BaselineConversion
			engagement := bm.BaselineEngagement
			row.BaselineConversion = &conversion
			row.BaselineEngagement = &engagement
			if conversion != 0 {
				ratio := row.ConversionRate / conversion
				row.SalesVsBenchmark = &ratio
			}
		}
		out[i] = row
	}
	return out
}

// Build runs the full stage: join, benchmark, attach.
func (b *Builder) Build(results []dataset.CampaignResult, campaigns []dataset.Campaign, segments []dataset.Segment) ([]dataset.MetricRow, []dataset.Benchmark) {
	rows := b.Join(results, campaigns, segments)
	benchmarks := b.Benchmarks(rows)
	return b.AttachBenchmarks(rows, benchmarks), benchmarks
}
