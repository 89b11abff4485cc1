// Package patterns computes read-only analytical views over the benchmarked
// metrics: response consistency, attribute effectiveness, interaction lifts,
// and the cross-campaign affinity/priming/alignment/versatility tables.
// Nothing here feeds back into the learner's state.
package patterns

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/brightloop/campaign-insights/internal/dataset"
)

// SegmentConsistency summarizes how stable one segment's responses are.
// Volatility and the consistency score are nil when they are undefined
// (fewer than two rows, or a zero average conversion).
type SegmentConsistency struct {
	SegmentID            int
	CampaignsReached     int
	AvgConversion        float64
	ConversionVolatility *float64
	AvgEngagement        float64
	EngagementVolatility *float64
	MinConversion        float64
	MaxConversion        float64
	ConsistencyScore     *float64
}

// AttributeEffectiveness aggregates outcomes for one full attribute
// combination. AvgVsBenchmark averages only the rows that carried a baseline.
type AttributeEffectiveness struct {
	CampaignType     string
	Channel          string
	MessageSentiment string
	ValueTheme       string
	SegmentCount     int
	AvgConversion    float64
	AvgEngagement    float64
	AvgVsBenchmark   *float64
	ConversionStd    *float64
	StdError         *float64
}

// InteractionEffect measures how a (campaign_type, channel) pairing performs
// against the mean of its two marginal baselines.
type InteractionEffect struct {
	CampaignType       string
	Channel            string
	SampleSize         int
	ActualConversion   float64
	ActualEngagement   float64
	TypeAvgConversion  float64
	ChannelAvgConv     float64
	ExpectedConversion float64
	InteractionLift    float64
	InteractionLiftPct *float64
}

// Analyzer runs the aggregate pattern computations over joined metric rows.
type Analyzer struct{}

// NewAnalyzer creates a pattern analyzer.
func NewAnalyzer() *Analyzer { return &Analyzer{} }

// SegmentConsistency computes the per-segment stability table, sorted by
// segment id for deterministic export.
func (a *Analyzer) SegmentConsistency(rows []dataset.MetricRow) []SegmentConsistency {
	type acc struct {
		campaigns   map[string]struct{}
		conversions []float64
		engagements []float64
	}
	accs := map[int]*acc{}
	for _, row := range rows {
		s := accs[row.SegmentID]
		if s == nil {
			s = &acc{campaigns: map[string]struct{}{}}
			accs[row.SegmentID] = s
		}
		s.campaigns[row.CampaignID] = struct{}{}
		s.conversions = append(s.conversions, row.ConversionRate)
		s.engagements = append(s.engagements, row.EngagementRate)
	}

	out := make([]SegmentConsistency, 0, len(accs))
	for segmentID, s := range accs {
		c := SegmentConsistency{
			SegmentID:            segmentID,
			CampaignsReached:     len(s.campaigns),
			AvgConversion:        stat.Mean(s.conversions, nil),
			ConversionVolatility: sampleStd(s.conversions),
			AvgEngagement:        stat.Mean(s.engagements, nil),
			EngagementVolatility: sampleStd(s.engagements),
			MinConversion:        minOf(s.conversions),
			MaxConversion:        maxOf(s.conversions),
		}
		if c.ConversionVolatility != nil && c.AvgConversion != 0 {
			score := 1 - *c.ConversionVolatility/c.AvgConversion
			c.ConsistencyScore = &score
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SegmentID < out[j].SegmentID })
	return out
}

// AttributeEffectiveness groups rows by the full attribute combination and
// aggregates conversion, engagement, and benchmark-relative performance.
func (a *Analyzer) AttributeEffectiveness(rows []dataset.MetricRow) []AttributeEffectiveness {
	type key struct{ campaignType, channel, sentiment, theme string }
	type acc struct {
		conversions []float64
		engagements []float64
		vsBenchmark []float64
	}
	accs := map[key]*acc{}
	for _, row := range rows {
		k := key{row.CampaignType, row.Channel, row.MessageSentiment, row.ValueTheme}
		g := accs[k]
		if g == nil {
			g = &acc{}
			accs[k] = g
		}
		g.conversions = append(g.conversions, row.ConversionRate)
		g.engagements = append(g.engagements, row.EngagementRate)
		if row.SalesVsBenchmark != nil {
			g.vsBenchmark = append(g.vsBenchmark, *row.SalesVsBenchmark)
		}
	}

	out := make([]AttributeEffectiveness, 0, len(accs))
	for k, g := range accs {
		e := AttributeEffectiveness{
			CampaignType:     k.campaignType,
			Channel:          k.channel,
			MessageSentiment: k.sentiment,
			ValueTheme:       k.theme,
			SegmentCount:     len(g.conversions),
			AvgConversion:    stat.Mean(g.conversions, nil),
			AvgEngagement:    stat.Mean(g.engagements, nil),
			ConversionStd:    sampleStd(g.conversions),
		}
		if len(g.vsBenchmark) > 0 {
			avg := stat.Mean(g.vsBenchmark, nil)
			e.AvgVsBenchmark = &avg
		}
		if e.ConversionStd != nil {
			se := *e.ConversionStd / math.Sqrt(float64(e.SegmentCount))
			e.StdError = &se
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.CampaignType != b.CampaignType {
			return a.CampaignType < b.CampaignType
		}
		if a.Channel != b.Channel {
			return a.Channel < b.Channel
		}
		if a.MessageSentiment != b.MessageSentiment {
			return a.MessageSentiment < b.MessageSentiment
		}
		return a.ValueTheme < b.ValueTheme
	})
	return out
}

// InteractionEffects compares each (campaign_type, channel) cell against the
// mean of its marginal baselines. The percentage lift is nil when the
// expected value is zero.
func (a *Analyzer) InteractionEffects(rows []dataset.MetricRow) []InteractionEffect {
	typeSums := map[string]*meanAcc{}
	channelSums := map[string]*meanAcc{}
	type key struct{ campaignType, channel string }
	type cell struct {
		conversions []float64
		engagements []float64
	}
	cells := map[key]*cell{}

	for _, row := range rows {
		addMean(typeSums, row.CampaignType, row.ConversionRate)
		addMean(channelSums, row.Channel, row.ConversionRate)
		k := key{row.CampaignType, row.Channel}
		c := cells[k]
		if c == nil {
			c = &cell{}
			cells[k] = c
		}
		c.conversions = append(c.conversions, row.ConversionRate)
		c.engagements = append(c.engagements, row.EngagementRate)
	}

	out := make([]InteractionEffect, 0, len(cells))
	for k, c := range cells {
		typeAvg := typeSums[k.campaignType].mean()
		channelAvg := channelSums[k.channel].mean()
		expected := (typeAvg + channelAvg) / 2
		actual := stat.Mean(c.conversions, nil)

		e := InteractionEffect{
			CampaignType:       k.campaignType,
			Channel:            k.channel,
			SampleSize:         len(c.conversions),
			ActualConversion:   actual,
			ActualEngagement:   stat.Mean(c.engagements, nil),
			TypeAvgConversion:  typeAvg,
			ChannelAvgConv:     channelAvg,
			ExpectedConversion: expected,
			InteractionLift:    actual - expected,
		}
		if expected != 0 {
			pct := (actual - expected) / expected * 100
			e.InteractionLiftPct = &pct
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CampaignType != out[j].CampaignType {
			return out[i].CampaignType < out[j].CampaignType
		}
		return out[i].Channel < out[j].Channel
	})
	return out
}

type meanAcc struct {
	sum float64
	n   int
}

func addMean(m map[string]*meanAcc, key string, v float64) {
	acc := m[key]
	if acc == nil {
		acc = &meanAcc{}
		m[key] = acc
	}
	acc.sum += v
	acc.n++
}

func (m *meanAcc) mean() float64 { return m.sum / float64(m.n) }

// sampleStd returns the sample standard deviation, nil when fewer than two
// observations exist.
func sampleStd(xs []float64) *float64 {
	if len(xs) < 2 {
		return nil
	}
	std := stat.StdDev(xs, nil)
	return &std
}

func minOf(xs []float64) float64 {
	m := xs[0]
	for _, x := range xs[1:] {
		if x < m {
			m = x
		}
	}
	return m
}

func maxOf(xs []float64) float64 {
	m := xs[0]
	for _, x := range xs[1:] {
		if x > m {
			m = x
		}
	}
	return m
}
