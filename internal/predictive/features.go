// Package predictive trains a conversion-rate regressor over engineered
// (segment, campaign) features and clusters segments into behavioral
// archetypes.
package predictive

import (
	"github.com/brightloop/campaign-insights/internal/dataset"
)

// FeatureRow is one engineered training example for a (segment, campaign)
// pair. The target is the observed conversion rate.
type FeatureRow struct {
	SegmentID  int
	CampaignID string

	CampaignType     string
	Channel          string
	MessageSentiment string
	ValueTheme       string

	Target float64

	PriceSensitivity     float64
	BrandLoyalty         float64
	EngagementPropensity float64
	ChannelPerfEmail     float64
	ChannelPerfPush      float64
	ChannelPerfInapp     float64
	ValuesFamily         float64
	ValuesEcoConscious   float64
	ValuesConvenience    float64
	ValuesQuality        float64

	ChannelMatchScore float64
	ValueMatch        float64
}

// FeatureNames lists the model inputs in vector order: the numeric segment
// attributes, the two match scores, then the label-encoded categoricals.
var FeatureNames = []string{
	"price_sensitivity", "brand_loyalty", "engagement_propensity",
	"channel_perf_email", "channel_perf_push", "channel_perf_inapp",
	"values_family", "values_eco_conscious", "values_convenience", "values_quality",
	"channel_match_score", "value_match",
	"campaign_type_encoded", "channel_encoded", "message_sentiment_encoded", "value_theme_encoded",
}

// Vector returns the model input in FeatureNames order.
func (f FeatureRow) Vector() []float64 {
	return []float64{
		f.PriceSensitivity, f.BrandLoyalty, f.EngagementPropensity,
		f.ChannelPerfEmail, f.ChannelPerfPush, f.ChannelPerfInapp,
		f.ValuesFamily, f.ValuesEcoConscious, f.ValuesConvenience, f.ValuesQuality,
		f.ChannelMatchScore, f.ValueMatch,
		encode(dataset.CampaignTypes, f.CampaignType),
		encode(dataset.Channels, f.Channel),
		encode(dataset.Sentiments, f.MessageSentiment),
		encode(dataset.ValueThemes, f.ValueTheme),
	}
}

// BuildFeatures joins metric rows with segment attributes into training
// examples. Rows referencing unknown segments are dropped. The value-match
// flag fires when the segment's weight for the campaign's theme reaches the
// threshold.
func BuildFeatures(rows []dataset.MetricRow, segments []dataset.Segment, valueMatchThreshold float64) []FeatureRow {
	byID := make(map[int]dataset.Segment, len(segments))
	for _, s := range segments {
		byID[s.SegmentID] = s
	}

	out := make([]FeatureRow, 0, len(rows))
	for _, row := range rows {
		s, ok := byID[row.SegmentID]
		if !ok {
			continue
		}
		f := FeatureRow{
			SegmentID:  row.SegmentID,
			CampaignID: row.CampaignID,

			CampaignType:     row.CampaignType,
			Channel:          row.Channel,
			MessageSentiment: row.MessageSentiment,
			ValueTheme:       row.ValueTheme,

			Target: row.ConversionRate,

			PriceSensitivity:     s.PriceSensitivity,
			BrandLoyalty:         s.BrandLoyalty,
			EngagementPropensity: s.EngagementPropensity,
			ChannelPerfEmail:     s.ChannelPerfEmail,
			ChannelPerfPush:      s.ChannelPerfPush,
			ChannelPerfInapp:     s.ChannelPerfInapp,
			ValuesFamily:         s.ValuesFamily,
			ValuesEcoConscious:   s.ValuesEcoConscious,
			ValuesConvenience:    s.ValuesConvenience,
			ValuesQuality:        s.ValuesQuality,

			ChannelMatchScore: s.ChannelPerf(row.Channel),
		}
		if s.ValueWeight(row.ValueTheme) >= valueMatchThreshold {
			f.ValueMatch = 1
		}
		out = append(out, f)
	}
	return out
}

// encode maps a closed-set label to its canonical index. Unknown labels map
// to -1 so they never collide with a real category.
func encode(options []string, value string) float64 {
	for i, o := range options {
		if o == value {
			return float64(i)
		}
	}
	return -1
}
