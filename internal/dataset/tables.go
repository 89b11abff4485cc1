// Package dataset defines the tabular data model exchanged between pipeline
// stages and its flat-file CSV codecs.
package dataset

// Campaign types, channels, sentiments, and value themes are closed sets.
// They are plain strings in the tables; the canonical orderings below are
// load-bearing: value themes break ranking ties by this insertion order.
var (
	CampaignTypes = []string{"discount", "premium", "educational"}
	Channels      = []string{"email", "push", "inapp"}
	Sentiments    = []string{"urgent", "friendly", "informative"}
	ValueThemes   = []string{"family", "eco_conscious", "convenience", "quality"}
)

// RawSegment is one row of the raw input table, after dropping the unused
// columns (events_array, registration, sourceId, parent_allergies, MPN,
// baby_dob_1) and renaming alias_index to segment_id.
type RawSegment struct {
	SegmentID   int
	Language    string
	EventCount  int
	BabyAgeWeek float64
}

// Segment is one audience cohort with demographics and behavioral attributes.
// Attributes are bounded to [0,1] unless documented otherwise; the learner
// stage overwrites them wholesale each run.
type Segment struct {
	SegmentID    int
	Language     string
	ParentAge    int
	ParentGender string
	BabyCount    int

	EngagementPropensity float64
	PriceSensitivity     float64
	BrandLoyalty         float64

	ChannelPerfEmail float64
	ChannelPerfPush  float64
	ChannelPerfInapp float64

	ValuesFamily       float64
	ValuesEcoConscious float64
	ValuesConvenience  float64
	ValuesQuality      float64

	ContactFrequencyTolerance float64
	ContentEngagementRate     float64
}

// ChannelPerf returns the segment's performance score for the given channel.
func (s Segment) ChannelPerf(channel string) float64 {
	switch channel {
	case "email":
		return s.ChannelPerfEmail
	case "push":
		return s.ChannelPerfPush
	default:
		return s.ChannelPerfInapp
	}
}

// ValueWeight returns the segment's preference weight for the given theme.
func (s Segment) ValueWeight(theme string) float64 {
	switch theme {
	case "family":
		return s.ValuesFamily
	case "eco_conscious":
		return s.ValuesEcoConscious
	case "convenience":
		return s.ValuesConvenience
	default:
		return s.ValuesQuality
	}
}

// Campaign is one outreach creative configuration. Immutable once generated.
// CampaignID is lexically sortable; its ordering is the temporal proxy used
// by the priming analysis.
type Campaign struct {
	CampaignID       string
	CampaignType     string
	Channel          string
	MessageSentiment string
	ValueTheme       string
	OfferType        string

	// DiscountPercentage is only meaningful for discount campaigns.
	DiscountPercentage *float64
}

// CampaignResult is one fact row per (campaign, segment) pair. Sequence is
// the explicit ingestion order; the learner's rolling window selects the
// highest-sequence rows rather than relying on slice order.
type CampaignResult struct {
	CampaignID  string
	SegmentID   int
	Impressions int
	Clicks      int
	Conversions int
	Sequence    int
}

// EngagementRate returns clicks/impressions, 0 when there were no impressions.
func (r CampaignResult) EngagementRate() float64 {
	if r.Impressions == 0 {
		return 0
	}
	return float64(r.Clicks) / float64(r.Impressions)
}

// ConversionRate returns conversions/impressions, 0 when there were no impressions.
func (r CampaignResult) ConversionRate() float64 {
	if r.Impressions == 0 {
		return 0
	}
	return float64(r.Conversions) / float64(r.Impressions)
}

// MetricRow is the joined results+campaigns+segments fact row with derived
// rates and benchmark comparison. Benchmark fields are nil when the row's
// cohort has no qualifying baseline.
type MetricRow struct {
	CampaignID  string
	SegmentID   int
	Sequence    int
	Impressions int
	Clicks      int
	Conversions int

	CampaignType     string
	Channel          string
	MessageSentiment string
	ValueTheme       string
	Language         string

	EngagementRate    float64
	ConversionRate    float64
	ChannelMatchScore float64

	BaselineConversion *float64
	BaselineEngagement *float64
	SalesVsBenchmark   *float64
}

// Benchmark is the cohort baseline keyed by (language, campaign_type),
// computed only over cohorts with enough observations.
type Benchmark struct {
	Language           string
	CampaignType       string
	BaselineConversion float64
	BaselineEngagement float64
	ConversionStd      float64
	Observations       int
}
