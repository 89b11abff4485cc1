// Package learner re-derives segment behavioral attributes from a rolling
// window of observed campaign outcomes. Each run replaces the prior attribute
// snapshot wholesale; segments without history fall back to bounded defaults.
package learner

import (
	"sort"

	"github.com/brightloop/campaign-insights/internal/config"
	"github.com/brightloop/campaign-insights/internal/dataset"
)

// WindowStats holds the per-segment rolling-window aggregates the derivation
// formulas consume. Response and theme averages are nil when the window has
// no rows of that kind, so the derivations can substitute defaults.
type WindowStats struct {
	SegmentID     int
	CampaignCount int

	AvgEngagement *float64

	DiscountResponse *float64
	PremiumResponse  *float64

	// Max engagement per channel, keyed by dataset.Channels entries. Entries
	// are zero (not nil) for channels unseen in a non-empty window; all three
	// are nil only when the window itself is empty.
	ChannelMaxEngagement map[string]*float64

	// Average conversion per value theme, keyed by dataset.ValueThemes entries.
	ThemeAvgConversion map[string]*float64
}

// Learner derives fresh attribute vectors from joined metric rows.
type Learner struct {
	cfg config.LearnerConfig
}

// New creates a learner with the given derivation constants.
func New(cfg config.LearnerConfig) *Learner {
	return &Learner{cfg: cfg}
}

// Window selects the segment's most recent rows by descending sequence,
// capped at the configured window size. Row order of the input is irrelevant.
func (l *Learner) Window(segmentID int, rows []dataset.MetricRow) []dataset.MetricRow {
	window := make([]dataset.MetricRow, 0)
	for _, row := range rows {
		if row.SegmentID == segmentID {
			window = append(window, row)
		}
	}
	sort.Slice(window, func(i, j int) bool { return window[i].Sequence > window[j].Sequence })
	if len(window) > l.cfg.WindowSize {
		window = window[:l.cfg.WindowSize]
	}
	return window
}

// Aggregate computes the window statistics for one segment's window.
func (l *Learner) Aggregate(segmentID int, window []dataset.MetricRow) WindowStats {
	stats := WindowStats{
		SegmentID:            segmentID,
		CampaignCount:        len(window),
		ChannelMaxEngagement: map[string]*float64{},
		ThemeAvgConversion:   map[string]*float64{},
	}
	if len(window) == 0 {
		return stats
	}

	var engagementSum float64
	var discountSum, premiumSum float64
	var discountN, premiumN int
	themeSums := map[string]float64{}
	themeCounts := map[string]int{}

	for _, row := range window {
		engagementSum += row.EngagementRate

		switch row.CampaignType {
		case "discount":
			discountSum += row.ConversionRate
			discountN++
		case "premium":
			premiumSum += row.ConversionRate
			premiumN++
		}

		if cur := stats.ChannelMaxEngagement[row.Channel]; cur == nil || row.EngagementRate > *cur {
			engagement := row.EngagementRate
			stats.ChannelMaxEngagement[row.Channel] = &engagement
		}

		themeSums[row.ValueTheme] += row.ConversionRate
		themeCounts[row.ValueTheme]++
	}

	// A channel with no rows in a non-empty window has a zero maximum, not a
	// missing one. Only full cold start leaves these nil for the defaults.
	for _, channel := range dataset.Channels {
		if stats.ChannelMaxEngagement[channel] == nil {
			zero := 0.0
			stats.ChannelMaxEngagement[channel] = &zero
		}
	}

	avgEngagement := engagementSum / float64(len(window))
	stats.AvgEngagement = &avgEngagement
	if discountN > 0 {
		avg := discountSum / float64(discountN)
		stats.DiscountResponse = &avg
	}
	if premiumN > 0 {
		avg := premiumSum / float64(premiumN)
		stats.PremiumResponse = &avg
	}
	for theme, n := range themeCounts {
		avg := themeSums[theme] / float64(n)
		stats.ThemeAvgConversion[theme] = &avg
	}
	return stats
}

// Derive converts one segment's window statistics into its new attribute
// vector. Identity and demographic fields are carried over untouched.
func (l *Learner) Derive(segment dataset.Segment, stats WindowStats) dataset.Segment {
	cfg := l.cfg

	// Step 3: engagement propensity. The pre-clip ratio is reused verbatim
	// by the step 8 derivations, so it is kept separate from the clipped value.
	rawPropensity := (orDefault(stats.AvgEngagement, cfg.DefaultEngagement) - cfg.EngagementMin) / cfg.EngagementScale
	segment.EngagementPropensity = clip(rawPropensity, 0.2, 0.9)

	// Steps 4 and 5: campaign-type response comparison. Price sensitivity is
	// a three-way split with ties toward MED; brand loyalty is binary with a
	// strict greater-than, so equal responses land on MED and LOW.
	discount := orDefault(stats.DiscountResponse, cfg.DefaultConversion)
	premium := orDefault(stats.PremiumResponse, cfg.DefaultConversion)
	switch {
	case discount > premium*1.3:
		segment.PriceSensitivity = cfg.PriceSensitivityHigh
	case discount < premium*0.7:
		segment.PriceSensitivity = cfg.PriceSensitivityLow
	default:
		segment.PriceSensitivity = cfg.PriceSensitivityMed
	}
	if premium > discount {
		segment.BrandLoyalty = cfg.BrandLoyaltyHigh
	} else {
		segment.BrandLoyalty = cfg.BrandLoyaltyLow
	}

	// Step 6: channel shares, scaled then clipped independently per channel.
	// The denominator is zero only when every observed maximum is zero; the
	// shares then fall back to the even default split to stay defined.
	channelTotal := 0.0
	for _, channel := range dataset.Channels {
		channelTotal += orDefault(stats.ChannelMaxEngagement[channel], cfg.DefaultEngagement)
	}
	channelShare := func(channel string) float64 {
		value := orDefault(stats.ChannelMaxEngagement[channel], cfg.DefaultEngagement)
		total := channelTotal
		if total == 0 {
			value = cfg.DefaultEngagement
			total = cfg.DefaultEngagement * float64(len(dataset.Channels))
		}
		return clip(value/total*cfg.ChannelScale, 0, 1)
	}
	segment.ChannelPerfEmail = channelShare("email")
	segment.ChannelPerfPush = channelShare("push")
	segment.ChannelPerfInapp = channelShare("inapp")

	// Step 7: value-theme weights, a plain normalized share. The defaults are
	// positive, so the denominator never vanishes and no clipping is needed.
	themeTotal := 0.0
	for _, theme := range dataset.ValueThemes {
		themeTotal += orDefault(stats.ThemeAvgConversion[theme], cfg.DefaultConversion)
	}
	themeShare := func(theme string) float64 {
		return orDefault(stats.ThemeAvgConversion[theme], cfg.DefaultConversion) / themeTotal
	}
	segment.ValuesFamily = themeShare("family")
	segment.ValuesEcoConscious = themeShare("eco_conscious")
	segment.ValuesConvenience = themeShare("convenience")
	segment.ValuesQuality = themeShare("quality")

	// Step 8: both derived from the pre-clip propensity ratio.
	segment.ContactFrequencyTolerance = clip(rawPropensity*0.8, 0.1, 1.0)
	segment.ContentEngagementRate = clip(rawPropensity*0.9, 0.1, 1.0)

	return segment
}

// Learn runs the full stage over every segment independently: window,
// aggregate, derive. Every returned segment carries a complete, bounded
// attribute vector even when it had no history at all.
func (l *Learner) Learn(segments []dataset.Segment, rows []dataset.MetricRow) []dataset.Segment {
	bySegment := make(map[int][]dataset.MetricRow, len(segments))
	for _, row := range rows {
		bySegment[row.SegmentID] = append(bySegment[row.SegmentID], row)
	}

	out := make([]dataset.Segment, len(segments))
	for i, segment := range segments {
		window := l.Window(segment.SegmentID, bySegment[segment.SegmentID])
		stats := l.Aggregate(segment.SegmentID, window)
		out[i] = l.Derive(segment, stats)
	}
	return out
}

func orDefault(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
