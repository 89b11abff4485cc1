package patterns

import (
	"sort"

	"github.com/brightloop/campaign-insights/internal/dataset"
)

const (
	eduEngagementFloor   = 0.10
	premiumAffinityFloor = 0.025
	discountPrefRatio    = 1.3

	// Campaign ids sort lexically, so the id is the temporal proxy: everything
	// up to this boundary counts as the early educational phase.
	primingEarlyBoundary = "CAMP_006"
	highExposureFloor    = 0.10
	mediumExposureFloor  = 0.08

	versatilityEngagementFloor = 0.10
	multiChannelMin            = 2
)

// TypeAffinity classifies one segment's response pattern across campaign
// types. The nullable averages are nil when the segment never saw that type.
type TypeAffinity struct {
	SegmentID          int
	EduConversion      *float64
	EduEngagement      *float64
	PremiumConversion  *float64
	DiscountConversion *float64
	ResponsePattern    string
}

// EducationalPriming captures whether early educational exposure correlates
// with later premium conversion for one segment.
type EducationalPriming struct {
	SegmentID                int
	EarlyEduEngagement       *float64
	LaterPremiumConversion   *float64
	OverallPremiumConversion *float64
	EduExposureLevel         string
}

// PrimingSummary aggregates priming outcomes per exposure level.
type PrimingSummary struct {
	EduExposureLevel      string
	SegmentCount          int
	AvgLaterPremiumConv   *float64
	AvgOverallPremiumConv *float64
	AvgEduEngagement      *float64
}

// ValueAlignment relates a segment's declared value weights to its observed
// per-theme conversion.
type ValueAlignment struct {
	SegmentID         int
	ThemeResponse     map[string]*float64
	OverallConversion float64
	DominantValue     string
}

// AlignmentImpact aggregates aligned-theme conversion per dominant value.
type AlignmentImpact struct {
	DominantValue          string
	SegmentCount           int
	AlignedThemeConversion *float64
	BaselineConversion     float64
}

// ChannelVersatility summarizes how many channels a segment engages with.
type ChannelVersatility struct {
	SegmentID          int
	ChannelsEngaged    int
	ChannelEngagement  map[string]*float64
	EngagementVariance *float64
	AvgConversion      float64
	ChannelStrategy    string
}

// TypeAffinity builds the per-segment campaign-type affinity table. The
// pattern rules fall through on missing averages, landing on "balanced".
func (a *Analyzer) TypeAffinity(rows []dataset.MetricRow) []TypeAffinity {
	type acc struct {
		eduConv, eduEng, premConv, discConv *meanAcc
	}
	accs := map[int]*acc{}
	for _, row := range rows {
		s := accs[row.SegmentID]
		if s == nil {
			s = &acc{eduConv: &meanAcc{}, eduEng: &meanAcc{}, premConv: &meanAcc{}, discConv: &meanAcc{}}
			accs[row.SegmentID] = s
		}
		switch row.CampaignType {
		case "educational":
			s.eduConv.add(row.ConversionRate)
			s.eduEng.add(row.EngagementRate)
		case "premium":
			s.premConv.add(row.ConversionRate)
		case "discount":
			s.discConv.add(row.ConversionRate)
		}
	}

	out := make([]TypeAffinity, 0, len(accs))
	for segmentID, s := range accs {
		t := TypeAffinity{
			SegmentID:          segmentID,
			EduConversion:      s.eduConv.meanOrNil(),
			EduEngagement:      s.eduEng.meanOrNil(),
			PremiumConversion:  s.premConv.meanOrNil(),
			DiscountConversion: s.discConv.meanOrNil(),
		}
		switch {
		case gtf(t.EduEngagement, eduEngagementFloor) && gtf(t.PremiumConversion, premiumAffinityFloor):
			t.ResponsePattern = "edu_premium_affinity"
		case t.DiscountConversion != nil && t.PremiumConversion != nil &&
			*t.DiscountConversion > *t.PremiumConversion*discountPrefRatio:
			t.ResponsePattern = "discount_preference"
		default:
			t.ResponsePattern = "balanced"
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SegmentID < out[j].SegmentID })
	return out
}

// EducationalPriming builds the per-segment priming table and its per-level
// summary. Segments with no early educational rows fall to low exposure.
func (a *Analyzer) EducationalPriming(rows []dataset.MetricRow) ([]EducationalPriming, []PrimingSummary) {
	type acc struct {
		earlyEdu, laterPrem, overallPrem *meanAcc
	}
	accs := map[int]*acc{}
	for _, row := range rows {
		s := accs[row.SegmentID]
		if s == nil {
			s = &acc{earlyEdu: &meanAcc{}, laterPrem: &meanAcc{}, overallPrem: &meanAcc{}}
			accs[row.SegmentID] = s
		}
		switch row.CampaignType {
		case "educational":
			if row.CampaignID <= primingEarlyBoundary {
				s.earlyEdu.add(row.EngagementRate)
			}
		case "premium":
			s.overallPrem.add(row.ConversionRate)
			if row.CampaignID > primingEarlyBoundary {
				s.laterPrem.add(row.ConversionRate)
			}
		}
	}

	out := make([]EducationalPriming, 0, len(accs))
	for segmentID, s := range accs {
		p := EducationalPriming{
			SegmentID:                segmentID,
			EarlyEduEngagement:       s.earlyEdu.meanOrNil(),
			LaterPremiumConversion:   s.laterPrem.meanOrNil(),
			OverallPremiumConversion: s.overallPrem.meanOrNil(),
		}
		switch {
		case gtf(p.EarlyEduEngagement, highExposureFloor):
			p.EduExposureLevel = "high_edu_exposure"
		case gtf(p.EarlyEduEngagement, mediumExposureFloor):
			p.EduExposureLevel = "medium_edu_exposure"
		default:
			p.EduExposureLevel = "low_edu_exposure"
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SegmentID < out[j].SegmentID })

	type levelAcc struct {
		count                  int
		later, overall, eduEng meanAcc
	}
	summaries := map[string]*levelAcc{}
	for _, p := range out {
		s := summaries[p.EduExposureLevel]
		if s == nil {
			s = &levelAcc{}
			summaries[p.EduExposureLevel] = s
		}
		s.count++
		if p.LaterPremiumConversion != nil {
			s.later.add(*p.LaterPremiumConversion)
		}
		if p.OverallPremiumConversion != nil {
			s.overall.add(*p.OverallPremiumConversion)
		}
		if p.EarlyEduEngagement != nil {
			s.eduEng.add(*p.EarlyEduEngagement)
		}
	}

	summary := make([]PrimingSummary, 0, len(summaries))
	for level, s := range summaries {
		summary = append(summary, PrimingSummary{
			EduExposureLevel:      level,
			SegmentCount:          s.count,
			AvgLaterPremiumConv:   s.later.meanOrNil(),
			AvgOverallPremiumConv: s.overall.meanOrNil(),
			AvgEduEngagement:      s.eduEng.meanOrNil(),
		})
	}
	sort.Slice(summary, func(i, j int) bool { return summary[i].EduExposureLevel < summary[j].EduExposureLevel })
	return out, summary
}

// ValueAlignment builds the per-segment theme-response table and the
// per-dominant-value impact summary. Dominant value ties break by the
// canonical theme ordering.
func (a *Analyzer) ValueAlignment(rows []dataset.MetricRow, segments []dataset.Segment) ([]ValueAlignment, []AlignmentImpact) {
	type acc struct {
		themes  map[string]*meanAcc
		overall meanAcc
	}
	accs := map[int]*acc{}
	for _, row := range rows {
		s := accs[row.SegmentID]
		if s == nil {
			s = &acc{themes: map[string]*meanAcc{}}
			accs[row.SegmentID] = s
		}
		addMean(s.themes, row.ValueTheme, row.ConversionRate)
		s.overall.add(row.ConversionRate)
	}

	out := make([]ValueAlignment, 0, len(segments))
	for _, segment := range segments {
		s := accs[segment.SegmentID]
		if s == nil {
			continue
		}
		v := ValueAlignment{
			SegmentID:         segment.SegmentID,
			ThemeResponse:     map[string]*float64{},
			OverallConversion: s.overall.mean(),
			DominantValue:     dominantValue(segment),
		}
		for _, theme := range dataset.ValueThemes {
			if acc := s.themes[theme]; acc != nil {
				v.ThemeResponse[theme] = acc.meanOrNil()
			}
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SegmentID < out[j].SegmentID })

	type valueAcc struct {
		count    int
		aligned  meanAcc
		baseline meanAcc
	}
	impacts := map[string]*valueAcc{}
	for _, v := range out {
		s := impacts[v.DominantValue]
		if s == nil {
			s = &valueAcc{}
			impacts[v.DominantValue] = s
		}
		s.count++
		if r := v.ThemeResponse[v.DominantValue]; r != nil {
			s.aligned.add(*r)
		}
		s.baseline.add(v.OverallConversion)
	}

	impact := make([]AlignmentImpact, 0, len(impacts))
	for value, s := range impacts {
		impact = append(impact, AlignmentImpact{
			DominantValue:          value,
			SegmentCount:           s.count,
			AlignedThemeConversion: s.aligned.meanOrNil(),
			BaselineConversion:     s.baseline.mean(),
		})
	}
	sort.Slice(impact, func(i, j int) bool { return impact[i].DominantValue < impact[j].DominantValue })
	return out, impact
}

// ChannelVersatility classifies segments as multi- or single-channel based on
// how many channels clear the engagement floor.
func (a *Analyzer) ChannelVersatility(rows []dataset.MetricRow) []ChannelVersatility {
	type acc struct {
		channels    map[string]struct{}
		strong      map[string]struct{}
		byChannel   map[string]*meanAcc
		engagements []float64
		conversion  meanAcc
	}
	accs := map[int]*acc{}
	for _, row := range rows {
		s := accs[row.SegmentID]
		if s == nil {
			s = &acc{
				channels:  map[string]struct{}{},
				strong:    map[string]struct{}{},
				byChannel: map[string]*meanAcc{},
			}
			accs[row.SegmentID] = s
		}
		s.channels[row.Channel] = struct{}{}
		if row.EngagementRate > versatilityEngagementFloor {
			s.strong[row.Channel] = struct{}{}
		}
		addMean(s.byChannel, row.Channel, row.EngagementRate)
		s.engagements = append(s.engagements, row.EngagementRate)
		s.conversion.add(row.ConversionRate)
	}

	out := make([]ChannelVersatility, 0, len(accs))
	for segmentID, s := range accs {
		v := ChannelVersatility{
			SegmentID:          segmentID,
			ChannelsEngaged:    len(s.channels),
			ChannelEngagement:  map[string]*float64{},
			EngagementVariance: sampleStd(s.engagements),
			AvgConversion:      s.conversion.mean(),
			ChannelStrategy:    "single_channel",
		}
		for _, channel := range dataset.Channels {
			if acc := s.byChannel[channel]; acc != nil {
				v.ChannelEngagement[channel] = acc.meanOrNil()
			}
		}
		if len(s.strong) >= multiChannelMin {
			v.ChannelStrategy = "multi_channel"
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SegmentID < out[j].SegmentID })
	return out
}

// dominantValue picks the highest value weight; the >= cascade makes earlier
// themes in the canonical ordering win ties.
func dominantValue(s dataset.Segment) string {
	best := dataset.ValueThemes[0]
	for _, theme := range dataset.ValueThemes[1:] {
		if s.ValueWeight(theme) > s.ValueWeight(best) {
			best = theme
		}
	}
	return best
}

func (m *meanAcc) add(v float64) {
	m.sum += v
	m.n++
}

func (m *meanAcc) meanOrNil() *float64 {
	if m.n == 0 {
		return nil
	}
	v := m.sum / float64(m.n)
	return &v
}

// gtf is a nil-safe strict greater-than for nullable averages.
func gtf(v *float64, floor float64) bool {
	return v != nil && *v > floor
}
