package catalog

import (
	"math"
	"math/rand/v2"

	"github.com/brightloop/campaign-insights/internal/dataset"
)

const (
	impressionsMin = 8000
	impressionsMax = 12000

	baseClickRate      = 0.08
	baseConversionRate = 0.02

	channelMatchLift    = 1.3
	discountMatchLift   = 1.4
	premiumMatchLift    = 1.3
	themeMatchLift      = 1.25
	highEngagementLift  = 1.2
	matchThreshold      = 0.6
	themeThreshold      = 0.4
	engagementThreshold = 0.5

	clickRateMin      = 0.01
	clickRateMax      = 0.40
	conversionRateMin = 0.001
	conversionRateMax = 0.15
)

// Simulator produces interaction results for every (campaign, segment) pair
// using attribute-weighted random multipliers.
type Simulator struct {
	rng *rand.Rand
}

// NewSimulator creates a seeded result simulator.
func NewSimulator(seed int64) *Simulator {
	return &Simulator{rng: rand.New(rand.NewPCG(uint64(seed), uint64(seed)))}
}

// Simulate walks the full campaign-by-segment cross product. Each result is
// numbered with an explicit sequence so downstream windowing does not depend
// on row order.
func (s *Simulator) Simulate(campaigns []dataset.Campaign, segments []dataset.Segment) []dataset.CampaignResult {
	results := make([]dataset.CampaignResult, 0, len(campaigns)*len(segments))
	sequence := 0

	for _, campaign := range campaigns {
		for _, segment := range segments {
			impressions := impressionsMin + s.rng.IntN(impressionsMax-impressionsMin)

			clickMult := 1.0
			convMult := 1.0

			if segment.ChannelPerf(campaign.Channel) > matchThreshold {
				clickMult *= channelMatchLift
			}

			switch campaign.CampaignType {
			case "discount":
				if segment.PriceSensitivity > matchThreshold {
					convMult *= discountMatchLift
				}
			case "premium":
				if segment.BrandLoyalty > matchThreshold {
					convMult *= premiumMatchLift
				}
			}

			if segment.ValueWeight(campaign.ValueTheme) > themeThreshold {
				convMult *= themeMatchLift
			}
			if segment.EngagementPropensity > engagementThreshold {
				clickMult *= highEngagementLift
			}

			clickRate := clamp(baseClickRate*clickMult*s.uniform(0.85, 1.15), clickRateMin, clickRateMax)
			convRate := clamp(baseConversionRate*convMult*s.uniform(0.80, 1.20), conversionRateMin, conversionRateMax)

			clicks := int(float64(impressions) * clickRate)
			conversions := int(float64(clicks) * (convRate / clickRate))
			if conversions > clicks {
				conversions = clicks
			}

			sequence++
			results = append(results, dataset.CampaignResult{
				CampaignID:  campaign.CampaignID,
				SegmentID:   segment.SegmentID,
				Impressions: impressions,
				Clicks:      clicks,
				Conversions: conversions,
				Sequence:    sequence,
			})
		}
	}
	return results
}

func (s *Simulator) uniform(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
