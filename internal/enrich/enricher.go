// Package enrich implements the segment enrichment stage: synthesizing
// demographic and behavioral attributes for each raw segment from its event
// history. Output is deterministic for a given seed.
package enrich

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/brightloop/campaign-insights/internal/dataset"
)

const (
	ageMin = 18
	ageMax = 45

	genderMaleProb = 0.15

	engagementWeight   = 0.7
	engagementNoiseStd = 0.15
	priceBase          = 0.5
	priceNoiseStd      = 0.2
	babyAgeImpact      = 0.1
	weeksPerYear       = 52
	loyaltyWeight      = 0.6
	loyaltyNoiseStd    = 0.2

	channelScale = 1.5

	contactFreqWeight   = 0.5
	contactFreqNoiseStd = 0.2
	contentEngWeight    = 0.8
	contentEngNoiseStd  = 0.1

	clipMin  = 0.1
	clipMax  = 1.0
	valueMin = 0.0
)

var (
	babyCountProbs = []float64{0.65, 0.30, 0.05}
	channelAlpha   = []float64{3, 3, 4}
	valueAlpha     = []float64{3, 2, 2, 2}
)

// Enricher synthesizes segment attributes with a seeded PRNG.
type Enricher struct {
	src rand.Source
}

// New creates an enricher seeded for reproducible output.
func New(seed int64) *Enricher {
	return &Enricher{src: rand.NewPCG(uint64(seed), uint64(seed))}
}

// Enrich converts raw segments into fully attributed segments.
func (e *Enricher) Enrich(raw []dataset.RawSegment) []dataset.Segment {
	rng := rand.New(e.src)
	normal := func(std float64) float64 {
		return distuv.Normal{Mu: 0, Sigma: std, Src: e.src}.Rand()
	}

	maxEvents := 0
	for _, r := range raw {
		if r.EventCount > maxEvents {
			maxEvents = r.EventCount
		}
	}

	out := make([]dataset.Segment, 0, len(raw))
	for _, r := range raw {
		s := dataset.Segment{
			SegmentID: r.SegmentID,
			Language:  r.Language,
			ParentAge: ageMin + rng.IntN(ageMax-ageMin),
			BabyCount: weightedChoice(rng, babyCountProbs) + 1,
		}
		if rng.Float64() < genderMaleProb {
			s.ParentGender = "M"
		} else {
			s.ParentGender = "F"
		}

		eventNorm := 0.0
		if maxEvents > 0 {
			eventNorm = float64(r.EventCount) / float64(maxEvents)
		}
		s.EngagementPropensity = clamp(eventNorm*engagementWeight+normal(engagementNoiseStd), clipMin, clipMax)

		babyAgeNorm := math.Abs(r.BabyAgeWeek) / weeksPerYear
		s.PriceSensitivity = clamp(priceBase+normal(priceNoiseStd)-babyAgeNorm*babyAgeImpact, valueMin, clipMax)

		s.BrandLoyalty = clamp(s.EngagementPropensity*loyaltyWeight+normal(loyaltyNoiseStd), clipMin, clipMax)

		channels := e.dirichlet(channelAlpha)
		s.ChannelPerfEmail = clamp(channels[0]*channelScale, valueMin, clipMax)
		s.ChannelPerfPush = clamp(channels[1]*channelScale, valueMin, clipMax)
		s.ChannelPerfInapp = clamp(channels[2]*channelScale, valueMin, clipMax)

		values := e.dirichlet(valueAlpha)
		s.ValuesFamily = values[0]
		s.ValuesEcoConscious = values[1]
		s.ValuesConvenience = values[2]
		s.ValuesQuality = values[3]

		s.ContactFrequencyTolerance = clamp(s.EngagementPropensity*contactFreqWeight+normal(contactFreqNoiseStd), clipMin, clipMax)
		s.ContentEngagementRate = clamp(s.EngagementPropensity*contentEngWeight+normal(contentEngNoiseStd), clipMin, clipMax)

		out = append(out, s)
	}
	return out
}

// dirichlet draws a concentration-weighted share vector by normalizing
// independent gamma samples.
func (e *Enricher) dirichlet(alpha []float64) []float64 {
	draws := make([]float64, len(alpha))
	sum := 0.0
	for i, a := range alpha {
		draws[i] = distuv.Gamma{Alpha: a, Beta: 1, Src: e.src}.Rand()
		sum += draws[i]
	}
	for i := range draws {
		draws[i] /= sum
	}
	return draws
}

func weightedChoice(rng *rand.Rand, probs []float64) int {
	r := rng.Float64()
	cum := 0.0
	for i, p := range probs {
		cum += p
		if r < cum {
			return i
		}
	}
	return len(probs) - 1
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
