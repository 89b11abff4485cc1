package directive

import "fmt"

// Profile names a threshold set and cadence formula for directive generation.
// Two sets ship: "standard" uses the wider medium band with a three-tier send
// cadence, "legacy" uses the narrower band with a continuous inverse cadence.
type Profile struct {
	Name string

	// Attribute scores above High categorize as "high", below Low as "low".
	High float64
	Low  float64

	// Continuous selects the inverse-proportional cadence formula instead of
	// the stepped one.
	Continuous bool
}

var profiles = map[string]Profile{
	"standard": {Name: "standard", High: 0.5, Low: 0.35},
	"legacy":   {Name: "legacy", High: 0.6, Low: 0.4, Continuous: true},
}

// ProfileByName resolves a named threshold profile.
func ProfileByName(name string) (Profile, error) {
	p, ok := profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("unknown directive profile %q", name)
	}
	return p, nil
}

// Categorize buckets a [0,1] score into high, medium, or low.
func (p Profile) Categorize(score float64) string {
	switch {
	case score > p.High:
		return "high"
	case score < p.Low:
		return "low"
	default:
		return "medium"
	}
}

// Cadence converts contact-frequency tolerance into a send interval in days,
// bounded to [1,14].
func (p Profile) Cadence(frequencyTolerance float64) int {
	if p.Continuous {
		days := int(7 / max(frequencyTolerance, 0.2))
		return min(14, max(1, days))
	}
	switch {
	case frequencyTolerance >= 0.5:
		return 7
	case frequencyTolerance >= 0.35:
		return 10
	default:
		return 14
	}
}
