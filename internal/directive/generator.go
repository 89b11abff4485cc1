package directive

import (
	"fmt"
	"sort"

	"github.com/osteele/liquid"

	"github.com/brightloop/campaign-insights/internal/dataset"
)

// DeliverySettings carries the channel and timing decision.
type DeliverySettings struct {
	Channel            string             `json:"channel"`
	SendTimingDays     int                `json:"send_timing_days_from_today"`
	MessageConstraints ChannelConstraints `json:"message_constraints"`
}

// AudienceProfile describes who the message is for.
type AudienceProfile struct {
	BehavioralSummary    string   `json:"behavioral_summary"`
	PrimaryValueDriver   string   `json:"primary_value_driver"`
	SecondaryValueDriver string   `json:"secondary_value_driver"`
	MotivationalTriggers []string `json:"motivational_triggers"`
}

// ContentGuidance steers the tone and substance of the generated message.
type ContentGuidance struct {
	RecommendedTone   string `json:"recommended_tone"`
	MessagingApproach string `json:"messaging_approach"`
	WhatResonates     string `json:"what_resonates"`
	WhatToAvoid       string `json:"what_to_avoid"`
}

// Directive is the complete content-generation instruction for one segment.
type Directive struct {
	SegmentID          int              `json:"segment_id,omitempty"`
	DeliverySettings   DeliverySettings `json:"delivery_settings"`
	AudienceProfile    AudienceProfile  `json:"audience_profile"`
	ContentGuidance    ContentGuidance  `json:"content_guidance"`
	PersonaDescription string           `json:"persona_description"`
}

type valueDriver struct {
	key  string
	name string
}

// valueDrivers maps attribute field to the human-readable driver phrase, in
// the canonical ordering that breaks ranking ties.
var valueDrivers = []valueDriver{
	{"family_orientation", "family moments and bonding experiences"},
	{"eco_consciousness", "environmental impact and sustainability"},
	{"convenience_preference", "time-saving and easy solutions"},
	{"quality_focus", "premium quality and reliability"},
}

const personaTemplate = `A {{ tone }} voice speaking to {{ summary | downcase }}. ` +
	`They care first about {{ primary }}, and second about {{ secondary }}. ` +
	`Reach them via {{ channel }} roughly every {{ cadence }} days.`

var personaEngine = liquid.NewEngine()

// Generator turns segment attribute vectors into directives using one
// threshold profile.
type Generator struct {
	profile Profile
}

// NewGenerator creates a generator for the named profile.
func NewGenerator(profileName string) (*Generator, error) {
	p, err := ProfileByName(profileName)
	if err != nil {
		return nil, err
	}
	return &Generator{profile: p}, nil
}

// Generate produces the directive for one segment. emailCampaign forces the
// email channel; otherwise the better of push and in-app wins, with in-app
// taking ties. The function is pure: no I/O, no shared state.
func (g *Generator) Generate(s dataset.Segment, emailCampaign bool) (Directive, error) {
	channel := selectChannel(s, emailCampaign)
	cadence := g.profile.Cadence(s.ContactFrequencyTolerance)
	block := g.pickBlock(s)
	primary, secondary := rankValueDrivers(s)

	persona, err := personaEngine.ParseAndRenderString(personaTemplate, liquid.Bindings{
		"tone":      block.Tone,
		"summary":   block.BehavioralSummary,
		"primary":   primary.name,
		"secondary": secondary.name,
		"channel":   channel,
		"cadence":   cadence,
	})
	if err != nil {
		return Directive{}, fmt.Errorf("render persona: %w", err)
	}

	return Directive{
		SegmentID: s.SegmentID,
		DeliverySettings: DeliverySettings{
			Channel:            channel,
			SendTimingDays:     cadence,
			MessageConstraints: blocks.ChannelConstraints[channel],
		},
		AudienceProfile: AudienceProfile{
			BehavioralSummary:    block.BehavioralSummary,
			PrimaryValueDriver:   primary.name,
			SecondaryValueDriver: secondary.name,
			MotivationalTriggers: block.MotivationalTriggers,
		},
		ContentGuidance: ContentGuidance{
			RecommendedTone:   block.Tone,
			MessagingApproach: block.MessagingApproach,
			WhatResonates:     block.WhatResonates,
			WhatToAvoid:       block.WhatToAvoid,
		},
		PersonaDescription: persona,
	}, nil
}

// pickBlock walks the priority-ordered decision list; the first matching rule
// wins and a catch-all default always exists.
func (g *Generator) pickBlock(s dataset.Segment) Block {
	price := g.profile.Categorize(s.PriceSensitivity)
	loyalty := g.profile.Categorize(s.BrandLoyalty)
	engagement := g.profile.Categorize(s.EngagementPropensity)
	primary, _ := rankValueDrivers(s)

	table := blocks.BehavioralCombinations
	switch {
	case price == "high" && primary.key == "family_orientation":
		return table["price_driven_family_focused"]
	case loyalty == "high" && primary.key == "quality_focus":
		return table["quality_focused_loyal"]
	case engagement == "low" && primary.key == "convenience_preference":
		return table["convenience_seeker_low_engagement"]
	case engagement == "high" && primary.key == "eco_consciousness":
		return table["eco_conscious_engaged"]
	case price == "high" && primary.key == "convenience_preference":
		return table["price_driven_convenience_seeker"]
	case loyalty == "high" && primary.key == "eco_consciousness":
		return table["quality_focused_eco_conscious"]
	case engagement == "high" && primary.key == "family_orientation":
		return table["engaged_family_focused"]
	case engagement == "low" && primary.key == "quality_focus":
		return table["low_engagement_quality_seeker"]
	case price == "medium" && engagement == "medium":
		return table["balanced_moderate"]
	default:
		return table["default_balanced"]
	}
}

// rankValueDrivers returns the top two value drivers by weight. The stable
// sort keeps the canonical ordering for equal weights.
func rankValueDrivers(s dataset.Segment) (primary, secondary valueDriver) {
	weights := []float64{s.ValuesFamily, s.ValuesEcoConscious, s.ValuesConvenience, s.ValuesQuality}
	idx := []int{0, 1, 2, 3}
	sort.SliceStable(idx, func(i, j int) bool { return weights[idx[i]] > weights[idx[j]] })
	return valueDrivers[idx[0]], valueDrivers[idx[1]]
}

func selectChannel(s dataset.Segment, emailCampaign bool) string {
	if emailCampaign {
		return "email"
	}
	if s.ChannelPerfPush > s.ChannelPerfInapp {
		return "push_notification"
	}
	return "in_app_message"
}
