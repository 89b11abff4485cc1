package directive

import (
	"fmt"
	"strings"

	"github.com/brightloop/campaign-insights/internal/dataset"
)

// ValidationError reports which input fields were missing or out of range.
// A single bad record is rejected on its own; it is never a pipeline failure.
type ValidationError struct {
	Fields []string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Reason, strings.Join(e.Fields, ", "))
}

// SegmentInput is the externally supplied attribute record for on-demand
// directive generation. Pointers distinguish absent fields from zero values.
type SegmentInput struct {
	SegmentID    int     `json:"segment_id"`
	Language     *string `json:"language"`
	ParentAge    *int    `json:"parent_age"`
	ParentGender *string `json:"parent_gender"`
	BabyCount    *int    `json:"baby_count"`

	EngagementPropensity *float64 `json:"engagement_propensity"`
	PriceSensitivity     *float64 `json:"price_sensitivity"`
	BrandLoyalty         *float64 `json:"brand_loyalty"`

	ContactFrequencyTolerance *float64 `json:"contact_frequency_tolerance"`
	ContentEngagementRate     *float64 `json:"content_engagement_rate"`

	ChannelPerfEmail *float64 `json:"channel_perf_email"`
	ChannelPerfPush  *float64 `json:"channel_perf_push"`
	ChannelPerfInapp *float64 `json:"channel_perf_inapp"`

	ValuesFamily       *float64 `json:"values_family"`
	ValuesEcoConscious *float64 `json:"values_eco_conscious"`
	ValuesConvenience  *float64 `json:"values_convenience"`
	ValuesQuality      *float64 `json:"values_quality"`
}

// Validate checks that every required field is present and every numeric
// attribute lies in [0,1], returning the converted segment on success.
func (in SegmentInput) Validate() (dataset.Segment, *ValidationError) {
	var missing []string
	requireStr := func(name string, v *string) {
		if v == nil {
			missing = append(missing, name)
		}
	}
	requireInt := func(name string, v *int) {
		if v == nil {
			missing = append(missing, name)
		}
	}

	requireStr("language", in.Language)
	requireInt("parent_age", in.ParentAge)
	requireStr("parent_gender", in.ParentGender)
	requireInt("baby_count", in.BabyCount)

	numerics := []struct {
		name string
		v    *float64
	}{
		{"engagement_propensity", in.EngagementPropensity},
		{"price_sensitivity", in.PriceSensitivity},
		{"brand_loyalty", in.BrandLoyalty},
		{"contact_frequency_tolerance", in.ContactFrequencyTolerance},
		{"content_engagement_rate", in.ContentEngagementRate},
		{"channel_perf_email", in.ChannelPerfEmail},
		{"channel_perf_push", in.ChannelPerfPush},
		{"channel_perf_inapp", in.ChannelPerfInapp},
		{"values_family", in.ValuesFamily},
		{"values_eco_conscious", in.ValuesEcoConscious},
		{"values_convenience", in.ValuesConvenience},
		{"values_quality", in.ValuesQuality},
	}
	for _, f := range numerics {
		if f.v == nil {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return dataset.Segment{}, &ValidationError{Fields: missing, Reason: "missing required fields"}
	}

	var outOfRange []string
	for _, f := range numerics {
		if *f.v < 0 || *f.v > 1 {
			outOfRange = append(outOfRange, f.name)
		}
	}
	if len(outOfRange) > 0 {
		return dataset.Segment{}, &ValidationError{Fields: outOfRange, Reason: "fields must be between 0 and 1"}
	}

	return dataset.Segment{
		SegmentID:    in.SegmentID,
		Language:     *in.Language,
		ParentAge:    *in.ParentAge,
		ParentGender: *in.ParentGender,
		BabyCount:    *in.BabyCount,

		EngagementPropensity: *in.EngagementPropensity,
		PriceSensitivity:     *in.PriceSensitivity,
		BrandLoyalty:         *in.BrandLoyalty,

		ChannelPerfEmail: *in.ChannelPerfEmail,
		ChannelPerfPush:  *in.ChannelPerfPush,
		ChannelPerfInapp: *in.ChannelPerfInapp,

		ValuesFamily:       *in.ValuesFamily,
		ValuesEcoConscious: *in.ValuesEcoConscious,
		ValuesConvenience:  *in.ValuesConvenience,
		ValuesQuality:      *in.ValuesQuality,

		ContactFrequencyTolerance: *in.ContactFrequencyTolerance,
		ContentEngagementRate:     *in.ContentEngagementRate,
	}, nil
}
