package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/brightloop/campaign-insights/internal/dataset"
	"github.com/brightloop/campaign-insights/internal/directive"
	"github.com/brightloop/campaign-insights/internal/patterns"
	"github.com/brightloop/campaign-insights/internal/predictive"
)

// Output file names under the configured output directory.
const (
	FileSegmentConsistency     = "segment_consistency.csv"
	FileAttributeEffectiveness = "attribute_effectiveness.csv"
	FileInteractionEffects     = "interaction_effects.csv"
	FileTypeAffinity           = "campaign_type_affinity.csv"
	FileEducationalPriming     = "educational_priming.csv"
	FilePrimingSummary         = "priming_effect_summary.csv"
	FileValueAlignment         = "value_theme_alignment.csv"
	FileAlignmentImpact        = "value_alignment_impact.csv"
	FileChannelVersatility     = "channel_versatility.csv"
	FilePredictions            = "predictions.csv"
	FileModelSummary           = "model_summary.csv"
	FileFeatureImportance      = "feature_importance.csv"
	FileClusterAssignments     = "segment_clusters.csv"
	FileClusterProfiles        = "cluster_profiles.csv"
	FileBenchmarks             = "campaign_benchmarks.csv"
	FileDirectives             = "directives.json"
)

func ff(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

// off renders a nullable float; nil becomes the empty cell.
func off(v *float64) string {
	if v == nil {
		return ""
	}
	return ff(*v)
}

func writeCSV(path string, records [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(records); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func saveSegmentConsistency(path string, rows []patterns.SegmentConsistency) error {
	records := [][]string{{
		"segment_id", "campaigns_reached", "avg_conversion", "conversion_volatility",
		"avg_engagement", "engagement_volatility", "min_conversion", "max_conversion",
		"consistency_score",
	}}
	for _, r := range rows {
		records = append(records, []string{
			strconv.Itoa(r.SegmentID), strconv.Itoa(r.CampaignsReached),
			ff(r.AvgConversion), off(r.ConversionVolatility),
			ff(r.AvgEngagement), off(r.EngagementVolatility),
			ff(r.MinConversion), ff(r.MaxConversion), off(r.ConsistencyScore),
		})
	}
	return writeCSV(path, records)
}

func saveAttributeEffectiveness(path string, rows []patterns.AttributeEffectiveness) error {
	records := [][]string{{
		"campaign_type", "channel", "message_sentiment", "value_theme",
		"segment_count", "avg_conversion", "avg_engagement", "avg_vs_benchmark",
		"conversion_std", "std_error",
	}}
	for _, r := range rows {
		records = append(records, []string{
			r.CampaignType, r.Channel, r.MessageSentiment, r.ValueTheme,
			strconv.Itoa(r.SegmentCount), ff(r.AvgConversion), ff(r.AvgEngagement),
			off(r.AvgVsBenchmark), off(r.ConversionStd), off(r.StdError),
		})
	}
	return writeCSV(path, records)
}

func saveInteractionEffects(path string, rows []patterns.InteractionEffect) error {
	records := [][]string{{
		"campaign_type", "channel", "sample_size", "actual_conversion",
		"actual_engagement", "type_avg_conversion", "channel_avg_conversion",
		"expected_conversion", "interaction_lift", "interaction_lift_pct",
	}}
	for _, r := range rows {
		records = append(records, []string{
			r.CampaignType, r.Channel, strconv.Itoa(r.SampleSize),
			ff(r.ActualConversion), ff(r.ActualEngagement),
			ff(r.TypeAvgConversion), ff(r.ChannelAvgConv),
			ff(r.ExpectedConversion), ff(r.InteractionLift), off(r.InteractionLiftPct),
		})
	}
	return writeCSV(path, records)
}

func saveTypeAffinity(path string, rows []patterns.TypeAffinity) error {
	records := [][]string{{
		"segment_id", "edu_conversion", "edu_engagement",
		"premium_conversion", "discount_conversion", "response_pattern",
	}}
	for _, r := range rows {
		records = append(records, []string{
			strconv.Itoa(r.SegmentID), off(r.EduConversion), off(r.EduEngagement),
			off(r.PremiumConversion), off(r.DiscountConversion), r.ResponsePattern,
		})
	}
	return writeCSV(path, records)
}

func saveEducationalPriming(path string, rows []patterns.EducationalPriming) error {
	records := [][]string{{
		"segment_id", "early_edu_engagement", "later_premium_conversion",
		"overall_premium_conversion", "edu_exposure_level",
	}}
	for _, r := range rows {
		records = append(records, []string{
			strconv.Itoa(r.SegmentID), off(r.EarlyEduEngagement),
			off(r.LaterPremiumConversion), off(r.OverallPremiumConversion),
			r.EduExposureLevel,
		})
	}
	return writeCSV(path, records)
}

func savePrimingSummary(path string, rows []patterns.PrimingSummary) error {
	records := [][]string{{
		"edu_exposure_level", "segment_count", "avg_later_premium_conversion",
		"avg_overall_premium_conversion", "avg_edu_engagement",
	}}
	for _, r := range rows {
		records = append(records, []string{
			r.EduExposureLevel, strconv.Itoa(r.SegmentCount),
			off(r.AvgLaterPremiumConv), off(r.AvgOverallPremiumConv),
			off(r.AvgEduEngagement),
		})
	}
	return writeCSV(path, records)
}

func saveValueAlignment(path string, rows []patterns.ValueAlignment) error {
	header := []string{"segment_id"}
	for _, theme := range dataset.ValueThemes {
		header = append(header, theme+"_conversion")
	}
	header = append(header, "overall_conversion", "dominant_value")

	records := [][]string{header}
	for _, r := range rows {
		rec := []string{strconv.Itoa(r.SegmentID)}
		for _, theme := range dataset.ValueThemes {
			rec = append(rec, off(r.ThemeResponse[theme]))
		}
		rec = append(rec, ff(r.OverallConversion), r.DominantValue)
		records = append(records, rec)
	}
	return writeCSV(path, records)
}

func saveAlignmentImpact(path string, rows []patterns.AlignmentImpact) error {
	records := [][]string{{
		"dominant_value", "segment_count", "aligned_theme_conversion", "baseline_conversion",
	}}
	for _, r := range rows {
		records = append(records, []string{
			r.DominantValue, strconv.Itoa(r.SegmentCount),
			off(r.AlignedThemeConversion), ff(r.BaselineConversion),
		})
	}
	return writeCSV(path, records)
}

func saveChannelVersatility(path string, rows []patterns.ChannelVersatility) error {
	header := []string{"segment_id", "channels_engaged"}
	for _, ch := range dataset.Channels {
		header = append(header, ch+"_engagement")
	}
	header = append(header, "engagement_variance", "avg_conversion", "channel_strategy")

	records := [][]string{header}
	for _, r := range rows {
		rec := []string{strconv.Itoa(r.SegmentID), strconv.Itoa(r.ChannelsEngaged)}
		for _, ch := range dataset.Channels {
			rec = append(rec, off(r.ChannelEngagement[ch]))
		}
		rec = append(rec, off(r.EngagementVariance), ff(r.AvgConversion), r.ChannelStrategy)
		records = append(records, rec)
	}
	return writeCSV(path, records)
}

func savePredictions(path string, rows []predictive.Prediction) error {
	records := [][]string{{
		"segment_id", "campaign_id", "campaign_type", "channel",
		"message_sentiment", "value_theme", "predicted_conversion",
		"actual_conversion", "prediction_error", "price_sensitivity",
		"channel_match_score",
	}}
	for _, r := range rows {
		records = append(records, []string{
			strconv.Itoa(r.SegmentID), r.CampaignID, r.CampaignType, r.Channel,
			r.MessageSentiment, r.ValueTheme, ff(r.PredictedConversion),
			ff(r.ActualConversion), ff(r.Error), ff(r.PriceSensitivity),
			ff(r.ChannelMatchScore),
		})
	}
	return writeCSV(path, records)
}

func saveModelSummary(path string, s predictive.ModelSummary) error {
	return writeCSV(path, [][]string{
		{"r_squared", "rmse", "mae", "train_size", "test_size"},
		{ff(s.RSquared), ff(s.RMSE), ff(s.MAE), strconv.Itoa(s.TrainSize), strconv.Itoa(s.TestSize)},
	})
}

func saveFeatureImportance(path string, rows []predictive.FeatureImportance) error {
	records := [][]string{{"feature", "importance"}}
	for _, r := range rows {
		records = append(records, []string{r.Feature, ff(r.Importance)})
	}
	return writeCSV(path, records)
}

func saveClusterAssignments(path string, rows []predictive.Assignment) error {
	records := [][]string{{
		"segment_id", "cluster_id", "cluster_name",
		"recommended_campaign_type", "recommended_channel", "recommended_theme",
		"expected_conversion",
	}}
	for _, r := range rows {
		records = append(records, []string{
			strconv.Itoa(r.SegmentID), strconv.Itoa(r.ClusterID), r.ClusterName,
			r.RecommendedCampaignType, r.RecommendedChannel, r.RecommendedTheme,
			ff(r.ExpectedConversion),
		})
	}
	return writeCSV(path, records)
}

func saveClusterProfiles(path string, rows []predictive.ClusterProfile) error {
	header := []string{"cluster_id", "cluster_name", "size"}
	header = append(header, predictive.ClusterFeatureNames...)
	header = append(header, "top_campaign_type", "top_channel", "top_value")

	records := [][]string{header}
	for _, r := range rows {
		rec := []string{strconv.Itoa(r.ClusterID), r.ClusterName, strconv.Itoa(r.Size)}
		for _, name := range predictive.ClusterFeatureNames {
			rec = append(rec, off(r.AvgFeatures[name]))
		}
		rec = append(rec, r.TopCampaignType, r.TopChannel, r.TopValue)
		records = append(records, rec)
	}
	return writeCSV(path, records)
}

func saveDirectives(path string, directives []directive.Directive) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	data, err := json.MarshalIndent(directives, "", "  ")
	if err != nil {
		return fmt.Errorf("encode directives: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ClusterFile reads cluster assignments back from a pipeline output file.
// It backs the API's cluster route without a database table.
type ClusterFile struct {
	Path string
}

// Assignments loads and parses the cluster assignment table.
func (c ClusterFile) Assignments() ([]predictive.Assignment, error) {
	f, err := os.Open(c.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", c.Path, err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", c.Path, err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	var out []predictive.Assignment
	for _, rec := range records[1:] {
		if len(rec) < 7 {
			return nil, fmt.Errorf("%s: short row with %d columns", c.Path, len(rec))
		}
		segmentID, err := strconv.Atoi(rec[0])
		if err != nil {
			return nil, fmt.Errorf("%s: segment_id %q: %w", c.Path, rec[0], err)
		}
		clusterID, err := strconv.Atoi(rec[1])
		if err != nil {
			return nil, fmt.Errorf("%s: cluster_id %q: %w", c.Path, rec[1], err)
		}
		expected, err := strconv.ParseFloat(rec[6], 64)
		if err != nil {
			return nil, fmt.Errorf("%s: expected_conversion %q: %w", c.Path, rec[6], err)
		}
		out = append(out, predictive.Assignment{
			SegmentID: segmentID, ClusterID: clusterID, ClusterName: rec[2],
			RecommendedCampaignType: rec[3], RecommendedChannel: rec[4],
			RecommendedTheme: rec[5], ExpectedConversion: expected,
		})
	}
	return out, nil
}
