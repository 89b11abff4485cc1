package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

var (
	ErrNoHeader       = errors.New("no header row in CSV file")
	ErrMissingColumns = errors.New("required columns missing from CSV header")
)

// header maps column names to indexes for position-independent reads.
type header map[string]int

func readAll(path string) (header, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if len(records) == 0 {
		return nil, nil, ErrNoHeader
	}

	h := header{}
	for i, name := range records[0] {
		h[name] = i
	}
	return h, records[1:], nil
}

func (h header) require(names ...string) error {
	var missing []string
	for _, n := range names {
		if _, ok := h[n]; !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %v", ErrMissingColumns, missing)
	}
	return nil
}

func (h header) str(row []string, name string) string {
	i, ok := h[name]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

func (h header) intVal(row []string, name string) (int, error) {
	s := h.str(row, name)
	if s == "" {
		return 0, nil
	}
	// Tolerate float renderings of integer columns
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("column %s: %w", name, err)
	}
	return int(f), nil
}

func (h header) floatVal(row []string, name string) (float64, error) {
	s := h.str(row, name)
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("column %s: %w", name, err)
	}
	return f, nil
}

func (h header) optFloat(row []string, name string) (*float64, error) {
	s := h.str(row, name)
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("column %s: %w", name, err)
	}
	return &f, nil
}

func ff(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

func off(v *float64) string {
	if v == nil {
		return ""
	}
	return ff(*v)
}

func writeAll(path string, records [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(records); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// LoadRawSegments reads the raw input table. The alias_index column is
// accepted under either its raw name or the renamed segment_id; columns the
// pipeline drops are simply ignored.
func LoadRawSegments(path string) ([]RawSegment, error) {
	h, rows, err := readAll(path)
	if err != nil {
		return nil, err
	}

	idCol := "alias_index"
	if _, ok := h[idCol]; !ok {
		idCol = "segment_id"
	}
	if err := h.require(idCol, "language", "event_count", "baby_age_week_1"); err != nil {
		return nil, err
	}

	out := make([]RawSegment, 0, len(rows))
	for _, row := range rows {
		id, err := h.intVal(row, idCol)
		if err != nil {
			return nil, err
		}
		events, err := h.intVal(row, "event_count")
		if err != nil {
			return nil, err
		}
		babyAge, err := h.floatVal(row, "baby_age_week_1")
		if err != nil {
			return nil, err
		}
		out = append(out, RawSegment{
			SegmentID:   id,
			Language:    h.str(row, "language"),
			EventCount:  events,
			BabyAgeWeek: babyAge,
		})
	}
	return out, nil
}

var segmentHeader = []string{
	"segment_id", "language", "parent_age", "parent_gender", "baby_count",
	"engagement_propensity", "price_sensitivity", "brand_loyalty",
	"channel_perf_email", "channel_perf_push", "channel_perf_inapp",
	"values_family", "values_eco_conscious", "values_convenience", "values_quality",
	"contact_frequency_tolerance", "content_engagement_rate",
}

// SaveSegments writes the enriched/learned segment table.
func SaveSegments(path string, segments []Segment) error {
	records := [][]string{segmentHeader}
	for _, s := range segments {
		records = append(records, []string{
			strconv.Itoa(s.SegmentID), s.Language, strconv.Itoa(s.ParentAge),
			s.ParentGender, strconv.Itoa(s.BabyCount),
			ff(s.EngagementPropensity), ff(s.PriceSensitivity), ff(s.BrandLoyalty),
			ff(s.ChannelPerfEmail), ff(s.ChannelPerfPush), ff(s.ChannelPerfInapp),
			ff(s.ValuesFamily), ff(s.ValuesEcoConscious), ff(s.ValuesConvenience), ff(s.ValuesQuality),
			ff(s.ContactFrequencyTolerance), ff(s.ContentEngagementRate),
		})
	}
	return writeAll(path, records)
}

// LoadSegments reads the enriched segment table.
func LoadSegments(path string) ([]Segment, error) {
	h, rows, err := readAll(path)
	if err != nil {
		return nil, err
	}
	if err := h.require(segmentHeader...); err != nil {
		return nil, err
	}

	out := make([]Segment, 0, len(rows))
	for _, row := range rows {
		var s Segment
		if s.SegmentID, err = h.intVal(row, "segment_id"); err != nil {
			return nil, err
		}
		s.Language = h.str(row, "language")
		if s.ParentAge, err = h.intVal(row, "parent_age"); err != nil {
			return nil, err
		}
		s.ParentGender = h.str(row, "parent_gender")
		if s.BabyCount, err = h.intVal(row, "baby_count"); err != nil {
			return nil, err
		}

		floats := []struct {
			col string
			dst *float64
		}{
			{"engagement_propensity", &s.EngagementPropensity},
			{"price_sensitivity", &s.PriceSensitivity},
			{"brand_loyalty", &s.BrandLoyalty},
			{"channel_perf_email", &s.ChannelPerfEmail},
			{"channel_perf_push", &s.ChannelPerfPush},
			{"channel_perf_inapp", &s.ChannelPerfInapp},
			{"values_family", &s.ValuesFamily},
			{"values_eco_conscious", &s.ValuesEcoConscious},
			{"values_convenience", &s.ValuesConvenience},
			{"values_quality", &s.ValuesQuality},
			{"contact_frequency_tolerance", &s.ContactFrequencyTolerance},
			{"content_engagement_rate", &s.ContentEngagementRate},
		}
		for _, fc := range floats {
			if *fc.dst, err = h.floatVal(row, fc.col); err != nil {
				return nil, err
			}
		}
		out = append(out, s)
	}
	return out, nil
}

var campaignHeader = []string{
	"campaign_id", "campaign_type", "channel", "message_sentiment",
	"value_theme", "offer_type", "discount_percentage",
}

// SaveCampaigns writes the campaign catalog.
func SaveCampaigns(path string, campaigns []Campaign) error {
	records := [][]string{campaignHeader}
	for _, c := range campaigns {
		records = append(records, []string{
			c.CampaignID, c.CampaignType, c.Channel, c.MessageSentiment,
			c.ValueTheme, c.OfferType, off(c.DiscountPercentage),
		})
	}
	return writeAll(path, records)
}

// LoadCampaigns reads the campaign catalog.
func LoadCampaigns(path string) ([]Campaign, error) {
	h, rows, err := readAll(path)
	if err != nil {
		return nil, err
	}
	if err := h.require(campaignHeader...); err != nil {
		return nil, err
	}

	out := make([]Campaign, 0, len(rows))
	for _, row := range rows {
		c := Campaign{
			CampaignID:       h.str(row, "campaign_id"),
			CampaignType:     h.str(row, "campaign_type"),
			Channel:          h.str(row, "channel"),
			MessageSentiment: h.str(row, "message_sentiment"),
			ValueTheme:       h.str(row, "value_theme"),
			OfferType:        h.str(row, "offer_type"),
		}
		if c.DiscountPercentage, err = h.optFloat(row, "discount_percentage"); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

var resultHeader = []string{
	"campaign_id", "segment_id", "impressions", "clicks", "conversions", "sequence",
}

// SaveResults writes the simulated campaign results.
func SaveResults(path string, results []CampaignResult) error {
	records := [][]string{resultHeader}
	for _, r := range results {
		records = append(records, []string{
			r.CampaignID, strconv.Itoa(r.SegmentID), strconv.Itoa(r.Impressions),
			strconv.Itoa(r.Clicks), strconv.Itoa(r.Conversions), strconv.Itoa(r.Sequence),
		})
	}
	return writeAll(path, records)
}

// LoadResults reads the campaign results table.
func LoadResults(path string) ([]CampaignResult, error) {
	h, rows, err := readAll(path)
	if err != nil {
		return nil, err
	}
	if err := h.require(resultHeader...); err != nil {
		return nil, err
	}

	out := make([]CampaignResult, 0, len(rows))
	for _, row := range rows {
		var r CampaignResult
		r.CampaignID = h.str(row, "campaign_id")
		if r.SegmentID, err = h.intVal(row, "segment_id"); err != nil {
			return nil, err
		}
		if r.Impressions, err = h.intVal(row, "impressions"); err != nil {
			return nil, err
		}
		if r.Clicks, err = h.intVal(row, "clicks"); err != nil {
			return nil, err
		}
		if r.Conversions, err = h.intVal(row, "conversions"); err != nil {
			return nil, err
		}
		if r.Sequence, err = h.intVal(row, "sequence"); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

var metricHeader = []string{
	"campaign_id", "segment_id", "sequence", "impressions", "clicks", "conversions",
	"campaign_type", "channel", "message_sentiment", "value_theme", "language",
	"engagement_rate", "conversion_rate", "channel_match_score",
	"baseline_conversion", "baseline_engagement", "sales_vs_benchmark",
}

// SaveMetrics writes the joined, benchmarked metric table. Absent baselines
// are written as empty cells, never as zero.
func SaveMetrics(path string, metrics []MetricRow) error {
	records := [][]string{metricHeader}
	for _, m := range metrics {
		records = append(records, []string{
			m.CampaignID, strconv.Itoa(m.SegmentID), strconv.Itoa(m.Sequence),
			strconv.Itoa(m.Impressions), strconv.Itoa(m.Clicks), strconv.Itoa(m.Conversions),
			m.CampaignType, m.Channel, m.MessageSentiment, m.ValueTheme, m.Language,
			ff(m.EngagementRate), ff(m.ConversionRate), ff(m.ChannelMatchScore),
			off(m.BaselineConversion), off(m.BaselineEngagement), off(m.SalesVsBenchmark),
		})
	}
	return writeAll(path, records)
}

// LoadMetrics reads the benchmarked metric table.
func LoadMetrics(path string) ([]MetricRow, error) {
	h, rows, err := readAll(path)
	if err != nil {
		return nil, err
	}
	if err := h.require(metricHeader...); err != nil {
		return nil, err
	}

	out := make([]MetricRow, 0, len(rows))
	for _, row := range rows {
		var m MetricRow
		m.CampaignID = h.str(row, "campaign_id")
		if m.SegmentID, err = h.intVal(row, "segment_id"); err != nil {
			return nil, err
		}
		if m.Sequence, err = h.intVal(row, "sequence"); err != nil {
			return nil, err
		}
		if m.Impressions, err = h.intVal(row, "impressions"); err != nil {
			return nil, err
		}
		if m.Clicks, err = h.intVal(row, "clicks"); err != nil {
			return nil, err
		}
		if m.Conversions, err = h.intVal(row, "conversions"); err != nil {
			return nil, err
		}
		m.CampaignType = h.str(row, "campaign_type")
		m.Channel = h.str(row, "channel")
		m.MessageSentiment = h.str(row, "message_sentiment")
		m.ValueTheme = h.str(row, "value_theme")
		m.Language = h.str(row, "language")
		if m.EngagementRate, err = h.floatVal(row, "engagement_rate"); err != nil {
			return nil, err
		}
		if m.ConversionRate, err = h.floatVal(row, "conversion_rate"); err != nil {
			return nil, err
		}
		if m.ChannelMatchScore, err = h.floatVal(row, "channel_match_score"); err != nil {
			return nil, err
		}
		if m.BaselineConversion, err = h.optFloat(row, "baseline_conversion"); err != nil {
			return nil, err
		}
		if m.BaselineEngagement, err = h.optFloat(row, "baseline_engagement"); err != nil {
			return nil, err
		}
		if m.SalesVsBenchmark, err = h.optFloat(row, "sales_vs_benchmark"); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

var benchmarkHeader = []string{
	"language", "campaign_type", "baseline_conversion", "baseline_engagement",
	"conversion_std", "observations",
}

// SaveBenchmarks writes the cohort baseline table.
func SaveBenchmarks(path string, benchmarks []Benchmark) error {
	records := [][]string{benchmarkHeader}
	for _, b := range benchmarks {
		records = append(records, []string{
			b.Language, b.CampaignType, ff(b.BaselineConversion),
			ff(b.BaselineEngagement), ff(b.ConversionStd), strconv.Itoa(b.Observations),
		})
	}
	return writeAll(path, records)
}
