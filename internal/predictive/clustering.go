package predictive

import (
	"fmt"
	"math"
	"sort"

	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"
	"gonum.org/v1/gonum/stat"

	"github.com/brightloop/campaign-insights/internal/dataset"
)

// ClusterFeatureNames lists the behavioral clustering inputs in vector order.
var ClusterFeatureNames = []string{
	"edu_affinity", "premium_affinity", "discount_affinity",
	"email_preference", "push_preference", "inapp_preference",
	"family_resonance", "eco_resonance", "convenience_resonance", "quality_resonance",
	"response_volatility", "overall_engagement",
}

// ClusterFeatureRow holds one segment's behavioral features. Entries are nil
// when the segment has no observations of that kind; they are imputed with
// the column mean before clustering.
type ClusterFeatureRow struct {
	SegmentID int
	Features  []*float64
}

// Assignment maps a segment to its behavioral archetype with the canned
// campaign recommendation for that archetype.
type Assignment struct {
	SegmentID   int
	ClusterID   int
	ClusterName string

	RecommendedCampaignType string
	RecommendedChannel      string
	RecommendedTheme        string
	ExpectedConversion      float64
}

// ClusterProfile summarizes one cluster across the raw (unimputed) features.
type ClusterProfile struct {
	ClusterID   int
	ClusterName string
	Size        int

	// Feature averages keyed by ClusterFeatureNames, nil-skipping.
	AvgFeatures map[string]*float64

	TopCampaignType string
	TopChannel      string
	TopValue        string
}

type archetype struct {
	name               string
	campaignType       string
	channel            string
	theme              string
	expectedConversion float64
}

var archetypes = []archetype{
	{"budget_hunters", "discount", "email", "convenience", 0.031},
	{"eco_conscious_parents", "educational", "push", "eco_conscious", 0.024},
	{"premium_quality_seekers", "premium", "email", "quality", 0.029},
	{"convenience_seekers", "educational", "inapp", "convenience", 0.025},
	{"multi_channel_engagers", "premium", "inapp", "family", 0.028},
}

// BuildClusterFeatures aggregates per-segment behavioral features from the
// joined metric rows, sorted by segment id.
func BuildClusterFeatures(rows []dataset.MetricRow) []ClusterFeatureRow {
	type acc struct {
		byType      map[string]*meanAcc
		byChannel   map[string]*meanAcc
		byTheme     map[string]*meanAcc
		conversions []float64
		engagement  meanAcc
	}
	accs := map[int]*acc{}
	for _, row := range rows {
		s := accs[row.SegmentID]
		if s == nil {
			s = &acc{byType: map[string]*meanAcc{}, byChannel: map[string]*meanAcc{}, byTheme: map[string]*meanAcc{}}
			accs[row.SegmentID] = s
		}
		addMean(s.byType, row.CampaignType, row.ConversionRate)
		addMean(s.byChannel, row.Channel, row.EngagementRate)
		addMean(s.byTheme, row.ValueTheme, row.ConversionRate)
		s.conversions = append(s.conversions, row.ConversionRate)
		s.engagement.add(row.EngagementRate)
	}

	out := make([]ClusterFeatureRow, 0, len(accs))
	for segmentID, s := range accs {
		features := []*float64{
			meanOf(s.byType, "educational"),
			meanOf(s.byType, "premium"),
			meanOf(s.byType, "discount"),
			meanOf(s.byChannel, "email"),
			meanOf(s.byChannel, "push"),
			meanOf(s.byChannel, "inapp"),
			meanOf(s.byTheme, "family"),
			meanOf(s.byTheme, "eco_conscious"),
			meanOf(s.byTheme, "convenience"),
			meanOf(s.byTheme, "quality"),
			sampleStd(s.conversions),
			s.engagement.meanOrNil(),
		}
		out = append(out, ClusterFeatureRow{SegmentID: segmentID, Features: features})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SegmentID < out[j].SegmentID })
	return out
}

// Cluster groups segments into k behavioral archetypes. Missing features are
// imputed with the column mean, all columns are standardized, and the cluster
// ids index the fixed archetype table.
func Cluster(features []ClusterFeatureRow, k int) ([]Assignment, []ClusterProfile, error) {
	if k > len(archetypes) {
		return nil, nil, fmt.Errorf("cluster: %d clusters exceeds the %d named archetypes", k, len(archetypes))
	}
	if len(features) < k {
		return nil, nil, fmt.Errorf("cluster: %d segments for %d clusters", len(features), k)
	}

	matrix := imputeAndStandardize(features)

	observations := make(clusters.Observations, len(matrix))
	for i, row := range matrix {
		observations[i] = clusters.Coordinates(row)
	}

	km := kmeans.New()
	partition, err := km.Partition(observations, k)
	if err != nil {
		return nil, nil, fmt.Errorf("kmeans partition: %w", err)
	}

	assignments := make([]Assignment, len(features))
	for i, f := range features {
		clusterID := partition.Nearest(observations[i])
		a := archetypes[clusterID]
		assignments[i] = Assignment{
			SegmentID:   f.SegmentID,
			ClusterID:   clusterID,
			ClusterName: a.name,

			RecommendedCampaignType: a.campaignType,
			RecommendedChannel:      a.channel,
			RecommendedTheme:        a.theme,
			ExpectedConversion:      a.expectedConversion,
		}
	}

	return assignments, profiles(features, assignments, k), nil
}

func profiles(features []ClusterFeatureRow, assignments []Assignment, k int) []ClusterProfile {
	byCluster := make(map[int][]ClusterFeatureRow, k)
	for i, a := range assignments {
		byCluster[a.ClusterID] = append(byCluster[a.ClusterID], features[i])
	}

	out := make([]ClusterProfile, 0, k)
	for clusterID := 0; clusterID < k; clusterID++ {
		members := byCluster[clusterID]
		a := archetypes[clusterID]
		p := ClusterProfile{
			ClusterID:   clusterID,
			ClusterName: a.name,
			Size:        len(members),
			AvgFeatures: map[string]*float64{},

			TopCampaignType: a.campaignType,
			TopChannel:      a.channel,
			TopValue:        a.theme,
		}
		for col, name := range ClusterFeatureNames {
			var acc meanAcc
			for _, m := range members {
				if v := m.Features[col]; v != nil {
					acc.add(*v)
				}
			}
			p.AvgFeatures[name] = acc.meanOrNil()
		}
		out = append(out, p)
	}
	return out
}

// imputeAndStandardize fills missing entries with the column mean and scales
// every column to zero mean and unit variance. A constant column stays zero.
func imputeAndStandardize(features []ClusterFeatureRow) [][]float64 {
	cols := len(ClusterFeatureNames)
	colMeans := make([]float64, cols)
	for col := 0; col < cols; col++ {
		var acc meanAcc
		for _, f := range features {
			if v := f.Features[col]; v != nil {
				acc.add(*v)
			}
		}
		if acc.n > 0 {
			colMeans[col] = acc.mean()
		}
	}

	matrix := make([][]float64, len(features))
	for i, f := range features {
		row := make([]float64, cols)
		for col := 0; col < cols; col++ {
			if v := f.Features[col]; v != nil {
				row[col] = *v
			} else {
				row[col] = colMeans[col]
			}
		}
		matrix[i] = row
	}

	for col := 0; col < cols; col++ {
		column := make([]float64, len(matrix))
		for i := range matrix {
			column[i] = matrix[i][col]
		}
		mean := stat.Mean(column, nil)
		std := 0.0
		if len(column) > 1 {
			std = stat.StdDev(column, nil)
		}
		for i := range matrix {
			if std == 0 || math.IsNaN(std) {
				matrix[i][col] = 0
			} else {
				matrix[i][col] = (matrix[i][col] - mean) / std
			}
		}
	}
	return matrix
}

type meanAcc struct {
	sum float64
	n   int
}

func (m *meanAcc) add(v float64) {
	m.sum += v
	m.n++
}

func (m *meanAcc) mean() float64 { return m.sum / float64(m.n) }

func (m *meanAcc) meanOrNil() *float64 {
	if m.n == 0 {
		return nil
	}
	v := m.mean()
	return &v
}

func addMean(m map[string]*meanAcc, key string, v float64) {
	acc := m[key]
	if acc == nil {
		acc = &meanAcc{}
		m[key] = acc
	}
	acc.add(v)
}

func meanOf(m map[string]*meanAcc, key string) *float64 {
	if acc := m[key]; acc != nil {
		return acc.meanOrNil()
	}
	return nil
}

func sampleStd(xs []float64) *float64 {
	if len(xs) < 2 {
		return nil
	}
	std := stat.StdDev(xs, nil)
	return &std
}
