package pipeline

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightloop/campaign-insights/internal/config"
	"github.com/brightloop/campaign-insights/internal/dataset"
	"github.com/brightloop/campaign-insights/internal/directive"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.InputDir = filepath.Join(dir, "input")
	cfg.Paths.GeneratedDir = filepath.Join(dir, "generated")
	cfg.Paths.OutputDir = filepath.Join(dir, "output")
	cfg.Synthesis.CampaignCount = 12
	return cfg
}

func writeRawSegments(t *testing.T, cfg *config.Config, count int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(cfg.Paths.InputDir, 0o755))

	records := [][]string{{"alias_index", "language", "event_count", "baby_age_week_1"}}
	languages := []string{"en", "fi", "sv"}
	for i := 1; i <= count; i++ {
		records = append(records, []string{
			fmt.Sprint(i), languages[i%len(languages)],
			fmt.Sprint(10 + i*3), fmt.Sprint(4 + i%40),
		})
	}

	f, err := os.Create(filepath.Join(cfg.Paths.InputDir, cfg.Paths.RawSegmentsFile))
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, csv.NewWriter(f).WriteAll(records))
}

type fakeSink struct {
	sessions int
	ended    []string
	uploads  []string
}

func (f *fakeSink) CreateSession(context.Context) (string, error) {
	f.sessions++
	return fmt.Sprintf("sess-%d", f.sessions), nil
}

func (f *fakeSink) UploadTable(_ context.Context, _, table string, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty upload for %s", table)
	}
	f.uploads = append(f.uploads, table)
	return nil
}

func (f *fakeSink) EndSession(_ context.Context, sessionID string) error {
	f.ended = append(f.ended, sessionID)
	return nil
}

type fakeStore struct {
	segmentRuns   []uuid.UUID
	segments      []dataset.Segment
	benchmarkRuns []uuid.UUID
	directives    map[int]directive.Directive
}

func (f *fakeStore) UpsertSegments(_ context.Context, runID uuid.UUID, segments []dataset.Segment) error {
	f.segmentRuns = append(f.segmentRuns, runID)
	f.segments = segments
	return nil
}

func (f *fakeStore) SaveBenchmarks(_ context.Context, runID uuid.UUID, _ []dataset.Benchmark) error {
	f.benchmarkRuns = append(f.benchmarkRuns, runID)
	return nil
}

func (f *fakeStore) InsertDirective(_ context.Context, segmentID int, d directive.Directive) error {
	if f.directives == nil {
		f.directives = map[int]directive.Directive{}
	}
	f.directives[segmentID] = d
	return nil
}

func TestRunAllStages(t *testing.T) {
	cfg := testConfig(t)
	writeRawSegments(t, cfg, 15)

	p := New(cfg)
	require.NoError(t, p.Run(context.Background(), nil))

	// Every inter-stage table exists and parses.
	segments, err := dataset.LoadSegments(filepath.Join(cfg.Paths.GeneratedDir, cfg.Paths.SegmentsFile))
	require.NoError(t, err)
	assert.Len(t, segments, 15)

	results, err := dataset.LoadResults(filepath.Join(cfg.Paths.GeneratedDir, cfg.Paths.ResultsFile))
	require.NoError(t, err)
	assert.Len(t, results, 15*cfg.Synthesis.CampaignCount)

	rows, err := dataset.LoadMetrics(filepath.Join(cfg.Paths.GeneratedDir, cfg.Paths.MetricsFile))
	require.NoError(t, err)
	assert.Len(t, rows, len(results))

	// Learned attributes stay in bounds.
	for _, s := range segments {
		assert.GreaterOrEqual(t, s.EngagementPropensity, 0.2)
		assert.LessOrEqual(t, s.EngagementPropensity, 0.9)
		assert.InDelta(t, 1.0,
			s.ValuesFamily+s.ValuesEcoConscious+s.ValuesConvenience+s.ValuesQuality, 1e-9)
	}

	for _, name := range []string{
		FileSegmentConsistency, FileAttributeEffectiveness, FileInteractionEffects,
		FileTypeAffinity, FileEducationalPriming, FilePrimingSummary,
		FileValueAlignment, FileAlignmentImpact, FileChannelVersatility,
		FilePredictions, FileModelSummary, FileFeatureImportance,
		FileClusterAssignments, FileClusterProfiles, FileBenchmarks, FileDirectives,
	} {
		info, err := os.Stat(filepath.Join(cfg.Paths.OutputDir, name))
		require.NoError(t, err, name)
		assert.Positive(t, info.Size(), name)
	}

	// The directive file holds one entry per segment.
	data, err := os.ReadFile(filepath.Join(cfg.Paths.OutputDir, FileDirectives))
	require.NoError(t, err)
	var directives []directive.Directive
	require.NoError(t, json.Unmarshal(data, &directives))
	assert.Len(t, directives, 15)
}

func TestRunStageSubsetInPipelineOrder(t *testing.T) {
	cfg := testConfig(t)
	writeRawSegments(t, cfg, 15)

	p := New(cfg)
	// Request out of order; the run still goes enrich -> campaigns -> metrics.
	require.NoError(t, p.Run(context.Background(), []string{"metrics", "enrich", "campaigns"}))

	_, err := dataset.LoadMetrics(filepath.Join(cfg.Paths.GeneratedDir, cfg.Paths.MetricsFile))
	require.NoError(t, err)

	// Later stage outputs were not produced.
	_, err = os.Stat(filepath.Join(cfg.Paths.OutputDir, FilePredictions))
	assert.True(t, os.IsNotExist(err))
}

func TestRunUnknownStage(t *testing.T) {
	p := New(testConfig(t))
	err := p.Run(context.Background(), []string{"enrich", "bogus"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bogus")
}

func TestRunMissingInputFails(t *testing.T) {
	p := New(testConfig(t))
	err := p.Run(context.Background(), []string{"enrich"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stage enrich")
}

func TestRunPublishesTables(t *testing.T) {
	cfg := testConfig(t)
	writeRawSegments(t, cfg, 15)

	sink := &fakeSink{}
	p := New(cfg)
	p.UseTableSink(sink)
	require.NoError(t, p.Run(context.Background(), []string{"enrich", "campaigns", "metrics"}))

	assert.Equal(t, 1, sink.sessions)
	assert.Equal(t, []string{"sess-1"}, sink.ended)
	assert.Equal(t,
		[]string{"user_segments", "campaigns", "campaign_results", "campaign_metrics"},
		sink.uploads)
}

func TestRunPersistsToStore(t *testing.T) {
	cfg := testConfig(t)
	writeRawSegments(t, cfg, 15)

	store := &fakeStore{}
	p := New(cfg)
	p.UseStore(store)
	require.NoError(t, p.Run(context.Background(), nil))

	require.Len(t, store.segmentRuns, 1)
	assert.Equal(t, p.RunID(), store.segmentRuns[0])
	assert.Len(t, store.segments, 15)
	require.Len(t, store.benchmarkRuns, 1)
	assert.Len(t, store.directives, 15)
}

func TestClusterFileRoundTrip(t *testing.T) {
	cfg := testConfig(t)
	writeRawSegments(t, cfg, 15)

	p := New(cfg)
	require.NoError(t, p.Run(context.Background(), nil))

	cf := ClusterFile{Path: filepath.Join(cfg.Paths.OutputDir, FileClusterAssignments)}
	assignments, err := cf.Assignments()
	require.NoError(t, err)
	require.Len(t, assignments, 15)
	for _, a := range assignments {
		assert.NotEmpty(t, a.ClusterName)
		assert.NotEmpty(t, a.RecommendedCampaignType)
		assert.Positive(t, a.ExpectedConversion)
	}
}

func TestClusterFileMissing(t *testing.T) {
	cf := ClusterFile{Path: filepath.Join(t.TempDir(), "nope.csv")}
	_, err := cf.Assignments()
	assert.Error(t, err)
}
