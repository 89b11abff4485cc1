// Package pipeline sequences the batch stages: enrichment, campaign
// synthesis, metrics, attribute learning, pattern analysis, prediction,
// and directive generation. Stages exchange data through flat files so any
// suffix of the pipeline can be re-run against the previous outputs.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/brightloop/campaign-insights/internal/catalog"
	"github.com/brightloop/campaign-insights/internal/config"
	"github.com/brightloop/campaign-insights/internal/dataset"
	"github.com/brightloop/campaign-insights/internal/directive"
	"github.com/brightloop/campaign-insights/internal/enrich"
	"github.com/brightloop/campaign-insights/internal/learner"
	"github.com/brightloop/campaign-insights/internal/metrics"
	"github.com/brightloop/campaign-insights/internal/patterns"
	"github.com/brightloop/campaign-insights/internal/pkg/logger"
	"github.com/brightloop/campaign-insights/internal/predictive"
)

// StageNames lists the pipeline stages in execution order.
var StageNames = []string{
	"enrich", "campaigns", "metrics", "learn", "patterns", "predict", "directives",
}

// RawSource loads raw segment rows from somewhere other than the input file,
// typically the warehouse.
type RawSource interface {
	LoadRawSegments(ctx context.Context) ([]dataset.RawSegment, error)
}

// TableSink mirrors pipeline tables to a remote analytics engine session.
type TableSink interface {
	CreateSession(ctx context.Context) (string, error)
	UploadTable(ctx context.Context, sessionID, table string, csv []byte) error
	EndSession(ctx context.Context, sessionID string) error
}

// Store persists learned outputs for the API between runs.
type Store interface {
	UpsertSegments(ctx context.Context, runID uuid.UUID, segments []dataset.Segment) error
	SaveBenchmarks(ctx context.Context, runID uuid.UUID, benchmarks []dataset.Benchmark) error
	InsertDirective(ctx context.Context, segmentID int, d directive.Directive) error
}

// Pipeline runs the batch stages against the configured file locations.
// The optional collaborators are nil when their integration is disabled.
type Pipeline struct {
	cfg   *config.Config
	runID uuid.UUID

	raw   RawSource
	sink  TableSink
	store Store

	sessionID string
}

// New creates a pipeline with a fresh run id.
func New(cfg *config.Config) *Pipeline {
	return &Pipeline{cfg: cfg, runID: uuid.New()}
}

// UseRawSource sets the warehouse-backed raw segment source.
func (p *Pipeline) UseRawSource(s RawSource) { p.raw = s }

// UseTableSink sets the remote analytics mirror.
func (p *Pipeline) UseTableSink(s TableSink) { p.sink = s }

// UseStore sets the persistence layer for learned outputs.
func (p *Pipeline) UseStore(s Store) { p.store = s }

// RunID returns the identifier stamped on this run's persisted rows.
func (p *Pipeline) RunID() uuid.UUID { return p.runID }

// Run executes the named stages in pipeline order. An empty list runs all
// stages. Any stage error aborts the run; partial results are not rolled
// back, matching the file-per-stage contract.
func (p *Pipeline) Run(ctx context.Context, stages []string) error {
	selected, err := selectStages(stages)
	if err != nil {
		return err
	}

	log := logger.WithStage("pipeline")
	log.Info("run starting", "run_id", p.runID.String(), "stages", selected)

	if p.sink != nil {
		sessionID, err := p.sink.CreateSession(ctx)
		if err != nil {
			return fmt.Errorf("create analytics session: %w", err)
		}
		p.sessionID = sessionID
		defer func() {
			if err := p.sink.EndSession(ctx, sessionID); err != nil {
				log.Warn("end analytics session failed", "error", err.Error())
			}
		}()
	}

	runners := map[string]func(context.Context) error{
		"enrich":     p.runEnrich,
		"campaigns":  p.runCampaigns,
		"metrics":    p.runMetrics,
		"learn":      p.runLearn,
		"patterns":   p.runPatterns,
		"predict":    p.runPredict,
		"directives": p.runDirectives,
	}
	for _, name := range selected {
		if err := runners[name](ctx); err != nil {
			return fmt.Errorf("stage %s: %w", name, err)
		}
	}

	log.Info("run complete", "run_id", p.runID.String())
	return nil
}

// selectStages validates the requested stage names and returns them in
// pipeline order regardless of request order.
func selectStages(stages []string) ([]string, error) {
	if len(stages) == 0 {
		return StageNames, nil
	}
	requested := map[string]bool{}
	for _, s := range stages {
		known := false
		for _, name := range StageNames {
			if s == name {
				known = true
				break
			}
		}
		if !known {
			return nil, fmt.Errorf("unknown stage %q", s)
		}
		requested[s] = true
	}
	var out []string
	for _, name := range StageNames {
		if requested[name] {
			out = append(out, name)
		}
	}
	return out, nil
}

func (p *Pipeline) inputPath(name string) string {
	return filepath.Join(p.cfg.Paths.InputDir, name)
}

func (p *Pipeline) generatedPath(name string) string {
	return filepath.Join(p.cfg.Paths.GeneratedDir, name)
}

func (p *Pipeline) outputPath(name string) string {
	return filepath.Join(p.cfg.Paths.OutputDir, name)
}

// publish mirrors one saved table to the analytics session, when enabled.
func (p *Pipeline) publish(ctx context.Context, table, path string) error {
	if p.sink == nil {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s for upload: %w", path, err)
	}
	if err := p.sink.UploadTable(ctx, p.sessionID, table, data); err != nil {
		return fmt.Errorf("upload table %s: %w", table, err)
	}
	return nil
}

func (p *Pipeline) runEnrich(ctx context.Context) error {
	log := logger.WithStage("enrich")

	var raw []dataset.RawSegment
	var err error
	if p.raw != nil {
		raw, err = p.raw.LoadRawSegments(ctx)
	} else {
		raw, err = dataset.LoadRawSegments(p.inputPath(p.cfg.Paths.RawSegmentsFile))
	}
	if err != nil {
		return fmt.Errorf("load raw segments: %w", err)
	}

	segments := enrich.New(p.cfg.Synthesis.Seed).Enrich(raw)
	path := p.generatedPath(p.cfg.Paths.SegmentsFile)
	if err := dataset.SaveSegments(path, segments); err != nil {
		return err
	}

	log.Info("segments enriched", "raw", len(raw), "segments", len(segments))
	return p.publish(ctx, "user_segments", path)
}

func (p *Pipeline) runCampaigns(ctx context.Context) error {
	log := logger.WithStage("campaigns")

	segments, err := dataset.LoadSegments(p.generatedPath(p.cfg.Paths.SegmentsFile))
	if err != nil {
		return fmt.Errorf("load segments: %w", err)
	}

	campaigns := catalog.NewGenerator(p.cfg.Synthesis.Seed).Generate(p.cfg.Synthesis.CampaignCount)
	results := catalog.NewSimulator(p.cfg.Synthesis.Seed).Simulate(campaigns, segments)

	campaignsPath := p.generatedPath(p.cfg.Paths.CampaignsFile)
	resultsPath := p.generatedPath(p.cfg.Paths.ResultsFile)
	if err := dataset.SaveCampaigns(campaignsPath, campaigns); err != nil {
		return err
	}
	if err := dataset.SaveResults(resultsPath, results); err != nil {
		return err
	}

	log.Info("campaigns synthesized", "campaigns", len(campaigns), "results", len(results))
	if err := p.publish(ctx, "campaigns", campaignsPath); err != nil {
		return err
	}
	return p.publish(ctx, "campaign_results", resultsPath)
}

func (p *Pipeline) runMetrics(ctx context.Context) error {
	log := logger.WithStage("metrics")

	results, err := dataset.LoadResults(p.generatedPath(p.cfg.Paths.ResultsFile))
	if err != nil {
		return fmt.Errorf("load results: %w", err)
	}
	campaigns, err := dataset.LoadCampaigns(p.generatedPath(p.cfg.Paths.CampaignsFile))
	if err != nil {
		return fmt.Errorf("load campaigns: %w", err)
	}
	segments, err := dataset.LoadSegments(p.generatedPath(p.cfg.Paths.SegmentsFile))
	if err != nil {
		return fmt.Errorf("load segments: %w", err)
	}

	rows, benchmarks := metrics.NewBuilder(p.cfg.Benchmark.MinObservations).Build(results, campaigns, segments)

	metricsPath := p.generatedPath(p.cfg.Paths.MetricsFile)
	if err := dataset.SaveMetrics(metricsPath, rows); err != nil {
		return err
	}
	if err := dataset.SaveBenchmarks(p.outputPath(FileBenchmarks), benchmarks); err != nil {
		return err
	}

	if p.store != nil {
		if err := p.store.SaveBenchmarks(ctx, p.runID, benchmarks); err != nil {
			return fmt.Errorf("persist benchmarks: %w", err)
		}
	}

	log.Info("metrics built", "rows", len(rows), "benchmarks", len(benchmarks))
	return p.publish(ctx, "campaign_metrics", metricsPath)
}

func (p *Pipeline) runLearn(ctx context.Context) error {
	log := logger.WithStage("learn")

	segments, err := dataset.LoadSegments(p.generatedPath(p.cfg.Paths.SegmentsFile))
	if err != nil {
		return fmt.Errorf("load segments: %w", err)
	}
	rows, err := dataset.LoadMetrics(p.generatedPath(p.cfg.Paths.MetricsFile))
	if err != nil {
		return fmt.Errorf("load metrics: %w", err)
	}

	learned := learner.New(p.cfg.Learner).Learn(segments, rows)

	path := p.generatedPath(p.cfg.Paths.SegmentsFile)
	if err := dataset.SaveSegments(path, learned); err != nil {
		return err
	}
	if p.store != nil {
		if err := p.store.UpsertSegments(ctx, p.runID, learned); err != nil {
			return fmt.Errorf("persist segments: %w", err)
		}
	}

	log.Info("attributes learned", "segments", len(learned))
	return p.publish(ctx, "user_segments", path)
}

func (p *Pipeline) runPatterns(ctx context.Context) error {
	log := logger.WithStage("patterns")

	rows, err := dataset.LoadMetrics(p.generatedPath(p.cfg.Paths.MetricsFile))
	if err != nil {
		return fmt.Errorf("load metrics: %w", err)
	}
	segments, err := dataset.LoadSegments(p.generatedPath(p.cfg.Paths.SegmentsFile))
	if err != nil {
		return fmt.Errorf("load segments: %w", err)
	}

	a := patterns.NewAnalyzer()

	if err := saveSegmentConsistency(p.outputPath(FileSegmentConsistency), a.SegmentConsistency(rows)); err != nil {
		return err
	}
	if err := saveAttributeEffectiveness(p.outputPath(FileAttributeEffectiveness), a.AttributeEffectiveness(rows)); err != nil {
		return err
	}
	if err := saveInteractionEffects(p.outputPath(FileInteractionEffects), a.InteractionEffects(rows)); err != nil {
		return err
	}
	if err := saveTypeAffinity(p.outputPath(FileTypeAffinity), a.TypeAffinity(rows)); err != nil {
		return err
	}

	priming, primingSummary := a.EducationalPriming(rows)
	if err := saveEducationalPriming(p.outputPath(FileEducationalPriming), priming); err != nil {
		return err
	}
	if err := savePrimingSummary(p.outputPath(FilePrimingSummary), primingSummary); err != nil {
		return err
	}

	alignment, impact := a.ValueAlignment(rows, segments)
	if err := saveValueAlignment(p.outputPath(FileValueAlignment), alignment); err != nil {
		return err
	}
	if err := saveAlignmentImpact(p.outputPath(FileAlignmentImpact), impact); err != nil {
		return err
	}
	if err := saveChannelVersatility(p.outputPath(FileChannelVersatility), a.ChannelVersatility(rows)); err != nil {
		return err
	}

	log.Info("pattern tables written", "rows", len(rows))
	return nil
}

func (p *Pipeline) runPredict(ctx context.Context) error {
	log := logger.WithStage("predict")

	rows, err := dataset.LoadMetrics(p.generatedPath(p.cfg.Paths.MetricsFile))
	if err != nil {
		return fmt.Errorf("load metrics: %w", err)
	}
	segments, err := dataset.LoadSegments(p.generatedPath(p.cfg.Paths.SegmentsFile))
	if err != nil {
		return fmt.Errorf("load segments: %w", err)
	}

	features := predictive.BuildFeatures(rows, segments, p.cfg.Predict.ValueMatchThreshold)
	model, summary, err := predictive.TrainRegressor(features, p.cfg.Predict.TestFraction, p.cfg.Synthesis.Seed)
	if err != nil {
		return fmt.Errorf("train model: %w", err)
	}

	if err := savePredictions(p.outputPath(FilePredictions), model.PredictAll(features)); err != nil {
		return err
	}
	if err := saveModelSummary(p.outputPath(FileModelSummary), *summary); err != nil {
		return err
	}
	if err := saveFeatureImportance(p.outputPath(FileFeatureImportance), summary.FeatureImportance); err != nil {
		return err
	}

	clusterFeatures := predictive.BuildClusterFeatures(rows)
	assignments, profiles, err := predictive.Cluster(clusterFeatures, p.cfg.Predict.Clusters)
	if err != nil {
		return fmt.Errorf("cluster segments: %w", err)
	}
	if err := saveClusterAssignments(p.outputPath(FileClusterAssignments), assignments); err != nil {
		return err
	}
	if err := saveClusterProfiles(p.outputPath(FileClusterProfiles), profiles); err != nil {
		return err
	}

	log.Info("predictions written",
		"features", len(features), "r_squared", summary.RSquared, "clusters", len(profiles))
	return nil
}

func (p *Pipeline) runDirectives(ctx context.Context) error {
	log := logger.WithStage("directives")

	segments, err := dataset.LoadSegments(p.generatedPath(p.cfg.Paths.SegmentsFile))
	if err != nil {
		return fmt.Errorf("load segments: %w", err)
	}

	gen, err := directive.NewGenerator(p.cfg.Directive.Profile)
	if err != nil {
		return err
	}

	directives := make([]directive.Directive, 0, len(segments))
	for _, s := range segments {
		d, err := gen.Generate(s, false)
		if err != nil {
			return fmt.Errorf("segment %d: %w", s.SegmentID, err)
		}
		directives = append(directives, d)
		if p.store != nil {
			if err := p.store.InsertDirective(ctx, s.SegmentID, d); err != nil {
				return fmt.Errorf("persist directive %d: %w", s.SegmentID, err)
			}
		}
	}

	if err := saveDirectives(p.outputPath(FileDirectives), directives); err != nil {
		return err
	}

	log.Info("directives generated", "count", len(directives))
	return nil
}
