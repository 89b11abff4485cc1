// Package postgres persists pipeline outputs so the API can serve them
// without re-running a batch.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // Postgres driver

	"github.com/brightloop/campaign-insights/internal/dataset"
	"github.com/brightloop/campaign-insights/internal/directive"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Open connects to Postgres with the given URL.
func Open(url string) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return db, nil
}

// SegmentRepo stores segments and their generated directives.
type SegmentRepo struct{ db *sql.DB }

// NewSegmentRepo creates a Postgres-backed segment repository.
func NewSegmentRepo(db *sql.DB) *SegmentRepo { return &SegmentRepo{db: db} }

// UpsertSegments replaces the stored attribute snapshot for each segment.
// The learner overwrites attributes wholesale, so the upsert does too.
func (r *SegmentRepo) UpsertSegments(ctx context.Context, runID uuid.UUID, segments []dataset.Segment) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	const q = `
		INSERT INTO segments (
			segment_id, run_id, language, parent_age, parent_gender, baby_count,
			engagement_propensity, price_sensitivity, brand_loyalty,
			channel_perf_email, channel_perf_push, channel_perf_inapp,
			values_family, values_eco_conscious, values_convenience, values_quality,
			contact_frequency_tolerance, content_engagement_rate, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,NOW())
		ON CONFLICT (segment_id) DO UPDATE SET
			run_id = EXCLUDED.run_id,
			language = EXCLUDED.language,
			parent_age = EXCLUDED.parent_age,
			parent_gender = EXCLUDED.parent_gender,
			baby_count = EXCLUDED.baby_count,
			engagement_propensity = EXCLUDED.engagement_propensity,
			price_sensitivity = EXCLUDED.price_sensitivity,
			brand_loyalty = EXCLUDED.brand_loyalty,
			channel_perf_email = EXCLUDED.channel_perf_email,
			channel_perf_push = EXCLUDED.channel_perf_push,
			channel_perf_inapp = EXCLUDED.channel_perf_inapp,
			values_family = EXCLUDED.values_family,
			values_eco_conscious = EXCLUDED.values_eco_conscious,
			values_convenience = EXCLUDED.values_convenience,
			values_quality = EXCLUDED.values_quality,
			contact_frequency_tolerance = EXCLUDED.contact_frequency_tolerance,
			content_engagement_rate = EXCLUDED.content_engagement_rate,
			updated_at = NOW()`

	for _, s := range segments {
		if _, err := tx.ExecContext(ctx, q,
			s.SegmentID, runID, s.Language, s.ParentAge, s.ParentGender, s.BabyCount,
			s.EngagementPropensity, s.PriceSensitivity, s.BrandLoyalty,
			s.ChannelPerfEmail, s.ChannelPerfPush, s.ChannelPerfInapp,
			s.ValuesFamily, s.ValuesEcoConscious, s.ValuesConvenience, s.ValuesQuality,
			s.ContactFrequencyTolerance, s.ContentEngagementRate,
		); err != nil {
			return fmt.Errorf("upsert segment %d: %w", s.SegmentID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}

// GetSegment returns one stored segment.
func (r *SegmentRepo) GetSegment(ctx context.Context, segmentID int) (*dataset.Segment, error) {
	s := &dataset.Segment{}
	err := r.db.QueryRowContext(ctx, `
		SELECT segment_id, language, parent_age, parent_gender, baby_count,
		       engagement_propensity, price_sensitivity, brand_loyalty,
		       channel_perf_email, channel_perf_push, channel_perf_inapp,
		       values_family, values_eco_conscious, values_convenience, values_quality,
		       contact_frequency_tolerance, content_engagement_rate
		FROM segments
		WHERE segment_id = $1
	`, segmentID).Scan(
		&s.SegmentID, &s.Language, &s.ParentAge, &s.ParentGender, &s.BabyCount,
		&s.EngagementPropensity, &s.PriceSensitivity, &s.BrandLoyalty,
		&s.ChannelPerfEmail, &s.ChannelPerfPush, &s.ChannelPerfInapp,
		&s.ValuesFamily, &s.ValuesEcoConscious, &s.ValuesConvenience, &s.ValuesQuality,
		&s.ContactFrequencyTolerance, &s.ContentEngagementRate,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get segment: %w", err)
	}
	return s, nil
}

// ListSegments returns all stored segments ordered by id.
func (r *SegmentRepo) ListSegments(ctx context.Context) ([]dataset.Segment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT segment_id, language, parent_age, parent_gender, baby_count,
		       engagement_propensity, price_sensitivity, brand_loyalty,
		       channel_perf_email, channel_perf_push, channel_perf_inapp,
		       values_family, values_eco_conscious, values_convenience, values_quality,
		       contact_frequency_tolerance, content_engagement_rate
		FROM segments
		ORDER BY segment_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	defer rows.Close()

	var out []dataset.Segment
	for rows.Next() {
		var s dataset.Segment
		if err := rows.Scan(
			&s.SegmentID, &s.Language, &s.ParentAge, &s.ParentGender, &s.BabyCount,
			&s.EngagementPropensity, &s.PriceSensitivity, &s.BrandLoyalty,
			&s.ChannelPerfEmail, &s.ChannelPerfPush, &s.ChannelPerfInapp,
			&s.ValuesFamily, &s.ValuesEcoConscious, &s.ValuesConvenience, &s.ValuesQuality,
			&s.ContactFrequencyTolerance, &s.ContentEngagementRate,
		); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	return out, nil
}

// InsertDirective stores one generated directive as its JSON document.
func (r *SegmentRepo) InsertDirective(ctx context.Context, segmentID int, d directive.Directive) error {
	doc, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal directive: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO directives (id, segment_id, document, created_at)
		VALUES ($1, $2, $3, NOW())
	`, uuid.New(), segmentID, doc); err != nil {
		return fmt.Errorf("insert directive: %w", err)
	}
	return nil
}

// LatestDirective returns the most recent directive for a segment.
func (r *SegmentRepo) LatestDirective(ctx context.Context, segmentID int) (*directive.Directive, error) {
	var doc []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT document
		FROM directives
		WHERE segment_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, segmentID).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest directive: %w", err)
	}

	var d directive.Directive
	if err := json.Unmarshal(doc, &d); err != nil {
		return nil, fmt.Errorf("parse directive document: %w", err)
	}
	return &d, nil
}

// SaveBenchmarks replaces the benchmark table for a run.
func (r *SegmentRepo) SaveBenchmarks(ctx context.Context, runID uuid.UUID, benchmarks []dataset.Benchmark) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save benchmarks: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM benchmarks`); err != nil {
		return fmt.Errorf("clear benchmarks: %w", err)
	}
	for _, b := range benchmarks {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO benchmarks (
				run_id, language, campaign_type,
				baseline_conversion, baseline_engagement, conversion_std, observations
			) VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, runID, b.Language, b.CampaignType,
			b.BaselineConversion, b.BaselineEngagement, b.ConversionStd, b.Observations,
		); err != nil {
			return fmt.Errorf("insert benchmark %s/%s: %w", b.Language, b.CampaignType, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit benchmarks: %w", err)
	}
	return nil
}

// ListBenchmarks returns the stored benchmark table.
func (r *SegmentRepo) ListBenchmarks(ctx context.Context) ([]dataset.Benchmark, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT language, campaign_type, baseline_conversion, baseline_engagement,
		       conversion_std, observations
		FROM benchmarks
		ORDER BY language, campaign_type
	`)
	if err != nil {
		return nil, fmt.Errorf("list benchmarks: %w", err)
	}
	defer rows.Close()

	var out []dataset.Benchmark
	for rows.Next() {
		var b dataset.Benchmark
		if err := rows.Scan(
			&b.Language, &b.CampaignType, &b.BaselineConversion, &b.BaselineEngagement,
			&b.ConversionStd, &b.Observations,
		); err != nil {
			return nil, fmt.Errorf("scan benchmark: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list benchmarks: %w", err)
	}
	return out, nil
}
