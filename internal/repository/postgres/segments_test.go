package postgres

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightloop/campaign-insights/internal/dataset"
	"github.com/brightloop/campaign-insights/internal/directive"
)

func newMockRepo(t *testing.T) (*SegmentRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSegmentRepo(db), mock
}

func TestUpsertSegments(t *testing.T) {
	repo, mock := newMockRepo(t)
	runID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO segments").
		WithArgs(1, runID, "en", 30, "F", 1,
			0.3, 0.5, 0.4, 0.5, 0.5, 0.5,
			0.25, 0.25, 0.25, 0.25, 0.24, 0.27).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO segments").
		WithArgs(2, runID, "fi", 28, "M", 2,
			0.3, 0.5, 0.4, 0.5, 0.5, 0.5,
			0.25, 0.25, 0.25, 0.25, 0.24, 0.27).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	segments := []dataset.Segment{
		{SegmentID: 1, Language: "en", ParentAge: 30, ParentGender: "F", BabyCount: 1,
			EngagementPropensity: 0.3, PriceSensitivity: 0.5, BrandLoyalty: 0.4,
			ChannelPerfEmail: 0.5, ChannelPerfPush: 0.5, ChannelPerfInapp: 0.5,
			ValuesFamily: 0.25, ValuesEcoConscious: 0.25, ValuesConvenience: 0.25, ValuesQuality: 0.25,
			ContactFrequencyTolerance: 0.24, ContentEngagementRate: 0.27},
		{SegmentID: 2, Language: "fi", ParentAge: 28, ParentGender: "M", BabyCount: 2,
			EngagementPropensity: 0.3, PriceSensitivity: 0.5, BrandLoyalty: 0.4,
			ChannelPerfEmail: 0.5, ChannelPerfPush: 0.5, ChannelPerfInapp: 0.5,
			ValuesFamily: 0.25, ValuesEcoConscious: 0.25, ValuesConvenience: 0.25, ValuesQuality: 0.25,
			ContactFrequencyTolerance: 0.24, ContentEngagementRate: 0.27},
	}

	require.NoError(t, repo.UpsertSegments(context.Background(), runID, segments))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSegmentsRollsBackOnError(t *testing.T) {
	repo, mock := newMockRepo(t)
	runID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO segments").WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := repo.UpsertSegments(context.Background(), runID, []dataset.Segment{{SegmentID: 1}})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func segmentColumns() []string {
	return []string{
		"segment_id", "language", "parent_age", "parent_gender", "baby_count",
		"engagement_propensity", "price_sensitivity", "brand_loyalty",
		"channel_perf_email", "channel_perf_push", "channel_perf_inapp",
		"values_family", "values_eco_conscious", "values_convenience", "values_quality",
		"contact_frequency_tolerance", "content_engagement_rate",
	}
}

func TestGetSegment(t *testing.T) {
	repo, mock := newMockRepo(t)

	rows := sqlmock.NewRows(segmentColumns()).
		AddRow(7, "en", 30, "F", 1, 0.3, 0.5, 0.4, 0.5, 0.5, 0.5,
			0.25, 0.25, 0.25, 0.25, 0.24, 0.27)
	mock.ExpectQuery("SELECT (.+) FROM segments").WithArgs(7).WillReturnRows(rows)

	s, err := repo.GetSegment(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 7, s.SegmentID)
	assert.Equal(t, "en", s.Language)
	assert.InDelta(t, 0.3, s.EngagementPropensity, 1e-9)
}

func TestGetSegmentNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("SELECT (.+) FROM segments").WithArgs(99).
		WillReturnRows(sqlmock.NewRows(segmentColumns()))

	_, err := repo.GetSegment(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListSegments(t *testing.T) {
	repo, mock := newMockRepo(t)

	rows := sqlmock.NewRows(segmentColumns()).
		AddRow(1, "en", 30, "F", 1, 0.3, 0.5, 0.4, 0.5, 0.5, 0.5,
			0.25, 0.25, 0.25, 0.25, 0.24, 0.27).
		AddRow(2, "fi", 28, "M", 2, 0.3, 0.5, 0.4, 0.5, 0.5, 0.5,
			0.25, 0.25, 0.25, 0.25, 0.24, 0.27)
	mock.ExpectQuery("SELECT (.+) FROM segments").WillReturnRows(rows)

	out, err := repo.ListSegments(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 2, out[1].SegmentID)
}

func TestDirectiveRoundTrip(t *testing.T) {
	repo, mock := newMockRepo(t)

	d := directive.Directive{SegmentID: 7}
	d.DeliverySettings.Channel = "email"
	d.DeliverySettings.SendTimingDays = 7
	doc, err := json.Marshal(d)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO directives").
		WithArgs(sqlmock.AnyArg(), 7, doc).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.InsertDirective(context.Background(), 7, d))

	mock.ExpectQuery("SELECT document").WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"document"}).AddRow(doc))
	got, err := repo.LatestDirective(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "email", got.DeliverySettings.Channel)
	assert.Equal(t, 7, got.DeliverySettings.SendTimingDays)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveBenchmarksReplacesTable(t *testing.T) {
	repo, mock := newMockRepo(t)
	runID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM benchmarks").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("INSERT INTO benchmarks").
		WithArgs(runID, "en", "discount", 0.02, 0.1, 0.005, 12).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	benchmarks := []dataset.Benchmark{{
		Language: "en", CampaignType: "discount",
		BaselineConversion: 0.02, BaselineEngagement: 0.1,
		ConversionStd: 0.005, Observations: 12,
	}}
	require.NoError(t, repo.SaveBenchmarks(context.Background(), runID, benchmarks))
	assert.NoError(t, mock.ExpectationsWereMet())
}
