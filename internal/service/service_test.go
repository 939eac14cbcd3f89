package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fitdigest/internal/stats"
	"fitdigest/internal/store"
)

func testService(t *testing.T) *Service {
	t.Helper()
	st, err := store.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return New(st, Options{GroupName: "Test Crew"})
}

func payload(externalID string, start time.Time, distanceM, elevationM float64) []byte {
	return []byte(fmt.Sprintf(`{
		"activityId": %q,
		"activityType": {"typeKey": "running"},
		"startTimeGMT": %q,
		"duration": 1800,
		"distance": %f,
		"elevationGain": %f,
		"calories": 320,
		"steps": 6200
	}`, externalID, start.Format("2006-01-02 15:04:05"), distanceM, elevationM))
}

func ingestWeek(t *testing.T, s *Service, userID string, monday time.Time, distances []float64) {
	t.Helper()
	var payloads [][]byte
	for i, d := range distances {
		start := monday.Add(time.Duration(i*24+7) * time.Hour)
		payloads = append(payloads, payload(fmt.Sprintf("%s-%s-%d", userID, monday.Format("20060102"), i), start, d, 0))
	}
	result, err := s.IngestBatch(context.Background(), userID, payloads)
	require.NoError(t, err)
	require.Equal(t, len(distances), result.Stored)
}

func TestIngestBatchStoresAndCreatesUser(t *testing.T) {
	s := testService(t)
	monday := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	result, err := s.IngestBatch(context.Background(), "alice", [][]byte{
		payload("a-1", monday.Add(7*time.Hour), 5000, 20),
		payload("a-2", monday.Add(31*time.Hour), 8000, 30),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Received)
	assert.Equal(t, 2, result.Stored)
	assert.Zero(t, result.Malformed)

	u, err := s.store.GetUser("alice")
	require.NoError(t, err)
	require.NotNil(t, u.LastSyncedAt)
}

func TestIngestBatchIsIdempotent(t *testing.T) {
	s := testService(t)
	monday := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	batch := [][]byte{payload("a-1", monday.Add(time.Hour), 5000, 0)}

	_, err := s.IngestBatch(context.Background(), "alice", batch)
	require.NoError(t, err)
	_, err = s.IngestBatch(context.Background(), "alice", batch)
	require.NoError(t, err)

	count, err := s.store.CountActivities("alice")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestIngestBatchSkipsUnparseablePayloads(t *testing.T) {
	s := testService(t)
	monday := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	result, err := s.IngestBatch(context.Background(), "alice", [][]byte{
		payload("a-1", monday.Add(time.Hour), 5000, 0),
		[]byte(`{not json`),
		[]byte(`{"duration": 600}`), // no external id
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Stored)
	assert.Equal(t, 2, result.Malformed)
	assert.Len(t, result.Errors, 2)
}

func TestIngestBatchConcurrentSameUser(t *testing.T) {
	s := testService(t)

	release, err := s.acquireUser("alice")
	require.NoError(t, err)

	_, err = s.IngestBatch(context.Background(), "alice", nil)
	assert.ErrorIs(t, err, ErrSyncInProgress)

	// Another user is unaffected.
	_, err = s.IngestBatch(context.Background(), "bob", nil)
	assert.NoError(t, err)

	release()
	_, err = s.IngestBatch(context.Background(), "alice", nil)
	assert.NoError(t, err)
}

func TestPeriodStatsComputesTotals(t *testing.T) {
	s := testService(t)
	ctx := context.Background()
	monday := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	_, err := s.IngestBatch(ctx, "alice", [][]byte{
		payload("a-1", monday.Add(7*time.Hour), 5000, 20),
		payload("a-2", monday.Add(31*time.Hour), 8000, 30),
		payload("a-3", monday.Add(55*time.Hour), 10000, 50),
	})
	require.NoError(t, err)

	perUser, err := s.PeriodStats(ctx, []string{"alice"}, stats.Week, monday.Add(48*time.Hour))
	require.NoError(t, err)

	agg := perUser["alice"]
	assert.Equal(t, 3, agg.Totals.Activities)
	assert.InDelta(t, 23000, agg.Totals.DistanceM, 1e-6)
	assert.InDelta(t, 24.0, agg.Totals.EquivalentKm, 1e-6)
}

func TestPeriodStatsUnknownUserYieldsZeroStats(t *testing.T) {
	s := testService(t)

	perUser, err := s.PeriodStats(context.Background(), []string{"ghost"}, stats.Week, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, stats.Totals{}, perUser["ghost"].Totals)
}

func TestPeriodStatsCacheClearedOnIngest(t *testing.T) {
	s := testService(t)
	ctx := context.Background()
	monday := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	ingestWeek(t, s, "alice", monday, []float64{5000})

	perUser, err := s.PeriodStats(ctx, []string{"alice"}, stats.Week, monday)
	require.NoError(t, err)
	require.Equal(t, 1, perUser["alice"].Totals.Activities)

	// A second ingest must be visible immediately, not after TTL expiry.
	_, err = s.IngestBatch(ctx, "alice", [][]byte{payload("extra", monday.Add(40*time.Hour), 3000, 0)})
	require.NoError(t, err)

	perUser, err = s.PeriodStats(ctx, []string{"alice"}, stats.Week, monday)
	require.NoError(t, err)
	assert.Equal(t, 2, perUser["alice"].Totals.Activities)
}

func TestFilteredPeriodStats(t *testing.T) {
	s := testService(t)
	ctx := context.Background()
	monday := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	ride := []byte(fmt.Sprintf(`{
		"activityId": "ride-1",
		"activityType": {"typeKey": "cycling"},
		"startTimeGMT": %q,
		"distance": 30000
	}`, monday.Add(9*time.Hour).Format("2006-01-02 15:04:05")))

	_, err := s.IngestBatch(ctx, "alice", [][]byte{
		payload("run-1", monday.Add(7*time.Hour), 5000, 0),
		ride,
	})
	require.NoError(t, err)

	filter := stats.NewTypeFilter([]string{"running", "treadmill_running"})
	perUser, err := s.FilteredPeriodStats(ctx, []string{"alice"}, stats.Week, monday, filter)
	require.NoError(t, err)
	assert.Equal(t, 1, perUser["alice"].Totals.Activities)
	assert.InDelta(t, 5000, perUser["alice"].Totals.DistanceM, 1e-6)
}

func TestCompareAgainstPreviousWeek(t *testing.T) {
	s := testService(t)
	ctx := context.Background()
	monday := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	ingestWeek(t, s, "alice", monday.AddDate(0, 0, -7), []float64{5000, 5000})
	ingestWeek(t, s, "alice", monday, []float64{5000, 5000, 5000, 5000})

	r, err := s.Compare(ctx, "alice", stats.Week, monday, ComparePrevious)
	require.NoError(t, err)
	require.True(t, r.HasBaseline)
	assert.InDelta(t, 2, r.Activities.Abs, 1e-9)
	require.NotNil(t, r.Activities.Pct)
	assert.InDelta(t, 100, *r.Activities.Pct, 1e-9)
}

func TestCompareNoBaseline(t *testing.T) {
	s := testService(t)
	monday := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	ingestWeek(t, s, "alice", monday, []float64{5000})

	r, err := s.Compare(context.Background(), "alice", stats.Week, monday, ComparePrevious)
	require.NoError(t, err)
	assert.False(t, r.HasBaseline)
}

func TestCompareRollingSkipsEmptyWeeks(t *testing.T) {
	s := testService(t)
	ctx := context.Background()
	monday := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	// Weeks -4 and -2 have data, -3 and -1 are empty.
	ingestWeek(t, s, "alice", monday.AddDate(0, 0, -28), []float64{5000, 5000})
	ingestWeek(t, s, "alice", monday.AddDate(0, 0, -14), []float64{5000, 5000, 5000, 5000})
	ingestWeek(t, s, "alice", monday, []float64{5000, 5000, 5000})

	r, err := s.Compare(ctx, "alice", stats.Week, monday, CompareRolling)
	require.NoError(t, err)
	require.True(t, r.HasBaseline)
	// Baseline averages the two non-empty weeks: (2+4)/2 = 3.
	assert.InDelta(t, 3, r.Baseline.Activities, 1e-9)
	assert.InDelta(t, 0, r.Activities.Abs, 1e-9)
}

func TestCompareYearToDate(t *testing.T) {
	s := testService(t)
	ctx := context.Background()

	// Weeks starting Dec 30, Jan 6, Jan 13 hold 2, 4 and 3 activities; the
	// target week of Jan 20 holds 3 and compares against an average of 3.
	// The Dec 30 week's activities land on Jan 1 and 2 so they count toward
	// the year.
	_, err := s.IngestBatch(ctx, "alice", [][]byte{
		payload("ytd-1", time.Date(2025, 1, 1, 7, 0, 0, 0, time.UTC), 5000, 0),
		payload("ytd-2", time.Date(2025, 1, 2, 7, 0, 0, 0, time.UTC), 5000, 0),
	})
	require.NoError(t, err)
	ingestWeek(t, s, "alice", time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC), []float64{5000, 5000, 5000, 5000})
	ingestWeek(t, s, "alice", time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC), []float64{5000, 5000, 5000})
	ingestWeek(t, s, "alice", time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC), []float64{5000, 5000, 5000})

	r, err := s.Compare(ctx, "alice", stats.Week, time.Date(2025, 1, 22, 0, 0, 0, 0, time.UTC), CompareYearToDate)
	require.NoError(t, err)
	require.True(t, r.HasBaseline)
	assert.InDelta(t, 3.0, r.Baseline.Activities, 1e-9)
	require.NotNil(t, r.Activities.Pct)
	assert.InDelta(t, 0, *r.Activities.Pct, 1e-9)
}

func TestLeaderboardIncludesZeroUsers(t *testing.T) {
	s := testService(t)
	ctx := context.Background()
	monday := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	ingestWeek(t, s, "alice", monday, []float64{5000, 5000, 5000})
	ingestWeek(t, s, "bob", monday, []float64{8000})

	entries, err := s.Leaderboard(ctx, []string{"alice", "bob", "carol"}, stats.Week, monday, stats.ByActivities)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "alice", entries[0].UserID)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, "bob", entries[1].UserID)
	assert.Equal(t, "carol", entries[2].UserID)
	assert.Zero(t, entries[2].Totals.Activities)
}

func TestRenderDigest(t *testing.T) {
	s := testService(t)
	ctx := context.Background()
	monday := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	ingestWeek(t, s, "alice", monday.AddDate(0, 0, -7), []float64{5000})
	ingestWeek(t, s, "alice", monday, []float64{5000, 8000, 10000})
	ingestWeek(t, s, "bob", monday, []float64{6000})

	d, err := s.RenderDigest(ctx, []string{"alice", "bob"}, monday.Add(48*time.Hour))
	require.NoError(t, err)

	assert.NotEmpty(t, d.ID)
	assert.Contains(t, d.Text, "Test Crew Weekly Digest")
	assert.Contains(t, d.Text, "Week 11, 2025")
	assert.Contains(t, d.Text, "Most active: alice (3 activities)")
	assert.Contains(t, d.Text, "bob: 1 activities")
}

func TestReextractAll(t *testing.T) {
	s := testService(t)
	ctx := context.Background()
	monday := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	_, err := s.IngestBatch(ctx, "alice", [][]byte{payload("a-1", monday.Add(time.Hour), 5000, 0)})
	require.NoError(t, err)

	// Corrupt the normalized column; the raw blob stays authoritative.
	activities, err := s.store.ListAllActivities()
	require.NoError(t, err)
	require.Len(t, activities, 1)
	broken := activities[0]
	broken.DistanceM = 0
	require.NoError(t, s.store.UpsertActivity(&broken))

	result, err := s.ReextractAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Stored)

	perUser, err := s.PeriodStats(ctx, []string{"alice"}, stats.Week, monday)
	require.NoError(t, err)
	assert.InDelta(t, 5000, perUser["alice"].Totals.DistanceM, 1e-6)
}
