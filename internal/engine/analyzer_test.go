package engine

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dm/memwatch/internal/export"
	"github.com/dm/memwatch/internal/model"
	"github.com/dm/memwatch/internal/telemetry"
)

func newTestAnalyzer(t *testing.T, src telemetry.Source, capacity int, clock *fakeClock) *Analyzer {
	t.Helper()
	cfg := testConfig()
	cfg.SnapshotCapacity = capacity
	return NewAnalyzer(src, cfg, zaptest.NewLogger(t), WithClock(clock.Now))
}

// takeSeries takes one snapshot per value, advancing the clock by step
// before each one after the first.
func takeSeries(t *testing.T, a *Analyzer, clock *fakeClock, step time.Duration, n int) []model.Snapshot {
	t.Helper()
	out := make([]model.Snapshot, 0, n)
	for i := 0; i < n; i++ {
		if i > 0 {
			clock.Advance(step)
		}
		s, err := a.TakeHeapSnapshot(context.Background(), "step", nil)
		require.NoError(t, err)
		out = append(out, s)
	}
	return out
}

func TestAnalyzer_TakeHeapSnapshot(t *testing.T) {
	clock := newFakeClock()
	src := &MockSource{StatsFn: func(context.Context) (telemetry.Stats, error) {
		return telemetry.Stats{
			HeapUsed:  60 * mb,
			HeapTotal: 80 * mb,
			External:  5 * mb,
			RSS:       90 * mb,
			HeapLimit: 512 * mb,
			Regions: []model.Region{
				{Name: "old", UsedSize: 95, TotalSize: 100, AvailableSize: 5},
				{Name: "new", UsedSize: 85, TotalSize: 100, AvailableSize: 15},
				{Name: "code", UsedSize: 50, TotalSize: 100, AvailableSize: 40},
				{Name: "map", UsedSize: 50, TotalSize: 100, AvailableSize: 10},
				{Name: "empty"},
			},
		}, nil
	}}
	a := newTestAnalyzer(t, src, 10, clock)

	snap, err := a.TakeHeapSnapshot(context.Background(), "baseline", map[string]string{"phase": "warmup"})
	require.NoError(t, err)

	assert.Equal(t, uint64(1), snap.ID)
	assert.Equal(t, "baseline", snap.Label)
	assert.Equal(t, clock.Now(), snap.Timestamp)
	assert.Equal(t, "warmup", snap.Options["phase"])
	assert.Equal(t, 75.0, snap.Statistics.HeapUtilization)
	assert.Equal(t, uint64(90*mb), snap.Statistics.RSS)
	assert.Zero(t, snap.DiffFromPrevious)

	require.Len(t, snap.Analysis, 5)
	assert.Equal(t, model.AdviceHighUtilization, snap.Analysis[0].Recommendation)
	assert.True(t, snap.Analysis[0].IsHighUtilization)
	assert.Equal(t, model.AdviceMediumUtilization, snap.Analysis[1].Recommendation)
	assert.Equal(t, model.AdviceHighFragmentation, snap.Analysis[2].Recommendation)
	assert.True(t, snap.Analysis[2].IsHighFragmentation)
	assert.Equal(t, model.AdviceOptimal, snap.Analysis[3].Recommendation)
	assert.Equal(t, model.AdviceOptimal, snap.Analysis[4].Recommendation)
	assert.Zero(t, snap.Analysis[4].UtilizationRate)
}

func TestAnalyzer_SourceFailure(t *testing.T) {
	src := &MockSource{StatsFn: func(context.Context) (telemetry.Stats, error) {
		return telemetry.Stats{}, errMockFailure
	}}
	a := newTestAnalyzer(t, src, 10, newFakeClock())

	_, err := a.TakeHeapSnapshot(context.Background(), "x", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.ErrorIs(t, err, errMockFailure)
	assert.Zero(t, a.Len(), "failed snapshots are not recorded")
}

func TestAnalyzer_DiffFromPrevious(t *testing.T) {
	clock := newFakeClock()
	a := newTestAnalyzer(t, seqSource(10*mb, 15*mb, 12*mb), 10, clock)
	snaps := takeSeries(t, a, clock, time.Second, 3)

	assert.Zero(t, snaps[0].DiffFromPrevious)
	assert.Equal(t, int64(5*mb), snaps[1].DiffFromPrevious)
	assert.Equal(t, int64(-3*mb), snaps[2].DiffFromPrevious)
}

func TestAnalyzer_CapacityEviction(t *testing.T) {
	clock := newFakeClock()
	a := newTestAnalyzer(t, seqSource(10*mb, 20*mb, 30*mb, 40*mb, 50*mb), 3, clock)
	takeSeries(t, a, clock, time.Second, 5)

	snaps := a.Snapshots()
	require.Len(t, snaps, 3)
	assert.Equal(t, []uint64{3, 4, 5}, []uint64{snaps[0].ID, snaps[1].ID, snaps[2].ID})
	assert.Zero(t, snaps[0].DiffFromPrevious, "oldest retained snapshot has no predecessor")
	assert.Equal(t, int64(10*mb), snaps[1].DiffFromPrevious)

	_, ok := a.Snapshot(1)
	assert.False(t, ok)
}

func TestAnalyzer_IDsNeverReused(t *testing.T) {
	clock := newFakeClock()
	a := newTestAnalyzer(t, seqSource(mb), 2, clock)
	snaps := takeSeries(t, a, clock, time.Second, 6)
	for i := 1; i < len(snaps); i++ {
		assert.Greater(t, snaps[i].ID, snaps[i-1].ID)
	}
}

func TestAnalyzer_SnapshotsIsCopy(t *testing.T) {
	clock := newFakeClock()
	a := newTestAnalyzer(t, seqSource(mb), 5, clock)
	takeSeries(t, a, clock, time.Second, 2)

	snaps := a.Snapshots()
	snaps[0].Label = "mutated"
	again := a.Snapshots()
	assert.Equal(t, "step", again[0].Label)
}

func TestAnalyzer_CompareSnapshots_Growth(t *testing.T) {
	clock := newFakeClock()
	a := newTestAnalyzer(t, seqSource(20*mb, 35*mb), 10, clock)
	takeSeries(t, a, clock, 2*time.Second, 2)

	cmp, err := a.CompareSnapshots(1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), cmp.TimeDifferenceMs)
	assert.Equal(t, int64(15*mb), cmp.MemoryChanges.HeapUsed.Change)
	assert.Equal(t, 75.0, cmp.MemoryChanges.HeapUsed.Percentage)
	require.Len(t, cmp.Recommendations, 1)
	assert.Equal(t, model.CategoryMemoryGrowth, cmp.Recommendations[0].Category)
	assert.Equal(t, model.PriorityHigh, cmp.Recommendations[0].Priority)
}

func TestAnalyzer_CompareSnapshots_SmallGrowth(t *testing.T) {
	clock := newFakeClock()
	a := newTestAnalyzer(t, seqSource(20*mb, 25*mb), 10, clock)
	takeSeries(t, a, clock, time.Second, 2)

	cmp, err := a.CompareSnapshots(1, 2)
	require.NoError(t, err)
	assert.Empty(t, cmp.Recommendations)
}

func TestAnalyzer_CompareSnapshots_NotFound(t *testing.T) {
	clock := newFakeClock()
	a := newTestAnalyzer(t, seqSource(mb), 10, clock)
	takeSeries(t, a, clock, time.Second, 1)

	_, err := a.CompareSnapshots(1, 42)
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestCompareSnapshots_SpaceChanges(t *testing.T) {
	s1 := model.Snapshot{ID: 1, HeapUsed: 10, Regions: []model.Region{
		{Name: "old", UsedSize: 40, TotalSize: 100},
		{Name: "new", UsedSize: 50, TotalSize: 100},
		{Name: "gone", UsedSize: 10, TotalSize: 100},
	}}
	s2 := model.Snapshot{ID: 2, HeapUsed: 0, Regions: []model.Region{
		{Name: "old", UsedSize: 70, TotalSize: 100},
		{Name: "new", UsedSize: 53, TotalSize: 100},
	}}

	cmp := compareSnapshots(s1, s2)
	require.Len(t, cmp.SpaceChanges, 1)
	assert.Equal(t, "old", cmp.SpaceChanges[0].Name)
	assert.InDelta(t, 30.0, cmp.SpaceChanges[0].UtilizationChange, 1e-9)
	require.Len(t, cmp.Recommendations, 1)
	assert.Equal(t, model.CategorySpaceUtilization, cmp.Recommendations[0].Category)
	assert.Equal(t, "old", cmp.Recommendations[0].Region)
	assert.Equal(t, -100.0, cmp.MemoryChanges.HeapUsed.Percentage)
}

func TestCompareSnapshots_ZeroBaseline(t *testing.T) {
	cmp := compareSnapshots(model.Snapshot{}, model.Snapshot{HeapUsed: 5 * mb})
	assert.Zero(t, cmp.MemoryChanges.HeapUsed.Percentage)
	assert.Zero(t, cmp.MemoryChanges.HeapTotal.Percentage)
}

func TestAnalyzer_AnalyzeTrends_Increasing(t *testing.T) {
	clock := newFakeClock()
	a := newTestAnalyzer(t, seqSource(50*mb, 62*mb, 75*mb), 10, clock)
	takeSeries(t, a, clock, 10*time.Second, 3)

	ta := a.AnalyzeTrends(0)
	assert.Equal(t, model.TrendIncreasing, ta.Trend)
	assert.InDelta(t, 0.5, ta.Confidence, 1e-9)
	assert.InDelta(t, 50.0, ta.ChangePercent, 1e-9)
	assert.Equal(t, 3, ta.SampleCount)
	assert.Equal(t, uint64(75*mb), ta.PeakValue)
	assert.Len(t, ta.Anomalies, 2)
	assert.Nil(t, ta.Predictions, "confidence 0.5 does not predict")
	assert.Equal(t, int64(300000), ta.WindowMs)
}

func TestAnalyzer_AnalyzeTrends_Insufficient(t *testing.T) {
	clock := newFakeClock()
	a := newTestAnalyzer(t, seqSource(50*mb, 75*mb), 10, clock)
	takeSeries(t, a, clock, time.Second, 2)

	ta := a.AnalyzeTrends(0)
	assert.Equal(t, model.TrendInsufficientData, ta.Trend)
	assert.False(t, ta.Sufficient())
	assert.NotEmpty(t, ta.Message)
}

func TestAnalyzer_AnalyzeTrends_WindowExcludesOld(t *testing.T) {
	clock := newFakeClock()
	a := newTestAnalyzer(t, seqSource(50*mb, 51*mb, 52*mb), 10, clock)
	takeSeries(t, a, clock, time.Minute, 3)

	ta := a.AnalyzeTrends(90 * time.Second)
	assert.Equal(t, model.TrendInsufficientData, ta.Trend)
	assert.Equal(t, 2, ta.SampleCount)
}

func TestAnalyzer_AnalyzeTrends_StableAndDecreasing(t *testing.T) {
	clock := newFakeClock()
	a := newTestAnalyzer(t, seqSource(100*mb, 101*mb, 110*mb), 10, clock)
	takeSeries(t, a, clock, time.Second, 3)
	ta := a.AnalyzeTrends(0)
	assert.Equal(t, model.TrendStable, ta.Trend)
	assert.InDelta(t, 0.9, ta.Confidence, 1e-9)

	clock2 := newFakeClock()
	b := newTestAnalyzer(t, seqSource(100*mb, 80*mb, 50*mb), 10, clock2)
	takeSeries(t, b, clock2, time.Second, 3)
	tb := b.AnalyzeTrends(0)
	assert.Equal(t, model.TrendDecreasing, tb.Trend)
	assert.InDelta(t, 0.5, tb.Confidence, 1e-9)
}

func TestAnalyzer_AnalyzeTrends_Predictions(t *testing.T) {
	clock := newFakeClock()
	a := newTestAnalyzer(t, seqSource(10*mb, 20*mb, 30*mb), 10, clock)
	takeSeries(t, a, clock, 10*time.Second, 3)

	ta := a.AnalyzeTrends(0)
	assert.Equal(t, model.TrendIncreasing, ta.Trend)
	assert.InDelta(t, 0.9, ta.Confidence, 1e-9)
	require.NotNil(t, ta.Predictions)
	// 20 MB over 20 s is 1 MB/s.
	assert.InDelta(t, float64(30*mb+600*mb), ta.Predictions.InTenMinutes, 1)
	assert.InDelta(t, float64(30*mb+3600*mb), ta.Predictions.InOneHour, 1)
	assert.True(t, ta.Predictions.RiskOfOOM)
}

func TestAnalyzer_GenerateDetailedReport_Empty(t *testing.T) {
	a := newTestAnalyzer(t, seqSource(mb), 10, newFakeClock())
	_, err := a.GenerateDetailedReport()
	assert.ErrorIs(t, err, ErrNoSnapshotsAvailable)

	_, err = a.ExportData("json", "")
	assert.ErrorIs(t, err, ErrNoSnapshotsAvailable)
}

func TestAnalyzer_GenerateDetailedReport(t *testing.T) {
	clock := newFakeClock()
	values := make([]uint64, 12)
	for i := range values {
		values[i] = uint64(10+i*10) * mb
	}
	a := newTestAnalyzer(t, seqSource(values...), 20, clock)
	takeSeries(t, a, clock, 5*time.Second, len(values))

	report, err := a.GenerateDetailedReport()
	require.NoError(t, err)

	assert.NotEmpty(t, report.ID)
	assert.Equal(t, "mock", report.Source)
	assert.Equal(t, 12, report.Summary.TotalSnapshots)
	assert.Equal(t, uint64(120*mb), report.Summary.CurrentHeapUsed)
	assert.Equal(t, 50.0, report.Summary.HeapUtilization)
	assert.Len(t, report.RecentActivity, 10)
	assert.Equal(t, uint64(3), report.RecentActivity[0].ID)
	assert.Len(t, report.Comparisons, 9)
	assert.Equal(t, model.TrendIncreasing, report.Summary.Trend.Trend)

	var categories []model.RecommendationCategory
	for _, r := range report.Recommendations {
		categories = append(categories, r.Category)
	}
	assert.Contains(t, categories, model.CategoryMemoryGrowth)
	assert.Contains(t, categories, model.CategoryMemoryAnomalies)
	assert.Contains(t, report.NextActions, "Capture heap profiles for in-depth analysis")
	assert.Equal(t, "Configure alerts for critical thresholds", report.NextActions[len(report.NextActions)-1])
}

func TestAnalyzer_ReportJSONRoundTrip(t *testing.T) {
	clock := newFakeClock()
	a := newTestAnalyzer(t, seqSource(40*mb, 60*mb, 90*mb), 10, clock)
	takeSeries(t, a, clock, 10*time.Second, 3)

	report, err := a.GenerateDetailedReport()
	require.NoError(t, err)

	ex, err := a.ExportData("json", "")
	require.NoError(t, err)
	assert.Equal(t, export.FormatJSON, ex.Format)
	assert.True(t, strings.HasPrefix(ex.Filename, "heap-analysis-"))

	var decoded model.Report
	require.NoError(t, json.Unmarshal(ex.Content, &decoded))
	assert.Equal(t, report.Summary.CurrentHeapUsed, decoded.Summary.CurrentHeapUsed)
	assert.Equal(t, len(report.Recommendations), len(decoded.Recommendations))
}

func TestAnalyzer_ExportData_CSV(t *testing.T) {
	clock := newFakeClock()
	a := newTestAnalyzer(t, seqSource(10*mb, 20*mb), 10, clock)
	takeSeries(t, a, clock, time.Second, 2)

	ex, err := a.ExportData("CSV", "run")
	require.NoError(t, err)
	assert.Equal(t, "run.csv", ex.Filename)

	lines := strings.Split(strings.TrimSpace(string(ex.Content)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Timestamp,Heap Used (MB),Heap Total (MB),Utilization %,Trend,Confidence", lines[0])
	assert.True(t, strings.HasSuffix(lines[1], ",10.00,20.00,50.00,step,N/A"))
}

func TestAnalyzer_ExportData_UnknownFormatIsJSON(t *testing.T) {
	clock := newFakeClock()
	a := newTestAnalyzer(t, seqSource(10*mb), 10, clock)
	takeSeries(t, a, clock, time.Second, 1)

	ex, err := a.ExportData("yaml", "out")
	require.NoError(t, err)
	assert.Equal(t, export.FormatJSON, ex.Format)
	assert.Equal(t, "out.json", ex.Filename)
	assert.True(t, json.Valid(ex.Content))
}
