package engine

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dm/memwatch/internal/config"
	"github.com/dm/memwatch/internal/model"
	"github.com/dm/memwatch/internal/telemetry"
)

// defaultSnapshotCapacity applies when the configured capacity is not positive.
const defaultSnapshotCapacity = 100

// Analyzer owns the bounded snapshot buffer and derives comparisons, trends
// and reports from it. All methods are safe for concurrent use.
type Analyzer struct {
	source      telemetry.Source
	logger      *zap.Logger
	now         func() time.Time
	trendWindow time.Duration

	mu        sync.Mutex
	snapshots *model.Ring[model.Snapshot]
	nextID    uint64
}

// AnalyzerOption customises an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithClock replaces time.Now as the Analyzer's time source.
func WithClock(now func() time.Time) AnalyzerOption {
	return func(a *Analyzer) { a.now = now }
}

// NewAnalyzer creates an Analyzer reading from src. A nil logger disables logging.
func NewAnalyzer(src telemetry.Source, cfg config.Config, logger *zap.Logger, opts ...AnalyzerOption) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Analyzer{
		source:      src,
		logger:      logger.Named("analyzer"),
		now:         time.Now,
		trendWindow: cfg.TrendWindow(),
		snapshots:   model.NewRing[model.Snapshot](cfg.SnapshotCapacity, defaultSnapshotCapacity),
	}
	if a.trendWindow <= 0 {
		a.trendWindow = config.Default().TrendWindow()
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SourceName returns the name of the underlying telemetry source.
func (a *Analyzer) SourceName() string {
	return a.source.Name()
}

// TakeHeapSnapshot reads the source and records a labeled snapshot. The
// source is read without holding the buffer lock; the id is assigned and
// the snapshot appended atomically afterwards.
func (a *Analyzer) TakeHeapSnapshot(ctx context.Context, label string, options map[string]string) (model.Snapshot, error) {
	st, err := a.source.CurrentMemoryStats(ctx)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, a.source.Name(), err)
	}

	regions := make([]model.Region, len(st.Regions))
	copy(regions, st.Regions)

	snap := model.Snapshot{
		Label:     label,
		Timestamp: a.now(),
		HeapUsed:  st.HeapUsed,
		HeapTotal: st.HeapTotal,
		Regions:   regions,
		Statistics: model.SnapshotStatistics{
			External:     st.External,
			RSS:          st.RSS,
			ArrayBuffers: st.ArrayBuffers,
			HeapLimit:    st.HeapLimit,
		},
		Analysis: analyzeRegions(regions),
		Options:  maps.Clone(options),
	}
	snap.Statistics.HeapUtilization = snap.HeapUtilization()

	a.mu.Lock()
	a.nextID++
	snap.ID = a.nextID
	if prev, ok := a.snapshots.Last(); ok {
		snap.DiffFromPrevious = int64(snap.HeapUsed) - int64(prev.HeapUsed)
	}
	if _, evicted := a.snapshots.Push(snap); evicted {
		// The new oldest snapshot lost its predecessor.
		a.snapshots.Update(0, func(s *model.Snapshot) { s.DiffFromPrevious = 0 })
	}
	a.mu.Unlock()

	a.logger.Debug("snapshot taken",
		zap.Uint64("id", snap.ID),
		zap.String("label", label),
		zap.Uint64("heap_used", snap.HeapUsed),
	)
	return snap, nil
}

// Snapshots returns a copy of the retained snapshots, oldest first.
func (a *Analyzer) Snapshots() []model.Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshots.Items()
}

// Len returns the number of retained snapshots.
func (a *Analyzer) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshots.Len()
}

// Capacity returns the maximum number of retained snapshots.
func (a *Analyzer) Capacity() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshots.Cap()
}

// Latest returns the newest retained snapshot.
func (a *Analyzer) Latest() (model.Snapshot, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshots.Last()
}

// Snapshot returns the retained snapshot with the given id.
func (a *Analyzer) Snapshot(id uint64) (model.Snapshot, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := 0; i < a.snapshots.Len(); i++ {
		s, _ := a.snapshots.At(i)
		if s.ID == id {
			return s, true
		}
	}
	return model.Snapshot{}, false
}

// CompareSnapshots compares two retained snapshots, a as the baseline.
func (a *Analyzer) CompareSnapshots(idA, idB uint64) (model.Comparison, error) {
	s1, ok := a.Snapshot(idA)
	if !ok {
		return model.Comparison{}, fmt.Errorf("compare %d..%d: %w: %d", idA, idB, ErrSnapshotNotFound, idA)
	}
	s2, ok := a.Snapshot(idB)
	if !ok {
		return model.Comparison{}, fmt.Errorf("compare %d..%d: %w: %d", idA, idB, ErrSnapshotNotFound, idB)
	}
	return compareSnapshots(s1, s2), nil
}

// AnalyzeTrends classifies heap usage over the snapshots taken within the
// trailing window. A non-positive window selects the configured default.
func (a *Analyzer) AnalyzeTrends(window time.Duration) model.TrendAnalysis {
	if window <= 0 {
		window = a.trendWindow
	}
	return analyzeTrends(a.Snapshots(), window, a.now())
}

// analyzeRegions derives utilisation and fragmentation for each region.
func analyzeRegions(regions []model.Region) []model.RegionAnalysis {
	out := make([]model.RegionAnalysis, 0, len(regions))
	for _, r := range regions {
		util := safeDivide(float64(r.UsedSize), float64(r.TotalSize)) * 100
		frag := safeDivide(float64(r.AvailableSize), float64(r.TotalSize)) * 100

		var advice model.RegionAdvice
		switch {
		case util > 90:
			advice = model.AdviceHighUtilization
		case util > 80:
			advice = model.AdviceMediumUtilization
		case frag > 30:
			advice = model.AdviceHighFragmentation
		default:
			advice = model.AdviceOptimal
		}

		out = append(out, model.RegionAnalysis{
			Name:                r.Name,
			UtilizationRate:     util,
			FragmentationRate:   frag,
			IsHighUtilization:   util > 80,
			IsHighFragmentation: frag > 30,
			Recommendation:      advice,
		})
	}
	return out
}

// safeDivide returns a/b, or 0 when b is zero.
func safeDivide(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

// clamp01 limits v to [0, 1].
func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
