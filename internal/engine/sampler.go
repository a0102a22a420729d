package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dm/memwatch/internal/config"
	"github.com/dm/memwatch/internal/model"
	"github.com/dm/memwatch/internal/telemetry"
)

const (
	defaultHistoryCapacity = 1000
	// AutoSnapshotLabel labels snapshots taken by the sampling loop.
	AutoSnapshotLabel = "auto"
	// minSnapshotsForLeaks is the snapshot count below which leak detection
	// is refused.
	minSnapshotsForLeaks = 3
)

// Sampler periodically reads a telemetry source, keeps a bounded sample
// history, raises threshold alerts and triggers automatic snapshots on its
// Analyzer. Subscribers receive events synchronously on the loop goroutine.
type Sampler struct {
	source   telemetry.Source
	analyzer *Analyzer
	cfg      config.Config
	logger   *zap.Logger
	now      func() time.Time
	events   bus

	mu        sync.Mutex
	history   *model.Ring[model.MemorySample]
	sinceSnap int
	lastAuto  time.Time

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// SamplerOption customises a Sampler.
type SamplerOption func(*Sampler)

// WithSamplerClock replaces time.Now as the Sampler's time source.
func WithSamplerClock(now func() time.Time) SamplerOption {
	return func(s *Sampler) { s.now = now }
}

// NewSampler creates a Sampler that reads src and records snapshots on
// analyzer. A nil logger disables logging.
func NewSampler(src telemetry.Source, analyzer *Analyzer, cfg config.Config, logger *zap.Logger, opts ...SamplerOption) *Sampler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Sampler{
		source:   src,
		analyzer: analyzer,
		cfg:      cfg,
		logger:   logger.Named("sampler"),
		now:      time.Now,
		history:  model.NewRing[model.MemorySample](cfg.HistoryCapacity, defaultHistoryCapacity),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Analyzer returns the Analyzer snapshots are recorded on.
func (s *Sampler) Analyzer() *Analyzer {
	return s.analyzer
}

// Config returns the configuration the Sampler was built with.
func (s *Sampler) Config() config.Config {
	return s.cfg
}

// Sample reads the source once. It does not touch history.
func (s *Sampler) Sample(ctx context.Context) (model.MemorySample, error) {
	st, err := s.source.CurrentMemoryStats(ctx)
	if err != nil {
		return model.MemorySample{}, fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, s.source.Name(), err)
	}
	regions := make([]model.Region, len(st.Regions))
	copy(regions, st.Regions)
	return model.MemorySample{
		Timestamp:    s.now(),
		HeapUsed:     st.HeapUsed,
		HeapTotal:    st.HeapTotal,
		External:     st.External,
		RSS:          st.RSS,
		ArrayBuffers: st.ArrayBuffers,
		HeapLimit:    st.HeapLimit,
		Regions:      regions,
	}, nil
}

// Start launches the sampling loop, sampling once immediately and then
// every interval. A non-positive interval selects the configured one.
// Calling Start on a running Sampler is a no-op. The loop ends when ctx is
// cancelled or Stop is called.
func (s *Sampler) Start(ctx context.Context, interval time.Duration) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	s.reapLocked()
	if s.cancel != nil {
		return
	}
	if interval <= 0 {
		interval = s.cfg.SampleInterval()
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(loopCtx, interval, s.done)

	s.logger.Info("sampling started",
		zap.String("source", s.source.Name()),
		zap.Duration("interval", interval),
	)
}

// Stop ends the sampling loop and waits for it to exit. It is a no-op when
// the Sampler is not running. Stop must not be called from a Handler.
func (s *Sampler) Stop() {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil
	s.logger.Info("sampling stopped")
}

// Running reports whether the sampling loop is active.
func (s *Sampler) Running() bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	s.reapLocked()
	return s.cancel != nil
}

// reapLocked clears the run state of a loop that ended on its own because
// the parent context was cancelled. runMu must be held.
func (s *Sampler) reapLocked() {
	if s.done == nil {
		return
	}
	select {
	case <-s.done:
		s.cancel()
		s.cancel = nil
		s.done = nil
	default:
	}
}

func (s *Sampler) loop(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := s.tick(ctx); err != nil && ctx.Err() == nil {
		s.logger.Warn("sampling tick failed", zap.Error(err))
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.tick(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("sampling tick failed", zap.Error(err))
			}
		}
	}
}

// tick performs one sampling cycle: sample, evaluate, record, emit, and
// snapshot when due.
func (s *Sampler) tick(ctx context.Context) error {
	sample, err := s.Sample(ctx)
	if err != nil {
		return err
	}
	alerts := EvaluateThresholds(sample, s.cfg.Thresholds)

	s.mu.Lock()
	s.history.Push(sample)
	s.sinceSnap++
	due := s.snapshotDue(sample.Timestamp)
	s.mu.Unlock()

	update := sample.Clone()
	s.events.emit(Event{Kind: EventUpdate, Sample: &update})
	for i := range alerts {
		alert := alerts[i]
		s.logger.Warn("memory threshold exceeded",
			zap.String("severity", string(alert.Severity)),
			zap.String("metric", alert.Metric),
			zap.Uint64("value", alert.Value),
			zap.Uint64("threshold", alert.Threshold),
		)
		s.events.emit(Event{Kind: EventAlert, Alert: &alert})
	}

	if due {
		snap, err := s.analyzer.TakeHeapSnapshot(ctx, AutoSnapshotLabel, nil)
		if err != nil {
			return fmt.Errorf("auto snapshot: %w", err)
		}
		s.mu.Lock()
		s.sinceSnap = 0
		s.lastAuto = sample.Timestamp
		s.mu.Unlock()
		s.events.emit(Event{Kind: EventSnapshot, Snapshot: &snap})
	}
	return nil
}

// snapshotDue must be called with s.mu held.
func (s *Sampler) snapshotDue(now time.Time) bool {
	switch {
	case s.analyzer.Len() == 0:
		return true
	case s.cfg.SnapshotEveryTicks > 0 && s.sinceSnap >= s.cfg.SnapshotEveryTicks:
		return true
	case s.cfg.SnapshotIntervalMs > 0 && now.Sub(s.lastAuto) >= s.cfg.SnapshotInterval():
		return true
	default:
		return false
	}
}

// TakeSnapshot records a labeled snapshot and emits a snapshot event. It
// returns nil when the source cannot be read.
func (s *Sampler) TakeSnapshot(ctx context.Context, label string) *model.Snapshot {
	snap, err := s.analyzer.TakeHeapSnapshot(ctx, label, nil)
	if err != nil {
		s.logger.Error("snapshot failed", zap.String("label", label), zap.Error(err))
		return nil
	}
	s.events.emit(Event{Kind: EventSnapshot, Snapshot: &snap})
	return &snap
}

// AnalyzeLeaks runs the leak detectors over the trailing leak window of
// history. It returns ErrInsufficientData until at least three snapshots
// have been recorded.
func (s *Sampler) AnalyzeLeaks() (model.LeakAnalysis, error) {
	if n := s.analyzer.Len(); n < minSnapshotsForLeaks {
		return model.LeakAnalysis{}, fmt.Errorf("leak detection needs %d snapshots, have %d: %w", minSnapshotsForLeaks, n, ErrInsufficientData)
	}
	return DetectLeakPatterns(s.HistoryWindow(s.cfg.LeakWindow()), s.cfg.Leak), nil
}

// DetectLeaks returns the leak patterns found by AnalyzeLeaks.
func (s *Sampler) DetectLeaks() ([]model.LeakPattern, error) {
	analysis, err := s.AnalyzeLeaks()
	if err != nil {
		return nil, err
	}
	return analysis.Patterns, nil
}

// History returns a copy of the retained samples, oldest first.
func (s *Sampler) History() []model.MemorySample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Items()
}

// HistoryWindow returns the retained samples no older than d.
func (s *Sampler) HistoryWindow(d time.Duration) []model.MemorySample {
	now := s.now()
	all := s.History()
	for i, sample := range all {
		if now.Sub(sample.Timestamp) <= d {
			return all[i:]
		}
	}
	return []model.MemorySample{}
}

// Latest returns the newest retained sample.
func (s *Sampler) Latest() (model.MemorySample, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Last()
}

// Subscribe registers fn for every subsequent event.
func (s *Sampler) Subscribe(fn Handler) SubscriptionID {
	return s.events.subscribe(fn)
}

// Unsubscribe removes a handler. It reports whether id was registered.
func (s *Sampler) Unsubscribe(id SubscriptionID) bool {
	return s.events.unsubscribe(id)
}

// Measure records the heap usage around fn. When configured and supported
// by the source, a collection is forced first and the heap allowed to
// settle; a second, longer settle precedes the closing snapshot. Snapshots labeled "<label>:start" and "<label>:end" bracket the
// call.
func (s *Sampler) Measure(ctx context.Context, label string, fn func(context.Context) error) (model.MemoryDelta, error) {
	delta := model.MemoryDelta{Label: label}

	if s.cfg.Measure.ForceGC {
		if gc, ok := s.source.(telemetry.GarbageCollector); ok {
			gc.CollectGarbage()
		}
	}
	if err := sleepCtx(ctx, s.cfg.Measure.SettleDelay()); err != nil {
		return delta, err
	}

	before := s.TakeSnapshot(ctx, label+":start")
	if before == nil {
		return delta, fmt.Errorf("measure %s: %w", label, ErrSourceUnavailable)
	}
	if err := fn(ctx); err != nil {
		return delta, fmt.Errorf("measure %s: %w", label, err)
	}
	if err := sleepCtx(ctx, s.cfg.Measure.SettleAfterDelay()); err != nil {
		return delta, err
	}
	after := s.TakeSnapshot(ctx, label+":end")
	if after == nil {
		return delta, fmt.Errorf("measure %s: %w", label, ErrSourceUnavailable)
	}

	delta.Before = before.HeapUsed
	delta.After = after.HeapUsed
	delta.Increase = int64(after.HeapUsed) - int64(before.HeapUsed)
	return delta, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
