package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dm/memwatch/internal/config"
	"github.com/dm/memwatch/internal/model"
	"github.com/dm/memwatch/internal/telemetry"
)

const mb = 1 << 20

var errMockFailure = errors.New("mock failure")

// MockSource implements telemetry.Source for testing.
type MockSource struct {
	StatsFn func(ctx context.Context) (telemetry.Stats, error)
	GCFn    func()
}

func (m *MockSource) CurrentMemoryStats(ctx context.Context) (telemetry.Stats, error) {
	if m.StatsFn != nil {
		return m.StatsFn(ctx)
	}
	return telemetry.Stats{HeapUsed: 50 * mb, HeapTotal: 100 * mb, RSS: 120 * mb, HeapLimit: 1024 * mb}, nil
}

func (m *MockSource) Name() string {
	return "mock"
}

func (m *MockSource) CollectGarbage() {
	if m.GCFn != nil {
		m.GCFn()
	}
}

// seqSource returns the given heapUsed values in order, repeating the last.
func seqSource(heapUsed ...uint64) *MockSource {
	var (
		mu sync.Mutex
		i  int
	)
	return &MockSource{StatsFn: func(context.Context) (telemetry.Stats, error) {
		mu.Lock()
		defer mu.Unlock()
		v := heapUsed[min(i, len(heapUsed)-1)]
		i++
		return telemetry.Stats{HeapUsed: v, HeapTotal: 2 * v, HeapLimit: 4096 * mb}, nil
	}}
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func testConfig() config.Config {
	return config.Default()
}

// samples builds a history with one sample per second ending at end.
func samples(end time.Time, heapUsed ...uint64) []model.MemorySample {
	out := make([]model.MemorySample, len(heapUsed))
	for i, v := range heapUsed {
		out[i] = model.MemorySample{
			Timestamp: end.Add(-time.Duration(len(heapUsed)-1-i) * time.Second),
			HeapUsed:  v,
			HeapTotal: 2 * v,
		}
	}
	return out
}

// clockSource reports heapUsed growing linearly with the fake clock.
func clockSource(clock *fakeClock, base, perSecond uint64) *MockSource {
	start := clock.Now()
	return &MockSource{StatsFn: func(context.Context) (telemetry.Stats, error) {
		secs := uint64(clock.Now().Sub(start) / time.Second)
		used := base + perSecond*secs
		return telemetry.Stats{HeapUsed: used, HeapTotal: 2 * used, RSS: used, HeapLimit: 4096 * mb}, nil
	}}
}
