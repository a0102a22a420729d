package tui

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dm/memwatch/internal/config"
	"github.com/dm/memwatch/internal/engine"
	"github.com/dm/memwatch/internal/model"
	"github.com/dm/memwatch/internal/telemetry"
)

const mb = 1 << 20

// growingSource reports heapUsed climbing by 5 MB per read.
type growingSource struct {
	reads atomic.Uint64
	err   error
}

func (g *growingSource) CurrentMemoryStats(context.Context) (telemetry.Stats, error) {
	if g.err != nil {
		return telemetry.Stats{}, g.err
	}
	n := g.reads.Add(1)
	return telemetry.Stats{
		HeapUsed:  (20 + 5*n) * mb,
		HeapTotal: 200 * mb,
		RSS:       (100 + 5*n) * mb,
		External:  2 * mb,
		HeapLimit: 1024 * mb,
	}, nil
}

func (g *growingSource) Name() string { return "test-source" }

func newTestSampler(t *testing.T, src telemetry.Source) *engine.Sampler {
	t.Helper()
	cfg := config.Default()
	cfg.SampleIntervalMs = 10
	cfg.SnapshotEveryTicks = 1
	logger := zaptest.NewLogger(t)
	a := engine.NewAnalyzer(src, cfg, logger)
	return engine.NewSampler(src, a, cfg, logger)
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	return NewApp(newTestSampler(t, &growingSource{}), time.Second)
}

// fixtureSample returns a sample with the given heap and RSS in MB.
func fixtureSample(heapMB, rssMB uint64) model.MemorySample {
	return model.MemorySample{
		Timestamp: time.Date(2026, 3, 1, 12, 30, 45, 0, time.UTC),
		HeapUsed:  heapMB * mb,
		HeapTotal: 200 * mb,
		RSS:       rssMB * mb,
		External:  3 * mb,
	}
}

// fixtureState builds a StateMsg around a single sample.
func fixtureState(s model.MemorySample) StateMsg {
	return StateMsg{
		HasSample: true,
		Latest:    s,
		History:   []model.MemorySample{s},
		Snapshots: 1,
		Trend:     model.TrendAnalysis{Trend: model.TrendInsufficientData, Message: "not enough snapshots in window to analyse trends"},
		Leak:      model.LeakAnalysis{Message: "insufficient data", SampleCount: 1},
		FetchedAt: s.Timestamp,
	}
}

// runningSampler starts a sampler and waits until it has snapshots.
func runningSampler(t *testing.T, want int) *engine.Sampler {
	t.Helper()
	s := newTestSampler(t, &growingSource{})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		s.Stop()
	})
	s.Start(ctx, 0)
	require.Eventually(t, func() bool { return s.Analyzer().Len() >= want }, 2*time.Second, 5*time.Millisecond)
	return s
}

// stripANSI removes ANSI escape sequences for plain-text content assertions.
// Handles all CSI sequences (not just SGR m-terminated ones).
func stripANSI(s string) string {
	var out strings.Builder
	inEscape, inCSI := false, false
	for _, r := range s {
		switch {
		case r == '\x1b':
			inEscape = true
		case inEscape && !inCSI && r == '[':
			inCSI = true
		case inEscape:
			// CSI final bytes are in range 0x40–0x7E.
			if r >= 0x40 && r <= 0x7E {
				inEscape, inCSI = false, false
			}
		default:
			out.WriteRune(r)
		}
	}
	return out.String()
}
