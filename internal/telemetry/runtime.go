package telemetry

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"runtime/debug"

	"golang.org/x/sync/errgroup"

	"github.com/dm/memwatch/internal/model"
)

// RuntimeSource reports the memory statistics of the current Go process.
//
// Heap figures come from runtime.ReadMemStats. RSS is read from the OS and is
// optional: when it cannot be read the field is left 0 and the reading still
// succeeds.
type RuntimeSource struct {
	readMemStats func(*runtime.MemStats)
	readRSS      func(ctx context.Context) (uint64, error)
	memoryLimit  func() uint64
}

// NewRuntimeSource creates a RuntimeSource for the calling process.
func NewRuntimeSource() *RuntimeSource {
	return &RuntimeSource{
		readMemStats: runtime.ReadMemStats,
		readRSS: func(context.Context) (uint64, error) {
			return selfRSS()
		},
		memoryLimit: runtimeMemoryLimit,
	}
}

// Name implements Source.
func (s *RuntimeSource) Name() string {
	return "go-runtime"
}

// CollectGarbage implements GarbageCollector.
func (s *RuntimeSource) CollectGarbage() {
	runtime.GC()
}

// CurrentMemoryStats implements Source.
func (s *RuntimeSource) CurrentMemoryStats(ctx context.Context) (Stats, error) {
	var m runtime.MemStats

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		s.readMemStats(&m)
		return nil
	})

	// RSS runs outside the errgroup so a slow or failing OS read never fails
	// the heap reading. The buffered channel prevents a goroutine leak when
	// ctx expires first.
	rssCh := make(chan uint64, 1)
	go func() {
		rss, err := s.readRSS(ctx)
		if err != nil {
			rssCh <- 0
			return
		}
		rssCh <- rss
	}()

	if err := g.Wait(); err != nil {
		return Stats{}, fmt.Errorf("read runtime mem stats: %w", err)
	}

	var rss uint64
	select {
	case rss = <-rssCh:
	case <-ctx.Done():
	}

	limit := s.memoryLimit()
	if limit == 0 {
		limit = m.HeapSys
	}

	return Stats{
		HeapUsed:  m.HeapAlloc,
		HeapTotal: m.HeapSys,
		External:  subSat(m.Sys, m.HeapSys),
		RSS:       rss,
		HeapLimit: limit,
		Regions:   runtimeRegions(&m),
	}, nil
}

// runtimeRegions maps the Go allocator's spans onto named regions.
func runtimeRegions(m *runtime.MemStats) []model.Region {
	return []model.Region{
		{
			Name:          "heap",
			UsedSize:      m.HeapInuse,
			TotalSize:     m.HeapSys,
			AvailableSize: subSat(m.HeapIdle, m.HeapReleased),
			PhysicalSize:  subSat(m.HeapSys, m.HeapReleased),
		},
		{
			Name:          "stack",
			UsedSize:      m.StackInuse,
			TotalSize:     m.StackSys,
			AvailableSize: subSat(m.StackSys, m.StackInuse),
			PhysicalSize:  m.StackSys,
		},
		{
			Name:          "mspan",
			UsedSize:      m.MSpanInuse,
			TotalSize:     m.MSpanSys,
			AvailableSize: subSat(m.MSpanSys, m.MSpanInuse),
			PhysicalSize:  m.MSpanSys,
		},
		{
			Name:          "mcache",
			UsedSize:      m.MCacheInuse,
			TotalSize:     m.MCacheSys,
			AvailableSize: subSat(m.MCacheSys, m.MCacheInuse),
			PhysicalSize:  m.MCacheSys,
		},
		{
			Name:         "gc",
			UsedSize:     m.GCSys,
			TotalSize:    m.GCSys,
			PhysicalSize: m.GCSys,
		},
	}
}

// runtimeMemoryLimit returns the soft memory limit set via GOMEMLIMIT or
// debug.SetMemoryLimit, falling back to total system memory when unset.
func runtimeMemoryLimit() uint64 {
	limit := debug.SetMemoryLimit(-1)
	if limit > 0 && limit != math.MaxInt64 {
		return uint64(limit)
	}
	total, err := systemMemory()
	if err != nil {
		return 0
	}
	return total
}
