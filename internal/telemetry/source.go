// Package telemetry defines the boundary between the memory engine and the
// runtime it observes. Any host that can report aggregate heap counters can
// implement Source; the engine never reads runtime internals directly.
package telemetry

import (
	"context"
	"errors"

	"github.com/dm/memwatch/internal/model"
)

// ErrUnsupported is returned by sources that cannot run on this platform.
var ErrUnsupported = errors.New("telemetry: unsupported on this platform")

// Stats is one reading of a runtime's memory counters. Sizes are in bytes.
// Hosts without region-level detail leave Regions empty.
type Stats struct {
	HeapUsed     uint64
	HeapTotal    uint64
	External     uint64
	RSS          uint64
	ArrayBuffers uint64
	HeapLimit    uint64
	Regions      []model.Region
}

// Source reads the current memory statistics of the observed runtime.
type Source interface {
	CurrentMemoryStats(ctx context.Context) (Stats, error)
	Name() string
}

// GarbageCollector is implemented by sources that can force a collection
// before a measurement.
type GarbageCollector interface {
	CollectGarbage()
}

// SourceFunc adapts a plain function to the Source interface.
type SourceFunc func(ctx context.Context) (Stats, error)

// CurrentMemoryStats calls f.
func (f SourceFunc) CurrentMemoryStats(ctx context.Context) (Stats, error) {
	return f(ctx)
}

// Name implements Source.
func (f SourceFunc) Name() string {
	return "func"
}

// subSat returns a-b, or 0 when b > a.
func subSat(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}
