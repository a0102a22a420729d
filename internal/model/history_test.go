package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func heapUsedOf(samples []MemorySample) []uint64 {
	out := make([]uint64, len(samples))
	for i, s := range samples {
		out[i] = s.HeapUsed
	}
	return out
}

func TestRing_PushAndLen(t *testing.T) {
	r := NewRing[MemorySample](5, 10)
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 5, r.Cap())

	r.Push(MemorySample{Timestamp: time.Now(), HeapUsed: 1})
	assert.Equal(t, 1, r.Len())

	r.Push(MemorySample{Timestamp: time.Now(), HeapUsed: 2})
	r.Push(MemorySample{Timestamp: time.Now(), HeapUsed: 3})
	assert.Equal(t, 3, r.Len())
}

func TestRing_DefaultCapacity(t *testing.T) {
	r := NewRing[int](0, 60)
	assert.Equal(t, 60, r.Cap())

	r = NewRing[int](-3, 0)
	assert.Equal(t, 1, r.Cap())
}

func TestRing_OverwritesOldest(t *testing.T) {
	r := NewRing[MemorySample](3, 0)

	r.Push(MemorySample{HeapUsed: 10})
	r.Push(MemorySample{HeapUsed: 20})
	_, evicted := r.Push(MemorySample{HeapUsed: 30})
	require.Equal(t, 3, r.Len())
	assert.False(t, evicted)

	// Push beyond capacity — oldest (10) should be overwritten
	old, evicted := r.Push(MemorySample{HeapUsed: 40})
	assert.True(t, evicted)
	assert.Equal(t, uint64(10), old.HeapUsed)
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []uint64{20, 30, 40}, heapUsedOf(r.Items()))

	r.Push(MemorySample{HeapUsed: 50})
	assert.Equal(t, []uint64{30, 40, 50}, heapUsedOf(r.Items()))
}

func TestRing_CapacityInvariant(t *testing.T) {
	for _, capacity := range []int{1, 2, 7, 100} {
		r := NewRing[int](capacity, 0)
		for k := 0; k < capacity+13; k++ {
			r.Push(k)
		}
		items := r.Items()
		require.Len(t, items, capacity)
		for i := 1; i < len(items); i++ {
			assert.Less(t, items[i-1], items[i], "capacity %d: items must be oldest→newest", capacity)
		}
		assert.Equal(t, capacity+12, items[len(items)-1])
	}
}

func TestRing_AtAndLast(t *testing.T) {
	r := NewRing[int](3, 0)
	_, ok := r.Last()
	assert.False(t, ok)

	for _, v := range []int{1, 2, 3, 4} {
		r.Push(v)
	}
	first, ok := r.At(0)
	require.True(t, ok)
	assert.Equal(t, 2, first)

	last, ok := r.Last()
	require.True(t, ok)
	assert.Equal(t, 4, last)

	_, ok = r.At(3)
	assert.False(t, ok)
	_, ok = r.At(-1)
	assert.False(t, ok)
}

func TestRing_Update(t *testing.T) {
	r := NewRing[Snapshot](2, 0)
	r.Push(Snapshot{ID: 1, DiffFromPrevious: 5})
	r.Push(Snapshot{ID: 2, DiffFromPrevious: 7})
	r.Push(Snapshot{ID: 3, DiffFromPrevious: 9})

	ok := r.Update(0, func(s *Snapshot) { s.DiffFromPrevious = 0 })
	require.True(t, ok)

	items := r.Items()
	assert.Equal(t, uint64(2), items[0].ID)
	assert.Equal(t, int64(0), items[0].DiffFromPrevious)
	assert.Equal(t, int64(9), items[1].DiffFromPrevious)

	assert.False(t, r.Update(5, func(*Snapshot) {}))
}

func TestRing_ItemsIsCopy(t *testing.T) {
	r := NewRing[int](3, 0)
	r.Push(1)
	items := r.Items()
	items[0] = 99
	first, _ := r.At(0)
	assert.Equal(t, 1, first)
}

func TestMemorySample_HeapUtilization(t *testing.T) {
	assert.Equal(t, 0.0, MemorySample{HeapUsed: 10}.HeapUtilization())
	assert.InDelta(t, 25.0, MemorySample{HeapUsed: 25, HeapTotal: 100}.HeapUtilization(), 1e-9)
}

func TestMemorySample_CloneDoesNotAlias(t *testing.T) {
	s := MemorySample{Regions: []Region{{Name: "heap", UsedSize: 1}}}
	c := s.Clone()
	c.Regions[0].UsedSize = 2
	assert.Equal(t, uint64(1), s.Regions[0].UsedSize)
}

func TestLeakSeverity_AtLeast(t *testing.T) {
	assert.Equal(t, LeakSeverityHigh, LeakSeverityLow.AtLeast(LeakSeverityHigh))
	assert.Equal(t, LeakSeverityCritical, LeakSeverityCritical.AtLeast(LeakSeverityHigh))
	assert.Equal(t, LeakSeverityMedium, LeakSeverityMedium.AtLeast(LeakSeverityLow))
}

func TestRecommendationPriority_Rank(t *testing.T) {
	assert.Less(t, PriorityCritical.Rank(), PriorityHigh.Rank())
	assert.Less(t, PriorityHigh.Rank(), PriorityMedium.Rank())
	assert.Less(t, PriorityMedium.Rank(), PriorityLow.Rank())
	assert.Less(t, PriorityLow.Rank(), RecommendationPriority("OTHER").Rank())
}
