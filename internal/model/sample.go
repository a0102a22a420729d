package model

import "time"

// Region is a named subdivision of the managed heap with its own usage and
// capacity. Sizes are in bytes.
type Region struct {
	Name          string `json:"name"`
	UsedSize      uint64 `json:"usedSize"`
	TotalSize     uint64 `json:"totalSize"`
	AvailableSize uint64 `json:"availableSize"`
	PhysicalSize  uint64 `json:"physicalSize"`
}

// MemorySample is a single periodic measurement recorded by the sampler.
// Samples are never mutated after they are appended to history.
type MemorySample struct {
	Timestamp    time.Time `json:"timestamp"`
	HeapUsed     uint64    `json:"heapUsed"`
	HeapTotal    uint64    `json:"heapTotal"`
	External     uint64    `json:"external"`
	RSS          uint64    `json:"rss"`
	ArrayBuffers uint64    `json:"arrayBuffers"`
	HeapLimit    uint64    `json:"heapLimit"`
	Regions      []Region  `json:"regions"`
}

// HeapUtilization returns heapUsed as a percentage of heapTotal, or 0 when
// heapTotal is unknown.
func (s MemorySample) HeapUtilization() float64 {
	if s.HeapTotal == 0 {
		return 0
	}
	return float64(s.HeapUsed) / float64(s.HeapTotal) * 100
}

// Clone returns a copy whose Regions slice does not alias the receiver's.
func (s MemorySample) Clone() MemorySample {
	if s.Regions != nil {
		regions := make([]Region, len(s.Regions))
		copy(regions, s.Regions)
		s.Regions = regions
	}
	return s
}
