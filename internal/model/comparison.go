package model

// MemoryChange is the before/after delta of one aggregate figure.
// Percentage is 0 when Before is 0.
type MemoryChange struct {
	Before     uint64  `json:"before"`
	After      uint64  `json:"after"`
	Change     int64   `json:"change"`
	Percentage float64 `json:"percentage"`
}

// MemoryChanges groups the aggregate deltas of a comparison.
type MemoryChanges struct {
	HeapUsed  MemoryChange `json:"heapUsed"`
	HeapTotal MemoryChange `json:"heapTotal"`
}

// RegionUsage is the usage of a region at one point of a comparison.
type RegionUsage struct {
	Used        uint64  `json:"used"`
	Total       uint64  `json:"total"`
	Utilization float64 `json:"utilization"`
}

// SpaceChange records a region whose utilisation moved by more than the
// comparison threshold. UtilizationChange is in percentage points.
type SpaceChange struct {
	Name              string      `json:"name"`
	UtilizationChange float64     `json:"utilizationChange"`
	Before            RegionUsage `json:"before"`
	After             RegionUsage `json:"after"`
}

// Comparison is the result of comparing two retained snapshots.
type Comparison struct {
	Snapshot1        SnapshotRef      `json:"snapshot1"`
	Snapshot2        SnapshotRef      `json:"snapshot2"`
	TimeDifferenceMs int64            `json:"timeDifferenceMs"`
	MemoryChanges    MemoryChanges    `json:"memoryChanges"`
	SpaceChanges     []SpaceChange    `json:"spaceChanges"`
	Recommendations  []Recommendation `json:"recommendations"`
}

// MemoryDelta is the heap usage measured around a single operation.
type MemoryDelta struct {
	Label    string `json:"label"`
	Before   uint64 `json:"before"`
	After    uint64 `json:"after"`
	Increase int64  `json:"increase"`
}
