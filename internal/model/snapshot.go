package model

import "time"

// RegionAdvice is the optimisation hint attached to a region analysis.
type RegionAdvice string

const (
	AdviceHighUtilization   RegionAdvice = "HIGH_UTILIZATION"
	AdviceMediumUtilization RegionAdvice = "MEDIUM_UTILIZATION"
	AdviceHighFragmentation RegionAdvice = "HIGH_FRAGMENTATION"
	AdviceOptimal           RegionAdvice = "OPTIMAL"
)

// Description returns the operator-facing text for the advice code.
func (a RegionAdvice) Description() string {
	switch a {
	case AdviceHighUtilization:
		return "Consider freeing memory or allocating additional space"
	case AdviceMediumUtilization:
		return "Monitor usage and optimise allocations"
	case AdviceHighFragmentation:
		return "Consider compacting memory"
	default:
		return "Normal usage"
	}
}

// RegionAnalysis holds the derived utilisation figures for one region.
// Rates are percentages in [0, 100].
type RegionAnalysis struct {
	Name                string       `json:"name"`
	UtilizationRate     float64      `json:"utilizationRate"`
	FragmentationRate   float64      `json:"fragmentationRate"`
	IsHighUtilization   bool         `json:"isHighUtilization"`
	IsHighFragmentation bool         `json:"isHighFragmentation"`
	Recommendation      RegionAdvice `json:"recommendation"`
}

// SnapshotStatistics carries the non-heap figures captured with a snapshot.
type SnapshotStatistics struct {
	External        uint64  `json:"external"`
	RSS             uint64  `json:"rss"`
	ArrayBuffers    uint64  `json:"arrayBuffers"`
	HeapLimit       uint64  `json:"heapLimit"`
	HeapUtilization float64 `json:"heapUtilization"`
}

// Snapshot is a retained, labeled, point-in-time measurement with a
// per-region breakdown.
//
// DiffFromPrevious is the signed heapUsed delta in bytes against the
// immediately preceding retained snapshot (0 for the oldest retained one).
type Snapshot struct {
	ID               uint64             `json:"id"`
	Label            string             `json:"label"`
	Timestamp        time.Time          `json:"timestamp"`
	HeapUsed         uint64             `json:"heapUsed"`
	HeapTotal        uint64             `json:"heapTotal"`
	Regions          []Region           `json:"regions"`
	Statistics       SnapshotStatistics `json:"statistics"`
	Analysis         []RegionAnalysis   `json:"analysis"`
	DiffFromPrevious int64              `json:"diffFromPrevious"`
	Options          map[string]string  `json:"options,omitempty"`
}

// HeapUtilization returns heapUsed as a percentage of heapTotal.
func (s Snapshot) HeapUtilization() float64 {
	if s.HeapTotal == 0 {
		return 0
	}
	return float64(s.HeapUsed) / float64(s.HeapTotal) * 100
}

// SnapshotRef identifies a snapshot inside a comparison or report.
type SnapshotRef struct {
	ID        uint64    `json:"id"`
	Label     string    `json:"label"`
	Timestamp time.Time `json:"timestamp"`
}

// Ref returns the identifying fields of s.
func (s Snapshot) Ref() SnapshotRef {
	return SnapshotRef{ID: s.ID, Label: s.Label, Timestamp: s.Timestamp}
}

// SnapshotSummary is the compact form of a snapshot used in report activity.
type SnapshotSummary struct {
	ID        uint64    `json:"id"`
	Label     string    `json:"label"`
	Timestamp time.Time `json:"timestamp"`
	HeapUsed  uint64    `json:"heapUsed"`
	HeapTotal uint64    `json:"heapTotal"`
}

// Summary returns the compact form of s.
func (s Snapshot) Summary() SnapshotSummary {
	return SnapshotSummary{
		ID:        s.ID,
		Label:     s.Label,
		Timestamp: s.Timestamp,
		HeapUsed:  s.HeapUsed,
		HeapTotal: s.HeapTotal,
	}
}
