package model

import "time"

// ReportSummary is the headline section of a detailed report.
type ReportSummary struct {
	TotalSnapshots   int           `json:"totalSnapshots"`
	CurrentHeapUsed  uint64        `json:"currentHeapUsed"`
	CurrentHeapTotal uint64        `json:"currentHeapTotal"`
	HeapUtilization  float64       `json:"heapUtilization"`
	Trend            TrendAnalysis `json:"trend"`
}

// ReportDetail is the region-level section of a detailed report, taken from
// the newest snapshot.
type ReportDetail struct {
	Regions    []Region           `json:"regions"`
	Statistics SnapshotStatistics `json:"statistics"`
	Analysis   []RegionAnalysis   `json:"analysis"`
}

// Report is the full analysis assembled from the retained snapshots.
type Report struct {
	ID              string            `json:"id"`
	Timestamp       time.Time         `json:"timestamp"`
	Source          string            `json:"source,omitempty"`
	Summary         ReportSummary     `json:"summary"`
	Detailed        ReportDetail      `json:"detailed"`
	RecentActivity  []SnapshotSummary `json:"recentActivity"`
	Comparisons     []Comparison      `json:"comparisons"`
	Recommendations []Recommendation  `json:"recommendations"`
	NextActions     []string          `json:"nextActions"`
}
