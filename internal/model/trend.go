package model

import "time"

// Trend classifies the direction of heap usage over a window.
type Trend string

const (
	TrendIncreasing       Trend = "increasing"
	TrendDecreasing       Trend = "decreasing"
	TrendStable           Trend = "stable"
	TrendInsufficientData Trend = "insufficient_data"
)

// Anomaly is a sudden change between two consecutive snapshots.
// Change is the signed delta in bytes.
type Anomaly struct {
	Timestamp time.Time `json:"timestamp"`
	Change    int64     `json:"change"`
	Magnitude uint64    `json:"magnitude"`
	Before    uint64    `json:"before"`
	After     uint64    `json:"after"`
}

// Predictions are linear projections of heapUsed, in bytes.
type Predictions struct {
	InTenMinutes float64 `json:"inTenMinutes"`
	InOneHour    float64 `json:"inOneHour"`
	RiskOfOOM    bool    `json:"riskOfOOM"`
}

// TrendAnalysis is derived on demand from the retained snapshots inside a
// trailing window. It is never stored.
type TrendAnalysis struct {
	WindowMs      int64        `json:"windowMs"`
	SampleCount   int          `json:"sampleCount"`
	StartValue    uint64       `json:"startValue"`
	EndValue      uint64       `json:"endValue"`
	PeakValue     uint64       `json:"peakValue"`
	AverageValue  float64      `json:"averageValue"`
	ChangePercent float64      `json:"changePercent"`
	Trend         Trend        `json:"trend"`
	Confidence    float64      `json:"confidence"`
	Anomalies     []Anomaly    `json:"anomalies"`
	Predictions   *Predictions `json:"predictions,omitempty"`
	Message       string       `json:"message,omitempty"`
}

// Sufficient reports whether enough data existed to classify a trend.
func (t TrendAnalysis) Sufficient() bool {
	return t.Trend != TrendInsufficientData && t.Trend != ""
}
