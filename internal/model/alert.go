package model

import "time"

// AlertSeverity is the tier of a threshold breach.
type AlertSeverity string

const (
	AlertWarning  AlertSeverity = "warning"
	AlertCritical AlertSeverity = "critical"
)

// Metric names that thresholds are evaluated against.
const (
	MetricHeapUsed = "heapUsed"
	MetricRSS      = "rss"
)

// Alert is a threshold breach raised for a single sample. Alerts are emitted
// to subscribers and never retained.
type Alert struct {
	Severity  AlertSeverity `json:"severity"`
	Metric    string        `json:"metric"`
	Value     uint64        `json:"value"`
	Threshold uint64        `json:"threshold"`
	Message   string        `json:"message"`
	Timestamp time.Time     `json:"timestamp"`
}
