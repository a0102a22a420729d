package tui

import (
	"time"

	"github.com/dm/memwatch/internal/model"
)

// StateMsg delivers a fresh view of the engine state to the TUI.
type StateMsg struct {
	// HasSample is false until the sampler has recorded its first sample.
	HasSample bool
	Latest    model.MemorySample
	History   []model.MemorySample
	Alerts    []model.Alert

	Snapshots   int
	SnapshotCap int
	Trend       model.TrendAnalysis
	// Leak is only meaningful when LeakErr is nil.
	Leak    model.LeakAnalysis
	LeakErr error

	Recommendations []model.Recommendation
	NextActions     []string
	FetchedAt       time.Time
}

// FetchErrorMsg signals a failure to read engine state.
type FetchErrorMsg struct{ Err error }

// SnapshotTakenMsg reports the outcome of a manual snapshot.
type SnapshotTakenMsg struct {
	Snapshot *model.Snapshot
}

// TickMsg triggers the next scheduled refresh.
type TickMsg time.Time
