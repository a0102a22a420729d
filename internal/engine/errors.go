package engine

import "errors"

var (
	// ErrSourceUnavailable wraps any failure to read the telemetry source.
	ErrSourceUnavailable = errors.New("telemetry source unavailable")
	// ErrSnapshotNotFound is returned when a snapshot id is not retained.
	ErrSnapshotNotFound = errors.New("snapshot not found")
	// ErrInsufficientData is returned when too few snapshots exist to analyse.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrNoSnapshotsAvailable is returned by report generation on an empty buffer.
	ErrNoSnapshotsAvailable = errors.New("no snapshots available")
)
