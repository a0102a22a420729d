package engine

import (
	"math"
	"time"

	"github.com/dm/memwatch/internal/model"
)

const (
	minTrendPoints       = 3
	trendChangePercent   = 20.0
	maxDirectionalConf   = 0.9
	anomalyBytes         = 5 * bytesPerMB
	predictionConfidence = 0.7
	oomLimitFraction     = 0.8
)

// analyzeTrends classifies the snapshots whose age at now is within window.
// snaps must be in chronological order.
func analyzeTrends(snaps []model.Snapshot, window time.Duration, now time.Time) model.TrendAnalysis {
	var pts []model.Snapshot
	for _, s := range snaps {
		if now.Sub(s.Timestamp) <= window {
			pts = append(pts, s)
		}
	}

	ta := model.TrendAnalysis{
		WindowMs:    window.Milliseconds(),
		SampleCount: len(pts),
		Anomalies:   []model.Anomaly{},
	}
	if len(pts) < minTrendPoints {
		ta.Trend = model.TrendInsufficientData
		ta.Message = "not enough snapshots in window to analyse trends"
		return ta
	}

	first, last := pts[0], pts[len(pts)-1]
	ta.StartValue = first.HeapUsed
	ta.EndValue = last.HeapUsed

	var sum float64
	for _, p := range pts {
		sum += float64(p.HeapUsed)
		if p.HeapUsed > ta.PeakValue {
			ta.PeakValue = p.HeapUsed
		}
	}
	ta.AverageValue = sum / float64(len(pts))

	change := float64(last.HeapUsed) - float64(first.HeapUsed)
	pct := safeDivide(change, float64(first.HeapUsed)) * 100
	ta.ChangePercent = pct

	switch {
	case pct > trendChangePercent:
		ta.Trend = model.TrendIncreasing
		ta.Confidence = math.Min(math.Abs(pct)/100, maxDirectionalConf)
	case pct < -trendChangePercent:
		ta.Trend = model.TrendDecreasing
		ta.Confidence = math.Min(math.Abs(pct)/100, maxDirectionalConf)
	default:
		ta.Trend = model.TrendStable
		ta.Confidence = clamp01(1 - math.Abs(pct)/100)
	}

	for i := 1; i < len(pts); i++ {
		prev, curr := pts[i-1], pts[i]
		delta := int64(curr.HeapUsed) - int64(prev.HeapUsed)
		mag := uint64(delta)
		if delta < 0 {
			mag = uint64(-delta)
		}
		if mag > anomalyBytes {
			ta.Anomalies = append(ta.Anomalies, model.Anomaly{
				Timestamp: curr.Timestamp,
				Change:    delta,
				Magnitude: mag,
				Before:    prev.HeapUsed,
				After:     curr.HeapUsed,
			})
		}
	}

	if ta.Trend == model.TrendIncreasing && ta.Confidence > predictionConfidence {
		ta.Predictions = predict(pts, window, change)
	}
	return ta
}

// predict extrapolates heapUsed linearly from the window's wall-clock growth
// rate. When every point shares one timestamp the window is assumed to be
// evenly covered.
func predict(pts []model.Snapshot, window time.Duration, change float64) *model.Predictions {
	first, last := pts[0], pts[len(pts)-1]
	span := last.Timestamp.Sub(first.Timestamp).Seconds()
	if span <= 0 {
		span = window.Seconds()
	}
	rate := safeDivide(change, span)

	end := float64(last.HeapUsed)
	p := &model.Predictions{
		InTenMinutes: end + rate*600,
		InOneHour:    end + rate*3600,
	}
	if limit := last.Statistics.HeapLimit; limit > 0 {
		p.RiskOfOOM = p.InOneHour > float64(limit)*oomLimitFraction
	}
	return p
}
