package engine

import (
	"math"

	"github.com/dm/memwatch/internal/config"
	"github.com/dm/memwatch/internal/model"
)

// LeakConfig holds the detector constants; see config.DefaultLeakConfig.
type LeakConfig = config.LeakConfig

// leakDetector is one heuristic in the pattern table. detect receives the
// heapUsed series in bytes, oldest first, and reports whether it fired.
type leakDetector struct {
	Type          model.LeakPatternType
	Weight        float64
	SeverityFloor model.LeakSeverity
	detect        func(series []float64, cfg LeakConfig) (map[string]float64, bool)
}

// leakDetectors returns the pattern table for cfg, evaluated in order.
func leakDetectors(cfg LeakConfig) []leakDetector {
	return []leakDetector{
		{Type: model.PatternContinuousGrowth, Weight: cfg.GrowthWeight, detect: detectContinuousGrowth},
		{Type: model.PatternNoStabilization, Weight: cfg.StabilizationWeight, detect: detectNoStabilization},
		{Type: model.PatternExponentialGrowth, Weight: cfg.ExponentialWeight, SeverityFloor: model.LeakSeverityHigh, detect: detectExponentialGrowth},
		{Type: model.PatternUnsafeAccumulation, Weight: cfg.AccumulationWeight, detect: detectAccumulation},
	}
}

// DetectLeakPatterns runs every leak heuristic over window and aggregates
// the fired patterns into a confidence score and severity. The result is
// derived purely from its inputs.
func DetectLeakPatterns(window []model.MemorySample, cfg LeakConfig) model.LeakAnalysis {
	analysis := model.LeakAnalysis{
		Severity:    model.LeakSeverityLow,
		Patterns:    []model.LeakPattern{},
		SampleCount: len(window),
	}
	if len(window) < max(cfg.MinSamples, 2) {
		analysis.Message = "insufficient data"
		return analysis
	}

	series := make([]float64, len(window))
	for i, s := range window {
		series[i] = float64(s.HeapUsed)
	}

	var (
		score float64
		floor = model.LeakSeverityLow
	)
	for _, d := range leakDetectors(cfg) {
		details, ok := d.detect(series, cfg)
		if !ok {
			continue
		}
		analysis.Patterns = append(analysis.Patterns, model.LeakPattern{
			Type:    d.Type,
			Weight:  d.Weight,
			Details: details,
		})
		score += d.Weight
		if d.SeverityFloor != "" {
			floor = floor.AtLeast(d.SeverityFloor)
		}
	}

	analysis.Confidence = math.Min(score, 1)
	analysis.LeakDetected = analysis.Confidence > 0

	switch {
	case analysis.Confidence > 0.7:
		analysis.Severity = model.LeakSeverityCritical
	case analysis.Confidence > 0.5:
		analysis.Severity = model.LeakSeverityHigh
	case analysis.Confidence > 0.3:
		analysis.Severity = model.LeakSeverityMedium
	}
	analysis.Severity = analysis.Severity.AtLeast(floor)
	return analysis
}

// deltas returns the consecutive differences of series.
func deltas(series []float64) []float64 {
	if len(series) < 2 {
		return nil
	}
	out := make([]float64, len(series)-1)
	for i := 1; i < len(series); i++ {
		out[i-1] = series[i] - series[i-1]
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func tail(series []float64, n int) []float64 {
	if len(series) <= n {
		return series
	}
	return series[len(series)-n:]
}

// detectContinuousGrowth fires when every step of the trailing window grew
// and the average step exceeds the configured minimum.
func detectContinuousGrowth(series []float64, cfg LeakConfig) (map[string]float64, bool) {
	steps := deltas(tail(series, cfg.GrowthWindow))
	if len(steps) == 0 {
		return nil, false
	}
	maxDrop := cfg.GrowthMaxDropMB * bytesPerMB
	consistent := true
	for _, d := range steps {
		if d < -maxDrop {
			return nil, false
		}
		if d <= 0 {
			consistent = false
		}
	}
	avg := mean(steps)
	if !consistent || avg <= cfg.GrowthMinAvgMB*bytesPerMB {
		return nil, false
	}
	return map[string]float64{
		"averageGrowth": avg,
		"growthPoints":  float64(len(steps)),
	}, true
}

// detectNoStabilization compares the newest half of the trailing window
// against the older half.
func detectNoStabilization(series []float64, cfg LeakConfig) (map[string]float64, bool) {
	n := cfg.StabilizationMinSamples
	if len(series) < n {
		return nil, false
	}
	window := tail(series, n)
	older, recent := window[:n/2], window[n/2:]
	avgOlder, avgRecent := mean(older), mean(recent)

	if avgRecent <= avgOlder*cfg.StabilizationRatio {
		return nil, false
	}
	for _, v := range recent {
		if v < avgOlder {
			return nil, false
		}
	}
	return map[string]float64{
		"averageOlder":  avgOlder,
		"averageRecent": avgRecent,
	}, true
}

// detectExponentialGrowth fires when growth accelerates at every step.
func detectExponentialGrowth(series []float64, cfg LeakConfig) (map[string]float64, bool) {
	if len(series) < cfg.ExponentialMinSamples {
		return nil, false
	}
	steps := deltas(series)
	first, last := steps[0], steps[len(steps)-1]
	if first <= 0 {
		return nil, false
	}
	for i := 1; i < len(steps); i++ {
		if steps[i] <= steps[i-1] {
			return nil, false
		}
	}
	if last <= first*cfg.ExponentialFactor {
		return nil, false
	}
	return map[string]float64{
		"firstGrowth": first,
		"lastGrowth":  last,
	}, true
}

// detectAccumulation fires when the window grew by more than the
// configured amount end to end.
func detectAccumulation(series []float64, cfg LeakConfig) (map[string]float64, bool) {
	total := series[len(series)-1] - series[0]
	if total <= cfg.AccumulationMB*bytesPerMB {
		return nil, false
	}
	return map[string]float64{"totalGrowth": total}, true
}
