package model

// LeakSeverity is the aggregate severity label of a leak analysis.
type LeakSeverity string

const (
	LeakSeverityLow      LeakSeverity = "low"
	LeakSeverityMedium   LeakSeverity = "medium"
	LeakSeverityHigh     LeakSeverity = "high"
	LeakSeverityCritical LeakSeverity = "critical"
)

// Rank orders severities from least (0) to most severe.
func (s LeakSeverity) Rank() int {
	switch s {
	case LeakSeverityMedium:
		return 1
	case LeakSeverityHigh:
		return 2
	case LeakSeverityCritical:
		return 3
	default:
		return 0
	}
}

// AtLeast returns the more severe of s and floor.
func (s LeakSeverity) AtLeast(floor LeakSeverity) LeakSeverity {
	if floor.Rank() > s.Rank() {
		return floor
	}
	return s
}

// LeakPatternType tags the heuristic that produced a pattern.
type LeakPatternType string

const (
	PatternContinuousGrowth   LeakPatternType = "CONTINUOUS_GROWTH"
	PatternNoStabilization    LeakPatternType = "NO_STABILIZATION"
	PatternExponentialGrowth  LeakPatternType = "EXPONENTIAL_GROWTH"
	PatternUnsafeAccumulation LeakPatternType = "UNSAFE_ACCUMULATION"
)

// LeakPattern is a single triggered heuristic and the evidence behind it.
type LeakPattern struct {
	Type    LeakPatternType    `json:"type"`
	Weight  float64            `json:"weight"`
	Details map[string]float64 `json:"details,omitempty"`
}

// LeakAnalysis is the stateless output of a leak-pattern run over a history window.
type LeakAnalysis struct {
	LeakDetected bool          `json:"leakDetected"`
	Confidence   float64       `json:"confidence"`
	Severity     LeakSeverity  `json:"severity"`
	Patterns     []LeakPattern `json:"patterns"`
	SampleCount  int           `json:"sampleCount"`
	Message      string        `json:"message,omitempty"`
}

// Sufficient reports whether the window held enough samples to analyse.
func (a LeakAnalysis) Sufficient() bool {
	return a.Message == ""
}
