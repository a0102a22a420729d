package model

// RecommendationPriority indicates the urgency level of a recommendation.
type RecommendationPriority string

const (
	PriorityCritical RecommendationPriority = "CRITICAL"
	PriorityHigh     RecommendationPriority = "HIGH"
	PriorityMedium   RecommendationPriority = "MEDIUM"
	PriorityLow      RecommendationPriority = "LOW"
)

// Rank orders priorities from most (0) to least urgent. Unknown values sort last.
func (p RecommendationPriority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// RecommendationCategory groups related recommendations.
type RecommendationCategory string

const (
	CategoryMemoryPressure   RecommendationCategory = "MEMORY_PRESSURE"
	CategoryMemoryGrowth     RecommendationCategory = "MEMORY_GROWTH"
	CategoryMemoryAnomalies  RecommendationCategory = "MEMORY_ANOMALIES"
	CategorySpaceUtilization RecommendationCategory = "SPACE_UTILIZATION"
)

// Recommendation is a single actionable suggestion derived from snapshot data.
type Recommendation struct {
	Priority        RecommendationPriority `json:"priority"`
	Category        RecommendationCategory `json:"category"`
	Message         string                 `json:"message"`
	Action          string                 `json:"action"`
	Region          string                 `json:"region,omitempty"`
	EstimatedImpact string                 `json:"estimatedImpact,omitempty"`
}
