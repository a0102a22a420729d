package engine

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/dm/memwatch/internal/export"
	"github.com/dm/memwatch/internal/model"
)

// recentActivityLimit bounds the snapshots listed and compared in a report.
const recentActivityLimit = 10

// GenerateDetailedReport assembles a report from the retained snapshots.
func (a *Analyzer) GenerateDetailedReport() (model.Report, error) {
	snaps := a.Snapshots()
	if len(snaps) == 0 {
		return model.Report{}, ErrNoSnapshotsAvailable
	}
	return a.buildReport(snaps), nil
}

// ExportData renders the current report as json, csv or html. Unknown
// formats render JSON. An empty filename is generated from the report time.
func (a *Analyzer) ExportData(format, filename string) (export.Export, error) {
	snaps := a.Snapshots()
	if len(snaps) == 0 {
		return export.Export{}, fmt.Errorf("export: %w", ErrNoSnapshotsAvailable)
	}
	return export.Build(format, filename, a.buildReport(snaps), snaps)
}

// buildReport works on a copy of the buffer; snaps is non-empty.
func (a *Analyzer) buildReport(snaps []model.Snapshot) model.Report {
	now := a.now()
	current := snaps[len(snaps)-1]
	trend := analyzeTrends(snaps, a.trendWindow, now)

	recent := snaps
	if len(recent) > recentActivityLimit {
		recent = recent[len(recent)-recentActivityLimit:]
	}

	report := model.Report{
		ID:        uuid.NewString(),
		Timestamp: now,
		Source:    a.source.Name(),
		Summary: model.ReportSummary{
			TotalSnapshots:   len(snaps),
			CurrentHeapUsed:  current.HeapUsed,
			CurrentHeapTotal: current.HeapTotal,
			HeapUtilization:  current.HeapUtilization(),
			Trend:            trend,
		},
		Detailed: model.ReportDetail{
			Regions:    current.Regions,
			Statistics: current.Statistics,
			Analysis:   current.Analysis,
		},
		RecentActivity:  make([]model.SnapshotSummary, 0, len(recent)),
		Comparisons:     make([]model.Comparison, 0, len(recent)),
		Recommendations: globalRecommendations(current, trend),
		NextActions:     nextActions(trend),
	}
	for i, s := range recent {
		report.RecentActivity = append(report.RecentActivity, s.Summary())
		if i > 0 {
			report.Comparisons = append(report.Comparisons, compareSnapshots(recent[i-1], s))
		}
	}
	return report
}

// globalRecommendations derives report-level advice from the newest
// snapshot and the current trend, most urgent first.
func globalRecommendations(current model.Snapshot, trend model.TrendAnalysis) []model.Recommendation {
	recs := []model.Recommendation{}

	switch util := current.HeapUtilization(); {
	case util > 90:
		recs = append(recs, model.Recommendation{
			Priority:        model.PriorityCritical,
			Category:        model.CategoryMemoryPressure,
			Message:         fmt.Sprintf("Critical heap utilization (%.1f%%)", util),
			Action:          "Free memory immediately and look for leaks",
			EstimatedImpact: "high",
		})
	case util > 80:
		recs = append(recs, model.Recommendation{
			Priority:        model.PriorityHigh,
			Category:        model.CategoryMemoryPressure,
			Message:         fmt.Sprintf("High heap utilization (%.1f%%)", util),
			Action:          "Monitor and optimise memory allocations",
			EstimatedImpact: "medium",
		})
	}

	if trend.Trend == model.TrendIncreasing && trend.Confidence > predictionConfidence {
		impact := "high"
		if trend.Predictions != nil && trend.Predictions.RiskOfOOM {
			impact = "critical"
		}
		recs = append(recs, model.Recommendation{
			Priority:        model.PriorityHigh,
			Category:        model.CategoryMemoryGrowth,
			Message:         "Continuous memory growth detected",
			Action:          "Analyse allocation patterns and check for leaks",
			EstimatedImpact: impact,
		})
	}

	if n := len(trend.Anomalies); n > 0 {
		recs = append(recs, model.Recommendation{
			Priority:        model.PriorityMedium,
			Category:        model.CategoryMemoryAnomalies,
			Message:         fmt.Sprintf("%d memory anomalies detected", n),
			Action:          "Investigate the events behind sudden memory changes",
			EstimatedImpact: "low",
		})
	}
	return recs
}

// nextActions lists follow-ups for the operator, most specific first.
func nextActions(trend model.TrendAnalysis) []string {
	var actions []string
	if trend.Trend == model.TrendIncreasing && trend.Confidence > 0.8 {
		actions = append(actions,
			"Capture heap profiles for in-depth analysis",
			"Review recent allocations",
			"Check object creation and release patterns",
		)
	}
	if len(trend.Anomalies) > 2 {
		actions = append(actions,
			"Correlate anomalies with application events",
			"Identify the operations causing memory spikes",
		)
	}
	return append(actions,
		"Keep monitoring to collect more data",
		"Configure alerts for critical thresholds",
	)
}
