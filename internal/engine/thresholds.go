package engine

import (
	"fmt"

	"github.com/dm/memwatch/internal/config"
	"github.com/dm/memwatch/internal/format"
	"github.com/dm/memwatch/internal/model"
)

const bytesPerMB = 1 << 20

// EvaluateThresholds checks heapUsed and RSS against their two-tier limits.
// At most one alert is raised per metric: critical supersedes warning. A
// value equal to a limit does not breach it.
func EvaluateThresholds(s model.MemorySample, t config.Thresholds) []model.Alert {
	var alerts []model.Alert
	if a, ok := evaluateMetric(s, model.MetricHeapUsed, s.HeapUsed, t.WarningHeapMB, t.CriticalHeapMB); ok {
		alerts = append(alerts, a)
	}
	if a, ok := evaluateMetric(s, model.MetricRSS, s.RSS, t.WarningRssMB, t.CriticalRssMB); ok {
		alerts = append(alerts, a)
	}
	return alerts
}

func evaluateMetric(s model.MemorySample, metric string, value, warnMB, critMB uint64) (model.Alert, bool) {
	var (
		severity model.AlertSeverity
		limit    uint64
	)
	switch {
	case value > critMB*bytesPerMB:
		severity, limit = model.AlertCritical, critMB*bytesPerMB
	case value > warnMB*bytesPerMB:
		severity, limit = model.AlertWarning, warnMB*bytesPerMB
	default:
		return model.Alert{}, false
	}
	return model.Alert{
		Severity:  severity,
		Metric:    metric,
		Value:     value,
		Threshold: limit,
		Message:   fmt.Sprintf("%s %s: %s exceeds %s", metric, severity, format.FormatMB(float64(value)), format.FormatMB(float64(limit))),
		Timestamp: s.Timestamp,
	}, true
}
