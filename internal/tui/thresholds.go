package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/dm/memwatch/internal/config"
	"github.com/dm/memwatch/internal/model"
)

// severity represents the alert level for a displayed value.
type severity int

const (
	severityNormal   severity = iota
	severityWarning           // yellow
	severityCritical          // red
)

const bytesPerMB = 1 << 20

// tierSeverity compares a byte value against megabyte limits, strictly.
func tierSeverity(value, warnMB, critMB uint64) severity {
	switch {
	case value > critMB*bytesPerMB:
		return severityCritical
	case value > warnMB*bytesPerMB:
		return severityWarning
	default:
		return severityNormal
	}
}

// heapSeverity grades heapUsed against the configured heap limits.
func heapSeverity(heapUsed uint64, t config.Thresholds) severity {
	return tierSeverity(heapUsed, t.WarningHeapMB, t.CriticalHeapMB)
}

// rssSeverity grades RSS against the configured RSS limits.
func rssSeverity(rss uint64, t config.Thresholds) severity {
	return tierSeverity(rss, t.WarningRssMB, t.CriticalRssMB)
}

// utilizationSeverity returns Warning above 80% and Critical above 90%.
func utilizationSeverity(pct float64) severity {
	switch {
	case pct > 90:
		return severityCritical
	case pct > 80:
		return severityWarning
	default:
		return severityNormal
	}
}

// leakSeverity maps a leak analysis onto the display scale.
func leakSeverity(a model.LeakAnalysis) severity {
	if !a.LeakDetected {
		return severityNormal
	}
	if a.Severity.Rank() >= model.LeakSeverityHigh.Rank() {
		return severityCritical
	}
	return severityWarning
}

// severityToStyle maps a severity level to the appropriate lipgloss style.
func severityToStyle(s severity) lipgloss.Style {
	switch s {
	case severityWarning:
		return StyleYellow
	case severityCritical:
		return StyleRed
	default:
		return lipgloss.NewStyle()
	}
}

// severityFg returns the card foreground for s.
func severityFg(s severity) lipgloss.Color {
	switch s {
	case severityWarning:
		return colorYellow
	case severityCritical:
		return colorRed
	default:
		return colorGreen
	}
}

// titleStyle dims card titles unless the value needs attention.
func titleStyle(s severity) lipgloss.Style {
	if s == severityNormal {
		return StyleDim
	}
	return severityToStyle(s).Bold(true)
}
