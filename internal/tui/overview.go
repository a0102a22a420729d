package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dm/memwatch/internal/format"
	"github.com/dm/memwatch/internal/model"
)

// renderOverview renders the 7-card overview bar.
// Wide terminals (>= 80 cols): all cards in a single horizontal row.
// Narrow terminals (< 80 cols): cards stacked in rows of 2 (2+2+2+1).
// Returns empty string until the first sample is available.
func renderOverview(app *App) string {
	if app.state == nil || !app.state.HasSample {
		return ""
	}

	width := app.width
	if width <= 0 {
		width = 80
	}
	const cardCount = 7
	narrowMode := width < 80

	var cardWidth int
	if narrowMode {
		cardWidth = max((width-4)/2, 10)
	} else {
		cardWidth = max((width-2*cardCount)/cardCount, 8)
	}
	barWidth := max(cardWidth-4, 4)

	st := app.state
	s := st.Latest
	t := app.cfg.Thresholds

	// Heap used, threshold-colored.
	heapSev := heapSeverity(s.HeapUsed, t)
	heapVal := format.FormatSize(s.HeapUsed)
	if heapSev == severityCritical {
		heapVal += "!"
	}
	heapCard := severityCardStyle().
		Foreground(severityFg(heapSev)).
		Width(cardWidth).
		Render(heapVal + "\nof " + format.FormatSize(s.HeapTotal) + "\nHeap Used")

	// Utilization with mini bar.
	pct := s.HeapUtilization()
	utilSev := utilizationSeverity(pct)
	utilCard := severityCardStyle().
		Foreground(severityFg(utilSev)).
		Width(cardWidth).
		Render(format.FormatPercent(pct) + "\n" + renderMiniBar(pct, barWidth) + "\nUtilization")

	// RSS, threshold-colored.
	rssSev := rssSeverity(s.RSS, t)
	rssCard := severityCardStyle().
		Foreground(severityFg(rssSev)).
		Width(cardWidth).
		Render(format.FormatSize(s.RSS) + "\nRSS")

	externalCard := StyleOverviewCard.
		Foreground(colorPurple).
		Width(cardWidth).
		Render(format.FormatSize(s.External) + "\nExternal")

	snapCard := StyleOverviewCard.
		Foreground(colorBlue).
		Width(cardWidth).
		Render(snapshotLabel(st) + "\nSnapshots")

	trendCard := StyleOverviewCard.
		Foreground(trendColor(st.Trend)).
		Width(cardWidth).
		Render(trendLabel(st.Trend) + "\nTrend")

	leakSev := leakSeverity(st.Leak)
	leakCard := severityCardStyle().
		Foreground(severityFg(leakSev)).
		Width(cardWidth).
		Render(leakLabel(st) + "\nLeak")

	if narrowMode {
		row1 := lipgloss.JoinHorizontal(lipgloss.Top, heapCard, utilCard)
		row2 := lipgloss.JoinHorizontal(lipgloss.Top, rssCard, externalCard)
		row3 := lipgloss.JoinHorizontal(lipgloss.Top, snapCard, trendCard)
		return lipgloss.JoinVertical(lipgloss.Left, row1, row2, row3, leakCard)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, heapCard, utilCard, rssCard, externalCard, snapCard, trendCard, leakCard)
}

// leakLabel is the compact leak verdict shown on the overview card.
func leakLabel(st *StateMsg) string {
	switch {
	case st.LeakErr != nil || !st.Leak.Sufficient():
		return "…"
	case !st.Leak.LeakDetected:
		return "none"
	default:
		return fmt.Sprintf("%s %.0f%%", strings.ToUpper(string(st.Leak.Severity)), st.Leak.Confidence*100)
	}
}

// trendLabel renders a trend with its change percentage.
func trendLabel(t model.TrendAnalysis) string {
	switch t.Trend {
	case model.TrendIncreasing:
		return fmt.Sprintf("▲ %+.1f%%", t.ChangePercent)
	case model.TrendDecreasing:
		return fmt.Sprintf("▼ %+.1f%%", t.ChangePercent)
	case model.TrendStable:
		return "■ stable"
	default:
		return "…"
	}
}

func trendColor(t model.TrendAnalysis) lipgloss.Color {
	switch {
	case t.Predictions != nil && t.Predictions.RiskOfOOM:
		return colorRed
	case t.Trend == model.TrendIncreasing:
		return colorYellow
	case t.Trend == model.TrendDecreasing:
		return colorCyan
	default:
		return colorGreen
	}
}

// renderMiniBar renders a mini progress bar using Unicode block characters.
// Fills proportionally using "█" (U+2588) for filled and "░" (U+2591) for empty cells.
func renderMiniBar(percent float64, width int) string {
	if width <= 0 {
		return ""
	}
	percent = max(0, min(percent, 100))
	filled := min(int(percent/100.0*float64(width)), width)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// snapshotLabel shows the retained count against the buffer capacity.
func snapshotLabel(st *StateMsg) string {
	if st.SnapshotCap <= 0 {
		return fmt.Sprintf("%d", st.Snapshots)
	}
	return fmt.Sprintf("%d/%d", st.Snapshots, st.SnapshotCap)
}
