package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/dm/memwatch/internal/format"
	"github.com/dm/memwatch/internal/model"
)

// renderMetricCard renders a single metric card with title, value, and sparkline.
//
// Layout (3 rows inside a rounded border):
//
//	╭──────────────────╮
//	│ Title            │   ← titleStyle (normally dim; yellow/red when a threshold is exceeded)
//	│ 128.4 MB         │   ← bold, metric color
//	│ ▁▂▃▅▇█▇▅▃▂       │   ← colored sparkline
//	╰──────────────────╯
func renderMetricCard(title, value string, sparkValues []float64, cardWidth int, color lipgloss.Color, titleStyle lipgloss.Style) string {
	const minCardWidth = 8
	cardWidth = max(cardWidth, minCardWidth)

	// Inner width = card width minus border (2) and padding (2).
	innerWidth := max(cardWidth-6, 1)

	valueStyle := lipgloss.NewStyle().Bold(true).Foreground(color)
	sparkLine := RenderSparkline(sparkValues, innerWidth, color)

	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorGray).
		Padding(0, 1).
		Width(cardWidth - 4)

	return cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(title),
		valueStyle.Render(value),
		sparkLine,
	))
}

// seriesOf extracts one metric from the sample history, oldest first.
func seriesOf(history []model.MemorySample, pick func(model.MemorySample) float64) []float64 {
	out := make([]float64, len(history))
	for i, s := range history {
		out[i] = pick(s)
	}
	return out
}

// metricCards builds the four history cards at the given width.
func metricCards(app *App, cardWidth int) []string {
	st := app.state
	s := st.Latest
	t := app.cfg.Thresholds
	h := st.History

	heapSev := heapSeverity(s.HeapUsed, t)
	rssSev := rssSeverity(s.RSS, t)
	utilSev := utilizationSeverity(s.HeapUtilization())

	return []string{
		renderMetricCard("Heap Used", format.FormatSize(s.HeapUsed),
			seriesOf(h, func(m model.MemorySample) float64 { return float64(m.HeapUsed) }),
			cardWidth, colorGreen, titleStyle(heapSev)),
		renderMetricCard("RSS", format.FormatSize(s.RSS),
			seriesOf(h, func(m model.MemorySample) float64 { return float64(m.RSS) }),
			cardWidth, colorCyan, titleStyle(rssSev)),
		renderMetricCard("External", format.FormatSize(s.External),
			seriesOf(h, func(m model.MemorySample) float64 { return float64(m.External) }),
			cardWidth, colorPurple, StyleDim),
		renderMetricCard("Heap Utilization", format.FormatPercent(s.HeapUtilization()),
			seriesOf(h, func(m model.MemorySample) float64 { return m.HeapUtilization() }),
			cardWidth, colorYellow, titleStyle(utilSev)),
	}
}

// renderMetricsRow renders the four history cards under a "Memory History"
// label. Wide terminals (>= 80 cols) get a 1x4 row, narrow ones a 2x2 grid.
// Returns empty string when no data is available.
func renderMetricsRow(app *App) string {
	if app.state == nil || !app.state.HasSample {
		return ""
	}

	if app.width > 0 && app.width < 80 {
		// Each card renders at cardWidth-2 chars, so two fill the width at (w+4)/2.
		cardWidth := (app.width + 4) / 2
		if cardWidth < 8 {
			return ""
		}
		label := StyleDim.MaxWidth(app.width).Render("Memory History")
		cards := metricCards(app, cardWidth)
		top := lipgloss.JoinHorizontal(lipgloss.Top, cards[0], cards[1])
		bottom := lipgloss.JoinHorizontal(lipgloss.Top, cards[2], cards[3])
		return lipgloss.JoinVertical(lipgloss.Left, label, top, bottom)
	}

	cardWidth := max((app.width+8)/4, 20)
	row := lipgloss.JoinHorizontal(lipgloss.Top, metricCards(app, cardWidth)...)
	return lipgloss.JoinVertical(lipgloss.Left, StyleDim.Render("Memory History"), row)
}
