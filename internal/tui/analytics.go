package tui

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/dm/memwatch/internal/format"
	"github.com/dm/memwatch/internal/model"
)

// categoryLabel returns the display name for a recommendation category.
func categoryLabel(cat model.RecommendationCategory) string {
	switch cat {
	case model.CategoryMemoryPressure:
		return "Memory Pressure"
	case model.CategoryMemoryGrowth:
		return "Memory Growth"
	case model.CategoryMemoryAnomalies:
		return "Anomalies"
	case model.CategorySpaceUtilization:
		return "Space Utilization"
	default:
		return "Other"
	}
}

// priorityBadge returns a colored, fixed-width badge for the given priority.
func priorityBadge(p model.RecommendationPriority) string {
	switch p {
	case model.PriorityCritical:
		return StyleRed.Bold(true).Render("[CRITICAL]")
	case model.PriorityHigh:
		return StyleOrange.Bold(true).Render("[HIGH]    ")
	case model.PriorityMedium:
		return StyleYellow.Bold(true).Render("[MEDIUM]  ")
	default:
		return StyleGreen.Bold(true).Render("[LOW]     ")
	}
}

// patternLabel returns the display name for a leak pattern.
func patternLabel(t model.LeakPatternType) string {
	switch t {
	case model.PatternContinuousGrowth:
		return "Continuous growth"
	case model.PatternNoStabilization:
		return "No stabilization"
	case model.PatternExponentialGrowth:
		return "Exponential growth"
	case model.PatternUnsafeAccumulation:
		return "Unsafe accumulation"
	default:
		return string(t)
	}
}

// wrapText wraps text at maxWidth rune-columns, breaking at word boundaries.
// Returns the original string unchanged when it fits within maxWidth.
func wrapText(text string, maxWidth int) string {
	if maxWidth <= 0 || utf8.RuneCountInString(text) <= maxWidth {
		return text
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return text
	}
	var lines []string
	var current strings.Builder
	var currentLen int // rune count of current line
	for _, word := range words {
		wordLen := utf8.RuneCountInString(word)
		switch {
		case currentLen == 0:
			current.WriteString(word)
			currentLen = wordLen
		case currentLen+1+wordLen <= maxWidth:
			current.WriteByte(' ')
			current.WriteString(word)
			currentLen += 1 + wordLen
		default:
			lines = append(lines, current.String())
			current.Reset()
			current.WriteString(word)
			currentLen = wordLen
		}
	}
	if currentLen > 0 {
		lines = append(lines, current.String())
	}
	return strings.Join(lines, "\n")
}

func sectionHeader(title string) []string {
	return []string{"", "  " + StyleDim.Bold(true).Underline(true).Render(title)}
}

// wrapped appends text wrapped under an indent.
func wrapped(lines []string, indent, text string, width int) []string {
	for _, l := range strings.Split(wrapText(text, width-len(indent)-2), "\n") {
		lines = append(lines, indent+l)
	}
	return lines
}

// leakLines renders the leak section.
func leakLines(st *StateMsg, width int) []string {
	lines := sectionHeader("Leak Detection")
	switch {
	case st.LeakErr != nil:
		lines = wrapped(lines, "  ", st.LeakErr.Error(), width)
	case !st.Leak.Sufficient():
		lines = append(lines, "  "+StyleDim.Render(fmt.Sprintf("%s (%d samples)", st.Leak.Message, st.Leak.SampleCount)))
	case !st.Leak.LeakDetected:
		lines = append(lines, "  "+StyleGreen.Bold(true).Render(fmt.Sprintf("No leak patterns across %d samples", st.Leak.SampleCount)))
	default:
		head := fmt.Sprintf("Leak suspected: %s severity, %.0f%% confidence",
			strings.ToUpper(string(st.Leak.Severity)), st.Leak.Confidence*100)
		lines = append(lines, "  "+StatusStyle(leakSeverity(st.Leak)).Render(head))
		for _, p := range st.Leak.Patterns {
			lines = append(lines, fmt.Sprintf("    • %s %s", patternLabel(p.Type), StyleDim.Render(fmt.Sprintf("(+%.2f)", p.Weight))))
			if d := patternDetails(p.Details); d != "" {
				lines = wrapped(lines, "      ", d, width)
			}
		}
	}
	return lines
}

// patternDetails formats pattern evidence in key order.
func patternDetails(details map[string]float64) string {
	if len(details) == 0 {
		return ""
	}
	names := make([]string, 0, len(details))
	for k := range details {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, k := range names {
		parts[i] = fmt.Sprintf("%s=%.2f", k, details[k])
	}
	return strings.Join(parts, "  ")
}

// trendLines renders the trend section.
func trendLines(st *StateMsg) []string {
	lines := sectionHeader("Heap Trend")
	t := st.Trend
	if !t.Sufficient() {
		msg := t.Message
		if msg == "" {
			msg = "no trend data yet"
		}
		return append(lines, "  "+StyleDim.Render(msg))
	}
	lines = append(lines, fmt.Sprintf("  %s over %d snapshots, confidence %.0f%%",
		trendLabel(t), t.SampleCount, t.Confidence*100))
	lines = append(lines, fmt.Sprintf("  start %s  end %s  peak %s",
		format.FormatSize(t.StartValue), format.FormatSize(t.EndValue), format.FormatSize(t.PeakValue)))
	if p := t.Predictions; p != nil {
		// The ten-minute projection is linear from the end value.
		rate := (p.InTenMinutes - float64(t.EndValue)) / 600
		line := fmt.Sprintf("  rate %s, projected %s in 10m, %s in 1h",
			format.FormatGrowthRate(rate), format.FormatMB(p.InTenMinutes), format.FormatMB(p.InOneHour))
		if p.RiskOfOOM {
			line += "  " + StyleRed.Bold(true).Render("OOM RISK")
		}
		lines = append(lines, line)
	}
	if n := len(t.Anomalies); n > 0 {
		lines = append(lines, "  "+StyleYellow.Render(fmt.Sprintf("%d sudden change(s) in window", n)))
	}
	return lines
}

// recommendationLines renders recommendations grouped by category.
func recommendationLines(recs []model.Recommendation, width int) []string {
	lines := sectionHeader("Recommendations")
	if len(recs) == 0 {
		return append(lines, "  "+StyleGreen.Bold(true).Render("No issues found, heap looks healthy"))
	}
	categories := []model.RecommendationCategory{
		model.CategoryMemoryPressure,
		model.CategoryMemoryGrowth,
		model.CategoryMemoryAnomalies,
		model.CategorySpaceUtilization,
	}
	for _, cat := range categories {
		var catRecs []model.Recommendation
		for _, r := range recs {
			if r.Category == cat {
				catRecs = append(catRecs, r)
			}
		}
		if len(catRecs) == 0 {
			continue
		}
		lines = append(lines, "  "+StyleDim.Render(categoryLabel(cat)))
		for _, r := range catRecs {
			lines = append(lines, fmt.Sprintf("  %s %s", priorityBadge(r.Priority), sanitize(r.Message)))
			if r.Action != "" {
				lines = wrapped(lines, "    ", "→ "+sanitize(r.Action), width)
			}
		}
	}
	return lines
}

// buildAnalyticsLines returns the full list of rendered content lines for the
// analysis view. Shared by rendering and the scroll bound in Update().
func buildAnalyticsLines(st *StateMsg, width int) []string {
	if st == nil {
		return []string{"", "  " + StyleDim.Render("Waiting for the first sample...")}
	}
	var lines []string
	lines = append(lines, leakLines(st, width)...)
	lines = append(lines, trendLines(st)...)
	lines = append(lines, recommendationLines(st.Recommendations, width)...)
	if len(st.NextActions) > 0 {
		lines = append(lines, sectionHeader("Next Actions")...)
		for i, a := range st.NextActions {
			lines = wrapped(lines, "  ", fmt.Sprintf("%d. %s", i+1, a), width)
		}
	}
	return lines
}

// renderAnalyticsTitle renders the title bar for the analysis screen. Both
// renderAnalytics and analyticsMaxOffset measure it, since it can wrap on
// narrow terminals.
func renderAnalyticsTitle(width int) string {
	const titleText = "Analysis · Leaks, Trend and Recommendations"
	hintText := StyleDim.Render("[a/esc: back]")
	innerWidth := width - 2 // StyleHeader has Padding(0,1) -> 1 char per side
	gap := max(innerWidth-lipgloss.Width(titleText)-lipgloss.Width(hintText), 1)
	titleRow := titleText + strings.Repeat(" ", gap) + hintText
	return StyleHeader.Width(width).MaxWidth(width).Render(titleRow)
}

// analyticsLayout returns the content lines and the number of rows available
// for them below the header and title and above the footer.
func analyticsLayout(app *App) (lines []string, contentH int, overflows bool) {
	width := app.width
	if width <= 0 {
		width = 80
	}
	height := app.height
	if height <= 0 {
		height = 24
	}
	headerH := renderedHeight(renderHeader(app))
	titleH := renderedHeight(renderAnalyticsTitle(width))
	footerH := renderedHeight(renderFooter(app))
	availH := max(height-headerH-titleH-footerH, 1)

	lines = buildAnalyticsLines(app.state, width)
	overflows = len(lines) > availH
	contentH = availH
	// Reserve the last row for a scroll hint.
	if overflows && contentH > 1 {
		contentH--
	}
	return lines, contentH, overflows
}

// analyticsMaxOffset returns the largest valid scroll offset. Update clamps
// against it so the stored offset never runs past the content.
func analyticsMaxOffset(app *App) int {
	lines, contentH, _ := analyticsLayout(app)
	return max(len(lines)-contentH, 0)
}

// analyticsScrollOffset returns the stored offset clamped to the content.
func analyticsScrollOffset(app *App) int {
	return max(0, min(app.analyticsScroll, analyticsMaxOffset(app)))
}

// renderAnalytics renders the analysis title bar followed by the scrollable
// content. View renders the header above and footer below.
func renderAnalytics(app *App) string {
	width := app.width
	if width <= 0 {
		width = 80
	}
	titleBar := renderAnalyticsTitle(width)

	lines, contentH, overflows := analyticsLayout(app)
	maxOffset := max(len(lines)-contentH, 0)
	offset := analyticsScrollOffset(app)

	end := min(offset+contentH, len(lines))
	var visible []string
	if offset < len(lines) {
		visible = append(visible, lines[offset:end]...)
	}
	for len(visible) < contentH {
		visible = append(visible, "")
	}

	if overflows {
		var hint string
		switch {
		case offset == 0:
			hint = "  ↓ scroll for more"
		case offset >= maxOffset:
			hint = "  ↑ scroll up"
		default:
			hint = "  ↑↓ scroll"
		}
		visible = append(visible, StyleDim.Render(hint))
	}

	return titleBar + "\n" + strings.Join(visible, "\n")
}
