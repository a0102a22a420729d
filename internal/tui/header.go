package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/dm/memwatch/internal/telemetry"
)

// renderHeader renders the top header bar with source name, leak status and
// timing info.
//
// Layout:
//
//	left:   source name
//	center: "● NO LEAK", "● LEAK HIGH (70%)", "● COLLECTING" or "● SOURCE ERROR  <error>"
//	right:  "Last: HH:MM:SS  Sample: Ns" (or "Press r to retry" on error)
func renderHeader(app *App) string {
	width := app.width
	if width <= 0 {
		width = 80
	}

	left := "memwatch"
	if app.analyzer != nil {
		left = "memwatch · " + sanitize(app.analyzer.SourceName())
	}

	var center, right string
	if app.lastError != nil {
		center = StyleError.Render("● SOURCE ERROR  " + classifyError(app.lastError))
		right = StyleError.Render("Press r to retry")
	} else {
		center = leakStatus(app.state)
		lastStr := "waiting..."
		if !app.lastUpdated.IsZero() {
			lastStr = app.lastUpdated.Format("15:04:05")
		}
		right = StyleDim.Render(fmt.Sprintf("Last: %s  Sample: %s", lastStr, formatDuration(app.cfg.SampleInterval())))
	}

	// StyleHeader has Padding(0, 1) so inner content width = total width - 2.
	row := fitHeaderRow(left, center, right, width-2)
	return StyleHeader.Width(width).MaxWidth(width).Render(row)
}

// fitHeaderRow lays out left, center and right across innerWidth columns on
// a single line. When space runs out the left label is truncated first, then
// the right section is dropped, then the center is truncated.
func fitHeaderRow(left, center, right string, innerWidth int) string {
	const minLeft = 4
	innerWidth = max(innerWidth, 0)
	fixed := lipgloss.Width(center) + lipgloss.Width(right) + 2
	if lipgloss.Width(left)+fixed > innerWidth {
		if innerWidth-fixed >= minLeft {
			left = ansi.Truncate(left, innerWidth-fixed, "…")
		} else {
			right = ""
			fixed = lipgloss.Width(center) + 1
			left = ansi.Truncate(left, max(min(lipgloss.Width(left), innerWidth-fixed), minLeft), "…")
			center = ansi.Truncate(center, max(innerWidth-lipgloss.Width(left)-1, 0), "…")
		}
	}

	spacing := max(innerWidth-lipgloss.Width(left)-lipgloss.Width(center)-lipgloss.Width(right), 0)
	leftSpacing := spacing / 2
	rightSpacing := spacing - leftSpacing
	return left +
		strings.Repeat(" ", leftSpacing) +
		center +
		strings.Repeat(" ", rightSpacing) +
		right
}

// leakStatus renders the colored leak indicator for the latest state.
func leakStatus(st *StateMsg) string {
	if st == nil || st.LeakErr != nil || !st.Leak.Sufficient() {
		return StyleStatusUnknown.Render("● COLLECTING")
	}
	if !st.Leak.LeakDetected {
		return StatusStyle(severityNormal).Render("● NO LEAK")
	}
	text := fmt.Sprintf("● LEAK %s (%.0f%%)", strings.ToUpper(string(st.Leak.Severity)), st.Leak.Confidence*100)
	return StatusStyle(leakSeverity(st.Leak)).Render(text)
}

// formatDuration formats an interval as a compact string, e.g. "10s", "2m"
// or "1m30s". Sub-second intervals are shown in milliseconds.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	m := int(d / time.Minute)
	if sec := int((d % time.Minute) / time.Second); sec > 0 {
		return fmt.Sprintf("%dm%ds", m, sec)
	}
	return fmt.Sprintf("%dm", m)
}

// classifyError turns a source failure into a short header message.
func classifyError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, telemetry.ErrUnsupported) {
		return "Unsupported on this platform"
	}
	msg := err.Error()
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "permission denied"):
		return "Permission denied"
	case strings.Contains(lower, "no such file"), strings.Contains(lower, "no such process"):
		return "Process not found"
	case strings.Contains(lower, "deadline exceeded"), strings.Contains(lower, "timeout"):
		return "Timeout"
	}
	if len(msg) > 40 {
		return msg[:40] + "..."
	}
	return msg
}
