package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// sparkBlocks is the 8-level block character set for sparklines.
var sparkBlocks = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// RenderSparkline converts values into a block sparkline of exactly width
// characters. Memory series rarely start near zero, so bars are scaled
// between the smallest and largest value in view.
//
// Rules:
//   - Empty values → width spaces
//   - Negative values mean "no data" and render at floor level
//   - Values longer than width → last width values
//   - Fewer values than width → left-padded with spaces
//   - A flat non-zero series renders at full height; all zeros at floor
func RenderSparkline(values []float64, width int, color lipgloss.Color) string {
	if width <= 0 {
		return ""
	}
	if len(values) == 0 {
		return strings.Repeat(" ", width)
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}

	lo, hi := -1.0, -1.0
	for _, v := range values {
		if v < 0 {
			continue
		}
		if lo < 0 || v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	var sb strings.Builder
	sb.WriteString(strings.Repeat(" ", width-len(values)))
	for _, v := range values {
		sb.WriteRune(sparkBlocks[sparkLevel(v, lo, hi)])
	}
	return lipgloss.NewStyle().Foreground(color).Render(sb.String())
}

// sparkLevel maps v onto [0, 7] given the visible range [lo, hi].
func sparkLevel(v, lo, hi float64) int {
	switch {
	case v < 0 || hi <= 0:
		return 0
	case hi == lo:
		return len(sparkBlocks) - 1
	}
	idx := int((v - lo) / (hi - lo) * 7)
	return max(0, min(idx, 7))
}
