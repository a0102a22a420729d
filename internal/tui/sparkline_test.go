package tui

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"

	"github.com/dm/memwatch/internal/model"
)

// testColor is a neutral color used for sparkline tests.
var testColor = lipgloss.Color("#ffffff")

func TestRenderSparkline(t *testing.T) {
	cases := []struct {
		name   string
		values []float64
		width  int
		want   string
	}{
		{"no history yet", nil, 6, "      "},
		{"empty history", []float64{}, 3, "   "},
		{"zero width", []float64{40, 41}, 0, ""},
		{"steady heap growth", []float64{40, 41, 42, 43, 44, 45, 46, 47}, 8, "▁▂▃▄▅▆▇█"},
		{"short history is left padded", []float64{120, 128}, 5, "   ▁█"},
		{"long history keeps newest", []float64{100, 101, 102, 103, 104, 105, 106, 107, 108, 109, 110, 111}, 4, "▁▃▅█"},
		{"idle heap renders full", []float64{64, 64, 64}, 3, "███"},
		{"empty external memory", []float64{0, 0, 0}, 3, "▁▁▁"},
		{"rss unavailable", []float64{-1, -1}, 2, "▁▁"},
		{"rss unavailable then read", []float64{-1, 300, 310}, 3, "▁▁█"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, stripANSI(RenderSparkline(tc.values, tc.width, testColor)))
		})
	}
}

func TestRenderSparkline_HeapHistory(t *testing.T) {
	history := []model.MemorySample{fixtureSample(50, 120), fixtureSample(55, 120), fixtureSample(60, 120)}
	heapMB := seriesOf(history, func(s model.MemorySample) float64 { return float64(s.HeapUsed) / mb })

	assert.Equal(t, []float64{50, 55, 60}, heapMB)
	assert.Equal(t, "▁▄█", stripANSI(RenderSparkline(heapMB, 3, testColor)))
}
