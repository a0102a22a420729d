package format

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	kb = 1024
	mb = kb * 1024
	gb = mb * 1024
	tb = gb * 1024
)

// FormatBytes formats a byte count into a human-readable string with 1 decimal place.
// Thresholds: <1KB → B, <1MB → KB, <1GB → MB, <1TB → GB, else TB.
func FormatBytes(bytes int64) string {
	switch {
	case bytes < kb:
		return fmt.Sprintf("%d B", bytes)
	case bytes < mb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/kb)
	case bytes < gb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/mb)
	case bytes < tb:
		return fmt.Sprintf("%.1f GB", float64(bytes)/gb)
	default:
		return fmt.Sprintf("%.1f TB", float64(bytes)/tb)
	}
}

// FormatSize is FormatBytes for unsigned sizes. Values above math.MaxInt64
// are clamped.
func FormatSize(bytes uint64) string {
	if bytes > math.MaxInt64 {
		bytes = math.MaxInt64
	}
	return FormatBytes(int64(bytes))
}

// ToMB converts bytes to mebibytes.
func ToMB(bytes float64) float64 {
	return bytes / mb
}

// FormatMB formats a byte count as mebibytes with 2 decimal places, e.g. "12.50 MB".
func FormatMB(bytes float64) string {
	return fmt.Sprintf("%.2f MB", ToMB(bytes))
}

// FormatDelta formats a signed byte delta with an explicit sign.
// Example: 1572864 → "+1.5 MB", -2048 → "-2.0 KB", 0 → "0 B".
func FormatDelta(delta int64) string {
	switch {
	case delta > 0:
		return "+" + FormatBytes(delta)
	case delta < 0:
		if delta == math.MinInt64 {
			delta++
		}
		return "-" + FormatBytes(-delta)
	default:
		return "0 B"
	}
}

// FormatGrowthRate formats a heap growth rate given in bytes per second as
// a signed per-minute figure, e.g. "+1.2 MB/min".
// NaN and infinities return "---".
func FormatGrowthRate(bytesPerSec float64) string {
	if math.IsNaN(bytesPerSec) || math.IsInf(bytesPerSec, 0) {
		return "---"
	}
	perMin := bytesPerSec * 60
	if perMin > math.MaxInt64 || perMin < -math.MaxInt64 {
		return "---"
	}
	return FormatDelta(int64(math.Round(perMin))) + "/min"
}

// FormatNumber formats an integer with locale-style comma separators.
// Example: 12345678 → "12,345,678".
// Uses strconv.FormatInt directly to avoid abs64 overflow for math.MinInt64.
func FormatNumber(n int64) string {
	s := strconv.FormatInt(n, 10)
	if n < 0 {
		// s starts with "-"; strip it, insert commas, restore sign.
		return "-" + insertCommas(s[1:])
	}
	return insertCommas(s)
}

// FormatPercent formats a percentage with one decimal place.
// Example: 34.5 → "34.5%".
func FormatPercent(p float64) string {
	return fmt.Sprintf("%.1f%%", p)
}

// ParseHumanBytes parses sizes such as "512b", "100mb", "20.4gb" or a plain
// integer byte count. Returns 0 for empty or unparseable input.
func ParseHumanBytes(s string) int64 {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0
	}
	units := []struct {
		suffix string
		mult   float64
	}{
		{"tb", tb},
		{"gb", gb},
		{"mb", mb},
		{"kb", kb},
		{"b", 1},
	}
	mult := 1.0
	for _, u := range units {
		if strings.HasSuffix(s, u.suffix) {
			s = strings.TrimSuffix(s, u.suffix)
			mult = u.mult
			break
		}
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f < 0 {
		return 0
	}
	return int64(math.Round(f * mult))
}

// insertCommas inserts comma separators into a digit string every 3 digits from the right.
func insertCommas(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}
	var buf strings.Builder
	lead := n % 3
	if lead > 0 {
		buf.WriteString(s[:lead])
	}
	for i := lead; i < n; i += 3 {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(s[i : i+3])
	}
	return buf.String()
}
