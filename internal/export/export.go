// Package export renders analysis reports as JSON, CSV or HTML documents.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dm/memwatch/internal/model"
)

// Format is an output document type.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatHTML Format = "html"
)

// ParseFormat maps a user-supplied name onto a Format. Unknown names fall
// back to JSON.
func ParseFormat(s string) Format {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatCSV:
		return FormatCSV
	case FormatHTML:
		return FormatHTML
	default:
		return FormatJSON
	}
}

// Ext returns the file extension for f, including the dot.
func (f Format) Ext() string {
	return "." + string(f)
}

// ContentType returns the MIME type served for f.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatHTML:
		return "text/html; charset=utf-8"
	default:
		return "application/json"
	}
}

// Export is a rendered document ready to be written or served.
type Export struct {
	Format   Format
	Filename string
	Content  []byte
}

// CSVHeader is the first row of every CSV export.
var CSVHeader = []string{"Timestamp", "Heap Used (MB)", "Heap Total (MB)", "Utilization %", "Trend", "Confidence"}

// Build renders report in the named format. snaps are the retained
// snapshots, oldest first, and become the CSV rows. An empty filename is
// replaced by a generated one.
func Build(format, filename string, report model.Report, snaps []model.Snapshot) (Export, error) {
	f := ParseFormat(format)

	var (
		content []byte
		err     error
	)
	switch f {
	case FormatCSV:
		content, err = renderCSV(snaps)
	case FormatHTML:
		content, err = renderHTML(report)
	default:
		content, err = json.MarshalIndent(report, "", "  ")
	}
	if err != nil {
		return Export{}, fmt.Errorf("render %s: %w", f, err)
	}

	return Export{
		Format:   f,
		Filename: Filename(f, filename, report.Timestamp),
		Content:  content,
	}, nil
}

// Filename returns name with f's extension appended when missing, or
// heap-analysis-<timestamp><ext> when name is empty.
func Filename(f Format, name string, at time.Time) string {
	if name == "" {
		stamp := strings.NewReplacer(":", "-", ".", "-").Replace(at.UTC().Format("2006-01-02T15:04:05.000Z"))
		return "heap-analysis-" + stamp + f.Ext()
	}
	if !strings.HasSuffix(name, f.Ext()) {
		name += f.Ext()
	}
	return name
}

// WriteFile writes e into dir and returns the resulting path.
func WriteFile(dir string, e Export) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(dir, e.Filename)
	if err := os.WriteFile(path, e.Content, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

func renderCSV(snaps []model.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(CSVHeader); err != nil {
		return nil, err
	}
	for _, s := range snaps {
		row := []string{
			s.Timestamp.UTC().Format(time.RFC3339Nano),
			fmt.Sprintf("%.2f", float64(s.HeapUsed)/(1<<20)),
			fmt.Sprintf("%.2f", float64(s.HeapTotal)/(1<<20)),
			fmt.Sprintf("%.2f", s.HeapUtilization()),
			s.Label,
			"N/A",
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
