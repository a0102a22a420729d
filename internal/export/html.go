package export

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/dm/memwatch/internal/format"
	"github.com/dm/memwatch/internal/model"
)

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"mb":      func(b uint64) string { return format.FormatMB(float64(b)) },
	"pct":     format.FormatPercent,
	"lower":   func(p model.RecommendationPriority) string { return strings.ToLower(string(p)) },
	"stamp":   func(r model.Report) string { return r.Timestamp.Format("2006-01-02 15:04:05 MST") },
	"trendOf": func(r model.Report) string { return string(r.Summary.Trend.Trend) },
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Memory analysis report - {{stamp .}}</title>
<style>
body { font-family: Arial, sans-serif; margin: 20px; }
.header { background: #f0f0f0; padding: 15px; border-radius: 5px; }
.metric { margin: 10px 0; }
.medium, .increasing { color: #ff6600; font-weight: bold; }
.critical, .high { color: #cc0000; font-weight: bold; }
.low, .stable, .decreasing { color: #009900; font-weight: bold; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ddd; padding: 8px; text-align: left; }
th { background-color: #f2f2f2; }
</style>
</head>
<body>
<div class="header">
<h1>Memory analysis report</h1>
<p>Generated: {{stamp .}}</p>
{{- if .Source}}
<p>Source: {{.Source}}</p>
{{- end}}
<p>Snapshots: {{.Summary.TotalSnapshots}}</p>
</div>

<div class="metric">
<h2>Summary</h2>
<p>Heap used: {{mb .Summary.CurrentHeapUsed}}</p>
<p>Heap total: {{mb .Summary.CurrentHeapTotal}}</p>
<p>Utilization: {{pct .Summary.HeapUtilization}}</p>
<p>Trend: <span class="{{trendOf .}}">{{trendOf .}}</span></p>
</div>

{{- if .Detailed.Analysis}}
<div class="metric">
<h2>Regions</h2>
<table>
<tr><th>Region</th><th>Utilization</th><th>Fragmentation</th><th>Advice</th></tr>
{{- range .Detailed.Analysis}}
<tr><td>{{.Name}}</td><td>{{pct .UtilizationRate}}</td><td>{{pct .FragmentationRate}}</td><td>{{.Recommendation.Description}}</td></tr>
{{- end}}
</table>
</div>
{{- end}}

<div class="metric">
<h2>Recent activity</h2>
<table>
<tr><th>#</th><th>Label</th><th>Heap used</th><th>Heap total</th></tr>
{{- range .RecentActivity}}
<tr><td>{{.ID}}</td><td>{{.Label}}</td><td>{{mb .HeapUsed}}</td><td>{{mb .HeapTotal}}</td></tr>
{{- end}}
</table>
</div>

<div class="metric">
<h2>Recommendations</h2>
{{- range .Recommendations}}
<div class="{{lower .Priority}}">
<strong>{{.Priority}}</strong> - {{.Message}}<br>Action: {{.Action}}
</div>
{{- else}}
<p>No recommendations.</p>
{{- end}}
</div>

<div class="metric">
<h2>Next actions</h2>
<ul>
{{- range .NextActions}}
<li>{{.}}</li>
{{- end}}
</ul>
</div>
</body>
</html>
`))

func renderHTML(r model.Report) ([]byte, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
