package report

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"time"

	"github.com/law-makers/psibatch/internal/lighthouse"
	"github.com/law-makers/psibatch/pkg/models"
)

var dashboard = template.Must(template.New("dashboard").Funcs(template.FuncMap{
	"score":       scoreCell,
	"metric":      metricCell,
	"devices":     func() []models.Device { return models.Devices },
	"categories":  func() []string { return models.Categories },
	"vitals":      func() []string { return coreMetrics },
	"label":       label,
	"avg":         average,
	"stamp":       func(t time.Time) string { return t.Format("January 2, 2006 at 15:04") },
	"deviceTitle": func(d models.Device) string { return deviceTitles[d] },
}).Parse(dashboardTemplate))

var coreMetrics = []string{models.MetricFCP, models.MetricLCP, models.MetricTBT, models.MetricCLS, models.MetricSI}

var deviceTitles = map[models.Device]string{
	models.DeviceMobile:  "Mobile",
	models.DeviceDesktop: "Desktop",
}

var labels = map[string]string{
	models.CategoryPerformance:   "Performance",
	models.CategoryAccessibility: "Accessibility",
	models.CategoryBestPractices: "Best Practices",
	models.CategorySEO:           "SEO",
	models.MetricFCP:             "FCP",
	models.MetricLCP:             "LCP",
	models.MetricTBT:             "TBT",
	models.MetricCLS:             "CLS",
	models.MetricSI:              "SI",
}

func label(key string) string {
	if l, ok := labels[key]; ok {
		return l
	}
	return key
}

func average(s Summary, d models.Device, category string) string {
	v, ok := s.Averages[d][category]
	if !ok {
		return "N/A"
	}
	return fmt.Sprintf("%.1f", v)
}

type cell struct {
	Text  string
	Class string
}

func scoreCell(item models.Item, d models.Device, category string) cell {
	dr := item.Result.Device(d)
	if dr == nil {
		return cell{Text: "N/A", Class: "na"}
	}
	v, ok := dr.Scores[category]
	if !ok {
		return cell{Text: "N/A", Class: "na"}
	}
	return cell{Text: fmt.Sprint(v), Class: "score-" + string(lighthouse.ClassifyScore(v))}
}

func metricCell(item models.Item, d models.Device, metric string) cell {
	dr := item.Result.Device(d)
	if dr == nil {
		return cell{Text: "N/A", Class: "na"}
	}
	m, ok := dr.Metrics[metric]
	if !ok {
		return cell{Text: "N/A", Class: "na"}
	}
	return cell{Text: m.Display, Class: "score-" + string(lighthouse.ClassifyMetric(metric, m))}
}

type dashboardData struct {
	Run       *models.BatchRun
	Summary   Summary
	Generated time.Time
}

// RenderHTML renders the dashboard for run.
func RenderHTML(run *models.BatchRun) (string, error) {
	var buf bytes.Buffer
	err := dashboard.Execute(&buf, dashboardData{Run: run, Summary: Summarize(run), Generated: time.Now()})
	if err != nil {
		return "", fmt.Errorf("render dashboard: %w", err)
	}
	return buf.String(), nil
}

// WriteHTML writes the dashboard for run to path.
func WriteHTML(run *models.BatchRun, path string) error {
	out, err := RenderHTML(run)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(out), 0644)
}

const dashboardTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>PageSpeed Insights batch report</title>
<style>
body { font-family: -apple-system, "Segoe UI", Roboto, sans-serif; margin: 2rem; color: #202124; }
table { border-collapse: collapse; margin-bottom: 1.5rem; }
th, td { padding: .4rem .8rem; border-bottom: 1px solid #e0e0e0; text-align: left; }
.score-good { color: #0c7d3c; }
.score-average, .score-needs-improvement { color: #c26a00; }
.score-poor { color: #c5221f; }
.na, .score-unknown { color: #9aa0a6; }
.failed { color: #c5221f; }
</style>
</head>
<body>
<h1>PageSpeed Insights batch report</h1>
<p>Generated {{stamp .Generated}}. Run <code>{{.Run.ID}}</code>.</p>

<h2>Summary</h2>
<table>
<tr><th>URLs analyzed</th><td>{{.Summary.Total}}</td></tr>
<tr><th>Complete</th><td>{{.Summary.OK}}</td></tr>
<tr><th>Partial</th><td>{{.Summary.Partial}}</td></tr>
<tr><th>Failed</th><td>{{.Summary.Failed}}</td></tr>
</table>
{{- with .Summary.Averages}}

<h2>Average scores</h2>
<table>
<tr><th>Device</th>{{range categories}}<th>{{label .}}</th>{{end}}</tr>
{{- range $d := devices}}{{if index $.Summary.Averages $d}}
<tr><td>{{deviceTitle $d}}</td>{{range $c := categories}}<td>{{avg $.Summary $d $c}}</td>{{end}}</tr>
{{- end}}{{end}}
</table>
{{- end}}
{{range $d := devices}}

<h2>{{deviceTitle $d}} scores</h2>
<table>
<tr><th>URL</th>{{range categories}}<th>{{label .}}</th>{{end}}{{range vitals}}<th>{{label .}}</th>{{end}}</tr>
{{- range $item := $.Run.Items}}
<tr><td><a href="{{$item.URL}}">{{$item.URL}}</a></td>
{{- range $c := categories}}{{with score $item $d $c}}<td class="{{.Class}}">{{.Text}}</td>{{end}}{{end}}
{{- range $m := vitals}}{{with metric $item $d $m}}<td class="{{.Class}}">{{.Text}}</td>{{end}}{{end}}</tr>
{{- end}}
</table>
{{- end}}
{{- if .Summary.Failed}}

<h2>Failures</h2>
<table>
<tr><th>URL</th><th>Reason</th><th>Error</th></tr>
{{- range .Run.Items}}{{if eq .Status "failed"}}
<tr class="failed"><td>{{.URL}}</td><td>{{.Reason}}</td><td>{{.Error}}</td></tr>
{{- end}}{{end}}
</table>
{{- end}}
</body>
</html>
`
