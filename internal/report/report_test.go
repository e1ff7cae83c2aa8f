package report

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/law-makers/psibatch/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func sampleRun() *models.BatchRun {
	full := &models.NormalizedResult{
		URL:      "https://a.com",
		FinalURL: "https://pagespeed.web.dev/analysis/https-a-com/x",
		Mobile: &models.DeviceResult{
			Device: models.DeviceMobile,
			Scores: map[string]int{models.CategoryPerformance: 85, models.CategorySEO: 100},
			Metrics: map[string]models.Metric{
				models.MetricFCP: {Display: "1.2 s", Numeric: ptr(1200)},
				models.MetricCLS: {Display: "0.3", Numeric: ptr(0.3)},
			},
		},
		Desktop: &models.DeviceResult{
			Device: models.DeviceDesktop,
			Scores: map[string]int{models.CategoryPerformance: 99},
		},
	}
	mobileOnly := &models.NormalizedResult{
		URL: "https://b.com",
		Mobile: &models.DeviceResult{
			Device: models.DeviceMobile,
			Scores: map[string]int{models.CategoryPerformance: 95},
		},
	}

	return &models.BatchRun{
		ID:        "run-1",
		StartedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Items: []models.Item{
			{
				Index: 1, Total: 3, URL: "https://a.com", Status: models.StatusOK, Result: full,
				Details: models.Details{
					Opportunities: []models.Opportunity{{URL: "https://a.com", Device: models.DeviceMobile, AuditID: "render-blocking-resources", Title: "Eliminate render-blocking resources", Score: 0.5, SavingsMs: 1250, Impact: "High"}},
					Accessibility: []models.AccessibilityIssue{{URL: "https://a.com", Device: models.DeviceMobile, AuditID: "color-contrast", Score: 0, Severity: "Critical", Impact: "table"}},
					SEO: []models.SEODetail{
						{URL: "https://a.com", Device: models.DeviceMobile, AuditID: "document-title", Score: ptr(0), Status: "Fail"},
						{URL: "https://a.com", Device: models.DeviceMobile, AuditID: "structured-data", Status: "Warning"},
					},
				},
			},
			{Index: 2, Total: 3, URL: "https://b.com", Status: models.StatusPartial, Reason: "PartialResult", Result: mobileOnly},
			{Index: 3, Total: 3, URL: "https://c.com", Status: models.StatusFailed, Reason: "AnalysisTimeout", Error: "ANALYSIS_TIMEOUT: no result published within 2m0s"},
		},
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVAppender(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	a, err := NewCSVAppender(dir)
	require.NoError(t, err)

	run := sampleRun()
	for _, item := range run.Items {
		require.NoError(t, a.Append(item))
	}

	rows := readCSV(t, a.Path(ResultsFile))
	require.Len(t, rows, 4)
	header := rows[0]
	assert.Equal(t, ResultHeader(), header)
	assert.Equal(t, []string{"url", "final_url", "mobile_performance"}, header[:3])
	assert.Equal(t, []string{"status", "reason"}, header[len(header)-2:])

	col := func(name string) int {
		for i, h := range header {
			if h == name {
				return i
			}
		}
		t.Fatalf("missing column %s", name)
		return -1
	}
	assert.Equal(t, "85", rows[1][col("mobile_performance")])
	assert.Equal(t, "1.2 s", rows[1][col("mobile_first_contentful_paint")])
	assert.Equal(t, "", rows[1][col("mobile_accessibility")])
	assert.Equal(t, "ok", rows[1][col("status")])
	assert.Equal(t, "", rows[2][col("desktop_performance")])
	assert.Equal(t, "https://c.com", rows[3][col("url")])
	assert.Equal(t, "AnalysisTimeout", rows[3][col("reason")])

	opp := readCSV(t, a.Path(OpportunitiesFile))
	require.Len(t, opp, 2)
	assert.Equal(t, opportunityHeader, opp[0])
	assert.Equal(t, "1250", opp[1][6])
	assert.Equal(t, "1.25", opp[1][7])

	assert.Len(t, readCSV(t, a.Path(AccessibilityFile)), 2)
	seo := readCSV(t, a.Path(SEOFile))
	require.Len(t, seo, 3)
	assert.Equal(t, "0", seo[1][5])
	assert.Equal(t, "", seo[2][5], "null score stays empty")
	assert.Equal(t, "Warning", seo[2][6])
}

func TestCSVAppender_HeaderOnlyOnce(t *testing.T) {
	dir := t.TempDir()
	first, err := NewCSVAppender(dir)
	require.NoError(t, err)
	require.NoError(t, first.Append(sampleRun().Items[2]))

	// A second run appending to the same directory keeps one header.
	second, err := NewCSVAppender(dir)
	require.NoError(t, err)
	require.NoError(t, second.Append(sampleRun().Items[1]))

	rows := readCSV(t, first.Path(ResultsFile))
	require.Len(t, rows, 3)
	assert.Equal(t, "url", rows[0][0])
	assert.Equal(t, "https://c.com", rows[1][0])
	assert.Equal(t, "https://b.com", rows[2][0])

	_, err = os.Stat(first.Path(OpportunitiesFile))
	assert.True(t, os.IsNotExist(err))
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleRun())
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 1, s.OK)
	assert.Equal(t, 1, s.Partial)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, map[string]int{"AnalysisTimeout": 1}, s.Reasons)
	assert.InDelta(t, 90.0, s.Averages[models.DeviceMobile][models.CategoryPerformance], 0.001)
	assert.InDelta(t, 99.0, s.Averages[models.DeviceDesktop][models.CategoryPerformance], 0.001)
	_, hasAccessibility := s.Averages[models.DeviceMobile][models.CategoryAccessibility]
	assert.False(t, hasAccessibility)
	assert.Equal(t, []string{"https://a.com"}, s.BelowThreshold)
}

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), JSONFile)
	require.NoError(t, WriteJSON(sampleRun(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded struct {
		ID      string         `json:"id"`
		Items   []models.Item  `json:"items"`
		Summary map[string]any `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "run-1", decoded.ID)
	require.Len(t, decoded.Items, 3)
	assert.Nil(t, decoded.Items[1].Result.Desktop)
	assert.Equal(t, float64(3), decoded.Summary["total"])
}

func TestRenderHTML(t *testing.T) {
	out, err := RenderHTML(sampleRun())
	require.NoError(t, err)

	assert.Contains(t, out, `<td class="score-average">85</td>`)
	assert.Contains(t, out, `<td class="score-good">99</td>`)
	assert.Contains(t, out, `<td class="score-good">1.2 s</td>`)
	assert.Contains(t, out, `<td class="score-poor">0.3</td>`)
	assert.Contains(t, out, `<td class="na">N/A</td>`)
	assert.Contains(t, out, "AnalysisTimeout")
	assert.Contains(t, out, "Average scores")
}

func TestWriteMarkdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), MarkdownFile)
	require.NoError(t, WriteHTML(sampleRun(), filepath.Join(filepath.Dir(path), HTMLFile)))
	require.NoError(t, WriteMarkdown(sampleRun(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)

	assert.Contains(t, out, "# PageSpeed Insights batch report")
	assert.Contains(t, out, "Performance")
	assert.Contains(t, out, "| https://c.com")
	assert.Contains(t, out, "AnalysisTimeout")
	assert.NotContains(t, out, "<style")
	assert.NotContains(t, out, "class=")
	assert.False(t, strings.Contains(out, "font-family"))
}

func TestCleanHTML(t *testing.T) {
	out, err := CleanHTML(`<html><head><style>p{}</style></head><body><p class="x" id="y">hi <a href="https://a.com" target="_blank">a</a></p><script>1</script></body></html>`)
	require.NoError(t, err)
	assert.Equal(t, `<p>hi <a href="https://a.com">a</a></p>`, out)
}
