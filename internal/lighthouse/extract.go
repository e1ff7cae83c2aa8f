// Package lighthouse turns raw Lighthouse reports into normalized results.
package lighthouse

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/law-makers/psibatch/internal/engine"
	"github.com/law-makers/psibatch/pkg/models"
)

// categoryKeys maps report category ids to column suffixes.
var categoryKeys = []struct {
	ID     string
	Column string
}{
	{"performance", models.CategoryPerformance},
	{"accessibility", models.CategoryAccessibility},
	{"best-practices", models.CategoryBestPractices},
	{"seo", models.CategorySEO},
}

// metricKeys maps audit ids to metric ids.
var metricKeys = []struct {
	AuditID string
	Metric  string
}{
	{"first-contentful-paint", models.MetricFCP},
	{"largest-contentful-paint", models.MetricLCP},
	{"total-blocking-time", models.MetricTBT},
	{"cumulative-layout-shift", models.MetricCLS},
	{"speed-index", models.MetricSI},
	{"interactive", models.MetricTTI},
	{"first-meaningful-paint", models.MetricFMP},
}

// report is the subset of a Lighthouse result read here. Entries stay raw
// so that one malformed entry does not poison the rest.
type report struct {
	LighthouseVersion string                     `json:"lighthouseVersion"`
	Categories        map[string]json.RawMessage `json:"categories"`
	Audits            map[string]json.RawMessage `json:"audits"`
}

type category struct {
	Title string   `json:"title"`
	Score *float64 `json:"score"`
}

type audit struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Score        *float64        `json:"score"`
	DisplayValue string          `json:"displayValue"`
	NumericValue *float64        `json:"numericValue"`
	NumericUnit  string          `json:"numericUnit"`
	Details      json.RawMessage `json:"details"`
}

func decodeReport(raw []byte, d models.Device) (*report, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, engine.NewEngineError(engine.ErrCodeExtraction, fmt.Sprintf("%s payload is empty", d), nil)
	}
	var r report
	if err := json.Unmarshal(trimmed, &r); err != nil {
		return nil, engine.NewEngineError(engine.ErrCodeExtraction, fmt.Sprintf("%s payload is not a report object", d), err)
	}
	return &r, nil
}

// ScoreToInt converts a 0..1 score to 0..100 rounding half up. The product
// is snapped to 1e-6 first so 0.855*100 = 85.49999... still rounds to 86.
func ScoreToInt(score float64) int {
	v := math.Round(score*100*1e6) / 1e6
	n := int(math.Floor(v + 0.5))
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

// Extract normalizes one device's payload. It never fabricates values:
// categories or metrics missing from the payload are absent from the
// result. Entries that fail to decode are skipped and noted in Warnings.
// Extract fails with an extraction error only when nothing could be read.
func Extract(raw []byte, d models.Device) (models.DeviceResult, error) {
	res := models.DeviceResult{
		Device:  d,
		Scores:  map[string]int{},
		Metrics: map[string]models.Metric{},
	}

	r, err := decodeReport(raw, d)
	if err != nil {
		return res, err
	}
	res.LighthouseVersion = r.LighthouseVersion

	for _, ck := range categoryKeys {
		entry, ok := r.Categories[ck.ID]
		if !ok {
			continue
		}
		var c category
		if err := json.Unmarshal(entry, &c); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("category %s: %v", ck.ID, err))
			continue
		}
		if c.Score == nil {
			continue
		}
		res.Scores[ck.Column] = ScoreToInt(*c.Score)
	}

	for _, mk := range metricKeys {
		entry, ok := r.Audits[mk.AuditID]
		if !ok {
			continue
		}
		var a audit
		if err := json.Unmarshal(entry, &a); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("audit %s: %v", mk.AuditID, err))
			continue
		}
		display := a.DisplayValue
		if display == "" {
			if a.NumericValue == nil {
				continue
			}
			display = formatNumeric(mk.Metric, *a.NumericValue)
		}
		res.Metrics[mk.Metric] = models.Metric{
			Display: display,
			Numeric: a.NumericValue,
			Unit:    a.NumericUnit,
		}
	}

	if len(res.Scores) == 0 && len(res.Metrics) == 0 {
		return res, engine.NewEngineError(engine.ErrCodeExtraction,
			fmt.Sprintf("%s payload has no readable scores or metrics", d), nil).
			WithDetail("warnings", len(res.Warnings))
	}
	return res, nil
}

// formatNumeric renders a metric the way the report page would when the
// audit carries no display string.
func formatNumeric(metric string, v float64) string {
	if metric == models.MetricCLS {
		return fmt.Sprintf("%.3f", v)
	}
	if v >= 1000 {
		return fmt.Sprintf("%.2f s", v/1000)
	}
	return fmt.Sprintf("%.0f ms", v)
}
