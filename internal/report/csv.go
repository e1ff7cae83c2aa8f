// Package report writes batch outcomes to disk.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/law-makers/psibatch/pkg/models"
)

// File names written into the output directory.
const (
	ResultsFile       = "pagespeed_results.csv"
	OpportunitiesFile = "lighthouse_opportunities.csv"
	AccessibilityFile = "lighthouse_accessibility.csv"
	SEOFile           = "lighthouse_seo_details.csv"
	JSONFile          = "pagespeed_results.json"
	HTMLFile          = "pagespeed_report.html"
	MarkdownFile      = "pagespeed_report.md"
)

var (
	opportunityHeader   = []string{"url", "device_type", "audit_id", "title", "description", "score", "potential_savings_ms", "potential_savings_s", "impact"}
	accessibilityHeader = []string{"url", "device_type", "audit_id", "title", "description", "score", "severity", "impact"}
	seoHeader           = []string{"url", "device_type", "audit_id", "title", "description", "score", "status", "displayValue"}
)

// ResultHeader returns the columns of the main results file.
func ResultHeader() []string {
	return append(models.Columns(), "status", "reason")
}

// CSVAppender appends one row per finished URL, so results survive an
// interrupted run. Headers are written only when a file is new.
type CSVAppender struct {
	dir string
}

// NewCSVAppender creates dir if needed.
func NewCSVAppender(dir string) (*CSVAppender, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &CSVAppender{dir: dir}, nil
}

// Path returns the location of name inside the output directory.
func (a *CSVAppender) Path(name string) string {
	return filepath.Join(a.dir, name)
}

// Append writes item to the results file and its details to the detail files.
func (a *CSVAppender) Append(item models.Item) error {
	if err := appendRows(a.Path(ResultsFile), ResultHeader(), [][]string{resultRow(item)}); err != nil {
		return err
	}

	d := item.Details
	if len(d.Opportunities) > 0 {
		rows := make([][]string, 0, len(d.Opportunities))
		for _, o := range d.Opportunities {
			rows = append(rows, []string{
				o.URL, string(o.Device), o.AuditID, o.Title, o.Description, formatFloat(o.Score),
				formatFloat(o.SavingsMs), fmt.Sprintf("%.2f", o.SavingsMs/1000), o.Impact,
			})
		}
		if err := appendRows(a.Path(OpportunitiesFile), opportunityHeader, rows); err != nil {
			return err
		}
	}
	if len(d.Accessibility) > 0 {
		rows := make([][]string, 0, len(d.Accessibility))
		for _, i := range d.Accessibility {
			rows = append(rows, []string{
				i.URL, string(i.Device), i.AuditID, i.Title, i.Description, formatFloat(i.Score), i.Severity, i.Impact,
			})
		}
		if err := appendRows(a.Path(AccessibilityFile), accessibilityHeader, rows); err != nil {
			return err
		}
	}
	if len(d.SEO) > 0 {
		rows := make([][]string, 0, len(d.SEO))
		for _, s := range d.SEO {
			rows = append(rows, []string{
				s.URL, string(s.Device), s.AuditID, s.Title, s.Description, formatOptional(s.Score), s.Status, s.DisplayValue,
			})
		}
		if err := appendRows(a.Path(SEOFile), seoHeader, rows); err != nil {
			return err
		}
	}
	return nil
}

func resultRow(item models.Item) []string {
	rec := map[string]string{"url": item.URL}
	if item.Result != nil {
		rec = item.Result.Record()
	}
	rec["status"] = string(item.Status)
	rec["reason"] = item.Reason

	header := ResultHeader()
	row := make([]string, len(header))
	for i, col := range header {
		row[i] = rec[col]
	}
	return row
}

func appendRows(path string, header []string, rows [][]string) error {
	writeHeader := true
	if fi, err := os.Stat(path); err == nil && fi.Size() > 0 {
		writeHeader = false
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(header); err != nil {
			return err
		}
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}
