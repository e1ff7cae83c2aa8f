package lighthouse

import (
	"encoding/json"

	"github.com/law-makers/psibatch/pkg/models"
)

// auditLabel pairs an audit id with the title used when the payload has none.
type auditLabel struct {
	ID    string
	Label string
}

var opportunityAudits = []auditLabel{
	{"uses-optimized-images", "Optimize images"},
	{"modern-image-formats", "Use modern image formats"},
	{"unused-css-rules", "Remove unused CSS"},
	{"render-blocking-resources", "Eliminate render-blocking resources"},
	{"uses-text-compression", "Enable text compression"},
	{"efficient-animated-content", "Use efficient animated content"},
	{"uses-responsive-images", "Use appropriately sized images"},
	{"offscreen-images", "Defer offscreen images"},
	{"unminified-css", "Minify CSS"},
	{"unminified-javascript", "Minify JavaScript"},
	{"uses-http2", "Use HTTP/2"},
	{"font-display", "Ensure text remains visible during webfont load"},
}

var accessibilityAudits = []auditLabel{
	{"color-contrast", "Color contrast"},
	{"image-alt", "Image alt text"},
	{"aria-labels", "ARIA labels"},
	{"heading-order", "Heading order"},
	{"link-name", "Link names"},
	{"button-name", "Button names"},
	{"form-field-multiple-labels", "Form field labels"},
	{"skip-link", "Skip links"},
	{"tabindex", "Tab index usage"},
	{"focus-traps", "Focus traps"},
}

var seoAudits = []auditLabel{
	{"meta-description", "Meta description"},
	{"document-title", "Document title"},
	{"structured-data", "Structured data"},
	{"robots-txt", "Robots.txt"},
	{"canonical", "Canonical links"},
	{"hreflang", "Hreflang"},
	{"is-crawlable", "Page is crawlable"},
	{"font-size", "Font size"},
	{"tap-targets", "Tap targets"},
}

type auditDetails struct {
	Type             string   `json:"type"`
	OverallSavingsMs *float64 `json:"overallSavingsMs"`
}

// ImpactTier buckets estimated savings in milliseconds.
func ImpactTier(savingsMs float64) string {
	switch {
	case savingsMs > 1000:
		return "High"
	case savingsMs > 500:
		return "Medium"
	default:
		return "Low"
	}
}

// ExtractDetails collects opportunities, accessibility issues and SEO audit
// states for one device. Entries that cannot be decoded are skipped.
func ExtractDetails(raw []byte, d models.Device, url string) models.Details {
	var out models.Details
	r, err := decodeReport(raw, d)
	if err != nil {
		return out
	}

	for _, al := range opportunityAudits {
		a, ok := r.audit(al)
		if !ok || a.Score == nil || *a.Score >= 1 {
			continue
		}
		det := a.details()
		if det.OverallSavingsMs == nil || *det.OverallSavingsMs <= 0 {
			continue
		}
		out.Opportunities = append(out.Opportunities, models.Opportunity{
			URL:         url,
			Device:      d,
			AuditID:     al.ID,
			Title:       a.Title,
			Description: a.Description,
			Score:       *a.Score,
			SavingsMs:   *det.OverallSavingsMs,
			Impact:      ImpactTier(*det.OverallSavingsMs),
		})
	}

	for _, al := range accessibilityAudits {
		a, ok := r.audit(al)
		if !ok || a.Score == nil || *a.Score >= 1 {
			continue
		}
		severity := "Warning"
		if *a.Score == 0 {
			severity = "Critical"
		}
		impact := a.details().Type
		if impact == "" {
			impact = "Unknown"
		}
		out.Accessibility = append(out.Accessibility, models.AccessibilityIssue{
			URL:         url,
			Device:      d,
			AuditID:     al.ID,
			Title:       a.Title,
			Description: a.Description,
			Score:       *a.Score,
			Severity:    severity,
			Impact:      impact,
		})
	}

	for _, al := range seoAudits {
		a, ok := r.audit(al)
		if !ok {
			continue
		}
		// manual and not-applicable audits carry a null score
		status := "Warning"
		if a.Score != nil {
			switch *a.Score {
			case 1:
				status = "Pass"
			case 0:
				status = "Fail"
			}
		}
		out.SEO = append(out.SEO, models.SEODetail{
			URL:          url,
			Device:       d,
			AuditID:      al.ID,
			Title:        a.Title,
			Description:  a.Description,
			Score:        a.Score,
			Status:       status,
			DisplayValue: a.DisplayValue,
		})
	}

	return out
}

func (r *report) audit(al auditLabel) (audit, bool) {
	entry, ok := r.Audits[al.ID]
	if !ok {
		return audit{}, false
	}
	var a audit
	if err := json.Unmarshal(entry, &a); err != nil {
		return audit{}, false
	}
	if a.Title == "" {
		a.Title = al.Label
	}
	return a, true
}

func (a audit) details() auditDetails {
	var det auditDetails
	if len(a.Details) > 0 {
		_ = json.Unmarshal(a.Details, &det)
	}
	return det
}
