package models

import (
	"strconv"
	"time"
)

// Device identifies one of the two presentations a page is analyzed under.
type Device string

const (
	DeviceMobile  Device = "mobile"
	DeviceDesktop Device = "desktop"
)

// Devices lists device classes in extraction order.
var Devices = []Device{DeviceMobile, DeviceDesktop}

// Availability reports which result payloads a session currently holds.
type Availability int

const (
	AvailNone Availability = iota
	AvailMobileOnly
	AvailDesktopOnly
	AvailBoth
)

// AvailabilityOf builds an Availability from the two presence flags.
func AvailabilityOf(mobile, desktop bool) Availability {
	switch {
	case mobile && desktop:
		return AvailBoth
	case mobile:
		return AvailMobileOnly
	case desktop:
		return AvailDesktopOnly
	default:
		return AvailNone
	}
}

// Has reports whether the payload for d is available.
func (a Availability) Has(d Device) bool {
	switch d {
	case DeviceMobile:
		return a == AvailMobileOnly || a == AvailBoth
	case DeviceDesktop:
		return a == AvailDesktopOnly || a == AvailBoth
	}
	return false
}

// Union merges two observations; payloads never disappear once seen.
func (a Availability) Union(b Availability) Availability {
	return AvailabilityOf(a.Has(DeviceMobile) || b.Has(DeviceMobile), a.Has(DeviceDesktop) || b.Has(DeviceDesktop))
}

func (a Availability) String() string {
	switch a {
	case AvailMobileOnly:
		return "mobile_only"
	case AvailDesktopOnly:
		return "desktop_only"
	case AvailBoth:
		return "both"
	default:
		return "none"
	}
}

// Score categories, keyed by their flat column suffix.
const (
	CategoryPerformance   = "performance"
	CategoryAccessibility = "accessibility"
	CategoryBestPractices = "best_practices"
	CategorySEO           = "seo"
)

// Categories lists score categories in column order.
var Categories = []string{CategoryPerformance, CategoryAccessibility, CategoryBestPractices, CategorySEO}

// Metric ids, keyed by their flat column suffix.
const (
	MetricFCP = "first_contentful_paint"
	MetricLCP = "largest_contentful_paint"
	MetricTBT = "total_blocking_time"
	MetricCLS = "cumulative_layout_shift"
	MetricSI  = "speed_index"
	MetricTTI = "time_to_interactive"
	MetricFMP = "first_meaningful_paint"
)

// Metrics lists metric ids in column order.
var Metrics = []string{MetricFCP, MetricLCP, MetricTBT, MetricCLS, MetricSI, MetricTTI, MetricFMP}

// Metric is one timing or stability measurement.
type Metric struct {
	Display string   `json:"display"`
	Numeric *float64 `json:"numeric,omitempty"`
	Unit    string   `json:"unit,omitempty"`
}

// DeviceResult is the normalized view of one device's payload. Missing
// categories and metrics are absent from the maps, never zero-filled.
type DeviceResult struct {
	Device            Device            `json:"device"`
	Scores            map[string]int    `json:"scores"`
	Metrics           map[string]Metric `json:"metrics"`
	LighthouseVersion string            `json:"lighthouse_version,omitempty"`
	Warnings          []string          `json:"warnings,omitempty"`
}

// NormalizedResult is the flat per-URL record.
type NormalizedResult struct {
	URL      string        `json:"url"`
	FinalURL string        `json:"final_url"`
	Mobile   *DeviceResult `json:"mobile,omitempty"`
	Desktop  *DeviceResult `json:"desktop,omitempty"`
}

// Device returns the result for d, or nil.
func (r *NormalizedResult) Device(d Device) *DeviceResult {
	if r == nil {
		return nil
	}
	if d == DeviceMobile {
		return r.Mobile
	}
	return r.Desktop
}

// SetDevice stores dr under its own device class.
func (r *NormalizedResult) SetDevice(dr *DeviceResult) {
	if dr.Device == DeviceMobile {
		r.Mobile = dr
	} else {
		r.Desktop = dr
	}
}

// Columns returns the stable flat column order.
func Columns() []string {
	cols := []string{"url", "final_url"}
	for _, d := range Devices {
		for _, c := range Categories {
			cols = append(cols, string(d)+"_"+c)
		}
	}
	for _, d := range Devices {
		for _, m := range Metrics {
			cols = append(cols, string(d)+"_"+m)
		}
	}
	return cols
}

// Record flattens the result. Absent fields have no key.
func (r *NormalizedResult) Record() map[string]string {
	rec := map[string]string{"url": r.URL, "final_url": r.FinalURL}
	for _, d := range Devices {
		dr := r.Device(d)
		if dr == nil {
			continue
		}
		for c, v := range dr.Scores {
			rec[string(d)+"_"+c] = strconv.Itoa(v)
		}
		for m, v := range dr.Metrics {
			rec[string(d)+"_"+m] = v.Display
		}
	}
	return rec
}

// Opportunity is a performance audit with estimated savings.
type Opportunity struct {
	URL         string  `json:"url"`
	Device      Device  `json:"device_type"`
	AuditID     string  `json:"audit_id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Score       float64 `json:"score"`
	SavingsMs   float64 `json:"potential_savings_ms"`
	Impact      string  `json:"impact"`
}

// AccessibilityIssue is a failing accessibility audit.
type AccessibilityIssue struct {
	URL         string  `json:"url"`
	Device      Device  `json:"device_type"`
	AuditID     string  `json:"audit_id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Score       float64 `json:"score"`
	Severity    string  `json:"severity"`
	Impact      string  `json:"impact"`
}

// SEODetail is the state of one SEO audit. Score is nil for manual and
// not-applicable audits.
type SEODetail struct {
	URL          string   `json:"url"`
	Device       Device   `json:"device_type"`
	AuditID      string   `json:"audit_id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Score        *float64 `json:"score"`
	Status       string   `json:"status"`
	DisplayValue string   `json:"display_value"`
}

// Details holds auxiliary audit collections. They are kept apart from the
// flat record.
type Details struct {
	Opportunities []Opportunity        `json:"opportunities,omitempty"`
	Accessibility []AccessibilityIssue `json:"accessibility,omitempty"`
	SEO           []SEODetail          `json:"seo,omitempty"`
}

// Merge appends o's collections onto d.
func (d *Details) Merge(o Details) {
	d.Opportunities = append(d.Opportunities, o.Opportunities...)
	d.Accessibility = append(d.Accessibility, o.Accessibility...)
	d.SEO = append(d.SEO, o.SEO...)
}

// Status is the outcome of one URL.
type Status string

const (
	StatusOK      Status = "ok"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// Screenshot is one captured image file.
type Screenshot struct {
	Device Device `json:"device"`
	Path   string `json:"path"`
}

// Item is the outcome of one URL within a run.
type Item struct {
	Index       int               `json:"index"`
	Total       int               `json:"total"`
	URL         string            `json:"url"`
	Line        int               `json:"line,omitempty"`
	RequestID   string            `json:"request_id,omitempty"`
	Status      Status            `json:"status"`
	Reason      string            `json:"reason,omitempty"`
	Error       string            `json:"error,omitempty"`
	Result      *NormalizedResult `json:"result,omitempty"`
	Details     Details           `json:"details"`
	Screenshots []Screenshot      `json:"screenshots,omitempty"`
	StartedAt   time.Time         `json:"started_at"`
	Duration    time.Duration     `json:"duration"`
}

// BatchRun is the ordered collection of item outcomes.
type BatchRun struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Items      []Item    `json:"items"`
}

// Count returns how many items ended with status s.
func (b *BatchRun) Count(s Status) int {
	n := 0
	for _, it := range b.Items {
		if it.Status == s {
			n++
		}
	}
	return n
}

// UrlEntry is one raw line of the input list.
type UrlEntry struct {
	Raw       string
	Line      int
	Value     string
	IsComment bool
	IsBlank   bool
}

// ValidatedURL is an input line that passed validation.
type ValidatedURL struct {
	URL  string `json:"url"`
	Line int    `json:"line"`
}

// DiagnosticKind classifies input-list problems.
type DiagnosticKind string

const (
	DiagInvalidURL   DiagnosticKind = "InvalidUrl"
	DiagDuplicateURL DiagnosticKind = "DuplicateUrl"
)

// Diagnostic describes a rejected input line.
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind"`
	Line    int            `json:"line"`
	Content string         `json:"content"`
	Message string         `json:"message"`
}
