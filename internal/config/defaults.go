package config

import "time"

// Default constants for application configuration
const (
	DefaultLogLevel = "info"
	DefaultJSONLog  = false

	DefaultURLFile   = "urls.txt"
	DefaultOutputDir = "."

	DefaultAnalysisURL        = "https://pagespeed.web.dev/analysis"
	DefaultURLTimeout         = 5 * time.Minute
	DefaultFirstSignalTimeout = 180 * time.Second
	DefaultCompletionTimeout  = 60 * time.Second
	DefaultPollInterval       = 5 * time.Second
	DefaultNavigationTimeout  = 60 * time.Second
	DefaultDelayMin           = 5 * time.Second
	DefaultDelayMax           = 10 * time.Second

	DefaultHeadless     = true
	DefaultWindowWidth  = 1920
	DefaultWindowHeight = 1080

	DefaultRetryAttempts = 2
	DefaultRetryBackoff  = 5 * time.Second

	// Launch ceiling against the analysis service, per minute.
	DefaultRateLimitPerMinute = 6.0
	DefaultRateLimitBurst     = 1

	DefaultScreenshotWidth = 1920
	DefaultDumpDir         = "debug"

	MinPollInterval = 10 * time.Millisecond
)

// DefaultFormats are the report sinks written after a run. CSV rows are
// always appended while the run progresses.
var DefaultFormats = []string{FormatJSON, FormatHTML}

// Report formats.
const (
	FormatCSV      = "csv"
	FormatJSON     = "json"
	FormatHTML     = "html"
	FormatMarkdown = "markdown"
)
