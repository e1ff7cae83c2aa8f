package config

import (
	"fmt"
	"net/url"
	"strings"
)

var logLevels = map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}

var formats = map[string]bool{FormatCSV: true, FormatJSON: true, FormatHTML: true, FormatMarkdown: true}

func validate(c *Config) error {
	c.LogLevel = strings.ToLower(c.LogLevel)
	if !logLevels[c.LogLevel] {
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	if c.URLTimeout <= 0 {
		return fmt.Errorf("url timeout must be > 0")
	}
	if c.FirstSignalTimeout <= 0 || c.CompletionTimeout <= 0 {
		return fmt.Errorf("wait budgets must be > 0")
	}
	if c.PollInterval < MinPollInterval {
		return fmt.Errorf("poll interval must be at least %s", MinPollInterval)
	}
	if c.DelayMin < 0 || c.DelayMax < c.DelayMin {
		return fmt.Errorf("delay range must satisfy 0 <= min (%s) <= max (%s)", c.DelayMin, c.DelayMax)
	}
	if u, err := url.Parse(c.AnalysisURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("analysis url %q must be an absolute http(s) URL", c.AnalysisURL)
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("retries must be >= 1")
	}
	if c.RateLimitPerMinute < 0 {
		return fmt.Errorf("rate limit must be >= 0")
	}
	if c.WindowWidth <= 0 || c.WindowHeight <= 0 || c.ScreenshotWidth <= 0 {
		return fmt.Errorf("window and screenshot sizes must be > 0")
	}
	for i, f := range c.Formats {
		f = strings.ToLower(strings.TrimSpace(f))
		if !formats[f] {
			return fmt.Errorf("unknown report format %q", f)
		}
		c.Formats[i] = f
	}
	return nil
}
