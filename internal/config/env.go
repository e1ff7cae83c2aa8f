package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type lookupFunc func(key string) (string, bool)

// envSetters maps the suffix after EnvPrefix to the field it overrides.
var envSetters = map[string]func(c *Config, v string) error{
	"LOG_LEVEL":             func(c *Config, v string) error { c.LogLevel = v; return nil },
	"JSON_LOG":              boolSetter(func(c *Config) *bool { return &c.JSONLog }),
	"URL_FILE":              func(c *Config, v string) error { c.URLFile = v; return nil },
	"OUTPUT_DIR":            func(c *Config, v string) error { c.OutputDir = v; return nil },
	"FORMATS":               func(c *Config, v string) error { c.Formats = splitList(v, ","); return nil },
	"ANALYSIS_URL":          func(c *Config, v string) error { c.AnalysisURL = v; return nil },
	"URL_TIMEOUT":           durationSetter(func(c *Config) *time.Duration { return &c.URLTimeout }),
	"FIRST_SIGNAL_TIMEOUT":  durationSetter(func(c *Config) *time.Duration { return &c.FirstSignalTimeout }),
	"COMPLETION_TIMEOUT":    durationSetter(func(c *Config) *time.Duration { return &c.CompletionTimeout }),
	"POLL_INTERVAL":         durationSetter(func(c *Config) *time.Duration { return &c.PollInterval }),
	"NAVIGATION_TIMEOUT":    durationSetter(func(c *Config) *time.Duration { return &c.NavigationTimeout }),
	"DELAY_MIN":             durationSetter(func(c *Config) *time.Duration { return &c.DelayMin }),
	"DELAY_MAX":             durationSetter(func(c *Config) *time.Duration { return &c.DelayMax }),
	"HEADLESS":              boolSetter(func(c *Config) *bool { return &c.Headless }),
	"CHROME_PATH":           func(c *Config, v string) error { c.ChromePath = v; return nil },
	"USER_AGENTS":           func(c *Config, v string) error { c.UserAgents = splitList(v, "|"); return nil },
	"PROXIES":               func(c *Config, v string) error { c.Proxies = splitList(v, ","); return nil },
	"HEADERS":               func(c *Config, v string) error { c.Headers = splitList(v, "|"); return nil },
	"RETRY_ATTEMPTS":        intSetter(func(c *Config) *int { return &c.RetryAttempts }),
	"RETRY_BACKOFF":         durationSetter(func(c *Config) *time.Duration { return &c.RetryBackoff }),
	"RATE_LIMIT_PER_MINUTE": floatSetter(func(c *Config) *float64 { return &c.RateLimitPerMinute }),
	"SCREENSHOTS":           boolSetter(func(c *Config) *bool { return &c.Screenshots }),
	"DEBUG":                 boolSetter(func(c *Config) *bool { return &c.Debug }),
	"DUMP_DIR":              func(c *Config, v string) error { c.DumpDir = v; return nil },
}

// applyEnv overrides cfg from PSIBATCH_* variables. User agents and headers
// are separated by "|" because both may contain commas.
func applyEnv(cfg *Config, lookup lookupFunc) error {
	for suffix, set := range envSetters {
		v, ok := lookup(EnvPrefix + suffix)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		if err := set(cfg, strings.TrimSpace(v)); err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, suffix, err)
		}
	}
	return nil
}

func durationSetter(field func(*Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*field(c) = d
		return nil
	}
}

func boolSetter(field func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*field(c) = b
		return nil
	}
}

func intSetter(field func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

func floatSetter(field func(*Config) *float64) func(*Config, string) error {
	return func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*field(c) = f
		return nil
	}
}

func splitList(v, sep string) []string {
	var out []string
	for _, part := range strings.Split(v, sep) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
