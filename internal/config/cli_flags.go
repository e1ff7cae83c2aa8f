package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers common CLI flags on the provided root command
func RegisterFlags(cmd *cobra.Command) {
	if cmd == nil {
		return
	}

	f := cmd.PersistentFlags()
	f.BoolP("verbose", "v", false, "Enable debug logging")
	f.BoolP("quiet", "q", false, "Suppress all output except errors")
	f.Bool("json", false, "Log as JSON lines and disable the progress bar")
	f.String("config", "", "Path to configuration file (default ./"+DefaultConfigFile+" when present)")

	f.StringP("output", "o", DefaultOutputDir, "Directory for reports, screenshots and dumps")
	f.StringSlice("format", DefaultFormats, "Reports written after the run: json, html, markdown (CSV is always appended)")

	f.String("analysis-url", DefaultAnalysisURL, "Analysis page the target URL is appended to")
	f.Duration("timeout", DefaultURLTimeout, "Hard time limit per URL")
	f.Duration("first-signal-timeout", DefaultFirstSignalTimeout, "How long to wait for the first result")
	f.Duration("completion-timeout", DefaultCompletionTimeout, "How long to wait for the second result after the first")
	f.Duration("poll-interval", DefaultPollInterval, "Interval between result checks")
	f.Duration("navigation-timeout", DefaultNavigationTimeout, "Time limit for loading the analysis page")
	f.Duration("delay-min", DefaultDelayMin, "Minimum pause between URLs")
	f.Duration("delay-max", DefaultDelayMax, "Maximum pause between URLs")

	f.Bool("headless", DefaultHeadless, "Run the browser without a window (--headless=false to watch it)")
	f.String("chrome-path", "", "Chrome executable (auto-detected when empty)")
	f.StringArray("user-agent", nil, "User agent to rotate through (repeatable)")
	f.StringSlice("proxy", nil, "HTTP/SOCKS5 proxy to rotate through (repeatable)")
	f.StringArrayP("header", "H", nil, `Extra request header "Key: Value" (repeatable)`)

	f.Int("retries", DefaultRetryAttempts, "Attempts to open the analysis page")
	f.Float64("rate-limit", DefaultRateLimitPerMinute, "Maximum analysis launches per minute (0 disables)")

	f.Bool("screenshots", false, "Capture full-page report screenshots")
	f.Bool("debug", false, "Write raw result dumps that 'replay' can re-process")
	f.String("dump-dir", DefaultDumpDir, "Directory for debug dumps, relative to --output")
}

// applyFlags copies explicitly set flags onto cfg.
func applyFlags(cmd *cobra.Command, cfg *Config) error {
	flags := cmd.Flags()
	var err error
	flags.Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		err = applyFlag(flags, f.Name, cfg)
	})
	if err != nil {
		return err
	}

	// quiet wins over verbose
	if v, _ := flags.GetBool("verbose"); v && flags.Changed("verbose") {
		cfg.LogLevel = "debug"
	}
	if q, _ := flags.GetBool("quiet"); q && flags.Changed("quiet") {
		cfg.LogLevel = "error"
	}
	return nil
}

func applyFlag(flags *pflag.FlagSet, name string, cfg *Config) error {
	var err error
	switch name {
	case "json":
		cfg.JSONLog, err = flags.GetBool(name)
	case "output":
		cfg.OutputDir, err = flags.GetString(name)
	case "format":
		cfg.Formats, err = flags.GetStringSlice(name)
	case "analysis-url":
		cfg.AnalysisURL, err = flags.GetString(name)
	case "timeout":
		cfg.URLTimeout, err = flags.GetDuration(name)
	case "first-signal-timeout":
		cfg.FirstSignalTimeout, err = flags.GetDuration(name)
	case "completion-timeout":
		cfg.CompletionTimeout, err = flags.GetDuration(name)
	case "poll-interval":
		cfg.PollInterval, err = flags.GetDuration(name)
	case "navigation-timeout":
		cfg.NavigationTimeout, err = flags.GetDuration(name)
	case "delay-min":
		cfg.DelayMin, err = flags.GetDuration(name)
	case "delay-max":
		cfg.DelayMax, err = flags.GetDuration(name)
	case "headless":
		cfg.Headless, err = flags.GetBool(name)
	case "chrome-path":
		cfg.ChromePath, err = flags.GetString(name)
	case "user-agent":
		cfg.UserAgents, err = flags.GetStringArray(name)
	case "proxy":
		cfg.Proxies, err = flags.GetStringSlice(name)
	case "header":
		cfg.Headers, err = flags.GetStringArray(name)
	case "retries":
		cfg.RetryAttempts, err = flags.GetInt(name)
	case "rate-limit":
		cfg.RateLimitPerMinute, err = flags.GetFloat64(name)
	case "screenshots":
		cfg.Screenshots, err = flags.GetBool(name)
	case "debug":
		cfg.Debug, err = flags.GetBool(name)
	case "dump-dir":
		cfg.DumpDir, err = flags.GetString(name)
	}
	return err
}
