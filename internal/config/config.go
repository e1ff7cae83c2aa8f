package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PSIBATCH_"

// DefaultConfigFile is read from the working directory when no --config is given.
const DefaultConfigFile = "psibatch.yaml"

// Config holds application configuration values
type Config struct {
	// Logging
	LogLevel string `yaml:"log_level"`
	JSONLog  bool   `yaml:"json_log"`

	// Input and output
	URLFile   string   `yaml:"url_file"`
	OutputDir string   `yaml:"output_dir"`
	Formats   []string `yaml:"formats"`

	// Analysis
	AnalysisURL        string        `yaml:"analysis_url"`
	URLTimeout         time.Duration `yaml:"url_timeout"`
	FirstSignalTimeout time.Duration `yaml:"first_signal_timeout"`
	CompletionTimeout  time.Duration `yaml:"completion_timeout"`
	PollInterval       time.Duration `yaml:"poll_interval"`
	NavigationTimeout  time.Duration `yaml:"navigation_timeout"`
	DelayMin           time.Duration `yaml:"delay_min"`
	DelayMax           time.Duration `yaml:"delay_max"`

	// Browser
	Headless     bool     `yaml:"headless"`
	ChromePath   string   `yaml:"chrome_path"`
	UserAgents   []string `yaml:"user_agents"`
	Proxies      []string `yaml:"proxies"`
	Headers      []string `yaml:"headers"`
	WindowWidth  int      `yaml:"window_width"`
	WindowHeight int      `yaml:"window_height"`

	// Retry and rate limiting
	RetryAttempts      int           `yaml:"retry_attempts"`
	RetryBackoff       time.Duration `yaml:"retry_backoff"`
	RateLimitPerMinute float64       `yaml:"rate_limit_per_minute"`
	RateLimitBurst     int           `yaml:"rate_limit_burst"`

	// Side channels
	Screenshots     bool   `yaml:"screenshots"`
	ScreenshotWidth int    `yaml:"screenshot_width"`
	Debug           bool   `yaml:"debug"`
	DumpDir         string `yaml:"dump_dir"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel:           DefaultLogLevel,
		JSONLog:            DefaultJSONLog,
		URLFile:            DefaultURLFile,
		OutputDir:          DefaultOutputDir,
		Formats:            append([]string(nil), DefaultFormats...),
		AnalysisURL:        DefaultAnalysisURL,
		URLTimeout:         DefaultURLTimeout,
		FirstSignalTimeout: DefaultFirstSignalTimeout,
		CompletionTimeout:  DefaultCompletionTimeout,
		PollInterval:       DefaultPollInterval,
		NavigationTimeout:  DefaultNavigationTimeout,
		DelayMin:           DefaultDelayMin,
		DelayMax:           DefaultDelayMax,
		Headless:           DefaultHeadless,
		WindowWidth:        DefaultWindowWidth,
		WindowHeight:       DefaultWindowHeight,
		RetryAttempts:      DefaultRetryAttempts,
		RetryBackoff:       DefaultRetryBackoff,
		RateLimitPerMinute: DefaultRateLimitPerMinute,
		RateLimitBurst:     DefaultRateLimitBurst,
		ScreenshotWidth:    DefaultScreenshotWidth,
		DumpDir:            DefaultDumpDir,
	}
}

// Load builds a Config by combining defaults, an optional config file, environment variables, and CLI flags.
// Caller should pass the root *cobra.Command so flags can be read.
func Load(cmd *cobra.Command) (*Config, error) {
	cfg := Default()

	path, explicit := configPath(cmd)
	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			if explicit || !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
		}
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	if cmd != nil {
		if err := applyFlags(cmd, cfg); err != nil {
			return nil, err
		}
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func configPath(cmd *cobra.Command) (path string, explicit bool) {
	if cmd != nil {
		if f := cmd.Flags().Lookup("config"); f != nil && f.Value.String() != "" {
			return f.Value.String(), true
		}
	}
	if v, ok := os.LookupEnv(EnvPrefix + "CONFIG"); ok && v != "" {
		return v, true
	}
	return DefaultConfigFile, false
}
