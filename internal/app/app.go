// Package app provides the core application initialization and lifecycle management.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/law-makers/psibatch/internal/batch"
	"github.com/law-makers/psibatch/internal/config"
	"github.com/law-makers/psibatch/internal/engine"
	"github.com/law-makers/psibatch/internal/engine/dynamic"
	"github.com/law-makers/psibatch/internal/proxy"
	"github.com/law-makers/psibatch/internal/ratelimit"
	"github.com/law-makers/psibatch/internal/retry"
	"github.com/law-makers/psibatch/internal/screenshot"
	headersutil "github.com/law-makers/psibatch/internal/utils/headers"
	"github.com/law-makers/psibatch/internal/wait"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Application holds all application dependencies and manages their lifecycle.
//
// It is created once at startup and shared across all CLI commands.
// Use Close() to ensure proper resource cleanup on shutdown.
type Application struct {
	Config      *config.Config
	Logger      *zerolog.Logger
	RateLimiter ratelimit.RateLimiter
	Proxies     *proxy.Rotator
	Launcher    *dynamic.Launcher
	launcherMu  sync.Mutex
	startTime   time.Time
}

// ParseLevel maps a configured level name onto zerolog.
func ParseLevel(level string) zerolog.Level {
	switch level {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// New creates and initializes a new Application with all dependencies.
//
// It performs the following initialization steps:
//   - Configures the global logger from the provided config
//   - Creates the launch rate limiter for the analysis service
//   - Creates the proxy rotator when proxies are configured
//
// The browser launcher is created on first use so that commands which never
// open a browser (validate, replay) do not need Chrome installed.
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	zerolog.SetGlobalLevel(ParseLevel(cfg.LogLevel))

	var logWriter io.Writer
	if cfg.JSONLog {
		// JSON logs to stderr
		logWriter = os.Stderr
	} else {
		// Human-friendly console output otherwise
		logWriter = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}

	logger := zerolog.New(logWriter).With().Timestamp().Logger()
	log.Logger = logger

	logger.Debug().
		Str("level", cfg.LogLevel).
		Bool("json", cfg.JSONLog).
		Msg("Logger initialized")

	limiter := ratelimit.NewHostLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst)
	logger.Debug().
		Float64("per_minute", cfg.RateLimitPerMinute).
		Int("burst", cfg.RateLimitBurst).
		Msg("Rate limiter initialized")

	var proxies *proxy.Rotator
	if len(cfg.Proxies) > 0 {
		proxies = proxy.NewRotator(cfg.Proxies, proxy.DefaultCooldown)
		logger.Debug().Int("proxies", proxies.Len()).Msg("Proxy rotation enabled")
	}

	return &Application{
		Config:      cfg,
		Logger:      &logger,
		RateLimiter: limiter,
		Proxies:     proxies,
		startTime:   time.Now(),
	}, nil
}

// EnsureLauncher lazily creates the browser launcher.
func (a *Application) EnsureLauncher() (*dynamic.Launcher, error) {
	if a == nil {
		return nil, fmt.Errorf("application is nil")
	}

	a.launcherMu.Lock()
	defer a.launcherMu.Unlock()

	if a.Launcher != nil {
		return a.Launcher, nil
	}

	headers, invalid := headersutil.ParseHeaders(a.Config.Headers)
	for _, h := range invalid {
		a.Logger.Warn().Str("header", h).Msg("Ignoring malformed header")
	}

	l, err := dynamic.NewLauncher(dynamic.Options{
		AnalysisURL:       a.Config.AnalysisURL,
		Headless:          a.Config.Headless,
		ChromePath:        a.Config.ChromePath,
		UserAgents:        a.Config.UserAgents,
		Proxies:           a.Proxies,
		Headers:           headers,
		WindowWidth:       a.Config.WindowWidth,
		WindowHeight:      a.Config.WindowHeight,
		NavigationTimeout: a.Config.NavigationTimeout,
	})
	if err != nil {
		return nil, err
	}

	a.Launcher = l
	a.Logger.Debug().Bool("headless", a.Config.Headless).Msg("Browser launcher initialized")
	return l, nil
}

// RunnerOptions translates the configuration into batch runner options.
func (a *Application) RunnerOptions() batch.Options {
	cfg := a.Config
	opts := batch.Options{
		URLTimeout: cfg.URLTimeout,
		Budget: wait.Budget{
			FirstSignal: cfg.FirstSignalTimeout,
			Completion:  cfg.CompletionTimeout,
			Interval:    cfg.PollInterval,
		},
		DelayMin: cfg.DelayMin,
		DelayMax: cfg.DelayMax,
		Retry: retry.Config{
			MaxAttempts:    cfg.RetryAttempts,
			InitialBackoff: cfg.RetryBackoff,
			MaxBackoff:     retry.DefaultConfig().MaxBackoff,
			Multiplier:     retry.DefaultConfig().Multiplier,
		},
	}
	if cfg.Debug {
		opts.DumpDir = a.DumpDir()
	}
	return opts
}

// DumpDir returns where debug dumps are written.
func (a *Application) DumpDir() string {
	if filepath.IsAbs(a.Config.DumpDir) {
		return a.Config.DumpDir
	}
	return filepath.Join(a.Config.OutputDir, a.Config.DumpDir)
}

// NewRunner builds a batch runner over opener with the configured pacing,
// launch limit and side channels. Extra options are applied last.
func (a *Application) NewRunner(opener engine.Opener, extra ...batch.Option) *batch.Runner {
	options := []batch.Option{batch.WithLimiter(a.RateLimiter, a.Config.AnalysisURL)}
	if a.Config.Screenshots {
		c := screenshot.New(a.Config.OutputDir, a.Config.ScreenshotWidth, time.Now())
		a.Logger.Debug().Str("dir", c.Dir()).Msg("Screenshots enabled")
		options = append(options, batch.WithCapturer(c))
	}
	return batch.New(opener, a.RunnerOptions(), append(options, extra...)...)
}

// Close gracefully shuts down the application and all its resources.
//
// Sessions are closed by the runner; Close only reports any that leaked.
func (a *Application) Close(ctx context.Context) error {
	a.Logger.Debug().Msg("Shutting down application")

	if a.Launcher != nil {
		if n := a.Launcher.OpenSessions(); n > 0 {
			a.Logger.Warn().Int("open_sessions", n).Msg("Browser sessions still open at shutdown")
		}
	}

	a.Logger.Debug().Dur("uptime", a.Uptime()).Msg("Application shutdown complete")
	return nil
}

// Uptime returns how long the application has been running.
func (a *Application) Uptime() time.Duration {
	return time.Since(a.startTime)
}
