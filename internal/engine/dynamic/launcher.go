package dynamic

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/go-rod/stealth"
	"github.com/law-makers/psibatch/internal/engine"
	"github.com/law-makers/psibatch/internal/proxy"
	"github.com/rs/zerolog/log"
)

// DefaultAnalysisURL is the PageSpeed Insights analysis page.
const DefaultAnalysisURL = "https://pagespeed.web.dev/analysis"

// hideWebdriver runs before any page script on every document.
const hideWebdriver = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined});`

// Options configures browser sessions.
type Options struct {
	AnalysisURL       string
	Headless          bool
	ChromePath        string
	UserAgents        []string
	Proxies           *proxy.Rotator
	Headers           map[string]string
	WindowWidth       int
	WindowHeight      int
	NavigationTimeout time.Duration
	ExtraArgs         []chromedp.ExecAllocatorOption
}

// Launcher starts one fresh browser per analysis session.
type Launcher struct {
	opts       Options
	agents     *UserAgentPool
	chromePath string
	open       atomic.Int32
}

// NewLauncher resolves the browser executable and validates options.
func NewLauncher(opts Options) (*Launcher, error) {
	if opts.AnalysisURL == "" {
		opts.AnalysisURL = DefaultAnalysisURL
	}
	if _, err := url.Parse(opts.AnalysisURL); err != nil {
		return nil, fmt.Errorf("invalid analysis url: %w", err)
	}
	if opts.WindowWidth <= 0 {
		opts.WindowWidth = 1920
	}
	if opts.WindowHeight <= 0 {
		opts.WindowHeight = 1080
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 60 * time.Second
	}

	return &Launcher{
		opts:       opts,
		agents:     NewUserAgentPool(opts.UserAgents),
		chromePath: FindChrome(opts.ChromePath),
	}, nil
}

// OpenSessions returns the number of sessions not yet closed.
func (l *Launcher) OpenSessions() int {
	return int(l.open.Load())
}

// AnalysisURLFor builds the analysis page address for target.
func AnalysisURLFor(base, target string) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "url=" + url.QueryEscape(target)
}

// allocatorOptions builds the flag set used for every launch. It never
// includes enable-automation.
func (l *Launcher) allocatorOptions(userAgent, proxyServer string) []chromedp.ExecAllocatorOption {
	allocOpts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-plugins", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-breakpad", true),
		chromedp.Flag("disable-client-side-phishing-detection", true),
		chromedp.Flag("disable-hang-monitor", true),
		chromedp.Flag("disable-prompt-on-repost", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("incognito", true),
		chromedp.Flag("force-color-profile", "srgb"),
		chromedp.Flag("log-level", "3"),
		chromedp.Flag("metrics-recording-only", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("window-size", fmt.Sprintf("%d,%d", l.opts.WindowWidth, l.opts.WindowHeight)),
		chromedp.UserAgent(userAgent),
	}

	if l.chromePath != "" {
		allocOpts = append([]chromedp.ExecAllocatorOption{chromedp.ExecPath(l.chromePath)}, allocOpts...)
	}

	if l.opts.Headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", "new"))
	} else {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}

	if proxyServer != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(proxyServer))
	}

	return append(allocOpts, l.opts.ExtraArgs...)
}

// Open launches a browser, applies the countermeasures and navigates to
// the analysis page for target. It does not wait for results.
func (l *Launcher) Open(ctx context.Context, target string) (engine.Session, error) {
	userAgent := l.agents.Next()
	proxyServer := l.opts.Proxies.Next()
	analysisURL := AnalysisURLFor(l.opts.AnalysisURL, target)

	start := time.Now()
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, l.allocatorOptions(userAgent, proxyServer)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	s := &Session{
		target:        target,
		analysisURL:   analysisURL,
		userAgent:     userAgent,
		proxy:         proxyServer,
		startedAt:     start,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
		launcher:      l,
	}
	l.open.Add(1)

	// An empty Run starts the browser process.
	if err := chromedp.Run(browserCtx); err != nil {
		s.Close()
		if ctx.Err() != nil {
			return nil, engine.NewEngineError(engine.ErrCodeAnalysisTimeout, "deadline reached while starting browser", ctx.Err())
		}
		l.opts.Proxies.MarkFailed(proxyServer)
		return nil, engine.NewEngineError(engine.ErrCodeSessionStart, "failed to launch browser", err).
			WithDetail("chrome_path", l.chromePath)
	}

	log.Debug().
		Str("url", target).
		Str("user_agent", userAgent).
		Str("proxy", proxyServer).
		Dur("elapsed", time.Since(start)).
		Msg("Browser launched")

	if err := s.prepare(ctx); err != nil {
		s.Close()
		return nil, engine.NewEngineError(engine.ErrCodeNavigation, "failed to prepare session", err).WithRetry()
	}

	navCtx, cancel := context.WithTimeout(ctx, l.opts.NavigationTimeout)
	defer cancel()
	if err := s.run(navCtx, chromedp.Navigate(analysisURL)); err != nil {
		s.Close()
		if ctx.Err() != nil {
			return nil, engine.NewEngineError(engine.ErrCodeAnalysisTimeout, "deadline reached during navigation", ctx.Err())
		}
		l.opts.Proxies.MarkFailed(proxyServer)
		return nil, engine.NewEngineError(engine.ErrCodeNavigation, "failed to open analysis page", err).
			WithRetry().
			WithDetail("analysis_url", analysisURL)
	}
	l.opts.Proxies.MarkHealthy(proxyServer)

	log.Debug().
		Str("url", target).
		Str("analysis_url", analysisURL).
		Dur("elapsed", time.Since(start)).
		Msg("Analysis page opened")

	return s, nil
}

// prepare installs the evasion scripts and identity overrides before the
// first navigation.
func (s *Session) prepare(ctx context.Context) error {
	actions := []chromedp.Action{
		emulation.SetAutomationOverride(false),
		emulation.SetUserAgentOverride(s.userAgent).
			WithAcceptLanguage("en-US,en;q=0.9").
			WithPlatform(platformOf(s.userAgent)),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(stealth.JS + "\n" + hideWebdriver).Do(ctx)
			return err
		}),
	}

	if h := s.launcher.opts.Headers; len(h) > 0 {
		headers := make(network.Headers, len(h))
		for k, v := range h {
			headers[k] = v
		}
		actions = append(actions, network.Enable(), network.SetExtraHTTPHeaders(headers))
	}

	return s.run(ctx, actions...)
}
