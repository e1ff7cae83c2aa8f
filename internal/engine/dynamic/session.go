package dynamic

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"github.com/law-makers/psibatch/internal/engine"
	urlutil "github.com/law-makers/psibatch/internal/utils/url"
	"github.com/law-makers/psibatch/pkg/models"
	"github.com/rs/zerolog/log"
)

// tabSettle is how long the report gets to re-render after a tab switch.
const tabSettle = 3 * time.Second

// Session is a browser opened on one analysis page.
type Session struct {
	target      string
	analysisURL string
	userAgent   string
	proxy       string
	startedAt   time.Time

	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	launcher      *Launcher
	closeOnce     sync.Once
}

var (
	_ engine.Session       = (*Session)(nil)
	_ engine.Screenshotter = (*Session)(nil)
)

// Target returns the URL under analysis.
func (s *Session) Target() string { return s.target }

// UserAgent returns the user agent the session presents.
func (s *Session) UserAgent() string { return s.userAgent }

// run executes actions in the browser, bounded by both ctx and the session.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.browserCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Probe reports which payloads the page has published.
func (s *Session) Probe(ctx context.Context) (models.Availability, error) {
	var res string
	if err := s.run(ctx, chromedp.Evaluate(engine.ProbeScript, &res)); err != nil {
		return models.AvailNone, err
	}
	return engine.DecodeProbe(res)
}

// ReadPayload serializes the payload for d inside the page.
func (s *Session) ReadPayload(ctx context.Context, d models.Device) ([]byte, error) {
	var res string
	if err := s.run(ctx, chromedp.Evaluate(engine.PayloadScript(d), &res)); err != nil {
		return nil, fmt.Errorf("read %s payload: %w", d, err)
	}
	if res == "" {
		return nil, engine.ErrNoPayload
	}
	return []byte(res), nil
}

// FinalURL returns the current page address without its query.
func (s *Session) FinalURL(ctx context.Context) (string, error) {
	var loc string
	if err := s.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return urlutil.StripQuery(loc), nil
}

func selectTabScript(d models.Device) string {
	return fmt.Sprintf(`(function(){var b = document.getElementById(%q); if (!b) return false; b.click(); return true;})()`, string(d)+"_tab")
}

// CaptureFullPage switches the report to d and returns a full-page PNG
// rendered at the given width.
func (s *Session) CaptureFullPage(ctx context.Context, d models.Device, width int) ([]byte, error) {
	var clicked bool
	var buf []byte
	err := s.run(ctx,
		chromedp.Evaluate(selectTabScript(d), &clicked),
		emulation.SetDeviceMetricsOverride(int64(width), int64(s.launcher.opts.WindowHeight), 1, d == models.DeviceMobile),
		chromedp.Sleep(tabSettle),
		chromedp.FullScreenshot(&buf, 100),
		emulation.ClearDeviceMetricsOverride(),
	)
	if err != nil {
		return nil, err
	}
	if !clicked {
		log.Debug().Str("url", s.target).Str("device", string(d)).Msg("Report tab not found, captured current view")
	}
	return buf, nil
}

// Close shuts the browser down. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.browserCancel()
		s.allocCancel()
		s.launcher.open.Add(-1)
		log.Debug().
			Str("url", s.target).
			Dur("lifetime", time.Since(s.startedAt)).
			Msg("Browser closed")
	})
	return nil
}
