package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/law-makers/psibatch/internal/engine"
	"github.com/law-makers/psibatch/internal/engine/replay"
	"github.com/law-makers/psibatch/internal/ratelimit"
	"github.com/law-makers/psibatch/internal/reqctx"
	"github.com/law-makers/psibatch/internal/retry"
	"github.com/law-makers/psibatch/internal/wait"
	"github.com/law-makers/psibatch/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	mobileJSON  = `{"lighthouseVersion":"12.6.0","categories":{"performance":{"score":0.853},"seo":{"score":1}},"audits":{"first-contentful-paint":{"displayValue":"1.2 s","numericValue":1200}}}`
	desktopJSON = `{"lighthouseVersion":"12.6.0","categories":{"performance":{"score":0.99}},"audits":{"cumulative-layout-shift":{"displayValue":"0.01","numericValue":0.01}}}`
)

type page struct {
	avail    models.Availability
	payloads map[models.Device]string
	openErrs []error
}

type fakeOpener struct {
	mu         sync.Mutex
	pages      map[string]*page
	open       int
	opens      []string
	violations int
}

func newFakeOpener(pages map[string]*page) *fakeOpener {
	return &fakeOpener{pages: pages}
}

func (o *fakeOpener) Open(ctx context.Context, target string) (engine.Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opens = append(o.opens, target)
	if o.open != 0 {
		o.violations++
	}
	p, ok := o.pages[target]
	if !ok {
		return nil, engine.NewEngineError(engine.ErrCodeNavigation, "unknown page", nil)
	}
	if len(p.openErrs) > 0 {
		err := p.openErrs[0]
		p.openErrs = p.openErrs[1:]
		return nil, err
	}
	o.open++
	return &fakeSession{target: target, page: p, opener: o}, nil
}

func (o *fakeOpener) openCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.open
}

type fakeSession struct {
	target string
	page   *page
	opener *fakeOpener
	closed bool
}

func (s *fakeSession) Target() string { return s.target }

func (s *fakeSession) Probe(ctx context.Context) (models.Availability, error) {
	if err := ctx.Err(); err != nil {
		return models.AvailNone, err
	}
	return s.page.avail, nil
}

func (s *fakeSession) ReadPayload(ctx context.Context, d models.Device) ([]byte, error) {
	raw, ok := s.page.payloads[d]
	if !ok {
		return nil, engine.ErrNoPayload
	}
	return []byte(raw), nil
}

func (s *fakeSession) FinalURL(context.Context) (string, error) {
	return "https://pagespeed.web.dev/analysis/" + s.target, nil
}

func (s *fakeSession) Close() error {
	if !s.closed {
		s.closed = true
		s.opener.mu.Lock()
		s.opener.open--
		s.opener.mu.Unlock()
	}
	return nil
}

type recordingSleeper struct {
	delays []time.Duration
}

func (r *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

type fakeCapturer struct {
	calls []string
	err   error
}

func (c *fakeCapturer) Capture(_ context.Context, _ engine.Session, index int, url string) ([]models.Screenshot, error) {
	c.calls = append(c.calls, url)
	if c.err != nil {
		return nil, c.err
	}
	return []models.Screenshot{{Device: models.DeviceMobile, Path: "shot.png"}}, nil
}

func fastOptions() Options {
	return Options{
		URLTimeout: 5 * time.Second,
		Budget:     wait.Budget{FirstSignal: 60 * time.Millisecond, Completion: 40 * time.Millisecond, Interval: 10 * time.Millisecond},
		DelayMin:   10 * time.Second,
		DelayMax:   20 * time.Second,
	}
}

func urls(targets ...string) []models.ValidatedURL {
	out := make([]models.ValidatedURL, len(targets))
	for i, t := range targets {
		out[i] = models.ValidatedURL{URL: t, Line: i + 1}
	}
	return out
}

func bothPage() *page {
	return &page{
		avail:    models.AvailBoth,
		payloads: map[models.Device]string{models.DeviceMobile: mobileJSON, models.DeviceDesktop: desktopJSON},
	}
}

func TestRun_IsolatesFailures(t *testing.T) {
	opener := newFakeOpener(map[string]*page{
		"https://a.com": bothPage(),
		"https://b.com": {avail: models.AvailNone},
		"https://c.com": bothPage(),
	})
	sleeper := &recordingSleeper{}
	r := New(opener, fastOptions(), WithSleeper(sleeper.sleep))

	run, err := r.Run(context.Background(), urls("https://a.com", "https://b.com", "https://c.com"))
	require.NoError(t, err)
	require.Len(t, run.Items, 3)

	assert.Equal(t, models.StatusOK, run.Items[0].Status)
	assert.Equal(t, models.StatusFailed, run.Items[1].Status)
	assert.Equal(t, "AnalysisTimeout", run.Items[1].Reason)
	assert.Nil(t, run.Items[1].Result)
	assert.Equal(t, models.StatusOK, run.Items[2].Status)

	first := run.Items[0].Result
	require.NotNil(t, first)
	assert.Equal(t, 85, first.Mobile.Scores[models.CategoryPerformance])
	assert.Equal(t, 99, first.Desktop.Scores[models.CategoryPerformance])
	assert.Equal(t, "https://pagespeed.web.dev/analysis/https://a.com", first.FinalURL)

	assert.Equal(t, 0, opener.openCount())
	assert.Equal(t, 0, opener.violations)
	assert.Len(t, sleeper.delays, 2)
	assert.Equal(t, 2, run.Count(models.StatusOK))
	assert.NotEmpty(t, run.ID)
}

func TestRun_PacingDelays(t *testing.T) {
	pages := map[string]*page{}
	targets := []string{"https://a.com", "https://b.com", "https://c.com", "https://d.com"}
	for _, tgt := range targets {
		pages[tgt] = bothPage()
	}

	tests := []struct {
		name   string
		int64n func(int64) int64
		want   time.Duration
	}{
		{"lower bound", func(int64) int64 { return 0 }, 10 * time.Second},
		{"upper bound", func(n int64) int64 { return n - 1 }, 20 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sleeper := &recordingSleeper{}
			r := New(newFakeOpener(pages), fastOptions(), WithSleeper(sleeper.sleep), WithRandom(tt.int64n))
			_, err := r.Run(context.Background(), urls(targets...))
			require.NoError(t, err)
			require.Len(t, sleeper.delays, len(targets)-1)
			for _, d := range sleeper.delays {
				assert.Equal(t, tt.want, d)
			}
		})
	}

	t.Run("default source stays in range", func(t *testing.T) {
		sleeper := &recordingSleeper{}
		r := New(newFakeOpener(pages), fastOptions(), WithSleeper(sleeper.sleep))
		_, err := r.Run(context.Background(), urls(targets...))
		require.NoError(t, err)
		for _, d := range sleeper.delays {
			assert.GreaterOrEqual(t, d, 10*time.Second)
			assert.LessOrEqual(t, d, 20*time.Second)
		}
	})

	t.Run("single url never sleeps", func(t *testing.T) {
		sleeper := &recordingSleeper{}
		r := New(newFakeOpener(pages), fastOptions(), WithSleeper(sleeper.sleep))
		_, err := r.Run(context.Background(), urls("https://a.com"))
		require.NoError(t, err)
		assert.Empty(t, sleeper.delays)
	})
}

func TestRun_PartialAndExtractionFailures(t *testing.T) {
	opener := newFakeOpener(map[string]*page{
		"https://mobile-only.com": {
			avail:    models.AvailMobileOnly,
			payloads: map[models.Device]string{models.DeviceMobile: mobileJSON},
		},
		"https://bad-desktop.com": {
			avail:    models.AvailBoth,
			payloads: map[models.Device]string{models.DeviceMobile: mobileJSON, models.DeviceDesktop: `null`},
		},
		"https://unreadable.com": {
			avail:    models.AvailBoth,
			payloads: map[models.Device]string{models.DeviceMobile: `[]`},
		},
	})
	r := New(opener, fastOptions(), WithSleeper((&recordingSleeper{}).sleep))

	run, err := r.Run(context.Background(), urls("https://mobile-only.com", "https://bad-desktop.com", "https://unreadable.com"))
	require.NoError(t, err)

	mobileOnly := run.Items[0]
	assert.Equal(t, models.StatusPartial, mobileOnly.Status)
	assert.Equal(t, ReasonPartial, mobileOnly.Reason)
	require.NotNil(t, mobileOnly.Result)
	assert.NotNil(t, mobileOnly.Result.Mobile)
	assert.Nil(t, mobileOnly.Result.Desktop)

	badDesktop := run.Items[1]
	assert.Equal(t, models.StatusPartial, badDesktop.Status)
	assert.Nil(t, badDesktop.Result.Desktop)

	unreadable := run.Items[2]
	assert.Equal(t, models.StatusFailed, unreadable.Status)
	assert.Equal(t, "ExtractionError", unreadable.Reason)
	assert.Nil(t, unreadable.Result)
}

func TestRun_SessionStartAbortsBatch(t *testing.T) {
	opener := newFakeOpener(map[string]*page{
		"https://a.com": bothPage(),
		"https://b.com": {openErrs: []error{engine.NewEngineError(engine.ErrCodeSessionStart, "no browser", nil)}},
		"https://c.com": bothPage(),
	})
	r := New(opener, fastOptions(), WithSleeper((&recordingSleeper{}).sleep))

	run, err := r.Run(context.Background(), urls("https://a.com", "https://b.com", "https://c.com"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrSessionStart))
	var reqErr *reqctx.RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, "https://b.com", reqErr.URL)
	require.Len(t, run.Items, 2)
	assert.Equal(t, "SessionStartError", run.Items[1].Reason)
	assert.Equal(t, []string{"https://a.com", "https://b.com"}, opener.opens)
	assert.False(t, run.FinishedAt.IsZero())
}

func TestRun_RetriesNavigation(t *testing.T) {
	opener := newFakeOpener(map[string]*page{
		"https://a.com": {
			avail:    models.AvailBoth,
			payloads: bothPage().payloads,
			openErrs: []error{engine.NewEngineError(engine.ErrCodeNavigation, "net::ERR_TIMED_OUT", nil).WithRetry()},
		},
		"https://b.com": {openErrs: []error{
			engine.NewEngineError(engine.ErrCodeNavigation, "refused", nil).WithRetry(),
			engine.NewEngineError(engine.ErrCodeNavigation, "refused", nil).WithRetry(),
		}},
	})
	opts := fastOptions()
	opts.Retry = retry.Config{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, Multiplier: 1}
	r := New(opener, opts, WithSleeper((&recordingSleeper{}).sleep))

	run, err := r.Run(context.Background(), urls("https://a.com", "https://b.com"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusOK, run.Items[0].Status)
	assert.Equal(t, models.StatusFailed, run.Items[1].Status)
	assert.Equal(t, "NavigationError", run.Items[1].Reason)
	assert.Len(t, opener.opens, 4)
}

func TestRun_HardCeiling(t *testing.T) {
	opener := newFakeOpener(map[string]*page{"https://slow.com": {avail: models.AvailNone}})
	opts := fastOptions()
	opts.URLTimeout = 30 * time.Millisecond
	opts.Budget.FirstSignal = 5 * time.Second
	r := New(opener, opts)

	start := time.Now()
	run, err := r.Run(context.Background(), urls("https://slow.com"))
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, "AnalysisTimeout", run.Items[0].Reason)
	assert.Equal(t, 0, opener.openCount())
}

func TestRun_ParentCancellation(t *testing.T) {
	opener := newFakeOpener(map[string]*page{"https://a.com": bothPage(), "https://b.com": bothPage()})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := New(opener, fastOptions(), WithSleeper(func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}))

	run, err := r.Run(ctx, urls("https://a.com", "https://b.com"))
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, run.Items, 1)
	assert.Equal(t, models.StatusOK, run.Items[0].Status)
	assert.Equal(t, 0, opener.openCount())
}

func TestRun_ProgressHooksAndScreenshots(t *testing.T) {
	opener := newFakeOpener(map[string]*page{
		"https://a.com": bothPage(),
		"https://b.com": {avail: models.AvailNone},
	})
	capturer := &fakeCapturer{}

	var events []string
	r := New(opener, fastOptions(),
		WithSleeper((&recordingSleeper{}).sleep),
		WithCapturer(capturer),
		WithProgress(
			func(index, total int, url string) { events = append(events, "start "+url) },
			func(item models.Item) { events = append(events, "done "+item.URL+" "+string(item.Status)) },
		),
	)

	run, err := r.Run(context.Background(), urls("https://a.com", "https://b.com"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"start https://a.com", "done https://a.com ok",
		"start https://b.com", "done https://b.com failed",
	}, events)
	assert.Equal(t, []string{"https://a.com"}, capturer.calls)
	assert.Len(t, run.Items[0].Screenshots, 1)
}

func TestRun_ScreenshotErrorsDoNotChangeOutcome(t *testing.T) {
	opener := newFakeOpener(map[string]*page{"https://a.com": bothPage()})
	capturer := &fakeCapturer{err: engine.NewEngineError(engine.ErrCodeCapture, "tab missing", nil)}
	r := New(opener, fastOptions(), WithCapturer(capturer))

	run, err := r.Run(context.Background(), urls("https://a.com"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusOK, run.Items[0].Status)
	assert.Empty(t, run.Items[0].Reason)
}

func TestRun_LimiterCancelled(t *testing.T) {
	opener := newFakeOpener(map[string]*page{"https://a.com": bothPage(), "https://b.com": bothPage()})
	opts := fastOptions()
	opts.URLTimeout = 50 * time.Millisecond
	// One launch per hour: the second URL cannot start before its ceiling.
	limiter := ratelimit.NewHostLimiter(1.0/60, 1)
	r := New(opener, opts, WithSleeper((&recordingSleeper{}).sleep), WithLimiter(limiter, "https://pagespeed.web.dev/analysis"))

	run, err := r.Run(context.Background(), urls("https://a.com", "https://b.com"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusOK, run.Items[0].Status)
	assert.Equal(t, models.StatusFailed, run.Items[1].Status)
	assert.Equal(t, "AnalysisTimeout", run.Items[1].Reason)
	assert.Len(t, opener.opens, 1)
}

func TestRun_ReplayEndToEnd(t *testing.T) {
	dumps := t.TempDir()
	var paths []string
	for i, tgt := range []string{"https://a.com/x", "https://b.com"} {
		payloads := map[models.Device][]byte{models.DeviceMobile: []byte(mobileJSON)}
		if i == 0 {
			payloads[models.DeviceDesktop] = []byte(desktopJSON)
		}
		p, err := replay.WriteDump(dumps, i+1, replay.Dump{Target: tgt, FinalURL: "https://pagespeed.web.dev/analysis/r", Payloads: payloads})
		require.NoError(t, err)
		paths = append(paths, p)
	}

	opener, targets, err := replay.NewOpener(paths)
	require.NoError(t, err)

	opts := fastOptions()
	opts.DumpDir = filepath.Join(t.TempDir(), "debug")
	r := New(opener, opts, WithSleeper((&recordingSleeper{}).sleep))

	run, err := r.Run(context.Background(), urls(targets...))
	require.NoError(t, err)
	require.Len(t, run.Items, 2)
	assert.Equal(t, models.StatusOK, run.Items[0].Status)
	assert.Equal(t, models.StatusPartial, run.Items[1].Status)
	assert.Equal(t, "https://pagespeed.web.dev/analysis/r", run.Items[0].Result.FinalURL)
	assert.Equal(t, 0, opener.OpenSessions())

	written, err := os.ReadDir(opts.DumpDir)
	require.NoError(t, err)
	assert.Len(t, written, 2)
}
