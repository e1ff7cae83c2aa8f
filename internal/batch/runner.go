// Package batch drives the sequential analysis of a URL list.
package batch

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/law-makers/psibatch/internal/engine"
	"github.com/law-makers/psibatch/internal/engine/replay"
	"github.com/law-makers/psibatch/internal/lighthouse"
	"github.com/law-makers/psibatch/internal/ratelimit"
	"github.com/law-makers/psibatch/internal/reqctx"
	"github.com/law-makers/psibatch/internal/retry"
	"github.com/law-makers/psibatch/internal/wait"
	"github.com/law-makers/psibatch/pkg/models"
	"github.com/rs/zerolog/log"
)

// Defaults used when Options leaves a field zero.
const (
	DefaultURLTimeout  = 5 * time.Minute
	DefaultFirstSignal = 180 * time.Second
	DefaultCompletion  = 60 * time.Second
	DefaultInterval    = 5 * time.Second
	DefaultDelayMin    = 5 * time.Second
	DefaultDelayMax    = 10 * time.Second
)

// ReasonPartial marks an item where only one device class was readable.
const ReasonPartial = "PartialResult"

// Options configures a Runner.
type Options struct {
	URLTimeout time.Duration
	Budget     wait.Budget
	DelayMin   time.Duration
	DelayMax   time.Duration
	Retry      retry.Config

	// DumpDir enables debug dumps of the raw payloads when set.
	DumpDir string
}

func (o *Options) setDefaults() {
	if o.URLTimeout <= 0 {
		o.URLTimeout = DefaultURLTimeout
	}
	if o.Budget.FirstSignal <= 0 {
		o.Budget.FirstSignal = DefaultFirstSignal
	}
	if o.Budget.Completion <= 0 {
		o.Budget.Completion = DefaultCompletion
	}
	if o.Budget.Interval <= 0 {
		o.Budget.Interval = DefaultInterval
	}
	if o.DelayMin < 0 {
		o.DelayMin = 0
	}
	if o.DelayMax < o.DelayMin {
		o.DelayMax = o.DelayMin
	}
	if o.Retry.MaxAttempts <= 0 {
		o.Retry.MaxAttempts = 1
	}
}

// Capturer renders screenshots for a finished analysis.
type Capturer interface {
	Capture(ctx context.Context, s engine.Session, index int, url string) ([]models.Screenshot, error)
}

// Option customizes a Runner.
type Option func(*Runner)

// WithLimiter throttles session launches under key.
func WithLimiter(l ratelimit.RateLimiter, key string) Option {
	return func(r *Runner) {
		r.limiter = l
		r.limitKey = key
	}
}

// WithCapturer enables screenshots.
func WithCapturer(c Capturer) Option {
	return func(r *Runner) { r.capturer = c }
}

// WithProgress registers hooks called before and after each URL.
func WithProgress(onStart func(index, total int, url string), onResult func(models.Item)) Option {
	return func(r *Runner) {
		r.onStart = onStart
		r.onResult = onResult
	}
}

// WithSleeper replaces the pacing sleep.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Runner) { r.sleep = sleep }
}

// WithRandom replaces the source used to draw pacing delays. int64n must
// return a value in [0, n).
func WithRandom(int64n func(n int64) int64) Option {
	return func(r *Runner) { r.int64n = int64n }
}

// Runner analyzes URLs one at a time.
type Runner struct {
	opener engine.Opener
	opts   Options

	limiter  ratelimit.RateLimiter
	limitKey string
	capturer Capturer
	onStart  func(index, total int, url string)
	onResult func(models.Item)
	sleep    func(ctx context.Context, d time.Duration) error
	int64n   func(n int64) int64
}

// New creates a Runner.
func New(opener engine.Opener, opts Options, options ...Option) *Runner {
	opts.setDefaults()
	r := &Runner{
		opener: opener,
		opts:   opts,
		sleep:  sleepContext,
		int64n: rand.Int64N,
	}
	for _, o := range options {
		o(r)
	}
	return r
}

// Run processes urls in order. Per-URL failures are recorded on their item.
// A session start failure or cancellation of ctx stops the run; the items
// finished so far are returned together with the error.
func (r *Runner) Run(ctx context.Context, urls []models.ValidatedURL) (*models.BatchRun, error) {
	run := &models.BatchRun{
		ID:        reqctx.NewRunID(),
		StartedAt: time.Now(),
		Items:     make([]models.Item, 0, len(urls)),
	}
	total := len(urls)

	finish := func(err error) (*models.BatchRun, error) {
		run.FinishedAt = time.Now()
		log.Info().
			Str("run_id", run.ID).
			Int("ok", run.Count(models.StatusOK)).
			Int("partial", run.Count(models.StatusPartial)).
			Int("failed", run.Count(models.StatusFailed)).
			Dur("elapsed", run.FinishedAt.Sub(run.StartedAt)).
			Err(err).
			Msg("Batch finished")
		return run, err
	}

	for i, u := range urls {
		if err := ctx.Err(); err != nil {
			return finish(err)
		}
		index := i + 1
		if r.onStart != nil {
			r.onStart(index, total, u.URL)
		}

		item, fatal := r.process(ctx, run.ID, index, total, u)
		if fatal == nil && ctx.Err() != nil {
			item.Status = models.StatusFailed
			item.Reason = "Interrupted"
			fatal = ctx.Err()
		}
		run.Items = append(run.Items, item)
		if r.onResult != nil {
			r.onResult(item)
		}
		if fatal != nil {
			return finish(fatal)
		}

		if index < total {
			d := r.delay()
			log.Debug().Dur("delay", d).Msg("Pausing before next URL")
			if err := r.sleep(ctx, d); err != nil {
				return finish(err)
			}
		}
	}
	return finish(nil)
}

// process analyzes a single URL. The returned error is non-nil only when the
// batch must stop.
func (r *Runner) process(parent context.Context, runID string, index, total int, u models.ValidatedURL) (item models.Item, fatal error) {
	ctx := reqctx.WithRequestContext(parent, runID, u.URL)
	rc := reqctx.GetRequestContext(ctx)
	item = models.Item{
		Index:     index,
		Total:     total,
		URL:       u.URL,
		Line:      u.Line,
		RequestID: rc.RequestID,
		StartedAt: rc.StartTime,
	}
	defer func() { item.Duration = time.Since(item.StartedAt) }()

	logger := log.With().Str("url", u.URL).Int("index", index).Int("total", total).Str("request_id", rc.RequestID).Logger()
	logger.Info().Msg("Analyzing URL")

	ctx, cancel := context.WithTimeout(ctx, r.opts.URLTimeout)
	defer cancel()

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx, r.limitKey); err != nil {
			return fail(item, engine.NewEngineError(engine.ErrCodeAnalysisTimeout, "launch slot not available within time limit", err)), nil
		}
	}

	var sess engine.Session
	err := retry.WithRetry(ctx, r.opts.Retry, func(attempt int) error {
		s, err := r.opener.Open(ctx, u.URL)
		if err != nil {
			logger.Debug().Int("attempt", attempt).Err(err).Msg("Open failed")
			return err
		}
		sess = s
		return nil
	})
	if err != nil {
		if errors.Is(err, engine.ErrSessionStart) {
			logger.Error().Err(err).Msg("Browser session could not start")
			return fail(item, err), reqctx.NewRequestError(ctx, err)
		}
		return fail(item, timeoutError(ctx, err)), nil
	}
	defer func() {
		if err := sess.Close(); err != nil {
			logger.Warn().Err(err).Msg("Session close failed")
		}
	}()

	avail, err := wait.AwaitPayloads(ctx, sess, r.opts.Budget)
	if err != nil {
		return fail(item, err), nil
	}

	result := &models.NormalizedResult{URL: u.URL}
	if final, err := sess.FinalURL(ctx); err != nil {
		logger.Warn().Err(err).Msg("Could not read final URL")
	} else {
		result.FinalURL = final
	}

	payloads := make(map[models.Device][]byte, 2)
	var extractErr error
	for _, d := range models.Devices {
		if !avail.Has(d) {
			continue
		}
		raw, err := sess.ReadPayload(ctx, d)
		if err != nil {
			extractErr = engine.NewEngineError(engine.ErrCodeExtraction, "read "+string(d)+" payload", err)
			logger.Warn().Str("device", string(d)).Err(err).Msg("Payload unreadable")
			continue
		}
		payloads[d] = raw

		dr, err := lighthouse.Extract(raw, d)
		if err != nil {
			extractErr = err
			logger.Warn().Str("device", string(d)).Err(err).Msg("Payload could not be normalized")
			continue
		}
		for _, w := range dr.Warnings {
			logger.Warn().Str("device", string(d)).Msg(w)
		}
		result.SetDevice(&dr)
		item.Details.Merge(lighthouse.ExtractDetails(raw, d, u.URL))
	}

	if r.opts.DumpDir != "" && len(payloads) > 0 {
		path, err := replay.WriteDump(r.opts.DumpDir, index, replay.Dump{Target: u.URL, FinalURL: result.FinalURL, Payloads: payloads})
		if err != nil {
			logger.Warn().Err(err).Msg("Debug dump failed")
		} else {
			logger.Debug().Str("path", path).Msg("Debug dump written")
		}
	}

	if ctx.Err() != nil {
		return fail(item, timeoutError(ctx, ctx.Err())), nil
	}

	extracted := 0
	for _, d := range models.Devices {
		if result.Device(d) != nil {
			extracted++
		}
	}
	switch extracted {
	case 0:
		if extractErr == nil {
			extractErr = engine.NewEngineError(engine.ErrCodeExtraction, "no payload could be read", nil)
		}
		return fail(item, extractErr), nil
	case 1:
		item.Status = models.StatusPartial
		item.Reason = ReasonPartial
	default:
		item.Status = models.StatusOK
	}
	item.Result = result

	if r.capturer != nil {
		shots, err := r.capturer.Capture(ctx, sess, index, u.URL)
		if err != nil {
			logger.Warn().Err(err).Msg("Screenshot capture failed")
		}
		item.Screenshots = shots
	}

	logger.Info().
		Str("status", string(item.Status)).
		Dur("elapsed", time.Since(item.StartedAt)).
		Msg("URL analyzed")
	return item, nil
}

func (r *Runner) delay() time.Duration {
	span := r.opts.DelayMax - r.opts.DelayMin
	if span <= 0 {
		return r.opts.DelayMin
	}
	return r.opts.DelayMin + time.Duration(r.int64n(int64(span)+1))
}

func fail(item models.Item, err error) models.Item {
	item.Status = models.StatusFailed
	item.Reason = engine.ReasonFor(err)
	item.Error = err.Error()
	log.Warn().Str("url", item.URL).Str("reason", item.Reason).Err(err).Msg("URL failed")
	return item
}

// timeoutError reports err as an analysis timeout when the per-URL ceiling
// is what stopped the work.
func timeoutError(ctx context.Context, err error) error {
	if ctx.Err() == nil || errors.Is(err, engine.ErrAnalysisTimeout) {
		return err
	}
	return engine.NewEngineError(engine.ErrCodeAnalysisTimeout, "per-URL time limit exceeded", err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
