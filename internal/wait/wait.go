// Package wait implements bounded polling against asynchronous page state.
package wait

import (
	"context"
	"fmt"
	"time"

	"github.com/law-makers/psibatch/internal/engine"
	"github.com/law-makers/psibatch/pkg/models"
	"github.com/rs/zerolog/log"
)

// MinInterval is the lower bound applied to every poll interval.
const MinInterval = 10 * time.Millisecond

// Outcome is the terminal state of a Poll.
type Outcome int

const (
	Ready Outcome = iota
	Expired
)

func (o Outcome) String() string {
	if o == Ready {
		return "ready"
	}
	return "expired"
}

// Config bounds a single poll loop.
type Config struct {
	Interval time.Duration
	Timeout  time.Duration
}

// CheckFunc reports whether the awaited condition holds.
type CheckFunc func(ctx context.Context) (bool, error)

// Poll runs check immediately and then once per interval until it reports
// true or the timeout elapses. Each check runs under the phase deadline, so
// a hung check ends with the phase. Check errors count as "not yet". A
// non-nil error is returned only when ctx ends first.
func Poll(ctx context.Context, cfg Config, check CheckFunc) (Outcome, error) {
	interval := cfg.Interval
	if interval < MinInterval {
		interval = MinInterval
	}

	if cfg.Timeout <= 0 {
		ok, err := check(ctx)
		if err != nil && ctx.Err() != nil {
			return Expired, ctx.Err()
		}
		if err == nil && ok {
			return Ready, nil
		}
		return Expired, nil
	}

	phaseCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		ok, err := check(phaseCtx)
		if ctx.Err() != nil {
			return Expired, ctx.Err()
		}
		if err != nil {
			log.Debug().Err(err).Int("attempt", attempt).Msg("Poll check failed")
		} else if ok {
			return Ready, nil
		}

		select {
		case <-phaseCtx.Done():
			if ctx.Err() != nil {
				return Expired, ctx.Err()
			}
			return Expired, nil
		case <-ticker.C:
		}
	}
}

// Prober reports payload availability.
type Prober interface {
	Probe(ctx context.Context) (models.Availability, error)
}

// Budget bounds the two waiting phases.
type Budget struct {
	FirstSignal time.Duration
	Completion  time.Duration
	Interval    time.Duration
}

// AwaitPayloads waits for the first payload to appear and then, for a
// shorter period, for the second. It returns AnalysisTimeout when nothing
// appears in time or ctx ends; otherwise the availability seen so far.
func AwaitPayloads(ctx context.Context, p Prober, b Budget) (models.Availability, error) {
	seen := models.AvailNone
	observe := func(want func(models.Availability) bool) CheckFunc {
		return func(ctx context.Context) (bool, error) {
			a, err := p.Probe(ctx)
			if err != nil {
				return false, err
			}
			seen = seen.Union(a)
			return want(seen), nil
		}
	}

	start := time.Now()
	out, err := Poll(ctx, Config{Interval: b.Interval, Timeout: b.FirstSignal}, observe(func(a models.Availability) bool {
		return a != models.AvailNone
	}))
	if err != nil {
		return models.AvailNone, engine.NewEngineError(engine.ErrCodeAnalysisTimeout, "analysis interrupted while waiting for first result", err)
	}
	if out == Expired {
		return models.AvailNone, engine.NewEngineError(engine.ErrCodeAnalysisTimeout,
			fmt.Sprintf("no result published within %s", b.FirstSignal), nil)
	}

	log.Debug().
		Str("availability", seen.String()).
		Dur("elapsed", time.Since(start)).
		Msg("First result detected")

	if seen == models.AvailBoth {
		return seen, nil
	}

	out, err = Poll(ctx, Config{Interval: b.Interval, Timeout: b.Completion}, observe(func(a models.Availability) bool {
		return a == models.AvailBoth
	}))
	if err != nil {
		return models.AvailNone, engine.NewEngineError(engine.ErrCodeAnalysisTimeout, "analysis interrupted while waiting for second result", err)
	}
	if out == Expired {
		log.Debug().
			Str("availability", seen.String()).
			Dur("budget", b.Completion).
			Msg("Completion budget elapsed, continuing with partial result")
	}
	return seen, nil
}
