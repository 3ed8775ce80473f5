// Package countdown derives a shared remaining-time value from an
// authoritative deadline origin. Every observer given the same resolved
// origin converges on the same remaining time within one display tick plus
// store propagation delay; an origin that never resolves falls back to the
// local wall clock, accepting a bounded cross-client skew.
package countdown

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/quizbattle/quizbattle/internal/models"
)

// ErrOriginUnresolved is returned when the deadline origin did not resolve
// within the polling bound. Callers recover by using the accompanying local
// fallback origin; this is not surfaced as a failure.
var ErrOriginUnresolved = errors.New("countdown origin unresolved within polling bound")

// Tick is the display tick at which remaining time is recomputed.
const Tick = 100 * time.Millisecond

// Config bounds the origin-resolution poll. Defaults give 20 attempts at
// 250ms, a 5s bound.
type Config struct {
	PollInterval time.Duration
	PollAttempts int
}

// DefaultConfig returns the default resolution bounds.
func DefaultConfig() Config {
	return Config{
		PollInterval: 250 * time.Millisecond,
		PollAttempts: 20,
	}
}

// OriginFunc fetches the current value of the deadline-origin timestamp. A
// nil or unresolved result means the store has not assigned it yet.
type OriginFunc func(ctx context.Context) (*models.Timestamp, error)

// Synchronizer runs synchronized countdowns against one clock. Multiple
// countdown labels may run concurrently; all derive from the same resolved
// origin.
type Synchronizer struct {
	clock clockwork.Clock
	cfg   Config
}

// New creates a synchronizer on the given clock.
func New(clock clockwork.Clock, cfg Config) *Synchronizer {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	if cfg.PollAttempts <= 0 {
		cfg.PollAttempts = DefaultConfig().PollAttempts
	}
	return &Synchronizer{clock: clock, cfg: cfg}
}

// Remaining computes the time left until origin+duration at the given
// instant, floored at zero.
func Remaining(origin time.Time, now time.Time, duration time.Duration) time.Duration {
	remaining := duration - now.Sub(origin)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ResolveOrigin polls fetch at a fixed interval until the timestamp resolves
// or the attempt bound is reached. On exhaustion it returns the local clock
// as the origin together with ErrOriginUnresolved; the skew this admits is
// bounded by the polling window.
func (s *Synchronizer) ResolveOrigin(ctx context.Context, fetch OriginFunc) (time.Time, error) {
	for attempt := 0; attempt < s.cfg.PollAttempts; attempt++ {
		ts, err := fetch(ctx)
		if err != nil {
			log.Warn().Err(err).Int("attempt", attempt).Msg("countdown origin fetch failed")
		} else if ts != nil && ts.Resolved {
			return ts.Time(), nil
		}

		timer := s.clock.NewTimer(s.cfg.PollInterval)
		select {
		case <-timer.Chan():
		case <-ctx.Done():
			timer.Stop()
			return s.clock.Now(), ctx.Err()
		}
	}

	log.Debug().Msg("countdown origin did not resolve, falling back to local clock")
	return s.clock.Now(), ErrOriginUnresolved
}

// Run ticks every Tick until origin+duration is reached, reporting remaining
// time via onTick and firing onFinish exactly once when it hits zero.
// Cancelling ctx stops the countdown without onFinish; re-entering a phase
// must cancel the previous run's context so no stale ticker survives.
func (s *Synchronizer) Run(ctx context.Context, origin time.Time, duration time.Duration, onTick func(remaining time.Duration), onFinish func()) {
	ticker := s.clock.NewTicker(Tick)
	defer ticker.Stop()

	for {
		remaining := Remaining(origin, s.clock.Now(), duration)
		if onTick != nil {
			onTick(remaining)
		}
		if remaining <= 0 {
			if onFinish != nil {
				onFinish()
			}
			return
		}

		select {
		case <-ticker.Chan():
		case <-ctx.Done():
			return
		}
	}
}
