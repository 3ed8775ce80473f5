package match

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// scheduleAdvance arms a one-shot timer that advances the match when the
// starting countdown elapses. The transition is scheduled by this driving
// process, never by an individual client clock.
func (c *Controller) scheduleAdvance(matchID string, d time.Duration) {
	timer := c.clock.NewTimer(d)
	c.replaceTimer(matchID, timer)

	go func() {
		select {
		case <-timer.Chan():
			c.removeTimer(matchID)
			if err := c.AdvanceQuestion(context.Background(), matchID); err != nil {
				log.Error().Err(err).Str("match_id", matchID).Msg("scheduled advance failed")
			}
		case <-c.done:
			stopAndDrainTimer(timer)
			c.removeTimer(matchID)
			log.Debug().Str("match_id", matchID).Msg("scheduled advance cancelled on shutdown")
		}
	}()

	log.Debug().Str("match_id", matchID).Dur("in", d).Msg("advance scheduled")
}

// replaceTimer atomically replaces the pending timer for a match, cancelling
// any existing one so a duplicate start command cannot leave two countdowns
// armed.
func (c *Controller) replaceTimer(matchID string, newTimer clockwork.Timer) {
	c.timersMu.Lock()
	defer c.timersMu.Unlock()

	if existing, ok := c.timers[matchID]; ok {
		stopAndDrainTimer(existing)
		log.Debug().Str("match_id", matchID).Msg("replaced existing advance timer")
	}
	c.timers[matchID] = newTimer
}

// cancelTimer stops and removes any pending timer for a match. Re-entering a
// phase clears the previously scheduled timer, leaving none dangling across
// phase changes.
func (c *Controller) cancelTimer(matchID string) {
	c.timersMu.Lock()
	defer c.timersMu.Unlock()

	if timer, ok := c.timers[matchID]; ok {
		stopAndDrainTimer(timer)
		delete(c.timers, matchID)
		log.Debug().Str("match_id", matchID).Msg("cancelled advance timer")
	}
}

func (c *Controller) removeTimer(matchID string) {
	c.timersMu.Lock()
	defer c.timersMu.Unlock()
	delete(c.timers, matchID)
}

// stopAndDrainTimer stops a timer and drains its channel, per the pattern in
// the time.Timer.Stop documentation.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
