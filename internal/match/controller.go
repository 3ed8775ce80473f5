package match

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/quizbattle/quizbattle/internal/models"
	"github.com/quizbattle/quizbattle/internal/store"
)

// advanceBuffer pads the scheduled first-question transition so clients
// finishing their own countdown never see the phase flip early.
const advanceBuffer = 200 * time.Millisecond

const pinAttempts = 100

// Config holds phase controller timing.
type Config struct {
	StartingCountdown time.Duration
	QuestionDuration  time.Duration
}

// DefaultConfig returns the default match timing.
func DefaultConfig() Config {
	return Config{
		StartingCountdown: StartingCountdown,
		QuestionDuration:  QuestionDuration,
	}
}

// Controller owns the match phase state machine. Exactly one controller
// drives a given match: transitions issued here are the only writers of
// match-level fields, which is what makes the idempotency guards sufficient
// without a distributed lock. A reconnecting host re-attaches to the same
// controller rather than spawning a second driver.
type Controller struct {
	store *store.GameStore
	clock clockwork.Clock
	cfg   Config

	// transMu serializes transitions so duplicate host commands cannot
	// interleave between the phase guard and the commit.
	transMu sync.Mutex

	timersMu sync.Mutex
	timers   map[string]clockwork.Timer

	done     chan struct{}
	doneOnce sync.Once
}

// NewController creates a phase controller over the given store and clock.
func NewController(st *store.GameStore, clock clockwork.Clock, cfg Config) *Controller {
	if cfg.StartingCountdown <= 0 {
		cfg.StartingCountdown = StartingCountdown
	}
	if cfg.QuestionDuration <= 0 {
		cfg.QuestionDuration = QuestionDuration
	}
	return &Controller{
		store:  st,
		clock:  clock,
		cfg:    cfg,
		timers: make(map[string]clockwork.Timer),
		done:   make(chan struct{}),
	}
}

// QuestionDuration returns how long each question accepts answers.
func (c *Controller) QuestionDuration() time.Duration {
	return c.cfg.QuestionDuration
}

// StartingCountdown returns the lobby-to-first-question countdown duration.
func (c *Controller) StartingCountdown() time.Duration {
	return c.cfg.StartingCountdown
}

// Close stops all scheduled transitions.
func (c *Controller) Close() {
	c.doneOnce.Do(func() { close(c.done) })

	c.timersMu.Lock()
	defer c.timersMu.Unlock()
	for id, t := range c.timers {
		stopAndDrainTimer(t)
		delete(c.timers, id)
	}
}

// CreateMatch allocates a match with a freshly generated unique pin, in the
// lobby phase with a fixed question list.
func (c *Controller) CreateMatch(ctx context.Context, questions []models.Question) (*models.Match, error) {
	pin, err := c.allocatePin(ctx)
	if err != nil {
		return nil, err
	}

	m := &models.Match{
		ID:                   uuid.New().String(),
		Pin:                  pin,
		Phase:                models.PhaseLobby,
		CreatedAt:            c.clock.Now(),
		CurrentQuestionIndex: -1,
		Questions:            questions,
	}
	if err := c.store.CreateMatch(ctx, m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAllocation, err)
	}

	log.Info().Str("match_id", m.ID).Str("pin", pin).Int("questions", len(questions)).Msg("match created")
	return m, nil
}

// allocatePin generates a 6-digit pin unique among all non-ended matches.
func (c *Controller) allocatePin(ctx context.Context) (string, error) {
	matches, err := c.store.ListMatches(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAllocation, err)
	}
	active := make(map[string]bool, len(matches))
	for _, m := range matches {
		if !m.Phase.Terminal() {
			active[m.Pin] = true
		}
	}

	for attempt := 0; attempt < pinAttempts; attempt++ {
		pin := fmt.Sprintf("%06d", rand.IntN(900000)+100000)
		if !active[pin] {
			return pin, nil
		}
	}
	return "", fmt.Errorf("%w: no free pin", ErrAllocation)
}

// StartMatch moves a lobby match into the starting countdown and schedules
// the transition to the first question. The starting deadline is a
// server-timestamp request resolved by the store, so all observers agree on
// one wall-clock origin. Re-invocation outside the lobby phase is a silent
// no-op, so a reconnecting host re-sending the command cannot spawn a second
// countdown.
func (c *Controller) StartMatch(ctx context.Context, matchID string) error {
	c.transMu.Lock()
	defer c.transMu.Unlock()

	m, err := c.store.GetMatch(ctx, matchID)
	if err != nil {
		return err
	}
	if m.Phase != models.PhaseLobby {
		log.Debug().Str("match_id", matchID).Str("phase", m.Phase.String()).Msg("stale start command ignored")
		return nil
	}

	phase := models.PhaseStarting
	if err := c.store.UpdateMatch(ctx, matchID, store.MatchUpdate{
		Phase:      &phase,
		StartingAt: store.ServerNow(),
	}); err != nil {
		return err
	}

	c.scheduleAdvance(matchID, c.cfg.StartingCountdown+advanceBuffer)
	log.Info().Str("match_id", matchID).Dur("countdown", c.cfg.StartingCountdown).Msg("match starting")
	return nil
}

// AdvanceQuestion moves to the next question, or to ended past the last
// one. The index bump, phase, question start timestamp and the reset of
// every player's per-question fields commit as one atomic multi-key write.
// Valid only from starting or reveal; anything else is a stale no-op.
func (c *Controller) AdvanceQuestion(ctx context.Context, matchID string) error {
	c.transMu.Lock()
	defer c.transMu.Unlock()

	m, err := c.store.GetMatch(ctx, matchID)
	if err != nil {
		return err
	}
	if m.Phase != models.PhaseStarting && m.Phase != models.PhaseReveal {
		log.Debug().Str("match_id", matchID).Str("phase", m.Phase.String()).Msg("stale advance command ignored")
		return nil
	}

	next := m.CurrentQuestionIndex + 1
	if next >= len(m.Questions) {
		return c.endLocked(ctx, matchID)
	}

	phase := models.PhaseQuestion
	if err := c.store.UpdateMatch(ctx, matchID, store.MatchUpdate{
		Phase:                &phase,
		CurrentQuestionIndex: &next,
		QuestionStartAt:      store.ServerNow(),
		ResetPlayers:         true,
	}); err != nil {
		return err
	}

	c.cancelTimer(matchID)
	log.Info().Str("match_id", matchID).Int("question_index", next).Msg("question started")
	return nil
}

// RevealQuestion scores the current question and moves the match to reveal.
// Once the phase has left question a repeated call is a no-op, so players
// can never be scored twice for one question.
func (c *Controller) RevealQuestion(ctx context.Context, matchID string) error {
	c.transMu.Lock()
	defer c.transMu.Unlock()

	m, err := c.store.GetMatch(ctx, matchID)
	if err != nil {
		return err
	}
	if m.Phase != models.PhaseQuestion {
		log.Debug().Str("match_id", matchID).Str("phase", m.Phase.String()).Msg("stale reveal command ignored")
		return nil
	}
	q := m.CurrentQuestion()
	if q == nil {
		log.Warn().Str("match_id", matchID).Int("question_index", m.CurrentQuestionIndex).Msg("reveal with no current question ignored")
		return nil
	}

	// Reading players and writing scores are two store calls; the window
	// between them is accepted, not eliminated.
	players, err := c.store.ListPlayers(ctx, matchID)
	if err != nil {
		return err
	}
	updates := ScoreQuestion(*q, m.QuestionStartAt, players)
	if err := c.store.WriteScores(ctx, matchID, updates); err != nil {
		return err
	}

	phase := models.PhaseReveal
	if err := c.store.UpdateMatch(ctx, matchID, store.MatchUpdate{Phase: &phase}); err != nil {
		return err
	}

	log.Info().Str("match_id", matchID).Int("question_index", m.CurrentQuestionIndex).Int("players", len(players)).Msg("question revealed")
	return nil
}

// EndMatch moves the match to the terminal ended phase from any non-terminal
// phase.
func (c *Controller) EndMatch(ctx context.Context, matchID string) error {
	c.transMu.Lock()
	defer c.transMu.Unlock()

	m, err := c.store.GetMatch(ctx, matchID)
	if err != nil {
		return err
	}
	if m.Phase.Terminal() {
		log.Debug().Str("match_id", matchID).Msg("stale end command ignored")
		return nil
	}
	return c.endLocked(ctx, matchID)
}

func (c *Controller) endLocked(ctx context.Context, matchID string) error {
	phase := models.PhaseEnded
	if err := c.store.UpdateMatch(ctx, matchID, store.MatchUpdate{Phase: &phase}); err != nil {
		return err
	}
	c.cancelTimer(matchID)
	log.Info().Str("match_id", matchID).Msg("match ended")
	return nil
}
