// Package answer accepts one answer-with-timestamp per player per question.
package answer

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quizbattle/quizbattle/internal/models"
	"github.com/quizbattle/quizbattle/internal/store"
)

var (
	// ErrQuestionClosed is returned when the caller's observed state no
	// longer accepts answers for the submitted question index.
	ErrQuestionClosed = errors.New("question is not accepting answers")
	// ErrChoiceOutOfRange is returned for a choice index outside the
	// question's options.
	ErrChoiceOutOfRange = errors.New("choice index out of range")
)

// Observation is the submitting session's locally observed match state at
// the moment of submission: its current phase, question index and countdown
// remaining. The guard below runs against this observation only; nothing on
// the store side re-validates the answer timestamp against the question
// deadline, so a clock-skewed client can land an answer after its countdown
// shows zero. That trust gap is inherited, not eliminated. Late answers
// still decay to zero gain once the delta exceeds the maximum score.
type Observation struct {
	Phase         models.Phase
	QuestionIndex int
	Remaining     time.Duration
}

// Collector writes guarded answer submissions to the store.
type Collector struct {
	store *store.GameStore
}

// New creates an answer collector over the game store.
func New(st *store.GameStore) *Collector {
	return &Collector{store: st}
}

// Submit records choiceIndex for the player if the observation shows the
// question phase for that exact index with time remaining. The write carries
// a server-assigned answer timestamp; resubmission overwrites, last write
// wins.
func (c *Collector) Submit(ctx context.Context, matchID, playerID string, questionIndex, choiceIndex int, obs Observation) error {
	if obs.Phase != models.PhaseQuestion || obs.QuestionIndex != questionIndex || obs.Remaining <= 0 {
		log.Debug().
			Str("match_id", matchID).
			Str("player_id", playerID).
			Str("observed_phase", obs.Phase.String()).
			Int("observed_index", obs.QuestionIndex).
			Int("submitted_index", questionIndex).
			Dur("remaining", obs.Remaining).
			Msg("answer rejected by local guard")
		return ErrQuestionClosed
	}

	m, err := c.store.GetMatch(ctx, matchID)
	if err != nil {
		return err
	}
	q := m.CurrentQuestion()
	if q == nil || choiceIndex < 0 || choiceIndex >= len(q.Options) {
		return ErrChoiceOutOfRange
	}

	return c.store.WriteAnswer(ctx, matchID, playerID, choiceIndex)
}
