package match

import (
	"time"

	"github.com/quizbattle/quizbattle/internal/models"
	"github.com/quizbattle/quizbattle/internal/store"
)

const (
	// MaxScorePerQuestion is the gain for an instant correct answer; every
	// elapsed millisecond decays it by one point.
	MaxScorePerQuestion = 10000
	// QuestionDuration is how long a question accepts answers. Answers
	// slower than the full duration naturally floor to zero gain.
	QuestionDuration = 10 * time.Second
	// StartingCountdown runs between the host starting the match and the
	// first question.
	StartingCountdown = 10 * time.Second
)

// ScoreQuestion computes the time-decayed score deltas for one question.
// A player gains max(0, MaxScorePerQuestion - (answerTime - questionStart))
// for a correct answer with both timestamps resolved, else zero. The result
// is committed as one batched write by the caller.
func ScoreQuestion(q models.Question, questionStart *models.Timestamp, players []*models.Player) map[string]store.ScoreUpdate {
	updates := make(map[string]store.ScoreUpdate, len(players))
	for _, p := range players {
		gain := 0
		if p.CurrentAnswer != nil && *p.CurrentAnswer == q.CorrectIndex &&
			p.AnswerTime != nil && p.AnswerTime.Resolved &&
			questionStart != nil && questionStart.Resolved {
			delta := p.AnswerTime.Millis - questionStart.Millis
			gain = MaxScorePerQuestion - int(delta)
			if gain < 0 {
				gain = 0
			}
		}
		updates[p.ID] = store.ScoreUpdate{
			Score:    p.Score + gain,
			LastGain: gain,
		}
	}
	return updates
}
