package match

import (
	"testing"

	"github.com/quizbattle/quizbattle/internal/models"
)

func TestScoreQuestion(t *testing.T) {
	question := models.Question{
		Text:         "q",
		Options:      []string{"a", "b", "c"},
		CorrectIndex: 1,
	}
	start := &models.Timestamp{Millis: 1000, Resolved: true}

	intPtr := func(v int) *int { return &v }
	ts := func(millis int64) *models.Timestamp {
		return &models.Timestamp{Millis: millis, Resolved: true}
	}

	tests := []struct {
		name     string
		player   *models.Player
		wantGain int
	}{
		{
			name: "instant correct answer gets max score",
			player: &models.Player{
				ID: "p", CurrentAnswer: intPtr(1), AnswerTime: ts(1000),
			},
			wantGain: MaxScorePerQuestion,
		},
		{
			name: "correct answer decays one point per millisecond",
			player: &models.Player{
				ID: "p", CurrentAnswer: intPtr(1), AnswerTime: ts(2234),
			},
			wantGain: 8766,
		},
		{
			name: "answer slower than max decay floors at zero",
			player: &models.Player{
				ID: "p", CurrentAnswer: intPtr(1), AnswerTime: ts(16000),
			},
			wantGain: 0,
		},
		{
			name: "wrong answer gains nothing",
			player: &models.Player{
				ID: "p", CurrentAnswer: intPtr(0), AnswerTime: ts(1100),
			},
			wantGain: 0,
		},
		{
			name:     "no answer gains nothing",
			player:   &models.Player{ID: "p"},
			wantGain: 0,
		},
		{
			name: "unresolved answer timestamp gains nothing",
			player: &models.Player{
				ID: "p", CurrentAnswer: intPtr(1), AnswerTime: &models.Timestamp{},
			},
			wantGain: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			updates := ScoreQuestion(question, start, []*models.Player{tt.player})
			up, ok := updates[tt.player.ID]
			if !ok {
				t.Fatal("ScoreQuestion() produced no update for player")
			}
			if up.LastGain != tt.wantGain {
				t.Errorf("LastGain = %d, want %d", up.LastGain, tt.wantGain)
			}
			if up.Score != tt.player.Score+tt.wantGain {
				t.Errorf("Score = %d, want %d", up.Score, tt.player.Score+tt.wantGain)
			}
		})
	}
}

func TestScoreQuestionAccumulates(t *testing.T) {
	question := models.Question{Options: []string{"a", "b"}, CorrectIndex: 0}
	start := &models.Timestamp{Millis: 5000, Resolved: true}

	choice := 0
	p := &models.Player{
		ID:            "p1",
		Score:         7500,
		CurrentAnswer: &choice,
		AnswerTime:    &models.Timestamp{Millis: 7000, Resolved: true},
	}

	updates := ScoreQuestion(question, start, []*models.Player{p})
	if got, want := updates["p1"].Score, 7500+8000; got != want {
		t.Errorf("Score = %d, want %d", got, want)
	}
}

func TestScoreQuestionUnresolvedStart(t *testing.T) {
	question := models.Question{Options: []string{"a", "b"}, CorrectIndex: 0}
	choice := 0
	p := &models.Player{
		ID:            "p1",
		CurrentAnswer: &choice,
		AnswerTime:    &models.Timestamp{Millis: 1000, Resolved: true},
	}

	for _, start := range []*models.Timestamp{nil, {}} {
		updates := ScoreQuestion(question, start, []*models.Player{p})
		if gain := updates["p1"].LastGain; gain != 0 {
			t.Errorf("LastGain with unresolved start = %d, want 0", gain)
		}
	}
}
