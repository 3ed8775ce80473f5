package answer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/quizbattle/quizbattle/internal/models"
	"github.com/quizbattle/quizbattle/internal/store"
)

func newTestCollector(t *testing.T) (*Collector, *store.GameStore) {
	t.Helper()
	st := store.New(clockwork.NewFakeClock(), store.DefaultConfig())
	ctx := context.Background()

	err := st.CreateMatch(ctx, &models.Match{
		ID:                   "m1",
		Pin:                  "111222",
		Phase:                models.PhaseQuestion,
		CurrentQuestionIndex: 0,
		Questions: []models.Question{
			{Text: "q", Options: []string{"a", "b", "c"}, CorrectIndex: 1},
		},
	})
	if err != nil {
		t.Fatalf("CreateMatch() error = %v", err)
	}
	if err := st.CreatePlayer(ctx, "m1", &models.Player{ID: "p1", Name: "ada"}); err != nil {
		t.Fatalf("CreatePlayer() error = %v", err)
	}
	return New(st), st
}

func openObservation() Observation {
	return Observation{
		Phase:         models.PhaseQuestion,
		QuestionIndex: 0,
		Remaining:     5 * time.Second,
	}
}

func TestSubmitRecordsAnswer(t *testing.T) {
	c, st := newTestCollector(t)
	ctx := context.Background()

	if err := c.Submit(ctx, "m1", "p1", 0, 2, openObservation()); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	p, _ := st.GetPlayer(ctx, "m1", "p1")
	if p.CurrentAnswer == nil || *p.CurrentAnswer != 2 {
		t.Errorf("CurrentAnswer = %v, want 2", p.CurrentAnswer)
	}
	if p.AnswerTime == nil || !p.AnswerTime.Resolved {
		t.Error("AnswerTime not assigned")
	}
}

func TestSubmitLastWriteWins(t *testing.T) {
	c, st := newTestCollector(t)
	ctx := context.Background()

	c.Submit(ctx, "m1", "p1", 0, 0, openObservation())
	if err := c.Submit(ctx, "m1", "p1", 0, 1, openObservation()); err != nil {
		t.Fatalf("second Submit() error = %v", err)
	}

	p, _ := st.GetPlayer(ctx, "m1", "p1")
	if p.CurrentAnswer == nil || *p.CurrentAnswer != 1 {
		t.Errorf("CurrentAnswer = %v, want the later submission 1", p.CurrentAnswer)
	}
}

func TestSubmitGuardedByObservation(t *testing.T) {
	tests := []struct {
		name string
		obs  Observation
	}{
		{"wrong phase", Observation{Phase: models.PhaseReveal, QuestionIndex: 0, Remaining: time.Second}},
		{"stale question index", Observation{Phase: models.PhaseQuestion, QuestionIndex: 1, Remaining: time.Second}},
		{"countdown expired", Observation{Phase: models.PhaseQuestion, QuestionIndex: 0, Remaining: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, st := newTestCollector(t)
			ctx := context.Background()

			err := c.Submit(ctx, "m1", "p1", tt.obs.QuestionIndex, 1, tt.obs)
			if !errors.Is(err, ErrQuestionClosed) {
				t.Fatalf("Submit() error = %v, want ErrQuestionClosed", err)
			}

			p, _ := st.GetPlayer(ctx, "m1", "p1")
			if p.CurrentAnswer != nil {
				t.Error("rejected submission still wrote an answer")
			}
		})
	}
}

func TestSubmitChoiceOutOfRange(t *testing.T) {
	c, st := newTestCollector(t)
	ctx := context.Background()

	for _, choice := range []int{-1, 3} {
		err := c.Submit(ctx, "m1", "p1", 0, choice, openObservation())
		if !errors.Is(err, ErrChoiceOutOfRange) {
			t.Errorf("Submit(choice=%d) error = %v, want ErrChoiceOutOfRange", choice, err)
		}
	}

	p, _ := st.GetPlayer(ctx, "m1", "p1")
	if p.CurrentAnswer != nil {
		t.Error("out-of-range submission still wrote an answer")
	}
}

func TestSubmitUnknownIDs(t *testing.T) {
	c, _ := newTestCollector(t)
	ctx := context.Background()

	if err := c.Submit(ctx, "missing", "p1", 0, 1, openObservation()); !errors.Is(err, store.ErrMatchNotFound) {
		t.Errorf("Submit(unknown match) error = %v, want ErrMatchNotFound", err)
	}
	if err := c.Submit(ctx, "m1", "missing", 0, 1, openObservation()); !errors.Is(err, store.ErrPlayerNotFound) {
		t.Errorf("Submit(unknown player) error = %v, want ErrPlayerNotFound", err)
	}
}
