package match

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/quizbattle/quizbattle/internal/models"
	"github.com/quizbattle/quizbattle/internal/store"
)

func newTestController(t *testing.T) (*Controller, *store.GameStore) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	st := store.New(clock, store.DefaultConfig())
	c := NewController(st, clock, DefaultConfig())
	t.Cleanup(c.Close)
	return c, st
}

func testQuestions(n int) []models.Question {
	qs := make([]models.Question, n)
	for i := range qs {
		qs[i] = models.Question{
			Text:         "q",
			Options:      []string{"a", "b"},
			CorrectIndex: 0,
		}
	}
	return qs
}

func TestCreateMatch(t *testing.T) {
	c, st := newTestController(t)
	ctx := context.Background()

	m, err := c.CreateMatch(ctx, testQuestions(3))
	if err != nil {
		t.Fatalf("CreateMatch() error = %v", err)
	}
	if m.Phase != models.PhaseLobby {
		t.Errorf("phase = %s, want lobby", m.Phase)
	}
	if m.CurrentQuestionIndex != -1 {
		t.Errorf("current question index = %d, want -1", m.CurrentQuestionIndex)
	}
	if ok, _ := regexp.MatchString(`^\d{6}$`, m.Pin); !ok {
		t.Errorf("pin = %q, want 6 digits", m.Pin)
	}

	stored, err := st.GetMatch(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetMatch() error = %v", err)
	}
	if len(stored.Questions) != 3 {
		t.Errorf("stored question count = %d, want 3", len(stored.Questions))
	}
}

func TestCreateMatchPinsUnique(t *testing.T) {
	c, _ := newTestController(t)
	ctx := context.Background()

	pins := make(map[string]bool)
	for i := 0; i < 25; i++ {
		m, err := c.CreateMatch(ctx, testQuestions(1))
		if err != nil {
			t.Fatalf("CreateMatch() error = %v", err)
		}
		if pins[m.Pin] {
			t.Fatalf("pin %q allocated twice among active matches", m.Pin)
		}
		pins[m.Pin] = true
	}
}

func TestMatchLifecycle(t *testing.T) {
	c, st := newTestController(t)
	ctx := context.Background()

	m, err := c.CreateMatch(ctx, testQuestions(2))
	if err != nil {
		t.Fatalf("CreateMatch() error = %v", err)
	}

	if err := c.StartMatch(ctx, m.ID); err != nil {
		t.Fatalf("StartMatch() error = %v", err)
	}
	got, _ := st.GetMatch(ctx, m.ID)
	if got.Phase != models.PhaseStarting {
		t.Fatalf("phase after start = %s, want starting", got.Phase)
	}
	if got.StartingAt == nil || !got.StartingAt.Resolved {
		t.Error("StartingAt not resolved after start")
	}

	// First question
	if err := c.AdvanceQuestion(ctx, m.ID); err != nil {
		t.Fatalf("AdvanceQuestion() error = %v", err)
	}
	got, _ = st.GetMatch(ctx, m.ID)
	if got.Phase != models.PhaseQuestion || got.CurrentQuestionIndex != 0 {
		t.Fatalf("after advance: phase = %s index = %d, want question/0", got.Phase, got.CurrentQuestionIndex)
	}
	if got.QuestionStartAt == nil || !got.QuestionStartAt.Resolved {
		t.Error("QuestionStartAt not resolved after advance")
	}

	if err := c.RevealQuestion(ctx, m.ID); err != nil {
		t.Fatalf("RevealQuestion() error = %v", err)
	}
	got, _ = st.GetMatch(ctx, m.ID)
	if got.Phase != models.PhaseReveal {
		t.Fatalf("phase after reveal = %s, want reveal", got.Phase)
	}

	// Second question, then past the end
	if err := c.AdvanceQuestion(ctx, m.ID); err != nil {
		t.Fatalf("AdvanceQuestion() error = %v", err)
	}
	if err := c.RevealQuestion(ctx, m.ID); err != nil {
		t.Fatalf("RevealQuestion() error = %v", err)
	}
	if err := c.AdvanceQuestion(ctx, m.ID); err != nil {
		t.Fatalf("AdvanceQuestion() past last question error = %v", err)
	}
	got, _ = st.GetMatch(ctx, m.ID)
	if got.Phase != models.PhaseEnded {
		t.Fatalf("phase past last question = %s, want ended", got.Phase)
	}
}

func TestStaleCommandsAreNoOps(t *testing.T) {
	c, st := newTestController(t)
	ctx := context.Background()

	m, _ := c.CreateMatch(ctx, testQuestions(2))

	// Advance and reveal before start do nothing
	if err := c.AdvanceQuestion(ctx, m.ID); err != nil {
		t.Fatalf("AdvanceQuestion() in lobby error = %v", err)
	}
	if err := c.RevealQuestion(ctx, m.ID); err != nil {
		t.Fatalf("RevealQuestion() in lobby error = %v", err)
	}
	got, _ := st.GetMatch(ctx, m.ID)
	if got.Phase != models.PhaseLobby {
		t.Fatalf("phase after stale commands = %s, want lobby", got.Phase)
	}

	// Duplicate start does not restart the countdown
	c.StartMatch(ctx, m.ID)
	first, _ := st.GetMatch(ctx, m.ID)
	c.StartMatch(ctx, m.ID)
	second, _ := st.GetMatch(ctx, m.ID)
	if second.Phase != models.PhaseStarting {
		t.Fatalf("phase after duplicate start = %s, want starting", second.Phase)
	}
	if first.StartingAt == nil || second.StartingAt == nil || *first.StartingAt != *second.StartingAt {
		t.Error("duplicate start rewrote the starting deadline")
	}

	// Commands after end do nothing
	c.EndMatch(ctx, m.ID)
	if err := c.StartMatch(ctx, m.ID); err != nil {
		t.Fatalf("StartMatch() after end error = %v", err)
	}
	got, _ = st.GetMatch(ctx, m.ID)
	if got.Phase != models.PhaseEnded {
		t.Fatalf("phase after post-end start = %s, want ended", got.Phase)
	}
}

func TestRevealScoresOnce(t *testing.T) {
	c, st := newTestController(t)
	ctx := context.Background()

	m, _ := c.CreateMatch(ctx, testQuestions(1))
	p := &models.Player{ID: "p1", Name: "ada", Avatar: "cat"}
	if err := st.CreatePlayer(ctx, m.ID, p); err != nil {
		t.Fatalf("CreatePlayer() error = %v", err)
	}

	c.StartMatch(ctx, m.ID)
	c.AdvanceQuestion(ctx, m.ID)
	if err := st.WriteAnswer(ctx, m.ID, "p1", 0); err != nil {
		t.Fatalf("WriteAnswer() error = %v", err)
	}

	if err := c.RevealQuestion(ctx, m.ID); err != nil {
		t.Fatalf("RevealQuestion() error = %v", err)
	}
	scored, _ := st.GetPlayer(ctx, m.ID, "p1")
	if scored.Score != MaxScorePerQuestion {
		t.Fatalf("score = %d, want %d", scored.Score, MaxScorePerQuestion)
	}

	// A second reveal must not double-score
	if err := c.RevealQuestion(ctx, m.ID); err != nil {
		t.Fatalf("second RevealQuestion() error = %v", err)
	}
	again, _ := st.GetPlayer(ctx, m.ID, "p1")
	if again.Score != MaxScorePerQuestion {
		t.Errorf("score after duplicate reveal = %d, want %d", again.Score, MaxScorePerQuestion)
	}
}

func TestStartSchedulesFirstQuestion(t *testing.T) {
	clock := clockwork.NewRealClock()
	st := store.New(clock, store.DefaultConfig())
	c := NewController(st, clock, Config{
		StartingCountdown: 20 * time.Millisecond,
		QuestionDuration:  time.Second,
	})
	defer c.Close()
	ctx := context.Background()

	m, _ := c.CreateMatch(ctx, testQuestions(1))
	if err := c.StartMatch(ctx, m.ID); err != nil {
		t.Fatalf("StartMatch() error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, err := st.GetMatch(ctx, m.ID)
		if err != nil {
			t.Fatalf("GetMatch() error = %v", err)
		}
		if got.Phase == models.PhaseQuestion {
			if got.CurrentQuestionIndex != 0 {
				t.Fatalf("question index = %d, want 0", got.CurrentQuestionIndex)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("countdown did not advance to the first question")
}
