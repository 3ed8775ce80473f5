package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/quizbattle/quizbattle/internal/models"
	"github.com/quizbattle/quizbattle/internal/store"
)

// A reconnecting client rebuilt from the records must hold the same view a
// continuously subscribed observer does.
func TestMatchStateMatchesSubscribedView(t *testing.T) {
	clock := clockwork.NewFakeClock()
	st := store.New(clock, store.DefaultConfig())
	ctx := context.Background()

	err := st.CreateMatch(ctx, &models.Match{
		ID:                   "m1",
		Pin:                  "111222",
		Phase:                models.PhaseLobby,
		CurrentQuestionIndex: -1,
		Questions: []models.Question{
			{Text: "q1", Options: []string{"a", "b"}, CorrectIndex: 0},
		},
	})
	if err != nil {
		t.Fatalf("CreateMatch() error = %v", err)
	}
	st.CreatePlayer(ctx, "m1", &models.Player{ID: "p1", Name: "ada", Score: 300})

	sub, err := st.SubscribeMatch("m1")
	if err != nil {
		t.Fatalf("SubscribeMatch() error = %v", err)
	}
	defer sub.Close()
	<-sub.C

	phase := models.PhaseQuestion
	index := 0
	st.UpdateMatch(ctx, "m1", store.MatchUpdate{
		Phase:                &phase,
		CurrentQuestionIndex: &index,
		QuestionStartAt:      store.ServerNow(),
	})

	snap := <-sub.C
	subscribed := BuildMatchView(snap, st.Now(), 10*time.Second, 10*time.Second)

	provider := NewStateProvider(st, 10*time.Second, 10*time.Second)
	rebuilt, err := provider.MatchState(ctx, "m1")
	if err != nil {
		t.Fatalf("MatchState() error = %v", err)
	}

	a, _ := json.Marshal(subscribed)
	b, _ := json.Marshal(rebuilt)
	if string(a) != string(b) {
		t.Errorf("rebuilt view differs from subscribed view:\n%s\n%s", a, b)
	}
}

func TestMatchStateUnknownMatch(t *testing.T) {
	st := store.New(clockwork.NewFakeClock(), store.DefaultConfig())
	provider := NewStateProvider(st, 10*time.Second, 10*time.Second)

	_, err := provider.MatchState(context.Background(), "missing")
	if !errors.Is(err, store.ErrMatchNotFound) {
		t.Errorf("MatchState(missing) error = %v, want ErrMatchNotFound", err)
	}
}
