package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/jonboulle/clockwork"

	"github.com/quizbattle/quizbattle/internal/models"
	"github.com/quizbattle/quizbattle/internal/store"
)

func newTestRegistry(t *testing.T) (*Registry, *store.GameStore) {
	t.Helper()
	st := store.New(clockwork.NewFakeClock(), store.DefaultConfig())
	return New(st), st
}

func seedMatch(t *testing.T, st *store.GameStore, id, pin string, phase models.Phase) {
	t.Helper()
	err := st.CreateMatch(context.Background(), &models.Match{
		ID:                   id,
		Pin:                  pin,
		Phase:                phase,
		CurrentQuestionIndex: -1,
		Questions:            []models.Question{{Text: "q", Options: []string{"a", "b"}}},
	})
	if err != nil {
		t.Fatalf("CreateMatch() error = %v", err)
	}
}

func TestJoinMatch(t *testing.T) {
	r, st := newTestRegistry(t)
	ctx := context.Background()
	seedMatch(t, st, "m1", "111222", models.PhaseLobby)

	m, p, err := r.JoinMatch(ctx, "111222", "ada", "cat")
	if err != nil {
		t.Fatalf("JoinMatch() error = %v", err)
	}
	if m.ID != "m1" {
		t.Errorf("joined match = %s, want m1", m.ID)
	}
	if p.ID == "" || p.Name != "ada" || p.Avatar != "cat" {
		t.Errorf("created player = %+v, want named record with generated id", p)
	}

	stored, err := st.GetPlayer(ctx, "m1", p.ID)
	if err != nil {
		t.Fatalf("GetPlayer() error = %v", err)
	}
	if stored.Score != 0 || stored.CurrentAnswer != nil {
		t.Errorf("new player = %+v, want zero score and no answer", stored)
	}
}

func TestJoinMatchValidation(t *testing.T) {
	r, st := newTestRegistry(t)
	ctx := context.Background()
	seedMatch(t, st, "m1", "111222", models.PhaseLobby)

	tests := []struct {
		name              string
		pin, player, icon string
	}{
		{"missing pin", "", "ada", "cat"},
		{"missing name", "111222", "", "cat"},
		{"missing avatar", "111222", "ada", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := r.JoinMatch(ctx, tt.pin, tt.player, tt.icon)
			if !errors.Is(err, ErrValidation) {
				t.Errorf("JoinMatch() error = %v, want ErrValidation", err)
			}
		})
	}

	players, _ := st.ListPlayers(ctx, "m1")
	if len(players) != 0 {
		t.Errorf("rejected joins created %d players, want 0", len(players))
	}
}

func TestJoinMatchUnknownPin(t *testing.T) {
	r, st := newTestRegistry(t)
	ctx := context.Background()
	seedMatch(t, st, "m1", "111222", models.PhaseLobby)

	_, _, err := r.JoinMatch(ctx, "999999", "ada", "cat")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("JoinMatch(unknown pin) error = %v, want ErrNotFound", err)
	}

	players, _ := st.ListPlayers(ctx, "m1")
	if len(players) != 0 {
		t.Errorf("failed join created %d players, want 0", len(players))
	}
}

func TestJoinMatchIgnoresEndedMatches(t *testing.T) {
	r, st := newTestRegistry(t)
	ctx := context.Background()
	seedMatch(t, st, "old", "111222", models.PhaseEnded)

	if _, _, err := r.JoinMatch(ctx, "111222", "ada", "cat"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("JoinMatch(ended match pin) error = %v, want ErrNotFound", err)
	}

	// A new match may reuse a pin once the old one has ended
	seedMatch(t, st, "new", "111222", models.PhaseLobby)
	m, _, err := r.JoinMatch(ctx, "111222", "ada", "cat")
	if err != nil {
		t.Fatalf("JoinMatch(reused pin) error = %v", err)
	}
	if m.ID != "new" {
		t.Errorf("joined match = %s, want the non-ended one", m.ID)
	}
}

func TestJoinMatchMidGame(t *testing.T) {
	r, st := newTestRegistry(t)
	ctx := context.Background()
	seedMatch(t, st, "m1", "111222", models.PhaseQuestion)

	if _, _, err := r.JoinMatch(ctx, "111222", "late", "owl"); err != nil {
		t.Fatalf("JoinMatch() mid-game error = %v", err)
	}
}

func TestListPlayersLeaderboardOrder(t *testing.T) {
	r, st := newTestRegistry(t)
	ctx := context.Background()
	seedMatch(t, st, "m1", "111222", models.PhaseLobby)

	for _, p := range []*models.Player{
		{ID: "p1", Name: "zoe", Score: 500},
		{ID: "p2", Name: "ada", Score: 900},
		{ID: "p3", Name: "bob", Score: 500},
	} {
		if err := st.CreatePlayer(ctx, "m1", p); err != nil {
			t.Fatalf("CreatePlayer() error = %v", err)
		}
	}

	players, err := r.ListPlayers(ctx, "m1")
	if err != nil {
		t.Fatalf("ListPlayers() error = %v", err)
	}
	var got []string
	for _, p := range players {
		got = append(got, p.Name)
	}
	want := []string{"ada", "bob", "zoe"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("leaderboard order = %v, want %v", got, want)
		}
	}
}
