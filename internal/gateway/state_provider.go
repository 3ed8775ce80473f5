package gateway

import (
	"context"
	"time"

	"github.com/quizbattle/quizbattle/internal/store"
)

// StateProvider rebuilds the current match view from the store records.
// Reconnecting clients get exactly the snapshot a continuously subscribed
// observer holds, with no extra server-side resume state.
type StateProvider struct {
	store             *store.GameStore
	questionDuration  time.Duration
	startingCountdown time.Duration
}

// NewStateProvider creates a state provider.
func NewStateProvider(st *store.GameStore, questionDuration, startingCountdown time.Duration) *StateProvider {
	return &StateProvider{store: st, questionDuration: questionDuration, startingCountdown: startingCountdown}
}

// MatchState reads the match and its players and normalizes them.
func (p *StateProvider) MatchState(ctx context.Context, matchID string) (MatchView, error) {
	m, err := p.store.GetMatch(ctx, matchID)
	if err != nil {
		return MatchView{}, err
	}
	players, err := p.store.ListPlayers(ctx, matchID)
	if err != nil {
		return MatchView{}, err
	}
	return BuildMatchView(store.MatchSnapshot{Match: m, Players: players}, p.store.Now(), p.questionDuration, p.startingCountdown), nil
}
