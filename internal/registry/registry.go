// Package registry creates and reads per-player records scoped under a
// match, keyed by the match's human-dialable pin.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/quizbattle/quizbattle/internal/models"
	"github.com/quizbattle/quizbattle/internal/store"
)

var (
	// ErrNotFound is returned when no non-ended match carries the pin.
	ErrNotFound = errors.New("no active match with that pin")
	// ErrValidation is returned when join input is incomplete.
	ErrValidation = errors.New("name, pin and avatar are required")
)

// Registry creates and reads player records.
type Registry struct {
	store *store.GameStore
}

// New creates a player registry over the game store.
func New(st *store.GameStore) *Registry {
	return &Registry{store: st}
}

// JoinMatch registers a new player in the non-ended match carrying the given
// pin and returns the created record. Joining never fails because of the
// match's phase; a late joiner simply waits for the next question.
func (r *Registry) JoinMatch(ctx context.Context, pin, name, avatar string) (*models.Match, *models.Player, error) {
	if pin == "" || name == "" || avatar == "" {
		return nil, nil, ErrValidation
	}

	m, err := r.FindMatchByPin(ctx, pin)
	if err != nil {
		return nil, nil, err
	}

	p := &models.Player{
		ID:     uuid.New().String(),
		Name:   name,
		Avatar: avatar,
	}
	if err := r.store.CreatePlayer(ctx, m.ID, p); err != nil {
		return nil, nil, fmt.Errorf("create player: %w", err)
	}

	log.Info().Str("match_id", m.ID).Str("player_id", p.ID).Str("name", name).Msg("player joined")
	return m, p, nil
}

// FindMatchByPin scans all matches for a non-ended one with the given pin.
// A linear scan is fine at the expected match counts.
func (r *Registry) FindMatchByPin(ctx context.Context, pin string) (*models.Match, error) {
	matches, err := r.store.ListMatches(ctx)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	for _, m := range matches {
		if m.Pin == pin && !m.Phase.Terminal() {
			return m, nil
		}
	}
	return nil, ErrNotFound
}

// GetPlayer reads one player record.
func (r *Registry) GetPlayer(ctx context.Context, matchID, playerID string) (*models.Player, error) {
	return r.store.GetPlayer(ctx, matchID, playerID)
}

// ListPlayers returns a match's players in leaderboard order: score
// descending, then name.
func (r *Registry) ListPlayers(ctx context.Context, matchID string) ([]*models.Player, error) {
	players, err := r.store.ListPlayers(ctx, matchID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(players, func(i, j int) bool {
		if players[i].Score != players[j].Score {
			return players[i].Score > players[j].Score
		}
		return players[i].Name < players[j].Name
	})
	return players, nil
}
