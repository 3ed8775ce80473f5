package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/quizbattle/quizbattle/internal/models"
)

var (
	// ErrMatchNotFound is returned when a match id resolves to no record.
	ErrMatchNotFound = errors.New("match not found")
	// ErrPlayerNotFound is returned when a player id resolves to no record.
	ErrPlayerNotFound = errors.New("player not found")
	// ErrMatchExists is returned on a duplicate match id.
	ErrMatchExists = errors.New("match already exists")
)

// Config holds configuration for the game store.
type Config struct {
	// ResolveDelay is how long a server-timestamp write stays a placeholder
	// before the store's clock resolves it. Zero resolves at commit.
	ResolveDelay time.Duration
	// SubscriptionBuffer is the per-subscriber snapshot channel depth.
	SubscriptionBuffer int
}

// DefaultConfig returns default game store configuration.
func DefaultConfig() Config {
	return Config{
		ResolveDelay:       0,
		SubscriptionBuffer: 64,
	}
}

// GameStore is the authoritative mutable record store for matches and their
// players. Commits are serialized under one lock; every commit fans out to
// all current subscribers of the touched paths in commit order. Writes that
// request a server timestamp are resolved by the store's own clock, so all
// observers agree on a single wall-clock origin.
type GameStore struct {
	mu    sync.Mutex
	clock clockwork.Clock
	cfg   Config

	matches     map[string]*models.Match
	players     map[string]map[string]*models.Player
	playerOrder map[string][]string

	nextSubID  int
	matchSubs  map[string]map[int]*MatchSubscription
	playerSubs map[string]map[int]*PlayerSubscription
	feedSubs   map[int]*FeedSubscription
}

// New creates a game store driven by the given clock.
func New(clock clockwork.Clock, cfg Config) *GameStore {
	if cfg.SubscriptionBuffer <= 0 {
		cfg.SubscriptionBuffer = DefaultConfig().SubscriptionBuffer
	}
	return &GameStore{
		clock:       clock,
		cfg:         cfg,
		matches:     make(map[string]*models.Match),
		players:     make(map[string]map[string]*models.Player),
		playerOrder: make(map[string][]string),
		matchSubs:   make(map[string]map[int]*MatchSubscription),
		playerSubs:  make(map[string]map[int]*PlayerSubscription),
		feedSubs:    make(map[int]*FeedSubscription),
	}
}

// Now returns the store's authoritative wall-clock time.
func (s *GameStore) Now() time.Time {
	return s.clock.Now()
}

// TimestampWrite describes one authoritative-timestamp field in a write.
type TimestampWrite struct {
	// ServerNow requests a timestamp assigned by the store's clock.
	ServerNow bool
	// Value is the concrete value when ServerNow is false; nil clears the field.
	Value *models.Timestamp
}

// ServerNow requests a store-assigned timestamp.
func ServerNow() *TimestampWrite {
	return &TimestampWrite{ServerNow: true}
}

// ClearTimestamp clears a timestamp field.
func ClearTimestamp() *TimestampWrite {
	return &TimestampWrite{}
}

// MatchUpdate is one atomic multi-key write against a match record. All set
// fields, including the per-question reset of every player, commit in a
// single call so observers never see a partially-updated match.
type MatchUpdate struct {
	Phase                *models.Phase
	CurrentQuestionIndex *int
	StartingAt           *TimestampWrite
	QuestionStartAt      *TimestampWrite
	// ResetPlayers clears currentAnswer/answerTime/lastGain on every player.
	ResetPlayers bool
}

// ScoreUpdate is the scorer's per-player result for one question.
type ScoreUpdate struct {
	Score    int
	LastGain int
}

// CreateMatch stores a new match record.
func (s *GameStore) CreateMatch(ctx context.Context, m *models.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.matches[m.ID]; ok {
		return ErrMatchExists
	}
	s.matches[m.ID] = m.Clone()
	s.players[m.ID] = make(map[string]*models.Player)
	s.playerOrder[m.ID] = nil

	s.notifyMatchLocked(m.ID)
	s.emitLocked(Event{Type: EventMatchCreated, MatchID: m.ID})
	return nil
}

// CreatePlayer stores a new player record under a match.
func (s *GameStore) CreatePlayer(ctx context.Context, matchID string, p *models.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.matches[matchID]; !ok {
		return ErrMatchNotFound
	}
	s.players[matchID][p.ID] = p.Clone()
	s.playerOrder[matchID] = append(s.playerOrder[matchID], p.ID)

	s.notifyMatchLocked(matchID)
	s.notifyPlayerLocked(matchID, p.ID)
	s.emitLocked(Event{Type: EventPlayerJoined, MatchID: matchID, PlayerID: p.ID})
	return nil
}

// GetMatch returns a copy of the match record.
func (s *GameStore) GetMatch(ctx context.Context, matchID string) (*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.matches[matchID]
	if !ok {
		return nil, ErrMatchNotFound
	}
	return m.Clone(), nil
}

// ListMatches returns copies of all match records.
func (s *GameStore) ListMatches(ctx context.Context) ([]*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.Match, 0, len(s.matches))
	for _, m := range s.matches {
		out = append(out, m.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// GetPlayer returns a copy of one player record.
func (s *GameStore) GetPlayer(ctx context.Context, matchID, playerID string) (*models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.getPlayerLocked(matchID, playerID)
}

func (s *GameStore) getPlayerLocked(matchID, playerID string) (*models.Player, error) {
	ps, ok := s.players[matchID]
	if !ok {
		return nil, ErrMatchNotFound
	}
	p, ok := ps[playerID]
	if !ok {
		return nil, ErrPlayerNotFound
	}
	return p.Clone(), nil
}

// ListPlayers returns copies of a match's players in join order.
func (s *GameStore) ListPlayers(ctx context.Context, matchID string) ([]*models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.players[matchID]; !ok {
		return nil, ErrMatchNotFound
	}
	return s.listPlayersLocked(matchID), nil
}

func (s *GameStore) listPlayersLocked(matchID string) []*models.Player {
	ids := s.playerOrder[matchID]
	out := make([]*models.Player, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.players[matchID][id]; ok {
			out = append(out, p.Clone())
		}
	}
	return out
}

// UpdateMatch applies one atomic multi-key write to a match record and fans
// the new snapshot out to subscribers.
func (s *GameStore) UpdateMatch(ctx context.Context, matchID string, up MatchUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.matches[matchID]
	if !ok {
		return ErrMatchNotFound
	}

	if up.Phase != nil {
		m.Phase = *up.Phase
	}
	if up.CurrentQuestionIndex != nil {
		m.CurrentQuestionIndex = *up.CurrentQuestionIndex
	}
	if up.StartingAt != nil {
		m.StartingAt = s.applyTimestampLocked(matchID, up.StartingAt, resolveStartingAt)
	}
	if up.QuestionStartAt != nil {
		m.QuestionStartAt = s.applyTimestampLocked(matchID, up.QuestionStartAt, resolveQuestionStartAt)
	}
	if up.ResetPlayers {
		for _, p := range s.players[matchID] {
			p.ResetRound()
		}
	}

	s.notifyMatchLocked(matchID)
	if up.ResetPlayers {
		for _, id := range s.playerOrder[matchID] {
			s.notifyPlayerLocked(matchID, id)
		}
	}
	s.emitLocked(Event{Type: EventMatchUpdated, MatchID: matchID})
	return nil
}

// WriteAnswer records a player's answer with a server-assigned timestamp.
// Last write wins on resubmission; nothing here re-validates the submission
// against the question deadline.
func (s *GameStore) WriteAnswer(ctx context.Context, matchID, playerID string, choice int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ps, ok := s.players[matchID]
	if !ok {
		return ErrMatchNotFound
	}
	p, ok := ps[playerID]
	if !ok {
		return ErrPlayerNotFound
	}

	c := choice
	p.CurrentAnswer = &c
	p.AnswerTime = s.pendingTimestampLocked(func(resolved models.Timestamp) {
		if cur, ok := s.players[matchID][playerID]; ok && cur.AnswerTime != nil && !cur.AnswerTime.Resolved {
			*cur.AnswerTime = resolved
			s.notifyMatchLocked(matchID)
			s.notifyPlayerLocked(matchID, playerID)
		}
	})

	s.notifyMatchLocked(matchID)
	s.notifyPlayerLocked(matchID, playerID)
	s.emitLocked(Event{Type: EventAnswerSubmitted, MatchID: matchID, PlayerID: playerID})
	return nil
}

// WriteScores commits the scorer's results for all players as one batched
// write keyed by player id.
func (s *GameStore) WriteScores(ctx context.Context, matchID string, updates map[string]ScoreUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ps, ok := s.players[matchID]
	if !ok {
		return ErrMatchNotFound
	}
	for id, up := range updates {
		p, ok := ps[id]
		if !ok {
			log.Warn().Str("match_id", matchID).Str("player_id", id).Msg("score update for unknown player, skipping")
			continue
		}
		p.Score = up.Score
		gain := up.LastGain
		p.LastGain = &gain
	}

	s.notifyMatchLocked(matchID)
	for id := range updates {
		s.notifyPlayerLocked(matchID, id)
	}
	s.emitLocked(Event{Type: EventScoresCommitted, MatchID: matchID})
	return nil
}

// resolveStartingAt and resolveQuestionStartAt pick the field a delayed
// timestamp resolution applies to, guarding against the field having been
// overwritten or cleared in the meantime.
func resolveStartingAt(m *models.Match) *models.Timestamp      { return m.StartingAt }
func resolveQuestionStartAt(m *models.Match) *models.Timestamp { return m.QuestionStartAt }

func (s *GameStore) applyTimestampLocked(matchID string, w *TimestampWrite, field func(*models.Match) *models.Timestamp) *models.Timestamp {
	if !w.ServerNow {
		if w.Value == nil {
			return nil
		}
		ts := *w.Value
		return &ts
	}
	return s.pendingTimestampLocked(func(resolved models.Timestamp) {
		if m, ok := s.matches[matchID]; ok {
			if ts := field(m); ts != nil && !ts.Resolved {
				*ts = resolved
				s.notifyMatchLocked(matchID)
			}
		}
	})
}

// pendingTimestampLocked allocates a server timestamp. With no resolve delay
// the value is concrete at commit; otherwise the caller-supplied resolve
// callback runs under the store lock once the delay elapses, reproducing the
// placeholder-then-resolved sequence observers of the original store saw.
func (s *GameStore) pendingTimestampLocked(resolve func(models.Timestamp)) *models.Timestamp {
	now := models.ResolvedAt(s.clock.Now())
	if s.cfg.ResolveDelay <= 0 {
		return &now
	}

	pending := models.PendingTimestamp()
	timer := s.clock.NewTimer(s.cfg.ResolveDelay)
	go func() {
		<-timer.Chan()
		s.mu.Lock()
		defer s.mu.Unlock()
		resolve(now)
	}()
	return &pending
}
