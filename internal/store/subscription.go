package store

import (
	"github.com/rs/zerolog/log"

	"github.com/quizbattle/quizbattle/internal/models"
)

// MatchSnapshot is the state of a match and all of its players at one
// committed write. Parent-path subscribers see nested player records, so a
// player write also produces a match snapshot.
type MatchSnapshot struct {
	Match   *models.Match
	Players []*models.Player
}

// MatchSubscription is an ordered, restartable stream of match snapshots.
// The current snapshot is replayed on subscribe; each subsequent commit
// pushes a new one in commit order. A slow subscriber loses intermediate
// snapshots, never the latest.
type MatchSubscription struct {
	C <-chan MatchSnapshot

	ch    chan MatchSnapshot
	close func()
}

// Close cancels the subscription and releases its channel.
func (sub *MatchSubscription) Close() {
	sub.close()
}

// PlayerSubscription streams one player's record: the private per-player
// feed (own score, lastGain) of a connected session.
type PlayerSubscription struct {
	C <-chan *models.Player

	ch    chan *models.Player
	close func()
}

// Close cancels the subscription and releases its channel.
func (sub *PlayerSubscription) Close() {
	sub.close()
}

// SubscribeMatch subscribes to a match path. The returned stream immediately
// carries the current snapshot, so a reconnecting observer sees the same
// sequence a freshly joined one would.
func (s *GameStore) SubscribeMatch(matchID string) (*MatchSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.matches[matchID]; !ok {
		return nil, ErrMatchNotFound
	}

	id := s.nextSubID
	s.nextSubID++

	sub := &MatchSubscription{ch: make(chan MatchSnapshot, s.cfg.SubscriptionBuffer)}
	sub.C = sub.ch
	sub.close = func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if subs, ok := s.matchSubs[matchID]; ok {
			delete(subs, id)
			if len(subs) == 0 {
				delete(s.matchSubs, matchID)
			}
		}
	}

	if s.matchSubs[matchID] == nil {
		s.matchSubs[matchID] = make(map[int]*MatchSubscription)
	}
	s.matchSubs[matchID][id] = sub

	pushSnapshot(sub.ch, s.snapshotLocked(matchID))
	return sub, nil
}

// SubscribePlayer subscribes to one player record under a match.
func (s *GameStore) SubscribePlayer(matchID, playerID string) (*PlayerSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.getPlayerLocked(matchID, playerID)
	if err != nil {
		return nil, err
	}

	id := s.nextSubID
	s.nextSubID++
	key := matchID + "/" + playerID

	sub := &PlayerSubscription{ch: make(chan *models.Player, s.cfg.SubscriptionBuffer)}
	sub.C = sub.ch
	sub.close = func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if subs, ok := s.playerSubs[key]; ok {
			delete(subs, id)
			if len(subs) == 0 {
				delete(s.playerSubs, key)
			}
		}
	}

	if s.playerSubs[key] == nil {
		s.playerSubs[key] = make(map[int]*PlayerSubscription)
	}
	s.playerSubs[key][id] = sub

	pushSnapshot(sub.ch, p)
	return sub, nil
}

func (s *GameStore) snapshotLocked(matchID string) MatchSnapshot {
	return MatchSnapshot{
		Match:   s.matches[matchID].Clone(),
		Players: s.listPlayersLocked(matchID),
	}
}

func (s *GameStore) notifyMatchLocked(matchID string) {
	subs := s.matchSubs[matchID]
	if len(subs) == 0 {
		return
	}
	snap := s.snapshotLocked(matchID)
	for _, sub := range subs {
		pushSnapshot(sub.ch, snap)
	}
}

func (s *GameStore) notifyPlayerLocked(matchID, playerID string) {
	subs := s.playerSubs[matchID+"/"+playerID]
	if len(subs) == 0 {
		return
	}
	p, err := s.getPlayerLocked(matchID, playerID)
	if err != nil {
		return
	}
	for _, sub := range subs {
		pushSnapshot(sub.ch, p)
	}
}

// pushSnapshot delivers without blocking the commit path: when a subscriber's
// buffer is full the oldest snapshot is dropped to make room for the newest.
func pushSnapshot[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
			log.Debug().Msg("slow subscriber, dropped oldest snapshot")
		default:
		}
	}
}
