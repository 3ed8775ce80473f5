package store

import "time"

// EventType labels one kind of committed write.
type EventType string

const (
	EventMatchCreated    EventType = "MatchCreated"
	EventPlayerJoined    EventType = "PlayerJoined"
	EventMatchUpdated    EventType = "MatchUpdated"
	EventAnswerSubmitted EventType = "AnswerSubmitted"
	EventScoresCommitted EventType = "ScoresCommitted"
)

// Event describes one committed write, for consumers outside the
// synchronization core (event relay, audio cues). It carries no snapshot;
// interested consumers read the current records.
type Event struct {
	Type     EventType `json:"type"`
	MatchID  string    `json:"match_id"`
	PlayerID string    `json:"player_id,omitempty"`
	At       time.Time `json:"at"`
}

// FeedSubscription is an ordered stream of committed-write events across all
// matches.
type FeedSubscription struct {
	C <-chan Event

	ch    chan Event
	close func()
}

// Close cancels the subscription.
func (sub *FeedSubscription) Close() {
	sub.close()
}

// SubscribeFeed subscribes to the store-wide committed-write feed.
func (s *GameStore) SubscribeFeed() *FeedSubscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubID
	s.nextSubID++

	sub := &FeedSubscription{ch: make(chan Event, s.cfg.SubscriptionBuffer)}
	sub.C = sub.ch
	sub.close = func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.feedSubs, id)
	}

	s.feedSubs[id] = sub
	return sub
}

func (s *GameStore) emitLocked(ev Event) {
	if len(s.feedSubs) == 0 {
		return
	}
	ev.At = s.clock.Now()
	for _, sub := range s.feedSubs {
		pushSnapshot(sub.ch, ev)
	}
}
