package relay

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/quizbattle/quizbattle/internal/store"
)

// Publisher sends one committed-write event to an external sink.
type Publisher interface {
	Publish(ctx context.Context, ev store.Event) error
	Close() error
}

// Relay drains the store's committed-write feed into a publisher.
type Relay struct {
	store     *store.GameStore
	publisher Publisher
}

// New creates a relay over the store feed.
func New(st *store.GameStore, pub Publisher) *Relay {
	return &Relay{store: st, publisher: pub}
}

// Run consumes the feed until ctx is cancelled. Publish failures are logged
// and dropped; the relay never blocks or fails match progression.
func (r *Relay) Run(ctx context.Context) {
	sub := r.store.SubscribeFeed()
	defer sub.Close()

	log.Info().Msg("event relay started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("event relay stopped")
			return
		case ev := <-sub.C:
			if err := r.publisher.Publish(ctx, ev); err != nil {
				log.Error().
					Err(err).
					Str("event_type", string(ev.Type)).
					Str("match_id", ev.MatchID).
					Msg("failed to relay event")
			}
		}
	}
}
