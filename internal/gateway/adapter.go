package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quizbattle/quizbattle/internal/countdown"
	"github.com/quizbattle/quizbattle/internal/models"
	"github.com/quizbattle/quizbattle/internal/store"
)

// Adapter bridges the store's push-on-change snapshot streams to connected
// clients: one pump goroutine per match fans normalized match views out to
// every subscriber, one pump per player connection delivers that player's
// private record, and a per-match countdown pushes display ticks while a
// deadline runs.
type Adapter struct {
	store             *store.GameStore
	cm                *ConnectionManager
	sync              *countdown.Synchronizer
	questionDuration  time.Duration
	startingCountdown time.Duration

	mu     sync.Mutex
	runCtx context.Context
	pumps  map[string]bool
}

// NewAdapter creates a client sync adapter.
func NewAdapter(st *store.GameStore, cm *ConnectionManager, synchronizer *countdown.Synchronizer, questionDuration, startingCountdown time.Duration) *Adapter {
	return &Adapter{
		store:             st,
		cm:                cm,
		sync:              synchronizer,
		questionDuration:  questionDuration,
		startingCountdown: startingCountdown,
		pumps:             make(map[string]bool),
	}
}

// Start pins the service-lifetime context match pumps run on. Pumps must
// outlive the HTTP request that spawned them: a request context is cancelled
// the moment its handler returns, which for an upgraded connection is
// immediately.
func (a *Adapter) Start(ctx context.Context) {
	a.mu.Lock()
	a.runCtx = ctx
	a.mu.Unlock()
}

// EnsureMatchPump starts the fan-out pump for a match if none is running.
// The pump exits once the match reaches its terminal phase; later
// subscribers still receive the final state through the replay-on-subscribe
// snapshot.
func (a *Adapter) EnsureMatchPump(matchID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.pumps[matchID] {
		return nil
	}

	sub, err := a.store.SubscribeMatch(matchID)
	if err != nil {
		return err
	}
	a.pumps[matchID] = true

	ctx := a.runCtx
	if ctx == nil {
		ctx = context.Background()
	}

	go func() {
		defer func() {
			sub.Close()
			a.mu.Lock()
			delete(a.pumps, matchID)
			a.mu.Unlock()
		}()
		a.runMatchPump(ctx, matchID, sub)
	}()
	return nil
}

func (a *Adapter) runMatchPump(ctx context.Context, matchID string, sub *store.MatchSubscription) {
	log.Debug().Str("match_id", matchID).Msg("match pump started")

	var lastPhase models.Phase
	lastIndex := -1
	var cancelTicks context.CancelFunc
	defer func() {
		if cancelTicks != nil {
			cancelTicks()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("match_id", matchID).Msg("match pump stopped")
			return
		case snap := <-sub.C:
			view := BuildMatchView(snap, a.store.Now(), a.questionDuration, a.startingCountdown)
			event, err := NewMatchSnapshotEvent(view, a.store.Now())
			if err != nil {
				log.Error().Err(err).Str("match_id", matchID).Msg("failed to build snapshot event")
				continue
			}
			a.cm.BroadcastToMatch(matchID, event)

			// Re-entering a countdown phase restarts the tick stream; any
			// other phase change silences it.
			if view.Phase != lastPhase || view.CurrentQuestionIndex != lastIndex {
				if cancelTicks != nil {
					cancelTicks()
					cancelTicks = nil
				}
				switch view.Phase {
				case models.PhaseStarting:
					var tickCtx context.Context
					tickCtx, cancelTicks = context.WithCancel(ctx)
					go a.runCountdownTicks(tickCtx, matchID, models.PhaseStarting, view.CurrentQuestionIndex, a.startingCountdown)
				case models.PhaseQuestion:
					var tickCtx context.Context
					tickCtx, cancelTicks = context.WithCancel(ctx)
					go a.runCountdownTicks(tickCtx, matchID, models.PhaseQuestion, view.CurrentQuestionIndex, a.questionDuration)
				}
			}
			lastPhase = view.Phase
			lastIndex = view.CurrentQuestionIndex

			if view.Phase == models.PhaseEnded {
				log.Debug().Str("match_id", matchID).Msg("match pump finished, match ended")
				return
			}
		}
	}
}

// runCountdownTicks resolves the countdown's deadline origin and pushes the
// shared remaining time to every subscriber on each display tick. The origin
// is the pre-question gate's start for the starting phase and the question's
// start otherwise. An origin that never resolves falls back to the local
// clock; the skew that admits is bounded by the resolution poll window.
func (a *Adapter) runCountdownTicks(ctx context.Context, matchID string, phase models.Phase, questionIndex int, duration time.Duration) {
	origin, err := a.sync.ResolveOrigin(ctx, func(ctx context.Context) (*models.Timestamp, error) {
		m, err := a.store.GetMatch(ctx, matchID)
		if err != nil {
			return nil, err
		}
		if phase == models.PhaseStarting {
			return m.StartingAt, nil
		}
		return m.QuestionStartAt, nil
	})
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		log.Debug().Err(err).Str("match_id", matchID).Msg("countdown running on fallback origin")
	}

	a.sync.Run(ctx, origin, duration, func(remaining time.Duration) {
		tick := CountdownTickView{
			Phase:         phase,
			QuestionIndex: questionIndex,
			RemainingMs:   remaining.Milliseconds(),
		}
		event, err := NewCountdownTickEvent(matchID, tick, a.store.Now())
		if err != nil {
			log.Error().Err(err).Str("match_id", matchID).Msg("failed to build tick event")
			return
		}
		a.cm.BroadcastToMatch(matchID, event)
	}, nil)
}

// ServeConnection replays the current snapshots to a freshly registered
// connection and, for a player, keeps its private record stream flowing
// until the connection closes. Reconnecting reproduces the same sequence a
// continuously subscribed observer would see, because the records alone
// describe the current phase.
func (a *Adapter) ServeConnection(conn *Connection) error {
	if err := a.EnsureMatchPump(conn.MatchID); err != nil {
		return err
	}

	ctx := context.Background()
	m, err := a.store.GetMatch(ctx, conn.MatchID)
	if err != nil {
		return err
	}
	players, err := a.store.ListPlayers(ctx, conn.MatchID)
	if err != nil {
		return err
	}
	view := BuildMatchView(store.MatchSnapshot{Match: m, Players: players}, a.store.Now(), a.questionDuration, a.startingCountdown)
	event, err := NewMatchSnapshotEvent(view, a.store.Now())
	if err != nil {
		return err
	}
	if err := a.deliver(conn, event); err != nil {
		return err
	}

	if conn.PlayerID == "" {
		return nil
	}

	sub, err := a.store.SubscribePlayer(conn.MatchID, conn.PlayerID)
	if err != nil {
		return err
	}
	// The private stream lives exactly as long as the connection. The upgrade
	// request's context is already cancelled by the time events flow, so the
	// connection's own close signal is the only sound lifetime here.
	go func() {
		defer sub.Close()
		for {
			select {
			case <-conn.closed:
				return
			case p := <-sub.C:
				event, err := NewPlayerStateEvent(conn.MatchID, p, a.store.Now())
				if err != nil {
					log.Error().Err(err).Str("player_id", conn.PlayerID).Msg("failed to build player event")
					continue
				}
				a.deliver(conn, event)
			}
		}
	}()
	return nil
}

func (a *Adapter) deliver(conn *Connection, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if !conn.Deliver(data) {
		log.Warn().Str("connection_id", conn.ID).Msg("dropped event for saturated connection")
	}
	return nil
}
