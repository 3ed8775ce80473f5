package gateway

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/quizbattle/quizbattle/internal/countdown"
	"github.com/quizbattle/quizbattle/internal/models"
	"github.com/quizbattle/quizbattle/internal/store"
)

// EventType labels one kind of push event sent to clients.
type EventType string

const (
	// EventTypeMatchSnapshot carries the normalized match view every
	// subscriber receives on each committed write.
	EventTypeMatchSnapshot EventType = "MatchSnapshot"
	// EventTypePlayerState carries a player's private record, sent only to
	// that player's connections.
	EventTypePlayerState EventType = "PlayerState"
	// EventTypeCountdownTick carries the shared remaining time, pushed on
	// every display tick while a countdown runs.
	EventTypeCountdownTick EventType = "CountdownTick"
)

// Event is the wire envelope for all pushed events.
type Event struct {
	ID        string          `json:"id"`
	MatchID   string          `json:"match_id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// MatchView is the normalized snapshot exposed to every subscriber:
// phase, question index, authoritative timestamps and the player board.
// The correct answer index appears only once the phase has left question.
type MatchView struct {
	MatchID              string            `json:"match_id"`
	Pin                  string            `json:"pin"`
	Phase                models.Phase      `json:"phase"`
	CurrentQuestionIndex int               `json:"current_question_index"`
	StartingAt           *models.Timestamp `json:"starting_at,omitempty"`
	QuestionStartAt      *models.Timestamp `json:"question_start_at,omitempty"`
	QuestionCount        int               `json:"question_count"`
	TimeRemainingMs      *int64            `json:"time_remaining_ms,omitempty"`
	Question             *QuestionView     `json:"question,omitempty"`
	Players              []PlayerView      `json:"players"`
}

// QuestionView is the client-facing projection of the current question.
type QuestionView struct {
	Index        int      `json:"index"`
	Text         string   `json:"text"`
	Options      []string `json:"options"`
	Image        string   `json:"image,omitempty"`
	AnswerCounts []int    `json:"answer_counts"`
	CorrectIndex *int     `json:"correct_index,omitempty"`
}

// PlayerView is the public projection of one player on the board.
type PlayerView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar"`
	Score    int    `json:"score"`
	Answered bool   `json:"answered"`
	LastGain *int   `json:"last_gain,omitempty"`
}

// PlayerStateView is the private projection a player receives about their
// own record, including their current answer.
type PlayerStateView struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Avatar        string `json:"avatar"`
	Score         int    `json:"score"`
	CurrentAnswer *int   `json:"current_answer,omitempty"`
	LastGain      *int   `json:"last_gain,omitempty"`
}

// BuildMatchView normalizes a store snapshot for clients. now is the
// authoritative clock reading used to derive remaining countdown time for
// the starting and question phases.
func BuildMatchView(snap store.MatchSnapshot, now time.Time, questionDuration, startingCountdown time.Duration) MatchView {
	m := snap.Match
	view := MatchView{
		MatchID:              m.ID,
		Pin:                  m.Pin,
		Phase:                m.Phase,
		CurrentQuestionIndex: m.CurrentQuestionIndex,
		StartingAt:           m.StartingAt,
		QuestionStartAt:      m.QuestionStartAt,
		QuestionCount:        len(m.Questions),
		Players:              make([]PlayerView, 0, len(snap.Players)),
	}

	if q := m.CurrentQuestion(); q != nil && m.Phase != models.PhaseStarting {
		qv := &QuestionView{
			Index:        m.CurrentQuestionIndex,
			Text:         q.Text,
			Options:      append([]string(nil), q.Options...),
			Image:        q.Image,
			AnswerCounts: answerCounts(len(q.Options), snap.Players),
		}
		if m.Phase == models.PhaseReveal || m.Phase == models.PhaseEnded {
			idx := q.CorrectIndex
			qv.CorrectIndex = &idx
		}
		view.Question = qv
	}

	switch {
	case m.Phase == models.PhaseStarting && m.StartingAt != nil && m.StartingAt.Resolved:
		remaining := countdown.Remaining(m.StartingAt.Time(), now, startingCountdown).Milliseconds()
		view.TimeRemainingMs = &remaining
	case m.Phase == models.PhaseQuestion && m.QuestionStartAt != nil && m.QuestionStartAt.Resolved:
		remaining := countdown.Remaining(m.QuestionStartAt.Time(), now, questionDuration).Milliseconds()
		view.TimeRemainingMs = &remaining
	}

	for _, p := range snap.Players {
		view.Players = append(view.Players, PlayerView{
			ID:       p.ID,
			Name:     p.Name,
			Avatar:   p.Avatar,
			Score:    p.Score,
			Answered: p.Answered(),
			LastGain: p.LastGain,
		})
	}
	sort.SliceStable(view.Players, func(i, j int) bool {
		if view.Players[i].Score != view.Players[j].Score {
			return view.Players[i].Score > view.Players[j].Score
		}
		return view.Players[i].Name < view.Players[j].Name
	})

	return view
}

func answerCounts(options int, players []*models.Player) []int {
	counts := make([]int, options)
	for _, p := range players {
		if p.CurrentAnswer != nil && *p.CurrentAnswer >= 0 && *p.CurrentAnswer < options {
			counts[*p.CurrentAnswer]++
		}
	}
	return counts
}

// CountdownTickView is the payload of one display tick: which countdown is
// running and how much time is left on the authoritative clock.
type CountdownTickView struct {
	Phase         models.Phase `json:"phase"`
	QuestionIndex int          `json:"question_index"`
	RemainingMs   int64        `json:"remaining_ms"`
}

// NewCountdownTickEvent wraps a display tick in the wire envelope.
func NewCountdownTickEvent(matchID string, tick CountdownTickView, at time.Time) (*Event, error) {
	data, err := json.Marshal(tick)
	if err != nil {
		return nil, err
	}
	return &Event{
		ID:        uuid.New().String(),
		MatchID:   matchID,
		Type:      EventTypeCountdownTick,
		Timestamp: at,
		Data:      data,
	}, nil
}

// NewMatchSnapshotEvent wraps a match view in the wire envelope.
func NewMatchSnapshotEvent(view MatchView, at time.Time) (*Event, error) {
	data, err := json.Marshal(view)
	if err != nil {
		return nil, err
	}
	return &Event{
		ID:        uuid.New().String(),
		MatchID:   view.MatchID,
		Type:      EventTypeMatchSnapshot,
		Timestamp: at,
		Data:      data,
	}, nil
}

// NewPlayerStateEvent wraps a private player state in the wire envelope.
func NewPlayerStateEvent(matchID string, p *models.Player, at time.Time) (*Event, error) {
	data, err := json.Marshal(PlayerStateView{
		ID:            p.ID,
		Name:          p.Name,
		Avatar:        p.Avatar,
		Score:         p.Score,
		CurrentAnswer: p.CurrentAnswer,
		LastGain:      p.LastGain,
	})
	if err != nil {
		return nil, err
	}
	return &Event{
		ID:        uuid.New().String(),
		MatchID:   matchID,
		Type:      EventTypePlayerState,
		Timestamp: at,
		Data:      data,
	}, nil
}
