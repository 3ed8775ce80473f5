package models

// Player is one participant's record, scoped under its match. Score and
// LastGain are owned by the scorer; CurrentAnswer and AnswerTime are owned
// by the player's own session and reset to null when a new question begins.
type Player struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Avatar        string     `json:"avatar"`
	Score         int        `json:"score"`
	CurrentAnswer *int       `json:"current_answer,omitempty"`
	AnswerTime    *Timestamp `json:"answer_time,omitempty"`
	LastGain      *int       `json:"last_gain,omitempty"`
}

// Answered reports whether the player has an answer recorded for the
// current question.
func (p *Player) Answered() bool {
	return p.CurrentAnswer != nil
}

// ResetRound clears the per-question mutable fields.
func (p *Player) ResetRound() {
	p.CurrentAnswer = nil
	p.AnswerTime = nil
	p.LastGain = nil
}

// Clone returns a deep copy safe to hand to subscribers.
func (p *Player) Clone() *Player {
	out := *p
	if p.CurrentAnswer != nil {
		v := *p.CurrentAnswer
		out.CurrentAnswer = &v
	}
	if p.AnswerTime != nil {
		ts := *p.AnswerTime
		out.AnswerTime = &ts
	}
	if p.LastGain != nil {
		v := *p.LastGain
		out.LastGain = &v
	}
	return &out
}
