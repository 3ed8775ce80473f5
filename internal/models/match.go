package models

import "time"

// Match is the authoritative record for one running trivia match.
// Phase-level fields are mutated only by the phase controller; the question
// list is fixed at creation.
type Match struct {
	ID                   string     `json:"id"`
	Pin                  string     `json:"pin"`
	Phase                Phase      `json:"phase"`
	CreatedAt            time.Time  `json:"created_at"`
	CurrentQuestionIndex int        `json:"current_question_index"`
	QuestionStartAt      *Timestamp `json:"question_start_at,omitempty"`
	StartingAt           *Timestamp `json:"starting_at,omitempty"`
	Questions            []Question `json:"questions"`
}

// CurrentQuestion returns the question at the current index, or nil when the
// match has not started or has ended past the last question.
func (m *Match) CurrentQuestion() *Question {
	if m.CurrentQuestionIndex < 0 || m.CurrentQuestionIndex >= len(m.Questions) {
		return nil
	}
	return &m.Questions[m.CurrentQuestionIndex]
}

// Clone returns a deep copy safe to hand to subscribers.
func (m *Match) Clone() *Match {
	out := *m
	out.Questions = make([]Question, len(m.Questions))
	copy(out.Questions, m.Questions)
	if m.QuestionStartAt != nil {
		ts := *m.QuestionStartAt
		out.QuestionStartAt = &ts
	}
	if m.StartingAt != nil {
		ts := *m.StartingAt
		out.StartingAt = &ts
	}
	for i := range out.Questions {
		opts := make([]string, len(m.Questions[i].Options))
		copy(opts, m.Questions[i].Options)
		out.Questions[i].Options = opts
	}
	return &out
}
