package models

// Phase defines one state of the match-level state machine. The literal
// strings are client-visible wire values.
type Phase string

const (
	PhaseLobby    Phase = "lobby"
	PhaseStarting Phase = "starting"
	PhaseQuestion Phase = "question"
	PhaseReveal   Phase = "reveal"
	PhaseEnded    Phase = "ended"
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	return string(p)
}

// Terminal reports whether no further transitions are accepted from p.
func (p Phase) Terminal() bool {
	return p == PhaseEnded
}

// CanTransitionTo checks if a transition from the current phase to the
// target phase is valid.
func (p Phase) CanTransitionTo(target Phase) bool {
	validTransitions := map[Phase][]Phase{
		PhaseLobby:    {PhaseStarting, PhaseEnded},
		PhaseStarting: {PhaseQuestion, PhaseEnded},
		PhaseQuestion: {PhaseReveal, PhaseEnded},
		PhaseReveal:   {PhaseQuestion, PhaseEnded},
		PhaseEnded:    {},
	}

	allowed, ok := validTransitions[p]
	if !ok {
		return false
	}

	for _, phase := range allowed {
		if phase == target {
			return true
		}
	}
	return false
}
