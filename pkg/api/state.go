package api

import (
	"slices"
	"strings"
)

// State is the lifecycle state of a user session.
type State string

const (
	// StateIdle is the default state. A missing or expired record reads as idle.
	StateIdle State = "IDLE"
	// StatePlanning means a study plan is being produced by the planner.
	StatePlanning State = "PLANNING"
	// StateReady means a plan exists; summaries and quizzes are available.
	StateReady State = "READY"
	// StateQuizzing means a quiz session is active.
	StateQuizzing State = "QUIZZING"
)

// ParseState converts a stored value into a State.
// Unknown values yield (StateIdle, false).
func ParseState(s string) (State, bool) {
	switch State(strings.ToUpper(strings.TrimSpace(s))) {
	case StateIdle:
		return StateIdle, true
	case StatePlanning:
		return StatePlanning, true
	case StateReady:
		return StateReady, true
	case StateQuizzing:
		return StateQuizzing, true
	default:
		return StateIdle, false
	}
}

// Valid reports whether s is one of the known states.
func (s State) Valid() bool {
	switch s {
	case StateIdle, StatePlanning, StateReady, StateQuizzing:
		return true
	}
	return false
}

func (s State) String() string { return string(s) }

// transitions lists every permitted edge. Resetting to idle is allowed
// from any state and handled in CanTransition.
var transitions = map[State][]State{
	StateIdle:     {StatePlanning},
	StatePlanning: {StateReady, StateIdle},
	StateReady:    {StateQuizzing, StatePlanning},
	StateQuizzing: {StateReady},
}

// CanTransition reports whether moving from -> to is a legal edge.
// Writing the same state again (TTL renewal) is always allowed.
func CanTransition(from, to State) bool {
	if from == to || to == StateIdle {
		return true
	}
	return slices.Contains(transitions[from], to)
}

// Busy reports whether s is a state that owns an in-flight operation and
// must reject the start of another one.
func (s State) Busy() bool {
	return s == StatePlanning || s == StateQuizzing
}
