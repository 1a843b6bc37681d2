package voice

import (
	"errors"
	"fmt"
)

// State is the conversation state of a session.
type State string

const (
	StateIdle       State = "idle"
	StateListening  State = "listening"
	StateProcessing State = "processing"
	StateSpeaking   State = "speaking"
	StateError      State = "error"
)

// ErrInvalidTransition is returned for a state change outside the transition table.
var ErrInvalidTransition = errors.New("voice: invalid state transition")

// transitions lists the allowed moves. Any state may also move to error.
var transitions = map[State][]State{
	StateIdle:       {StateListening, StateProcessing},
	StateListening:  {StateProcessing, StateIdle},
	StateProcessing: {StateSpeaking, StateIdle},
	StateSpeaking:   {StateListening, StateIdle},
	StateError:      {StateListening, StateIdle},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to State) bool {
	if to == StateError {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func transitionError(from, to State) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
