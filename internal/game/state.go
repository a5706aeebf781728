package game

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when a state change is refused.
var ErrInvalidTransition = errors.New("invalid state transition")

// State is the coarse lifecycle phase of a session.
type State string

const (
	StateEstablishing State = "establishing"
	StateLobby        State = "lobby"
	StatePlaying      State = "playing"
	StateIntermission State = "intermission"
	StateFinished     State = "finished"
	StateAborted      State = "aborted"
	StateError        State = "error"
)

// Terminal reports whether no transition can leave s.
func (s State) Terminal() bool {
	switch s {
	case StateFinished, StateAborted, StateError:
		return true
	}
	return false
}

// CanTransition reports whether from → to is allowed. The server drives the
// phase, so every non-terminal state may move to any state other than
// establishing. Terminal states are final.
func CanTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	return to != StateEstablishing
}

// Machine holds the current State and refuses to leave a terminal one.
type Machine struct {
	current State
	reason  string
}

// NewMachine returns a machine in the establishing state.
func NewMachine() *Machine {
	return &Machine{current: StateEstablishing}
}

// Current returns the current state.
func (m *Machine) Current() State { return m.current }

// Reason is the server supplied reason for an aborted or error state.
func (m *Machine) Reason() string { return m.reason }

// Transition moves to the given state if CanTransition allows it.
func (m *Machine) Transition(to State) error {
	if !CanTransition(m.current, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.current, to)
	}
	m.current = to
	return nil
}

// Fail moves to a terminal failure state (aborted or error) and keeps reason.
func (m *Machine) Fail(to State, reason string) error {
	if to != StateAborted && to != StateError {
		return fmt.Errorf("%w: %s is not a failure state", ErrInvalidTransition, to)
	}
	if err := m.Transition(to); err != nil {
		return err
	}
	m.reason = reason
	return nil
}
