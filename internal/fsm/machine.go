// Package fsm provides the finite-state-machine primitives that every
// feature session is built on: a validated state machine and an
// orchestrator that adds pause state and change broadcasts.
//
// The Machine is the single authority on whether a state change is
// legal. Components must route transitions through it rather than
// mutating flags directly.
package fsm

import "sync"

// Validator reports whether the transition from one state to another is legal.
type Validator[S comparable] func(from, to S) bool

// TableValidator builds a Validator from an explicit transition table.
// The table maps a source state to the set of states reachable from it.
// Transitions absent from the table are rejected.
func TableValidator[S comparable](table map[S][]S) Validator[S] {
	return func(from, to S) bool {
		for _, allowed := range table[from] {
			if allowed == to {
				return true
			}
		}
		return false
	}
}

// Machine is a thread-safe finite state machine. All transitions pass
// through the configured validator; rejected transitions leave the
// current state untouched.
type Machine[S comparable] struct {
	mu       sync.Mutex
	current  S
	validate Validator[S]
}

// NewMachine creates a Machine in the given initial state. A nil
// validator permits every transition.
func NewMachine[S comparable](initial S, v Validator[S]) *Machine[S] {
	if v == nil {
		v = func(S, S) bool { return true }
	}
	return &Machine[S]{current: initial, validate: v}
}

// Current returns the current state.
func (m *Machine[S]) Current() S {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Transition attempts to move to the given state. It returns true and
// commits the change if the validator allows it, false otherwise.
func (m *Machine[S]) Transition(to S) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.validate(m.current, to) {
		return false
	}
	m.current = to
	return true
}
