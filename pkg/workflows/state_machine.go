package workflows

import "sort"

// StateMachine enforces status transitions for any string-backed status type
type StateMachine[S ~string] struct {
	allowedTransitions map[S][]S
	terminal           map[S]bool
}

// NewStateMachine creates a new state machine with allowed transitions.
// States that appear only as targets, or map to an empty list, are terminal.
func NewStateMachine[S ~string](transitions map[S][]S) *StateMachine[S] {
	sm := &StateMachine[S]{
		allowedTransitions: make(map[S][]S, len(transitions)),
		terminal:           make(map[S]bool),
	}
	for from, to := range transitions {
		sm.allowedTransitions[from] = append([]S(nil), to...)
		for _, next := range to {
			if _, ok := transitions[next]; !ok {
				sm.terminal[next] = true
			}
		}
		if len(to) == 0 {
			sm.terminal[from] = true
		}
	}
	return sm
}

// CanTransition checks if a status transition is allowed
func (sm *StateMachine[S]) CanTransition(from, to S) bool {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return false
	}
	for _, allowedTo := range allowed {
		if allowedTo == to {
			return true
		}
	}
	return false
}

// GetAllowedTransitions returns the allowed next statuses for a given status
func (sm *StateMachine[S]) GetAllowedTransitions(from S) []S {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return []S{}
	}
	out := append([]S(nil), allowed...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IsTerminal reports whether no transition leaves the given status
func (sm *StateMachine[S]) IsTerminal(status S) bool {
	return sm.terminal[status]
}
