// Package workflow holds the incident state graph and the engine that enforces it.
package workflow

import "github.com/kinetix/ima-backend/internal/domain"

// Edge is a single allowed (From, To) transition.
type Edge struct {
	From domain.State
	To   domain.State
}

// allowedTransitions is the complete workflow. CERRADO and CANCELADO are absorbing.
var allowedTransitions = map[domain.State][]domain.State{
	domain.StateNew:             {domain.StateInAnalysis, domain.StateCancelled},
	domain.StateInAnalysis:      {domain.StateAssigned, domain.StateCancelled},
	domain.StateAssigned:        {domain.StateInProgress, domain.StateCancelled},
	domain.StateInProgress:      {domain.StateWaitingClient, domain.StateWaitingProvider, domain.StateResolved, domain.StateCancelled},
	domain.StateWaitingClient:   {domain.StateInProgress},
	domain.StateWaitingProvider: {domain.StateInProgress},
	domain.StateResolved:        {domain.StateClosed},
	domain.StateClosed:          {},
	domain.StateCancelled:       {},
}

// ValidTargets returns the states reachable from state in one step.
// Unknown states have no targets.
func ValidTargets(state domain.State) []domain.State {
	targets := allowedTransitions[state]
	out := make([]domain.State, len(targets))
	copy(out, targets)
	return out
}

// CanTransition reports whether to is a direct successor of from.
func CanTransition(from, to domain.State) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether state has no outgoing edges.
func IsTerminal(state domain.State) bool {
	return state.Valid() && len(allowedTransitions[state]) == 0
}

// Edges lists every edge, grouped by source in workflow order.
func Edges() []Edge {
	edges := make([]Edge, 0, 16)
	for _, from := range domain.AllStates {
		for _, to := range allowedTransitions[from] {
			edges = append(edges, Edge{From: from, To: to})
		}
	}
	return edges
}
