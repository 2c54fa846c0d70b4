package api

import "fmt"

// statusTransitions lists the outgoing transitions the engine permits.
// deployed, skipped, and rolled_back have no outgoing transitions.
// failed allows only rolled_back, and only the rollback operation may
// take it there.
var statusTransitions = map[Status][]Status{
	StatusScheduled:  {StatusInProgress, StatusSkipped},
	StatusInProgress: {StatusDeployed, StatusFailed},
	StatusFailed:     {StatusRolledBack},
}

// ValidateTransition checks whether a status transition is permitted by
// the deployment state machine.
func ValidateTransition(from, to Status) *APIError {
	for _, s := range statusTransitions[from] {
		if s == to {
			return nil
		}
	}
	return NewInvalidTransitionError(
		fmt.Sprintf("cannot transition deployment from %s to %s", from, to))
}

// Terminal reports whether a status permits no further transitions via
// the update path. failed is terminal for updates even though the
// rollback operation may still retire it.
func (s Status) Terminal() bool {
	switch s {
	case StatusDeployed, StatusSkipped, StatusFailed, StatusRolledBack:
		return true
	}
	return false
}
