package domain

import "time"

// StateChange is an append-only audit entry for one accepted transition.
type StateChange struct {
	ID         string
	IncidentID string
	From       State
	To         State
	ChangedBy  string
	ChangedAt  time.Time
}
