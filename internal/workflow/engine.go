package workflow

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kinetix/ima-backend/internal/domain"
)

// ErrInvalidTransition matches every *InvalidTransitionError.
var ErrInvalidTransition = errors.New("invalid state transition")

// InvalidTransitionError carries the rejected edge.
type InvalidTransitionError struct {
	From domain.State
	To   domain.State
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition %s -> %s", e.From, e.To)
}

// Is lets errors.Is match ErrInvalidTransition.
func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// Engine applies transitions to incident values. It keeps no state of its own.
type Engine struct {
	now   func() time.Time
	newID func() string
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock overrides the time source used for LastUpdatedAt and history entries.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithIDGenerator overrides history entry id generation.
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) {
		if newID != nil {
			e.newID = newID
		}
	}
}

// NewEngine builds an engine using wall-clock UTC time and random UUIDs.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RequestTransition validates target against the incident's current state and
// returns the moved incident with one more history entry. The input is left
// untouched; persisting the result is up to the caller.
func (e *Engine) RequestTransition(incident domain.Incident, target domain.State, actor string) (domain.Incident, error) {
	from := incident.CurrentState
	if !CanTransition(from, target) {
		return domain.Incident{}, &InvalidTransitionError{From: from, To: target}
	}

	now := e.now()
	history := make([]domain.StateChange, len(incident.History), len(incident.History)+1)
	copy(history, incident.History)
	history = append(history, domain.StateChange{
		ID:         e.newID(),
		IncidentID: incident.ID,
		From:       from,
		To:         target,
		ChangedBy:  actor,
		ChangedAt:  now,
	})

	next := incident
	next.CurrentState = target
	next.LastUpdatedAt = now
	next.History = history
	return next, nil
}
