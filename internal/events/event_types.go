package events

import (
	"time"

	"github.com/kinetix/ima-backend/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventIncidentCreated      EventType = "incident.created"
	EventIncidentUpdated      EventType = "incident.updated"
	EventIncidentStateChanged EventType = "incident.state_changed"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	IncidentID string    `json:"incident_id"`
	Actor      string    `json:"actor"`
	Timestamp  time.Time `json:"timestamp"`
	Payload    any       `json:"payload"`
}

// IncidentCreatedPayload payload.
type IncidentCreatedPayload struct {
	Title   string         `json:"titulo"`
	Service domain.Service `json:"servicio"`
	Channel domain.Channel `json:"canal"`
	State   domain.State   `json:"estado"`
}

// IncidentUpdatedPayload payload.
type IncidentUpdatedPayload struct {
	Fields  []string `json:"campos"`
	Version int64    `json:"version"`
}

// IncidentStateChangedPayload payload.
type IncidentStateChangedPayload struct {
	ChangeID string       `json:"cambio_id"`
	From     domain.State `json:"desde"`
	To       domain.State `json:"hacia"`
	Version  int64        `json:"version"`
}
