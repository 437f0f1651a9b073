package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kinetix/ima-backend/internal/domain"
)

type memoryIncidentRepository struct {
	mu        sync.RWMutex
	incidents map[string]domain.Incident
	now       func() time.Time
}

// NewMemoryIncidentRepository returns a process-local store with the same
// compare-and-swap semantics as the Postgres implementation.
func NewMemoryIncidentRepository() IncidentRepository {
	return &memoryIncidentRepository{
		incidents: make(map[string]domain.Incident),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (r *memoryIncidentRepository) Create(_ context.Context, incident *domain.Incident) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	incident.ID = uuid.NewString()
	incident.CreatedAt = now
	incident.LastUpdatedAt = now
	incident.Version = 1
	incident.History = []domain.StateChange{}
	r.incidents[incident.ID] = cloneIncident(*incident)
	return nil
}

func (r *memoryIncidentRepository) Get(_ context.Context, id string) (*domain.Incident, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	incident, ok := r.incidents[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := cloneIncident(incident)
	return &out, nil
}

func (r *memoryIncidentRepository) List(_ context.Context, filter IncidentFilter) ([]domain.Incident, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	result := []domain.Incident{}
	for _, incident := range r.incidents {
		if len(filter.States) > 0 && !containsState(filter.States, incident.CurrentState) {
			continue
		}
		if len(filter.Channels) > 0 && !containsChannel(filter.Channels, incident.Channel) {
			continue
		}
		if len(filter.Services) > 0 && !containsService(filter.Services, incident.Service) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(incident.Title), search) {
			continue
		}
		out := cloneIncident(incident)
		out.History = nil
		result = append(result, out)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].LastUpdatedAt.Equal(result[j].LastUpdatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].LastUpdatedAt.After(result[j].LastUpdatedAt)
	})

	if filter.Limit > 0 {
		offset := filter.Offset
		if offset < 0 {
			offset = 0
		}
		if offset >= len(result) {
			return []domain.Incident{}, nil
		}
		end := offset + filter.Limit
		if end > len(result) {
			end = len(result)
		}
		result = result[offset:end]
	}
	return result, nil
}

func (r *memoryIncidentRepository) ConditionalUpdate(_ context.Context, id string, expectedVersion int64, next domain.Incident) (*domain.Incident, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.incidents[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if current.Version != expectedVersion {
		return nil, &ConflictError{IncidentID: id, ExpectedVersion: expectedVersion, ActualVersion: current.Version}
	}

	stored := current
	stored.Title = next.Title
	stored.Description = next.Description
	stored.Installer = next.Installer
	stored.Client = next.Client
	stored.CurrentState = next.CurrentState
	stored.LastUpdatedAt = next.LastUpdatedAt
	stored.Version = current.Version + 1
	stored.History = appendNewChanges(current.History, next.History, id)

	r.incidents[id] = stored
	out := cloneIncident(stored)
	return &out, nil
}

func appendNewChanges(existing, incoming []domain.StateChange, incidentID string) []domain.StateChange {
	seen := make(map[string]struct{}, len(existing))
	merged := make([]domain.StateChange, 0, len(existing)+len(incoming))
	for _, change := range existing {
		seen[change.ID] = struct{}{}
		merged = append(merged, change)
	}
	for _, change := range incoming {
		if _, ok := seen[change.ID]; ok {
			continue
		}
		change.IncidentID = incidentID
		seen[change.ID] = struct{}{}
		merged = append(merged, change)
	}
	return merged
}

func cloneIncident(in domain.Incident) domain.Incident {
	out := in
	if in.History != nil {
		out.History = make([]domain.StateChange, len(in.History))
		copy(out.History, in.History)
	}
	return out
}

func containsState(states []domain.State, s domain.State) bool {
	for _, candidate := range states {
		if candidate == s {
			return true
		}
	}
	return false
}

func containsChannel(channels []domain.Channel, c domain.Channel) bool {
	for _, candidate := range channels {
		if candidate == c {
			return true
		}
	}
	return false
}

func containsService(services []domain.Service, s domain.Service) bool {
	for _, candidate := range services {
		if candidate == s {
			return true
		}
	}
	return false
}
