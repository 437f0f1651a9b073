package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/kinetix/ima-backend/internal/domain"
	"github.com/kinetix/ima-backend/internal/events"
	"github.com/kinetix/ima-backend/internal/observability"
	"github.com/kinetix/ima-backend/internal/repository"
	"github.com/kinetix/ima-backend/internal/stats"
	"github.com/kinetix/ima-backend/internal/workflow"
	apperrors "github.com/kinetix/ima-backend/pkg/util"
)

const (
	minTitleLength       = 5
	minDescriptionLength = 10
	minPartyNameLength   = 2
)

// IncidentService coordinates incident workflows.
type IncidentService struct {
	incidents  repository.IncidentRepository
	engine     *workflow.Engine
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// IncidentDependencies bundles collaborators for the incident service.
type IncidentDependencies struct {
	IncidentRepo repository.IncidentRepository
	Engine       *workflow.Engine
	Dispatcher   events.Dispatcher
	Metrics      *observability.Metrics
	Logger       *zap.Logger
}

// IncidentCreateInput describes incident creation payload.
type IncidentCreateInput struct {
	Title       string
	Description string
	Service     domain.Service
	Channel     domain.Channel
	Installer   string
	Client      string
	CreatedBy   string
}

// IncidentUpdateInput carries descriptive edits. Nil fields are left as they are.
type IncidentUpdateInput struct {
	Title       *string
	Description *string
	Installer   *string
	Version     *int64
}

// IncidentFilter describes dashboard listing filters.
type IncidentFilter struct {
	State   domain.State
	Channel domain.Channel
	Service domain.Service
	Search  string
	Limit   int
	Offset  int
}

// NewIncidentService constructs the service.
func NewIncidentService(deps IncidentDependencies) *IncidentService {
	engine := deps.Engine
	if engine == nil {
		engine = workflow.NewEngine()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IncidentService{
		incidents:  deps.IncidentRepo,
		engine:     engine,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// CreateIncident validates input and stores a new incident in NUEVO.
func (s *IncidentService) CreateIncident(ctx context.Context, actor string, input IncidentCreateInput) (*domain.Incident, error) {
	incident := &domain.Incident{
		Title:        strings.TrimSpace(input.Title),
		Description:  strings.TrimSpace(input.Description),
		Service:      input.Service,
		Channel:      input.Channel,
		Installer:    strings.TrimSpace(input.Installer),
		Client:       strings.TrimSpace(input.Client),
		CreatedBy:    strings.TrimSpace(input.CreatedBy),
		CurrentState: domain.StateNew,
	}
	if incident.CreatedBy == "" {
		incident.CreatedBy = actor
	}
	if details := validateIncident(incident); len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid incident", details)
	}

	if err := s.incidents.Create(ctx, incident); err != nil {
		return nil, err
	}
	s.logger.Info("incident created",
		zap.String("incident_id", incident.ID),
		zap.String("channel", string(incident.Channel)),
		zap.String("actor", actor))
	s.publishEvent(ctx, events.Event{
		Type:       events.EventIncidentCreated,
		IncidentID: incident.ID,
		Actor:      actor,
		Payload: events.IncidentCreatedPayload{
			Title:   incident.Title,
			Service: incident.Service,
			Channel: incident.Channel,
			State:   incident.CurrentState,
		},
	})
	return incident, nil
}

// ListIncidents returns incidents matching filter, most recently updated first.
func (s *IncidentService) ListIncidents(ctx context.Context, filter IncidentFilter) ([]domain.Incident, error) {
	repoFilter := repository.IncidentFilter{
		Search: filter.Search,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}
	if filter.State != "" {
		repoFilter.States = []domain.State{filter.State}
	}
	if filter.Channel != "" {
		repoFilter.Channels = []domain.Channel{filter.Channel}
	}
	if filter.Service != "" {
		repoFilter.Services = []domain.Service{filter.Service}
	}
	return s.incidents.List(ctx, repoFilter)
}

// GetIncident fetches a single incident with its state history.
func (s *IncidentService) GetIncident(ctx context.Context, id string) (*domain.Incident, error) {
	incident, err := s.incidents.Get(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, id)
	}
	return incident, nil
}

// ValidTargets returns the incident together with the states it may move to next.
func (s *IncidentService) ValidTargets(ctx context.Context, id string) (*domain.Incident, []domain.State, error) {
	incident, err := s.GetIncident(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return incident, workflow.ValidTargets(incident.CurrentState), nil
}

// UpdateIncident applies descriptive edits. The workflow state is never touched here.
func (s *IncidentService) UpdateIncident(ctx context.Context, actor, id string, input IncidentUpdateInput) (*domain.Incident, error) {
	current, err := s.GetIncident(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkExpectedVersion(current, input.Version); err != nil {
		s.metrics.RecordConflict()
		return nil, err
	}

	next := *current
	var fields []string
	if input.Title != nil {
		next.Title = strings.TrimSpace(*input.Title)
		fields = append(fields, "titulo")
	}
	if input.Description != nil {
		next.Description = strings.TrimSpace(*input.Description)
		fields = append(fields, "descripcion")
	}
	if input.Installer != nil {
		next.Installer = strings.TrimSpace(*input.Installer)
		fields = append(fields, "instalador")
	}
	if len(fields) == 0 {
		return nil, apperrors.NewValidationError("no fields to update", nil)
	}
	if details := validateIncident(&next); len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid incident", details)
	}
	next.LastUpdatedAt = s.now()

	stored, err := s.incidents.ConditionalUpdate(ctx, id, current.Version, next)
	if err != nil {
		return nil, s.mapWriteError(err, id)
	}
	s.publishEvent(ctx, events.Event{
		Type:       events.EventIncidentUpdated,
		IncidentID: id,
		Actor:      actor,
		Payload: events.IncidentUpdatedPayload{
			Fields:  fields,
			Version: stored.Version,
		},
	})
	return stored, nil
}

// ChangeState moves an incident along one workflow edge. The write is a
// compare-and-swap on the version that was read; a concurrent change yields a
// CONFLICT error and the caller must reload before deciding again.
func (s *IncidentService) ChangeState(ctx context.Context, actor, id string, target domain.State, expectedVersion *int64) (*domain.Incident, error) {
	current, err := s.GetIncident(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkExpectedVersion(current, expectedVersion); err != nil {
		s.metrics.RecordConflict()
		return nil, err
	}

	from := current.CurrentState
	next, err := s.engine.RequestTransition(*current, target, actor)
	if err != nil {
		s.metrics.RecordTransition(string(from), string(target), false)
		s.logger.Info("transition rejected",
			zap.String("incident_id", id),
			zap.String("from", string(from)),
			zap.String("to", string(target)),
			zap.String("actor", actor))
		return nil, apperrors.NewInvalidTransition(string(from), string(target), err)
	}

	stored, err := s.incidents.ConditionalUpdate(ctx, id, current.Version, next)
	if err != nil {
		return nil, s.mapWriteError(err, id)
	}
	s.metrics.RecordTransition(string(from), string(target), true)

	change := next.History[len(next.History)-1]
	s.logger.Info("transition applied",
		zap.String("incident_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(target)),
		zap.Int64("version", stored.Version),
		zap.String("actor", actor))
	s.publishEvent(ctx, events.Event{
		Type:       events.EventIncidentStateChanged,
		IncidentID: id,
		Actor:      actor,
		Timestamp:  change.ChangedAt,
		Payload: events.IncidentStateChangedPayload{
			ChangeID: change.ID,
			From:     from,
			To:       target,
			Version:  stored.Version,
		},
	})
	return stored, nil
}

// DashboardStats aggregates the full incident population. Nothing is cached.
func (s *IncidentService) DashboardStats(ctx context.Context) (stats.DashboardStats, error) {
	incidents, err := s.incidents.List(ctx, repository.IncidentFilter{})
	if err != nil {
		return stats.DashboardStats{}, err
	}
	return stats.Compute(incidents), nil
}

func (s *IncidentService) mapWriteError(err error, id string) error {
	var conflict *repository.ConflictError
	if errors.As(err, &conflict) {
		s.metrics.RecordConflict()
		return apperrors.NewConflict("incident was modified concurrently; reload and retry", map[string]any{
			"expected_version": conflict.ExpectedVersion,
			"current_version":  conflict.ActualVersion,
		}, err)
	}
	return notFoundOr(err, id)
}

func (s *IncidentService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handlers failed",
			zap.String("event_type", string(event.Type)),
			zap.String("incident_id", event.IncidentID),
			zap.Error(err))
	}
}

func checkExpectedVersion(current *domain.Incident, expected *int64) error {
	if expected == nil || *expected == current.Version {
		return nil
	}
	conflict := &repository.ConflictError{
		IncidentID:      current.ID,
		ExpectedVersion: *expected,
		ActualVersion:   current.Version,
	}
	return apperrors.NewConflict("incident was modified concurrently; reload and retry", map[string]any{
		"expected_version": conflict.ExpectedVersion,
		"current_version":  conflict.ActualVersion,
	}, conflict)
}

func notFoundOr(err error, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound("incident", map[string]any{"id": id})
	}
	return err
}

func validateIncident(incident *domain.Incident) map[string]any {
	details := map[string]any{}
	if utf8.RuneCountInString(incident.Title) < minTitleLength {
		details["titulo"] = "must be at least 5 characters"
	}
	if utf8.RuneCountInString(incident.Description) < minDescriptionLength {
		details["descripcion"] = "must be at least 10 characters"
	}
	if utf8.RuneCountInString(incident.Installer) < minPartyNameLength {
		details["instalador"] = "must be at least 2 characters"
	}
	if utf8.RuneCountInString(incident.Client) < minPartyNameLength {
		details["cliente"] = "must be at least 2 characters"
	}
	if !incident.Service.Valid() {
		details["servicio"] = "unknown service"
	}
	if !incident.Channel.Valid() {
		details["canal"] = "unknown channel"
	}
	return details
}
