package dto

import (
	"time"

	"github.com/kinetix/ima-backend/internal/domain"
	"github.com/kinetix/ima-backend/internal/stats"
)

// CreateIncidentRequest payload.
type CreateIncidentRequest struct {
	Title       string         `json:"titulo"`
	Description string         `json:"descripcion"`
	Service     domain.Service `json:"servicio"`
	Channel     domain.Channel `json:"canal"`
	Installer   string         `json:"instalador"`
	Client      string         `json:"cliente"`
	CreatedBy   string         `json:"creadoPor"`
}

// UpdateIncidentRequest payload. Omitted fields are unchanged.
type UpdateIncidentRequest struct {
	Title       *string `json:"titulo"`
	Description *string `json:"descripcion"`
	Installer   *string `json:"instalador"`
	Version     *int64  `json:"version"`
}

// ChangeStateRequest payload. Version, when sent, must match the stored one.
type ChangeStateRequest struct {
	NewState domain.State `json:"nuevoEstado"`
	Version  *int64       `json:"version"`
}

// IncidentSummary list item.
type IncidentSummary struct {
	ID            string         `json:"id"`
	Title         string         `json:"titulo"`
	Service       domain.Service `json:"servicio"`
	Channel       domain.Channel `json:"canal"`
	Installer     string         `json:"instalador"`
	Client        string         `json:"cliente"`
	CreatedBy     string         `json:"creadoPor"`
	CurrentState  domain.State   `json:"estadoActual"`
	CreatedAt     time.Time      `json:"fechaCreacion"`
	LastUpdatedAt time.Time      `json:"fechaUltimaActualizacion"`
	Version       int64          `json:"version"`
}

// IncidentDetail includes the description and the full state history.
type IncidentDetail struct {
	IncidentSummary
	Description string                `json:"descripcion"`
	History     []StateChangeResponse `json:"historialEstados"`
}

// StateChangeResponse is one history entry.
type StateChangeResponse struct {
	ID        string       `json:"id"`
	From      domain.State `json:"estadoAnterior"`
	To        domain.State `json:"estadoNuevo"`
	ChangedBy string       `json:"usuario"`
	ChangedAt time.Time    `json:"fechaCambio"`
}

// TransitionsResponse lists the states an incident may move to next.
type TransitionsResponse struct {
	IncidentID   string          `json:"incidenteId"`
	CurrentState domain.State    `json:"estadoActual"`
	Version      int64           `json:"version"`
	Targets      []StateResponse `json:"transiciones"`
}

// StateResponse is a workflow state with its display label.
type StateResponse struct {
	Value    domain.State `json:"valor"`
	Label    string       `json:"etiqueta"`
	Terminal bool         `json:"terminal"`
}

// OptionResponse is an enum value with its display label.
type OptionResponse struct {
	Value string `json:"valor"`
	Label string `json:"etiqueta"`
}

// EdgeResponse is one allowed transition.
type EdgeResponse struct {
	From domain.State `json:"desde"`
	To   domain.State `json:"hacia"`
}

// WorkflowResponse describes the whole graph for the dashboard.
type WorkflowResponse struct {
	InitialState domain.State     `json:"estadoInicial"`
	States       []StateResponse  `json:"estados"`
	Edges        []EdgeResponse   `json:"transiciones"`
	Channels     []OptionResponse `json:"canales"`
	Services     []OptionResponse `json:"servicios"`
}

// DashboardStatsResponse mirrors the dashboard chart payload.
type DashboardStatsResponse struct {
	ByChannel map[domain.Channel]int `json:"porCanal"`
	ByState   map[domain.State]int   `json:"porEstado"`
	Total     int                    `json:"total"`
}

// NewIncidentSummary maps a domain incident.
func NewIncidentSummary(incident *domain.Incident) IncidentSummary {
	return IncidentSummary{
		ID:            incident.ID,
		Title:         incident.Title,
		Service:       incident.Service,
		Channel:       incident.Channel,
		Installer:     incident.Installer,
		Client:        incident.Client,
		CreatedBy:     incident.CreatedBy,
		CurrentState:  incident.CurrentState,
		CreatedAt:     incident.CreatedAt,
		LastUpdatedAt: incident.LastUpdatedAt,
		Version:       incident.Version,
	}
}

// NewIncidentDetail maps a domain incident with its history.
func NewIncidentDetail(incident *domain.Incident) IncidentDetail {
	history := make([]StateChangeResponse, 0, len(incident.History))
	for _, change := range incident.History {
		history = append(history, StateChangeResponse{
			ID:        change.ID,
			From:      change.From,
			To:        change.To,
			ChangedBy: change.ChangedBy,
			ChangedAt: change.ChangedAt,
		})
	}
	return IncidentDetail{
		IncidentSummary: NewIncidentSummary(incident),
		Description:     incident.Description,
		History:         history,
	}
}

// NewDashboardStatsResponse maps aggregated counts.
func NewDashboardStatsResponse(s stats.DashboardStats) DashboardStatsResponse {
	return DashboardStatsResponse{
		ByChannel: s.ByChannel,
		ByState:   s.ByState,
		Total:     s.Total,
	}
}
