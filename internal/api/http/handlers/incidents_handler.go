package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/kinetix/ima-backend/internal/api/dto"
	"github.com/kinetix/ima-backend/internal/auth"
	"github.com/kinetix/ima-backend/internal/domain"
	"github.com/kinetix/ima-backend/internal/service"
	"github.com/kinetix/ima-backend/internal/workflow"
	apperrors "github.com/kinetix/ima-backend/pkg/util"
)

const maxPageSize = 200

// IncidentsHandler serves the incident dashboard endpoints.
type IncidentsHandler struct {
	service *service.IncidentService
}

// NewIncidentsHandler constructs handler.
func NewIncidentsHandler(incidentService *service.IncidentService) *IncidentsHandler {
	return &IncidentsHandler{service: incidentService}
}

// ListIncidents GET /api/incidentes.
func (h *IncidentsHandler) ListIncidents(c *fiber.Ctx) error {
	filter, err := parseIncidentQuery(c)
	if err != nil {
		return err
	}
	incidents, err := h.service.ListIncidents(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.IncidentSummary, 0, len(incidents))
	for i := range incidents {
		items = append(items, dto.NewIncidentSummary(&incidents[i]))
	}
	return c.JSON(items)
}

// CreateIncident POST /api/incidentes.
func (h *IncidentsHandler) CreateIncident(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.CreateIncidentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	incident, err := h.service.CreateIncident(c.UserContext(), principal.User.Username, service.IncidentCreateInput{
		Title:       req.Title,
		Description: req.Description,
		Service:     req.Service,
		Channel:     req.Channel,
		Installer:   req.Installer,
		Client:      req.Client,
		CreatedBy:   req.CreatedBy,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dto.NewIncidentDetail(incident))
}

// GetIncident GET /api/incidentes/:id.
func (h *IncidentsHandler) GetIncident(c *fiber.Ctx) error {
	incident, err := h.service.GetIncident(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.NewIncidentDetail(incident))
}

// UpdateIncident PATCH /api/incidentes/:id.
func (h *IncidentsHandler) UpdateIncident(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.UpdateIncidentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	incident, err := h.service.UpdateIncident(c.UserContext(), principal.User.Username, c.Params("id"), service.IncidentUpdateInput{
		Title:       req.Title,
		Description: req.Description,
		Installer:   req.Installer,
		Version:     req.Version,
	})
	if err != nil {
		return err
	}
	return c.JSON(dto.NewIncidentDetail(incident))
}

// ChangeState PATCH /api/incidentes/:id/estado.
func (h *IncidentsHandler) ChangeState(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.ChangeStateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.NewState == "" {
		return apperrors.NewValidationError("nuevoEstado required", nil)
	}

	incident, err := h.service.ChangeState(c.UserContext(), principal.User.Username, c.Params("id"), req.NewState, req.Version)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewIncidentDetail(incident))
}

// ListTransitions GET /api/incidentes/:id/transiciones.
func (h *IncidentsHandler) ListTransitions(c *fiber.Ctx) error {
	incident, targets, err := h.service.ValidTargets(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	states := make([]dto.StateResponse, 0, len(targets))
	for _, target := range targets {
		states = append(states, stateResponse(target))
	}
	return c.JSON(dto.TransitionsResponse{
		IncidentID:   incident.ID,
		CurrentState: incident.CurrentState,
		Version:      incident.Version,
		Targets:      states,
	})
}

func parseIncidentQuery(c *fiber.Ctx) (service.IncidentFilter, error) {
	filter := service.IncidentFilter{
		State:   domain.State(strings.TrimSpace(c.Query("estado"))),
		Channel: domain.Channel(strings.TrimSpace(c.Query("canal"))),
		Service: domain.Service(strings.TrimSpace(c.Query("servicio"))),
		Search:  strings.TrimSpace(c.Query("q")),
	}
	details := map[string]any{}
	if filter.State != "" && !filter.State.Valid() {
		details["estado"] = "unknown state"
	}
	if filter.Channel != "" && !filter.Channel.Valid() {
		details["canal"] = "unknown channel"
	}
	if filter.Service != "" && !filter.Service.Valid() {
		details["servicio"] = "unknown service"
	}
	if len(details) > 0 {
		return service.IncidentFilter{}, apperrors.NewValidationError("invalid filter", details)
	}

	if c.Query("page_size") != "" || c.Query("page") != "" {
		page := parseInt(c.Query("page"), 1)
		pageSize := parseInt(c.Query("page_size"), 20)
		if pageSize > maxPageSize {
			pageSize = maxPageSize
		}
		filter.Offset = (page - 1) * pageSize
		filter.Limit = pageSize
	}
	return filter, nil
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func stateResponse(state domain.State) dto.StateResponse {
	return dto.StateResponse{
		Value:    state,
		Label:    state.Label(),
		Terminal: workflow.IsTerminal(state),
	}
}
