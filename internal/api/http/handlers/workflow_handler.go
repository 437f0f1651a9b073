package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kinetix/ima-backend/internal/api/dto"
	"github.com/kinetix/ima-backend/internal/domain"
	"github.com/kinetix/ima-backend/internal/service"
	"github.com/kinetix/ima-backend/internal/workflow"
)

// WorkflowHandler exposes the static workflow graph and dashboard aggregates.
type WorkflowHandler struct {
	incidents *service.IncidentService
	graph     dto.WorkflowResponse
}

// NewWorkflowHandler constructs handler. The graph is fixed so it is built once.
func NewWorkflowHandler(incidentService *service.IncidentService) *WorkflowHandler {
	return &WorkflowHandler{incidents: incidentService, graph: buildWorkflowResponse()}
}

// Graph GET /api/workflow.
func (h *WorkflowHandler) Graph(c *fiber.Ctx) error {
	return c.JSON(h.graph)
}

// DashboardStats GET /api/dashboard/stats.
func (h *WorkflowHandler) DashboardStats(c *fiber.Ctx) error {
	summary, err := h.incidents.DashboardStats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(dto.NewDashboardStatsResponse(summary))
}

func buildWorkflowResponse() dto.WorkflowResponse {
	resp := dto.WorkflowResponse{InitialState: domain.StateNew}
	for _, state := range domain.AllStates {
		resp.States = append(resp.States, stateResponse(state))
	}
	for _, edge := range workflow.Edges() {
		resp.Edges = append(resp.Edges, dto.EdgeResponse{From: edge.From, To: edge.To})
	}
	for _, channel := range domain.AllChannels {
		resp.Channels = append(resp.Channels, dto.OptionResponse{Value: string(channel), Label: channel.Label()})
	}
	for _, svc := range domain.AllServices {
		resp.Services = append(resp.Services, dto.OptionResponse{Value: string(svc), Label: svc.Label()})
	}
	return resp
}
