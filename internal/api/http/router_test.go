package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/kinetix/ima-backend/internal/api/http/handlers"
	"github.com/kinetix/ima-backend/internal/auth"
	"github.com/kinetix/ima-backend/internal/config"
	"github.com/kinetix/ima-backend/internal/domain"
	"github.com/kinetix/ima-backend/internal/events"
	"github.com/kinetix/ima-backend/internal/observability"
	"github.com/kinetix/ima-backend/internal/repository"
	"github.com/kinetix/ima-backend/internal/service"
	"github.com/kinetix/ima-backend/internal/workflow"
)

const testPassword = "s3cret-pass"

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type apiError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details"`
}

type response struct {
	body []byte
}

func (r response) decode(t *testing.T, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.body, v), string(r.body))
}

func (r response) apiError(t *testing.T) apiError {
	t.Helper()
	var out struct {
		Error *apiError `json:"error"`
	}
	r.decode(t, &out)
	require.NotNil(t, out.Error, string(r.body))
	return *out.Error
}

type testServer struct {
	app     *fiber.App
	token   string
	metrics *observability.Metrics
	users   repository.UserRepository
	tokens  *auth.TokenManager
}

func newTestServer(t *testing.T, deps map[string]handlers.Pinger) *testServer {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	cfg := config.Config{Auth: config.AuthConfig{
		JWTSecret:             "test-secret",
		AccessTokenTTLMinutes: 60,
		BcryptCost:            bcrypt.MinCost,
		AdminUsername:         "admin",
		AdminPassword:         testPassword,
	}}

	users := repository.NewMemoryUserRepository()
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL())
	authService := service.NewAuthService(cfg, users, tokens, logger)
	require.NoError(t, authService.EnsureAdmin(context.Background()))

	incidentService := service.NewIncidentService(service.IncidentDependencies{
		IncidentRepo: repository.NewMemoryIncidentRepository(),
		Engine:       workflow.NewEngine(),
		Dispatcher:   events.NewInMemoryDispatcher(),
		Metrics:      metrics,
		Logger:       logger,
	})

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("ima", "test", deps, metrics),
		Auth:           handlers.NewAuthHandler(authService),
		Incidents:      handlers.NewIncidentsHandler(incidentService),
		Workflow:       handlers.NewWorkflowHandler(incidentService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, users),
	})

	srv := &testServer{app: app, metrics: metrics, users: users, tokens: tokens}
	status, resp := srv.do(t, "POST", "/api/auth/login", map[string]any{"username": "admin", "password": testPassword})
	require.Equal(t, fiber.StatusOK, status)
	var login struct {
		Token     string `json:"token"`
		ExpiresIn string `json:"expiresIn"`
		User      struct {
			Username string `json:"username"`
			Role     string `json:"rol"`
		} `json:"user"`
	}
	resp.decode(t, &login)
	require.NotEmpty(t, login.Token)
	assert.Equal(t, "1h", login.ExpiresIn)
	assert.Equal(t, "ADMIN", login.User.Role)
	srv.token = login.Token
	return srv
}

func (s *testServer) do(t *testing.T, method, path string, body any) (int, response) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if s.token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+s.token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, response{body: raw}
}

type incidentBody struct {
	ID           string `json:"id"`
	State        string `json:"estadoActual"`
	Version      int64  `json:"version"`
	CreatedBy    string `json:"creadoPor"`
	Description  string `json:"descripcion"`
	StateHistory []struct {
		From      string `json:"estadoAnterior"`
		To        string `json:"estadoNuevo"`
		ChangedBy string `json:"usuario"`
	} `json:"historialEstados"`
}

func (s *testServer) createIncident(t *testing.T, channel string) incidentBody {
	t.Helper()
	status, resp := s.do(t, "POST", "/api/incidentes", map[string]any{
		"titulo":      "Caída de enlace",
		"descripcion": "<p>Sin servicio desde las 8am</p>",
		"servicio":    "INTERNET",
		"canal":       channel,
		"instalador":  "Pedro",
		"cliente":     "Banco Sur",
	})
	require.Equal(t, fiber.StatusCreated, status)
	var incident incidentBody
	resp.decode(t, &incident)
	return incident
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.token = ""

	status, resp := srv.do(t, "GET", "/api/incidentes", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", resp.apiError(t).Code)

	srv.token = "garbage"
	status, _ = srv.do(t, "GET", "/api/workflow", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.token = ""
	status, resp := srv.do(t, "POST", "/api/auth/login", map[string]any{"username": "admin", "password": "nope-nope"})
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", resp.apiError(t).Code)

	status, resp = srv.do(t, "POST", "/api/auth/login", map[string]any{"username": "admin"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", resp.apiError(t).Code)
}

func TestIncidentLifecycle(t *testing.T) {
	srv := newTestServer(t, nil)
	created := srv.createIncident(t, "WEB")
	assert.Equal(t, "NUEVO", created.State)
	assert.Equal(t, "admin", created.CreatedBy)
	assert.Empty(t, created.StateHistory)

	status, resp := srv.do(t, "PATCH", "/api/incidentes/"+created.ID+"/estado", map[string]any{"nuevoEstado": "EN_ANALISIS", "version": created.Version})
	require.Equal(t, fiber.StatusOK, status)
	var moved incidentBody
	resp.decode(t, &moved)
	assert.Equal(t, "EN_ANALISIS", moved.State)
	assert.Equal(t, created.Version+1, moved.Version)
	require.Len(t, moved.StateHistory, 1)
	assert.Equal(t, "NUEVO", moved.StateHistory[0].From)
	assert.Equal(t, "admin", moved.StateHistory[0].ChangedBy)

	status, resp = srv.do(t, "GET", "/api/incidentes/"+created.ID+"/transiciones", nil)
	require.Equal(t, fiber.StatusOK, status)
	var transitions struct {
		Current string `json:"estadoActual"`
		Targets []struct {
			Value string `json:"valor"`
			Label string `json:"etiqueta"`
		} `json:"transiciones"`
	}
	resp.decode(t, &transitions)
	assert.Equal(t, "EN_ANALISIS", transitions.Current)
	require.Len(t, transitions.Targets, 2)
	assert.Equal(t, "ASIGNADO", transitions.Targets[0].Value)
	assert.NotEmpty(t, transitions.Targets[0].Label)

	status, resp = srv.do(t, "GET", "/api/incidentes/"+created.ID, nil)
	require.Equal(t, fiber.StatusOK, status)
	var detail incidentBody
	resp.decode(t, &detail)
	assert.Len(t, detail.StateHistory, 1)
	assert.Equal(t, "<p>Sin servicio desde las 8am</p>", detail.Description)
}

func TestChangeStateErrors(t *testing.T) {
	srv := newTestServer(t, nil)
	created := srv.createIncident(t, "EMAIL")

	t.Run("invalid transition", func(t *testing.T) {
		status, resp := srv.do(t, "PATCH", "/api/incidentes/"+created.ID+"/estado", map[string]any{"nuevoEstado": "CERRADO"})
		assert.Equal(t, fiber.StatusUnprocessableEntity, status)
		apiErr := resp.apiError(t)
		assert.Equal(t, "INVALID_TRANSITION", apiErr.Code)
		assert.Equal(t, "NUEVO", apiErr.Details["from"])
		assert.Equal(t, "CERRADO", apiErr.Details["to"])
	})

	t.Run("missing target", func(t *testing.T) {
		status, resp := srv.do(t, "PATCH", "/api/incidentes/"+created.ID+"/estado", map[string]any{})
		assert.Equal(t, fiber.StatusBadRequest, status)
		assert.Equal(t, "VALIDATION_FAILED", resp.apiError(t).Code)
	})

	t.Run("stale version", func(t *testing.T) {
		status, _ := srv.do(t, "PATCH", "/api/incidentes/"+created.ID+"/estado", map[string]any{"nuevoEstado": "EN_ANALISIS", "version": created.Version})
		require.Equal(t, fiber.StatusOK, status)

		status, resp := srv.do(t, "PATCH", "/api/incidentes/"+created.ID+"/estado", map[string]any{"nuevoEstado": "CANCELADO", "version": created.Version})
		assert.Equal(t, fiber.StatusConflict, status)
		assert.Equal(t, "CONFLICT", resp.apiError(t).Code)
	})

	t.Run("unknown incident", func(t *testing.T) {
		status, resp := srv.do(t, "PATCH", "/api/incidentes/missing/estado", map[string]any{"nuevoEstado": "EN_ANALISIS"})
		assert.Equal(t, fiber.StatusNotFound, status)
		assert.Equal(t, "NOT_FOUND", resp.apiError(t).Code)
	})

	snap := srv.metrics.Snapshot()
	assert.Equal(t, int64(1), snap.TransitionsRejected["NUEVO->CERRADO"])
	assert.Equal(t, int64(1), snap.VersionConflicts)
}

func TestCreateIncidentValidation(t *testing.T) {
	srv := newTestServer(t, nil)
	status, resp := srv.do(t, "POST", "/api/incidentes", map[string]any{
		"titulo":   "abc",
		"servicio": "INTERNET",
		"canal":    "PALOMA",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	apiErr := resp.apiError(t)
	assert.Equal(t, "VALIDATION_FAILED", apiErr.Code)
	assert.Contains(t, apiErr.Details, "titulo")
	assert.Contains(t, apiErr.Details, "canal")
}

func TestUpdateIncident(t *testing.T) {
	srv := newTestServer(t, nil)
	created := srv.createIncident(t, "WEB")

	status, resp := srv.do(t, "PATCH", "/api/incidentes/"+created.ID, map[string]any{"descripcion": "<p>Se cambió el router principal</p>"})
	require.Equal(t, fiber.StatusOK, status)
	var updated incidentBody
	resp.decode(t, &updated)
	assert.Equal(t, "NUEVO", updated.State)
	assert.Equal(t, "<p>Se cambió el router principal</p>", updated.Description)
	assert.Equal(t, created.Version+1, updated.Version)
}

func TestListFiltersAndDashboardStats(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.createIncident(t, "WEB")
	srv.createIncident(t, "WEB")
	phone := srv.createIncident(t, "CALL_CENTER")
	status, _ := srv.do(t, "PATCH", "/api/incidentes/"+phone.ID+"/estado", map[string]any{"nuevoEstado": "CANCELADO"})
	require.Equal(t, fiber.StatusOK, status)

	status, resp := srv.do(t, "GET", "/api/incidentes?canal=WEB", nil)
	require.Equal(t, fiber.StatusOK, status)
	var items []incidentBody
	resp.decode(t, &items)
	assert.Len(t, items, 2)

	status, resp = srv.do(t, "GET", "/api/incidentes?estado=CANCELADO", nil)
	require.Equal(t, fiber.StatusOK, status)
	resp.decode(t, &items)
	require.Len(t, items, 1)
	assert.Equal(t, phone.ID, items[0].ID)

	status, resp = srv.do(t, "GET", "/api/incidentes?estado=PERDIDO", nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", resp.apiError(t).Code)

	status, resp = srv.do(t, "GET", "/api/dashboard/stats", nil)
	require.Equal(t, fiber.StatusOK, status)
	var stats struct {
		ByChannel map[string]int `json:"porCanal"`
		ByState   map[string]int `json:"porEstado"`
		Total     int            `json:"total"`
	}
	resp.decode(t, &stats)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.ByChannel["WEB"])
	assert.Equal(t, 1, stats.ByChannel["CALL_CENTER"])
	assert.Equal(t, 0, stats.ByChannel["WHATSAPP"])
	assert.Equal(t, 2, stats.ByState["NUEVO"])
	assert.Equal(t, 1, stats.ByState["CANCELADO"])
	assert.Len(t, stats.ByState, 9)
}

func TestWorkflowGraph(t *testing.T) {
	srv := newTestServer(t, nil)
	status, resp := srv.do(t, "GET", "/api/workflow", nil)
	require.Equal(t, fiber.StatusOK, status)

	var graph struct {
		Initial string `json:"estadoInicial"`
		States  []struct {
			Value    string `json:"valor"`
			Terminal bool   `json:"terminal"`
		} `json:"estados"`
		Edges    []map[string]string `json:"transiciones"`
		Channels []map[string]string `json:"canales"`
		Services []map[string]string `json:"servicios"`
	}
	resp.decode(t, &graph)
	assert.Equal(t, "NUEVO", graph.Initial)
	assert.Len(t, graph.States, 9)
	assert.Len(t, graph.Edges, len(workflow.Edges()))
	assert.Len(t, graph.Channels, 5)
	assert.Len(t, graph.Services, 4)

	terminal := map[string]bool{}
	for _, state := range graph.States {
		terminal[state.Value] = state.Terminal
	}
	assert.True(t, terminal["CERRADO"])
	assert.True(t, terminal["CANCELADO"])
	assert.False(t, terminal["RESUELTO"])
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, map[string]handlers.Pinger{
		"postgres": nil,
		"redis":    stubPinger{},
	})

	status, _ := srv.do(t, "GET", "/health/live", nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, _ = srv.do(t, "GET", "/health/ready", nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, resp := srv.do(t, "GET", "/internal/metrics", nil)
	require.Equal(t, fiber.StatusOK, status)
	var snap observability.Snapshot
	resp.decode(t, &snap)
	assert.NotEmpty(t, snap.Requests)

	down := newTestServer(t, map[string]handlers.Pinger{"redis": stubPinger{err: errors.New("connection refused")}})
	status, resp = down.do(t, "GET", "/health/ready", nil)
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	apiErr := resp.apiError(t)
	assert.Equal(t, "DEPENDENCY_UNAVAILABLE", apiErr.Code)
	assert.Equal(t, "connection refused", apiErr.Details["redis"])
}

func TestUnknownRoute(t *testing.T) {
	srv := newTestServer(t, nil)
	status, resp := srv.do(t, "GET", "/nope", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", resp.apiError(t).Code)
}

func TestDashboardPayloadsAreUnwrapped(t *testing.T) {
	srv := newTestServer(t, nil)
	created := srv.createIncident(t, "WHATSAPP")

	status, resp := srv.do(t, "GET", "/api/incidentes", nil)
	require.Equal(t, fiber.StatusOK, status)
	var list []json.RawMessage
	resp.decode(t, &list)
	require.Len(t, list, 1)

	status, resp = srv.do(t, "GET", "/api/incidentes/"+created.ID, nil)
	require.Equal(t, fiber.StatusOK, status)
	var detail map[string]any
	resp.decode(t, &detail)
	assert.Equal(t, created.ID, detail["id"])
	assert.NotContains(t, detail, "data")

	status, resp = srv.do(t, "GET", "/api/dashboard/stats", nil)
	require.Equal(t, fiber.StatusOK, status)
	var stats map[string]any
	resp.decode(t, &stats)
	assert.Contains(t, stats, "porCanal")
	assert.Contains(t, stats, "porEstado")
	assert.Equal(t, float64(1), stats["total"])
	assert.NotContains(t, stats, "data")

	srv.token = ""
	status, resp = srv.do(t, "POST", "/api/auth/login", map[string]any{"username": "admin", "password": testPassword})
	require.Equal(t, fiber.StatusOK, status)
	var login map[string]any
	resp.decode(t, &login)
	assert.Contains(t, login, "token")
	assert.Contains(t, login, "user")
	assert.Equal(t, "1h", login["expiresIn"])
	assert.Contains(t, login, "expiresAt")
}

func TestMetricsRequiresAdmin(t *testing.T) {
	srv := newTestServer(t, nil)
	adminToken := srv.token

	operator := &domain.User{Username: "luis", Role: domain.UserRoleUser, Active: true}
	require.NoError(t, srv.users.Create(context.Background(), operator))
	operatorToken, err := srv.tokens.GenerateToken(operator)
	require.NoError(t, err)

	cases := []struct {
		name   string
		token  string
		status int
		code   string
	}{
		{"anonymous", "", fiber.StatusUnauthorized, "UNAUTHORIZED"},
		{"operator", operatorToken.Value, fiber.StatusForbidden, "FORBIDDEN"},
		{"admin", adminToken, fiber.StatusOK, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv.token = tc.token
			status, resp := srv.do(t, "GET", "/internal/metrics", nil)
			assert.Equal(t, tc.status, status)
			if tc.code != "" {
				assert.Equal(t, tc.code, resp.apiError(t).Code)
			}
		})
	}

	srv.token = operatorToken.Value
	status, _ := srv.do(t, "GET", "/api/incidentes", nil)
	assert.Equal(t, fiber.StatusOK, status)
}
