package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/kinetix/ima-backend/internal/api/dto"
	"github.com/kinetix/ima-backend/internal/auth"
	"github.com/kinetix/ima-backend/internal/service"
	apperrors "github.com/kinetix/ima-backend/pkg/util"
)

// AuthHandler exposes operator login.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return apperrors.NewValidationError("username and password required", nil)
	}

	user, token, err := h.auth.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(dto.AuthResponse{
		Token:     token.Value,
		User:      dto.NewUserResponse(user),
		ExpiresIn: dto.FormatExpiresIn(token.ExpiresAt.Sub(token.IssuedAt)),
		ExpiresAt: token.ExpiresAt,
	})
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	return c.JSON(dto.NewUserResponse(principal.User))
}
