package dto

import (
	"fmt"
	"time"

	"github.com/kinetix/ima-backend/internal/domain"
)

// LoginRequest payload for operator login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// UserResponse is the public view of an operator.
type UserResponse struct {
	ID       string          `json:"id"`
	Username string          `json:"username"`
	Name     string          `json:"nombre"`
	Email    string          `json:"email,omitempty"`
	Role     domain.UserRole `json:"rol"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string       `json:"token"`
	User      UserResponse `json:"user"`
	ExpiresIn string       `json:"expiresIn"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

// NewUserResponse maps a domain user.
func NewUserResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:       user.ID,
		Username: user.Username,
		Name:     user.Name,
		Email:    user.Email,
		Role:     user.Role,
	}
}

// FormatExpiresIn renders a token lifetime the way the dashboard configures it,
// for example "24h", "90m" or "45s".
func FormatExpiresIn(ttl time.Duration) string {
	switch {
	case ttl <= 0:
		return "0s"
	case ttl%time.Hour == 0:
		return fmt.Sprintf("%dh", int64(ttl/time.Hour))
	case ttl%time.Minute == 0:
		return fmt.Sprintf("%dm", int64(ttl/time.Minute))
	default:
		return fmt.Sprintf("%ds", int64(ttl.Round(time.Second)/time.Second))
	}
}
