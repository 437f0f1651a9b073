package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/kinetix/ima-backend/internal/auth"
	"github.com/kinetix/ima-backend/internal/config"
	"github.com/kinetix/ima-backend/internal/domain"
	"github.com/kinetix/ima-backend/internal/repository"
	apperrors "github.com/kinetix/ima-backend/pkg/util"
)

// AuthService coordinates operator login.
type AuthService struct {
	users         repository.UserRepository
	tokenMgr      *auth.TokenManager
	bcryptCost    int
	adminUsername string
	adminPassword string
	logger        *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, users repository.UserRepository, tokens *auth.TokenManager, logger *zap.Logger) *AuthService {
	if tokens == nil {
		tokens = auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:         users,
		tokenMgr:      tokens,
		bcryptCost:    cfg.Auth.BcryptCost,
		adminUsername: strings.TrimSpace(cfg.Auth.AdminUsername),
		adminPassword: cfg.Auth.AdminPassword,
		logger:        logger,
	}
}

// Login authenticates an operator and issues an access token. Unknown users and
// wrong passwords produce the same error.
func (s *AuthService) Login(ctx context.Context, username, password string) (*domain.User, domain.Token, error) {
	invalid := apperrors.NewUnauthorized("invalid credentials")

	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.Token{}, invalid
	}
	if err != nil {
		return nil, domain.Token{}, err
	}
	if !user.Active {
		return nil, domain.Token{}, apperrors.NewForbidden("account disabled")
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, domain.Token{}, invalid
	}

	token, err := s.tokenMgr.GenerateToken(user)
	if err != nil {
		return nil, domain.Token{}, err
	}
	s.logger.Info("operator logged in", zap.String("user_id", user.ID), zap.String("username", user.Username))
	return user, token, nil
}

// EnsureAdmin creates the bootstrap administrator when a password is configured
// and the account does not exist yet.
func (s *AuthService) EnsureAdmin(ctx context.Context) error {
	if s.adminUsername == "" || s.adminPassword == "" {
		return nil
	}
	_, err := s.users.GetByUsername(ctx, s.adminUsername)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	hash, err := auth.HashPassword(s.adminPassword, s.bcryptCost)
	if err != nil {
		return err
	}
	admin := &domain.User{
		Username:     s.adminUsername,
		Name:         "Administrador",
		PasswordHash: hash,
		Role:         domain.UserRoleAdmin,
		Active:       true,
	}
	if err := s.users.Create(ctx, admin); err != nil {
		if errors.Is(err, repository.ErrDuplicateUsername) {
			return nil
		}
		return err
	}
	s.logger.Info("bootstrap admin created", zap.String("username", admin.Username))
	return nil
}
