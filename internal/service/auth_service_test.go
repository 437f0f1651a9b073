package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/kinetix/ima-backend/internal/auth"
	"github.com/kinetix/ima-backend/internal/config"
	"github.com/kinetix/ima-backend/internal/domain"
	"github.com/kinetix/ima-backend/internal/repository"
)

func newAuthConfig(password string) config.Config {
	return config.Config{Auth: config.AuthConfig{
		JWTSecret:             "test-secret",
		AccessTokenTTLMinutes: 60,
		BcryptCost:            bcrypt.MinCost,
		AdminUsername:         "admin",
		AdminPassword:         password,
	}}
}

func TestEnsureAdminAndLogin(t *testing.T) {
	ctx := context.Background()
	users := repository.NewMemoryUserRepository()
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	svc := NewAuthService(newAuthConfig("s3cret-pass"), users, tokens, nil)

	require.NoError(t, svc.EnsureAdmin(ctx))
	require.NoError(t, svc.EnsureAdmin(ctx))

	admin, err := users.GetByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, domain.UserRoleAdmin, admin.Role)
	assert.True(t, admin.Active)

	user, token, err := svc.Login(ctx, "admin", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, user.ID)
	assert.NotEmpty(t, token.Value)
	assert.Equal(t, domain.UserRoleAdmin, token.Role)

	claims, err := tokens.ParseToken(token.Value)
	require.NoError(t, err)
	assert.Equal(t, admin.ID, claims.Subject)
	assert.Equal(t, "admin", claims.Username)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	users := repository.NewMemoryUserRepository()
	svc := NewAuthService(newAuthConfig("s3cret-pass"), users, nil, nil)
	require.NoError(t, svc.EnsureAdmin(ctx))

	_, _, err := svc.Login(ctx, "admin", "wrong-password")
	requireDomainCode(t, err, "UNAUTHORIZED", http.StatusUnauthorized)

	_, _, err = svc.Login(ctx, "ghost", "s3cret-pass")
	requireDomainCode(t, err, "UNAUTHORIZED", http.StatusUnauthorized)
}

func TestLoginRejectsDisabledAccount(t *testing.T) {
	ctx := context.Background()
	users := repository.NewMemoryUserRepository()
	hash, err := auth.HashPassword("operator-pass", bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, users.Create(ctx, &domain.User{
		Username:     "luis",
		PasswordHash: hash,
		Role:         domain.UserRoleUser,
		Active:       false,
	}))

	svc := NewAuthService(newAuthConfig(""), users, nil, nil)
	_, _, err = svc.Login(ctx, "luis", "operator-pass")
	requireDomainCode(t, err, "FORBIDDEN", http.StatusForbidden)
}

func TestEnsureAdminWithoutPasswordIsNoop(t *testing.T) {
	ctx := context.Background()
	users := repository.NewMemoryUserRepository()
	svc := NewAuthService(newAuthConfig(""), users, nil, nil)

	require.NoError(t, svc.EnsureAdmin(ctx))
	_, err := users.GetByUsername(ctx, "admin")
	assert.Error(t, err)
}
